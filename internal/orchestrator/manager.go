package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/grpcclient"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/audio"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/queue"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/vad"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
	"github.com/GriffinCanCode/voice-translator/internal/syncx"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Transcriber turns an encoded utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (grpcclient.Transcription, error)
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (grpcclient.Translation, error)
}

// Synthesizer renders text as speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Config for the manager. Zero sub-configs take their package defaults.
type Config struct {
	Audio                   audio.Config
	VAD                     vad.Config
	Queue                   queue.Config
	Feedback                feedback.Config
	Retry                   resilience.Policy
	MinTranscriptConfidence float64
	PreRollSegments         int
	MaxUtterance            time.Duration
	Defaults                SessionConfig
}

func (c Config) withDefaults() Config {
	if c.Retry.MaxRetries == 0 && c.Retry.BaseDelay == 0 {
		c.Retry = resilience.DefaultPolicy()
	}
	if c.Queue.Policy.BaseDelay == 0 {
		c.Queue.Policy = c.Retry
	}
	if c.MinTranscriptConfidence == 0 {
		c.MinTranscriptConfidence = DefaultMinTranscriptConfidence
	}
	if c.PreRollSegments <= 0 {
		c.PreRollSegments = DefaultPreRollSegments
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = DefaultMaxUtterance
	}
	if c.Defaults.TargetLanguage == "" {
		c.Defaults.TargetLanguage = DefaultTargetLanguage
	}
	if c.Defaults.OutputRouting == "" {
		c.Defaults.OutputRouting = DefaultOutputRouting
	}
	return c
}

// Outcome describes one pass through the translation cycle.
type Outcome struct {
	Skipped        bool
	Reason         feedback.Reason
	Text           string
	TranslatedText string
	Audio          []byte
	SynthesisErr   error
}

// SessionState is the host-facing view of the current session.
type SessionState struct {
	Active     bool           `json:"active"`
	SessionID  string         `json:"sessionId,omitempty"`
	Config     SessionConfig  `json:"config"`
	StartedAt  time.Time      `json:"startedAt,omitempty"`
	Listening  bool           `json:"listening"`
	VoiceState string         `json:"voiceState,omitempty"`
	Guard      feedback.State `json:"guard"`
}

// Manager owns at most one session and drives segments through
// detection, transcription, translation and synthesis.
type Manager struct {
	cfg         Config
	transcriber Transcriber
	translator  Translator
	synthesizer Synthesizer
	sink        events.Sink
	conditioner *audio.Processor

	startMu sync.Mutex
	current *syncx.RWGuard[*session]
	stats   counters
}

// New creates a manager. A nil sink discards events.
func New(cfg Config, tr Transcriber, tl Translator, sy Synthesizer, sink events.Sink) *Manager {
	if sink == nil {
		sink = events.Discard
	}
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:         cfg,
		transcriber: tr,
		translator:  tl,
		synthesizer: sy,
		sink:        sink,
		conditioner: audio.NewProcessor(cfg.Audio),
		current:     syncx.NewGuard[*session](nil),
	}
}

// StartSession begins a session. Empty fields in sc take the configured
// defaults. The session outlives ctx's cancellation but keeps its values.
func (m *Manager) StartSession(ctx context.Context, sc SessionConfig) (string, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.current.Get() != nil {
		return "", apperrors.ErrSessionActive
	}
	sc = m.fillDefaults(sc)

	id := uuid.NewString()
	sctx, cancel := context.WithCancel(trace.WithSession(context.WithoutCancel(ctx), id))
	s := &session{
		id:        id,
		cfg:       sc,
		startedAt: time.Now(),
		ctx:       sctx,
		cancel:    cancel,
		sink:      events.WithSession(m.sink, id),
		guard:     feedback.New(m.cfg.Feedback),
		preroll:   syncx.NewRing[pcm.Segment](m.cfg.PreRollSegments),
	}
	s.vad = vad.New(m.cfg.VAD, s.sink)
	s.queue = queue.New(m.cfg.Queue, m.transcribeFunc(s), m.resultFunc(s), s.sink)
	s.queue.Start(sctx)
	m.current.Set(s)

	trace.Logger(sctx).Info("session started", "target", sc.TargetLanguage, "source", sc.SourceLanguage, "voice", sc.VoiceID)
	e := events.New(events.SessionStarted)
	e.TargetLang, e.SourceLang = sc.TargetLanguage, sc.SourceLanguage
	s.sink.Emit(e)
	return id, nil
}

// StopSession ends the current session. In-flight work is cancelled and its
// results are discarded.
func (m *Manager) StopSession() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	s := m.current.Swap(nil)
	if s == nil {
		return apperrors.ErrNoSession
	}
	s.cancel()
	s.queue.Stop()
	s.guard.Reset()
	s.vad.Reset()
	s.reset()

	trace.Logger(s.ctx).Info("session stopped", "duration", time.Since(s.startedAt).Round(time.Millisecond))
	s.sink.Emit(events.New(events.SessionStopped))
	return nil
}

func (m *Manager) fillDefaults(sc SessionConfig) SessionConfig {
	d := m.cfg.Defaults
	if sc.TargetLanguage == "" {
		sc.TargetLanguage = d.TargetLanguage
	}
	if sc.SourceLanguage == "" {
		sc.SourceLanguage = d.SourceLanguage
	}
	if sc.VoiceID == "" {
		sc.VoiceID = d.VoiceID
	}
	if sc.OutputRouting == "" {
		sc.OutputRouting = d.OutputRouting
	}
	return sc
}

// HandleSegment feeds one captured segment into the session. A completed
// utterance is conditioned and enqueued for transcription.
func (m *Manager) HandleSegment(ctx context.Context, seg pcm.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := m.current.Get()
	if s == nil {
		return apperrors.ErrNoSession
	}
	m.stats.segments.Add(1)

	act, tr := s.vad.Process(seg)
	if act.IsActive {
		m.stats.speech.Add(1)
	}
	utt, ready := s.push(seg, act.IsActive, tr, m.cfg.MaxUtterance)
	if !ready {
		return nil
	}
	return m.submit(s, utt)
}

func (m *Manager) submit(s *session, utt pcm.Segment) error {
	log := trace.Logger(s.ctx)

	payload, issues, err := m.conditioner.Condition(utt)
	if err != nil || len(issues) > 0 {
		m.stats.invalid.Add(1)
		appErr := apperrors.AudioFormatError(issues)
		if err != nil {
			appErr.Cause = err
		}
		log.Warn("discarding invalid utterance", "issues", issues, "error", err)
		e := events.New(events.ItemFailed)
		e.Err = appErr.Error()
		s.sink.Emit(e)
		return nil
	}

	id, err := s.queue.Enqueue(utt, payload, DefaultPriority, -1)
	if err != nil {
		m.stats.rejected.Add(1)
		log.Warn("utterance rejected", "error", err)
		return err
	}
	m.stats.utterances.Add(1)
	log.Debug("utterance queued", "item", id, "duration", utt.Duration(), "bytes", len(payload))
	return nil
}

func (m *Manager) transcribeFunc(s *session) queue.ProcessFunc[grpcclient.Transcription] {
	return func(ctx context.Context, item queue.Item) (grpcclient.Transcription, error) {
		return m.transcriber.Transcribe(ctx, item.Payload, s.cfg.SourceLanguage)
	}
}

func (m *Manager) resultFunc(s *session) func(queue.Result[grpcclient.Transcription]) {
	return func(res queue.Result[grpcclient.Transcription]) {
		if !m.isCurrent(s) {
			return
		}
		if res.Err != nil {
			m.stats.transcribeFailed.Add(1)
			return
		}
		m.stats.transcribed.Add(1)

		t := res.Value
		text := strings.TrimSpace(t.Text)
		if text == "" || (t.Confidence > 0 && t.Confidence < m.cfg.MinTranscriptConfidence) {
			m.stats.dropped.Add(1)
			trace.Logger(s.ctx).Debug("dropping transcription", "item", res.Item.ID, "confidence", t.Confidence, "empty", text == "")
			e := events.New(events.TranscriptionDropped)
			e.ItemID = res.Item.ID
			e.Text = text
			if text == "" {
				e.Reason = "empty"
			} else {
				e.Reason = "low_confidence"
			}
			s.sink.Emit(e)
			return
		}

		lang := t.Language
		if lang == "" {
			lang = s.cfg.SourceLanguage
		}
		_, _ = m.process(s.ctx, s, res.Item.ID, text, lang)
	}
}

// ProcessTranscription runs the translation cycle for text on the current
// session. The error is non-nil only when translation itself failed.
func (m *Manager) ProcessTranscription(ctx context.Context, text, sourceLang string) (Outcome, error) {
	s := m.current.Get()
	if s == nil {
		return Outcome{}, apperrors.ErrNoSession
	}
	// Stopping the session must still abort the call.
	ctx, cancel := context.WithCancel(trace.WithSession(ctx, s.id))
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	return m.process(ctx, s, "", text, sourceLang)
}

// process runs one guarded translate/synthesize cycle. itemID names the
// queue item the text came from, if any.
func (m *Manager) process(ctx context.Context, s *session, itemID, text, sourceLang string) (Outcome, error) {
	log := trace.Logger(ctx)
	out := Outcome{Text: text}

	if reason, ok := s.guard.Admit(text); !ok {
		m.stats.skip(reason)
		log.Debug("translation skipped", "reason", reason, "text", text)
		e := events.New(events.TranslationSkipped)
		e.Text = text
		e.Reason = string(reason)
		s.sink.Emit(e)
		out.Skipped, out.Reason = true, reason
		return out, nil
	}

	translation, err := resilience.ExecuteWithRetry(ctx, m.cfg.Retry, s.sink, func(ctx context.Context) (grpcclient.Translation, error) {
		return m.translator.Translate(ctx, text, s.cfg.TargetLanguage, sourceLang)
	})
	if err != nil {
		s.guard.Finish(text, "", false)
		m.stats.translateFailed.Add(1)
		log.Error("translation failed", "error", err)
		if m.isCurrent(s) && ctx.Err() == nil {
			e := events.New(events.TranslationFailed)
			e.ItemID = itemID
			e.Text = text
			e.SourceLang = sourceLang
			e.TargetLang = s.cfg.TargetLanguage
			e.Reason = apperrors.As(err).Kind.String()
			e.Err = err.Error()
			s.sink.Emit(e)
		}
		return out, err
	}
	out.TranslatedText = translation.TranslatedText

	out.Audio, out.SynthesisErr = resilience.ExecuteWithRetry(ctx, m.cfg.Retry, s.sink, func(ctx context.Context) ([]byte, error) {
		return m.synthesizer.Synthesize(ctx, out.TranslatedText, s.cfg.VoiceID)
	})
	if out.SynthesisErr != nil {
		m.stats.synthesisFailed.Add(1)
		log.Warn("synthesis failed, delivering text only", "error", out.SynthesisErr)
	}

	if !m.isCurrent(s) || ctx.Err() != nil {
		s.guard.Finish(text, "", false)
		log.Debug("discarding translation from stopped session")
		return out, apperrors.ErrNoSession
	}
	s.guard.Finish(text, out.TranslatedText, true)
	m.stats.translated.Add(1)

	log.Info("translation ready", "text", text, "translation", out.TranslatedText, "audio_bytes", len(out.Audio))
	e := events.New(events.TranslationReady)
	e.Text = text
	e.TranslatedText = out.TranslatedText
	e.SourceLang = sourceLang
	e.TargetLang = s.cfg.TargetLanguage
	e.Audio = out.Audio
	if out.SynthesisErr != nil {
		e.Err = out.SynthesisErr.Error()
	}
	s.sink.Emit(e)
	return out, nil
}

func (m *Manager) isCurrent(s *session) bool {
	return m.current.Get() == s
}

// Listening reports whether a session is active and no translation cycle is
// holding the guard.
func (m *Manager) Listening() bool {
	s := m.current.Get()
	return s != nil && !s.guard.State().IsProcessingTranslation
}

// State returns the current session view.
func (m *Manager) State() SessionState {
	s := m.current.Get()
	if s == nil {
		return SessionState{Config: m.cfg.Defaults}
	}
	g := s.guard.State()
	return SessionState{
		Active:     true,
		SessionID:  s.id,
		Config:     s.cfg,
		StartedAt:  s.startedAt,
		Listening:  !g.IsProcessingTranslation,
		VoiceState: s.vad.State().String(),
		Guard:      g,
	}
}

// Session returns the active session's id and config.
func (m *Manager) Session() (string, SessionConfig, bool) {
	s := m.current.Get()
	if s == nil {
		return "", SessionConfig{}, false
	}
	return s.id, s.cfg, true
}

// Stats returns pipeline counters and, with a session active, queue stats.
func (m *Manager) Stats() Stats {
	st := m.stats.snapshot()
	if s := m.current.Get(); s != nil {
		st.Queue = s.queue.Stats()
	}
	return st
}
