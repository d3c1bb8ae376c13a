// Package feedback keeps the translator from re-translating its own
// synthesized speech when the speakers bleed into the microphone.
package feedback

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/GriffinCanCode/voice-translator/internal/syncx"
)

// Guard defaults
const (
	DefaultCooldown      = 10 * time.Second
	DefaultMinInterval   = 3 * time.Second
	DefaultMinTextLength = 5
	DefaultHistorySize   = 5
)

// Reason names the admission check that rejected a transcription.
type Reason string

const (
	ReasonInFlight Reason = "translation_in_flight"
	ReasonTooShort Reason = "too_short"
	ReasonCooldown Reason = "cooldown"
	ReasonTooSoon  Reason = "too_soon"
	ReasonRepeat   Reason = "repeat_of_last_input"
	ReasonRecent   Reason = "recently_processed"
	ReasonEcho     Reason = "echo_of_output"
)

// Config holds the guard tunables.
type Config struct {
	Cooldown      time.Duration // since the last completed translation
	MinInterval   time.Duration // since the last admitted attempt
	MinTextLength int           // in runes, after trimming
	HistorySize   int
	Now           func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MinTextLength <= 0 {
		c.MinTextLength = DefaultMinTextLength
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// State is a snapshot of the tracking fields.
type State struct {
	LastTranslatedText      string    `json:"lastTranslatedText"`
	LastInputText           string    `json:"lastInputText"`
	LastTranslationTime     time.Time `json:"lastTranslationTime"`
	LastProcessingTime      time.Time `json:"lastProcessingTime"`
	RecentTranscriptions    []string  `json:"recentTranscriptions"`
	IsProcessingTranslation bool      `json:"isProcessingTranslation"`
}

// Guard owns the feedback tracking state. Every mutation goes through Admit,
// Finish or Reset, so the checks and the fields they read stay consistent.
type Guard struct {
	cfg Config

	mu                 sync.Mutex
	lastTranslatedText string
	lastInputText      string
	lastTranslation    time.Time
	lastProcessing     time.Time
	recent             *syncx.Ring[string]
	processing         bool
}

// New creates a guard.
func New(cfg Config) *Guard {
	cfg = cfg.withDefaults()
	return &Guard{cfg: cfg, recent: syncx.NewRing[string](cfg.HistorySize)}
}

// Admit runs the admission checks in order. On success the guard is locked
// for this text until Finish is called; on failure the reason is returned and
// nothing changes.
func (g *Guard) Admit(text string) (Reason, bool) {
	text = strings.TrimSpace(text)

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.cfg.Now()

	switch {
	case g.processing:
		return ReasonInFlight, false
	case utf8.RuneCountInString(text) < g.cfg.MinTextLength:
		return ReasonTooShort, false
	case !g.lastTranslation.IsZero() && now.Sub(g.lastTranslation) < g.cfg.Cooldown:
		return ReasonCooldown, false
	case !g.lastProcessing.IsZero() && now.Sub(g.lastProcessing) < g.cfg.MinInterval:
		return ReasonTooSoon, false
	case text == g.lastInputText:
		return ReasonRepeat, false
	case syncx.Contains(g.recent, text):
		return ReasonRecent, false
	case isEcho(text, g.lastTranslatedText):
		return ReasonEcho, false
	}

	g.processing = true
	g.lastProcessing = now
	return "", true
}

// Finish records the outcome of an admitted cycle and always releases the
// lock. Tracking fields move only when a translation was produced.
func (g *Guard) Finish(input, translated string, ok bool) {
	input = strings.TrimSpace(input)

	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.lastTranslatedText = translated
		g.lastInputText = input
		g.lastTranslation = g.cfg.Now()
		g.recent.Push(input)
	}
	g.processing = false
}

// Reset clears all tracking state.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastTranslatedText, g.lastInputText = "", ""
	g.lastTranslation, g.lastProcessing = time.Time{}, time.Time{}
	g.recent.Reset()
	g.processing = false
	slog.Debug("feedback guard reset")
}

// State returns a snapshot of the tracking fields.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{
		LastTranslatedText:      g.lastTranslatedText,
		LastInputText:           g.lastInputText,
		LastTranslationTime:     g.lastTranslation,
		LastProcessingTime:      g.lastProcessing,
		RecentTranscriptions:    g.recent.Items(),
		IsProcessingTranslation: g.processing,
	}
}

// isEcho reports whether text equals, contains or is contained by the last
// synthesized output after case and quote normalization.
func isEcho(text, lastOutput string) bool {
	out := normalize(lastOutput)
	if out == "" {
		return false
	}
	in := normalize(text)
	if in == "" {
		return false
	}
	return in == out || strings.Contains(in, out) || strings.Contains(out, in)
}

var quoteStripper = strings.NewReplacer(
	`"`, "", "'", "", "`", "",
	"“", "", "”", "", "‘", "", "’", "",
	"«", "", "»", "",
)

func normalize(s string) string {
	return strings.TrimSpace(quoteStripper.Replace(strings.ToLower(s)))
}
