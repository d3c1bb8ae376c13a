package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/grpcclient"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/queue"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/vad"
	"github.com/GriffinCanCode/voice-translator/internal/syncx"
)

// SessionConfig is supplied by the host when a session starts.
type SessionConfig struct {
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	VoiceID        string `json:"voiceId"`
	OutputRouting  string `json:"outputRouting"`
}

// session is the state owned by one StartSession..StopSession span. Nothing
// outside the manager holds a reference, so dropping it ends the session.
type session struct {
	id        string
	cfg       SessionConfig
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	sink      events.Sink

	vad   *vad.Detector
	queue *queue.Queue[grpcclient.Transcription]
	guard *feedback.Guard

	// utterance assembly, guarded by segMu
	segMu     sync.Mutex
	inSpeech  bool
	preroll   *syncx.Ring[pcm.Segment]
	utterance []pcm.Segment
	voiced    []bool
	uttDur    time.Duration
}

// push feeds one classified segment into utterance assembly and returns a
// finished utterance when one is ready.
func (s *session) push(seg pcm.Segment, active bool, tr vad.Transition, maxUtterance time.Duration) (pcm.Segment, bool) {
	s.segMu.Lock()
	defer s.segMu.Unlock()

	switch {
	case tr == vad.Started:
		s.inSpeech = true
		s.utterance = append(s.utterance[:0], s.preroll.Items()...)
		s.voiced = s.voiced[:0]
		for range s.utterance {
			s.voiced = append(s.voiced, false)
		}
		s.uttDur = 0
		for _, p := range s.utterance {
			s.uttDur += p.Duration()
		}
		s.preroll.Reset()
		s.appendLocked(seg, active)
	case s.inSpeech:
		s.appendLocked(seg, active)
	default:
		s.preroll.Push(seg)
		return pcm.Segment{}, false
	}

	if tr == vad.Ended {
		s.inSpeech = false
		return s.flushLocked(true), true
	}
	if s.uttDur >= maxUtterance {
		return s.flushLocked(false), true
	}
	return pcm.Segment{}, false
}

func (s *session) appendLocked(seg pcm.Segment, active bool) {
	s.utterance = append(s.utterance, seg)
	s.voiced = append(s.voiced, active)
	s.uttDur += seg.Duration()
}

// flushLocked concatenates the utterance. When trim is set, silent segments
// beyond TrailingSilenceSegments are dropped from the tail.
func (s *session) flushLocked(trim bool) pcm.Segment {
	parts := s.utterance
	if trim {
		end := len(parts)
		for end > 0 && !s.voiced[end-1] {
			end--
		}
		parts = parts[:min(end+TrailingSilenceSegments, len(parts))]
	}
	out := pcm.Concat(parts)
	s.utterance, s.voiced, s.uttDur = nil, nil, 0
	return out
}

func (s *session) reset() {
	s.segMu.Lock()
	defer s.segMu.Unlock()
	s.inSpeech = false
	s.preroll.Reset()
	s.utterance, s.voiced, s.uttDur = nil, nil, 0
}
