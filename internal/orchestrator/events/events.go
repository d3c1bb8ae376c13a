// Package events defines the pipeline's observable lifecycle and the sinks
// that consume it.
package events

import (
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
)

// Type names a lifecycle event.
type Type string

// VAD events.
const (
	VoiceStarted   Type = "voiceStarted"
	VoiceEnded     Type = "voiceEnded"
	ActivityUpdate Type = "activityUpdate"
)

// Queue events.
const (
	ItemAdded     Type = "itemAdded"
	ItemCompleted Type = "itemCompleted"
	ItemFailed    Type = "itemFailed"
	ItemRetrying  Type = "itemRetrying"
)

// Retry wrapper events.
const (
	RetryAttempt   Type = "retryAttempt"
	RetryDelaying  Type = "retryDelaying"
	RetryAbandoned Type = "retryAbandoned"
	ErrorRecovered Type = "errorRecovered"
)

// Session events.
const (
	TranslationReady     Type = "translationReady"
	TranscriptionDropped Type = "transcriptionDropped"
	TranslationSkipped   Type = "translationSkipped"
	TranslationFailed    Type = "translationFailed"
	SessionStarted       Type = "sessionStarted"
	SessionStopped       Type = "sessionStopped"
)

// Event is a single lifecycle notification. Only the fields relevant to the
// Type are set.
type Event struct {
	Type           Type               `json:"type"`
	SessionID      string             `json:"sessionId,omitempty"`
	Time           time.Time          `json:"time"`
	ItemID         string             `json:"itemId,omitempty"`
	Activity       *pcm.VoiceActivity `json:"activity,omitempty"`
	Text           string             `json:"text,omitempty"`
	TranslatedText string             `json:"translatedText,omitempty"`
	SourceLang     string             `json:"sourceLang,omitempty"`
	TargetLang     string             `json:"targetLang,omitempty"`
	Audio          []byte             `json:"audio,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	Attempt        int                `json:"attempt,omitempty"`
	Delay          time.Duration      `json:"delay,omitempty"`
	Err            string             `json:"error,omitempty"`
}

// New stamps an event with the current time.
func New(t Type) Event { return Event{Type: t, Time: time.Now()} }

// Sink receives events. Emit must not block for long; slow consumers should
// sit behind a Bus.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans one event out to several sinks in order. Nil sinks are skipped.
type Multi []Sink

// Emit forwards e to every sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// WithSession stamps every event passing through with a session id.
func WithSession(sink Sink, sessionID string) Sink {
	return SinkFunc(func(e Event) {
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		sink.Emit(e)
	})
}
