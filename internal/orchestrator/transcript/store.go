// Package transcript keeps the recent conversation for the host UI.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
	"github.com/GriffinCanCode/voice-translator/internal/syncx"
)

// Entry is one heard utterance and, when it was translated, its translation.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Text        string    `json:"text"`
	Translation string    `json:"translation,omitempty"`
	TargetLang  string    `json:"targetLang,omitempty"`
	Skipped     string    `json:"skipped,omitempty"`
}

// Store interface for transcript operations.
type Store interface {
	events.Sink
	Add(e Entry)
	Recent(seconds int) []Entry
	GetRecent(seconds int) string
}

// MemoryStore implements bounded in-memory transcript storage.
type MemoryStore struct {
	mu      sync.RWMutex
	entries *syncx.Ring[Entry]
	now     func() time.Time
}

// NewStore creates a new transcript store.
func NewStore(maxEntries int) *MemoryStore {
	return &MemoryStore{entries: syncx.NewRing[Entry](maxEntries), now: time.Now}
}

// Emit records translationReady events, and skipped transcriptions that were
// not the system's own voice.
func (s *MemoryStore) Emit(e events.Event) {
	switch e.Type {
	case events.TranslationReady:
		s.Add(Entry{Timestamp: e.Time, Text: e.Text, Translation: e.TranslatedText, TargetLang: e.TargetLang})
	case events.TranslationSkipped:
		if e.Reason == string(feedback.ReasonEcho) {
			return
		}
		s.Add(Entry{Timestamp: e.Time, Text: e.Text, Skipped: e.Reason})
	}
}

// Add stores a new transcript entry, evicting the oldest beyond capacity.
func (s *MemoryStore) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Push(e)
}

// Recent returns entries from the last N seconds, oldest first.
func (s *MemoryStore) Recent(seconds int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-time.Duration(seconds) * time.Second)
	out := make([]Entry, 0, s.entries.Len())
	s.entries.Each(func(e Entry) bool {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// GetRecent renders the last N seconds as plain text, one line per side.
func (s *MemoryStore) GetRecent(seconds int) string {
	var parts []string
	for _, e := range s.Recent(seconds) {
		parts = append(parts, "HEARD: "+e.Text)
		if e.Translation != "" {
			parts = append(parts, strings.ToUpper(e.TargetLang)+": "+e.Translation)
		}
	}
	return strings.Join(parts, "\n")
}

// Entries returns a copy of all entries.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Items()
}

// Reset drops every entry.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Reset()
}
