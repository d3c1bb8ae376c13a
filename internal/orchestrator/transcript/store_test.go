package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(30)
	s.Add(Entry{Text: "Hello", Translation: "Hola", TargetLang: "es"})

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "Hello" || entries[0].Translation != "Hola" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5)
	for i := 0; i < 10; i++ {
		s.Add(Entry{Text: "msg"})
	}

	if len(s.Entries()) != 5 {
		t.Errorf("expected 5 entries, got %d", len(s.Entries()))
	}
}

func TestGetRecent(t *testing.T) {
	s := NewStore(30)
	s.Add(Entry{Timestamp: time.Now().Add(-5 * time.Minute), Text: "Old"})
	s.Add(Entry{Text: "Recent", Translation: "Reciente", TargetLang: "es"})

	recent := s.GetRecent(60)
	if strings.Contains(recent, "Old") {
		t.Error("should not contain old message")
	}
	if !strings.Contains(recent, "HEARD: Recent") || !strings.Contains(recent, "ES: Reciente") {
		t.Errorf("should contain recent message, got %q", recent)
	}
	if got := len(s.Recent(600)); got != 2 {
		t.Errorf("Recent(600) = %d entries, want 2", got)
	}
}

func TestEmit(t *testing.T) {
	s := NewStore(30)

	ready := events.New(events.TranslationReady)
	ready.Text, ready.TranslatedText, ready.TargetLang = "Hello", "Hola", "es"
	s.Emit(ready)

	skipped := events.New(events.TranslationSkipped)
	skipped.Text, skipped.Reason = "Hello", string(feedback.ReasonRepeat)
	s.Emit(skipped)

	echo := events.New(events.TranslationSkipped)
	echo.Text, echo.Reason = "Hola", string(feedback.ReasonEcho)
	s.Emit(echo)

	s.Emit(events.New(events.VoiceStarted))

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Skipped != string(feedback.ReasonRepeat) {
		t.Errorf("skipped = %q", entries[1].Skipped)
	}
}

func TestReset(t *testing.T) {
	s := NewStore(3)
	s.Add(Entry{Text: "one"})
	s.Reset()
	if len(s.Entries()) != 0 {
		t.Error("expected empty store after reset")
	}
}
