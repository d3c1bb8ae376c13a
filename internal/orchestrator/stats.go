package orchestrator

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/queue"
)

// Stats is the diagnostics snapshot.
type Stats struct {
	SegmentsReceived        uint64            `json:"segmentsReceived"`
	SpeechSegments          uint64            `json:"speechSegments"`
	UtterancesSubmitted     uint64            `json:"utterancesSubmitted"`
	InvalidUtterances       uint64            `json:"invalidUtterances"`
	QueueRejections         uint64            `json:"queueRejections"`
	TranscriptionsCompleted uint64            `json:"transcriptionsCompleted"`
	TranscriptionsFailed    uint64            `json:"transcriptionsFailed"`
	TranscriptionsDropped   uint64            `json:"transcriptionsDropped"`
	TranslationsSkipped     map[string]uint64 `json:"translationsSkipped"`
	TranslationsCompleted   uint64            `json:"translationsCompleted"`
	TranslationsFailed      uint64            `json:"translationsFailed"`
	SynthesisFailures       uint64            `json:"synthesisFailures"`
	Queue                   queue.Stats       `json:"queue"`
}

type counters struct {
	segments         atomic.Uint64
	speech           atomic.Uint64
	utterances       atomic.Uint64
	invalid          atomic.Uint64
	rejected         atomic.Uint64
	transcribed      atomic.Uint64
	transcribeFailed atomic.Uint64
	dropped          atomic.Uint64
	translated       atomic.Uint64
	translateFailed  atomic.Uint64
	synthesisFailed  atomic.Uint64

	mu      sync.Mutex
	skipped map[feedback.Reason]uint64
}

func (c *counters) skip(r feedback.Reason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipped == nil {
		c.skipped = make(map[feedback.Reason]uint64)
	}
	c.skipped[r]++
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	skipped := make(map[string]uint64, len(c.skipped))
	for r, n := range c.skipped {
		skipped[string(r)] = n
	}
	c.mu.Unlock()

	return Stats{
		SegmentsReceived:        c.segments.Load(),
		SpeechSegments:          c.speech.Load(),
		UtterancesSubmitted:     c.utterances.Load(),
		InvalidUtterances:       c.invalid.Load(),
		QueueRejections:         c.rejected.Load(),
		TranscriptionsCompleted: c.transcribed.Load(),
		TranscriptionsFailed:    c.transcribeFailed.Load(),
		TranscriptionsDropped:   c.dropped.Load(),
		TranslationsSkipped:     skipped,
		TranslationsCompleted:   c.translated.Load(),
		TranslationsFailed:      c.translateFailed.Load(),
		SynthesisFailures:       c.synthesisFailed.Load(),
	}
}
