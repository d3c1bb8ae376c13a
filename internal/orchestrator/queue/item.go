package queue

import (
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
)

// Status is the map an item currently lives in.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item is one transcription job. RetryCount never exceeds MaxRetries.
type Item struct {
	ID         string
	Segment    pcm.Segment
	Payload    []byte
	Priority   int
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	Status     Status
	LastError  *apperrors.AppError

	seq uint64
}

// before reports whether a dispatches ahead of b: higher priority first, then
// earlier arrival.
func (a *Item) before(b *Item) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

// release drops the audio once the item reaches a terminal map. ID, timing
// and DurationSec stay for diagnostics.
func (a *Item) release() {
	a.Payload = nil
	a.Segment.Samples = nil
}

// Result is the terminal outcome of an item.
type Result[R any] struct {
	Item           Item
	Value          R
	Err            *apperrors.AppError
	ProcessingTime time.Duration
}

// Stats is an aggregate snapshot of the queue.
type Stats struct {
	Queued                int           `json:"queued"`
	Processing            int           `json:"processing"`
	InFlight              int           `json:"inFlight"`
	Completed             int           `json:"completed"`
	Failed                int           `json:"failed"`
	AverageProcessingTime time.Duration `json:"averageProcessingTime"`
	QueueLength           int           `json:"queueLength"`
}
