// Package pcm holds the sample-level types that flow through the pipeline and
// the WAV container used on the wire.
package pcm

import (
	"time"

	"github.com/google/uuid"
)

// Segment is a bounded chunk of captured audio. Samples are interleaved when
// ChannelCount > 1. DurationSec always equals frames/SampleRate; build
// segments with NewSegment or WithSamples to keep that true.
type Segment struct {
	ID           string
	Samples      []float32
	SampleRate   int
	ChannelCount int
	DurationSec  float64
	Timestamp    time.Time
}

// NewSegment creates a segment with a fresh ID and a derived duration.
func NewSegment(samples []float32, sampleRate, channels int, ts time.Time) Segment {
	if channels < 1 {
		channels = 1
	}
	return Segment{
		ID:           uuid.NewString(),
		Samples:      samples,
		SampleRate:   sampleRate,
		ChannelCount: channels,
		DurationSec:  Duration(len(samples), sampleRate, channels),
		Timestamp:    ts,
	}
}

// WithSamples returns a copy of s carrying new samples at a new rate, with the
// duration recomputed. ID and timestamp are kept.
func (s Segment) WithSamples(samples []float32, sampleRate int) Segment {
	s.Samples = samples
	s.SampleRate = sampleRate
	s.DurationSec = Duration(len(samples), sampleRate, s.ChannelCount)
	return s
}

// Frames returns the number of sample frames.
func (s Segment) Frames() int {
	if s.ChannelCount < 1 {
		return len(s.Samples)
	}
	return len(s.Samples) / s.ChannelCount
}

// Duration returns the segment length as a time.Duration.
func (s Segment) Duration() time.Duration {
	return time.Duration(s.DurationSec * float64(time.Second))
}

// Duration computes seconds of audio for n interleaved samples.
func Duration(n, sampleRate, channels int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	if channels < 1 {
		channels = 1
	}
	return float64(n/channels) / float64(sampleRate)
}

// Concat joins segments that share rate and channel layout into one segment.
// The result takes the first segment's timestamp.
func Concat(segs []Segment) Segment {
	if len(segs) == 0 {
		return Segment{}
	}
	total := 0
	for _, s := range segs {
		total += len(s.Samples)
	}
	samples := make([]float32, 0, total)
	for _, s := range segs {
		samples = append(samples, s.Samples...)
	}
	first := segs[0]
	return NewSegment(samples, first.SampleRate, first.ChannelCount, first.Timestamp)
}
