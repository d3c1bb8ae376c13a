package audio

import (
	"fmt"
	"log/slog"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
)

// Config for the conditioning chain
type Config struct {
	TargetSampleRate   int
	HighPassCutoffHz   float64
	NoiseGateThreshold float64
	Format             string
}

// Processor turns raw segments into payloads the transcription service accepts
type Processor struct {
	cfg Config
}

// NewProcessor creates a processor, filling zero fields with defaults
func NewProcessor(cfg Config) *Processor {
	if cfg.TargetSampleRate == 0 {
		cfg.TargetSampleRate = DefaultTargetSampleRate
	}
	if cfg.HighPassCutoffHz == 0 {
		cfg.HighPassCutoffHz = DefaultHighPassCutoffHz
	}
	if cfg.NoiseGateThreshold == 0 {
		cfg.NoiseGateThreshold = DefaultNoiseGateThreshold
	}
	if cfg.Format == "" {
		cfg.Format = FormatWAV
	}
	if cfg.Format != FormatWAV {
		slog.Warn("unsupported audio format, falling back to wav", "format", cfg.Format)
		cfg.Format = FormatWAV
	}
	return &Processor{cfg: cfg}
}

// Prepare runs the sample-domain stages and returns the conditioned segment
// at the target rate.
func (p *Processor) Prepare(seg pcm.Segment) pcm.Segment {
	// The filters work on a single channel.
	seg = Downmix(seg)
	data := HighPassFilter(seg.Samples, seg.SampleRate, p.cfg.HighPassCutoffHz)
	data = NoiseGate(data, p.cfg.NoiseGateThreshold)
	data = Normalize(data)
	data = Resample(data, seg.SampleRate, p.cfg.TargetSampleRate)
	return seg.WithSamples(data, p.cfg.TargetSampleRate)
}

// Condition prepares seg and encodes it. Validation problems come back as
// issues rather than an error; err is reserved for encoding failures.
func (p *Processor) Condition(seg pcm.Segment) (payload []byte, issues []string, err error) {
	prepared := p.Prepare(seg)
	payload, err = pcm.EncodeWAV(prepared.Samples, prepared.SampleRate, prepared.ChannelCount)
	if err != nil {
		return nil, nil, fmt.Errorf("encode segment %s: %w", seg.ID, err)
	}
	return payload, Validate(payload), nil
}

// Validate checks a payload against the service limits.
func Validate(payload []byte) []string {
	var issues []string
	if len(payload) > MaxPayloadBytes {
		issues = append(issues, fmt.Sprintf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadBytes))
	}
	if len(payload) < MinPayloadBytes {
		issues = append(issues, fmt.Sprintf("payload too small: %d bytes (min %d)", len(payload), MinPayloadBytes))
	}
	if !pcm.IsWAV(payload) {
		issues = append(issues, "missing RIFF/WAVE header")
	}
	return issues
}

// Downmix averages interleaved channels into mono.
func Downmix(seg pcm.Segment) pcm.Segment {
	ch := seg.ChannelCount
	if ch <= 1 {
		return seg
	}
	frames := len(seg.Samples) / ch
	mono := make([]float32, frames)
	for f := range frames {
		var sum float32
		for c := range ch {
			sum += seg.Samples[f*ch+c]
		}
		mono[f] = sum / float32(ch)
	}
	seg.ChannelCount = 1
	return seg.WithSamples(mono, seg.SampleRate)
}
