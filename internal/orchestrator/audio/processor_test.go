package audio

import (
	"math"
	"testing"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
)

func tone(n, rate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		src     int
		dst     int
		wantLen int
	}{
		{"identity", 100, 16000, 16000, 100},
		{"downsample", 44100, 44100, 16000, 16000},
		{"upsample", 8000, 8000, 16000, 16000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resample(make([]float32, tt.in), tt.src, tt.dst)
			if len(out) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(out), tt.wantLen)
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]float32{0, 1, 2, 3}, 2, 4)
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize([]float32{0.1, -0.3, 0.2})
	if got := Peak(out); math.Abs(got-NormalizePeak) > 1e-6 {
		t.Errorf("peak = %v, want %v", got, NormalizePeak)
	}

	zeros := []float32{0, 0, 0}
	if got := Normalize(zeros); &got[0] != &zeros[0] {
		t.Error("all-zero input should be returned unchanged")
	}
}

func TestNoiseGate(t *testing.T) {
	out := NoiseGate([]float32{0.005, -0.5, -0.001, 0.02}, 0.01)
	want := []float32{0, -0.5, 0, 0.02}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestHighPassFilterRemovesDC(t *testing.T) {
	dc := make([]float32, 16000)
	for i := range dc {
		dc[i] = 0.5
	}
	out := HighPassFilter(dc, 16000, 80)
	if tail := math.Abs(float64(out[len(out)-1])); tail > 1e-3 {
		t.Errorf("DC component not removed, tail = %v", tail)
	}
}

func TestConditionPreservesDurationInvariant(t *testing.T) {
	p := NewProcessor(Config{TargetSampleRate: 16000})
	seg := pcm.NewSegment(tone(44100, 44100, 440, 0.3), 44100, 1, time.Now())

	prepared := p.Prepare(seg)
	want := float64(len(prepared.Samples)) / float64(prepared.SampleRate)
	if prepared.DurationSec != want {
		t.Errorf("DurationSec = %v, want %v", prepared.DurationSec, want)
	}
	if prepared.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", prepared.SampleRate)
	}
	if prepared.ID != seg.ID {
		t.Error("segment ID should survive conditioning")
	}

	payload, issues, err := p.Condition(seg)
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v, want none", issues)
	}
	if !pcm.IsWAV(payload) {
		t.Error("payload is not WAV")
	}
}

func TestConditionStereoDownmix(t *testing.T) {
	p := NewProcessor(Config{TargetSampleRate: 16000})
	seg := pcm.NewSegment(tone(32000, 16000, 440, 0.3), 16000, 2, time.Now())

	prepared := p.Prepare(seg)
	if prepared.ChannelCount != 1 {
		t.Errorf("ChannelCount = %d, want 1", prepared.ChannelCount)
	}
	if prepared.DurationSec != seg.DurationSec {
		t.Errorf("DurationSec = %v, want %v", prepared.DurationSec, seg.DurationSec)
	}
}

func TestValidate(t *testing.T) {
	small, _ := pcm.EncodeWAV(make([]float32, 10), 16000, 1)
	ok, _ := pcm.EncodeWAV(make([]float32, 1600), 16000, 1)

	tests := []struct {
		name       string
		payload    []byte
		wantIssues int
	}{
		{"valid", ok, 0},
		{"too small", small, 1},
		{"garbage", make([]byte, 2048), 1},
		{"empty", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.payload); len(got) != tt.wantIssues {
				t.Errorf("Validate() = %v, want %d issues", got, tt.wantIssues)
			}
		})
	}
}

func TestUnsupportedFormatFallsBack(t *testing.T) {
	p := NewProcessor(Config{Format: "mp3"})
	if p.cfg.Format != FormatWAV {
		t.Errorf("Format = %q, want %q", p.cfg.Format, FormatWAV)
	}
}
