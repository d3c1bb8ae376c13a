package audio

import (
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		expected string
	}{
		// System audio loopback devices
		{"blackhole lowercase", "BlackHole 2ch", SourceSystem},
		{"blackhole uppercase", "BLACKHOLE", SourceSystem},
		{"vb-cable", "VB-Cable", SourceSystem},
		{"loopback", "Loopback Audio", SourceSystem},
		{"monitor", "Monitor of Built-in Audio", SourceSystem},
		{"soundflower", "Soundflower (2ch)", SourceSystem},

		// Microphone devices
		{"microphone", "Built-in Microphone", SourceUser},
		{"mic short", "External Mic", SourceUser},
		{"input", "Line Input", SourceUser},

		// Unknown devices
		{"speakers", "External Speakers", ""},
		{"hdmi", "HDMI Output", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDevice(tt.device); got != tt.expected {
				t.Errorf("classifyDevice(%q) = %q, want %q", tt.device, got, tt.expected)
			}
		})
	}
}

func TestSelectDevice(t *testing.T) {
	devices := []*portaudio.DeviceInfo{
		{Name: "External Speakers", MaxOutputChannels: 2},
		{Name: "USB Mic", MaxInputChannels: 1},
		{Name: "MacBook Pro Microphone", MaxInputChannels: 1},
		{Name: "iPhone Microphone", MaxInputChannels: 1},
		{Name: "BlackHole 2ch", MaxInputChannels: 2},
	}

	tests := []struct {
		name string
		cfg  CaptureConfig
		want string
	}{
		{"prefers built-in mic", CaptureConfig{Channels: 1}, "MacBook Pro Microphone"},
		{"system audio", CaptureConfig{Channels: 1, CaptureSystemAudio: true}, "BlackHole 2ch"},
		{"named device", CaptureConfig{Channels: 1, Device: "usb"}, "USB Mic"},
		{"exclusions apply to named devices", CaptureConfig{Channels: 1, Device: "iphone", ExcludedDevices: []string{"iphone"}}, ""},
		{"stereo needs two channels", CaptureConfig{Channels: 2}, ""},
		{"stereo system audio", CaptureConfig{Channels: 2, CaptureSystemAudio: true}, "BlackHole 2ch"},
		{"excluded built-in", CaptureConfig{Channels: 1, ExcludedDevices: []string{"macbook"}}, "USB Mic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectDevice(devices, tt.cfg)
			name := ""
			if got != nil {
				name = got.Name
			}
			if name != tt.want {
				t.Errorf("selectDevice() = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s        string
		substr   string
		expected bool
	}{
		{"BlackHole 2ch", "blackhole", true},
		{"blackhole", "BLACKHOLE", true},
		{"Some BlackHole Device", "blackhole", true},
		{"External Speakers", "blackhole", false},
		{"", "test", false},
		{"test", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"_"+tt.substr, func(t *testing.T) {
			if got := containsIgnoreCase(tt.s, tt.substr); got != tt.expected {
				t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tt.s, tt.substr, got, tt.expected)
			}
		})
	}
}

func TestChunker(t *testing.T) {
	// 100ms at 16kHz mono is 1600 samples; reads of 1024 straddle boundaries.
	c := newChunker(16000, 1, 100*time.Millisecond)
	read := make([]float32, 1024)
	for i := range read {
		read[i] = 0.25
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var total int
	for i := range 5 {
		segs := c.push(read, start.Add(time.Duration(i)*64*time.Millisecond))
		for _, seg := range segs {
			total++
			if len(seg.Samples) != 1600 {
				t.Errorf("segment has %d samples, want 1600", len(seg.Samples))
			}
			if seg.DurationSec != 0.1 {
				t.Errorf("DurationSec = %v, want 0.1", seg.DurationSec)
			}
			if seg.ID == "" {
				t.Error("segment should have an id")
			}
		}
	}
	// 5*1024 = 5120 samples: three full segments, 320 buffered.
	if total != 3 {
		t.Errorf("segments = %d, want 3", total)
	}
	if len(c.buf) != 320 {
		t.Errorf("buffered = %d, want 320", len(c.buf))
	}
}

func TestChunkerStereo(t *testing.T) {
	c := newChunker(8000, 2, 50*time.Millisecond)
	segs := c.push(make([]float32, 800), time.Now())
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if segs[0].ChannelCount != 2 || segs[0].DurationSec != 0.05 {
		t.Errorf("segment = %d channels %.3fs, want 2 channels 0.050s", segs[0].ChannelCount, segs[0].DurationSec)
	}
}

func TestSegmentsAreIndependent(t *testing.T) {
	c := newChunker(1000, 1, 10*time.Millisecond)
	buf := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	first := c.push(buf, time.Now())
	for i := range buf {
		buf[i] = 0
	}
	if first[0].Samples[0] != 1 {
		t.Error("segment must not alias the device buffer")
	}
}

func TestDescribe(t *testing.T) {
	infos := []*portaudio.DeviceInfo{
		{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000},
		{Name: "Teams Audio", MaxInputChannels: 2},
		{Name: "External Speakers", MaxOutputChannels: 2},
	}
	got := describe(infos, []string{"teams"})
	if len(got) != 3 {
		t.Fatalf("describe() returned %d devices", len(got))
	}
	if got[0].Source != SourceUser || got[0].Excluded {
		t.Errorf("mic = %+v", got[0])
	}
	if !got[1].Excluded {
		t.Error("teams device should be excluded")
	}
	if got[2].Source != "" {
		t.Errorf("output device source = %q, want empty", got[2].Source)
	}
}
