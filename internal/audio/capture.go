package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
)

// ErrNoDevice is returned when no capture device matches the configuration.
var ErrNoDevice = errors.New("no suitable capture device")

// CaptureConfig for the capturer
type CaptureConfig struct {
	SampleRate         int
	Channels           int
	ChunkDuration      time.Duration
	FramesPerBuffer    int
	BufferSize         int
	CaptureSystemAudio bool     // prefer a loopback device over the microphone
	ExcludedDevices    []string // name substrings never opened
	Device             string   // name substring; empty selects automatically
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultChannels
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = DefaultChunkDuration
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	return c
}

// Capturer reads one input device and publishes fixed-duration segments with
// backpressure: when the consumer falls behind, segments are dropped.
type Capturer struct {
	cfg   CaptureConfig
	outCh chan pcm.Segment

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
	device  string
	dropped atomic.Uint64
}

// NewCapturer creates a new audio capturer.
func NewCapturer(cfg CaptureConfig) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	cfg = cfg.withDefaults()
	return &Capturer{cfg: cfg, outCh: make(chan pcm.Segment, cfg.BufferSize)}, nil
}

// Output returns the channel for receiving segments. It is never closed.
func (c *Capturer) Output() <-chan pcm.Segment { return c.outCh }

// Dropped reports segments discarded because Output was full.
func (c *Capturer) Dropped() uint64 { return c.dropped.Load() }

// Device returns the name of the open device.
func (c *Capturer) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Start opens the selected device and begins reading until ctx is done or
// Stop is called. Starting a running capturer is a no-op.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	dev := selectDevice(devices, c.cfg)
	if dev == nil {
		return ErrNoDevice
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: c.cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.cfg.SampleRate),
		FramesPerBuffer: c.cfg.FramesPerBuffer,
	}
	buf := make([]float32, c.cfg.FramesPerBuffer*c.cfg.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("open %s: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start %s: %w", dev.Name, err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.stream, c.device, c.running = stream, dev.Name, true
	c.done = make(chan struct{})
	slog.Info("started audio capture", "device", dev.Name, "rate", c.cfg.SampleRate, "channels", c.cfg.Channels)

	go c.readLoop(ctx, stream, buf, c.done)
	return nil
}

func (c *Capturer) readLoop(ctx context.Context, stream *portaudio.Stream, buf []float32, done chan struct{}) {
	defer close(done)
	ch := newChunker(c.cfg.SampleRate, c.cfg.Channels, c.cfg.ChunkDuration)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				slog.Debug("audio input overflowed", "device", c.device)
				continue
			}
			slog.Warn("audio read error", "device", c.device, "error", err)
			return
		}

		for _, seg := range ch.push(buf, time.Now()) {
			select {
			case c.outCh <- seg:
			default:
				c.dropped.Add(1)
				slog.Debug("audio buffer full, dropping segment", "device", c.device)
			}
		}
	}
}

// Stop stops capture and releases the device.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	// Stop unblocks a pending Read.
	_ = c.stream.Stop()
	<-c.done
	_ = c.stream.Close()
	c.running, c.stream = false, nil
	slog.Info("stopped audio capture", "device", c.device, "dropped", c.dropped.Load())
}

// Close stops capture and releases portaudio.
func (c *Capturer) Close() error {
	c.Stop()
	return portaudio.Terminate()
}

// chunker accumulates device reads into segments of a fixed duration.
type chunker struct {
	rate, channels int
	size           int
	buf            []float32
	started        time.Time
}

func newChunker(rate, channels int, d time.Duration) *chunker {
	size := int(float64(rate)*d.Seconds()) * channels
	if size < channels {
		size = channels
	}
	return &chunker{rate: rate, channels: channels, size: size}
}

// push copies samples in and returns every completed segment.
func (c *chunker) push(samples []float32, now time.Time) []pcm.Segment {
	var out []pcm.Segment
	for len(samples) > 0 {
		if len(c.buf) == 0 {
			c.started = now
			c.buf = make([]float32, 0, c.size)
		}
		n := min(c.size-len(c.buf), len(samples))
		c.buf = append(c.buf, samples[:n]...)
		samples = samples[n:]
		if len(c.buf) == c.size {
			out = append(out, pcm.NewSegment(c.buf, c.rate, c.channels, c.started))
			c.buf = nil
		}
	}
	return out
}

// selectDevice picks the capture device: a named match when cfg.Device is
// set, otherwise a loopback device when system audio is requested, otherwise
// the preferred microphone.
func selectDevice(devices []*portaudio.DeviceInfo, cfg CaptureConfig) *portaudio.DeviceInfo {
	var mic, system *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < cfg.Channels || isExcluded(dev.Name, cfg.ExcludedDevices) {
			continue
		}
		if cfg.Device != "" {
			if containsIgnoreCase(dev.Name, cfg.Device) {
				return dev
			}
			continue
		}
		switch classifyDevice(dev.Name) {
		case SourceSystem:
			if system == nil {
				system = dev
			}
		case SourceUser:
			if mic == nil || preferDevice(dev.Name, mic.Name) {
				mic = dev
			}
		}
	}
	if cfg.CaptureSystemAudio && system != nil {
		return system
	}
	return mic
}

func classifyDevice(name string) string {
	for _, kw := range systemKeywords {
		if containsIgnoreCase(name, kw) {
			return SourceSystem
		}
	}
	for _, kw := range micKeywords {
		if containsIgnoreCase(name, kw) {
			return SourceUser
		}
	}
	return ""
}

func isExcluded(name string, excluded []string) bool {
	for _, ex := range excluded {
		if ex != "" && containsIgnoreCase(name, ex) {
			return true
		}
	}
	return false
}

// preferDevice reports whether name beats current as the microphone.
func preferDevice(name, current string) bool {
	for _, p := range preferredKeywords {
		if containsIgnoreCase(name, p) && !containsIgnoreCase(current, p) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
