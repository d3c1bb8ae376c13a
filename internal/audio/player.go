package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
)

// DefaultPlaybackQueue is how many clips may wait behind the one playing.
const DefaultPlaybackQueue = 8

// PlayerConfig for the playback sink
type PlayerConfig struct {
	Device          string // name substring; empty uses the default output
	FramesPerBuffer int
	QueueSize       int
}

// output is an open playback stream.
type output interface {
	Write(samples []float32) error
	Close() error
}

type openFunc func(sampleRate, channels int) (output, error)

// Player plays synthesized WAV clips one at a time.
type Player struct {
	cfg   PlayerConfig
	open  openFunc
	queue chan []byte

	mu      sync.Mutex // serializes Play
	busy    atomic.Bool
	played  atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewPlayer initializes portaudio and resolves the output device.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	cfg = cfg.withDefaults()
	dev, err := outputDevice(cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	slog.Info("playback device selected", "device", dev.Name)
	return newPlayer(cfg, portaudioOpener(dev, cfg.FramesPerBuffer)), nil
}

func newPlayer(cfg PlayerConfig, open openFunc) *Player {
	cfg = cfg.withDefaults()
	return &Player{cfg: cfg, open: open, queue: make(chan []byte, cfg.QueueSize)}
}

func (c PlayerConfig) withDefaults() PlayerConfig {
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultPlaybackQueue
	}
	return c
}

// Busy reports whether a clip is playing.
func (p *Player) Busy() bool { return p.busy.Load() }

// Play decodes a WAV clip and blocks until it has been written or ctx ends.
func (p *Player) Play(ctx context.Context, wav []byte) error {
	samples, rate, channels, err := pcm.DecodeWAV(wav)
	if err != nil {
		return fmt.Errorf("decode clip: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy.Store(true)
	defer p.busy.Store(false)

	out, err := p.open(rate, channels)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	block := p.cfg.FramesPerBuffer * channels
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(block, len(samples))
		if err := out.Write(samples[:n]); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		samples = samples[n:]
	}
	return nil
}

// Enqueue hands a clip to Run. It never blocks; a full queue drops the clip.
func (p *Player) Enqueue(wav []byte) bool {
	select {
	case p.queue <- wav:
		return true
	default:
		p.dropped.Add(1)
		slog.Warn("playback queue full, dropping clip", "bytes", len(wav))
		return false
	}
}

// Emit queues the audio of every translationReady event that carries some.
func (p *Player) Emit(e events.Event) {
	if e.Type == events.TranslationReady && len(e.Audio) > 0 {
		p.Enqueue(e.Audio)
	}
}

// Run plays queued clips in order until ctx is done.
func (p *Player) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case clip := <-p.queue:
			if err := p.Play(ctx, clip); err != nil {
				p.failed.Add(1)
				slog.Warn("playback failed", "error", err)
				continue
			}
			p.played.Add(1)
		}
	}
}

// Close releases portaudio.
func (p *Player) Close() error {
	return portaudio.Terminate()
}

func outputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxOutputChannels > 0 && containsIgnoreCase(dev.Name, name) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("output device %q: %w", name, ErrNoDevice)
}

// paOutput writes through a blocking portaudio stream.
type paOutput struct {
	stream *portaudio.Stream
	buf    []float32
}

func portaudioOpener(dev *portaudio.DeviceInfo, frames int) openFunc {
	return func(rate, channels int) (output, error) {
		buf := make([]float32, frames*channels)
		stream, err := portaudio.OpenStream(portaudio.StreamParameters{
			Output: portaudio.StreamDeviceParameters{
				Device:   dev,
				Channels: channels,
				Latency:  dev.DefaultHighOutputLatency,
			},
			SampleRate:      float64(rate),
			FramesPerBuffer: frames,
		}, buf)
		if err != nil {
			return nil, err
		}
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			return nil, err
		}
		return &paOutput{stream: stream, buf: buf}, nil
	}
}

// Write copies samples into the stream buffer, zero-padding a short block.
func (o *paOutput) Write(samples []float32) error {
	n := copy(o.buf, samples)
	clear(o.buf[n:])
	return o.stream.Write()
}

func (o *paOutput) Close() error {
	_ = o.stream.Stop()
	return o.stream.Close()
}
