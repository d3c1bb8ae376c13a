package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
)

type fakeOutput struct {
	mu       sync.Mutex
	rate, ch int
	written  int
	blocks   int
	closed   bool
	writeErr error
	gate     chan struct{}
}

func (f *fakeOutput) Write(samples []float32) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written += len(samples)
	f.blocks++
	return nil
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func clip(t *testing.T, n, rate int) []byte {
	t.Helper()
	wav, err := pcm.EncodeWAV(make([]float32, n), rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	return wav
}

func TestPlayWritesBlocks(t *testing.T) {
	out := &fakeOutput{}
	p := newPlayer(PlayerConfig{FramesPerBuffer: 256}, func(rate, ch int) (output, error) {
		out.rate, out.ch = rate, ch
		return out, nil
	})

	if err := p.Play(context.Background(), clip(t, 1000, 22050)); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if out.rate != 22050 || out.ch != 1 {
		t.Errorf("opened %d Hz %d ch, want 22050 Hz 1 ch", out.rate, out.ch)
	}
	if out.written != 1000 || out.blocks != 4 {
		t.Errorf("wrote %d samples in %d blocks, want 1000 in 4", out.written, out.blocks)
	}
	if !out.closed {
		t.Error("output should be closed after playback")
	}
	if p.Busy() {
		t.Error("player should be idle after playback")
	}
}

func TestPlayRejectsGarbage(t *testing.T) {
	p := newPlayer(PlayerConfig{}, func(int, int) (output, error) {
		t.Fatal("output should not open for an undecodable clip")
		return nil, nil
	})
	if err := p.Play(context.Background(), []byte("not audio")); err == nil {
		t.Error("Play() should fail on non-WAV data")
	}
}

func TestPlayWriteError(t *testing.T) {
	out := &fakeOutput{writeErr: errors.New("device unplugged")}
	p := newPlayer(PlayerConfig{}, func(int, int) (output, error) { return out, nil })
	if err := p.Play(context.Background(), clip(t, 100, 16000)); err == nil {
		t.Error("Play() should surface write errors")
	}
	if !out.closed {
		t.Error("output should be closed after a failed write")
	}
}

func TestBusyWhilePlaying(t *testing.T) {
	out := &fakeOutput{gate: make(chan struct{})}
	p := newPlayer(PlayerConfig{}, func(int, int) (output, error) { return out, nil })

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), clip(t, 100, 16000)) }()

	deadline := time.Now().Add(time.Second)
	for !p.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("player never became busy")
		}
		time.Sleep(time.Millisecond)
	}
	close(out.gate)
	if err := <-done; err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if p.Busy() {
		t.Error("player should be idle after playback")
	}
}

func TestRunPlaysTranslationAudio(t *testing.T) {
	var mu sync.Mutex
	opened := 0
	p := newPlayer(PlayerConfig{QueueSize: 2}, func(int, int) (output, error) {
		mu.Lock()
		defer mu.Unlock()
		opened++
		return &fakeOutput{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	ready := events.New(events.TranslationReady)
	ready.Audio = clip(t, 160, 16000)
	p.Emit(ready)
	p.Emit(events.New(events.TranslationReady)) // text only
	p.Emit(events.New(events.VoiceStarted))

	deadline := time.Now().Add(time.Second)
	for p.played.Load() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("clip was not played")
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if opened != 1 {
		t.Errorf("opened %d outputs, want 1", opened)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	p := newPlayer(PlayerConfig{QueueSize: 1}, nil)
	if !p.Enqueue([]byte("a")) {
		t.Fatal("first clip should queue")
	}
	if p.Enqueue([]byte("b")) {
		t.Error("second clip should be dropped")
	}
	if p.dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", p.dropped.Load())
	}
}
