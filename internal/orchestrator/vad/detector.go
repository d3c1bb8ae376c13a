// Package vad classifies segments as speech or silence with hysteresis.
package vad

import (
	"math"
	"sync"
	"time"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/syncx"
)

// Detector defaults
const (
	DefaultVolumeThreshold    = 0.01
	DefaultEnergyThreshold    = 0.0001
	DefaultZCRThreshold       = 0.02
	DefaultMinSpeechDuration  = 250 * time.Millisecond
	DefaultMinSilenceDuration = time.Second

	// Speech zero-crossing rates cluster around this value
	zcrCenter = 0.25
	zcrMax    = 0.5

	HistorySize = 10
)

// State is the detector's confirmed state.
type State uint8

const (
	Silence State = iota
	Speech
)

func (s State) String() string {
	if s == Speech {
		return "speech"
	}
	return "silence"
}

// Transition reports what a segment did to the state machine.
type Transition uint8

const (
	NoChange Transition = iota
	Started
	Ended
)

// Config for the detector
type Config struct {
	VolumeThreshold    float64
	EnergyThreshold    float64
	ZCRThreshold       float64
	MinSpeechDuration  time.Duration
	MinSilenceDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.VolumeThreshold == 0 {
		c.VolumeThreshold = DefaultVolumeThreshold
	}
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.ZCRThreshold == 0 {
		c.ZCRThreshold = DefaultZCRThreshold
	}
	if c.MinSpeechDuration == 0 {
		c.MinSpeechDuration = DefaultMinSpeechDuration
	}
	if c.MinSilenceDuration == 0 {
		c.MinSilenceDuration = DefaultMinSilenceDuration
	}
	return c
}

// Detector is a two-state debounced VAD. Safe for concurrent use.
type Detector struct {
	cfg  Config
	sink events.Sink

	mu       sync.Mutex
	state    State
	active   time.Duration // continuous active run while in Silence
	inactive time.Duration // continuous inactive run while in Speech
	history  *syncx.Ring[pcm.VoiceActivity]
}

// New creates a detector starting in Silence. A nil sink discards events.
func New(cfg Config, sink events.Sink) *Detector {
	if sink == nil {
		sink = events.Discard
	}
	return &Detector{
		cfg:     cfg.withDefaults(),
		sink:    sink,
		history: syncx.NewRing[pcm.VoiceActivity](HistorySize),
	}
}

// Analyze extracts features from seg and classifies it without touching state.
func (d *Detector) Analyze(seg pcm.Segment) pcm.VoiceActivity {
	volume, energy, zcr := Features(seg.Samples)

	votes := 0
	if volume > d.cfg.VolumeThreshold {
		votes++
	}
	if energy > d.cfg.EnergyThreshold {
		votes++
	}
	if zcr > d.cfg.ZCRThreshold && zcr < zcrMax {
		votes++
	}

	conf := math.Min(volume/d.cfg.VolumeThreshold, 1)*0.4 +
		math.Min(energy/d.cfg.EnergyThreshold, 1)*0.3 +
		math.Max(0, 1-math.Abs(zcr-zcrCenter)/zcrCenter)*0.3

	return pcm.VoiceActivity{
		IsActive:         votes >= 2,
		Confidence:       math.Max(0, math.Min(conf, 1)),
		Volume:           volume,
		Energy:           energy,
		ZeroCrossingRate: zcr,
		Timestamp:        seg.Timestamp,
	}
}

// Process classifies seg, advances the state machine and emits
// activityUpdate plus voiceStarted/voiceEnded on confirmed transitions.
func (d *Detector) Process(seg pcm.Segment) (pcm.VoiceActivity, Transition) {
	act := d.Analyze(seg)
	dur := seg.Duration()

	d.mu.Lock()
	d.history.Push(act)
	tr := NoChange
	switch d.state {
	case Silence:
		if act.IsActive {
			d.active += dur
			if d.active >= d.cfg.MinSpeechDuration {
				d.state, d.active, d.inactive = Speech, 0, 0
				tr = Started
			}
		} else {
			d.active = 0
		}
	case Speech:
		if !act.IsActive {
			d.inactive += dur
			if d.inactive >= d.cfg.MinSilenceDuration {
				d.state, d.active, d.inactive = Silence, 0, 0
				tr = Ended
			}
		} else {
			d.inactive = 0
		}
	}
	d.mu.Unlock()

	e := events.New(events.ActivityUpdate)
	e.Activity = &act
	d.sink.Emit(e)
	switch tr {
	case Started:
		e := events.New(events.VoiceStarted)
		e.Activity = &act
		d.sink.Emit(e)
	case Ended:
		e := events.New(events.VoiceEnded)
		e.Activity = &act
		d.sink.Emit(e)
	}
	return act, tr
}

// State returns the confirmed state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// AverageConfidence averages confidence over the last HistorySize segments.
func (d *Detector) AverageConfidence() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.history.Len() == 0 {
		return 0
	}
	var sum float64
	d.history.Each(func(a pcm.VoiceActivity) bool {
		sum += a.Confidence
		return true
	})
	return sum / float64(d.history.Len())
}

// History returns recent activity readings, oldest first.
func (d *Detector) History() []pcm.VoiceActivity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Items()
}

// Reset returns to Silence and clears history.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state, d.active, d.inactive = Silence, 0, 0
	d.history.Reset()
}

// Features returns mean absolute amplitude, mean energy and the zero-crossing
// rate of samples.
func Features(samples []float32) (volume, energy, zcr float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	crossings := 0
	for i, s := range samples {
		v := float64(s)
		volume += math.Abs(v)
		energy += v * v
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	n := float64(len(samples))
	return volume / n, energy / n, float64(crossings) / n
}
