package main

import (
	"github.com/GriffinCanCode/voice-translator/internal/audio"
	"github.com/GriffinCanCode/voice-translator/internal/config"
	"github.com/GriffinCanCode/voice-translator/internal/grpcclient"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator"
	pipeaudio "github.com/GriffinCanCode/voice-translator/internal/orchestrator/audio"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/feedback"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/queue"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/vad"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
)

// transcriptEntries bounds the in-memory transcript served over HTTP.
const transcriptEntries = 500

func pipelineConfig(cfg *config.Config) orchestrator.Config {
	retry := resilience.Policy{
		MaxRetries:     cfg.Queue.MaxRetries,
		BaseDelay:      cfg.Queue.BaseDelay,
		MaxDelay:       cfg.Queue.MaxDelay,
		Multiplier:     cfg.Queue.Multiplier,
		JitterFactor:   cfg.Queue.JitterFactor,
		RetryableKinds: resilience.DefaultRetryableKinds,
	}
	return orchestrator.Config{
		Audio: pipeaudio.Config{
			TargetSampleRate:   cfg.Audio.TargetSampleRate,
			HighPassCutoffHz:   cfg.Audio.HighPassCutoffHz,
			NoiseGateThreshold: cfg.Audio.NoiseGateThreshold,
			Format:             cfg.Audio.Format,
		},
		VAD: vad.Config{
			VolumeThreshold:    cfg.VAD.VolumeThreshold,
			EnergyThreshold:    cfg.VAD.EnergyThreshold,
			ZCRThreshold:       cfg.VAD.ZCRThreshold,
			MinSpeechDuration:  cfg.VAD.MinSpeechDuration,
			MinSilenceDuration: cfg.VAD.MinSilenceDuration,
		},
		Queue: queue.Config{
			MaxQueueSize:   cfg.Queue.MaxSize,
			MaxConcurrent:  cfg.Queue.MaxConcurrent,
			RateLimitDelay: cfg.Queue.RateLimitDelay,
			Policy:         retry,
		},
		Feedback: feedback.Config{
			Cooldown:      cfg.Feedback.Cooldown,
			MinInterval:   cfg.Feedback.MinInterval,
			MinTextLength: cfg.Feedback.MinTextLength,
			HistorySize:   cfg.Feedback.HistorySize,
		},
		Retry:                   retry,
		MinTranscriptConfidence: cfg.Session.MinConfidence,
		MaxUtterance:            cfg.Session.MaxUtterance,
		Defaults: orchestrator.SessionConfig{
			TargetLanguage: cfg.Session.TargetLanguage,
			SourceLanguage: cfg.Session.SourceLanguage,
			VoiceID:        cfg.Session.VoiceID,
			OutputRouting:  cfg.Session.OutputRouting,
		},
	}
}

func captureConfig(cfg *config.Config) audio.CaptureConfig {
	return audio.CaptureConfig{
		SampleRate:         cfg.Audio.SampleRate,
		Channels:           cfg.Audio.Channels,
		ChunkDuration:      cfg.Audio.ChunkDuration,
		CaptureSystemAudio: cfg.Audio.CaptureSystemAudio,
		ExcludedDevices:    cfg.Audio.ExcludedDevices,
		Device:             cfg.Audio.InputDevice,
	}
}

func inferenceConfig(cfg *config.Config) grpcclient.Config {
	return grpcclient.Config{
		Addr:        cfg.Inference.Addr,
		CallTimeout: cfg.Inference.CallTimeout,
	}
}

// sessionSource reports the active session's settings.
type sessionSource interface {
	Session() (string, orchestrator.SessionConfig, bool)
}

// routedSink forwards events to next only while the active session routes
// output to the speakers.
type routedSink struct {
	sessions sessionSource
	next     events.Sink
}

func (r *routedSink) Emit(e events.Event) {
	id, sc, ok := r.sessions.Session()
	if !ok || id != e.SessionID || sc.OutputRouting != orchestrator.DefaultOutputRouting {
		return
	}
	r.next.Emit(e)
}
