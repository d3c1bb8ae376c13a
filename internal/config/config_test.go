package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":8000")
	}
	if cfg.Inference.Addr != "localhost:50051" {
		t.Errorf("Inference.Addr = %q, want %q", cfg.Inference.Addr, "localhost:50051")
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want %d", cfg.Audio.SampleRate, 16000)
	}
	if cfg.Audio.ChunkDuration != 100*time.Millisecond {
		t.Errorf("ChunkDuration = %v, want %v", cfg.Audio.ChunkDuration, 100*time.Millisecond)
	}
	if len(cfg.Audio.ExcludedDevices) != 2 || cfg.Audio.ExcludedDevices[0] != "iphone" {
		t.Errorf("ExcludedDevices = %v, want [iphone teams]", cfg.Audio.ExcludedDevices)
	}
	if cfg.VAD.MinSilenceDuration != time.Second {
		t.Errorf("MinSilenceDuration = %v, want %v", cfg.VAD.MinSilenceDuration, time.Second)
	}
	if cfg.Queue.MaxSize != 50 || cfg.Queue.MaxConcurrent != 2 {
		t.Errorf("Queue = %+v, want size 50 concurrency 2", cfg.Queue)
	}
	if cfg.Feedback.Cooldown != 10*time.Second {
		t.Errorf("Cooldown = %v, want %v", cfg.Feedback.Cooldown, 10*time.Second)
	}
	if cfg.Session.TargetLanguage != "es" {
		t.Errorf("TargetLanguage = %q, want %q", cfg.Session.TargetLanguage, "es")
	}
	if !cfg.Session.AutoStart {
		t.Error("AutoStart should default to true")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want %v", cfg.SlogLevel(), slog.LevelInfo)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("INFERENCE_ADDR", "inference:50051")
	t.Setenv("SAMPLE_RATE", "48000")
	t.Setenv("VAD_MIN_SPEECH", "400ms")
	t.Setenv("QUEUE_MAX_CONCURRENT", "4")
	t.Setenv("CAPTURE_SYSTEM_AUDIO", "true")
	t.Setenv("EXCLUDED_AUDIO_DEVICES", "zoom,teams,iphone")
	t.Setenv("TARGET_LANGUAGE", "fr")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":9000")
	}
	if cfg.Inference.Addr != "inference:50051" {
		t.Errorf("Inference.Addr = %q, want %q", cfg.Inference.Addr, "inference:50051")
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want %d", cfg.Audio.SampleRate, 48000)
	}
	if cfg.VAD.MinSpeechDuration != 400*time.Millisecond {
		t.Errorf("MinSpeechDuration = %v, want %v", cfg.VAD.MinSpeechDuration, 400*time.Millisecond)
	}
	if cfg.Queue.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.Queue.MaxConcurrent, 4)
	}
	if !cfg.Audio.CaptureSystemAudio {
		t.Error("CaptureSystemAudio should be true")
	}
	if len(cfg.Audio.ExcludedDevices) != 3 {
		t.Errorf("ExcludedDevices = %v, want 3 entries", cfg.Audio.ExcludedDevices)
	}
	if cfg.Session.TargetLanguage != "fr" {
		t.Errorf("TargetLanguage = %q, want %q", cfg.Session.TargetLanguage, "fr")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want %v", cfg.SlogLevel(), slog.LevelDebug)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translator.yaml")
	yaml := `
inference:
  addr: speech.internal:6000
session:
  target_language: de
  voice_id: narrator
feedback:
  cooldown: 4s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("VOICE_ID", "override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Inference.Addr != "speech.internal:6000" {
		t.Errorf("Inference.Addr = %q, want %q", cfg.Inference.Addr, "speech.internal:6000")
	}
	if cfg.Session.TargetLanguage != "de" {
		t.Errorf("TargetLanguage = %q, want %q", cfg.Session.TargetLanguage, "de")
	}
	if cfg.Session.VoiceID != "override" {
		t.Errorf("VoiceID = %q, want env override", cfg.Session.VoiceID)
	}
	if cfg.Feedback.Cooldown != 4*time.Second {
		t.Errorf("Cooldown = %v, want %v", cfg.Feedback.Cooldown, 4*time.Second)
	}
	// Defaults still apply to fields the file omits.
	if cfg.Queue.MaxSize != 50 {
		t.Errorf("MaxSize = %d, want %d", cfg.Queue.MaxSize, 50)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		substr string
	}{
		{"bad routing", map[string]string{"OUTPUT_ROUTING": "headphones"}, "OUTPUT_ROUTING"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad channels", map[string]string{"CAPTURE_CHANNELS": "6"}, "CAPTURE_CHANNELS"},
		{"bad jitter", map[string]string{"RETRY_JITTER": "1.5"}, "RETRY_JITTER"},
		{"bad confidence", map[string]string{"MIN_TRANSCRIPT_CONFIDENCE": "2"}, "MIN_TRANSCRIPT_CONFIDENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q does not mention %s", err, tt.substr)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	desc := Describe()
	for _, name := range []string{"INFERENCE_ADDR", "HTTP_ADDR", "HISTORY_DB"} {
		if !strings.Contains(desc, name) {
			t.Errorf("Describe() missing %s", name)
		}
	}
}
