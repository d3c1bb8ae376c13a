// Package config loads runtime configuration from the environment and an
// optional YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConfigFileEnv names the variable holding an optional YAML config path.
const ConfigFileEnv = "CONFIG_FILE"

type Config struct {
	Server    Server    `yaml:"server"`
	Inference Inference `yaml:"inference"`
	Audio     Audio     `yaml:"audio"`
	VAD       VAD       `yaml:"vad"`
	Queue     Queue     `yaml:"queue"`
	Feedback  Feedback  `yaml:"feedback"`
	Session   Session   `yaml:"session"`
	History   History   `yaml:"history"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	HTTPAddr        string   `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8000" env-description:"HTTP listen address"`
	AllowedOrigins  []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
	EventBufferSize int      `yaml:"event_buffer_size" env:"EVENT_BUFFER_SIZE" env-default:"256"`
}

type Inference struct {
	Addr        string        `yaml:"addr" env:"INFERENCE_ADDR" env-default:"localhost:50051" env-description:"gRPC address of the speech and translation services"`
	CallTimeout time.Duration `yaml:"call_timeout" env:"INFERENCE_CALL_TIMEOUT" env-default:"30s"`
}

type Audio struct {
	SampleRate         int           `yaml:"sample_rate" env:"SAMPLE_RATE" env-default:"16000"`
	Channels           int           `yaml:"channels" env:"CAPTURE_CHANNELS" env-default:"1"`
	ChunkDuration      time.Duration `yaml:"chunk_duration" env:"CHUNK_DURATION" env-default:"100ms"`
	TargetSampleRate   int           `yaml:"target_sample_rate" env:"TARGET_SAMPLE_RATE" env-default:"16000"`
	HighPassCutoffHz   float64       `yaml:"high_pass_cutoff_hz" env:"HIGH_PASS_CUTOFF_HZ" env-default:"80"`
	NoiseGateThreshold float64       `yaml:"noise_gate_threshold" env:"NOISE_GATE_THRESHOLD" env-default:"0.01"`
	Format             string        `yaml:"format" env:"AUDIO_FORMAT" env-default:"wav"`
	CaptureSystemAudio bool          `yaml:"capture_system_audio" env:"CAPTURE_SYSTEM_AUDIO" env-default:"false" env-description:"capture a loopback device instead of the microphone"`
	ExcludedDevices    []string      `yaml:"excluded_devices" env:"EXCLUDED_AUDIO_DEVICES" env-default:"iphone,teams"`
	InputDevice        string        `yaml:"input_device" env:"INPUT_DEVICE" env-description:"substring of the capture device name; empty picks the default"`
	OutputDevice       string        `yaml:"output_device" env:"OUTPUT_DEVICE"`
}

type VAD struct {
	VolumeThreshold    float64       `yaml:"volume_threshold" env:"VAD_VOLUME_THRESHOLD" env-default:"0.01"`
	EnergyThreshold    float64       `yaml:"energy_threshold" env:"VAD_ENERGY_THRESHOLD" env-default:"0.0001"`
	ZCRThreshold       float64       `yaml:"zcr_threshold" env:"VAD_ZCR_THRESHOLD" env-default:"0.02"`
	MinSpeechDuration  time.Duration `yaml:"min_speech_duration" env:"VAD_MIN_SPEECH" env-default:"250ms"`
	MinSilenceDuration time.Duration `yaml:"min_silence_duration" env:"VAD_MIN_SILENCE" env-default:"1s"`
}

type Queue struct {
	MaxSize        int           `yaml:"max_size" env:"QUEUE_MAX_SIZE" env-default:"50"`
	MaxConcurrent  int           `yaml:"max_concurrent" env:"QUEUE_MAX_CONCURRENT" env-default:"2"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" env:"QUEUE_RATE_LIMIT_DELAY" env-default:"200ms"`
	MaxRetries     int           `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	BaseDelay      time.Duration `yaml:"base_delay" env:"RETRY_BASE_DELAY" env-default:"1s"`
	MaxDelay       time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"30s"`
	Multiplier     float64       `yaml:"multiplier" env:"RETRY_MULTIPLIER" env-default:"2"`
	JitterFactor   float64       `yaml:"jitter_factor" env:"RETRY_JITTER" env-default:"0.1"`
}

type Feedback struct {
	Cooldown      time.Duration `yaml:"cooldown" env:"FEEDBACK_COOLDOWN" env-default:"10s"`
	MinInterval   time.Duration `yaml:"min_interval" env:"FEEDBACK_MIN_INTERVAL" env-default:"3s"`
	MinTextLength int           `yaml:"min_text_length" env:"FEEDBACK_MIN_TEXT_LENGTH" env-default:"5"`
	HistorySize   int           `yaml:"history_size" env:"FEEDBACK_HISTORY_SIZE" env-default:"5"`
}

type Session struct {
	TargetLanguage string        `yaml:"target_language" env:"TARGET_LANGUAGE" env-default:"es"`
	SourceLanguage string        `yaml:"source_language" env:"SOURCE_LANGUAGE"`
	VoiceID        string        `yaml:"voice_id" env:"VOICE_ID"`
	OutputRouting  string        `yaml:"output_routing" env:"OUTPUT_ROUTING" env-default:"speakers" env-description:"speakers or none"`
	MinConfidence  float64       `yaml:"min_confidence" env:"MIN_TRANSCRIPT_CONFIDENCE" env-default:"0.3"`
	MaxUtterance   time.Duration `yaml:"max_utterance" env:"MAX_UTTERANCE" env-default:"15s"`
	AutoStart      bool          `yaml:"auto_start" env:"SESSION_AUTO_START" env-default:"true"`
}

type History struct {
	DBPath     string        `yaml:"db_path" env:"HISTORY_DB" env-default:"translations.db" env-description:"sqlite file; empty keeps history in memory"`
	BatchSize  int           `yaml:"batch_size" env:"HISTORY_BATCH_SIZE" env-default:"20"`
	FlushDelay time.Duration `yaml:"flush_delay" env:"HISTORY_FLUSH_DELAY" env-default:"2s"`
	Verbose    bool          `yaml:"verbose" env:"HISTORY_VERBOSE"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Load reads CONFIG_FILE when set, then the environment, and validates.
func Load() (*Config, error) {
	var cfg Config
	var err error
	if path := os.Getenv(ConfigFileEnv); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.HTTPAddr != "", "HTTP_ADDR is required")
	check(c.Inference.Addr != "", "INFERENCE_ADDR is required")
	check(c.Inference.CallTimeout > 0, "INFERENCE_CALL_TIMEOUT must be positive")
	check(c.Audio.SampleRate > 0, "SAMPLE_RATE must be positive, got %d", c.Audio.SampleRate)
	check(c.Audio.Channels == 1 || c.Audio.Channels == 2, "CAPTURE_CHANNELS must be 1 or 2, got %d", c.Audio.Channels)
	check(c.Audio.ChunkDuration > 0, "CHUNK_DURATION must be positive")
	check(c.Audio.TargetSampleRate > 0, "TARGET_SAMPLE_RATE must be positive")
	check(c.VAD.MinSpeechDuration > 0 && c.VAD.MinSilenceDuration > 0, "VAD durations must be positive")
	check(c.Queue.MaxSize > 0, "QUEUE_MAX_SIZE must be positive")
	check(c.Queue.MaxConcurrent > 0, "QUEUE_MAX_CONCURRENT must be positive")
	check(c.Queue.MaxRetries >= 0, "RETRY_MAX_RETRIES must not be negative")
	check(c.Queue.Multiplier >= 1, "RETRY_MULTIPLIER must be at least 1")
	check(c.Queue.JitterFactor >= 0 && c.Queue.JitterFactor <= 1, "RETRY_JITTER must be within [0, 1]")
	check(c.Session.TargetLanguage != "", "TARGET_LANGUAGE is required")
	check(c.Session.MinConfidence >= 0 && c.Session.MinConfidence <= 1, "MIN_TRANSCRIPT_CONFIDENCE must be within [0, 1]")
	check(c.Session.OutputRouting == "speakers" || c.Session.OutputRouting == "none",
		"OUTPUT_ROUTING must be speakers or none, got %q", c.Session.OutputRouting)
	_, levelErr := parseLevel(c.Log.Level)
	check(levelErr == nil, "LOG_LEVEL: %v", levelErr)
	check(c.Log.Format == "text" || c.Log.Format == "json", "LOG_FORMAT must be text or json, got %q", c.Log.Format)

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s)))
	return l, err
}

// Describe lists the supported environment variables.
func Describe() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
