// Package grpcclient calls the remote speech and translation services.
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Health check configuration
	HealthCheckTimeout = 2 * time.Second

	// Per-call deadline when the config sets none
	DefaultCallTimeout = 30 * time.Second
)

// Full method names. Messages travel as google.protobuf.Struct.
const (
	MethodTranscribe = "/translator.v1.SpeechService/Transcribe"
	MethodSynthesize = "/translator.v1.SpeechService/Synthesize"
	MethodTranslate  = "/translator.v1.TranslationService/Translate"
)

// Service names, used for breakers and health checks.
const (
	ServiceSpeech      = "translator.v1.SpeechService"
	ServiceTranslation = "translator.v1.TranslationService"
)
