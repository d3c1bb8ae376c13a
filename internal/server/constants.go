// Package server exposes the session controls, diagnostics and the live
// event stream over HTTP and WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound message limit
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Outbound events buffered per client before events are dropped for it
	ClientBufferSize = 64
	WriteTimeout     = 5 * time.Second

	DefaultTranscriptSeconds = 300
	DefaultHistoryLimit      = 50
	MaxHistoryLimit          = 500

	HealthCheckTimeout = 3 * time.Second

	// Request body limit for session start
	MaxBodyBytes = 1 << 16
)
