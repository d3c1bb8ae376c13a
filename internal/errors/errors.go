// Package errors provides the failure taxonomy shared by the transcription,
// translation and synthesis paths. Every remote failure is reduced to an
// AppError carrying a Kind, a Severity and a retry decision.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind categorizes a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindRateLimit
	KindNetwork
	KindTimeout
	KindAudioFormat
	KindServiceUnavailable
	KindQuotaExceeded
)

func (k Kind) String() string {
	return [...]string{
		"unknown", "authentication", "rate_limit", "network", "timeout",
		"audio_format", "service_unavailable", "quota_exceeded",
	}[k]
}

// Severity ranks how bad a failure is for the session.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	return [...]string{"low", "medium", "high", "critical"}[s]
}

// Sentinel errors.
var (
	ErrQueueFull     = stderrors.New("transcription queue full")
	ErrAudioFormat   = stderrors.New("invalid audio payload")
	ErrSessionActive = stderrors.New("session already active")
	ErrNoSession     = stderrors.New("no active session")
)

// AppError is a classified failure.
type AppError struct {
	Kind           Kind
	Severity       Severity
	Message        string
	Retryable      bool
	SuggestedDelay time.Duration
	Metadata       map[string]string
	Cause          error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// New creates an AppError of the given kind with the kind's default severity
// and retry decision.
func New(kind Kind, msg string) *AppError {
	r := ruleFor(kind)
	return &AppError{Kind: kind, Severity: r.severity, Message: msg, Retryable: r.retryable, SuggestedDelay: r.delay}
}

// Newf creates a new AppError with a formatted message.
func Newf(kind Kind, format string, args ...any) *AppError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError of the given kind.
func Wrap(err error, kind Kind, msg string) *AppError {
	e := New(kind, msg)
	e.Cause = err
	return e
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *AppError {
	return Wrap(err, kind, fmt.Sprintf(format, args...))
}

// QueueFullError reports an admission-time rejection.
func QueueFullError(capacity int) *AppError {
	e := Wrapf(ErrQueueFull, KindUnknown, "queue at capacity (%d)", capacity)
	e.Retryable = false
	e.Severity = SeverityMedium
	return e
}

// AudioFormatError reports a malformed or oversized payload. Never retried.
func AudioFormatError(issues []string) *AppError {
	e := Wrapf(ErrAudioFormat, KindAudioFormat, "audio validation failed: %v", issues)
	return e
}

// As extracts an AppError from err, classifying it if it is not one already.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Classify(err)
}

// IsKind checks if an error carries a specific kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return As(err).Retryable
}

// Is re-exports errors.Is for callers that import this package unaliased.
func Is(err, target error) bool { return stderrors.Is(err, target) }
