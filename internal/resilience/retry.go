package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Retry policy defaults
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
	DefaultJitterFactor = 0.1 // up to 10% added on top of the computed delay
)

// DefaultRetryableKinds are the transient failure kinds.
var DefaultRetryableKinds = []apperrors.Kind{
	apperrors.KindNetwork,
	apperrors.KindRateLimit,
	apperrors.KindTimeout,
	apperrors.KindServiceUnavailable,
	apperrors.KindUnknown,
}

// Policy decides whether a classified failure is retried and how long to wait.
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration // zero means uncapped
	Multiplier     float64
	JitterFactor   float64 // zero disables jitter
	RetryableKinds []apperrors.Kind
}

// DefaultPolicy returns the standard remote-call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     DefaultMultiplier,
		JitterFactor:   DefaultJitterFactor,
		RetryableKinds: DefaultRetryableKinds,
	}
}

// ShouldRetry admits a retry only for a retryable, non-critical failure of a
// configured kind while retryCount < MaxRetries.
func (p Policy) ShouldRetry(info *apperrors.AppError, retryCount int) bool {
	if info == nil || !info.Retryable || info.Severity == apperrors.SeverityCritical {
		return false
	}
	if retryCount >= p.MaxRetries {
		return false
	}
	return slices.Contains(p.RetryableKinds, info.Kind)
}

// Delay returns min(base·multiplier^retryCount + jitter, max).
func (p Policy) Delay(retryCount int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = DefaultMultiplier
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(retryCount))
	if p.JitterFactor > 0 {
		d += d * p.JitterFactor * rand.Float64()
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// ExecuteWithRetry runs op under p, emitting retryAttempt before every
// attempt, retryDelaying before each wait, errorRecovered when an attempt
// succeeds after a failure, and retryAbandoned when it gives up. The returned
// error is always classified.
func ExecuteWithRetry[T any](ctx context.Context, p Policy, sink events.Sink, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if sink == nil {
		sink = events.Discard
	}
	log := trace.Logger(ctx)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, apperrors.Classify(err)
		}

		e := events.New(events.RetryAttempt)
		e.Attempt = attempt + 1
		sink.Emit(e)

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				e := events.New(events.ErrorRecovered)
				e.Attempt = attempt + 1
				sink.Emit(e)
			}
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, apperrors.Classify(ctxErr)
		}

		info := apperrors.Classify(err)
		if !p.ShouldRetry(info, attempt) {
			e := events.New(events.RetryAbandoned)
			e.Attempt = attempt + 1
			e.Err = info.Error()
			sink.Emit(e)
			log.Warn("giving up on operation", "attempts", attempt+1, "kind", info.Kind, "error", err)
			return zero, info
		}

		delay := p.Delay(attempt)
		e = events.New(events.RetryDelaying)
		e.Attempt = attempt + 1
		e.Delay = delay
		e.Err = info.Error()
		sink.Emit(e)
		log.Debug("retrying after error", "attempt", attempt+1, "max", p.MaxRetries, "delay", delay, "kind", info.Kind)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, apperrors.Classify(ctx.Err())
		case <-timer.C:
		}
	}
}
