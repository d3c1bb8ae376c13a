package errors

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// rule is one row of the ordered classification table. First match wins.
type rule struct {
	pattern   *regexp.Regexp
	kind      Kind
	retryable bool
	severity  Severity
	delay     time.Duration
}

var rules = []rule{
	{regexp.MustCompile(`(?i)\b40[13]\b|api[ _-]?key|unauthori[sz]ed|forbidden`), KindAuthentication, false, SeverityCritical, 0},
	{regexp.MustCompile(`(?i)\b429\b|rate[ _-]?limit|too many requests`), KindRateLimit, true, SeverityMedium, 5 * time.Second},
	{regexp.MustCompile(`(?i)network|fetch|connection`), KindNetwork, true, SeverityMedium, time.Second},
	{regexp.MustCompile(`(?i)time[d]?[ _-]?out|abort|deadline exceeded`), KindTimeout, true, SeverityMedium, 2 * time.Second},
	{regexp.MustCompile(`(?i)audio|format|encoding|invalid file`), KindAudioFormat, false, SeverityHigh, 0},
	{regexp.MustCompile(`(?i)\b50[023]\b|service unavailable|bad gateway`), KindServiceUnavailable, true, SeverityHigh, 3 * time.Second},
	{regexp.MustCompile(`(?i)quota|billing`), KindQuotaExceeded, false, SeverityCritical, 0},
}

var unknownRule = rule{kind: KindUnknown, retryable: true, severity: SeverityMedium, delay: time.Second}

func ruleFor(kind Kind) rule {
	for _, r := range rules {
		if r.kind == kind {
			return r
		}
	}
	return unknownRule
}

// ClassifyMessage maps a raw error message or status line to an AppError
// using the ordered rule table.
func ClassifyMessage(msg string) *AppError {
	r := unknownRule
	for _, candidate := range rules {
		if candidate.pattern.MatchString(msg) {
			r = candidate
			break
		}
	}
	return &AppError{
		Kind:           r.kind,
		Severity:       r.severity,
		Message:        msg,
		Retryable:      r.retryable,
		SuggestedDelay: r.delay,
	}
}

// Classify categorizes any error. AppErrors pass through unchanged, gRPC
// statuses are mapped by code, everything else goes through the text rules.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return Wrap(err, KindTimeout, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return FromGRPCError(err)
	}
	e := ClassifyMessage(err.Error())
	e.Cause = err
	return e
}

// grpcKinds maps gRPC status codes to failure kinds. Codes not listed fall
// back to message classification.
var grpcKinds = map[codes.Code]Kind{
	codes.Unauthenticated:   KindAuthentication,
	codes.PermissionDenied:  KindAuthentication,
	codes.ResourceExhausted: KindRateLimit,
	codes.Unavailable:       KindServiceUnavailable,
	codes.DeadlineExceeded:  KindTimeout,
	codes.Canceled:          KindTimeout,
	codes.Aborted:           KindTimeout,
	codes.InvalidArgument:   KindAudioFormat,
}

// FromGRPCError converts a gRPC error into an AppError.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		e := ClassifyMessage(err.Error())
		e.Cause = err
		return e
	}
	if kind, ok := grpcKinds[st.Code()]; ok {
		// Quota exhaustion also surfaces as ResourceExhausted; the message tells them apart.
		if kind == KindRateLimit {
			if byMsg := ClassifyMessage(st.Message()); byMsg.Kind == KindQuotaExceeded {
				kind = KindQuotaExceeded
			}
		}
		return Wrap(err, kind, st.Message()).WithMetadata("grpc_code", st.Code().String())
	}
	e := ClassifyMessage(st.Message())
	e.Cause = err
	return e.WithMetadata("grpc_code", st.Code().String())
}
