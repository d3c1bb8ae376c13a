package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Segment is a timed span inside a transcription.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcription is the transcription service result.
type Transcription struct {
	Text        string    `json:"text"`
	Confidence  float64   `json:"confidence"`
	Language    string    `json:"language"`
	DurationSec float64   `json:"durationSec"`
	Segments    []Segment `json:"segments,omitempty"`
}

// Translation is the translation service result.
type Translation struct {
	TranslatedText string        `json:"translatedText"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// Config for the client
type Config struct {
	Addr             string
	CallTimeout      time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialOptions      []grpc.DialOption // appended after the defaults
}

// Client wraps the remote services. Each service sits behind its own
// circuit breaker; every error returned is an *errors.AppError.
type Client struct {
	conn         *grpc.ClientConn
	health       healthpb.HealthClient
	timeout      time.Duration
	transcribeCB *resilience.Breaker
	translateCB  *resilience.Breaker
	synthesizeCB *resilience.Breaker
}

// New creates a client. The connection is established lazily.
func New(cfg Config) (*Client, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = DefaultKeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = DefaultKeepaliveTimeout
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial inference server %s: %w", cfg.Addr, err)
	}

	return &Client{
		conn:         conn,
		health:       healthpb.NewHealthClient(conn),
		timeout:      cfg.CallTimeout,
		transcribeCB: resilience.New(resilience.FastConfig("transcribe")),
		translateCB:  resilience.New(resilience.DefaultConfig("translate")),
		synthesizeCB: resilience.New(resilience.DefaultConfig("synthesize")),
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// OnBreakerChange installs fn as the state hook on every service breaker.
func (c *Client) OnBreakerChange(fn func(name string, from, to resilience.State)) {
	for _, b := range c.breakers() {
		b.WithHook(fn)
	}
}

// BreakerStates reports the state of each service breaker.
func (c *Client) BreakerStates() map[string]string {
	out := make(map[string]string, 3)
	for _, b := range c.breakers() {
		out[b.Name()] = b.State().String()
	}
	return out
}

func (c *Client) breakers() []*resilience.Breaker {
	return []*resilience.Breaker{c.transcribeCB, c.translateCB, c.synthesizeCB}
}

// Transcribe sends a WAV payload for transcription.
func (c *Client) Transcribe(ctx context.Context, audio []byte, languageHint string) (Transcription, error) {
	out, err := c.invoke(ctx, c.transcribeCB, MethodTranscribe, map[string]any{
		"audio":    encodeBytes(audio),
		"format":   "wav",
		"language": languageHint,
	})
	if err != nil {
		return Transcription{}, err
	}
	return Transcription{
		Text:        stringField(out, "text"),
		Confidence:  numberField(out, "confidence"),
		Language:    stringField(out, "language"),
		DurationSec: numberField(out, "duration"),
		Segments:    segmentsField(out, "segments"),
	}, nil
}

// Translate translates text into targetLang. An empty sourceLang asks the
// service to detect it.
func (c *Client) Translate(ctx context.Context, text, targetLang, sourceLang string) (Translation, error) {
	out, err := c.invoke(ctx, c.translateCB, MethodTranslate, map[string]any{
		"text":            text,
		"target_language": targetLang,
		"source_language": sourceLang,
	})
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		TranslatedText: stringField(out, "translated_text"),
		Confidence:     numberField(out, "confidence"),
		ProcessingTime: time.Duration(numberField(out, "processing_time_ms") * float64(time.Millisecond)),
	}, nil
}

// Synthesize renders text as speech and returns the audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	out, err := c.invoke(ctx, c.synthesizeCB, MethodSynthesize, map[string]any{
		"text":     text,
		"voice_id": voiceID,
	})
	if err != nil {
		return nil, err
	}
	audio, err := bytesField(out, "audio")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindAudioFormat, "synthesized audio is not valid base64")
	}
	return audio, nil
}

// Healthy reports whether the server answers SERVING for service, or for
// the whole server when service is empty.
func (c *Client) Healthy(ctx context.Context, service string) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		trace.Logger(ctx).Debug("health check failed", "service", service, "error", err)
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *Client) invoke(ctx context.Context, cb *resilience.Breaker, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindUnknown, "encode %s request", method)
	}

	ctx, span := trace.StartSpan(ctx, cb.Name())
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := &structpb.Struct{}
	_, err = resilience.Execute(cb, tripsBreaker, func() (struct{}, error) {
		return struct{}{}, c.conn.Invoke(ctx, method, in, out)
	})
	if err == nil {
		return out, nil
	}

	span.SetAttr("error", err.Error())
	if errors.Is(err, resilience.ErrOpen) {
		return nil, apperrors.Wrapf(err, apperrors.KindServiceUnavailable, "%s unavailable: circuit open", cb.Name())
	}
	return nil, apperrors.FromGRPCError(err)
}

// tripsBreaker counts only service-side failures against the breaker.
func tripsBreaker(err error) bool {
	switch apperrors.FromGRPCError(err).Kind {
	case apperrors.KindNetwork, apperrors.KindTimeout, apperrors.KindServiceUnavailable, apperrors.KindUnknown:
		return true
	default:
		return false
	}
}
