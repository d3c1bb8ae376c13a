// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
)

const namespace = "translator"

// Metrics holds every collector. It is an events.Sink.
type Metrics struct {
	reg *prometheus.Registry

	// Pipeline events
	Events           *prometheus.CounterVec
	VoiceActivity    prometheus.Histogram
	RetryDelay       prometheus.Histogram
	TranslationsSkip *prometheus.CounterVec
	SynthesisBytes   prometheus.Histogram
	SessionActive    prometheus.Gauge

	// Remote services
	BreakerState *prometheus.GaugeVec

	// Event fan-out
	EventsDropped prometheus.CounterFunc

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a private registry. dropped, when
// non-nil, reports events lost by the fan-out bus.
func New(dropped func() uint64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Pipeline lifecycle events by type",
		}, []string{"type"}),
		VoiceActivity: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vad_confidence",
			Help:      "Per-segment voice activity confidence",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		RetryDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_delay_seconds",
			Help:      "Backoff delays before retries",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		TranslationsSkip: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_skipped_total",
			Help:      "Transcriptions rejected by the feedback guard",
		}, []string{"reason"}),
		SynthesisBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_audio_bytes",
			Help:      "Size of synthesized audio per translation",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
		}),
		SessionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while a session is running",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Breaker state per service (0 closed, 1 open, 2 half-open)",
		}, []string{"service"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if dropped != nil {
		m.EventsDropped = f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the fan-out buffer was full",
		}, func() float64 { return float64(dropped()) })
	}
	return m
}

// Emit records one pipeline event.
func (m *Metrics) Emit(e events.Event) {
	m.Events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case events.ActivityUpdate:
		if e.Activity != nil {
			m.VoiceActivity.Observe(e.Activity.Confidence)
		}
	case events.RetryDelaying, events.ItemRetrying:
		m.RetryDelay.Observe(e.Delay.Seconds())
	case events.TranslationSkipped:
		m.TranslationsSkip.WithLabelValues(e.Reason).Inc()
	case events.TranslationReady:
		if len(e.Audio) > 0 {
			m.SynthesisBytes.Observe(float64(len(e.Audio)))
		}
	case events.SessionStarted:
		m.SessionActive.Set(1)
	case events.SessionStopped:
		m.SessionActive.Set(0)
	}
}

// ObserveBreaker is a resilience breaker hook.
func (m *Metrics) ObserveBreaker(name string, _, to resilience.State) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Middleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
