package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/resilience"
)

func TestEmitCountsEvents(t *testing.T) {
	m := New(nil)

	m.Emit(events.New(events.SessionStarted))
	act := events.New(events.ActivityUpdate)
	act.Activity = &pcm.VoiceActivity{Confidence: 0.8}
	m.Emit(act)
	m.Emit(act)
	skip := events.New(events.TranslationSkipped)
	skip.Reason = "echo_of_output"
	m.Emit(skip)
	delay := events.New(events.RetryDelaying)
	delay.Delay = 2 * time.Second
	m.Emit(delay)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues(string(events.ActivityUpdate))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TranslationsSkip.WithLabelValues("echo_of_output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.VoiceActivity))

	m.Emit(events.New(events.SessionStopped))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionActive))
}

func TestObserveBreaker(t *testing.T) {
	m := New(nil)
	m.ObserveBreaker("translate", resilience.Closed, resilience.Open)
	assert.Equal(t, float64(resilience.Open), testutil.ToFloat64(m.BreakerState.WithLabelValues("translate")))
}

func TestHandlerAndMiddleware(t *testing.T) {
	var dropped uint64 = 7
	m := New(func() uint64 { return dropped })

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/items/{id}", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "translator_events_dropped_total 7"))
	assert.True(t, strings.Contains(body, "translator_http_requests_total"))
}
