package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/history"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Orchestrator is the session surface the server drives.
type Orchestrator interface {
	StartSession(ctx context.Context, cfg orchestrator.SessionConfig) (string, error)
	StopSession() error
	State() orchestrator.SessionState
	Stats() orchestrator.Stats
}

// Transcripts serves recent conversation lines.
type Transcripts interface {
	Recent(seconds int) []transcript.Entry
}

// History serves persisted translations.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
	HealthCheck(ctx context.Context) error
}

// Inference reports remote service health.
type Inference interface {
	Healthy(ctx context.Context, service string) bool
	BreakerStates() map[string]string
}

// Deps are the server's collaborators. Only Orch is required.
type Deps struct {
	Orch        Orchestrator
	Transcripts Transcripts
	History     History
	Inference   Inference
	Services    []string // health-checked service names
	Metrics     http.Handler
	Middleware  func(http.Handler) http.Handler
	Events      <-chan events.Event
}

// Options tune the HTTP surface.
type Options struct {
	AllowedOrigins []string
	IncludeAudio   bool // forward synthesized audio on the event stream
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	deps Deps
	opts Options

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a server and, when deps.Events is set, starts broadcasting it
// to connected clients until the channel closes.
func New(deps Deps, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{deps: deps, opts: opts, clients: make(map[*client]struct{})}
	if deps.Events != nil {
		go s.broadcast(deps.Events)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.Middleware)
	if s.deps.Middleware != nil {
		r.Use(s.deps.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{trace.TraceIDKey},
		MaxAge:         300,
	}))

	r.Get("/ws", s.handleWebSocket)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/session", s.handleSession)
		r.Post("/session/start", s.handleSessionStart)
		r.Post("/session/stop", s.handleSessionStop)
		r.Get("/transcript", s.handleTranscript)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	status := "ok"
	resp := map[string]any{}
	if s.deps.Inference != nil {
		services := make(map[string]string, len(s.deps.Services))
		for _, name := range s.deps.Services {
			if s.deps.Inference.Healthy(ctx, name) {
				services[name] = "serving"
			} else {
				services[name] = "unavailable"
				status = "degraded"
			}
		}
		resp["services"] = services
		resp["breakers"] = s.deps.Inference.BreakerStates()
	}
	if s.deps.History != nil {
		if err := s.deps.History.HealthCheck(ctx); err != nil {
			trace.Logger(ctx).Warn("history health check failed", "error", err)
			resp["history"] = err.Error()
			status = "degraded"
		} else {
			resp["history"] = "ok"
		}
	}
	resp["status"] = status
	resp["session"] = s.deps.Orch.State().Active

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orch.Stats())
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orch.State())
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var cfg orchestrator.SessionConfig
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session config: "+err.Error())
			return
		}
	}
	if cfg.OutputRouting != "" && cfg.OutputRouting != "speakers" && cfg.OutputRouting != "none" {
		writeError(w, http.StatusBadRequest, "outputRouting must be speakers or none")
		return
	}

	id, err := s.deps.Orch.StartSession(r.Context(), cfg)
	if errors.Is(err, apperrors.ErrSessionActive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		trace.Logger(r.Context()).Error("start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "sessionId": id, "state": s.deps.Orch.State()})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Orch.StopSession()
	if errors.Is(err, apperrors.ErrNoSession) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		trace.Logger(r.Context()).Error("stop session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcripts == nil {
		writeJSON(w, http.StatusOK, []transcript.Entry{})
		return
	}
	seconds, ok := queryInt(w, r, "seconds", DefaultTranscriptSeconds)
	if !ok {
		return
	}
	entries := s.deps.Transcripts.Recent(seconds)
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}
	limit, ok := queryInt(w, r, "limit", DefaultHistoryLimit)
	if !ok {
		return
	}
	limit = min(limit, MaxHistoryLimit)

	records, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		trace.Logger(r.Context()).Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Close disconnects every websocket client.
func (s *Server) Close() {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, key+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
