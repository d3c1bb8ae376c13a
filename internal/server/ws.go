package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/voice-translator/internal/orchestrator"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/trace"
)

// Inbound message types.
const (
	MsgStart = "start"
	MsgStop  = "stop"
	MsgState = "state"
)

// Message is an inbound control message.
type Message struct {
	Type   string                      `json:"type"`
	Config *orchestrator.SessionConfig `json:"config,omitempty"`
}

// Reply answers an inbound message.
type Reply struct {
	Type    string                     `json:"type"`
	Message string                     `json:"message,omitempty"`
	State   *orchestrator.SessionState `json:"state,omitempty"`
}

// client is one websocket connection with its own outbound queue so a slow
// reader never stalls the broadcast.
type client struct {
	conn    *websocket.Conn
	send    chan any
	limiter *rate.Limiter
	once    sync.Once
	done    chan struct{}
}

// newClient allows RateLimitMessages inbound messages per RateLimitWindow,
// with bursts up to the same count.
func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		send:    make(chan any, ClientBufferSize),
		limiter: rate.NewLimiter(rate.Every(RateLimitWindow/RateLimitMessages), RateLimitMessages),
		done:    make(chan struct{}),
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

func (c *client) enqueue(v any) bool {
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case v := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := wsjson.Write(wctx, c.conn, v)
			cancel()
			if err != nil {
				trace.Logger(ctx).Debug("websocket write failed", "error", err)
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}

	c := newClient(conn)
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close(websocket.StatusNormalClosure, "")
	}()

	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)
	go c.writeLoop(ctx)

	state := s.deps.Orch.State()
	c.enqueue(Reply{Type: MsgState, State: &state})

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.Allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.enqueue(Reply{Type: "error", Message: "rate limit exceeded"})
			continue
		}
		c.enqueue(s.handleMessage(ctx, msg))
	}
}

func (s *Server) handleMessage(ctx context.Context, msg Message) Reply {
	ctx, span := trace.StartSpan(ctx, "ws_"+msg.Type)
	defer span.End()

	var err error
	switch msg.Type {
	case MsgStart:
		var cfg orchestrator.SessionConfig
		if msg.Config != nil {
			cfg = *msg.Config
		}
		_, err = s.deps.Orch.StartSession(ctx, cfg)
	case MsgStop:
		err = s.deps.Orch.StopSession()
	case MsgState:
	default:
		return Reply{Type: "error", Message: "unknown message type " + msg.Type}
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		return Reply{Type: "error", Message: err.Error()}
	}
	state := s.deps.Orch.State()
	return Reply{Type: MsgState, State: &state}
}

// broadcast fans every event out to connected clients. A client whose buffer
// is full misses the event.
func (s *Server) broadcast(ch <-chan events.Event) {
	for e := range ch {
		if !s.opts.IncludeAudio {
			e.Audio = nil
		}
		s.mu.RLock()
		for c := range s.clients {
			if !c.enqueue(e) {
				trace.Logger(context.Background()).Debug("dropping event for slow client", "type", e.Type)
			}
		}
		s.mu.RUnlock()
	}
}
