// ABOUTME: SSE stream hub for the MCP session-oriented transport.
// ABOUTME: Tracks live connections and pushes correlated server-to-client
// messages, including interactive credential prompts.

package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// keepaliveInterval spaces SSE comment frames so idle streams stay open
// through proxies.
const keepaliveInterval = 30 * time.Second

// streamConn is one live SSE stream.
type streamConn struct {
	sessionID string
	events    chan []byte
}

// Hub owns the set of live SSE streams, keyed by session id. Streams are
// registered when a client opens /sse and dropped when the connection
// closes; the companion /messages POST delivers client messages against
// an open stream.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*streamConn
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*streamConn),
		logger: logger,
	}
}

// ServeStream handles a long-lived SSE connection. The first event names
// the companion message endpoint carrying the assigned session id; all
// subsequent server-to-client messages flow as message events.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	conn := &streamConn{
		sessionID: uuid.New().String(),
		events:    make(chan []byte, 16),
	}

	h.mu.Lock()
	h.conns[conn.sessionID] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn.sessionID)
		h.mu.Unlock()
		h.logger.Info("stream closed", "session_id", conn.sessionID)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?session_id=%s\n\n", conn.sessionID)
	flusher.Flush()

	h.logger.Info("stream opened", "session_id", conn.sessionID)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-conn.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", ev)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Send pushes a message to the stream for the given session.
func (h *Hub) Send(sessionID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding stream message: %w", err)
	}

	h.mu.RLock()
	conn, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no open stream for session %s", sessionID)
	}

	select {
	case conn.events <- data:
		return nil
	default:
		h.logger.Warn("stream buffer full, dropping message", "session_id", sessionID)
		return fmt.Errorf("stream buffer full for session %s", sessionID)
	}
}

// SendPrompt asks the caller for input over their live stream. Used by
// credential resolution when a call arrives without an organization id.
func (h *Hub) SendPrompt(sessionID, question string) error {
	return h.Send(sessionID, Notification{
		JSONRPC: "2.0",
		Method:  "gateway/prompt",
		Params:  map[string]string{"question": question},
	})
}

// Connected reports whether a live stream exists for the session.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[sessionID]
	return ok
}

// ConnectionCount returns the number of open streams.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
