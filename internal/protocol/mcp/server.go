// ABOUTME: HTTP server for the MCP session-oriented convention.
// ABOUTME: Routes initialize, initialized, tools/list, tools/call, and
// prompt replies delivered against an open SSE stream.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
	"github.com/adforge/ads-gateway/internal/creds"
)

// MaxRequestBodySize is the maximum allowed size for message bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Invoker executes a canonical call through the shared gateway pipeline.
type Invoker interface {
	Invoke(ctx context.Context, c call.Call) call.Result
}

// Server binds the MCP transport: a long-lived SSE stream plus a
// short-lived POST used only to deliver a single client message against
// the open stream.
type Server struct {
	adapter *Adapter
	catalog *catalog.Catalog
	hub     *Hub
	invoker Invoker
	broker  *creds.PromptBroker
	version string
	logger  *slog.Logger
}

// Config holds MCP server construction options.
type Config struct {
	Catalog *catalog.Catalog
	Hub     *Hub
	Invoker Invoker
	Broker  *creds.PromptBroker
	Version string
	Logger  *slog.Logger
}

// NewServer creates the MCP transport server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Hub == nil {
		return nil, errors.New("hub is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if cfg.Broker == nil {
		return nil, errors.New("prompt broker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Server{
		adapter: NewAdapter(),
		catalog: cfg.Catalog,
		hub:     cfg.Hub,
		invoker: cfg.Invoker,
		broker:  cfg.Broker,
		version: version,
		logger:  logger,
	}, nil
}

// Adapter exposes the wire adapter for definition projection.
func (s *Server) Adapter() *Adapter {
	return s.adapter
}

// RegisterRoutes registers the SSE and message endpoints.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/sse", s.hub.ServeStream)
	r.Post("/messages", s.handleMessage)
}

// handleMessage accepts one client-to-server JSON-RPC message. The HTTP
// response is always 202 for accepted messages; JSON-RPC responses flow
// back over the session's SSE stream, correlated by request id.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing session_id", http.StatusBadRequest)
		return
	}
	if !s.hub.Connected(sessionID) {
		http.Error(w, "Not Found: no open stream for session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		http.Error(w, "Bad Request: unreadable body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.push(sessionID, Response{
			JSONRPC: "2.0",
			Error:   &ResponseError{Code: codeParseError, Message: "invalid JSON"},
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	isNotification := len(req.ID) == 0 || string(req.ID) == "null"

	s.logger.Debug("mcp message",
		"method", req.Method,
		"session_id", sessionID,
		"is_notification", isNotification,
	)

	if isNotification {
		s.handleNotification(sessionID, req)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(sessionID, req)
	case "tools/list":
		s.handleToolsList(sessionID, req)
	case "tools/call":
		s.handleToolsCall(sessionID, body)
	default:
		s.push(sessionID, Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &ResponseError{Code: codeMethodNotFound, Message: "method not found"},
		})
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleNotification processes one-way messages: the initialized
// acknowledgment and prompt replies. Neither produces a response body.
func (s *Server) handleNotification(sessionID string, req Request) {
	switch req.Method {
	case "notifications/initialized":
		s.logger.Info("client initialized", "session_id", sessionID)
	case "gateway/prompt_response":
		var params struct {
			OrganizationID string `json:"organization_id"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				s.logger.Warn("malformed prompt response", "session_id", sessionID)
				return
			}
		}
		if !s.broker.Deliver(sessionID, params.OrganizationID) {
			s.logger.Debug("prompt response with no pending wait", "session_id", sessionID)
		}
	default:
		s.logger.Warn("unexpected notification", "method", req.Method, "session_id", sessionID)
	}
}

// handleInitialize answers the handshake with protocol version and
// server identity. Tool calls are accepted only after this exchange.
func (s *Server) handleInitialize(sessionID string, req Request) {
	s.push(sessionID, Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    ServerName,
				"version": s.version,
			},
		},
	})
}

func (s *Server) handleToolsList(sessionID string, req Request) {
	s.push(sessionID, Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  s.adapter.Definitions(s.catalog.Definitions()),
	})
}

// handleToolsCall runs the call through the shared pipeline off the POST
// goroutine. Overlapping calls on one session complete independently;
// responses are correlated by id, not order.
func (s *Server) handleToolsCall(sessionID string, body []byte) {
	go func() {
		c, perr := s.adapter.ParseRequest(body)
		if perr != nil {
			s.push(sessionID, s.adapter.FormatError(perr))
			return
		}
		c.SessionID = sessionID

		res := s.invoker.Invoke(context.Background(), c)
		s.push(sessionID, s.adapter.FormatResponse(res, c.CallID))
	}()
}

// push sends a payload down the session's stream, logging delivery
// failures instead of surfacing them to the already-answered POST.
func (s *Server) push(sessionID string, payload any) {
	if err := s.hub.Send(sessionID, payload); err != nil {
		s.logger.Warn("failed to push stream message", "session_id", sessionID, "error", err)
	}
}
