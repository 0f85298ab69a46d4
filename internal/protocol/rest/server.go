// ABOUTME: HTTP endpoints for the plain REST function-calling convention.
// ABOUTME: Definitions listing, per-tool lookup, and invocation.

package rest

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
)

const maxBodySize = 1 << 20

// Invoker executes a canonical call through the shared gateway pipeline.
type Invoker interface {
	Invoke(ctx context.Context, c call.Call) call.Result
}

// Server serves the REST tool endpoints.
type Server struct {
	adapter *Adapter
	catalog *catalog.Catalog
	invoker Invoker
	logger  *slog.Logger
}

// Config holds server construction options.
type Config struct {
	Catalog *catalog.Catalog
	Invoker Invoker
	Logger  *slog.Logger
}

// NewServer creates the REST server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		adapter: NewAdapter(),
		catalog: cfg.Catalog,
		invoker: cfg.Invoker,
		logger:  logger,
	}, nil
}

// Adapter exposes the wire adapter for tests and composition.
func (s *Server) Adapter() *Adapter {
	return s.adapter
}

// RegisterRoutes registers the /api/tools endpoints.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/api/tools", s.handleList)
	r.Get("/api/tools/{name}", s.handleDescribe)
	r.Post("/api/tools/call", s.handleCall)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.adapter.Definitions(s.catalog.Definitions()))
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tool := s.catalog.Get(name)
	if tool == nil {
		writeJSON(w, http.StatusNotFound, s.adapter.FormatError(
			call.Errorf(call.CodeUnknownTool, "unknown tool %q", name)))
		return
	}
	writeJSON(w, http.StatusOK, s.adapter.Describe(tool.Definition))
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil || int64(len(body)) > maxBodySize {
		writeJSON(w, http.StatusBadRequest, s.adapter.FormatError(
			call.NewError(call.CodeMalformedRequest, "unreadable or oversized body")))
		return
	}

	c, perr := s.adapter.ParseRequest(body)
	if perr != nil {
		writeJSON(w, http.StatusBadRequest, s.adapter.FormatError(perr))
		return
	}

	res := s.invoker.Invoke(r.Context(), c)
	status := http.StatusOK
	if res.Err != nil {
		status = errorStatus(res.Err.Code)
	}
	writeJSON(w, status, s.adapter.FormatResponse(res, ""))
}

// errorStatus maps gateway codes onto HTTP statuses for this convention.
func errorStatus(code call.Code) int {
	switch code {
	case call.CodeMalformedRequest, call.CodeInvalidArguments, call.CodeMissingOrganizationID:
		return http.StatusBadRequest
	case call.CodeUnknownTool:
		return http.StatusNotFound
	case call.CodeNoSessionFound, call.CodeTokenFetchFailed:
		return http.StatusBadGateway
	case call.CodeUserResponseTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}
