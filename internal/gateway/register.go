// ABOUTME: Session registration and diagnostics surface.
// ABOUTME: Binds caller identity to organization and forwards the binding
// to the credential service.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adforge/ads-gateway/internal/auth"
	"github.com/adforge/ads-gateway/internal/session"
)

// registerRequest binds a caller's upstream identity to an organization.
type registerRequest struct {
	AccessToken    string `json:"access_token"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`

	// SessionID ties the registration to an open connection. When empty
	// a fresh identifier is minted for the binding.
	SessionID string `json:"session_id,omitempty"`
}

type registerResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

// registerAuthRoutes mounts the registration and diagnostics endpoints,
// guarded by the JWT middleware when auth is required.
func (g *Gateway) registerAuthRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if g.config.Auth.RequireAuth {
			r.Use(auth.Middleware(g.verifier))
		}
		r.Post("/auth/register", g.handleRegister)
		r.Get("/auth/sessions", g.handleSessions)
	})
}

// handleRegister records a user/organization session binding and mirrors
// it to the credential service so the org-session fallback can find it.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.OrganizationID == "" {
		httpError(w, http.StatusBadRequest, "user_id and organization_id are required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	err := g.registry.Register(r.Context(), &session.Session{
		SessionID:      sessionID,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		g.logger.Error("session registration failed",
			"user_id", req.UserID,
			"error", err,
		)
		httpError(w, http.StatusInternalServerError, "failed to register session")
		return
	}

	// Mirroring is best-effort: the local registry is authoritative for
	// this process, and resolution tier 4 falls back to the service only
	// when the registry misses.
	if g.credsvc != nil {
		if err := g.credsvc.SaveUserSession(r.Context(), req.UserID, sessionID, req.OrganizationID); err != nil {
			g.logger.Warn("credential service session mirror failed",
				"user_id", req.UserID,
				"error", err,
			)
		}
	}

	g.logger.Info("session registered",
		"session_id", sessionID,
		"user_id", req.UserID,
		"organization_id", req.OrganizationID,
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(registerResponse{Success: true, SessionID: sessionID}); err != nil {
		g.logger.Warn("encoding register response", "error", err)
	}
}

// handleSessions lists the registry's current bindings for diagnostics.
func (g *Gateway) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := g.registry.All(r.Context())
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		g.logger.Error("listing sessions failed", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	}); err != nil {
		g.logger.Warn("encoding sessions response", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"message": message},
	})
}
