// ABOUTME: HTTP client for the external credential service.
// ABOUTME: Token lookup by user, org-session fallback, and session save.

package creds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultServiceTimeout bounds outbound credential-service calls so a
// caller's request never suspends indefinitely.
const DefaultServiceTimeout = 30 * time.Second

// ErrServiceFailure indicates the credential service answered without a
// success flag or with a missing field.
var ErrServiceFailure = errors.New("credential service failure")

// ServiceClient talks to the credential service over HTTP.
type ServiceClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// ServiceConfig holds credential-service client options.
type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewServiceClient creates a client for the credential service.
func NewServiceClient(cfg ServiceConfig) (*ServiceClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("credential service base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultServiceTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &ServiceClient{http: client, logger: logger}, nil
}

type tokenResponse struct {
	Success             bool   `json:"success"`
	FacebookAccessToken string `json:"facebook_access_token"`
}

// TokenByUser fetches the upstream access token for a resolved caller.
func (c *ServiceClient) TokenByUser(ctx context.Context, userID string) (string, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		SetResult(&out).
		Get("/api/token")
	if err != nil {
		return "", fmt.Errorf("fetching token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: token endpoint returned %s", ErrServiceFailure, resp.Status())
	}
	if !out.Success {
		return "", fmt.Errorf("%w: token lookup unsuccessful for user %s", ErrServiceFailure, userID)
	}
	if out.FacebookAccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access token", ErrServiceFailure)
	}
	return out.FacebookAccessToken, nil
}

type orgSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// FallbackSessionByOrg returns the most recent known caller for an
// organization when no live session mapping exists.
func (c *ServiceClient) FallbackSessionByOrg(ctx context.Context, organizationID string) (sessionID, userID string, err error) {
	var out orgSessionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("organization_id", organizationID).
		SetResult(&out).
		Get("/api/org-session")
	if err != nil {
		return "", "", fmt.Errorf("fetching org session: %w", err)
	}
	if resp.IsError() {
		return "", "", fmt.Errorf("%w: org-session endpoint returned %s", ErrServiceFailure, resp.Status())
	}
	if !out.Success {
		return "", "", fmt.Errorf("%w: no session known for organization %s", ErrServiceFailure, organizationID)
	}
	return out.SessionID, out.UserID, nil
}

type saveSessionRequest struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	OrganizationID string `json:"organization_id"`
}

type saveSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SaveUserSession forwards a freshly registered session mapping to the
// credential service.
func (c *ServiceClient) SaveUserSession(ctx context.Context, userID, sessionID, organizationID string) error {
	var out saveSessionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(saveSessionRequest{
			UserID:         userID,
			SessionID:      sessionID,
			OrganizationID: organizationID,
		}).
		SetResult(&out).
		Post("/api/session")
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: session endpoint returned %s", ErrServiceFailure, resp.Status())
	}
	if !out.Success {
		if out.Message != "" {
			return fmt.Errorf("%w: %s", ErrServiceFailure, out.Message)
		}
		return fmt.Errorf("%w: session save unsuccessful", ErrServiceFailure)
	}
	return nil
}
