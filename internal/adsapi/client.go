// ABOUTME: Outbound HTTP client for the third-party advertising API.
// ABOUTME: Each tool handler is a single request against this client.

package adsapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds one outbound advertising-API request.
const DefaultTimeout = 30 * time.Second

// Client wraps the advertising API. The resolved access token is passed
// per request; the client holds no credentials of its own.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// Config holds ads client construction options.
type Config struct {
	// BaseURL is the API root, e.g. "https://graph.facebook.com".
	BaseURL string
	// APIVersion is the path version segment, e.g. "v21.0".
	APIVersion string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewClient creates an advertising-API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ads API base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	base := cfg.BaseURL
	if cfg.APIVersion != "" {
		base = base + "/" + cfg.APIVersion
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: client, logger: logger}, nil
}

// apiError is the advertising API's error body.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// get performs one GET against the API and decodes the JSON response.
// Upstream failures surface with the API's own message so callers can
// diagnose them unchanged.
func (c *Client) get(ctx context.Context, path, token string, query map[string]string) (map[string]any, error) {
	var out map[string]any
	var apiErr apiError

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetResult(&out).
		SetError(&apiErr)
	for k, v := range query {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("ads API request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("ads API error (%s, code %d): %s",
				apiErr.Error.Type, apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("ads API returned %s", resp.Status())
	}
	return out, nil
}
