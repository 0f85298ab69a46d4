// ABOUTME: Tiered credential resolution for canonical calls.
// ABOUTME: static override > process cache > org/session lookup > token service.

package creds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/session"
)

// DefaultPromptTimeout bounds the interactive organization-id prompt wait.
const DefaultPromptTimeout = 60 * time.Second

// DefaultCacheTTL bounds how long a resolved credential is reused.
const DefaultCacheTTL = 30 * time.Minute

// Service is the subset of the credential service the resolver needs.
type Service interface {
	TokenByUser(ctx context.Context, userID string) (string, error)
	FallbackSessionByOrg(ctx context.Context, organizationID string) (sessionID, userID string, err error)
}

// PromptSender delivers a server-initiated prompt over a caller's live
// connection. Implemented by the MCP stream hub.
type PromptSender interface {
	SendPrompt(sessionID, question string) error
}

// Resolver runs the credential decision procedure once per canonical call
// before dispatch.
type Resolver struct {
	static        string
	cache         *TokenCache
	registry      *session.Registry
	service       Service
	broker        *PromptBroker
	prompts       PromptSender
	promptTimeout time.Duration
	logger        *slog.Logger
}

// ResolverConfig holds resolver construction options.
type ResolverConfig struct {
	// StaticToken, when set, pins one credential for the whole process.
	// It wins over every other tier, including per-call org data.
	StaticToken string

	CacheTTL      time.Duration
	Registry      *session.Registry
	Service       Service
	Broker        *PromptBroker
	Prompts       PromptSender
	PromptTimeout time.Duration
	Logger        *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Registry == nil {
		return nil, errors.New("session registry is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("credential service is required")
	}
	if cfg.Broker == nil {
		return nil, errors.New("prompt broker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}
	promptTimeout := cfg.PromptTimeout
	if promptTimeout == 0 {
		promptTimeout = DefaultPromptTimeout
	}

	return &Resolver{
		static:        cfg.StaticToken,
		cache:         NewTokenCache(cacheTTL),
		registry:      cfg.Registry,
		service:       cfg.Service,
		broker:        cfg.Broker,
		prompts:       cfg.Prompts,
		promptTimeout: promptTimeout,
		logger:        logger,
	}, nil
}

// SetPromptSender wires the live-connection prompt path after construction.
// The stream hub is built alongside the resolver, so the reference arrives
// late.
func (r *Resolver) SetPromptSender(p PromptSender) {
	r.prompts = p
}

// Resolve produces the upstream access credential for a call. Resolution
// failures are terminal for the call; nothing below the static override
// retries.
func (r *Resolver) Resolve(ctx context.Context, c call.Call) (Record, error) {
	// Tier 1: operator-pinned override, unconditional.
	if r.static != "" {
		return Record{Token: r.static, SourceTier: TierStatic}, nil
	}

	// Tier 2: credential from a prior resolution in this process.
	if rec, ok := r.cache.Get(); ok {
		return rec, nil
	}

	// Tier 3: require an organization id, prompting interactively when
	// the caller has a live connection.
	orgID, _ := c.Args["organization_id"].(string)
	if orgID == "" {
		var err error
		orgID, err = r.promptForOrganization(ctx, c.SessionID)
		if err != nil {
			return Record{}, err
		}
	}

	// Tier 4: resolve the caller identity for the organization.
	userID, err := r.resolveUser(ctx, c.SessionID, orgID)
	if err != nil {
		return Record{}, err
	}

	// Tier 5: fetch the upstream token for that caller.
	token, err := r.service.TokenByUser(ctx, userID)
	if err != nil {
		r.logger.Warn("token fetch failed", "user_id", userID, "error", err)
		return Record{}, call.Errorf(call.CodeTokenFetchFailed, "fetching token for user %s: %v", userID, err)
	}

	rec := Record{Token: token, SourceTier: TierService}
	r.cache.Put(rec)

	r.logger.Debug("credential resolved",
		"user_id", userID,
		"organization_id", orgID,
		"tier", rec.SourceTier,
	)
	return rec, nil
}

// promptForOrganization asks the caller for an organization id over their
// live connection and waits for the correlated reply. One-shot: a timeout
// is terminal, never retried.
func (r *Resolver) promptForOrganization(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" || r.prompts == nil {
		return "", call.NewError(call.CodeMissingOrganizationID,
			"organization_id is required and no active connection exists to request it")
	}

	replies, cancel, err := r.broker.Register(sessionID)
	if err != nil {
		return "", call.NewError(call.CodeMissingOrganizationID, err.Error())
	}
	defer cancel()

	if err := r.prompts.SendPrompt(sessionID, "Please provide your organization_id to continue."); err != nil {
		return "", call.Errorf(call.CodeMissingOrganizationID, "sending prompt: %v", err)
	}

	timer := time.NewTimer(r.promptTimeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if reply == "" {
			return "", call.NewError(call.CodeMissingOrganizationID, "caller supplied an empty organization_id")
		}
		return reply, nil
	case <-timer.C:
		r.logger.Warn("organization prompt timed out", "session_id", sessionID)
		return "", call.Errorf(call.CodeUserResponseTimeout,
			"no organization_id received within %s", r.promptTimeout)
	case <-ctx.Done():
		return "", call.Errorf(call.CodeUserResponseTimeout, "request cancelled while awaiting organization_id")
	}
}

// resolveUser turns a session id or organization id into a caller identity.
// A live session mapping short-circuits the org-based fallback. When the
// fallback answers with only a session_id, that id is looked up in the
// registry before the call fails.
func (r *Resolver) resolveUser(ctx context.Context, sessionID, orgID string) (string, error) {
	if sessionID != "" {
		if sess, err := r.registry.Lookup(ctx, sessionID); err == nil && sess.UserID != "" {
			return sess.UserID, nil
		}
	}

	fallbackSession, fallbackUser, err := r.service.FallbackSessionByOrg(ctx, orgID)
	if err != nil {
		r.logger.Warn("org session fallback failed", "organization_id", orgID, "error", err)
		return "", call.Errorf(call.CodeNoSessionFound, "no session found for organization %s: %v", orgID, err)
	}
	if fallbackUser != "" {
		return fallbackUser, nil
	}
	if fallbackSession != "" {
		if sess, err := r.registry.Lookup(ctx, fallbackSession); err == nil && sess.UserID != "" {
			return sess.UserID, nil
		}
	}
	return "", call.Errorf(call.CodeNoSessionFound, "organization %s resolved to no usable caller identity", orgID)
}

// InvalidateCache drops the tier-2 cached credential (for diagnostics).
func (r *Resolver) InvalidateCache() {
	r.cache.Clear()
}
