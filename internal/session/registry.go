// ABOUTME: Session Registry mapping connection session ids to caller identities.
// ABOUTME: Entries are inserted out-of-band by the registration flow, not by adapters.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotFound indicates no session exists for the given id.
var ErrNotFound = errors.New("session not found")

// Session associates a live connection with a resolved caller identity.
type Session struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists session-to-caller mappings. Implementations must be safe
// for concurrent use: registration writes and credential-resolution reads
// interleave freely.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	Delete(ctx context.Context, sessionID string) error

	// Expire removes sessions created before the cutoff and reports how
	// many were dropped.
	Expire(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// Registry wraps a Store with an optional TTL sweep.
// A TTL of zero retains entries for the process lifetime.
type Registry struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// RegistryConfig holds registry construction options.
type RegistryConfig struct {
	Store  Store
	TTL    time.Duration
	Logger *slog.Logger
}

// NewRegistry creates a Registry. When a TTL is configured, a background
// sweeper drops entries older than the TTL once a minute.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		store:  cfg.Store,
		ttl:    cfg.TTL,
		logger: logger,
		done:   make(chan struct{}),
	}
	if r.ttl > 0 {
		go r.sweep()
	}
	return r, nil
}

// Register records a session-to-caller mapping. A re-registration for the
// same session id replaces the previous entry; session ids are unique
// across the registry.
func (r *Registry) Register(ctx context.Context, s *Session) error {
	if s.SessionID == "" {
		return errors.New("session id is required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Put(ctx, s); err != nil {
		return err
	}
	r.logger.Info("session registered",
		"session_id", s.SessionID,
		"user_id", s.UserID,
		"organization_id", s.OrganizationID,
	)
	return nil
}

// Lookup returns the session for the given id, or ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, sessionID string) (*Session, error) {
	return r.store.Get(ctx, sessionID)
}

// All enumerates every mapping, for diagnostics.
func (r *Registry) All(ctx context.Context) ([]*Session, error) {
	return r.store.List(ctx)
}

// Remove drops a single session mapping.
func (r *Registry) Remove(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, sessionID)
}

// sweep periodically evicts entries older than the TTL.
func (r *Registry) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-r.ttl)
			n, err := r.store.Expire(context.Background(), cutoff)
			if err != nil {
				r.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("expired sessions swept", "count", n)
			}
		case <-r.done:
			return
		}
	}
}

// Close stops the sweeper and closes the underlying store.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return r.store.Close()
}
