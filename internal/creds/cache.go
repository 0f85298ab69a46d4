// ABOUTME: Process-local TTL cache for the most recently resolved credential.
// ABOUTME: Tier 2 of the resolution chain; a hit skips all external lookups.

package creds

import (
	"sync"
	"time"
)

// Tier identifies which step of the resolution chain produced a credential.
type Tier string

// Resolution tiers, in precedence order.
const (
	TierStatic  Tier = "static"
	TierCache   Tier = "cache"
	TierService Tier = "service"
)

// Record is a resolved upstream access credential. Never persisted; the
// cache holds it only for its TTL.
type Record struct {
	Token      string
	SourceTier Tier
	Expiry     *time.Time
}

// TokenCache holds the credential from the last successful resolution.
// A single slot suffices: the gateway resolves one upstream identity per
// process unless a static override is pinned.
type TokenCache struct {
	mu       sync.Mutex
	record   *Record
	storedAt time.Time
	ttl      time.Duration
}

// NewTokenCache creates a cache whose entries live for the given TTL.
func NewTokenCache(ttl time.Duration) *TokenCache {
	return &TokenCache{ttl: ttl}
}

// Put stores a credential, replacing any previous one.
func (c *TokenCache) Put(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record = &rec
	c.storedAt = time.Now()
}

// Get returns the cached credential if present and unexpired.
func (c *TokenCache) Get() (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.record == nil {
		return Record{}, false
	}
	if time.Since(c.storedAt) >= c.ttl {
		c.record = nil
		return Record{}, false
	}
	if c.record.Expiry != nil && time.Now().After(*c.record.Expiry) {
		c.record = nil
		return Record{}, false
	}

	rec := *c.record
	rec.SourceTier = TierCache
	return rec, true
}

// Clear drops the cached credential.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = nil
}
