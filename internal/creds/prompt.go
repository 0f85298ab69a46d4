// ABOUTME: Broker for interactive prompt waits, keyed by session id.
// ABOUTME: Registers a waiter, races it against a timer, and resolves it
// from the message-receive path.

package creds

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrPromptPending indicates a prompt wait is already registered for the
// session; a caller cannot have two outstanding prompts at once.
var ErrPromptPending = errors.New("prompt already pending for session")

// PromptBroker correlates server-initiated prompts with caller replies.
// Registration and delivery happen on different request paths, so the
// waiting map is mutex-guarded.
type PromptBroker struct {
	mu      sync.Mutex
	waiting map[string]chan string
	logger  *slog.Logger
}

// NewPromptBroker creates an empty broker.
func NewPromptBroker(logger *slog.Logger) *PromptBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptBroker{
		waiting: make(map[string]chan string),
		logger:  logger,
	}
}

// Register adds a waiter for the session and returns the reply channel
// plus a cancel function. Cancel must be called on every exit path --
// timeout included -- so an expired wait never consumes a later reply.
func (b *PromptBroker) Register(sessionID string) (<-chan string, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.waiting[sessionID]; exists {
		return nil, nil, ErrPromptPending
	}

	ch := make(chan string, 1)
	b.waiting[sessionID] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.waiting[sessionID]; ok && cur == ch {
			delete(b.waiting, sessionID)
		}
	}
	return ch, cancel, nil
}

// Deliver resolves the waiter for the session with the caller's reply.
// Returns false if no wait is registered, in which case the reply is
// dropped rather than queued.
func (b *PromptBroker) Deliver(sessionID, reply string) bool {
	b.mu.Lock()
	ch, ok := b.waiting[sessionID]
	if ok {
		delete(b.waiting, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("prompt reply with no waiter", "session_id", sessionID)
		return false
	}
	ch <- reply
	return true
}

// PendingCount returns the number of outstanding waits (for tests).
func (b *PromptBroker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting)
}
