// ABOUTME: Tests for tiered credential resolution.
// ABOUTME: Covers static override, caching, prompting, session lookup,
// org fallback, and failure codes.

package creds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/session"
)

// fakeService counts calls so tests can assert which tiers ran.
type fakeService struct {
	token         string
	tokenErr      error
	fbSessionID   string
	fbUserID      string
	fbErr         error
	tokenCalls    int
	fallbackCalls int
	lastUserID    string
	lastOrgID     string
}

func (f *fakeService) TokenByUser(_ context.Context, userID string) (string, error) {
	f.tokenCalls++
	f.lastUserID = userID
	return f.token, f.tokenErr
}

func (f *fakeService) FallbackSessionByOrg(_ context.Context, orgID string) (string, string, error) {
	f.fallbackCalls++
	f.lastOrgID = orgID
	return f.fbSessionID, f.fbUserID, f.fbErr
}

// fakePromptSender records prompts; replies are injected through the broker.
type fakePromptSender struct {
	sent    []string
	sendErr error
}

func (f *fakePromptSender) SendPrompt(sessionID, _ string) error {
	f.sent = append(f.sent, sessionID)
	return f.sendErr
}

type resolverFixture struct {
	resolver *Resolver
	service  *fakeService
	broker   *PromptBroker
	prompts  *fakePromptSender
	registry *session.Registry
}

func newResolverFixture(t *testing.T, cfg ResolverConfig) *resolverFixture {
	t.Helper()

	f := &resolverFixture{
		service: &fakeService{},
		broker:  NewPromptBroker(nil),
		prompts: &fakePromptSender{},
	}
	registry, err := session.NewRegistry(session.RegistryConfig{Store: session.NewMemoryStore()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })
	f.registry = registry

	if cfg.Registry == nil {
		cfg.Registry = registry
	}
	if cfg.Service == nil {
		cfg.Service = f.service
	}
	if cfg.Broker == nil {
		cfg.Broker = f.broker
	}
	if cfg.Prompts == nil {
		cfg.Prompts = f.prompts
	}

	f.resolver, err = NewResolver(cfg)
	require.NoError(t, err)
	return f
}

func TestResolve_StaticOverrideWinsUnconditionally(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{StaticToken: "pinned"})

	// Even a call carrying a full org context resolves statically.
	rec, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool:      "list_campaigns",
		Args:      map[string]any{"organization_id": "org-1"},
		SessionID: "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "pinned", rec.Token)
	assert.Equal(t, TierStatic, rec.SourceTier)
	assert.Zero(t, f.service.tokenCalls)
	assert.Zero(t, f.service.fallbackCalls)
}

func TestResolve_SuccessfulResolutionIsCached(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.token = "tok-1"
	f.service.fbUserID = "user-1"
	ctx := context.Background()
	c := call.Call{Tool: "list_campaigns", Args: map[string]any{"organization_id": "org-1"}}

	rec, err := f.resolver.Resolve(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, TierService, rec.SourceTier)
	assert.Equal(t, 1, f.service.tokenCalls)

	// Second call hits the cache; no further service traffic.
	rec2, err := f.resolver.Resolve(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, TierCache, rec2.SourceTier)
	assert.Equal(t, "tok-1", rec2.Token)
	assert.Equal(t, 1, f.service.tokenCalls)
}

func TestResolve_MissingOrgWithoutConnectionFailsWithoutNetwork(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})

	_, err := f.resolver.Resolve(context.Background(), call.Call{Tool: "list_campaigns"})

	require.Error(t, err)
	ce := call.AsError(err)
	assert.Equal(t, call.CodeMissingOrganizationID, ce.Code)
	// No outbound calls of any kind were made.
	assert.Zero(t, f.service.tokenCalls)
	assert.Zero(t, f.service.fallbackCalls)
	assert.Empty(t, f.prompts.sent)
}

func TestResolve_PromptReplySuppliesOrganization(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{PromptTimeout: time.Second})
	f.service.token = "tok-1"
	f.service.fbUserID = "user-1"

	// Answer the prompt once it appears.
	go func() {
		for i := 0; i < 100; i++ {
			if f.broker.Deliver("sess-1", "org-42") {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	rec, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool:      "list_campaigns",
		SessionID: "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, []string{"sess-1"}, f.prompts.sent)
	assert.Equal(t, "org-42", f.service.lastOrgID)
	// The wait is fully torn down.
	assert.Equal(t, 0, f.broker.PendingCount())
}

func TestResolve_PromptTimeoutIsTerminalAndLeakFree(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{PromptTimeout: 20 * time.Millisecond})

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool:      "list_campaigns",
		SessionID: "sess-1",
	})

	require.Error(t, err)
	ce := call.AsError(err)
	assert.Equal(t, call.CodeUserResponseTimeout, ce.Code)
	// Timed-out waits must not linger and consume later replies.
	assert.Equal(t, 0, f.broker.PendingCount())
	assert.False(t, f.broker.Deliver("sess-1", "too-late"))
}

func TestResolve_EmptyPromptReplyRejected(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{PromptTimeout: time.Second})

	go func() {
		for i := 0; i < 100; i++ {
			if f.broker.Deliver("sess-1", "") {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool:      "list_campaigns",
		SessionID: "sess-1",
	})

	require.Error(t, err)
	assert.Equal(t, call.CodeMissingOrganizationID, call.AsError(err).Code)
}

func TestResolve_LiveSessionShortCircuitsOrgFallback(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.token = "tok-1"

	require.NoError(t, f.registry.Register(context.Background(), &session.Session{
		SessionID: "sess-1",
		UserID:    "user-7",
	}))

	rec, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool:      "list_campaigns",
		Args:      map[string]any{"organization_id": "org-1"},
		SessionID: "sess-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, "user-7", f.service.lastUserID)
	assert.Zero(t, f.service.fallbackCalls)
}

func TestResolve_FallbackUserIDIsAuthoritative(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.token = "tok-1"
	f.service.fbUserID = "user-fb"
	f.service.fbSessionID = "sess-ignored"

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool: "list_campaigns",
		Args: map[string]any{"organization_id": "org-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "user-fb", f.service.lastUserID)
}

func TestResolve_FallbackSessionIDLookedUpInRegistry(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.token = "tok-1"
	f.service.fbSessionID = "sess-known"

	require.NoError(t, f.registry.Register(context.Background(), &session.Session{
		SessionID: "sess-known",
		UserID:    "user-reg",
	}))

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool: "list_campaigns",
		Args: map[string]any{"organization_id": "org-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "user-reg", f.service.lastUserID)
}

func TestResolve_NoUsableIdentityFails(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.fbErr = errors.New("service down")

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool: "list_campaigns",
		Args: map[string]any{"organization_id": "org-1"},
	})

	require.Error(t, err)
	assert.Equal(t, call.CodeNoSessionFound, call.AsError(err).Code)
}

func TestResolve_TokenFetchFailure(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.fbUserID = "user-1"
	f.service.tokenErr = errors.New("token endpoint down")

	_, err := f.resolver.Resolve(context.Background(), call.Call{
		Tool: "list_campaigns",
		Args: map[string]any{"organization_id": "org-1"},
	})

	require.Error(t, err)
	ce := call.AsError(err)
	assert.Equal(t, call.CodeTokenFetchFailed, ce.Code)
	assert.Contains(t, ce.Message, "token endpoint down")

	// A failed resolution leaves nothing in the cache.
	_, err = f.resolver.Resolve(context.Background(), call.Call{
		Tool: "list_campaigns",
		Args: map[string]any{"organization_id": "org-1"},
	})
	require.Error(t, err)
	assert.Equal(t, 2, f.service.tokenCalls)
}

func TestInvalidateCache(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	f.service.token = "tok-1"
	f.service.fbUserID = "user-1"
	c := call.Call{Tool: "list_campaigns", Args: map[string]any{"organization_id": "org-1"}}

	_, err := f.resolver.Resolve(context.Background(), c)
	require.NoError(t, err)

	f.resolver.InvalidateCache()

	_, err = f.resolver.Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 2, f.service.tokenCalls)
}
