// ABOUTME: Tests for the plain REST tool endpoints.
// ABOUTME: Covers listing, lookup, invocation, and the response envelope.

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

type fakeInvoker struct {
	fn   func(c call.Call) call.Result
	last call.Call
}

func (f *fakeInvoker) Invoke(_ context.Context, c call.Call) call.Result {
	f.last = c
	if f.fn == nil {
		return call.Success(map[string]any{"ok": true})
	}
	return f.fn(c)
}

func newTestServer(t *testing.T, invoker *fakeInvoker) *httptest.Server {
	t.Helper()

	c := catalog.New(nil)
	require.NoError(t, c.Register(&catalog.Tool{
		Definition: catalog.Definition{
			Name:        "get_campaign",
			Description: "fetch a campaign",
			InputSchema: &catalog.Schema{
				Type:     "object",
				Required: []string{"campaign_id"},
				Properties: map[string]*catalog.Schema{
					"campaign_id": {Type: "string"},
				},
			},
		},
		Handler: func(_ context.Context, _ map[string]any, _ string) (any, error) { return nil, nil },
	}))

	srv, err := NewServer(Config{Catalog: c, Invoker: invoker})
	require.NoError(t, err)

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandleList(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Get(ts.URL + "/api/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var defs []ToolDef
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "get_campaign", defs[0].Name)
}

func TestHandleDescribe(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Get(ts.URL + "/api/tools/get_campaign")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var def ToolDef
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	assert.Equal(t, "get_campaign", def.Name)
	assert.Equal(t, "fetch a campaign", def.Description)
}

func TestHandleDescribe_Unknown(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Get(ts.URL + "/api/tools/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, 1001, env.Error.Code)
}

func TestHandleCall_Success(t *testing.T) {
	inv := &fakeInvoker{}
	ts := newTestServer(t, inv)

	resp, err := http.Post(ts.URL+"/api/tools/call", "application/json", strings.NewReader(
		`{"name":"get_campaign","arguments":{"campaign_id":"c_1"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	assert.Equal(t, "get_campaign", inv.last.Tool)
}

func TestHandleCall_MalformedBody(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Post(ts.URL+"/api/tools/call", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, 1000, env.Error.Code)
}

func TestHandleCall_FailureEnvelope(t *testing.T) {
	inv := &fakeInvoker{fn: func(_ call.Call) call.Result {
		return call.Failure(call.NewError(call.CodeMissingOrganizationID, "organization_id is required"))
	}}
	ts := newTestServer(t, inv)

	resp, err := http.Post(ts.URL+"/api/tools/call", "application/json", strings.NewReader(
		`{"name":"get_campaign","arguments":{"campaign_id":"c_1"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, 1003, env.Error.Code)
	assert.Equal(t, "organization_id is required", env.Error.Message)
}
