// ABOUTME: Tests for the OpenAI-style function-calling HTTP endpoints.
// ABOUTME: Covers listing, lookup, invocation, and HTTP status mapping.

package openai

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
			Name:        "list_campaigns",
			Description: "list campaigns",
			InputSchema: &catalog.Schema{
				Type:     "object",
				Required: []string{"account_id"},
				Properties: map[string]*catalog.Schema{
					"account_id": {Type: "string"},
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

	resp, err := http.Get(ts.URL + "/v1/functions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var defs []FunctionDef
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "list_campaigns", defs[0].Function.Name)
}

func TestHandleDescribe(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Get(ts.URL + "/v1/functions/list_campaigns")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var def FunctionDef
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	assert.Equal(t, "list_campaigns", def.Function.Name)
}

func TestHandleDescribe_Unknown(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Get(ts.URL + "/v1/functions/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "unknown_function", errResp.Error.Type)
}

func TestHandleCall_Success(t *testing.T) {
	inv := &fakeInvoker{}
	ts := newTestServer(t, inv)

	resp, err := http.Post(ts.URL+"/v1/functions/call", "application/json", strings.NewReader(
		`{"name":"list_campaigns","arguments":{"account_id":"act_1"},"call_id":"call-9"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out CallResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "call-9", out.CallID)
	assert.Equal(t, "list_campaigns", inv.last.Tool)
	// Stateless convention: no session id travels with the call.
	assert.Empty(t, inv.last.SessionID)
}

func TestHandleCall_ParseFailureIs400(t *testing.T) {
	ts := newTestServer(t, &fakeInvoker{})

	resp, err := http.Post(ts.URL+"/v1/functions/call", "application/json", strings.NewReader(
		`{"name":"list_campaigns"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "invalid_request", errResp.Error.Type)
}

func TestHandleCall_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code   call.Code
		status int
	}{
		{call.CodeInvalidArguments, http.StatusBadRequest},
		{call.CodeMissingOrganizationID, http.StatusBadRequest},
		{call.CodeUnknownTool, http.StatusNotFound},
		{call.CodeNoSessionFound, http.StatusBadGateway},
		{call.CodeTokenFetchFailed, http.StatusBadGateway},
		{call.CodeUserResponseTimeout, http.StatusGatewayTimeout},
		{call.CodeToolExecutionFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			inv := &fakeInvoker{fn: func(_ call.Call) call.Result {
				return call.Failure(call.NewError(tt.code, "boom"))
			}}
			ts := newTestServer(t, inv)

			resp, err := http.Post(ts.URL+"/v1/functions/call", "application/json", strings.NewReader(
				`{"name":"list_campaigns","call_id":"c1"}`))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			// call_id is echoed even on failures after parsing.
			assert.Equal(t, "c1", errResp.CallID)
		})
	}
}
