// ABOUTME: Tests for the MCP transport server over a real SSE stream.
// ABOUTME: Covers the endpoint handshake, message routing, and prompt replies.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
	"github.com/adforge/ads-gateway/internal/creds"
)

type fakeInvoker struct {
	fn func(c call.Call) call.Result
}

func (f *fakeInvoker) Invoke(_ context.Context, c call.Call) call.Result {
	if f.fn == nil {
		return call.Success(map[string]any{"ok": true})
	}
	return f.fn(c)
}

type mcpFixture struct {
	server  *httptest.Server
	broker  *creds.PromptBroker
	hub     *Hub
	invoker *fakeInvoker
}

func newMCPFixture(t *testing.T) *mcpFixture {
	t.Helper()

	c := catalog.New(nil)
	require.NoError(t, c.Register(&catalog.Tool{
		Definition: catalog.Definition{
			Name:        "list_ad_accounts",
			Description: "list accounts",
			InputSchema: &catalog.Schema{Type: "object"},
		},
		Handler: func(_ context.Context, _ map[string]any, _ string) (any, error) { return nil, nil },
	}))

	f := &mcpFixture{
		broker:  creds.NewPromptBroker(nil),
		hub:     NewHub(nil),
		invoker: &fakeInvoker{},
	}

	srv, err := NewServer(Config{
		Catalog: c,
		Hub:     f.hub,
		Invoker: f.invoker,
		Broker:  f.broker,
		Version: "test",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

// streamClient consumes one live SSE stream.
type streamClient struct {
	sessionID string
	events    chan string
}

// openStream connects to /sse, consumes the endpoint event, and pumps
// subsequent message events into a channel.
func openStream(t *testing.T, f *mcpFixture) *streamClient {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	event, data, err := readEvent(reader)
	require.NoError(t, err)
	require.Equal(t, "endpoint", event)
	sessionID := strings.TrimPrefix(data, "/messages?session_id=")
	require.NotEmpty(t, sessionID)

	sc := &streamClient{sessionID: sessionID, events: make(chan string, 16)}
	go func() {
		defer resp.Body.Close()
		for {
			event, data, err := readEvent(reader)
			if err != nil {
				close(sc.events)
				return
			}
			if event == "message" {
				sc.events <- data
			}
		}
	}()
	return sc
}

// readEvent parses one SSE frame, skipping comment keepalives.
func readEvent(r *bufio.Reader) (event, data string, err error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data, nil
			}
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func (sc *streamClient) next(t *testing.T) string {
	t.Helper()
	select {
	case data, ok := <-sc.events:
		require.True(t, ok, "stream closed unexpectedly")
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream message")
		return ""
	}
}

func postMessage(t *testing.T, f *mcpFixture, sessionID, body string) *http.Response {
	t.Helper()
	url := fmt.Sprintf("%s/messages?session_id=%s", f.server.URL, sessionID)
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleMessage_RequiresSessionID(t *testing.T) {
	f := newMCPFixture(t)

	resp, err := http.Post(f.server.URL+"/messages", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleMessage_UnknownSessionRejected(t *testing.T) {
	f := newMCPFixture(t)

	resp := postMessage(t, f, "not-a-session", `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInitialize_HandshakeOverStream(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	resp := postMessage(t, f, sc.sessionID, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var reply struct {
		ID     json.RawMessage `json:"id"`
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	assert.Equal(t, "1", string(reply.ID))
	assert.Equal(t, ProtocolVersion, reply.Result.ProtocolVersion)
	assert.Equal(t, ServerName, reply.Result.ServerInfo.Name)
	assert.Equal(t, "test", reply.Result.ServerInfo.Version)
}

func TestToolsList_OverStream(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	postMessage(t, f, sc.sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	var reply struct {
		Result struct {
			Tools []ToolInfo `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	require.Len(t, reply.Result.Tools, 1)
	assert.Equal(t, "list_ad_accounts", reply.Result.Tools[0].Name)
}

func TestToolsCall_ResponseCorrelatedByID(t *testing.T) {
	f := newMCPFixture(t)
	f.invoker.fn = func(c call.Call) call.Result {
		return call.Success(map[string]any{"tool": c.Tool, "session": c.SessionID})
	}
	sc := openStream(t, f)

	resp := postMessage(t, f, sc.sessionID,
		`{"jsonrpc":"2.0","id":42,"method":"tools/call","params":{"name":"list_ad_accounts"}}`)
	// The POST is acknowledged before the call completes.
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var reply struct {
		ID     json.RawMessage `json:"id"`
		Result CallToolResult  `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	assert.Equal(t, "42", string(reply.ID))
	require.Len(t, reply.Result.Content, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.Result.Content[0].Text), &payload))
	assert.Equal(t, "list_ad_accounts", payload["tool"])
	// The transport stamps the stream's session onto the call.
	assert.Equal(t, sc.sessionID, payload["session"])
}

func TestToolsCall_ErrorMappedToJSONRPC(t *testing.T) {
	f := newMCPFixture(t)
	f.invoker.fn = func(_ call.Call) call.Result {
		return call.Failure(call.NewError(call.CodeMissingOrganizationID, "need org"))
	}
	sc := openStream(t, f)

	postMessage(t, f, sc.sessionID,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"list_ad_accounts"}}`)

	var reply Response
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32000, reply.Error.Code)
	assert.Equal(t, "need org", reply.Error.Message)
}

func TestInvalidJSON_ParseErrorOverStream(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	resp := postMessage(t, f, sc.sessionID, `{broken`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var reply Response
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32700, reply.Error.Code)
}

func TestUnknownMethod_MethodNotFound(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	postMessage(t, f, sc.sessionID, `{"jsonrpc":"2.0","id":9,"method":"tools/destroy"}`)

	var reply Response
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &reply))
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32601, reply.Error.Code)
}

func TestPromptResponse_DeliveredToBroker(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	replies, cancel, err := f.broker.Register(sc.sessionID)
	require.NoError(t, err)
	defer cancel()

	resp := postMessage(t, f, sc.sessionID,
		`{"jsonrpc":"2.0","method":"gateway/prompt_response","params":{"organization_id":"org-5"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case got := <-replies:
		assert.Equal(t, "org-5", got)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt reply never delivered")
	}
}

func TestSendPrompt_ArrivesAsNotification(t *testing.T) {
	f := newMCPFixture(t)
	sc := openStream(t, f)

	require.NoError(t, f.hub.SendPrompt(sc.sessionID, "Please provide your organization_id to continue."))

	var note struct {
		Method string `json:"method"`
		Params struct {
			Question string `json:"question"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(sc.next(t)), &note))
	assert.Equal(t, "gateway/prompt", note.Method)
	assert.Contains(t, note.Params.Question, "organization_id")
}

func TestHub_SendToUnknownSessionFails(t *testing.T) {
	h := NewHub(nil)
	assert.Error(t, h.Send("ghost", map[string]any{}))
	assert.False(t, h.Connected("ghost"))
	assert.Equal(t, 0, h.ConnectionCount())
}
