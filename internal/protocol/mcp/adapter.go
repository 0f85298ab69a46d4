// ABOUTME: Session-oriented JSON-RPC adapter for the MCP convention.
// ABOUTME: Parses tools/call envelopes and formats JSON-RPC results/errors.

package mcp

import (
	"encoding/json"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

// Protocol version advertised in initialize responses.
const ProtocolVersion = "2024-11-05"

// ServerName identifies the gateway in the initialize handshake.
const ServerName = "ads-gateway"

// JSON-RPC 2.0 error codes, plus gateway-specific codes in the
// implementation-defined range.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	codeMissingOrganization = -32000
	codeNoSession           = -32001
	codeTokenFetchFailed    = -32002
	codeExecutionFailed     = -32003
	codePromptTimeout       = -32004
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC 2.0 error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is a server-initiated JSON-RPC message with no id.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ToolInfo is one tool definition in the MCP dialect.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema *catalog.Schema `json:"inputSchema"`
}

// ListToolsResult is the tools/list result shape.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the tools/call params.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is one block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult nests tool output inside a content-block array.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Adapter implements the MCP wire convention.
type Adapter struct{}

// NewAdapter creates the MCP adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the transport identifier.
func (a *Adapter) Name() string { return "mcp" }

// ParseRequest parses a tools/call JSON-RPC envelope into a canonical
// call. Envelope-level problems produce CodeMalformedRequest.
func (a *Adapter) ParseRequest(raw []byte) (call.Call, *call.Error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "invalid JSON")
	}
	if req.JSONRPC != "2.0" {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "invalid JSON-RPC version")
	}
	if req.Method != "tools/call" {
		return call.Call{}, call.Errorf(call.CodeMalformedRequest, "expected tools/call, got %q", req.Method)
	}

	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return call.Call{}, call.NewError(call.CodeMalformedRequest, "invalid params")
		}
	}
	if params.Name == "" {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "tool name is required")
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return call.Call{
		Tool:   params.Name,
		Args:   args,
		CallID: string(req.ID),
	}, nil
}

// Definitions projects the catalogue into the MCP tools/list shape.
func (a *Adapter) Definitions(defs []catalog.Definition) any {
	tools := make([]ToolInfo, len(defs))
	for i, d := range defs {
		tools[i] = ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}
	}
	return ListToolsResult{Tools: tools}
}

// Describe projects a single definition into the MCP tool shape.
func (a *Adapter) Describe(def catalog.Definition) any {
	return ToolInfo{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: def.InputSchema,
	}
}

// FormatResponse wraps a canonical result in a JSON-RPC response,
// echoing the caller's request id unchanged. Tool output is nested in a
// content-block array per the MCP convention.
func (a *Adapter) FormatResponse(res call.Result, callID string) any {
	id := rawID(callID)
	if res.Err != nil {
		return Response{
			JSONRPC: "2.0",
			ID:      id,
			Error: &ResponseError{
				Code:    errorCode(res.Err.Code),
				Message: res.Err.Message,
			},
		}
	}

	text, err := json.Marshal(res.Payload)
	if err != nil {
		return Response{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &ResponseError{Code: codeInternalError, Message: "encoding tool output"},
		}
	}
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result: CallToolResult{
			Content: []Content{{Type: "text", Text: string(text)}},
		},
	}
}

// FormatError produces a JSON-RPC error envelope with a null id, for
// failures before any request id was recovered.
func (a *Adapter) FormatError(err *call.Error) any {
	return Response{
		JSONRPC: "2.0",
		Error: &ResponseError{
			Code:    errorCode(err.Code),
			Message: err.Message,
		},
	}
}

// errorCode maps semantic gateway codes onto this convention's numbering.
func errorCode(code call.Code) int {
	switch code {
	case call.CodeMalformedRequest:
		return codeInvalidRequest
	case call.CodeUnknownTool, call.CodeInvalidArguments:
		return codeInvalidParams
	case call.CodeMissingOrganizationID:
		return codeMissingOrganization
	case call.CodeNoSessionFound:
		return codeNoSession
	case call.CodeTokenFetchFailed:
		return codeTokenFetchFailed
	case call.CodeToolExecutionFailed:
		return codeExecutionFailed
	case call.CodeUserResponseTimeout:
		return codePromptTimeout
	default:
		return codeInternalError
	}
}

func rawID(callID string) json.RawMessage {
	if callID == "" {
		return nil
	}
	return json.RawMessage(callID)
}
