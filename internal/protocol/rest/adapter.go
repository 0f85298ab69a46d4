// ABOUTME: Function-calling adapter for the plain REST convention.
// ABOUTME: Stateless request/response with no correlation identifier.

package rest

import (
	"encoding/json"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

// Numeric error codes for this convention's failure vocabulary.
const (
	codeMalformedRequest    = 1000
	codeUnknownTool         = 1001
	codeInvalidArguments    = 1002
	codeMissingOrganization = 1003
	codeNoSession           = 1004
	codeTokenFetchFailed    = 1005
	codeExecutionFailed     = 1006
	codePromptTimeout       = 1007
	codeInternal            = 1999
)

// ToolDef is one tool definition in the REST dialect.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  *catalog.Schema `json:"parameters"`
}

// CallRequest is the invocation body.
type CallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Envelope is the uniform response wrapper: Result on success, Error on
// failure, flagged by Success.
type Envelope struct {
	Success bool       `json:"success"`
	Result  any        `json:"result,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries this convention's numeric code and message.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Adapter implements the REST function-calling convention.
type Adapter struct{}

// NewAdapter creates the adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the transport identifier.
func (a *Adapter) Name() string { return "rest" }

// ParseRequest validates the flat {name, arguments} envelope.
func (a *Adapter) ParseRequest(raw []byte) (call.Call, *call.Error) {
	var req CallRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "invalid JSON body")
	}
	if req.Name == "" {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "tool name is required")
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return call.Call{Tool: req.Name, Args: args}, nil
}

// Definitions projects the catalogue into the REST dialect.
func (a *Adapter) Definitions(defs []catalog.Definition) any {
	out := make([]ToolDef, len(defs))
	for i, d := range defs {
		out[i] = ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		}
	}
	return out
}

// Describe projects a single definition.
func (a *Adapter) Describe(def catalog.Definition) any {
	return ToolDef{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  def.InputSchema,
	}
}

// FormatResponse returns the raw payload under result; no correlation id
// exists in this convention, so callID is ignored.
func (a *Adapter) FormatResponse(res call.Result, _ string) any {
	if res.Err != nil {
		return a.FormatError(res.Err)
	}
	return Envelope{Success: true, Result: res.Payload}
}

// FormatError produces the failure envelope.
func (a *Adapter) FormatError(err *call.Error) any {
	return Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:    errorCode(err.Code),
			Message: err.Message,
		},
	}
}

// errorCode maps semantic gateway codes onto this convention's numbers.
func errorCode(code call.Code) int {
	switch code {
	case call.CodeMalformedRequest:
		return codeMalformedRequest
	case call.CodeUnknownTool:
		return codeUnknownTool
	case call.CodeInvalidArguments:
		return codeInvalidArguments
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
		return codeInternal
	}
}
