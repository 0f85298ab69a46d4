// ABOUTME: Function-calling adapter for the OpenAI-style convention.
// ABOUTME: Stateless request/response correlated by a caller-supplied call_id.

package openai

import (
	"encoding/json"

	"github.com/adforge/ads-gateway/internal/call"
	"github.com/adforge/ads-gateway/internal/catalog"
)

// Error type strings for this convention's failure vocabulary.
const (
	errInvalidRequest      = "invalid_request"
	errUnknownFunction     = "unknown_function"
	errInvalidArguments    = "invalid_arguments"
	errMissingOrganization = "missing_organization"
	errNoSession           = "no_session"
	errTokenFetchFailed    = "token_fetch_failed"
	errExecutionFailed     = "execution_failed"
	errPromptTimeout       = "prompt_timeout"
	errInternal            = "internal_error"
)

// FunctionDef is one tool definition in the function-calling dialect.
type FunctionDef struct {
	Type     string       `json:"type"`
	Function FunctionBody `json:"function"`
}

// FunctionBody carries the function name, description, and parameters.
type FunctionBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  *catalog.Schema `json:"parameters"`
}

// CallRequest is the invocation body. Arguments may arrive as an object
// or as a JSON-encoded string, matching what function-calling clients
// actually emit.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	CallID    string          `json:"call_id"`
}

// CallResponse is the success envelope; call_id is echoed unchanged.
type CallResponse struct {
	CallID string `json:"call_id"`
	Output any    `json:"output"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	CallID string    `json:"call_id,omitempty"`
	Error  ErrorBody `json:"error"`
}

// ErrorBody carries the convention's string error type and message.
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Adapter implements the OpenAI-style function-calling convention.
type Adapter struct{}

// NewAdapter creates the adapter.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name returns the transport identifier.
func (a *Adapter) Name() string { return "openai" }

// ParseRequest validates the flat {name, arguments, call_id} envelope.
func (a *Adapter) ParseRequest(raw []byte) (call.Call, *call.Error) {
	var req CallRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "invalid JSON body")
	}
	if req.Name == "" {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "function name is required")
	}
	if req.CallID == "" {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "call_id is required")
	}

	args, err := decodeArguments(req.Arguments)
	if err != nil {
		return call.Call{}, call.NewError(call.CodeMalformedRequest, "arguments must be a JSON object")
	}

	return call.Call{
		Tool:   req.Name,
		Args:   args,
		CallID: req.CallID,
	}, nil
}

// decodeArguments accepts either an object or a JSON-encoded string of
// an object.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		return args, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	if encoded == "" {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal([]byte(encoded), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Definitions projects the catalogue into the function-calling dialect.
func (a *Adapter) Definitions(defs []catalog.Definition) any {
	out := make([]FunctionDef, len(defs))
	for i, d := range defs {
		out[i] = FunctionDef{
			Type: "function",
			Function: FunctionBody{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		}
	}
	return out
}

// Describe projects a single definition.
func (a *Adapter) Describe(def catalog.Definition) any {
	return FunctionDef{
		Type: "function",
		Function: FunctionBody{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		},
	}
}

// FormatResponse returns the raw payload under output, echoing call_id.
func (a *Adapter) FormatResponse(res call.Result, callID string) any {
	if res.Err != nil {
		return ErrorResponse{
			CallID: callID,
			Error: ErrorBody{
				Type:    errorType(res.Err.Code),
				Message: res.Err.Message,
			},
		}
	}
	return CallResponse{CallID: callID, Output: res.Payload}
}

// FormatError produces the failure envelope with no call_id, for
// failures before a call was parsed.
func (a *Adapter) FormatError(err *call.Error) any {
	return ErrorResponse{
		Error: ErrorBody{
			Type:    errorType(err.Code),
			Message: err.Message,
		},
	}
}

// errorType maps semantic gateway codes onto this convention's strings.
func errorType(code call.Code) string {
	switch code {
	case call.CodeMalformedRequest:
		return errInvalidRequest
	case call.CodeUnknownTool:
		return errUnknownFunction
	case call.CodeInvalidArguments:
		return errInvalidArguments
	case call.CodeMissingOrganizationID:
		return errMissingOrganization
	case call.CodeNoSessionFound:
		return errNoSession
	case call.CodeTokenFetchFailed:
		return errTokenFetchFailed
	case call.CodeToolExecutionFailed:
		return errExecutionFailed
	case call.CodeUserResponseTimeout:
		return errPromptTimeout
	default:
		return errInternal
	}
}
