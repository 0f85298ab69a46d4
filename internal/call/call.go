// ABOUTME: Protocol-neutral representation of a tool invocation and its result.
// ABOUTME: Every adapter parses into and formats out of these types.

package call

import "fmt"

// Code classifies a gateway failure independent of wire convention.
// Each adapter maps these onto its own error vocabulary.
type Code string

// Gateway error codes.
const (
	CodeMalformedRequest      Code = "malformed_request"
	CodeUnknownTool           Code = "unknown_tool"
	CodeInvalidArguments      Code = "invalid_arguments"
	CodeMissingOrganizationID Code = "missing_organization_id"
	CodeNoSessionFound        Code = "no_session_found"
	CodeTokenFetchFailed      Code = "token_fetch_failed"
	CodeToolExecutionFailed   Code = "tool_execution_failed"
	CodeUserResponseTimeout   Code = "user_response_timeout"
)

// Error is a gateway failure carrying a semantic code.
// Handler failures pass through with their original message intact.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Call is one tool invocation, decoupled from the wire shape it arrived in.
// It is owned by a single request's processing path and discarded after the
// result is produced.
type Call struct {
	// Tool is the catalogue name of the tool to invoke.
	Tool string

	// Args holds the decoded invocation arguments.
	Args map[string]any

	// CallID is the caller-supplied correlation identifier, if the
	// convention has one. Echoed back unchanged in the response.
	CallID string

	// SessionID identifies the caller's live connection for
	// connection-oriented conventions. Empty for stateless requests.
	SessionID string
}

// Result is the canonical outcome of a dispatched call.
// Exactly one of Payload or Err is set.
type Result struct {
	Payload any
	Err     *Error
}

// Success wraps a handler payload in a Result.
func Success(payload any) Result {
	return Result{Payload: payload}
}

// Failure wraps a gateway error in a Result.
func Failure(err *Error) Result {
	return Result{Err: err}
}

// AsError converts any error into a gateway *Error. Errors that already
// carry a code pass through; everything else becomes a tool execution
// failure with the original message preserved verbatim.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*Error); ok {
		return ce
	}
	return &Error{Code: CodeToolExecutionFailed, Message: err.Error()}
}
