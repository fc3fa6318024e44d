package toolloop

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to check.
var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrValidation    = errors.New("validation failed")
	ErrTimeout       = errors.New("tool execution timeout")
	ErrTurnLimit     = errors.New("turn limit exceeded")
	ErrCancelled     = errors.New("run cancelled")
)

// ValidationError reports tool arguments that failed schema or business
// validation. The message is safe to send back to the model for
// self-correction; it never carries stack traces or internal details.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tool arguments: %s", e.Reason)
}

// Unwrap supports errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExecutionError wraps a failure inside a tool handler (downstream HTTP
// error, panic, timeout). The underlying cause is preserved for errors.Is.
type ExecutionError struct {
	ToolName string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure talking to the chat
// completion endpoint. The Orchestrator retries these with backoff.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat endpoint unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a chat endpoint response that could not be parsed
// into either a final answer or a tool-call request.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed chat response: %s", e.Reason)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExecutionError returns true if err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsTransportError returns true if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// errorKind maps a taxonomy error to the short kind string used in
// model-visible tool failure payloads.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case IsValidationError(err):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case IsExecutionError(err):
		return "execution"
	default:
		return "execution"
	}
}

// wrapJSONParseError returns a ValidationError for JSON unmarshal failures
// so parse errors are reported consistently across tool builders.
func wrapJSONParseError(err error) error {
	return &ValidationError{Reason: "json parse error: " + err.Error()}
}

// panicError wraps a recovered panic value; used by Executor and the
// WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
