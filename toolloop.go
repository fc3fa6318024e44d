package toolloop

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation transcript. Assistant messages may
// carry tool calls instead of (or in addition to) text; tool messages answer
// exactly one prior assistant call, identified by ToolCallID.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that request execution.
	ToolCalls []ToolCall

	// ToolCallID and ToolName are set on tool messages and link the
	// result back to the call it answers.
	ToolCallID string
	ToolName   string
}

// ToolCall is a single execution request as produced by the model.
type ToolCall struct {
	ID       string
	ToolName string
	Args     json.RawMessage
}

// ToolResult is the outcome of one tool call: either a JSON payload or an
// error from the taxonomy in errors.go. Exactly one of Data and Error is set.
type ToolResult struct {
	CallID   string
	ToolName string
	Data     json.RawMessage
	Error    error
}

// Message renders the result as a model-visible tool message. Failures are
// serialized as a JSON error body so the model can retry or explain instead
// of the run aborting.
func (r ToolResult) Message() Message {
	content := r.Data
	if r.Error != nil {
		body, err := json.Marshal(map[string]string{
			"error": r.Error.Error(),
			"kind":  errorKind(r.Error),
		})
		if err != nil {
			body = []byte(`{"error":"tool call failed"}`)
		}
		content = body
	}
	return Message{
		Role:       RoleTool,
		Content:    string(content),
		ToolCallID: r.CallID,
		ToolName:   r.ToolName,
	}
}

// Tool is the contract for a model-callable instrument. It is
// provider-agnostic (no knowledge of OpenAI, Ollama, etc.).
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as map (compatible with
	// chat-model tool declarations).
	Parameters() map[string]any
	// Execute validates argsJSON and runs the handler, returning the
	// marshaled result. Invalid arguments return *ValidationError without
	// the handler ever running.
	Execute(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// ToolMeta is implemented by tools created with NewTool and exposes optional
// per-tool settings. Executor uses Timeout() to override its default
// execution timeout when set.
type ToolMeta interface {
	Timeout() time.Duration
	Tags() []string
	IsDangerous() bool
}
