package toolloop

import "context"

// ChatClient sends a transcript plus the available tool declarations to a
// chat-completion endpoint. Implementations return *TransportError on
// network or timeout failure and *ProtocolError when the response fits
// neither shape of Reply. Retry policy belongs to the Orchestrator, never
// to the client.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (Reply, error)
}

// Reply is one assistant turn: either a final natural-language answer
// (no tool calls) or a request to execute one or more tools. Modeling the
// two shapes as one tagged value keeps shape inspection in a single place.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// IsFinal reports whether the reply is a final answer (no tool calls).
func (r Reply) IsFinal() bool { return len(r.ToolCalls) == 0 }

// AssistantMessage converts the reply into its transcript form.
func (r Reply) AssistantMessage() Message {
	return Message{Role: RoleAssistant, Content: r.Text, ToolCalls: r.ToolCalls}
}
