package toolloop

import "fmt"

// Transcript is the ordered conversation history for a single run.
// It is append-only and owned exclusively by the Orchestrator; tool results
// may only be appended for calls a prior assistant message actually made.
type Transcript struct {
	msgs    []Message
	pending map[string]string // call id -> tool name, awaiting a result
}

// NewTranscript seeds a transcript with an optional system prompt and the
// user's request.
func NewTranscript(systemPrompt, userText string) *Transcript {
	t := &Transcript{
		msgs:    make([]Message, 0, 8),
		pending: make(map[string]string),
	}
	if systemPrompt != "" {
		t.msgs = append(t.msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	t.msgs = append(t.msgs, Message{Role: RoleUser, Content: userText})
	return t
}

// AppendUser appends a user message.
func (t *Transcript) AppendUser(content string) {
	t.msgs = append(t.msgs, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant turn. Any tool calls it carries are
// recorded as pending until a matching result is appended.
func (t *Transcript) AppendAssistant(content string, calls ...ToolCall) {
	for _, c := range calls {
		t.pending[c.ID] = c.ToolName
	}
	t.msgs = append(t.msgs, Message{Role: RoleAssistant, Content: content, ToolCalls: calls})
}

// AppendToolResult appends the tool message for res. The result must answer
// a pending call; an unknown call id is rejected so the transcript never
// carries orphaned tool results.
func (t *Transcript) AppendToolResult(res ToolResult) error {
	if _, ok := t.pending[res.CallID]; !ok {
		return fmt.Errorf("tool result for unknown call id %q (tool %q)", res.CallID, res.ToolName)
	}
	delete(t.pending, res.CallID)
	t.msgs = append(t.msgs, res.Message())
	return nil
}

// PendingCalls reports how many assistant tool calls still await a result.
func (t *Transcript) PendingCalls() int { return len(t.pending) }

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.msgs) }

// Last returns the most recent message and true, or a zero Message and
// false when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
