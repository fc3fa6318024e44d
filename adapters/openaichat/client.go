// Package openaichat implements toolloop.ChatClient over the
// OpenAI-compatible chat completion API. It works against OpenAI itself as
// well as local servers exposing the same wire shape, such as Ollama's
// /v1 endpoint.
package openaichat

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/toolloop/toolloop"
)

// Client calls a chat completion endpoint and maps its responses onto
// toolloop.Reply. It holds no conversation state and never retries; both
// belong to the Orchestrator.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// New creates a Client for the given endpoint. baseURL may be empty for the
// OpenAI default; apiKey is passed through opaquely (local servers accept
// any value).
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the transcript and tool declarations and returns the
// assistant turn. Request failures come back as *toolloop.TransportError;
// responses that fit neither a final answer nor a tool-call request come
// back as *toolloop.ProtocolError.
func (c *Client) Complete(ctx context.Context, messages []toolloop.Message, tools []toolloop.Tool) (toolloop.Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toWire(messages),
		Temperature: c.temperature,
	}
	if len(tools) > 0 {
		req.Tools = declareTools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return toolloop.Reply{}, &toolloop.TransportError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return toolloop.Reply{}, &toolloop.ProtocolError{Reason: "completion response has no choices"}
	}

	msg := resp.Choices[0].Message
	calls := make([]toolloop.ToolCall, 0, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			return toolloop.Reply{}, &toolloop.ProtocolError{
				Reason: fmt.Sprintf("tool call %d has no function name", i),
			}
		}
		id := tc.ID
		if id == "" {
			// Some local servers omit call ids; synthesize a stable one so
			// result linkage still holds.
			id = fmt.Sprintf("call_%d", i)
		}
		calls = append(calls, toolloop.ToolCall{
			ID:       id,
			ToolName: tc.Function.Name,
			Args:     []byte(tc.Function.Arguments),
		})
	}
	if msg.Content == "" && len(calls) == 0 {
		return toolloop.Reply{}, &toolloop.ProtocolError{
			Reason: "assistant turn carries neither text nor tool calls",
		}
	}
	return toolloop.Reply{Text: msg.Content, ToolCalls: calls}, nil
}

// toWire converts transcript messages into the OpenAI wire shape, keeping
// tool_call / tool_call_id linkage intact.
func toWire(messages []toolloop.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case toolloop.RoleAssistant:
			wire := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.ToolName,
						Arguments: string(tc.Args),
					},
				})
			}
			out = append(out, wire)
		case toolloop.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	return out
}

// declareTools exports tool schemas as OpenAI function declarations.
func declareTools(tools []toolloop.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

var _ toolloop.ChatClient = (*Client)(nil)
