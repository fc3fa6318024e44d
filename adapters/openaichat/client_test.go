package openaichat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop"
	"github.com/toolloop/toolloop/testutil"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL+"/v1", "test-key", "gpt-oss:20b")
}

func respondJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestComplete_FinalAnswer(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Sunny, 25C."}}]
		}`)
	})

	reply, err := client.Complete(context.Background(), []toolloop.Message{
		{Role: toolloop.RoleUser, Content: "weather in Tokyo?"},
	}, nil)
	require.NoError(t, err)
	assert.True(t, reply.IsFinal())
	assert.Equal(t, "Sunny, 25C.", reply.Text)
}

func TestComplete_ToolCallRequest(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": "",
					"tool_calls": [{"id": "call_abc", "type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"Tokyo\"}"}}]}}]
		}`)
	})

	reply, err := client.Complete(context.Background(), []toolloop.Message{
		{Role: toolloop.RoleUser, Content: "weather in Tokyo?"},
	}, nil)
	require.NoError(t, err)
	assert.False(t, reply.IsFinal())
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_abc", reply.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", reply.ToolCalls[0].ToolName)
	assert.JSONEq(t, `{"location":"Tokyo"}`, string(reply.ToolCalls[0].Args))
}

func TestComplete_SynthesizesMissingCallIDs(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": "",
					"tool_calls": [
						{"type": "function", "function": {"name": "a", "arguments": "{}"}},
						{"type": "function", "function": {"name": "b", "arguments": "{}"}}
					]}}]
		}`)
	})

	reply, err := client.Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, "call_0", reply.ToolCalls[0].ID)
	assert.Equal(t, "call_1", reply.ToolCalls[1].ID)
}

func TestComplete_RequestWireShape(t *testing.T) {
	var captured map[string]any
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]
		}`)
	})

	tool := &testutil.MockTool{
		NameVal: "get_weather",
		DescVal: "Get weather",
		ParamsVal: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{"type": "string"},
			},
		},
	}
	messages := []toolloop.Message{
		{Role: toolloop.RoleSystem, Content: "be helpful"},
		{Role: toolloop.RoleUser, Content: "weather?"},
		{Role: toolloop.RoleAssistant, ToolCalls: []toolloop.ToolCall{
			{ID: "call_1", ToolName: "get_weather", Args: []byte(`{"location":"Tokyo"}`)},
		}},
		{Role: toolloop.RoleTool, Content: `{"temp":25}`, ToolCallID: "call_1", ToolName: "get_weather"},
	}
	_, err := client.Complete(context.Background(), messages, []toolloop.Tool{tool})
	require.NoError(t, err)

	assert.Equal(t, "gpt-oss:20b", captured["model"])
	assert.Equal(t, "auto", captured["tool_choice"])

	tools, ok := captured["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_weather", fn["name"])
	assert.Equal(t, "Get weather", fn["description"])

	msgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assistant := msgs[2].(map[string]any)
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
}

func TestComplete_TransportError(t *testing.T) {
	srv, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_ = srv

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, toolloop.IsTransportError(err))
}

func TestComplete_TransportError_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // deliberately closed
	client := New(srv.URL+"/v1", "k", "m")

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, toolloop.IsTransportError(err))
}

func TestComplete_ProtocolError_NoChoices(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, `{"id": "1", "object": "chat.completion", "choices": []}`)
	})

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, toolloop.IsProtocolError(err))
}

func TestComplete_ProtocolError_EmptyTurn(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": ""}}]
		}`)
	})

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, toolloop.IsProtocolError(err))
}

func TestComplete_ProtocolError_NamelessCall(t *testing.T) {
	_, client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, `{
			"id": "1", "object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "", "arguments": "{}"}}]}}]
		}`)
	})

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, toolloop.IsProtocolError(err))
}
