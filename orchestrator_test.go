package toolloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptClient plays back a fixed sequence of replies and errors.
type scriptClient struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

type scriptStep struct {
	reply Reply
	err   error
}

func (c *scriptClient) Complete(_ context.Context, _ []Message, _ []Tool) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.steps) == 0 {
		return Reply{}, errors.New("script exhausted")
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	return next.reply, next.err
}

func (c *scriptClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// clientFunc adapts a function to ChatClient.
type clientFunc func(ctx context.Context, msgs []Message, tools []Tool) (Reply, error)

func (f clientFunc) Complete(ctx context.Context, msgs []Message, tools []Tool) (Reply, error) {
	return f(ctx, msgs, tools)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWeatherExecutor(t *testing.T) *Executor {
	t.Helper()
	tool, err := NewTool("get_weather", "Get weather", func(_ context.Context, a weatherArgs) (map[string]any, error) {
		return map[string]any{
			"location":    a.Location,
			"temperature": 25,
			"conditions":  "Sunny",
		}, nil
	})
	require.NoError(t, err)
	reg := NewRegistry()
	require.NoError(t, reg.Register(tool))
	return NewExecutor(reg)
}

func TestOrchestrator_FinalAnswerInOneStep(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{reply: Reply{Text: "Hello! How can I help?"}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t), WithLogger(quietLogger()))

	res, err := orc.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", res.Answer)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, 1, client.Calls())

	// Exactly one assistant message appended after the user message.
	var assistants int
	for _, m := range res.Transcript {
		if m.Role == RoleAssistant {
			assistants++
		}
	}
	assert.Equal(t, 1, assistants)
}

func TestOrchestrator_WeatherScenario(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{reply: Reply{ToolCalls: []ToolCall{
			{ID: "call_1", ToolName: "get_weather", Args: raw(`{"location":"Tokyo","unit":"celsius"}`)},
		}}},
		{reply: Reply{Text: "It's 25 and sunny in Tokyo."}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t),
		WithSystemPrompt("be helpful"),
		WithLogger(quietLogger()),
	)

	res, err := orc.Run(context.Background(), "What's the weather in Tokyo?")
	require.NoError(t, err)
	assert.Equal(t, "It's 25 and sunny in Tokyo.", res.Answer)
	assert.Equal(t, 2, res.Turns)

	roles := make([]Role, 0, len(res.Transcript))
	for _, m := range res.Transcript {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleAssistant}, roles)

	toolMsg := res.Transcript[3]
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, "Tokyo")
}

func TestOrchestrator_ToolFailureContinuesRun(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{reply: Reply{ToolCalls: []ToolCall{
			{ID: "call_1", ToolName: "no_such_tool", Args: raw(`{}`)},
		}}},
		{reply: Reply{Text: "I couldn't look that up, sorry."}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t), WithLogger(quietLogger()))

	res, err := orc.Run(context.Background(), "do the thing")
	require.NoError(t, err, "a failed tool call must not fail the run")
	assert.Equal(t, "I couldn't look that up, sorry.", res.Answer)

	// The failure was surfaced to the model as a tool message.
	var toolMsg *Message
	for i := range res.Transcript {
		if res.Transcript[i].Role == RoleTool {
			toolMsg = &res.Transcript[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "unknown_tool")
}

func TestOrchestrator_TurnLimit(t *testing.T) {
	const maxTurns = 3
	loop := Reply{ToolCalls: []ToolCall{
		{ID: "call_1", ToolName: "get_weather", Args: raw(`{"location":"Tokyo"}`)},
	}}
	calls := 0
	client := clientFunc(func(_ context.Context, msgs []Message, _ []Tool) (Reply, error) {
		calls++
		// Tool call ids must be unique per turn for result linkage.
		return Reply{ToolCalls: []ToolCall{{
			ID:       loop.ToolCalls[0].ID + string(rune('a'+calls)),
			ToolName: "get_weather",
			Args:     loop.ToolCalls[0].Args,
		}}}, nil
	})
	orc := NewOrchestrator(client, newWeatherExecutor(t),
		WithMaxTurns(maxTurns),
		WithLogger(quietLogger()),
	)

	_, err := orc.Run(context.Background(), "loop forever")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, maxTurns, calls, "exactly the configured number of round trips")
}

func TestOrchestrator_RetryThenSuccess(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{err: &TransportError{Err: errors.New("connection refused")}},
		{reply: Reply{Text: "recovered"}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t),
		WithCompletionAttempts(3),
		WithRetryBackoff(time.Millisecond),
		WithLogger(quietLogger()),
	)

	res, err := orc.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Answer)
	assert.Equal(t, 2, client.Calls())
}

func TestOrchestrator_RetriesExhausted(t *testing.T) {
	transport := &TransportError{Err: errors.New("connection refused")}
	client := &scriptClient{steps: []scriptStep{
		{err: transport}, {err: transport}, {err: transport},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t),
		WithCompletionAttempts(3),
		WithRetryBackoff(time.Millisecond),
		WithLogger(quietLogger()),
	)

	_, err := orc.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, 3, client.Calls())
}

func TestOrchestrator_ProtocolErrorFailsAfterRetries(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{err: &ProtocolError{Reason: "garbage"}},
		{err: &ProtocolError{Reason: "garbage"}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t),
		WithCompletionAttempts(2),
		WithRetryBackoff(time.Millisecond),
		WithLogger(quietLogger()),
	)

	_, err := orc.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
}

func TestOrchestrator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := clientFunc(func(ctx context.Context, _ []Message, _ []Tool) (Reply, error) {
		cancel()
		<-ctx.Done()
		return Reply{}, &TransportError{Err: ctx.Err()}
	})
	orc := NewOrchestrator(client, newWeatherExecutor(t), WithLogger(quietLogger()))

	_, err := orc.Run(ctx, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptClient{steps: []scriptStep{{reply: Reply{Text: "never"}}}}
	orc := NewOrchestrator(client, newWeatherExecutor(t), WithLogger(quietLogger()))

	_, err := orc.Run(ctx, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, client.Calls())
}

func TestOrchestrator_ParallelToolCallsOneTurn(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{reply: Reply{ToolCalls: []ToolCall{
			{ID: "call_1", ToolName: "get_weather", Args: raw(`{"location":"Tokyo"}`)},
			{ID: "call_2", ToolName: "get_weather", Args: raw(`{"location":"Oslo"}`)},
		}}},
		{reply: Reply{Text: "Tokyo is sunny, Oslo too."}},
	}}
	orc := NewOrchestrator(client, newWeatherExecutor(t), WithLogger(quietLogger()))

	res, err := orc.Run(context.Background(), "compare weather")
	require.NoError(t, err)

	var toolIDs []string
	for _, m := range res.Transcript {
		if m.Role == RoleTool {
			toolIDs = append(toolIDs, m.ToolCallID)
		}
	}
	// One result per call, in the order the model emitted them.
	assert.Equal(t, []string{"call_1", "call_2"}, toolIDs)
}

func TestOrchestrator_Defaults(t *testing.T) {
	orc := NewOrchestrator(&scriptClient{}, newWeatherExecutor(t))
	assert.Equal(t, DefaultMaxTurns, orc.opts.maxTurns)
	assert.Equal(t, DefaultCompletionAttempts, orc.opts.attempts)
	assert.Equal(t, DefaultRetryBackoff, orc.opts.backoff)
	assert.NotNil(t, orc.opts.logger)
}
