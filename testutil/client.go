package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/toolloop/toolloop"
)

// ErrScriptExhausted is returned when Complete is called more times than
// steps were queued.
var ErrScriptExhausted = errors.New("scripted client: no more steps")

type step struct {
	reply toolloop.Reply
	err   error
}

// ScriptedClient is a toolloop.ChatClient that plays back a queued script
// of replies and errors, recording every request for assertions.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []step
	Requests [][]toolloop.Message
}

// Queue appends a successful reply to the script.
func (c *ScriptedClient) Queue(reply toolloop.Reply) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{reply: reply})
	return c
}

// QueueErr appends a failing step to the script.
func (c *ScriptedClient) QueueErr(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{err: err})
	return c
}

// Calls reports how many times Complete has been invoked.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Complete pops the next scripted step.
func (c *ScriptedClient) Complete(_ context.Context, messages []toolloop.Message, _ []toolloop.Tool) (toolloop.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]toolloop.Message, len(messages))
	copy(snapshot, messages)
	c.Requests = append(c.Requests, snapshot)
	if len(c.steps) == 0 {
		return toolloop.Reply{}, ErrScriptExhausted
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	return next.reply, next.err
}

var _ toolloop.ChatClient = (*ScriptedClient)(nil)
