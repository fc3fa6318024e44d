package toolloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// State is the orchestration phase of a run.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Orchestrator drives the multi-turn tool-calling loop: send transcript,
// inspect the reply, execute requested tools, append their results, resend,
// until the model produces a final answer or the turn limit is hit. It owns
// the Transcript for the duration of a run; no other component holds
// cross-turn state.
type Orchestrator struct {
	client   ChatClient
	executor *Executor
	opts     orchestratorOptions
}

// NewOrchestrator creates an Orchestrator over the given chat client and
// tool executor.
func NewOrchestrator(client ChatClient, executor *Executor, opts ...OrchestratorOption) *Orchestrator {
	o := orchestratorOptions{
		maxTurns: DefaultMaxTurns,
		attempts: DefaultCompletionAttempts,
		backoff:  DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxTurns < 1 {
		o.maxTurns = 1
	}
	if o.attempts < 1 {
		o.attempts = 1
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Orchestrator{client: client, executor: executor, opts: o}
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	// Answer is the model's final natural-language reply.
	Answer string
	// Transcript is the full conversation, including tool calls and results.
	Transcript []Message
	// Turns is the number of model round trips the run took.
	Turns int
}

// Run processes one user request to completion. On success the returned
// error is nil and the result carries the final answer. On failure the
// error is from the package taxonomy (TransportError, ProtocolError,
// ErrTurnLimit, ErrCancelled), never a raw transport fault.
func (o *Orchestrator) Run(ctx context.Context, userText string) (*RunResult, error) {
	transcript := NewTranscript(o.opts.systemPrompt, userText)
	tools := o.executor.Tools()

	state := StateAwaitingModel
	turns := 0
	var answer string
	var pending []ToolCall
	var failure error

	for {
		if err := ctx.Err(); err != nil && state != StateDone && state != StateFailed {
			failure = fmt.Errorf("%w: %v", ErrCancelled, err)
			state = StateFailed
		}

		switch state {
		case StateAwaitingModel:
			if turns >= o.opts.maxTurns {
				failure = fmt.Errorf("%w after %d round trips", ErrTurnLimit, turns)
				state = StateFailed
				continue
			}
			turns++
			reply, err := o.complete(ctx, transcript.Messages(), tools)
			if err != nil {
				if ctx.Err() != nil {
					failure = fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
				} else {
					failure = err
				}
				state = StateFailed
				continue
			}
			if reply.IsFinal() {
				transcript.AppendAssistant(reply.Text)
				answer = reply.Text
				state = StateDone
				continue
			}
			transcript.AppendAssistant(reply.Text, reply.ToolCalls...)
			pending = reply.ToolCalls
			state = StateExecutingTools

		case StateExecutingTools:
			results := o.executor.ExecuteBatch(ctx, pending)
			for _, res := range results {
				if res.Error != nil {
					o.opts.logger.Warn("tool call failed",
						"tool", res.ToolName, "call_id", res.CallID, "error", res.Error)
				}
				if err := transcript.AppendToolResult(res); err != nil {
					failure = &ProtocolError{Reason: err.Error()}
					state = StateFailed
					break
				}
			}
			if state == StateFailed {
				continue
			}
			pending = nil
			state = StateAwaitingModel

		case StateDone:
			return &RunResult{
				Answer:     answer,
				Transcript: transcript.Messages(),
				Turns:      turns,
			}, nil

		case StateFailed:
			return nil, failure
		}
	}
}

// complete calls the chat client, retrying transport and protocol failures
// with exponential backoff up to the configured attempt count. Context
// cancellation aborts immediately.
func (o *Orchestrator) complete(ctx context.Context, msgs []Message, tools []Tool) (Reply, error) {
	backoff := o.opts.backoff
	var lastErr error
	for attempt := 1; attempt <= o.opts.attempts; attempt++ {
		reply, err := o.client.Complete(ctx, msgs, tools)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Reply{}, err
		}
		lastErr = err
		if attempt == o.opts.attempts {
			break
		}
		o.opts.logger.Warn("completion failed, retrying",
			"attempt", attempt, "backoff", backoff, "error", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reply{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return Reply{}, lastErr
}
