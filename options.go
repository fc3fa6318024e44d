package toolloop

import (
	"context"
	"log/slog"
	"time"
)

// Defaults for orchestration configuration. All of them are overridable via
// options; values are supplied by the process configuration at startup.
const (
	DefaultMaxTurns           = 8
	DefaultCompletionAttempts = 3
	DefaultRetryBackoff       = 500 * time.Millisecond
	DefaultToolTimeout        = 10 * time.Second
)

// toolOptions hold optional tool settings (timeout, strict, tags, etc.).
type toolOptions struct {
	strict    bool
	timeout   time.Duration
	tags      []string
	dangerous bool
}

// ToolOption configures a tool (e.g. WithStrict, WithTimeout).
type ToolOption func(*toolOptions)

// WithStrict sets strict mode for the schema: additionalProperties: false
// for all objects, and all properties become required. Use for OpenAI
// Structured Outputs compatibility.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithTimeout sets a per-tool execution timeout, overriding the Executor
// default for this tool.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags (metadata for discovery).
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// WithDangerous marks the tool as dangerous (a caller may require
// confirmation before execution).
func WithDangerous() ToolOption {
	return func(o *toolOptions) {
		o.dangerous = true
	}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

type executorOptions struct {
	timeout        time.Duration
	maxConcurrency int
	recoverPanics  bool
	onBefore       func(context.Context, ToolCall)
	onAfter        func(context.Context, ToolCall, ToolResult, time.Duration)
}

// WithDefaultTimeout sets the default execution timeout for tools.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(o *executorOptions) {
		o.timeout = d
	}
}

// WithMaxConcurrency limits concurrent tool executions (semaphore).
// Pass 0 or negative to disable the semaphore (unlimited concurrency).
func WithMaxConcurrency(n int) ExecutorOption {
	return func(o *executorOptions) {
		o.maxConcurrency = n
	}
}

// WithRecoverPanics enables panic recovery in Execute (folded into the
// ToolResult as ExecutionError).
func WithRecoverPanics(enable bool) ExecutorOption {
	return func(o *executorOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeExecute sets a hook called before each tool execution.
func WithOnBeforeExecute(fn func(context.Context, ToolCall)) ExecutorOption {
	return func(o *executorOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each tool execution with the
// final result and duration.
func WithOnAfterExecute(fn func(context.Context, ToolCall, ToolResult, time.Duration)) ExecutorOption {
	return func(o *executorOptions) {
		o.onAfter = fn
	}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*orchestratorOptions)

type orchestratorOptions struct {
	systemPrompt string
	maxTurns     int
	attempts     int
	backoff      time.Duration
	logger       *slog.Logger
}

// WithSystemPrompt seeds every run's transcript with a system message.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.systemPrompt = prompt
	}
}

// WithMaxTurns bounds the number of model round trips per run. Exceeding it
// fails the run with ErrTurnLimit.
func WithMaxTurns(n int) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.maxTurns = n
	}
}

// WithCompletionAttempts sets the total attempts (first try included) for
// each chat completion call before the run fails.
func WithCompletionAttempts(n int) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.attempts = n
	}
}

// WithRetryBackoff sets the initial backoff between completion attempts.
// The delay doubles on every subsequent attempt.
func WithRetryBackoff(d time.Duration) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.backoff = d
	}
}

// WithLogger sets the structured logger used for run progress and retry
// warnings. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *orchestratorOptions) {
		o.logger = logger
	}
}
