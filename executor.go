package toolloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Executor invokes registered tools with validated arguments and captures
// each outcome as a ToolResult. It never lets a tool failure escape as an
// error or panic: the caller always sees a result.
type Executor struct {
	reg  *Registry
	sem  chan struct{}
	opts executorOptions
}

// NewExecutor creates an Executor over reg with the given options.
func NewExecutor(reg *Registry, opts ...ExecutorOption) *Executor {
	o := executorOptions{
		timeout:        DefaultToolTimeout,
		maxConcurrency: 10,
		recoverPanics:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Executor{reg: reg, sem: sem, opts: o}
}

// Tools returns the registry's tools sorted by name.
func (e *Executor) Tools() []Tool { return e.reg.Tools() }

// Execute runs one tool call under the effective timeout and returns its
// result. Failures are folded into the result: unresolved names as
// ErrUnknownTool, invalid arguments as *ValidationError (the handler never
// runs), and handler errors, panics, and timeouts as *ExecutionError.
func (e *Executor) Execute(ctx context.Context, call ToolCall) (res ToolResult) {
	res = ToolResult{CallID: call.ID, ToolName: call.ToolName}

	tool, err := e.reg.Resolve(call.ToolName)
	if err != nil {
		res.Error = err
		return res
	}

	if err := e.acquireSemaphore(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res.Error = &ExecutionError{ToolName: call.ToolName, Err: err}
		return res
	}
	defer e.releaseSemaphore()

	timeout := e.opts.timeout
	if tm, ok := tool.(ToolMeta); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if e.opts.onAfter != nil {
		defer func() {
			e.opts.onAfter(ctx, call, res, time.Since(start))
		}()
	}
	if e.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				res.Data = nil
				res.Error = &ExecutionError{ToolName: call.ToolName, Err: &panicError{p: p}}
			}
		}()
	}
	if e.opts.onBefore != nil {
		e.opts.onBefore(ctx, call)
	}

	data, err := tool.Execute(ctx, call.Args)
	switch {
	case err == nil:
		res.Data = data
	case IsValidationError(err):
		res.Error = err
	case errors.Is(err, context.DeadlineExceeded):
		res.Error = &ExecutionError{ToolName: call.ToolName, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	default:
		res.Error = &ExecutionError{ToolName: call.ToolName, Err: err}
	}
	return res
}

// ExecuteBatch runs all calls concurrently and returns one result per call,
// re-associated by call identity and ordered as requested regardless of
// completion order. One failure never cancels the other calls; each carries
// its own timeout.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Go(func() {
			results[i] = e.Execute(ctx, call)
		})
	}
	wg.Wait()
	return results
}

func (e *Executor) acquireSemaphore(ctx context.Context) error {
	if e.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) releaseSemaphore() {
	if e.sem != nil {
		<-e.sem
	}
}
