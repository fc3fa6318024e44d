// Package toolloop drives tool-calling conversations between a chat model
// and locally executed Go functions.
//
// # Overview
//
// Chat models emit tool calls as JSON. This package turns each call into a
// concrete Go function call (unmarshal → validate against the same JSON
// Schema shown to the model → execute → marshal result), feeds the result
// back into the transcript, and loops until the model produces a final
// natural-language answer.
//
// Pipeline: Go function + argument struct → NewTool (reflection + schema) →
// Registry → Executor (validate, call, capture) → Orchestrator (send
// transcript, execute requested calls, resend) → final answer.
//
// # Key concepts
//
//   - Single Source of Truth: one set of struct tags drives both the schema
//     sent to the model and the validation of incoming JSON.
//   - Results, not exceptions: Executor folds every failure (unknown tool,
//     bad arguments, handler error, timeout) into a ToolResult that becomes
//     model-visible context, so one bad call never aborts the run.
//   - Bounded loop: the Orchestrator retries endpoint failures with backoff
//     and enforces a turn limit, so a misbehaving model cannot spin forever.
//
// See Tool, ToolCall, ToolResult, Transcript for the core types, and
// NewTool / NewRegistry / NewExecutor / NewOrchestrator for setup.
//
// # Example
//
//	type Args struct { City string `json:"city"` }
//	type Out  struct { Temp float64 `json:"temp"` }
//	tool, err := toolloop.NewTool("weather", "Get weather", func(_ context.Context, a Args) (Out, error) {
//	    return Out{Temp: 22.5}, nil
//	})
//	if err != nil { ... }
//	reg := toolloop.NewRegistry()
//	if err := reg.Register(tool); err != nil { ... }
//	orc := toolloop.NewOrchestrator(client, toolloop.NewExecutor(reg))
//	res, err := orc.Run(ctx, "What's the weather in Tokyo?")
package toolloop
