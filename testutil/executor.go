package testutil

import (
	"time"

	"github.com/toolloop/toolloop"
)

// NewTestExecutor returns an Executor over a fresh registry holding the
// given tools, with a long timeout and panic recovery enabled. Panics on
// duplicate tool names.
func NewTestExecutor(tools ...toolloop.Tool) *toolloop.Executor {
	reg := toolloop.NewRegistry()
	reg.MustRegister(tools...)
	return toolloop.NewExecutor(reg,
		toolloop.WithDefaultTimeout(30*time.Second),
		toolloop.WithRecoverPanics(true),
	)
}
