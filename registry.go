package toolloop

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps tool names to Tool values. It is intended to be populated
// once at startup and treated as immutable for the duration of a run; the
// mutex exists so misuse cannot corrupt it.
type Registry struct {
	mu          sync.Mutex
	tools       map[string]Tool // wrapped with middlewares, used by Executor
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares from scratch
	middlewares []Middleware
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
	}
}

// Register adds a tool. Stored middlewares (see Use) are applied to the tool
// before registration. Returns ErrDuplicateTool if the name is taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.rawTools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.rawTools[name] = t
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		t = r.middlewares[i](t)
	}
	r.tools[name] = t
	return nil
}

// MustRegister is Register for init-time wiring; it panics on duplicate names.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the tool with the given name (after middlewares are
// applied). Returns ErrUnknownTool if absent.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Tools returns all registered tools sorted by name for deterministic order
// (e.g. for exporting declarations to the model).
func (r *Registry) Tools() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Use stores the given middlewares and reapplies them from scratch to all
// registered tools (onion order: first middleware is outermost). Tools
// registered after Use also get them. Calling Use again replaces the chain
// and rewraps from raw tools, avoiding double-wrapping.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, raw := range r.rawTools {
		t := raw
		for i := len(middlewares) - 1; i >= 0; i-- {
			t = middlewares[i](t)
		}
		r.tools[name] = t
	}
}
