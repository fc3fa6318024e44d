package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validatable is implemented by argument structs that need custom business
// validation. Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// tool is the internal implementation of Tool built by NewTool or NewRawTool.
type tool struct {
	name        string
	description string
	schema      map[string]any
	execute     func(context.Context, []byte) ([]byte, error)
	opts        toolOptions
}

// NewTool builds a Tool from a typed function. The JSON Schema is derived
// from T by reflection; json struct tags name the properties, fields without
// omitempty are required, and description/enum tags enrich the schema.
// Execute unmarshals and validates the arguments (schema first, then
// Validatable if T implements it), calls fn, and marshals the result.
// Returns an error if schema generation fails (e.g. unsupported type).
func NewTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (Tool, error) {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	schemaMap, resolved, err := schemaFor[T](o.strict)
	if err != nil {
		return nil, fmt.Errorf("schema for tool %q: %w", name, err)
	}
	execute := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		args, err := parseArgs[T](resolved, argsJSON)
		if err != nil {
			return nil, err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	}
	return &tool{
		name:        name,
		description: description,
		schema:      schemaMap,
		execute:     execute,
		opts:        o,
	}, nil
}

// NewRawTool creates a Tool from a raw JSON Schema map and a handler that
// receives validated but unparsed JSON. Useful for runtime API integration
// (e.g. tools generated from an OpenAPI document). Schema validation only;
// no typed unmarshal, no Validatable layer. The provided schemaMap is deep
// copied and never mutated.
func NewRawTool(
	name, description string,
	schemaMap map[string]any,
	fn func(ctx context.Context, argsJSON []byte) ([]byte, error),
	opts ...ToolOption,
) (Tool, error) {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	if schemaMap == nil {
		return nil, fmt.Errorf("raw tool %q: schema map must not be nil", name)
	}
	if fn == nil {
		return nil, fmt.Errorf("raw tool %q: handler must not be nil", name)
	}
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("raw tool %q: copy schema: %w", name, err)
	}
	var schemaCopy map[string]any
	if err := json.Unmarshal(data, &schemaCopy); err != nil {
		return nil, fmt.Errorf("raw tool %q: copy schema: %w", name, err)
	}
	if o.strict {
		applyStrictMode(schemaCopy)
	}
	stripSchemaIDs(schemaCopy)
	resolved, err := compileSchema(schemaCopy)
	if err != nil {
		return nil, fmt.Errorf("raw tool %q: compile schema: %w", name, err)
	}
	execute := func(ctx context.Context, argsJSON []byte) ([]byte, error) {
		var v any
		if err := json.Unmarshal(argsJSON, &v); err != nil {
			return nil, wrapJSONParseError(err)
		}
		if err := validateAgainstSchema(resolved, v); err != nil {
			return nil, err
		}
		return fn(ctx, argsJSON)
	}
	return &tool{
		name:        name,
		description: description,
		schema:      schemaCopy,
		execute:     execute,
		opts:        o,
	}, nil
}

// parseArgs deserializes argsJSON into T, then runs layer 1 (schema) and
// layer 2 (Validatable) validation. All failures are *ValidationError.
func parseArgs[T any](resolved *jsonschema.Resolved, argsJSON []byte) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := validateAgainstSchema(resolved, v); err != nil {
		return zero, err
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := validateCustom(args); err != nil {
		if IsValidationError(err) {
			return zero, err
		}
		return zero, &ValidationError{Reason: err.Error()}
	}
	return args, nil
}

// validateCustom runs Validatable.Validate() on args; if args does not
// implement Validatable, it tries &args for value types (pointer receiver).
// Validate is never called twice for the same receiver.
func validateCustom[T any](args T) error {
	if v, ok := any(args).(Validatable); ok {
		return v.Validate()
	}
	typ := reflect.TypeOf(args)
	if typ == nil || typ.Kind() == reflect.Pointer {
		return nil
	}
	if v, ok := any(&args).(Validatable); ok {
		return v.Validate()
	}
	return nil
}

func (t *tool) Name() string        { return t.name }
func (t *tool) Description() string { return t.description }

// Parameters returns a shallow copy of the JSON Schema (top-level keys
// only). Nested maps are shared; callers must not mutate them.
func (t *tool) Parameters() map[string]any { return maps.Clone(t.schema) }

func (t *tool) Execute(ctx context.Context, argsJSON []byte) ([]byte, error) {
	return t.execute(ctx, argsJSON)
}

func (t *tool) Timeout() time.Duration { return t.opts.timeout }
func (t *tool) Tags() []string         { return append([]string(nil), t.opts.tags...) }
func (t *tool) IsDangerous() bool      { return t.opts.dangerous }

var (
	_ Tool     = (*tool)(nil)
	_ ToolMeta = (*tool)(nil)
)
