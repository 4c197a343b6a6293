package expressions

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/rendis/dmn/pkg/schema"
)

// CELEngine implements the Engine interface using Google's Common Expression
// Language. Unlike a workflow engine with a fixed variable layout, decision
// tables take free-form input names, so the CEL environment is declared from
// the binding keys at compile time and compiled programs are cached per
// expression and key set.
// Thread-safe: compiled programs are cached and reused across goroutines.
type CELEngine struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a new CEL expression engine with a sandboxed
// environment: only the binding variables exist, no host functions beyond
// the CEL standard library.
func NewCELEngine() *CELEngine {
	return &CELEngine{
		cache: make(map[string]cel.Program),
	}
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles (or retrieves from cache) a CEL expression and evaluates
// it against the provided bindings. Every binding key becomes a top-level
// dyn-typed variable.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, bindings map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
	}

	if bindings == nil {
		bindings = map[string]any{}
	}

	prg, err := e.getOrCompile(expression, bindings)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(bindings)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out.Value(), nil
}

// getOrCompile returns a cached compiled program or compiles and caches a new
// one. The cache key combines the expression with the sorted binding keys,
// since the declared environment depends on both.
func (e *CELEngine) getOrCompile(expression string, bindings map[string]any) (cel.Program, error) {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cacheKey := expression + "\x00" + strings.Join(keys, "\x00")

	e.mu.RLock()
	if prg, ok := e.cache[cacheKey]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[cacheKey]; ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, cel.Variable(k, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"create CEL environment: %s", err.Error()).WithCause(err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL compile error in %q: %s", expression, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": expression})
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"CEL program error for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[cacheKey] = prg
	return prg, nil
}

var _ Engine = (*CELEngine)(nil)
