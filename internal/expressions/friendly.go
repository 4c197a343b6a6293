package expressions

import (
	"context"
	"sync"

	"github.com/rendis/dmn/pkg/schema"
)

// FriendlyEngine implements the Engine interface for the default clause
// grammar: binary comparisons, ranges, comma lists, literals and (dotted)
// binding lookups. Expressions are compiled once into a typed node tree and
// cached, so the raw string is never re-inspected per evaluation.
// Thread-safe: compiled trees are immutable and reused across goroutines.
type FriendlyEngine struct {
	mu    sync.RWMutex
	cache map[string]node
}

// NewFriendlyEngine creates a new friendly expression engine.
func NewFriendlyEngine() *FriendlyEngine {
	return &FriendlyEngine{
		cache: make(map[string]node),
	}
}

// Name returns the engine identifier.
func (e *FriendlyEngine) Name() string {
	return "friendly"
}

// Evaluate compiles (or retrieves from cache) a friendly expression and
// evaluates it against the provided bindings. Unresolvable variable lookups
// yield nil rather than an error.
func (e *FriendlyEngine) Evaluate(ctx context.Context, expression string, bindings map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty friendly expression")
	}

	n, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	if bindings == nil {
		bindings = map[string]any{}
	}
	return n.eval(bindings), nil
}

// getOrCompile returns a cached compiled tree or parses and caches a new one.
func (e *FriendlyEngine) getOrCompile(expression string) (node, error) {
	e.mu.RLock()
	if n, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return n, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if n, ok := e.cache[expression]; ok {
		return n, nil
	}

	n, err := parseFriendly(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"friendly parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = n
	return n, nil
}

var _ Engine = (*FriendlyEngine)(nil)
