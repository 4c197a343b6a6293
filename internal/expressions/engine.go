package expressions

import "context"

// Engine evaluates clause expressions against an input binding map.
// Four implementations: Friendly (default comparison/literal grammar),
// Expr (restricted arithmetic/boolean logic), CEL (conditions), GoJQ
// (projections over nested input documents).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, bindings map[string]any) (any, error)
}
