package expressions

import (
	"context"
	"log/slog"

	"github.com/rendis/dmn/pkg/schema"
)

// Evaluator dispatches expressions to the engine registered for their
// declared language. It never propagates a failure: parse errors, runtime
// errors and panics are logged and downgraded to a nil result, so one
// malformed clause expression means "no match" instead of aborting the
// whole table evaluation.
type Evaluator struct {
	engines map[schema.ExpressionLanguage]Engine
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator with all four language engines
// registered. A nil logger falls back to slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{
		engines: map[schema.ExpressionLanguage]Engine{
			schema.LanguageFriendly: NewFriendlyEngine(),
			schema.LanguageExpr:     NewExprEngine(),
			schema.LanguageCEL:      NewCELEngine(),
			schema.LanguageJQ:       NewGoJQEngine(),
		},
		logger: logger,
	}
}

// Evaluate resolves an expression against the bindings using the engine for
// the given language. Unknown languages fall back to the friendly engine.
// The returned value is nil whenever the expression cannot be evaluated.
func (ev *Evaluator) Evaluate(ctx context.Context, expression string, bindings map[string]any, language schema.ExpressionLanguage) (result any) {
	defer func() {
		if r := recover(); r != nil {
			ev.logger.ErrorContext(ctx, "expression evaluation panicked",
				slog.String("expression", expression),
				slog.Any("panic", r))
			result = nil
		}
	}()

	engine, ok := ev.engines[language]
	if !ok {
		engine = ev.engines[schema.LanguageFriendly]
	}

	out, err := engine.Evaluate(ctx, expression, bindings)
	if err != nil {
		ev.logger.WarnContext(ctx, "expression evaluation failed",
			slog.String("engine", engine.Name()),
			slog.String("expression", expression),
			slog.String("error", err.Error()))
		return nil
	}
	return out
}

// Engine returns the registered engine for a language, or nil.
// Exposed for tests and for callers that need error details.
func (ev *Evaluator) Engine(language schema.ExpressionLanguage) Engine {
	return ev.engines[language]
}
