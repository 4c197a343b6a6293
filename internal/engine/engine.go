package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/dmn/internal/expressions"
	"github.com/rendis/dmn/internal/logging"
	"github.com/rendis/dmn/pkg/schema"
)

// Config holds configuration for the decision engine.
type Config struct {
	// DefaultLanguage applies when neither a clause nor its table declares
	// an expression language.
	DefaultLanguage schema.ExpressionLanguage
	// MaxRules rejects tables above this rule count before evaluation.
	// Zero means no bound.
	MaxRules int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLanguage: schema.LanguageFriendly,
		MaxRules:        10000,
	}
}

// Engine evaluates decision tables. One Execute call does bounded CPU-only
// work proportional to rules × input clauses; tables are immutable, so a
// single Engine may serve concurrent callers.
type Engine struct {
	evaluator *expressions.Evaluator
	logger    *slog.Logger
	config    Config
}

// New creates a decision engine. A nil evaluator gets a fresh one; a nil
// logger falls back to slog.Default().
func New(evaluator *expressions.Evaluator, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if evaluator == nil {
		evaluator = expressions.NewEvaluator(logger)
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = schema.LanguageFriendly
	}
	return &Engine{evaluator: evaluator, logger: logger, config: cfg}
}

// Execute evaluates a decision table against the input mapping and resolves
// the matched rules through the table's hit policy.
//
// Failures never surface as a returned error or panic: structural validation
// errors, hit-policy violations and internal faults are recorded on the
// result with Success=false, so rule misconfiguration cannot crash
// request-serving code that depends on a decision.
func (e *Engine) Execute(ctx context.Context, table *schema.DecisionTable, input map[string]any, ectx *schema.ExecutionContext) (result *schema.ExecutionResult) {
	start := time.Now()

	if ectx == nil {
		ectx = schema.NewExecutionContext(input)
	}
	if input == nil {
		input = ectx.Inputs
	}

	result = &schema.ExecutionResult{
		MatchedRules: []string{},
		Outputs:      map[string]any{},
		Success:      true,
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "decision execution panicked", slog.Any("panic", r))
			result.AddError(schema.NewErrorf(schema.ErrCodeExecution,
				"internal failure during execution: %v", r))
		}
		result.Trace = ectx.Trace
		result.Duration = time.Since(start)
	}()

	if table == nil {
		result.AddError(schema.NewError(schema.ErrCodeValidation, "decision table is nil"))
		return result
	}

	result.TableID = table.ID
	ectx.TableID = table.ID
	ctx = logging.WithTableID(ctx, table.ID)
	log := logging.LogWith(ctx, e.logger)

	if e.config.MaxRules > 0 && len(table.Rules) > e.config.MaxRules {
		result.AddError(schema.NewErrorf(schema.ErrCodeValidation,
			"table has %d rules, limit is %d", len(table.Rules), e.config.MaxRules).
			WithTable(table.ID))
		return result
	}

	if vr := table.Validate(); !vr.Valid() {
		for _, issue := range vr.Errors {
			result.AddError(schema.NewErrorf(schema.ErrCodeValidation,
				"%s: %s", issue.Path, issue.Message).WithTable(table.ID))
		}
		log.WarnContext(ctx, "decision table failed validation",
			slog.Int("errors", len(vr.Errors)))
		return result
	}

	matches := e.matchRules(ctx, table, input, ectx)
	for _, m := range matches {
		result.MatchedRules = append(result.MatchedRules, m.RuleID)
	}

	raw := make([]map[string]any, len(matches))
	for i, m := range matches {
		raw[i] = m.Outputs
	}
	result.Raw = raw

	outputs, outputList, policyErr := resolve(table, matches)
	if policyErr != nil {
		result.AddError(policyErr.WithTable(table.ID))
		log.WarnContext(ctx, "hit policy violation",
			slog.String("hit_policy", string(table.HitPolicy)),
			slog.String("error", policyErr.Message))
		return result
	}

	result.Outputs = outputs
	result.OutputList = outputList

	log.DebugContext(ctx, "decision executed",
		slog.Int("matched", len(matches)),
		slog.String("hit_policy", string(table.HitPolicy)))
	return result
}
