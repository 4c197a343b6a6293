package engine

import (
	"context"

	"github.com/rendis/dmn/internal/expressions"
	"github.com/rendis/dmn/pkg/schema"
)

// match is one rule that satisfied every input clause, with its resolved
// outputs keyed by output-clause variable name.
type match struct {
	RuleID   string
	Index    int
	Priority *int
	Outputs  map[string]any
}

// matchRules evaluates every rule in table order and records a trace entry
// for each, matched or not.
func (e *Engine) matchRules(ctx context.Context, table *schema.DecisionTable, input map[string]any, ectx *schema.ExecutionContext) []match {
	var matches []match

	for i, rule := range table.Rules {
		clauses := make(map[string]bool, len(table.InputClauses))
		matched := true

		for ci := range table.InputClauses {
			clause := &table.InputClauses[ci]
			hit := e.matchClause(ctx, table, clause, &rule, input)
			clauses[clause.ID] = hit
			if !hit {
				matched = false
			}
		}

		entry := schema.TraceEntry{
			RuleID:  rule.ID,
			Matched: matched,
			Clauses: clauses,
		}

		if matched {
			outputs := e.resolveOutputs(ctx, table, &rule)
			entry.Outputs = outputs
			matches = append(matches, match{
				RuleID:   rule.ID,
				Index:    i,
				Priority: rule.Priority,
				Outputs:  outputs,
			})
		}

		ectx.Trace = append(ectx.Trace, entry)
	}

	return matches
}

// matchClause decides whether a rule satisfies one input clause.
//
// A rule with no entry for the clause always matches it ("don't care").
// Otherwise the entry is evaluated against the inputs: a nil result (the
// entry was malformed or resolved to nothing) never matches; a boolean
// result is the verdict directly (the entry was a self-contained condition
// such as "score < 0.3"); any other result is compared for equality with
// the evaluation of the clause's own declared expression, case-insensitively
// when both are textual.
func (e *Engine) matchClause(ctx context.Context, table *schema.DecisionTable, clause *schema.InputClause, rule *schema.Rule, input map[string]any) bool {
	entry, ok := rule.InputEntries[clause.ID]
	if !ok {
		return true
	}

	language := table.ClauseLanguage(clause)
	if language == "" {
		language = e.config.DefaultLanguage
	}

	entryValue := e.evaluator.Evaluate(ctx, entry, input, language)
	if entryValue == nil {
		return false
	}
	if verdict, isBool := entryValue.(bool); isBool {
		return verdict
	}

	clauseValue := e.evaluator.Evaluate(ctx, clause.Expression, input, language)
	return expressions.LooseEqual(entryValue, clauseValue)
}

// resolveOutputs maps a matched rule's output entries onto output-clause
// variable names. Clauses without an entry fall back to their declared
// default value, if any.
func (e *Engine) resolveOutputs(ctx context.Context, table *schema.DecisionTable, rule *schema.Rule) map[string]any {
	outputs := make(map[string]any, len(table.OutputClauses))
	for i := range table.OutputClauses {
		clause := &table.OutputClauses[i]
		if v, ok := rule.OutputEntries[clause.ID]; ok {
			outputs[clause.Name] = v
			continue
		}
		if clause.Default != nil {
			outputs[clause.Name] = clause.Default
		}
	}
	return outputs
}
