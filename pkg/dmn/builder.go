package dmn

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rendis/dmn/internal/loader"
	"github.com/rendis/dmn/pkg/schema"
)

// RuleSpec is a plain rule description for the programmatic builder:
// conditions and outputs keyed by variable name rather than clause id.
type RuleSpec struct {
	Description string
	// Conditions maps an input name to a condition over it. A bare literal
	// ("large") matches that value; anything with operators is used as a
	// full expression ("disclosure_score < 0.3").
	Conditions map[string]string
	// Outputs maps an output name to the literal value the rule produces.
	Outputs map[string]any
	// Priority orders matches under FIRST/PRIORITY; lower wins.
	Priority *int
}

// BuildDecisionTable constructs a decision table directly from plain rule
// descriptions, without going through the loader, and registers it.
// Clause ids are auto-generated (input_N / output_N aligned to the given
// names, rules rule_N) and each input clause's expression is the input
// variable itself. The table uses the FIRST hit policy so that rule
// priorities order competing matches.
func (m *Manager) BuildDecisionTable(name string, rules []RuleSpec, inputNames, outputNames []string) (*schema.DecisionTable, error) {
	if len(inputNames) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "at least one input name is required")
	}
	if len(outputNames) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "at least one output name is required")
	}
	if len(rules) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "at least one rule is required")
	}

	table := &schema.DecisionTable{
		ID:        "dt_" + uuid.NewString()[:8],
		Name:      name,
		HitPolicy: schema.HitPolicyFirst,
		Language:  schema.LanguageFriendly,
	}

	inputID := make(map[string]string, len(inputNames))
	for i, in := range inputNames {
		id := fmt.Sprintf("input_%d", i)
		inputID[in] = id
		table.InputClauses = append(table.InputClauses, schema.InputClause{
			ID:         id,
			Label:      in,
			Expression: in,
		})
	}

	outputID := make(map[string]string, len(outputNames))
	for i, out := range outputNames {
		id := fmt.Sprintf("output_%d", i)
		outputID[out] = id
		table.OutputClauses = append(table.OutputClauses, schema.OutputClause{
			ID:    id,
			Label: out,
			Name:  out,
		})
	}

	for i, spec := range rules {
		rule := schema.Rule{
			ID:            fmt.Sprintf("rule_%d", i),
			Description:   spec.Description,
			InputEntries:  make(map[string]string, len(spec.Conditions)),
			OutputEntries: make(map[string]any, len(spec.Outputs)),
			Priority:      spec.Priority,
		}

		for in, condition := range spec.Conditions {
			id, ok := inputID[in]
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"rule %d conditions reference unknown input %q", i, in)
			}
			rule.InputEntries[id] = loader.QuoteBareLiteral(condition)
		}

		for out, value := range spec.Outputs {
			id, ok := outputID[out]
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"rule %d outputs reference unknown output %q", i, out)
			}
			rule.OutputEntries[id] = value
		}

		table.Rules = append(table.Rules, rule)
	}

	if err := m.RegisterDecisionTable(table); err != nil {
		return nil, err
	}
	return table, nil
}
