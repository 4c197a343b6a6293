package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rendis/dmn/internal/expressions"
	"github.com/rendis/dmn/pkg/schema"
)

// resolve reduces the matched set to the final decision according to the
// table's hit policy. Single-result policies fill the outputs map;
// multi-result policies fill the output list. A returned error is a hit
// policy violation (UNIQUE and ANY are the only policies that can fail).
//
// The switch is exhaustive over the seven policies; validation has already
// rejected anything else, so the default arm is unreachable in practice but
// still reports rather than panics.
func resolve(table *schema.DecisionTable, matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	switch table.HitPolicy {
	case schema.HitPolicyUnique:
		return resolveUnique(matches)
	case schema.HitPolicyFirst, schema.HitPolicyPriority:
		return resolvePriority(matches)
	case schema.HitPolicyAny:
		return resolveAny(matches)
	case schema.HitPolicyCollect:
		return resolveCollect(table, matches)
	case schema.HitPolicyRuleOrder:
		return resolveRuleOrder(matches)
	case schema.HitPolicyOutputOrder:
		return resolveOutputOrder(matches)
	default:
		return nil, nil, schema.NewErrorf(schema.ErrCodeHitPolicy,
			"unsupported hit policy %q", table.HitPolicy)
	}
}

// resolveUnique permits zero or one match. Zero matches is a valid empty
// decision; two or more is a hard violation.
func resolveUnique(matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	switch len(matches) {
	case 0:
		return map[string]any{}, nil, nil
	case 1:
		return matches[0].Outputs, nil, nil
	default:
		ids := matchedIDs(matches)
		return nil, nil, schema.NewErrorf(schema.ErrCodeHitPolicy,
			"UNIQUE hit policy violated: %d rules matched (%v)", len(matches), ids).
			WithDetails(map[string]any{"matched_rules": ids})
	}
}

// resolvePriority serves both FIRST and PRIORITY: matches are ordered by
// ascending priority with missing priorities last, ties broken by stable
// table order, and the first match wins.
func resolvePriority(matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	if len(matches) == 0 {
		return map[string]any{}, nil, nil
	}

	ordered := make([]match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Priority, ordered[j].Priority
		switch {
		case pi == nil && pj == nil:
			return false // stable sort keeps table order
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi < *pj
		}
	})

	return ordered[0].Outputs, nil, nil
}

// resolveAny requires every match to carry an identical output mapping,
// compared byte-for-byte on the canonical JSON encoding.
func resolveAny(matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	if len(matches) == 0 {
		return map[string]any{}, nil, nil
	}

	first, err := canonicalJSON(matches[0].Outputs)
	if err != nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeExecution,
			"encode outputs of rule %s: %s", matches[0].RuleID, err.Error()).WithCause(err)
	}
	for _, m := range matches[1:] {
		enc, err := canonicalJSON(m.Outputs)
		if err != nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeExecution,
				"encode outputs of rule %s: %s", m.RuleID, err.Error()).WithCause(err)
		}
		if enc != first {
			return nil, nil, schema.NewErrorf(schema.ErrCodeHitPolicy,
				"ANY hit policy violated: rules %s and %s produced different outputs",
				matches[0].RuleID, m.RuleID).
				WithDetails(map[string]any{"matched_rules": matchedIDs(matches)})
		}
	}

	return matches[0].Outputs, nil, nil
}

// resolveCollect applies the declared aggregator across the numeric outputs
// of all matches. Without an aggregator, the result is the sequence of each
// match's full output mapping.
func resolveCollect(table *schema.DecisionTable, matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	if table.Aggregation == "" {
		return nil, outputMaps(matches), nil
	}

	// Flatten numeric output values across all matches, walking output
	// clauses in declared order for determinism.
	var nums []float64
	for _, m := range matches {
		for _, clause := range table.OutputClauses {
			v, ok := m.Outputs[clause.Name]
			if !ok {
				continue
			}
			if f, isNum := expressions.ToFloat(v); isNum {
				nums = append(nums, f)
			}
		}
	}

	var value any
	switch table.Aggregation {
	case schema.AggregatorSum:
		var sum float64
		for _, f := range nums {
			sum += f
		}
		value = sum
	case schema.AggregatorCount:
		value = float64(len(nums))
	case schema.AggregatorMin:
		if len(nums) == 0 {
			value = nil
		} else {
			min := nums[0]
			for _, f := range nums[1:] {
				if f < min {
					min = f
				}
			}
			value = min
		}
	case schema.AggregatorMax:
		if len(nums) == 0 {
			value = nil
		} else {
			max := nums[0]
			for _, f := range nums[1:] {
				if f > max {
					max = f
				}
			}
			value = max
		}
	case schema.AggregatorList:
		list := make([]any, len(nums))
		for i, f := range nums {
			list[i] = f
		}
		value = list
	default:
		return nil, nil, schema.NewErrorf(schema.ErrCodeHitPolicy,
			"unsupported aggregator %q", table.Aggregation)
	}

	// The aggregate lands under the single output clause's variable name,
	// or "aggregate" when the table declares several.
	name := "aggregate"
	if len(table.OutputClauses) == 1 {
		name = table.OutputClauses[0].Name
	}
	return map[string]any{name: value}, nil, nil
}

// resolveRuleOrder returns matched outputs in table order, unmodified.
func resolveRuleOrder(matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	return nil, outputMaps(matches), nil
}

// resolveOutputOrder returns matched outputs sorted by a string projection
// of their output values (the canonical JSON encoding).
func resolveOutputOrder(matches []match) (map[string]any, []map[string]any, *schema.DMNError) {
	type keyed struct {
		outputs map[string]any
		key     string
	}
	items := make([]keyed, len(matches))
	for i, m := range matches {
		enc, err := canonicalJSON(m.Outputs)
		if err != nil {
			enc = fmt.Sprintf("%v", m.Outputs)
		}
		items[i] = keyed{outputs: m.Outputs, key: enc}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

	maps := make([]map[string]any, len(items))
	for i, it := range items {
		maps[i] = it.outputs
	}
	return nil, maps, nil
}

func outputMaps(matches []match) []map[string]any {
	out := make([]map[string]any, len(matches))
	for i, m := range matches {
		out[i] = m.Outputs
	}
	return out
}

func matchedIDs(matches []match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.RuleID
	}
	return ids
}

// canonicalJSON encodes a value deterministically; encoding/json already
// sorts map keys.
func canonicalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
