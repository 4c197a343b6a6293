package loader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rendis/dmn/pkg/schema"
)

// The normalizer tolerates both camelCase and snake_case for every field,
// singular records where sequences are expected, and rule entries given
// either positionally (aligned to the declared clauses) or keyed by clause
// id. All three serialization formats funnel through here.

// field returns the first present alias from the mapping.
func field(m map[string]any, aliases ...string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := m[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// text resolves a field to its string form; numbers are formatted minimally.
func text(m map[string]any, aliases ...string) string {
	v, ok := field(m, aliases...)
	if !ok || v == nil {
		return ""
	}
	return asString(v)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asSlice normalizes singular-or-sequence fields: a single record becomes a
// one-element sequence.
func asSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// normalizeDMNTable interprets the top-level document. A document that
// carries rules directly (no container fields) is treated as a single
// decision table wrapped in an anonymous container.
func normalizeDMNTable(doc map[string]any) (*schema.DMNTable, error) {
	tablesRaw, ok := field(doc, "decisionTables", "decision_tables", "tables", "decisionTable", "decision_table")
	if !ok {
		if _, bare := field(doc, "rules"); bare {
			dt, err := normalizeDecisionTable(doc)
			if err != nil {
				return nil, err
			}
			return &schema.DMNTable{
				ID:     dt.ID + "_container",
				Name:   dt.Name,
				Tables: []schema.DecisionTable{*dt},
			}, nil
		}
		return nil, schema.NewError(schema.ErrCodeParse, "document declares no decision tables")
	}

	out := &schema.DMNTable{
		ID:          text(doc, "id"),
		Name:        text(doc, "name"),
		Namespace:   text(doc, "namespace"),
		Version:     text(doc, "version"),
		Description: text(doc, "description"),
	}
	if meta, ok := field(doc, "metadata"); ok {
		if m, isMap := asMap(meta); isMap {
			out.Metadata = m
		}
	}

	for i, raw := range asSlice(tablesRaw) {
		m, isMap := asMap(raw)
		if !isMap {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"decision table %d is not a mapping", i)
		}
		dt, err := normalizeDecisionTable(m)
		if err != nil {
			return nil, err
		}
		out.Tables = append(out.Tables, *dt)
	}

	return out, nil
}

func normalizeDecisionTable(m map[string]any) (*schema.DecisionTable, error) {
	dt := &schema.DecisionTable{
		ID:          text(m, "id"),
		Name:        text(m, "name"),
		Description: text(m, "description"),
		Language:    schema.ExpressionLanguage(text(m, "expressionLanguage", "expression_language")),
	}

	policy, ok := schema.ParseHitPolicy(text(m, "hitPolicy", "hit_policy"))
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeParse,
			"table %q: unknown hit policy %q", dt.ID, text(m, "hitPolicy", "hit_policy"))
	}
	dt.HitPolicy = policy

	agg, ok := schema.ParseAggregator(text(m, "aggregation", "aggregator", "builtinAggregator", "builtin_aggregator"))
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeParse,
			"table %q: unknown aggregator %q", dt.ID, text(m, "aggregation", "aggregator"))
	}
	dt.Aggregation = agg

	inputsRaw, _ := field(m, "inputClauses", "input_clauses", "inputs", "inputClause", "input_clause", "input")
	for i, raw := range asSlice(inputsRaw) {
		cm, isMap := asMap(raw)
		if !isMap {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"table %q: input clause %d is not a mapping", dt.ID, i)
		}
		clause := schema.InputClause{
			ID:         text(cm, "id"),
			Label:      text(cm, "label"),
			Expression: text(cm, "expression", "inputExpression", "input_expression"),
			TypeRef:    text(cm, "typeRef", "type_ref"),
			Language:   schema.ExpressionLanguage(text(cm, "expressionLanguage", "expression_language")),
		}
		if clause.ID == "" {
			clause.ID = fmt.Sprintf("input_%d", i)
		}
		dt.InputClauses = append(dt.InputClauses, clause)
	}

	outputsRaw, _ := field(m, "outputClauses", "output_clauses", "outputs", "outputClause", "output_clause", "output")
	for i, raw := range asSlice(outputsRaw) {
		cm, isMap := asMap(raw)
		if !isMap {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"table %q: output clause %d is not a mapping", dt.ID, i)
		}
		clause := schema.OutputClause{
			ID:      text(cm, "id"),
			Label:   text(cm, "label"),
			Name:    text(cm, "name", "outputName", "output_name"),
			TypeRef: text(cm, "typeRef", "type_ref"),
		}
		if def, ok := field(cm, "defaultValue", "default_value", "default"); ok {
			clause.Default = def
		}
		if clause.ID == "" {
			clause.ID = fmt.Sprintf("output_%d", i)
		}
		if clause.Name == "" {
			clause.Name = clause.ID
		}
		dt.OutputClauses = append(dt.OutputClauses, clause)
	}

	rulesRaw, _ := field(m, "rules", "rule")
	for i, raw := range asSlice(rulesRaw) {
		rm, isMap := asMap(raw)
		if !isMap {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"table %q: rule %d is not a mapping", dt.ID, i)
		}
		rule, err := normalizeRule(dt, rm, i)
		if err != nil {
			return nil, err
		}
		dt.Rules = append(dt.Rules, *rule)
	}

	return dt, nil
}

func normalizeRule(dt *schema.DecisionTable, m map[string]any, index int) (*schema.Rule, error) {
	rule := &schema.Rule{
		ID:          text(m, "id"),
		Description: text(m, "description"),
	}
	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule_%d", index)
	}

	inputsRaw, _ := field(m, "inputEntries", "input_entries", "inputEntry", "input_entry")
	entries, err := normalizeEntries(inputsRaw, inputClauseIDs(dt))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse,
			"rule %q: %s", rule.ID, err.Error()).WithCause(err)
	}
	rule.InputEntries = make(map[string]string, len(entries))
	for id, v := range entries {
		entry := asString(v)
		if dt.ClauseLanguage(dt.InputClause(id)) == schema.LanguageFriendly {
			entry = QuoteBareLiteral(entry)
		}
		rule.InputEntries[id] = entry
	}

	outputsRaw, _ := field(m, "outputEntries", "output_entries", "outputEntry", "output_entry")
	rule.OutputEntries, err = normalizeEntries(outputsRaw, outputClauseIDs(dt))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse,
			"rule %q: %s", rule.ID, err.Error()).WithCause(err)
	}

	if praw, ok := field(m, "priority"); ok && praw != nil {
		p, err := asInt(praw)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"rule %q: invalid priority %v", rule.ID, praw)
		}
		rule.Priority = &p
	}

	if araw, ok := field(m, "annotationEntries", "annotation_entries", "annotations"); ok {
		if am, isMap := asMap(araw); isMap {
			rule.Annotations = make(map[string]string, len(am))
			for k, v := range am {
				rule.Annotations[k] = asString(v)
			}
		}
	}

	return rule, nil
}

// normalizeEntries accepts either a mapping keyed by clause id or a sequence
// aligned positionally to the declared clauses.
func normalizeEntries(raw any, clauseIDs []string) (map[string]any, error) {
	switch t := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	case []any:
		if len(t) > len(clauseIDs) {
			return nil, fmt.Errorf("%d entries for %d clauses", len(t), len(clauseIDs))
		}
		out := make(map[string]any, len(t))
		for i, v := range t {
			if v == nil {
				continue // positional "don't care"
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			out[clauseIDs[i]] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("entries must be a mapping or a sequence, got %T", raw)
	}
}

func inputClauseIDs(dt *schema.DecisionTable) []string {
	ids := make([]string, len(dt.InputClauses))
	for i, c := range dt.InputClauses {
		ids[i] = c.ID
	}
	return ids
}

func outputClauseIDs(dt *schema.DecisionTable) []string {
	ids := make([]string, len(dt.OutputClauses))
	for i, c := range dt.OutputClauses {
		ids[i] = c.ID
	}
	return ids
}

// QuoteBareLiteral turns a bare word entry into a string literal so that a
// file-authored condition "large" means company_size == "large" rather than
// a lookup of an undefined variable named large. Numbers, booleans, quoted
// strings and anything containing expression syntax pass through untouched.
// Applies to friendly-language entries only; expr/cel/jq entries keep bare
// words as variable references.
func QuoteBareLiteral(condition string) string {
	s := strings.TrimSpace(condition)
	if s == "" {
		return condition
	}
	if strings.ContainsAny(s, "<>=!,\"'") || strings.Contains(s, "..") {
		return condition
	}
	switch strings.ToLower(s) {
	case "true", "false":
		return condition
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return condition
	}
	// Multi-word values ("north america") are literals too.
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == ' ' {
			continue
		}
		return condition
	}
	return `"` + s + `"`
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}
