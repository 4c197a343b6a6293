package schema

import "strings"

// HitPolicy governs how multiple matching rules are reduced to a final result.
type HitPolicy string

const (
	HitPolicyUnique      HitPolicy = "UNIQUE"
	HitPolicyFirst       HitPolicy = "FIRST"
	HitPolicyPriority    HitPolicy = "PRIORITY"
	HitPolicyAny         HitPolicy = "ANY"
	HitPolicyCollect     HitPolicy = "COLLECT"
	HitPolicyRuleOrder   HitPolicy = "RULE_ORDER"
	HitPolicyOutputOrder HitPolicy = "OUTPUT_ORDER"
)

// Valid reports whether the hit policy is one of the seven known policies.
func (p HitPolicy) Valid() bool {
	switch p {
	case HitPolicyUnique, HitPolicyFirst, HitPolicyPriority, HitPolicyAny,
		HitPolicyCollect, HitPolicyRuleOrder, HitPolicyOutputOrder:
		return true
	}
	return false
}


// ParseHitPolicy normalizes a textual hit policy (any case, "rule order" or
// "rule_order") into a HitPolicy. Empty input defaults to UNIQUE.
func ParseHitPolicy(s string) (HitPolicy, bool) {
	if s == "" {
		return HitPolicyUnique, true
	}
	p := HitPolicy(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_"))
	return p, p.Valid()
}

// BuiltinAggregator reduces the numeric outputs of all matched rules under
// the COLLECT hit policy.
type BuiltinAggregator string

const (
	AggregatorSum   BuiltinAggregator = "SUM"
	AggregatorCount BuiltinAggregator = "COUNT"
	AggregatorMin   BuiltinAggregator = "MIN"
	AggregatorMax   BuiltinAggregator = "MAX"
	AggregatorList  BuiltinAggregator = "LIST"
)

// Valid reports whether the aggregator is a known builtin.
func (a BuiltinAggregator) Valid() bool {
	switch a {
	case AggregatorSum, AggregatorCount, AggregatorMin, AggregatorMax, AggregatorList:
		return true
	}
	return false
}

// ParseAggregator normalizes a textual aggregator name. Empty input means
// "no aggregator" and returns "" with ok=true.
func ParseAggregator(s string) (BuiltinAggregator, bool) {
	if s == "" {
		return "", true
	}
	a := BuiltinAggregator(strings.ToUpper(strings.TrimSpace(s)))
	return a, a.Valid()
}

// ExpressionLanguage identifies which grammar an expression string uses.
// Each input and output clause may declare its own language; the table
// declares the default.
type ExpressionLanguage string

const (
	// LanguageFriendly is the default comparison/literal/lookup grammar.
	LanguageFriendly ExpressionLanguage = "friendly"
	// LanguageExpr is the restricted arithmetic/boolean language (expr-lang).
	LanguageExpr ExpressionLanguage = "expr"
	// LanguageCEL is Google's Common Expression Language.
	LanguageCEL ExpressionLanguage = "cel"
	// LanguageJQ evaluates jq projections over the input document.
	LanguageJQ ExpressionLanguage = "jq"
)

// Valid reports whether the language is supported.
func (l ExpressionLanguage) Valid() bool {
	switch l {
	case LanguageFriendly, LanguageExpr, LanguageCEL, LanguageJQ:
		return true
	}
	return false
}

// InputClause is one condition column of a decision table.
type InputClause struct {
	ID         string             `json:"id"`
	Label      string             `json:"label,omitempty"`
	Expression string             `json:"expression"`
	TypeRef    string             `json:"type_ref,omitempty"`
	Language   ExpressionLanguage `json:"expression_language,omitempty"`
}

// OutputClause is one result column of a decision table.
type OutputClause struct {
	ID       string             `json:"id"`
	Label    string             `json:"label,omitempty"`
	Name     string             `json:"name"`
	TypeRef  string             `json:"type_ref,omitempty"`
	Default  any                `json:"default_value,omitempty"`
	Language ExpressionLanguage `json:"expression_language,omitempty"`
}

// Rule is one row of a decision table. A missing input entry for a declared
// clause means "don't care": the rule always matches that clause.
type Rule struct {
	ID            string            `json:"id"`
	Description   string            `json:"description,omitempty"`
	InputEntries  map[string]string `json:"input_entries"`
	OutputEntries map[string]any    `json:"output_entries"`
	Priority      *int              `json:"priority,omitempty"`
	Annotations   map[string]string `json:"annotation_entries,omitempty"`
}

// DecisionTable is an immutable rules table. Instances are built once by the
// loader or the manager's builder and are read-only afterwards; they may be
// evaluated concurrently without locking.
type DecisionTable struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	HitPolicy     HitPolicy          `json:"hit_policy"`
	Aggregation   BuiltinAggregator  `json:"aggregation,omitempty"`
	InputClauses  []InputClause      `json:"input_clauses"`
	OutputClauses []OutputClause     `json:"output_clauses"`
	Rules         []Rule             `json:"rules"`
	Description   string             `json:"description,omitempty"`
	Language      ExpressionLanguage `json:"expression_language,omitempty"`
}

// InputClause returns the declared input clause with the given id, or nil.
func (t *DecisionTable) InputClause(id string) *InputClause {
	for i := range t.InputClauses {
		if t.InputClauses[i].ID == id {
			return &t.InputClauses[i]
		}
	}
	return nil
}

// OutputClause returns the declared output clause with the given id, or nil.
func (t *DecisionTable) OutputClause(id string) *OutputClause {
	for i := range t.OutputClauses {
		if t.OutputClauses[i].ID == id {
			return &t.OutputClauses[i]
		}
	}
	return nil
}

// ClauseLanguage resolves the effective language for an input clause:
// the clause's own declaration, then the table default, then friendly.
func (t *DecisionTable) ClauseLanguage(c *InputClause) ExpressionLanguage {
	if c != nil && c.Language != "" {
		return c.Language
	}
	if t.Language != "" {
		return t.Language
	}
	return LanguageFriendly
}

// DMNTable is a named, versioned container of decision tables.
type DMNTable struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Namespace   string          `json:"namespace,omitempty"`
	Version     string          `json:"version,omitempty"`
	Description string          `json:"description,omitempty"`
	Tables      []DecisionTable `json:"decision_tables"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// Table returns the contained decision table with the given id, or nil.
func (d *DMNTable) Table(id string) *DecisionTable {
	for i := range d.Tables {
		if d.Tables[i].ID == id {
			return &d.Tables[i]
		}
	}
	return nil
}
