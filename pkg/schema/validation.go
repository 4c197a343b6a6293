package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single validation problem with location context.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates all issues from the validation pipeline.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors (warnings are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Path: path, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError converts the result to a DMNError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}

// Validate checks the structural invariants of a decision table: at least
// one input clause, one output clause and one rule; a known hit policy and
// aggregator; and no rule entry referencing an undeclared clause id.
// Dangling references are a validation error, never a runtime error.
func (t *DecisionTable) Validate() *ValidationResult {
	res := &ValidationResult{}
	path := fmt.Sprintf("decision_table(%s)", t.ID)

	if t.ID == "" {
		res.AddError(path, "missing_id", "decision table id is required")
	}
	if !t.HitPolicy.Valid() {
		res.AddError(path+".hit_policy", "invalid_hit_policy",
			fmt.Sprintf("unknown hit policy %q", t.HitPolicy))
	}
	if t.Aggregation != "" {
		if !t.Aggregation.Valid() {
			res.AddError(path+".aggregation", "invalid_aggregator",
				fmt.Sprintf("unknown aggregator %q", t.Aggregation))
		} else if t.HitPolicy != HitPolicyCollect {
			res.AddWarning(path+".aggregation", "ignored_aggregator",
				fmt.Sprintf("aggregator %s has no effect under hit policy %s", t.Aggregation, t.HitPolicy))
		}
	}
	if len(t.InputClauses) == 0 {
		res.AddError(path+".input_clauses", "empty", "at least one input clause is required")
	}
	if len(t.OutputClauses) == 0 {
		res.AddError(path+".output_clauses", "empty", "at least one output clause is required")
	}
	if len(t.Rules) == 0 {
		res.AddError(path+".rules", "empty", "at least one rule is required")
	}

	inputIDs := make(map[string]bool, len(t.InputClauses))
	for i, c := range t.InputClauses {
		cp := fmt.Sprintf("%s.input_clauses[%d]", path, i)
		if c.ID == "" {
			res.AddError(cp, "missing_id", "input clause id is required")
			continue
		}
		if inputIDs[c.ID] {
			res.AddError(cp, "duplicate_id", fmt.Sprintf("duplicate input clause id %q", c.ID))
		}
		inputIDs[c.ID] = true
		if c.Language != "" && !c.Language.Valid() {
			res.AddError(cp+".expression_language", "invalid_language",
				fmt.Sprintf("unknown expression language %q", c.Language))
		}
	}

	outputIDs := make(map[string]bool, len(t.OutputClauses))
	for i, c := range t.OutputClauses {
		cp := fmt.Sprintf("%s.output_clauses[%d]", path, i)
		if c.ID == "" {
			res.AddError(cp, "missing_id", "output clause id is required")
			continue
		}
		if outputIDs[c.ID] {
			res.AddError(cp, "duplicate_id", fmt.Sprintf("duplicate output clause id %q", c.ID))
		}
		outputIDs[c.ID] = true
		if c.Name == "" {
			res.AddError(cp+".name", "missing_name", "output clause variable name is required")
		}
	}

	ruleIDs := make(map[string]bool, len(t.Rules))
	for i, r := range t.Rules {
		rp := fmt.Sprintf("%s.rules[%d]", path, i)
		if r.ID == "" {
			res.AddError(rp, "missing_id", "rule id is required")
		} else if ruleIDs[r.ID] {
			res.AddError(rp, "duplicate_id", fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		ruleIDs[r.ID] = true

		for clauseID := range r.InputEntries {
			if !inputIDs[clauseID] {
				res.AddError(rp+".input_entries", "dangling_reference",
					fmt.Sprintf("rule %q references undeclared input clause %q", r.ID, clauseID))
			}
		}
		for clauseID := range r.OutputEntries {
			if !outputIDs[clauseID] {
				res.AddError(rp+".output_entries", "dangling_reference",
					fmt.Sprintf("rule %q references undeclared output clause %q", r.ID, clauseID))
			}
		}
	}

	if t.Language != "" && !t.Language.Valid() {
		res.AddError(path+".expression_language", "invalid_language",
			fmt.Sprintf("unknown expression language %q", t.Language))
	}

	return res
}

// Validate checks a DMN container: each contained decision table must be
// valid and no identifier (table, rule or clause id) may be duplicated
// across the whole container.
func (d *DMNTable) Validate() *ValidationResult {
	res := &ValidationResult{}
	path := fmt.Sprintf("dmn_table(%s)", d.ID)

	if d.ID == "" {
		res.AddError(path, "missing_id", "dmn table id is required")
	}
	if len(d.Tables) == 0 {
		res.AddError(path+".decision_tables", "empty", "at least one decision table is required")
	}

	seen := map[string]string{}
	claim := func(id, kind, where string) {
		if id == "" {
			return
		}
		if prev, ok := seen[id]; ok {
			res.AddError(where, "duplicate_id",
				fmt.Sprintf("identifier %q used by both %s and %s", id, prev, kind))
			return
		}
		seen[id] = kind
	}

	for i := range d.Tables {
		t := &d.Tables[i]
		res.Merge(t.Validate())

		tp := fmt.Sprintf("%s.decision_tables[%d]", path, i)
		claim(t.ID, "decision table "+t.ID, tp)
		for _, c := range t.InputClauses {
			claim(c.ID, fmt.Sprintf("input clause %s of %s", c.ID, t.ID), tp)
		}
		for _, c := range t.OutputClauses {
			claim(c.ID, fmt.Sprintf("output clause %s of %s", c.ID, t.ID), tp)
		}
		for _, r := range t.Rules {
			claim(r.ID, fmt.Sprintf("rule %s of %s", r.ID, t.ID), tp)
		}
	}

	return res
}
