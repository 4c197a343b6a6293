package schema

import "time"

// ExecutionContext carries the per-call state for one table evaluation.
// Variables is a scratch space for intermediate values; it is not consulted
// by input or output resolution today but is reserved for extension.
type ExecutionContext struct {
	Inputs    map[string]any `json:"inputs"`
	TableID   string         `json:"table_id,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Trace     []TraceEntry   `json:"trace,omitempty"`
}

// NewExecutionContext creates an execution context for the given inputs.
func NewExecutionContext(inputs map[string]any) *ExecutionContext {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &ExecutionContext{
		Inputs:    inputs,
		Variables: map[string]any{},
	}
}

// TraceEntry records the match outcome for a single rule during evaluation.
type TraceEntry struct {
	RuleID  string            `json:"rule_id"`
	Matched bool              `json:"matched"`
	Clauses map[string]bool   `json:"clauses,omitempty"`
	Outputs map[string]any    `json:"outputs,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

// ExecutionResult is returned by every engine execution. Callers must check
// Success and Errors; the engine never signals rule misconfiguration through
// a returned error.
type ExecutionResult struct {
	TableID      string           `json:"table_id"`
	MatchedRules []string         `json:"matched_rules"`
	Outputs      map[string]any   `json:"outputs,omitempty"`
	OutputList   []map[string]any `json:"output_list,omitempty"`
	Raw          any              `json:"raw,omitempty"`
	Duration     time.Duration    `json:"duration_ns"`
	Success      bool             `json:"success"`
	Errors       []*DMNError      `json:"errors,omitempty"`
	Trace        []TraceEntry     `json:"trace,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// AddError appends an error and flips Success off.
func (r *ExecutionResult) AddError(err *DMNError) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}
