package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeHitPolicy  = "HIT_POLICY_VIOLATION"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeExecution  = "EXECUTION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeStore      = "STORE_ERROR"
)

// DMNError is the structured error type for all engine operations.
type DMNError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TableID string         `json:"table_id,omitempty"`
	RuleID  string         `json:"rule_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DMNError) Error() string {
	switch {
	case e.RuleID != "":
		return fmt.Sprintf("[%s] rule %s: %s", e.Code, e.RuleID, e.Message)
	case e.TableID != "":
		return fmt.Sprintf("[%s] table %s: %s", e.Code, e.TableID, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *DMNError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DMNError.
func NewError(code, message string) *DMNError {
	return &DMNError{Code: code, Message: message}
}

// NewErrorf creates a new DMNError with a formatted message.
func NewErrorf(code, format string, args ...any) *DMNError {
	return &DMNError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithTable attaches a decision-table ID to the error.
func (e *DMNError) WithTable(tableID string) *DMNError {
	e.TableID = tableID
	return e
}

// WithRule attaches a rule ID to the error.
func (e *DMNError) WithRule(ruleID string) *DMNError {
	e.RuleID = ruleID
	return e
}

// WithCause attaches an underlying cause.
func (e *DMNError) WithCause(err error) *DMNError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DMNError) WithDetails(details map[string]any) *DMNError {
	e.Details = details
	return e
}
