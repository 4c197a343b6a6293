// Package store persists the decision audit trail: an append-only log of
// executions, one record per engine call. Rule definitions themselves are
// never persisted; tables live in memory for the life of the process.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// ExecutionRecord is one appended entry in the decision log.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	TableID      string          `json:"table_id"`
	InputHash    string          `json:"input_hash"`
	MatchedRules []string        `json:"matched_rules"`
	Success      bool            `json:"success"`
	DurationMs   int64           `json:"duration_ms"`
	Result       json.RawMessage `json:"result,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// DecisionLog is the audit sink contract. All implementations must be safe
// for concurrent use.
type DecisionLog interface {
	// AppendExecution appends one record; records are immutable once written.
	AppendExecution(ctx context.Context, rec *ExecutionRecord) error

	// ListExecutions returns the most recent records for a table, newest
	// first, capped at limit (0 means no cap).
	ListExecutions(ctx context.Context, tableID string, limit int) ([]*ExecutionRecord, error)

	// Close releases any underlying resources.
	Close() error
}
