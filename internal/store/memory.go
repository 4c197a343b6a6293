package store

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-memory DecisionLog for tests and callers that want the
// audit trail without a database file.
type MemoryLog struct {
	mu      sync.RWMutex
	records []*ExecutionRecord
}

// NewMemoryLog creates an empty in-memory decision log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// AppendExecution appends one record.
func (l *MemoryLog) AppendExecution(ctx context.Context, rec *ExecutionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// ListExecutions returns the most recent records for a table, newest first.
func (l *MemoryLog) ListExecutions(ctx context.Context, tableID string, limit int) ([]*ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*ExecutionRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].TableID != tableID {
			continue
		}
		out = append(out, l.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory log.
func (l *MemoryLog) Close() error { return nil }

var _ DecisionLog = (*MemoryLog)(nil)
