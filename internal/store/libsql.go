//go:build cgo

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/dmn/pkg/schema"
)

// LibSQLLog implements DecisionLog on a libSQL database (embedded SQLite
// fork), giving the audit trail durability across process restarts.
type LibSQLLog struct {
	db *sql.DB
}

// NewLibSQLLog opens a libSQL database at the given path and prepares the
// executions table. The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLLog(dbPath string) (*LibSQLLog, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	l := &LibSQLLog{db: db}
	if err := l.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *LibSQLLog) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS executions (
	id            TEXT PRIMARY KEY,
	table_id      TEXT NOT NULL,
	input_hash    TEXT NOT NULL,
	matched_rules TEXT,
	success       INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL,
	result        TEXT,
	timestamp     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_table_ts ON executions (table_id, timestamp DESC);`

	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"migrate decision log: %s", err.Error()).WithCause(err)
	}
	return nil
}

// AppendExecution inserts one immutable record.
func (l *LibSQLLog) AppendExecution(ctx context.Context, rec *ExecutionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	matched, err := json.Marshal(rec.MatchedRules)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"marshal matched rules: %s", err.Error()).WithCause(err)
	}

	var result sql.NullString
	if len(rec.Result) > 0 {
		result = sql.NullString{String: string(rec.Result), Valid: true}
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO executions (id, table_id, input_hash, matched_rules, success, duration_ms, result, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TableID, rec.InputHash, string(matched),
		boolToInt(rec.Success), rec.DurationMs, result, rec.Timestamp,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore,
			"append execution: %s", err.Error()).WithCause(err)
	}
	return nil
}

// ListExecutions returns the most recent records for a table, newest first.
func (l *LibSQLLog) ListExecutions(ctx context.Context, tableID string, limit int) ([]*ExecutionRecord, error) {
	query := `SELECT id, table_id, input_hash, matched_rules, success, duration_ms, result, timestamp
	          FROM executions WHERE table_id = ? ORDER BY timestamp DESC`
	args := []any{tableID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore,
			"list executions: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*ExecutionRecord
	for rows.Next() {
		rec := &ExecutionRecord{}
		var matched string
		var success int
		var result sql.NullString
		if err := rows.Scan(&rec.ID, &rec.TableID, &rec.InputHash, &matched,
			&success, &rec.DurationMs, &result, &rec.Timestamp); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"scan execution: %s", err.Error()).WithCause(err)
		}
		if err := json.Unmarshal([]byte(matched), &rec.MatchedRules); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"unmarshal matched rules: %s", err.Error()).WithCause(err)
		}
		rec.Success = success != 0
		if result.Valid {
			rec.Result = json.RawMessage(result.String)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore,
			"iterate executions: %s", err.Error()).WithCause(err)
	}
	return out, nil
}

// Close closes the database.
func (l *LibSQLLog) Close() error { return l.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ DecisionLog = (*LibSQLLog)(nil)
