// Package dmn is the public entry point of the decision-table engine: a
// registry of loaded tables, an execution-result cache and a programmatic
// table builder, delegating evaluation to the internal engine.
package dmn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rendis/dmn/internal/engine"
	"github.com/rendis/dmn/internal/expressions"
	"github.com/rendis/dmn/internal/loader"
	"github.com/rendis/dmn/internal/logging"
	"github.com/rendis/dmn/internal/store"
	"github.com/rendis/dmn/pkg/schema"
)

// Format re-exports the loader's definition formats for callers of LoadBytes.
type Format = loader.Format

const (
	FormatJSON = loader.FormatJSON
	FormatYAML = loader.FormatYAML
	FormatXML  = loader.FormatXML
)

// ManagerConfig holds configuration for the Manager.
type ManagerConfig struct {
	// CacheTTL bounds the lifetime of cached results. Zero disables expiry.
	CacheTTL time.Duration
	// JanitorSchedule is the cron spec for the cache eviction sweep.
	// Empty disables the janitor.
	JanitorSchedule string
	// Cache overrides the default in-memory result cache.
	Cache ResultCache
	// AuditLog, when set, receives one record per execution.
	AuditLog store.DecisionLog
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Engine overrides the engine defaults.
	Engine engine.Config
}

// DefaultManagerConfig returns the manager defaults: a 10 minute cache TTL
// swept every minute, no audit log.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CacheTTL:        10 * time.Minute,
		JanitorSchedule: "@every 1m",
		Engine:          engine.DefaultConfig(),
	}
}

// Manager is the registry of loaded tables plus the execution surface.
// All methods are safe for concurrent use: registration and cache writes
// interleave with lookups behind the manager's locks, while the tables
// themselves are immutable once registered.
type Manager struct {
	mu         sync.RWMutex
	containers map[string]*schema.DMNTable
	tables     map[string]*schema.DecisionTable
	tableOwner map[string]string // decision-table id → container id

	cache  ResultCache
	audit  store.DecisionLog
	engine *engine.Engine
	logger *slog.Logger
	cron   *cron.Cron
}

// NewManager creates a Manager from the given configuration.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(cfg.CacheTTL)
	}

	m := &Manager{
		containers: make(map[string]*schema.DMNTable),
		tables:     make(map[string]*schema.DecisionTable),
		tableOwner: make(map[string]string),
		cache:      cache,
		audit:      cfg.AuditLog,
		engine:     engine.New(expressions.NewEvaluator(logger), logger, cfg.Engine),
		logger:     logger,
	}

	if cfg.JanitorSchedule != "" {
		m.cron = cron.New()
		_, err := m.cron.AddFunc(cfg.JanitorSchedule, func() {
			if purged := m.cache.PurgeExpired(); purged > 0 {
				logger.Debug("cache janitor purged entries", slog.Int("purged", purged))
			}
		})
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"invalid janitor schedule %q: %s", cfg.JanitorSchedule, err.Error()).WithCause(err)
		}
		m.cron.Start()
	}

	return m, nil
}

// Close stops the cache janitor and closes the audit log if one is attached.
func (m *Manager) Close() error {
	if m.cron != nil {
		m.cron.Stop()
	}
	if m.audit != nil {
		return m.audit.Close()
	}
	return nil
}

// LoadFile parses a table definition file (format chosen by extension) and
// registers it. The validation result carries non-fatal structural issues;
// a table with validation errors is still registered and will fail at
// execution time.
func (m *Manager) LoadFile(path string) (*schema.DMNTable, *schema.ValidationResult, error) {
	d, vr, err := loader.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Register(d); err != nil {
		return nil, vr, err
	}
	return d, vr, nil
}

// LoadBytes parses a table definition from memory and registers it.
func (m *Manager) LoadBytes(data []byte, format Format) (*schema.DMNTable, *schema.ValidationResult, error) {
	d, vr, err := loader.Parse(data, format)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Register(d); err != nil {
		return nil, vr, err
	}
	return d, vr, nil
}

// Register adds a DMN container and flattens its decision tables into the
// per-table lookup. Re-registering a container id replaces it; a decision
// table id colliding with one from a different container is rejected.
func (m *Manager) Register(d *schema.DMNTable) error {
	if d == nil {
		return schema.NewError(schema.ErrCodeValidation, "dmn table is nil")
	}
	if d.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "dmn table id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range d.Tables {
		t := &d.Tables[i]
		owner, owned := m.tableOwner[t.ID]
		if owned && owner != d.ID {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"decision table id %q already registered by container %q", t.ID, owner)
		}
		if _, taken := m.tables[t.ID]; taken && !owned {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"decision table id %q already registered", t.ID)
		}
	}

	// Drop tables of a previously registered container with the same id.
	if prev, ok := m.containers[d.ID]; ok {
		for i := range prev.Tables {
			delete(m.tables, prev.Tables[i].ID)
			delete(m.tableOwner, prev.Tables[i].ID)
		}
	}

	m.containers[d.ID] = d
	for i := range d.Tables {
		m.tables[d.Tables[i].ID] = &d.Tables[i]
		m.tableOwner[d.Tables[i].ID] = d.ID
	}

	m.logger.Info("registered dmn table",
		slog.String("dmn_id", d.ID),
		slog.Int("decision_tables", len(d.Tables)))
	return nil
}

// RegisterDecisionTable registers a standalone decision table without a
// surrounding container.
func (m *Manager) RegisterDecisionTable(t *schema.DecisionTable) error {
	if t == nil {
		return schema.NewError(schema.ErrCodeValidation, "decision table is nil")
	}
	if t.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "decision table id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[t.ID]; ok {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"decision table id %q already registered", t.ID)
	}
	m.tables[t.ID] = t
	return nil
}

// Container returns a registered DMN container by id, or nil.
func (m *Manager) Container(id string) *schema.DMNTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.containers[id]
}

// Table returns a registered decision table by id, or nil.
func (m *Manager) Table(id string) *schema.DecisionTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[id]
}

// ListTables returns the ids of all registered decision tables.
func (m *Manager) ListTables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	return ids
}

// ExecuteDecisionTable evaluates a registered table against the input
// mapping. The result is memoized under the table id and a deterministic
// hash of the input when useCache is true; only successful executions are
// cached. Like the engine, this never returns an error: an unknown table id
// yields a result with Success=false and a NOT_FOUND error.
func (m *Manager) ExecuteDecisionTable(ctx context.Context, tableID string, input map[string]any, useCache bool) *schema.ExecutionResult {
	executionID := uuid.NewString()
	ctx = logging.WithIDs(ctx, tableID, executionID)
	log := logging.LogWith(ctx, m.logger)

	table := m.Table(tableID)
	if table == nil {
		result := &schema.ExecutionResult{TableID: tableID, MatchedRules: []string{}}
		result.AddError(schema.NewErrorf(schema.ErrCodeNotFound,
			"decision table %q is not registered", tableID))
		return result
	}

	key, keyErr := cacheKey(tableID, input)
	if useCache && keyErr == nil {
		if cached := m.cache.Get(key); cached != nil {
			log.DebugContext(ctx, "cache hit")
			hit := cloneResult(cached)
			hit.Metadata = map[string]any{"cached": true}
			return hit
		}
	}

	result := m.engine.Execute(ctx, table, input, nil)

	if m.audit != nil {
		m.appendAudit(ctx, executionID, key, result)
	}

	if useCache && keyErr == nil && result.Success {
		// The cache keeps its own copy: neither the caller holding this
		// result nor a later hit can mutate the memoized entry.
		m.cache.Set(key, cloneResult(result))
	}

	return result
}

// cloneResult detaches a result's mutable collections so cached entries and
// returned hits never share maps or slices.
func cloneResult(r *schema.ExecutionResult) *schema.ExecutionResult {
	out := *r
	out.Outputs = maps.Clone(r.Outputs)
	out.MatchedRules = slices.Clone(r.MatchedRules)
	out.Trace = slices.Clone(r.Trace)
	out.Errors = slices.Clone(r.Errors)
	out.Metadata = maps.Clone(r.Metadata)
	if r.OutputList != nil {
		out.OutputList = make([]map[string]any, len(r.OutputList))
		for i, item := range r.OutputList {
			out.OutputList[i] = maps.Clone(item)
		}
	}
	return &out
}

// appendAudit records one execution in the decision log. Audit failures are
// logged, never surfaced: the decision stands even if the trail write fails.
func (m *Manager) appendAudit(ctx context.Context, executionID, inputHash string, result *schema.ExecutionResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		m.logger.WarnContext(ctx, "encode execution for audit", slog.String("error", err.Error()))
		encoded = nil
	}

	rec := &store.ExecutionRecord{
		ID:           executionID,
		TableID:      result.TableID,
		InputHash:    inputHash,
		MatchedRules: result.MatchedRules,
		Success:      result.Success,
		DurationMs:   result.Duration.Milliseconds(),
		Result:       encoded,
	}
	if err := m.audit.AppendExecution(ctx, rec); err != nil {
		m.logger.WarnContext(ctx, "append execution to audit log", slog.String("error", err.Error()))
	}
}

// ClearCache drops every cached result.
func (m *Manager) ClearCache() {
	m.cache.Clear()
}

// cacheKey combines the table identity with a SHA-256 over the canonical
// JSON encoding of the input mapping. encoding/json sorts map keys, so the
// hash is deterministic for equal inputs.
func cacheKey(tableID string, input map[string]any) (string, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return fmt.Sprintf("%s:%s", tableID, hex.EncodeToString(sum[:])), nil
}
