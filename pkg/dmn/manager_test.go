package dmn

import (
	"context"
	"testing"

	"github.com/rendis/dmn/internal/store"
	"github.com/rendis/dmn/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const riskDoc = `{
  "id": "esg_rules",
  "name": "ESG Rules",
  "decisionTables": [
    {
      "id": "dt_risk",
      "name": "Risk",
      "hitPolicy": "UNIQUE",
      "inputClauses": [
        {"id": "in_size", "expression": "company_size"},
        {"id": "in_disclosure", "expression": "disclosure_score"}
      ],
      "outputClauses": [
        {"id": "out_risk", "name": "risk_level"}
      ],
      "rules": [
        {
          "id": "rule_0",
          "inputEntries": {
            "in_size": "\"large\"",
            "in_disclosure": "disclosure_score < 0.3"
          },
          "outputEntries": {"out_risk": "high"}
        },
        {
          "id": "rule_1",
          "inputEntries": {
            "in_size": "\"small\"",
            "in_disclosure": "disclosure_score >= 0.7"
          },
          "outputEntries": {"out_risk": "low"}
        }
      ]
    }
  ]
}`

// testManager builds a manager without the background janitor so tests stay
// deterministic.
func testManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	cfg.JanitorSchedule = ""
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNewManager(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m, err := NewManager(DefaultManagerConfig())
		require.NoError(t, err)
		defer m.Close()
		assert.NotNil(t, m.cache)
		assert.NotNil(t, m.cron)
	})

	t.Run("invalid janitor schedule", func(t *testing.T) {
		cfg := DefaultManagerConfig()
		cfg.JanitorSchedule = "every now and then"
		_, err := NewManager(cfg)
		assert.Error(t, err)
	})
}

func TestManager_LoadBytes(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())

	container, vr, err := m.LoadBytes([]byte(riskDoc), FormatJSON)
	require.NoError(t, err)
	require.True(t, vr.Valid())
	assert.Equal(t, "esg_rules", container.ID)

	assert.NotNil(t, m.Container("esg_rules"))
	assert.NotNil(t, m.Table("dt_risk"))
	assert.Equal(t, []string{"dt_risk"}, m.ListTables())
}

func TestManager_Register(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())

	container := &schema.DMNTable{
		ID:     "c1",
		Tables: []schema.DecisionTable{{ID: "dt_a"}},
	}
	require.NoError(t, m.Register(container))

	t.Run("nil container", func(t *testing.T) {
		assert.Error(t, m.Register(nil))
	})

	t.Run("missing id", func(t *testing.T) {
		assert.Error(t, m.Register(&schema.DMNTable{}))
	})

	t.Run("replacing a container drops its old tables", func(t *testing.T) {
		replacement := &schema.DMNTable{
			ID:     "c1",
			Tables: []schema.DecisionTable{{ID: "dt_b"}},
		}
		require.NoError(t, m.Register(replacement))
		assert.Nil(t, m.Table("dt_a"))
		assert.NotNil(t, m.Table("dt_b"))
	})

	t.Run("table id owned by another container is rejected", func(t *testing.T) {
		err := m.Register(&schema.DMNTable{
			ID:     "c2",
			Tables: []schema.DecisionTable{{ID: "dt_b"}},
		})
		assert.Error(t, err)
	})

	t.Run("table id taken by a standalone table is rejected", func(t *testing.T) {
		require.NoError(t, m.RegisterDecisionTable(&schema.DecisionTable{ID: "dt_standalone"}))
		err := m.Register(&schema.DMNTable{
			ID:     "c3",
			Tables: []schema.DecisionTable{{ID: "dt_standalone"}},
		})
		assert.Error(t, err)
	})
}

func TestManager_RegisterDecisionTable(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())

	require.NoError(t, m.RegisterDecisionTable(&schema.DecisionTable{ID: "dt_x"}))
	assert.Error(t, m.RegisterDecisionTable(&schema.DecisionTable{ID: "dt_x"}))
	assert.Error(t, m.RegisterDecisionTable(nil))
	assert.Error(t, m.RegisterDecisionTable(&schema.DecisionTable{}))
}

func TestManager_ExecuteDecisionTable(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())
	_, _, err := m.LoadBytes([]byte(riskDoc), FormatJSON)
	require.NoError(t, err)

	input := map[string]any{
		"company_size":     "large",
		"disclosure_score": 0.1,
	}

	t.Run("executes a registered table", func(t *testing.T) {
		result := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, false)
		require.True(t, result.Success)
		assert.Equal(t, []string{"rule_0"}, result.MatchedRules)
		assert.Equal(t, "high", result.Outputs["risk_level"])
	})

	t.Run("unknown table id", func(t *testing.T) {
		result := m.ExecuteDecisionTable(context.Background(), "dt_ghost", input, false)
		require.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, schema.ErrCodeNotFound, result.Errors[0].Code)
	})
}

func TestManager_ExecuteDecisionTable_Cache(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())
	_, _, err := m.LoadBytes([]byte(riskDoc), FormatJSON)
	require.NoError(t, err)

	input := map[string]any{
		"company_size":     "large",
		"disclosure_score": 0.1,
	}

	first := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	require.True(t, first.Success)
	assert.Nil(t, first.Metadata)

	second := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	require.True(t, second.Success)
	assert.Equal(t, true, second.Metadata["cached"])
	assert.Equal(t, first.Outputs, second.Outputs)

	t.Run("different input misses", func(t *testing.T) {
		other := m.ExecuteDecisionTable(context.Background(), "dt_risk", map[string]any{
			"company_size":     "small",
			"disclosure_score": 0.9,
		}, true)
		require.True(t, other.Success)
		assert.Nil(t, other.Metadata)
	})

	t.Run("clear cache forgets", func(t *testing.T) {
		m.ClearCache()
		again := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
		require.True(t, again.Success)
		assert.Nil(t, again.Metadata)
	})

	t.Run("useCache false bypasses", func(t *testing.T) {
		bypass := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, false)
		require.True(t, bypass.Success)
		assert.Nil(t, bypass.Metadata)
	})
}

// Cached entries must be isolated: mutating a returned result, whether the
// original execution or a later hit, may not leak into subsequent hits.
func TestManager_CachedResultsAreIsolated(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())
	_, _, err := m.LoadBytes([]byte(riskDoc), FormatJSON)
	require.NoError(t, err)

	input := map[string]any{
		"company_size":     "large",
		"disclosure_score": 0.1,
	}

	first := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	require.True(t, first.Success)
	first.Outputs["risk_level"] = "tampered"
	first.MatchedRules[0] = "tampered"

	second := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	require.Equal(t, true, second.Metadata["cached"])
	assert.Equal(t, "high", second.Outputs["risk_level"])
	assert.Equal(t, []string{"rule_0"}, second.MatchedRules)
	second.Outputs["risk_level"] = "tampered again"

	third := m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	require.Equal(t, true, third.Metadata["cached"])
	assert.Equal(t, "high", third.Outputs["risk_level"])
}

// Failed executions never land in the cache.
func TestManager_FailedExecutionNotCached(t *testing.T) {
	m := testManager(t, DefaultManagerConfig())

	require.NoError(t, m.RegisterDecisionTable(&schema.DecisionTable{
		ID:        "dt_broken",
		HitPolicy: schema.HitPolicyUnique,
		InputClauses: []schema.InputClause{
			{ID: "in_a", Expression: "a"},
		},
		OutputClauses: []schema.OutputClause{
			{ID: "out_x", Name: "x"},
		},
		Rules: []schema.Rule{
			{ID: "r1", OutputEntries: map[string]any{"out_x": 1}},
			{ID: "r2", OutputEntries: map[string]any{"out_x": 2}},
		},
	}))

	input := map[string]any{"a": 1}
	first := m.ExecuteDecisionTable(context.Background(), "dt_broken", input, true)
	require.False(t, first.Success)

	second := m.ExecuteDecisionTable(context.Background(), "dt_broken", input, true)
	require.False(t, second.Success)
	assert.Nil(t, second.Metadata)
}

func TestManager_AuditLog(t *testing.T) {
	audit := store.NewMemoryLog()
	cfg := DefaultManagerConfig()
	cfg.AuditLog = audit
	m := testManager(t, cfg)

	_, _, err := m.LoadBytes([]byte(riskDoc), FormatJSON)
	require.NoError(t, err)

	input := map[string]any{
		"company_size":     "large",
		"disclosure_score": 0.1,
	}

	m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)
	// Cache hit short-circuits before the engine, so no second record.
	m.ExecuteDecisionTable(context.Background(), "dt_risk", input, true)

	recs, err := audit.ListExecutions(context.Background(), "dt_risk", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "dt_risk", recs[0].TableID)
	assert.Equal(t, []string{"rule_0"}, recs[0].MatchedRules)
	assert.True(t, recs[0].Success)
	assert.NotEmpty(t, recs[0].ID)
	assert.NotEmpty(t, recs[0].InputHash)
	assert.NotEmpty(t, recs[0].Result)
}

func TestCacheKey_Deterministic(t *testing.T) {
	a, err := cacheKey("dt_risk", map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	b, err := cacheKey("dt_risk", map[string]any{"y": "z", "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := cacheKey("dt_other", map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
