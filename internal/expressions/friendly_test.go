package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFriendlyEngine(t *testing.T) {
	e := NewFriendlyEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "friendly", e.Name())
}

// --- Interface compliance ---

func TestFriendlyEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*FriendlyEngine)(nil)
}

// --- Literals ---

func TestFriendly_Literals(t *testing.T) {
	e := NewFriendlyEngine()

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{"integer", "42", float64(42)},
		{"float", "0.35", 0.35},
		{"negative", "-7", float64(-7)},
		{"double quoted string", `"large"`, "large"},
		{"single quoted string", `'medium'`, "medium"},
		{"boolean true", "true", true},
		{"boolean false", "false", false},
		{"boolean case-insensitive", "TRUE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expression, map[string]any{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

// --- Binding lookup ---

func TestFriendly_BindingLookup(t *testing.T) {
	e := NewFriendlyEngine()
	bindings := map[string]any{
		"company_size": "large",
		"company": map[string]any{
			"profile": map[string]any{"sector": "energy"},
		},
	}

	t.Run("simple variable", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "company_size", bindings)
		require.NoError(t, err)
		assert.Equal(t, "large", out)
	})

	t.Run("dotted path", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "company.profile.sector", bindings)
		require.NoError(t, err)
		assert.Equal(t, "energy", out)
	})

	t.Run("missing variable is nil", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "unknown", bindings)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("missing path segment is nil", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "company.missing.sector", bindings)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("non-mapping intermediate is nil", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "company_size.sector", bindings)
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}

// --- Comparisons ---

func TestFriendly_Comparisons(t *testing.T) {
	e := NewFriendlyEngine()
	bindings := map[string]any{
		"disclosure_score": 0.1,
		"company_size":     "large",
		"employees":        250,
	}

	tests := []struct {
		name       string
		expression string
		want       any
	}{
		{"less than true", "disclosure_score < 0.3", true},
		{"less than false", "disclosure_score < 0.05", false},
		{"greater or equal", "disclosure_score >= 0.1", true},
		{"less or equal not missplit", "employees <= 250", true},
		{"equality numeric", "employees == 250", true},
		{"inequality", "employees != 300", true},
		{"string equality case-insensitive", `company_size == "LARGE"`, true},
		{"string inequality", `company_size != "small"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expression, bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

// --- Ranges and lists ---

func TestFriendly_Range(t *testing.T) {
	e := NewFriendlyEngine()

	out, err := e.Evaluate(context.Background(), "0.3..0.7", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "[0.3..0.7]", out)
}

func TestFriendly_RangeWithVariables(t *testing.T) {
	e := NewFriendlyEngine()

	out, err := e.Evaluate(context.Background(), "low..high", map[string]any{
		"low": 1.0, "high": 5.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "[1..5]", out)
}

func TestFriendly_List(t *testing.T) {
	e := NewFriendlyEngine()

	out, err := e.Evaluate(context.Background(), `"small", "medium", "large"`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []any{"small", "medium", "large"}, out)
}

func TestFriendly_ListResolvesItemsIndependently(t *testing.T) {
	e := NewFriendlyEngine()

	out, err := e.Evaluate(context.Background(), `score, 10, "x"`, map[string]any{"score": 3.5})
	require.NoError(t, err)
	assert.Equal(t, []any{3.5, float64(10), "x"}, out)
}

// --- Errors ---

func TestFriendly_Malformed(t *testing.T) {
	e := NewFriendlyEngine()

	tests := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"unterminated string", `"large`},
		{"dangling operator", "score <"},
		{"lone operator", "=="},
		{"trailing comma", "a, b,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.expression, map[string]any{})
			assert.Error(t, err)
		})
	}
}

// --- Compile cache ---

func TestFriendly_CacheReuse(t *testing.T) {
	e := NewFriendlyEngine()

	_, err := e.Evaluate(context.Background(), "a < 3", map[string]any{"a": 1})
	require.NoError(t, err)

	e.mu.RLock()
	_, cached := e.cache["a < 3"]
	e.mu.RUnlock()
	assert.True(t, cached)
}

func TestFriendly_ConcurrentEvaluation(t *testing.T) {
	e := NewFriendlyEngine()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), "score < 0.5", map[string]any{"score": 0.2})
			assert.NoError(t, err)
			assert.Equal(t, true, out)
		}(i)
	}
	wg.Wait()
}
