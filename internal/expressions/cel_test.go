package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCELEngine(t *testing.T) {
	e := NewCELEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "cel", e.Name())
}

func TestCELEngine_Evaluate(t *testing.T) {
	e := NewCELEngine()
	bindings := map[string]any{
		"disclosure_score": 0.1,
		"company_size":     "large",
	}

	t.Run("comparison", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "disclosure_score < 0.3", bindings)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("string equality", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), `company_size == "large"`, bindings)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})

	t.Run("ternary", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), `disclosure_score < 0.3 ? "high" : "low"`, bindings)
		require.NoError(t, err)
		assert.Equal(t, "high", out)
	})

	t.Run("empty expression", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "", bindings)
		assert.Error(t, err)
	})

	t.Run("undeclared variable is a compile error", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), "not_an_input > 1", bindings)
		assert.Error(t, err)
	})
}

// The declared environment depends on the binding keys, so the same expression
// evaluated with different key sets must compile separately.
func TestCELEngine_CacheKeyIncludesBindingKeys(t *testing.T) {
	e := NewCELEngine()

	out, err := e.Evaluate(context.Background(), "x > 1", map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), "x > 1", map[string]any{"x": 5, "y": 0})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	e.mu.RLock()
	size := len(e.cache)
	e.mu.RUnlock()
	assert.Equal(t, 2, size)
}
