package expressions

import (
	"context"
	"testing"

	"github.com/rendis/dmn/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestNewEvaluator(t *testing.T) {
	ev := NewEvaluator(nil)
	assert.NotNil(t, ev)
	assert.NotNil(t, ev.Engine(schema.LanguageFriendly))
	assert.NotNil(t, ev.Engine(schema.LanguageExpr))
	assert.NotNil(t, ev.Engine(schema.LanguageCEL))
	assert.NotNil(t, ev.Engine(schema.LanguageJQ))
}

func TestEvaluator_DispatchesByLanguage(t *testing.T) {
	ev := NewEvaluator(nil)
	bindings := map[string]any{"score": 0.2}

	tests := []struct {
		name       string
		language   schema.ExpressionLanguage
		expression string
		want       any
	}{
		{"friendly", schema.LanguageFriendly, "score < 0.5", true},
		{"expr", schema.LanguageExpr, "score * 10", float64(2)},
		{"cel", schema.LanguageCEL, "score >= 0.2", true},
		{"jq", schema.LanguageJQ, ".score", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ev.Evaluate(context.Background(), tt.expression, bindings, tt.language)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEvaluator_UnknownLanguageFallsBackToFriendly(t *testing.T) {
	ev := NewEvaluator(nil)

	out := ev.Evaluate(context.Background(), `"large"`, nil, schema.ExpressionLanguage("feel"))
	assert.Equal(t, "large", out)
}

// A malformed clause expression must degrade to nil, never abort evaluation.
func TestEvaluator_ErrorsDowngradeToNil(t *testing.T) {
	ev := NewEvaluator(nil)

	out := ev.Evaluate(context.Background(), "score <", map[string]any{"score": 1}, schema.LanguageFriendly)
	assert.Nil(t, out)

	out = ev.Evaluate(context.Background(), "((", map[string]any{}, schema.LanguageExpr)
	assert.Nil(t, out)
}
