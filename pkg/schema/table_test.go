package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHitPolicy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  HitPolicy
		ok    bool
	}{
		{"empty defaults to unique", "", HitPolicyUnique, true},
		{"uppercase", "FIRST", HitPolicyFirst, true},
		{"lowercase", "collect", HitPolicyCollect, true},
		{"mixed case", "Priority", HitPolicyPriority, true},
		{"space separated", "rule order", HitPolicyRuleOrder, true},
		{"underscore", "output_order", HitPolicyOutputOrder, true},
		{"padded", "  any  ", HitPolicyAny, true},
		{"unknown", "ALL", HitPolicy("ALL"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseHitPolicy(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}


func TestParseAggregator(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  BuiltinAggregator
		ok    bool
	}{
		{"empty means none", "", "", true},
		{"sum", "sum", AggregatorSum, true},
		{"count uppercase", "COUNT", AggregatorCount, true},
		{"min padded", " min ", AggregatorMin, true},
		{"max", "Max", AggregatorMax, true},
		{"list", "LIST", AggregatorList, true},
		{"unknown", "AVG", BuiltinAggregator("AVG"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAggregator(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExpressionLanguage_Valid(t *testing.T) {
	assert.True(t, LanguageFriendly.Valid())
	assert.True(t, LanguageExpr.Valid())
	assert.True(t, LanguageCEL.Valid())
	assert.True(t, LanguageJQ.Valid())
	assert.False(t, ExpressionLanguage("feel").Valid())
	assert.False(t, ExpressionLanguage("").Valid())
}

func TestDecisionTable_ClauseLookups(t *testing.T) {
	table := &DecisionTable{
		ID: "dt_1",
		InputClauses: []InputClause{
			{ID: "in_a", Expression: "a"},
			{ID: "in_b", Expression: "b", Language: LanguageCEL},
		},
		OutputClauses: []OutputClause{
			{ID: "out_x", Name: "x"},
		},
	}

	assert.Equal(t, "a", table.InputClause("in_a").Expression)
	assert.Nil(t, table.InputClause("missing"))
	assert.Equal(t, "x", table.OutputClause("out_x").Name)
	assert.Nil(t, table.OutputClause("missing"))
}

func TestDecisionTable_ClauseLanguage(t *testing.T) {
	table := &DecisionTable{
		InputClauses: []InputClause{
			{ID: "in_a"},
			{ID: "in_b", Language: LanguageJQ},
		},
	}

	t.Run("clause declaration wins", func(t *testing.T) {
		assert.Equal(t, LanguageJQ, table.ClauseLanguage(table.InputClause("in_b")))
	})

	t.Run("table default", func(t *testing.T) {
		table.Language = LanguageExpr
		assert.Equal(t, LanguageExpr, table.ClauseLanguage(table.InputClause("in_a")))
		table.Language = ""
	})

	t.Run("friendly fallback", func(t *testing.T) {
		assert.Equal(t, LanguageFriendly, table.ClauseLanguage(table.InputClause("in_a")))
		assert.Equal(t, LanguageFriendly, table.ClauseLanguage(nil))
	})
}

func TestDMNTable_Table(t *testing.T) {
	container := &DMNTable{
		ID: "model",
		Tables: []DecisionTable{
			{ID: "dt_1"},
			{ID: "dt_2"},
		},
	}

	assert.Equal(t, "dt_2", container.Table("dt_2").ID)
	assert.Nil(t, container.Table("dt_3"))
}
