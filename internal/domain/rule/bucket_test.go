package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuckets(t *testing.T) {
	rules := []BucketRule{
		{Label: "Low", Operator: OpLess, Value: 90},
		{Label: "Mid", Operator: OpRange, Min: 90, Max: 99},
		{Label: "High", Operator: OpGreaterEqual, Value: 99},
	}

	tests := []struct {
		name string
		val  string
		want string
	}{
		{"below threshold", "85%", "Low"},
		{"range inclusive lower", "90%", "Mid"},
		{"range exclusive upper", "99%", "High"},
		{"dashed range uses first token", "90-95%", "Mid"},
		{"decimal", "99.5%", "High"},
		{"junk prefix stripped", "~95 pct", "Mid"},
		{"no numeric prefix passes through", "Unspecified", "Unspecified"},
		{"empty passes through", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyBuckets(tt.val, rules))
		})
	}
}

func TestApplyBuckets_FirstMatchWins(t *testing.T) {
	rules := []BucketRule{
		{Label: "First", Operator: OpLess, Value: 100},
		{Label: "Second", Operator: OpLess, Value: 100},
	}
	assert.Equal(t, "First", ApplyBuckets("50", rules))
}

func TestApplyBuckets_NoMatchReturnsRaw(t *testing.T) {
	rules := []BucketRule{{Label: "Low", Operator: OpLess, Value: 90}}
	assert.Equal(t, "95%", ApplyBuckets("95%", rules))
}

func TestApplyBuckets_GenericLabelReplaced(t *testing.T) {
	assert.Equal(t, "< 90", ApplyBuckets("85", []BucketRule{
		{Label: "purity", Operator: OpLess, Value: 90},
	}))
	assert.Equal(t, "90 - 95", ApplyBuckets("92", []BucketRule{
		{Label: "Purity", Operator: OpRange, Min: 90, Max: 95},
	}))
}

func TestBucketRule_Validate(t *testing.T) {
	assert.NoError(t, BucketRule{Label: "Low", Operator: OpLess, Value: 90}.Validate())
	assert.NoError(t, BucketRule{Label: "Mid", Operator: OpRange, Min: 1, Max: 2}.Validate())
	assert.Error(t, BucketRule{Label: "Bad", Operator: "~"}.Validate())
	assert.Error(t, BucketRule{Label: "Bad", Operator: OpRange, Min: 5, Max: 5}.Validate())
}

func TestResolve_Defaults(t *testing.T) {
	r := Resolve("Surfactants", nil)
	assert.Equal(t, "Surfactants", r.SubCategory)
	assert.Equal(t, DefaultIdentifierName, r.IdentifierName)
	assert.Equal(t, DefaultParameterOrder, r.ParameterOrder)
	assert.Equal(t, DefaultHierarchyOrder, r.HierarchyOrder)
	assert.Empty(t, r.BucketRules)
}

func TestResolve_StoredOverrides(t *testing.T) {
	stored := &CategoryRule{
		SubCategory:    "Surfactants",
		IdentifierName: "EC",
		ParameterOrder: []string{"Purity"},
		HierarchyOrder: []string{"Region", "Brand", "Identifier"},
		BucketRules:    []BucketRule{{Label: "Low", Operator: OpLess, Value: 90}},
	}
	r := Resolve("Surfactants", stored)
	assert.Equal(t, "EC", r.IdentifierName)
	assert.Equal(t, []string{"Purity"}, r.ParameterOrder)
	assert.Equal(t, []string{"Region", "Brand", "Identifier"}, r.HierarchyOrder)
	assert.Len(t, r.BucketRules, 1)
}

func TestResolve_PartialStoredKeepsDefaults(t *testing.T) {
	r := Resolve("Acids", &CategoryRule{SubCategory: "Acids"})
	assert.Equal(t, DefaultParameterOrder, r.ParameterOrder)
	assert.Equal(t, DefaultHierarchyOrder, r.HierarchyOrder)
	assert.Equal(t, DefaultIdentifierName, r.IdentifierName)
}
