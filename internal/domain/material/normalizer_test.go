package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"grade and concentration noise", "USP GLYCERINE 99.5%", "GLYCERINE"},
		{"code prefix", "RM- CITRIC ACID ANHYDROUS", "CITRIC ACID"},
		{"two-part code prefix", "C1 - A - SODIUM BENZOATE", "SODIUM BENZOATE"},
		{"parenthetical aside", "LACTIC ACID (88% FOOD GRADE)", "LACTIC ACID"},
		{"concentration range", "CAUSTIC SODA 30-40% SOLUTION", "CAUSTIC SODA"},
		{"split on comma", "XANTHAN GUM, 80 MESH, DRUM", "XANTHAN GUM"},
		{"split on slash", "SORBITOL/MALTITOL BLEND", "SORBITOL"},
		{"lot code token", "TITANIUM DIOXIDE R902", "TITANIUM DIOXIDE"},
		{"stray single char kept only if first", "X", "X"},
		{"stray single char dropped", "STEARIC ACID X", "STEARIC ACID"},
		{"noise vocabulary", "BULK TECHNICAL CITRIC ACID MONOHYDRATE", "CITRIC ACID"},
		{"empty", "", ""},
		{"nan literal", "nan", ""},
		{"whitespace only", "   ", ""},
		{"strips to nothing", "USP 99% BULK", ""},
		{"trailing punctuation", "GLYCERINE *-., ", "GLYCERINE"},
		{"lowercase input uppercased", "citric acid usp", "CITRIC ACID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"USP GLYCERINE 99.5%",
		"RM- CITRIC ACID ANHYDROUS",
		"LACTIC ACID (88% FOOD GRADE)",
		"XANTHAN GUM, 80 MESH",
		"POLYGLYCEROL POLYRICINOLEATE",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_StepOrder(t *testing.T) {
	// Percentage stripping must run before delimiter split so that a
	// concentration before the comma does not shadow the material name.
	assert.Equal(t, "GLYCERINE", Normalize("GLYCERINE 99.5%, REFINED"))

	// Noise removal must run after delimiter split: noise after the first
	// comma never reaches the vocabulary pass.
	assert.Equal(t, "SODIUM CHLORIDE", Normalize("SODIUM CHLORIDE, USP GRADE"))
}

func TestUsableTerm(t *testing.T) {
	assert.True(t, UsableTerm("GLYCERINE"))
	assert.True(t, UsableTerm("citric acid"))
	assert.False(t, UsableTerm(""))
	assert.False(t, UsableTerm("   "))
	assert.False(t, UsableTerm("EXTRACT"))
	assert.False(t, UsableTerm("oil"))
	assert.False(t, UsableTerm("NaN"))
}

func TestSplitBrands(t *testing.T) {
	assert.Equal(t, []string{"Acme", "Globex"}, RawItem{Brands: "Acme, Globex"}.SplitBrands())
	assert.Equal(t, []string{"Acme"}, RawItem{Brands: " Acme "}.SplitBrands())
	assert.Equal(t, []string{"N/A"}, RawItem{Brands: ""}.SplitBrands())
	assert.Equal(t, []string{"N/A"}, RawItem{Brands: "N/A"}.SplitBrands())
	assert.Equal(t, []string{"N/A"}, RawItem{Brands: " , ,"}.SplitBrands())
}
