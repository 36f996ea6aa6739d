package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikelyDescriptiveName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"inci acid", "CITRIC ACID", true},
		{"inci sulfate", "SODIUM LAURYL SULFATE", true},
		{"hyphenated", "COCO-GLUCOSIDE EXTRACT", true},
		{"registry number", "56-81-5", false},
		{"generic term", "EXTRACT", false},
		{"generic term lowercase", "oil", false},
		{"too short", "AA", false},
		{"too long", "A VERY LONG SYNONYM NAME THAT EXCEEDS THE SIXTY CHARACTER LIMIT AAAA", false},
		{"mostly lowercase", "Glycerol monostearate", false},
		{"uppercase but wrong suffix", "SODIUM CHLORIDE BLEND", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LikelyDescriptiveName(tt.in))
		})
	}
}

func TestDescriptiveNameFromSynonyms(t *testing.T) {
	syns := "56-81-5|Glycerol|GLYCERIN USP|STEARIC ACID|PALMITIC ACID"
	assert.Equal(t, "STEARIC ACID", DescriptiveNameFromSynonyms(syns))

	assert.Equal(t, ValueNA, DescriptiveNameFromSynonyms(""))
	assert.Equal(t, ValueNA, DescriptiveNameFromSynonyms(ValueNA))
	assert.Equal(t, ValueNA, DescriptiveNameFromSynonyms("56-81-5|Glycerol"))
}
