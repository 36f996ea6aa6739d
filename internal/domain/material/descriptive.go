package material

import (
	"regexp"
	"strings"
)

// Descriptive names follow the INCI convention: short, mostly uppercase, and
// ending in a chemical family suffix.  The heuristics below pick such a name
// out of a registry synonym list; they are intentionally conservative since a
// wrong descriptive name is worse than none.

var registryNumberRe = regexp.MustCompile(`^\d+-\d+-\d+$`)

// genericTerms are synonym entries too vague to serve as a descriptive name.
var genericTerms = map[string]struct{}{
	"EXTRACT": {}, "OIL": {}, "POWDER": {}, "LIQUID": {}, "SOLUTION": {}, "MIXTURE": {},
}

// descriptiveSuffixes are the chemical family suffixes that INCI-style names
// end with.
var descriptiveSuffixes = []string{
	"ACID", "OXIDE", "EXTRACT", "OIL", "BUTTER", "WAX", "GLYCOL",
	"ALCOHOL", "ESTER", "SULFATE", "CHLORIDE", "NITRATE", "PHOSPHATE",
	"CARBONATE", "HYDROXIDE", "PEROXIDE", "BENZOATE", "PALMITATE",
	"STEARATE", "OLEATE", "ACETATE", "CITRATE",
}

// LikelyDescriptiveName reports whether a synonym looks like an INCI-style
// descriptive name: length 3-60, not a bare registry number, not a generic
// term, at least 70% uppercase (ignoring spaces and hyphens), and ending with
// a known chemical family suffix.
func LikelyDescriptiveName(name string) bool {
	if l := len(name); l < 3 || l > 60 {
		return false
	}
	if registryNumberRe.MatchString(name) {
		return false
	}
	upper := strings.ToUpper(name)
	if _, generic := genericTerms[strings.TrimSpace(upper)]; generic {
		return false
	}

	letters := len(strings.NewReplacer(" ", "", "-", "").Replace(name))
	if letters == 0 {
		return false
	}
	upperCount := 0
	for _, c := range name {
		if c >= 'A' && c <= 'Z' {
			upperCount++
		}
	}
	if float64(upperCount)/float64(letters) <= 0.7 {
		return false
	}

	for _, suffix := range descriptiveSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// DescriptiveNameFromSynonyms scans a "|"-joined registry synonym string for
// the first INCI-style entry.  Returns ValueNA when none qualifies.
func DescriptiveNameFromSynonyms(synonyms string) string {
	if synonyms == "" || synonyms == ValueNA {
		return ValueNA
	}
	for _, syn := range strings.Split(synonyms, "|") {
		syn = strings.TrimSpace(syn)
		if LikelyDescriptiveName(syn) {
			return syn
		}
	}
	return ValueNA
}
