package material

import (
	"regexp"
	"strings"
)

// Normalization is an ordered pipeline of pure substitution steps over an
// uppercased copy of the input.  Step order is significant and fixed:
// prefix-strip → parenthetical-strip → percentage-strip → split-on-delimiter
// → noise-word removal → digit-token removal → trim.  Each step is
// independently testable through normalizeSteps.

var (
	// codePrefixRe matches a short leading alphanumeric code such as
	// "RM-" or "C1-A-" that procurement systems prepend to descriptions.
	codePrefixRe = regexp.MustCompile(`^[A-Z0-9]{1,3}\s*-\s*([A-Z]\s*-)?`)

	// parenRe matches parenthetical asides.
	parenRe = regexp.MustCompile(`\(.*?\)`)

	// percentRe matches concentration expressions such as "99.5%", "30-40 %",
	// or "10/20%".
	percentRe = regexp.MustCompile(`\d+(\.\d+)?\s*(-|/)?\s*(\d+(\.\d+)?)?\s*%`)
)

// noiseWords is the fixed vocabulary of packaging, grade, and form tokens
// removed as whole words.  The list is matched case-insensitively because
// the input has already been uppercased.
var noiseWords = []string{
	"BULK", "ANHYDROUS", "NON-GMO", "COATED", "GRANULAR", "LIQUID", "POWDER", "PURE",
	"SOURCE", "HEAVY", "PERF", "TECH", "TECHNICAL", "BP", "USP", "FCC", "GRADE",
	"MESH", "EXTRACT", "OIL", "PEPTIDE", "GEL", "BUTTER", "WAX", "MONOHYDRATE",
	"DIHYDRATE", "CRYSTALLINE", "PHARMA", "BG", "LQ", "WD", "CH", "JP", "FR", "EP",
	"KOSHER", "NON-KOSHER", "COGNIS", "DRUM", "ESTER", "SOLUTION",
}

var noiseRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(noiseWords))
	for i, w := range noiseWords {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return res
}()

// normalizeStep is one named stage of the normalization pipeline.
type normalizeStep struct {
	name  string
	apply func(string) string
}

// normalizeSteps is the canonical ordered step table.  Normalize runs the
// steps in exactly this order; tests exercise individual steps by name.
var normalizeSteps = []normalizeStep{
	{"strip-code-prefix", func(s string) string {
		return codePrefixRe.ReplaceAllString(s, "")
	}},
	{"strip-parentheticals", func(s string) string {
		return parenRe.ReplaceAllString(s, "")
	}},
	{"strip-percentages", func(s string) string {
		return percentRe.ReplaceAllString(s, "")
	}},
	{"split-on-delimiter", func(s string) string {
		if i := strings.IndexAny(s, ",/"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}},
	{"remove-noise-words", func(s string) string {
		for _, re := range noiseRes {
			s = re.ReplaceAllString(s, "")
		}
		return s
	}},
	{"remove-code-tokens", func(s string) string {
		var kept []string
		for _, w := range strings.Fields(s) {
			// A token with digits and length >= 3 is a lot/spec code.
			if len(w) >= 3 && strings.IndexFunc(w, isDigit) >= 0 {
				continue
			}
			// Stray single characters are dropped once a real token exists.
			if len(w) == 1 && len(kept) > 0 {
				continue
			}
			kept = append(kept, w)
		}
		return strings.Join(kept, " ")
	}},
	{"trim-punctuation", func(s string) string {
		return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*-., "))
	}},
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Normalize reduces a raw procurement description to a canonical chemical
// search term.  It is deterministic, performs no I/O, and may return the
// empty string; callers must treat "" and "NAN" as not usable.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return ""
	}
	s := strings.ToUpper(trimmed)
	for _, step := range normalizeSteps {
		s = step.apply(s)
	}
	return s
}

// UsableTerm reports whether a candidate search term is worth sending to the
// registry: non-blank and not one of the degenerate tokens that match far too
// many registry entries to be meaningful.
func UsableTerm(term string) bool {
	switch strings.ToUpper(strings.TrimSpace(term)) {
	case "", "EXTRACT", "OIL", "NAN":
		return false
	}
	return true
}
