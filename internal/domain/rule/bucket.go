package rule

import (
	"fmt"
	"strconv"
	"strings"
)

// numericPrefix extracts the numeric portion of a parameter value such as
// "95%", "90-95%", or "~99.5 pct": the first '-'-separated token with every
// non-digit, non-dot character stripped.  Returns false when nothing numeric
// remains.
func numericPrefix(val string) (float64, bool) {
	first := val
	if i := strings.IndexByte(first, '-'); i >= 0 {
		first = first[:i]
	}
	var sb strings.Builder
	for _, c := range first {
		if (c >= '0' && c <= '9') || c == '.' {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ApplyBuckets maps a raw parameter value to its bucket label by evaluating
// the rules in order against the value's numeric prefix.  The first matching
// rule wins.  When no rule matches, or the value has no numeric prefix, the
// raw value passes through unchanged.  A rule whose label is the generic word
// "purity" gets a generated label describing its bound instead.
func ApplyBuckets(val string, rules []BucketRule) string {
	v, ok := numericPrefix(val)
	if !ok {
		return val
	}

	for _, r := range rules {
		matched := false
		switch r.Operator {
		case OpLess:
			matched = v < r.Value
		case OpLessEqual:
			matched = v <= r.Value
		case OpGreater:
			matched = v > r.Value
		case OpGreaterEqual:
			matched = v >= r.Value
		case OpRange:
			matched = r.Min <= v && v < r.Max
		}
		if !matched {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(r.Label), "purity") {
			if r.Operator == OpRange {
				return fmt.Sprintf("%s - %s", formatThreshold(r.Min), formatThreshold(r.Max))
			}
			return fmt.Sprintf("%s %s", r.Operator, formatThreshold(r.Value))
		}
		return r.Label
	}
	return val
}
