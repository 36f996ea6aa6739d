// Package rule defines per-category configuration: which parameters shape the
// cluster hierarchy, how numeric values are bucketed into labelled ranges, and
// the ordering of structural levels above the parameter nodes.
package rule

import (
	"strings"

	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// Built-in defaults applied when a sub-category has no stored rule, or when a
// stored rule leaves a field empty.
var (
	DefaultParameterOrder = []string{"Grade", "Purity", "Color"}
	DefaultHierarchyOrder = []string{"Region", "Identifier", "Factory"}
)

// DefaultIdentifierName is the registry identifier field extracted during
// enrichment when a rule does not name one.
const DefaultIdentifierName = "CAS"

// Structural hierarchy levels understood by the tree builder.  Unknown level
// names in a stored rule are skipped, not rejected, so older configurations
// keep working.
const (
	LevelRegion     = "Region"
	LevelBrand      = "Brand"
	LevelFactory    = "Factory"
	LevelIdentifier = "Identifier"
	LevelCAS        = "CAS" // legacy alias for LevelIdentifier
)

// Bucket rule operators.
const (
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpRange        = "range" // [Min, Max)
)

// BucketRule maps a numeric value range to a discrete label.  Rules are
// evaluated in order; the first match wins.
type BucketRule struct {
	Label    string  `json:"label"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value,omitempty"` // threshold for comparison operators
	Min      float64 `json:"min,omitempty"`   // inclusive lower bound for OpRange
	Max      float64 `json:"max,omitempty"`   // exclusive upper bound for OpRange
}

// Validate checks that the rule's operator is known and its bounds coherent.
func (b BucketRule) Validate() error {
	switch b.Operator {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return nil
	case OpRange:
		if b.Min >= b.Max {
			return errors.New(errors.ErrCodeBucketRuleInvalid, "range rule requires min < max")
		}
		return nil
	default:
		return errors.New(errors.ErrCodeBucketRuleInvalid, "unknown bucket operator "+b.Operator)
	}
}

// CategoryRule configures resolution enrichment and hierarchy construction
// for one sub-category.  At most one rule exists per sub-category.
type CategoryRule struct {
	common.BaseEntity

	SubCategory    string       `json:"sub_category"`
	IdentifierName string       `json:"identifier_name"`
	ParameterOrder []string     `json:"parameter_order"`
	BucketRules    []BucketRule `json:"bucket_rules"`
	HierarchyOrder []string     `json:"hierarchy_order"`
}

// Validate checks the rule's structural integrity.
func (r *CategoryRule) Validate() error {
	if strings.TrimSpace(r.SubCategory) == "" {
		return errors.New(errors.ErrCodeRuleInvalid, "sub_category is required")
	}
	for _, b := range r.BucketRules {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ResolvedRule is a CategoryRule with all defaults applied, computed once per
// sub-category per tree build and never re-parsed per record.
type ResolvedRule struct {
	SubCategory    string
	IdentifierName string
	ParameterOrder []string
	BucketRules    []BucketRule
	HierarchyOrder []string
}

// Resolve applies built-in defaults to a possibly nil stored rule.
func Resolve(subCategory string, stored *CategoryRule) ResolvedRule {
	out := ResolvedRule{
		SubCategory:    subCategory,
		IdentifierName: DefaultIdentifierName,
		ParameterOrder: DefaultParameterOrder,
		HierarchyOrder: DefaultHierarchyOrder,
	}
	if stored == nil {
		return out
	}
	if strings.TrimSpace(stored.IdentifierName) != "" {
		out.IdentifierName = stored.IdentifierName
	}
	if len(stored.ParameterOrder) > 0 {
		out.ParameterOrder = stored.ParameterOrder
	}
	if len(stored.HierarchyOrder) > 0 {
		out.HierarchyOrder = stored.HierarchyOrder
	}
	out.BucketRules = stored.BucketRules
	return out
}
