package rule

import (
	"context"

	"github.com/chemlens/chemlens/pkg/types/common"
)

// Repository is the persistence contract for CategoryRules.
type Repository interface {
	// Upsert stores a rule, replacing any existing rule for the same
	// sub-category.
	Upsert(ctx context.Context, r *CategoryRule) error

	// FindBySubCategory returns the stored rule, or a not-found error when
	// the sub-category has no rule (callers then fall back to defaults).
	FindBySubCategory(ctx context.Context, subCategory string) (*CategoryRule, error)

	List(ctx context.Context) ([]*CategoryRule, error)

	Delete(ctx context.Context, id common.ID) error
}
