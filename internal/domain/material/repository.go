package material

import (
	"context"

	"github.com/chemlens/chemlens/pkg/types/common"
)

// Filter narrows repository listings.  Zero values mean "no constraint".
type Filter struct {
	SessionID   common.SessionID
	SubCategory string
	// Search matches case-insensitively against description, enriched
	// description, and final search term.
	Search string
	common.Pagination
}

// Repository is the persistence contract for MaterialRecords.  Implementations
// live in the infrastructure layer; the domain and application layers depend
// only on this interface.
type Repository interface {
	Create(ctx context.Context, rec *MaterialRecord) error
	CreateBatch(ctx context.Context, recs []*MaterialRecord) error
	Update(ctx context.Context, rec *MaterialRecord) error
	FindByID(ctx context.Context, id common.ID) (*MaterialRecord, error)

	// FindByDescription returns the first record with the exact raw
	// description, preferring a brand match when brand is non-empty.
	FindByDescription(ctx context.Context, description, brand string) (*MaterialRecord, error)

	List(ctx context.Context, f Filter) ([]*MaterialRecord, error)

	// ListSubCategories returns the distinct sub-categories present, sorted.
	ListSubCategories(ctx context.Context) ([]string, error)

	// ListUnenrichedDescriptions returns distinct raw descriptions whose
	// records still lack a composed enriched description, for background
	// enrichment runs.
	ListUnenrichedDescriptions(ctx context.Context) ([]string, error)

	// UpdateEnrichment applies a newly composed enriched description and
	// identifier to every record sharing the given raw description.
	UpdateEnrichment(ctx context.Context, description, enriched, identifier string) (int64, error)

	// ReplaceParameters rewrites the full parameter set of one record.
	ReplaceParameters(ctx context.Context, id common.ID, params []Parameter) error

	// DeleteSession removes all records (and their parameters) belonging to
	// one ingestion session; used when a session is re-ingested.
	DeleteSession(ctx context.Context, session common.SessionID) error
}
