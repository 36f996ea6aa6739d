package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/chemlens/chemlens/internal/domain/hierarchy"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// OverrideRepository is the PostgreSQL implementation of
// hierarchy.OverrideRepository.  One row per relocated node id.
type OverrideRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewOverrideRepository constructs an OverrideRepository.
func NewOverrideRepository(conn *postgres.Connection, log logging.Logger) *OverrideRepository {
	return &OverrideRepository{db: conn.DB(), logger: log.Named("override_repo")}
}

var _ hierarchy.OverrideRepository = (*OverrideRepository)(nil)

func upsertOverride(ctx context.Context, q queryExecutor, ov *hierarchy.Override) error {
	if ov.NodeID == "" || ov.TargetParentID == "" {
		return errors.New(errors.ErrCodeValidation, "override requires node_id and target_parent_id")
	}
	if ov.ID == "" {
		ov.ID = common.NewID()
	}
	now := time.Now().UTC()
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = now
	}
	ov.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO node_overrides (id, node_id, target_parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node_id) DO UPDATE SET
			target_parent_id = EXCLUDED.target_parent_id,
			updated_at       = EXCLUDED.updated_at`,
		ov.ID, ov.NodeID, ov.TargetParentID, ov.CreatedAt, ov.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "upserting node override")
	}
	return nil
}

// Upsert stores one override; the latest write for a node id wins.
func (r *OverrideRepository) Upsert(ctx context.Context, ov *hierarchy.Override) error {
	return upsertOverride(ctx, r.db, ov)
}

// UpsertBatch stores a whole layout snapshot atomically.
func (r *OverrideRepository) UpsertBatch(ctx context.Context, ovs []*hierarchy.Override) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, ov := range ovs {
			if err := upsertOverride(ctx, tx, ov); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns all overrides in creation order.
func (r *OverrideRepository) List(ctx context.Context) ([]*hierarchy.Override, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, node_id, target_parent_id, created_at, updated_at
		FROM node_overrides ORDER BY created_at, node_id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing node overrides")
	}
	defer rows.Close()

	var out []*hierarchy.Override
	for rows.Next() {
		var ov hierarchy.Override
		if err := rows.Scan(&ov.ID, &ov.NodeID, &ov.TargetParentID, &ov.CreatedAt, &ov.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning node override")
		}
		out = append(out, &ov)
	}
	return out, rows.Err()
}

// DeleteByNodeID removes the override for one node; a missing row is not an
// error, resetting an unmoved node is a no-op.
func (r *OverrideRepository) DeleteByNodeID(ctx context.Context, nodeID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM node_overrides WHERE node_id = $1`, nodeID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "deleting node override")
	}
	return nil
}
