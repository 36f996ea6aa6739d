package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// RuleRepository is the PostgreSQL implementation of rule.Repository.  Order
// lists and bucket rules are stored as JSONB, one row per sub-category.
type RuleRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewRuleRepository constructs a RuleRepository.
func NewRuleRepository(conn *postgres.Connection, log logging.Logger) *RuleRepository {
	return &RuleRepository{db: conn.DB(), logger: log.Named("rule_repo")}
}

var _ rule.Repository = (*RuleRepository)(nil)

// Upsert stores a rule, replacing any existing rule for the same sub-category.
func (r *RuleRepository) Upsert(ctx context.Context, cr *rule.CategoryRule) error {
	if err := cr.Validate(); err != nil {
		return err
	}
	if cr.ID == "" {
		cr.ID = common.NewID()
	}
	now := time.Now().UTC()
	if cr.CreatedAt.IsZero() {
		cr.CreatedAt = now
	}
	cr.UpdatedAt = now

	paramOrder, err := json.Marshal(cr.ParameterOrder)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding parameter_order")
	}
	buckets, err := json.Marshal(cr.BucketRules)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding bucket_rules")
	}
	hierarchy, err := json.Marshal(cr.HierarchyOrder)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding hierarchy_order")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO category_rules
			(id, sub_category, identifier_name, parameter_order, bucket_rules, hierarchy_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sub_category) DO UPDATE SET
			identifier_name = EXCLUDED.identifier_name,
			parameter_order = EXCLUDED.parameter_order,
			bucket_rules    = EXCLUDED.bucket_rules,
			hierarchy_order = EXCLUDED.hierarchy_order,
			updated_at      = EXCLUDED.updated_at`,
		cr.ID, cr.SubCategory, cr.IdentifierName, paramOrder, buckets, hierarchy,
		cr.CreatedAt, cr.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "upserting category rule")
	}
	return nil
}

func scanRule(s scanner) (*rule.CategoryRule, error) {
	var cr rule.CategoryRule
	var paramOrder, buckets, hierarchy []byte
	err := s.Scan(&cr.ID, &cr.SubCategory, &cr.IdentifierName,
		&paramOrder, &buckets, &hierarchy, &cr.CreatedAt, &cr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(paramOrder, &cr.ParameterOrder); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding parameter_order")
	}
	if err := json.Unmarshal(buckets, &cr.BucketRules); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding bucket_rules")
	}
	if err := json.Unmarshal(hierarchy, &cr.HierarchyOrder); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding hierarchy_order")
	}
	return &cr, nil
}

// FindBySubCategory returns the stored rule for one sub-category.
func (r *RuleRepository) FindBySubCategory(ctx context.Context, subCategory string) (*rule.CategoryRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sub_category, identifier_name, parameter_order, bucket_rules, hierarchy_order, created_at, updated_at
		FROM category_rules WHERE sub_category = $1`, subCategory)
	cr, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeRuleNotFound, "no rule for sub-category "+subCategory)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying category rule")
	}
	return cr, nil
}

// List returns all stored rules ordered by sub-category.
func (r *RuleRepository) List(ctx context.Context) ([]*rule.CategoryRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sub_category, identifier_name, parameter_order, bucket_rules, hierarchy_order, created_at, updated_at
		FROM category_rules ORDER BY sub_category`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing category rules")
	}
	defer rows.Close()

	var out []*rule.CategoryRule
	for rows.Next() {
		cr, err := scanRule(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning category rule")
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// Delete removes one rule by id.
func (r *RuleRepository) Delete(ctx context.Context, id common.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM category_rules WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "deleting category rule")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeRuleNotFound, "rule "+string(id)+" not found")
	}
	return nil
}
