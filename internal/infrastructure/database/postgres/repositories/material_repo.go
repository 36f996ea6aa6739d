package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

const materialColumns = `id, session_id, row_number, commodity, sub_category, description,
	brand, item_code, plant, region, cluster, enriched_description, final_search_term,
	identifier, descriptive_name, synonyms, confidence, validation_status, validation_docs,
	quantity, spend_value, created_at, updated_at`

// MaterialRepository is the PostgreSQL implementation of material.Repository.
type MaterialRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewMaterialRepository constructs a MaterialRepository.
func NewMaterialRepository(conn *postgres.Connection, log logging.Logger) *MaterialRepository {
	return &MaterialRepository{db: conn.DB(), logger: log.Named("material_repo")}
}

var _ material.Repository = (*MaterialRepository)(nil)

func scanMaterial(s scanner) (*material.MaterialRecord, error) {
	var rec material.MaterialRecord
	var docs []byte
	err := s.Scan(
		&rec.ID, &rec.SessionID, &rec.RowNumber, &rec.Commodity, &rec.SubCategory,
		&rec.Description, &rec.Brand, &rec.ItemCode, &rec.Plant, &rec.Region, &rec.Cluster,
		&rec.EnrichedDescription, &rec.FinalSearchTerm, &rec.Identifier, &rec.DescriptiveName,
		&rec.Synonyms, &rec.Confidence, &rec.ValidationStatus, &docs,
		&rec.Quantity, &rec.SpendValue, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &rec.ValidationDocs); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding validation_docs")
		}
	}
	return &rec, nil
}

func (r *MaterialRepository) insertOne(ctx context.Context, q queryExecutor, rec *material.MaterialRecord) error {
	if rec.ID == "" {
		rec.ID = common.NewID()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	docs, err := json.Marshal(rec.ValidationDocs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding validation_docs")
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO materials (`+materialColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		rec.ID, rec.SessionID, rec.RowNumber, rec.Commodity, rec.SubCategory, rec.Description,
		rec.Brand, rec.ItemCode, rec.Plant, rec.Region, rec.Cluster, rec.EnrichedDescription,
		rec.FinalSearchTerm, rec.Identifier, rec.DescriptiveName, rec.Synonyms, rec.Confidence,
		rec.ValidationStatus, docs, rec.Quantity, rec.SpendValue, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting material")
	}
	return r.writeParameters(ctx, q, rec.ID, rec.Parameters)
}

func (r *MaterialRepository) writeParameters(ctx context.Context, q queryExecutor, id common.ID, params []material.Parameter) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM material_parameters WHERE material_id = $1`, id); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "clearing material parameters")
	}
	for i, p := range params {
		_, err := q.ExecContext(ctx, `
			INSERT INTO material_parameters (material_id, name, value, position)
			VALUES ($1, $2, $3, $4)`, id, p.Name, p.Value, i)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting material parameter")
		}
	}
	return nil
}

// Create persists one record with its parameters.
func (r *MaterialRepository) Create(ctx context.Context, rec *material.MaterialRecord) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.insertOne(ctx, tx, rec)
	})
}

// CreateBatch persists several records atomically.
func (r *MaterialRepository) CreateBatch(ctx context.Context, recs []*material.MaterialRecord) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, rec := range recs {
			if err := r.insertOne(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites a record's mutable fields and its parameter set.
func (r *MaterialRepository) Update(ctx context.Context, rec *material.MaterialRecord) error {
	docs, err := json.Marshal(rec.ValidationDocs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding validation_docs")
	}
	rec.UpdatedAt = time.Now().UTC()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE materials SET
				commodity = $2, sub_category = $3, description = $4, brand = $5,
				item_code = $6, plant = $7, region = $8, cluster = $9,
				enriched_description = $10, final_search_term = $11, identifier = $12,
				descriptive_name = $13, synonyms = $14, confidence = $15,
				validation_status = $16, validation_docs = $17, quantity = $18,
				spend_value = $19, updated_at = $20
			WHERE id = $1`,
			rec.ID, rec.Commodity, rec.SubCategory, rec.Description, rec.Brand,
			rec.ItemCode, rec.Plant, rec.Region, rec.Cluster,
			rec.EnrichedDescription, rec.FinalSearchTerm, rec.Identifier,
			rec.DescriptiveName, rec.Synonyms, rec.Confidence,
			rec.ValidationStatus, docs, rec.Quantity, rec.SpendValue, rec.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating material")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeMaterialNotFound, "material "+string(rec.ID)+" not found")
		}
		return r.writeParameters(ctx, tx, rec.ID, rec.Parameters)
	})
}

// FindByID loads one record with its parameters.
func (r *MaterialRepository) FindByID(ctx context.Context, id common.ID) (*material.MaterialRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
	rec, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeMaterialNotFound, "material "+string(id)+" not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying material")
	}
	if err := r.loadParameters(ctx, []*material.MaterialRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByDescription returns the first record matching the raw description,
// preferring an exact brand match when brand is non-empty.
func (r *MaterialRepository) FindByDescription(ctx context.Context, description, brand string) (*material.MaterialRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+materialColumns+` FROM materials
		WHERE description = $1
		ORDER BY (brand = $2) DESC, row_number ASC
		LIMIT 1`, description, brand)
	rec, err := scanMaterial(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeMaterialNotFound, "no material with description "+description)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying material by description")
	}
	if err := r.loadParameters(ctx, []*material.MaterialRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records matching the filter, ordered by row number, with
// parameters attached.
func (r *MaterialRepository) List(ctx context.Context, f material.Filter) ([]*material.MaterialRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if f.SubCategory != "" && f.SubCategory != "All" {
		add("sub_category = $%d", f.SubCategory)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(description ILIKE $%d OR enriched_description ILIKE $%d OR final_search_term ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + materialColumns + ` FROM materials`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY row_number ASC, created_at ASC"
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.PageSize)
		if f.Page > 1 {
			query += fmt.Sprintf(" OFFSET %d", (f.Page-1)*f.PageSize)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing materials")
	}
	defer rows.Close()

	var recs []*material.MaterialRecord
	for rows.Next() {
		rec, err := scanMaterial(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning material")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterating materials")
	}
	if err := r.loadParameters(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// loadParameters attaches ordered parameters to the given records.
func (r *MaterialRepository) loadParameters(ctx context.Context, recs []*material.MaterialRecord) error {
	if len(recs) == 0 {
		return nil
	}
	byID := make(map[common.ID]*material.MaterialRecord, len(recs))
	placeholders := make([]string, len(recs))
	args := make([]interface{}, len(recs))
	for i, rec := range recs {
		byID[rec.ID] = rec
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec.ID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT material_id, name, value FROM material_parameters
		WHERE material_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY material_id, position`, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "loading material parameters")
	}
	defer rows.Close()

	for rows.Next() {
		var id common.ID
		var p material.Parameter
		if err := rows.Scan(&id, &p.Name, &p.Value); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning material parameter")
		}
		if rec := byID[id]; rec != nil {
			rec.Parameters = append(rec.Parameters, p)
		}
	}
	return rows.Err()
}

// ListSubCategories returns the distinct sub-categories, sorted.
func (r *MaterialRepository) ListSubCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT sub_category FROM materials
		WHERE sub_category <> '' ORDER BY sub_category`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing sub-categories")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning sub-category")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListUnenrichedDescriptions returns distinct raw descriptions whose records
// have no composed enriched description yet.
func (r *MaterialRepository) ListUnenrichedDescriptions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT description FROM materials
		WHERE description <> ''
		  AND enriched_description NOT LIKE '%\_cas\_%' ESCAPE '\'
		ORDER BY description`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing unenriched descriptions")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning description")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateEnrichment applies a composed enriched description and identifier to
// every record sharing the raw description.
func (r *MaterialRepository) UpdateEnrichment(ctx context.Context, description, enriched, identifier string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE materials
		SET enriched_description = $2, identifier = $3, updated_at = $4
		WHERE description = $1`,
		description, enriched, identifier, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "updating enrichment")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ReplaceParameters rewrites one record's parameter set.
func (r *MaterialRepository) ReplaceParameters(ctx context.Context, id common.ID, params []material.Parameter) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return r.writeParameters(ctx, tx, id, params)
	})
}

// DeleteSession removes every record of one ingestion session; parameters go
// with them via ON DELETE CASCADE.
func (r *MaterialRepository) DeleteSession(ctx context.Context, session common.SessionID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE session_id = $1`, session)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "deleting session materials")
	}
	return nil
}
