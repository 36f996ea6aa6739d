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

const annotationColumns = `id, node_type, node_identifier, annotation_type,
	content, question, answer, is_open, created_at, updated_at`

// AnnotationRepository is the PostgreSQL implementation of
// hierarchy.AnnotationRepository.
type AnnotationRepository struct {
	db     *sql.DB
	logger logging.Logger
}

// NewAnnotationRepository constructs an AnnotationRepository.
func NewAnnotationRepository(conn *postgres.Connection, log logging.Logger) *AnnotationRepository {
	return &AnnotationRepository{db: conn.DB(), logger: log.Named("annotation_repo")}
}

var _ hierarchy.AnnotationRepository = (*AnnotationRepository)(nil)

func validateAnnotation(a *hierarchy.Annotation) error {
	if a.NodeType == "" || a.NodeIdentifier == "" {
		return errors.New(errors.ErrCodeAnnotationInvalid, "annotation requires node_type and node_identifier")
	}
	switch a.Kind {
	case hierarchy.KindInfo:
		if a.Content == "" {
			return errors.New(errors.ErrCodeAnnotationInvalid, "info annotation requires content")
		}
	case hierarchy.KindQA:
		if a.Question == "" {
			return errors.New(errors.ErrCodeAnnotationInvalid, "qa annotation requires a question")
		}
	default:
		return errors.New(errors.ErrCodeAnnotationInvalid, "unknown annotation type "+a.Kind)
	}
	return nil
}

// Create persists a new annotation, recomputing its open flag first.
func (r *AnnotationRepository) Create(ctx context.Context, a *hierarchy.Annotation) error {
	if err := validateAnnotation(a); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = common.NewID()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.RecomputeOpen()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO annotations (`+annotationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.NodeType, a.NodeIdentifier, a.Kind,
		a.Content, a.Question, a.Answer, a.Open, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "inserting annotation")
	}
	return nil
}

// Update rewrites an annotation's mutable fields, recomputing its open flag.
func (r *AnnotationRepository) Update(ctx context.Context, a *hierarchy.Annotation) error {
	if err := validateAnnotation(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	a.RecomputeOpen()

	res, err := r.db.ExecContext(ctx, `
		UPDATE annotations SET
			node_type = $2, node_identifier = $3, annotation_type = $4,
			content = $5, question = $6, answer = $7, is_open = $8, updated_at = $9
		WHERE id = $1`,
		a.ID, a.NodeType, a.NodeIdentifier, a.Kind,
		a.Content, a.Question, a.Answer, a.Open, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "updating annotation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeNotFound, "annotation "+string(a.ID)+" not found")
	}
	return nil
}

func scanAnnotation(s scanner) (*hierarchy.Annotation, error) {
	var a hierarchy.Annotation
	err := s.Scan(&a.ID, &a.NodeType, &a.NodeIdentifier, &a.Kind,
		&a.Content, &a.Question, &a.Answer, &a.Open, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID loads one annotation.
func (r *AnnotationRepository) FindByID(ctx context.Context, id common.ID) (*hierarchy.Annotation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id = $1`, id)
	a, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeNotFound, "annotation "+string(id)+" not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "querying annotation")
	}
	return a, nil
}

func (r *AnnotationRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*hierarchy.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "listing annotations")
	}
	defer rows.Close()

	var out []*hierarchy.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scanning annotation")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByNode returns the annotations attached to one node identity, oldest
// first.
func (r *AnnotationRepository) ListByNode(ctx context.Context, key hierarchy.AnnotationKey) ([]*hierarchy.Annotation, error) {
	return r.queryMany(ctx, `
		SELECT `+annotationColumns+` FROM annotations
		WHERE node_type = $1 AND node_identifier = $2
		ORDER BY created_at`, key.NodeType, key.NodeIdentifier)
}

// ListAll returns every annotation, oldest first.
func (r *AnnotationRepository) ListAll(ctx context.Context) ([]*hierarchy.Annotation, error) {
	return r.queryMany(ctx, `SELECT `+annotationColumns+` FROM annotations ORDER BY created_at`)
}

// Delete removes one annotation.
func (r *AnnotationRepository) Delete(ctx context.Context, id common.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "deleting annotation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeNotFound, "annotation "+string(id)+" not found")
	}
	return nil
}

// DeleteAll clears the annotation table.
func (r *AnnotationRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM annotations`); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "clearing annotations")
	}
	return nil
}
