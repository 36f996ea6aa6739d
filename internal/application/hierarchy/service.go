// Package hierarchy is the application service around the cluster tree: it
// assembles build snapshots from persistence, runs the domain builder, and
// owns the write paths for overrides and annotations.
package hierarchy

import (
	"context"
	"strings"
	"time"

	domain "github.com/chemlens/chemlens/internal/domain/hierarchy"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// Service exposes cluster tree reads and edits.
type Service interface {
	// BuildTree rebuilds the tree for one sub-category ("" or "All" for
	// everything).  Trees are derived data, rebuilt on every call.
	BuildTree(ctx context.Context, subCategory string) (*domain.Node, error)

	// SubCategories lists the sub-categories available for filtering.
	SubCategories(ctx context.Context) ([]string, error)

	// MoveNode records that a node now lives under a different parent.
	MoveNode(ctx context.Context, nodeID, targetParentID string) error

	// SyncLayout applies a whole batch of moves atomically (latest wins).
	SyncLayout(ctx context.Context, moves []Move) error

	// ResetNode removes a node's override, returning it to its computed spot.
	ResetNode(ctx context.Context, nodeID string) error

	CreateAnnotation(ctx context.Context, a *domain.Annotation) error
	// ClearAnnotations wipes every annotation; called when a session is
	// re-ingested (overrides persist, annotations do not).
	ClearAnnotations(ctx context.Context) error
	AnswerAnnotation(ctx context.Context, id common.ID, answer string) (*domain.Annotation, error)
	UpdateAnnotation(ctx context.Context, a *domain.Annotation) error
	DeleteAnnotation(ctx context.Context, id common.ID) error
	ListAnnotations(ctx context.Context, key domain.AnnotationKey) ([]*domain.Annotation, error)
}

// Move is one entry of a layout sync request.
type Move struct {
	NodeID         string `json:"node_id"`
	TargetParentID string `json:"target_parent_id"`
}

type service struct {
	builder     *domain.Builder
	materials   material.Repository
	rules       rule.Repository
	overrides   domain.OverrideRepository
	annotations domain.AnnotationRepository
	metrics     *prometheus.Metrics
	logger      logging.Logger
}

// NewService wires the cluster tree service.
func NewService(
	materials material.Repository,
	rules rule.Repository,
	overrides domain.OverrideRepository,
	annotations domain.AnnotationRepository,
	metrics *prometheus.Metrics,
	logger logging.Logger,
) Service {
	return &service{
		builder:     domain.NewBuilder(logger),
		materials:   materials,
		rules:       rules,
		overrides:   overrides,
		annotations: annotations,
		metrics:     metrics,
		logger:      logger.Named("cluster"),
	}
}

func (s *service) BuildTree(ctx context.Context, subCategory string) (*domain.Node, error) {
	started := time.Now()

	snap, err := s.snapshot(ctx)
	if err != nil {
		s.metrics.ObserveTreeBuild("error", 0, time.Since(started))
		return nil, err
	}

	root := s.builder.Build(*snap, subCategory)
	s.metrics.ObserveTreeBuild("ok", root.Size(), time.Since(started))
	return root, nil
}

// snapshot reads all build inputs once up front.
func (s *service) snapshot(ctx context.Context) (*domain.Snapshot, error) {
	materials, err := s.materials.List(ctx, material.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTreeBuildFailed, "loading materials")
	}

	stored, err := s.rules.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTreeBuildFailed, "loading rules")
	}
	rulesBySub := make(map[string]*rule.CategoryRule, len(stored))
	for _, r := range stored {
		rulesBySub[r.SubCategory] = r
	}

	overrides, err := s.overrides.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTreeBuildFailed, "loading overrides")
	}

	annotations, err := s.annotations.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTreeBuildFailed, "loading annotations")
	}

	return &domain.Snapshot{
		Materials:   materials,
		Rules:       rulesBySub,
		Overrides:   overrides,
		Annotations: annotations,
	}, nil
}

func (s *service) SubCategories(ctx context.Context) ([]string, error) {
	return s.materials.ListSubCategories(ctx)
}

func (s *service) MoveNode(ctx context.Context, nodeID, targetParentID string) error {
	if strings.TrimSpace(nodeID) == "" || strings.TrimSpace(targetParentID) == "" {
		return errors.New(errors.ErrCodeValidation, "node_id and target_parent_id are required")
	}
	if nodeID == domain.RootID {
		return errors.New(errors.ErrCodeValidation, "the root node cannot be moved")
	}
	err := s.overrides.Upsert(ctx, &domain.Override{NodeID: nodeID, TargetParentID: targetParentID})
	if err != nil {
		return err
	}
	s.logger.Info("cluster node moved",
		logging.String("node_id", nodeID),
		logging.String("target", targetParentID))
	return nil
}

func (s *service) SyncLayout(ctx context.Context, moves []Move) error {
	if len(moves) == 0 {
		return nil
	}
	ovs := make([]*domain.Override, 0, len(moves))
	for _, m := range moves {
		if strings.TrimSpace(m.NodeID) == "" || strings.TrimSpace(m.TargetParentID) == "" {
			return errors.New(errors.ErrCodeValidation, "every move needs node_id and target_parent_id")
		}
		if m.NodeID == domain.RootID {
			return errors.New(errors.ErrCodeValidation, "the root node cannot be moved")
		}
		ovs = append(ovs, &domain.Override{NodeID: m.NodeID, TargetParentID: m.TargetParentID})
	}
	if err := s.overrides.UpsertBatch(ctx, ovs); err != nil {
		return err
	}
	s.logger.Info("cluster layout synced", logging.Int("moves", len(ovs)))
	return nil
}

func (s *service) ResetNode(ctx context.Context, nodeID string) error {
	return s.overrides.DeleteByNodeID(ctx, nodeID)
}

func (s *service) CreateAnnotation(ctx context.Context, a *domain.Annotation) error {
	a.RecomputeOpen()
	return s.annotations.Create(ctx, a)
}

func (s *service) ClearAnnotations(ctx context.Context) error {
	return s.annotations.DeleteAll(ctx)
}

// AnswerAnnotation records the answer to an open question and closes it.
func (s *service) AnswerAnnotation(ctx context.Context, id common.ID, answer string) (*domain.Annotation, error) {
	a, err := s.annotations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Kind != domain.KindQA {
		return nil, errors.New(errors.ErrCodeAnnotationInvalid, "only questions can be answered")
	}
	a.Answer = answer
	if err := s.annotations.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) UpdateAnnotation(ctx context.Context, a *domain.Annotation) error {
	return s.annotations.Update(ctx, a)
}

func (s *service) DeleteAnnotation(ctx context.Context, id common.ID) error {
	return s.annotations.Delete(ctx, id)
}

func (s *service) ListAnnotations(ctx context.Context, key domain.AnnotationKey) ([]*domain.Annotation, error) {
	return s.annotations.ListByNode(ctx, key)
}
