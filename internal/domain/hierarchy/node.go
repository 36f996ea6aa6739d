// Package hierarchy implements the cluster tree: entities for overrides and
// annotations, and the deterministic three-phase builder that turns material
// records plus per-category rules into a navigable tree.
package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/chemlens/chemlens/pkg/types/common"
)

// Node types appearing in a built tree.
const (
	TypeRoot       = "root"
	TypeRegion     = "region"
	TypeBrand      = "brand"
	TypeFactory    = "factory"
	TypeIdentifier = "cas"
	TypeGroup      = "cluster_group"
	TypeParam      = "cluster_param"
	TypeMaterial   = "material"
)

// Node is one vertex of a built cluster tree.  Trees are derived data:
// rebuilt on every read, never persisted or hand-edited.
type Node struct {
	// ID is the externally visible path-based id: parent id + "-" + LocalID.
	// Stable across rebuilds as long as local structure is unchanged.
	ID string `json:"id"`

	// LocalID is the level-local token, e.g. "region-EMEA" or "cas-56-81-5".
	LocalID string `json:"-"`

	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Identifier string `json:"identifier,omitempty"`

	// RecordID links a material leaf back to its MaterialRecord.
	RecordID common.ID `json:"db_id,omitempty"`

	// Count is the number of identical records folded into one leaf.
	Count int `json:"count,omitempty"`

	Children []*Node `json:"children"`

	Annotations []*Annotation `json:"annotations,omitempty"`
	HasOpenQA   bool          `json:"has_open_qa,omitempty"`
	Comment     string        `json:"comment,omitempty"`
}

// AddChild appends c to n's children.
func (n *Node) AddChild(c *Node) { n.Children = append(n.Children, c) }

// FindChildByName returns the first direct child with the given name, or nil.
func (n *Node) FindChildByName(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and every descendant in depth-first order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// Size returns the total number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	total := 0
	n.Walk(func(*Node) { total++ })
	return total
}

// Override is a persisted user correction relocating one computed tree node
// under a different parent.  Unique per NodeID; the latest write wins.
type Override struct {
	common.BaseEntity

	NodeID         string `json:"node_id"`
	TargetParentID string `json:"target_parent_id"`
}

// Annotation kinds.
const (
	KindInfo = "info"
	KindQA   = "qa"
)

// Annotation is a free-form note or question attached to a tree node by its
// stable identity, surviving rebuilds.
type Annotation struct {
	common.BaseEntity

	NodeType       string `json:"node_type"`
	NodeIdentifier string `json:"node_identifier"`
	Kind           string `json:"annotation_type"`

	Content  string `json:"content,omitempty"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`

	// Open is true iff Kind is qa and Answer is unset.  Recomputed on every
	// write via RecomputeOpen.
	Open bool `json:"is_open"`
}

// RecomputeOpen refreshes the Open flag from the current answer state.
func (a *Annotation) RecomputeOpen() {
	a.Open = a.Kind == KindQA && strings.TrimSpace(a.Answer) == ""
}

// Preview returns the short text shown as a node badge for this annotation.
func (a *Annotation) Preview() string {
	if a.Kind == KindQA {
		return fmt.Sprintf("Q: %s", a.Question)
	}
	return a.Content
}

// AnnotationKey identifies the node an annotation is attached to.
type AnnotationKey struct {
	NodeType       string
	NodeIdentifier string
}

// OverrideRepository is the persistence contract for node relocations.
type OverrideRepository interface {
	// Upsert stores an override, replacing any existing one for the same
	// node id.
	Upsert(ctx context.Context, ov *Override) error

	// UpsertBatch stores a whole layout snapshot in one transaction.
	UpsertBatch(ctx context.Context, ovs []*Override) error

	List(ctx context.Context) ([]*Override, error)

	DeleteByNodeID(ctx context.Context, nodeID string) error
}

// AnnotationRepository is the persistence contract for node annotations.
type AnnotationRepository interface {
	Create(ctx context.Context, a *Annotation) error
	Update(ctx context.Context, a *Annotation) error
	FindByID(ctx context.Context, id common.ID) (*Annotation, error)
	ListByNode(ctx context.Context, key AnnotationKey) ([]*Annotation, error)
	ListAll(ctx context.Context) ([]*Annotation, error)
	Delete(ctx context.Context, id common.ID) error
	DeleteAll(ctx context.Context) error
}
