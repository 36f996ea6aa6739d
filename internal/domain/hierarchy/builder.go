package hierarchy

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
)

// RootID is the fixed id of the tree root.
const RootID = "root"

// Snapshot is the immutable input to one tree build: the current persisted
// state read once up front.  The builder never touches storage itself, which
// keeps Build a pure function safe for concurrent readers.
type Snapshot struct {
	Materials   []*material.MaterialRecord
	Rules       map[string]*rule.CategoryRule // keyed by sub-category
	Overrides   []*Override
	Annotations []*Annotation
}

// skippedValues are parameter values that never produce a tree level.
var skippedValues = map[string]struct{}{
	"": {}, "nan": {}, "N/A": {}, "Unspecified": {},
}

// Builder constructs cluster trees from snapshots.  Stateless between calls.
type Builder struct {
	log logging.Logger
}

// NewBuilder returns a Builder logging through log.
func NewBuilder(log logging.Logger) *Builder {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Builder{log: log.Named("hierarchy")}
}

// arena tracks every node of the tree under construction with explicit
// indexes, so the override pass can locate and relocate nodes without
// searching a tree it is simultaneously mutating.
type arena struct {
	root   *Node
	index  map[string]*Node // id (skeleton or post-move alias) -> node
	parent map[*Node]*Node
}

func newArena(rootName string) *arena {
	root := &Node{ID: RootID, LocalID: RootID, Name: rootName, Type: TypeRoot, Children: []*Node{}}
	return &arena{
		root:   root,
		index:  map[string]*Node{RootID: root},
		parent: map[*Node]*Node{},
	}
}

// childByName returns the existing child of parent with the given name, or
// creates one with the supplied local token and type.
func (a *arena) childByName(parent *Node, name, localID, nodeType string) *Node {
	if existing := parent.FindChildByName(name); existing != nil {
		return existing
	}
	n := &Node{
		ID:       parent.ID + "-" + localID,
		LocalID:  localID,
		Name:     name,
		Type:     nodeType,
		Children: []*Node{},
	}
	parent.AddChild(n)
	a.index[n.ID] = n
	a.parent[n] = parent
	return n
}

// detach removes n from its current parent's child list.
func (a *arena) detach(n *Node) {
	p := a.parent[n]
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	delete(a.parent, n)
}

// attach appends n under parent and records a post-move id alias so that
// later overrides may reference the node by its new position.
func (a *arena) attach(n *Node, parent *Node) {
	parent.AddChild(n)
	a.parent[n] = parent
	a.index[parent.ID+"-"+n.LocalID] = n
}

// isWithin reports whether n lies inside sub's subtree (including sub itself).
func (a *arena) isWithin(n, sub *Node) bool {
	for cur := n; cur != nil; cur = a.parent[cur] {
		if cur == sub {
			return true
		}
	}
	return false
}

// Build constructs the cluster tree for a snapshot.  filterSubCategory narrows
// the tree to one sub-category; pass "" or "All" for everything.  Building
// twice from the same snapshot yields structurally identical trees.
func (b *Builder) Build(snap Snapshot, filterSubCategory string) *Node {
	label := filterSubCategory
	if label == "" {
		label = "All"
	}
	a := newArena(fmt.Sprintf("Material Clusters - %s", label))

	resolved := map[string]rule.ResolvedRule{}
	for _, mat := range snap.Materials {
		if filterSubCategory != "" && filterSubCategory != "All" && mat.SubCategory != filterSubCategory {
			continue
		}
		b.addRecord(a, mat, resolved, snap.Rules)
	}

	b.applyOverrides(a, snap.Overrides)
	b.decorate(a.root, annotationIndex(snap.Annotations))
	return a.root
}

// addRecord grows the skeleton with one material record: structural levels,
// parameter levels, then the material leaf.
func (b *Builder) addRecord(a *arena, mat *material.MaterialRecord, resolved map[string]rule.ResolvedRule, rules map[string]*rule.CategoryRule) {
	subCat := mat.SubCategory
	if subCat == "" {
		subCat = "Uncategorized"
	}
	cfg, ok := resolved[subCat]
	if !ok {
		cfg = rule.Resolve(subCat, rules[subCat])
		resolved[subCat] = cfg
	}

	current := a.root

	for _, level := range cfg.HierarchyOrder {
		switch level {
		case rule.LevelRegion:
			name := orUnknown(mat.Region, "Unknown Region")
			current = a.childByName(current, name, "region-"+name, TypeRegion)
		case rule.LevelBrand:
			name := orUnknown(mat.Brand, "Unknown Brand")
			current = a.childByName(current, name, "brand-"+name, TypeBrand)
		case rule.LevelFactory:
			name := orUnknown(mat.Plant, "Unknown Factory")
			current = a.childByName(current, name, "plant-"+name, TypeFactory)
		case rule.LevelIdentifier, rule.LevelCAS:
			val := "No CAS"
			if mat.Resolved() {
				val = mat.Identifier
			}
			current = a.childByName(current, "CAS: "+val, "cas-"+val, TypeIdentifier)
		default:
			// Unknown level names in stored rules are skipped.
		}
	}

	params := map[string]string{}
	for _, p := range mat.Parameters {
		params[strings.ToLower(strings.TrimSpace(p.Name))] = p.Value
	}

	for _, pName := range cfg.ParameterOrder {
		val, ok := params[strings.ToLower(strings.TrimSpace(pName))]
		if !ok {
			continue
		}
		if _, skip := skippedValues[val]; skip {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(pName), "purity") && len(cfg.BucketRules) > 0 {
			if grouped := rule.ApplyBuckets(val, cfg.BucketRules); grouped != val {
				// Bucket node for coarse grouping, exact value kept beneath
				// it for audit.
				current = a.childByName(current, fmt.Sprintf("%s: %s", pName, grouped),
					fmt.Sprintf("grp-%s-%s", pName, grouped), TypeGroup)
				current = a.childByName(current, fmt.Sprintf("%s: %s", pName, val),
					"raw-"+val, TypeParam)
				continue
			}
		}

		current = a.childByName(current, fmt.Sprintf("%s: %s", pName, val),
			fmt.Sprintf("param-%s-%s", pName, val), TypeParam)
	}

	display := mat.DisplayName()
	if leaf := current.FindChildByName(display); leaf != nil {
		leaf.Count++
		return
	}
	leaf := a.childByName(current, display, "mat-"+string(mat.ID), TypeMaterial)
	leaf.RecordID = mat.ID
	leaf.Count = 1
	leaf.Identifier = StableLeafIdentity(mat.Brand, display)
}

// StableLeafIdentity derives the rebuild-stable identity a material leaf is
// annotated under.
func StableLeafIdentity(brand, displayName string) string {
	sum := md5.Sum([]byte(brand + "|" + displayName))
	return hex.EncodeToString(sum[:])
}

// applyOverrides relocates nodes per the persisted override set.  A missing
// node is skipped (it may be filtered out of this build); a missing target, or
// a target inside the moved node's own subtree, re-attaches the node at the
// root so no data is lost.
func (b *Builder) applyOverrides(a *arena, overrides []*Override) {
	for _, ov := range overrides {
		node, ok := a.index[ov.NodeID]
		if !ok || node == a.root {
			continue
		}
		if p := a.parent[node]; p != nil && p.ID == ov.TargetParentID {
			continue
		}

		a.detach(node)
		target, ok := a.index[ov.TargetParentID]
		switch {
		case !ok:
			b.log.Warn("override target missing, re-attaching at root",
				logging.String("node_id", ov.NodeID),
				logging.String("target_parent_id", ov.TargetParentID))
			target = a.root
		case a.isWithin(target, node):
			// Re-parenting under a descendant would orphan the whole subtree.
			b.log.Warn("override target inside moved subtree, re-attaching at root",
				logging.String("node_id", ov.NodeID),
				logging.String("target_parent_id", ov.TargetParentID))
			target = a.root
		}
		a.attach(node, target)
	}
}

// decorate recomputes path-based ids after override moves, attaches
// annotations by stable identity, and sets open-QA flags.
func (b *Builder) decorate(root *Node, anns map[AnnotationKey][]*Annotation) {
	var walk func(n *Node, parentID string)
	walk = func(n *Node, parentID string) {
		if parentID != "" {
			n.ID = parentID + "-" + n.LocalID
		}
		// Group and parameter nodes are annotated under their path id; their
		// identity follows the node when structure is unchanged.
		switch n.Type {
		case TypeGroup, TypeParam:
			n.Identifier = n.ID
		case TypeRegion, TypeBrand, TypeFactory, TypeIdentifier:
			n.Identifier = n.Name
		}

		if list := anns[AnnotationKey{NodeType: n.Type, NodeIdentifier: n.Identifier}]; len(list) > 0 {
			n.Annotations = list
			for _, ann := range list {
				if ann.Kind == KindQA && ann.Open {
					n.HasOpenQA = true
					break
				}
			}
			if len(list) == 1 {
				n.Comment = list[0].Preview()
			} else {
				n.Comment = fmt.Sprintf("%d annotations", len(list))
			}
		}

		for _, c := range n.Children {
			walk(c, n.ID)
		}
	}
	walk(root, "")
}

func annotationIndex(anns []*Annotation) map[AnnotationKey][]*Annotation {
	idx := make(map[AnnotationKey][]*Annotation, len(anns))
	for _, a := range anns {
		key := AnnotationKey{NodeType: a.NodeType, NodeIdentifier: a.NodeIdentifier}
		idx[key] = append(idx[key], a)
	}
	return idx
}

func orUnknown(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") {
		return fallback
	}
	return v
}
