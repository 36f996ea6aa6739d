package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/internal/application/hierarchy"
	"github.com/chemlens/chemlens/internal/application/materials"
	domain "github.com/chemlens/chemlens/internal/domain/hierarchy"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// TreeHandler serves the cluster tree: reads, layout edits, and annotations.
type TreeHandler struct {
	svc     hierarchy.Service
	records materials.Service
}

func NewTreeHandler(svc hierarchy.Service, records materials.Service) *TreeHandler {
	return &TreeHandler{svc: svc, records: records}
}

// Get handles GET /tree.
func (h *TreeHandler) Get(c *gin.Context) {
	root, err := h.svc.BuildTree(c.Request.Context(), c.Query("sub_category"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, root)
}

// SubCategories handles GET /subcategories.
func (h *TreeHandler) SubCategories(c *gin.Context) {
	subs, err := h.svc.SubCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, subs)
}

type moveRequest struct {
	NodeID         string `json:"node_id" binding:"required"`
	TargetParentID string `json:"target_parent_id" binding:"required"`
}

// Move handles POST /tree/move.
func (h *TreeHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.MoveNode(c.Request.Context(), req.NodeID, req.TargetParentID); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}

type syncRequest struct {
	Moves []hierarchy.Move `json:"moves"`
}

// Sync handles POST /tree/sync: a whole layout snapshot in one call.
func (h *TreeHandler) Sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.SyncLayout(c.Request.Context(), req.Moves); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}

// Reset handles DELETE /tree/overrides/:nodeID.
func (h *TreeHandler) Reset(c *gin.Context) {
	if err := h.svc.ResetNode(c.Request.Context(), c.Param("nodeID")); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}

type renameRequest struct {
	SubCategory string `json:"sub_category"`
	Name        string `json:"name" binding:"required"`
	OldValue    string `json:"old_value" binding:"required"`
	NewValue    string `json:"new_value" binding:"required"`
}

// Rename handles POST /tree/rename: renaming a parameter or identifier node
// rewrites the value on every record grouped under it.
func (h *TreeHandler) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.records.RenameValue(c.Request.Context(), req.SubCategory, req.Name, req.OldValue, req.NewValue)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"renamed": n})
}

// ListAnnotations handles GET /annotations?node_type=&node_identifier=.
func (h *TreeHandler) ListAnnotations(c *gin.Context) {
	key := domain.AnnotationKey{
		NodeType:       c.Query("node_type"),
		NodeIdentifier: c.Query("node_identifier"),
	}
	list, err := h.svc.ListAnnotations(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

// CreateAnnotation handles POST /annotations.
func (h *TreeHandler) CreateAnnotation(c *gin.Context) {
	var a domain.Annotation
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.CreateAnnotation(c.Request.Context(), &a); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, a)
}

// UpdateAnnotation handles PUT /annotations/:id.
func (h *TreeHandler) UpdateAnnotation(c *gin.Context) {
	var a domain.Annotation
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	a.ID = common.ID(c.Param("id"))
	if err := h.svc.UpdateAnnotation(c.Request.Context(), &a); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

type answerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// AnswerAnnotation handles POST /annotations/:id/answer.
func (h *TreeHandler) AnswerAnnotation(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.AnswerAnnotation(c.Request.Context(), common.ID(c.Param("id")), req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, a)
}

// DeleteAnnotation handles DELETE /annotations/:id.
func (h *TreeHandler) DeleteAnnotation(c *gin.Context) {
	if err := h.svc.DeleteAnnotation(c.Request.Context(), common.ID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}
