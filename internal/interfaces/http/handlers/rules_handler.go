package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/internal/domain/rule"
)

// RulesHandler serves the per-category configuration rules.  Rules are plain
// configuration records; the handler talks to the repository directly.
type RulesHandler struct {
	rules rule.Repository
}

func NewRulesHandler(rules rule.Repository) *RulesHandler {
	return &RulesHandler{rules: rules}
}

// List handles GET /rules.
func (h *RulesHandler) List(c *gin.Context) {
	list, err := h.rules.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

// Get handles GET /rules/:subCategory.
func (h *RulesHandler) Get(c *gin.Context) {
	r, err := h.rules.FindBySubCategory(c.Request.Context(), c.Param("subCategory"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, r)
}

// Upsert handles PUT /rules/:subCategory.  The path is authoritative for the
// sub-category; the body carries the rule fields.
func (h *RulesHandler) Upsert(c *gin.Context) {
	var r rule.CategoryRule
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	r.SubCategory = c.Param("subCategory")
	if err := h.rules.Upsert(c.Request.Context(), &r); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, r)
}

// Delete handles DELETE /rules/:subCategory.
func (h *RulesHandler) Delete(c *gin.Context) {
	stored, err := h.rules.FindBySubCategory(c.Request.Context(), c.Param("subCategory"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.rules.Delete(c.Request.Context(), stored.ID); err != nil {
		respondError(c, err)
		return
	}
	noContent(c)
}
