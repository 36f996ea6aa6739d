package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/internal/application/materials"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// ResultsHandler serves the resolved material records: listing, manual edits,
// the validation review flow, and parameter reassignment.
type ResultsHandler struct {
	svc materials.Service
}

func NewResultsHandler(svc materials.Service) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// List handles GET /results.
func (h *ResultsHandler) List(c *gin.Context) {
	f := material.Filter{
		SessionID:   common.SessionID(c.Query("session_id")),
		SubCategory: c.Query("sub_category"),
		Search:      c.Query("search"),
		Pagination:  parsePagination(c),
	}
	recs, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, recs)
}

// Get handles GET /results/:id.
func (h *ResultsHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

// Update handles PUT /results/:id.  Only the manually editable fields are
// accepted; anything else in the body is ignored by the binding.
func (h *ResultsHandler) Update(c *gin.Context) {
	var edit materials.Edit
	if err := c.ShouldBindJSON(&edit); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.svc.UpdateEditable(c.Request.Context(), common.ID(c.Param("id")), edit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

// ValidateManual handles POST /results/:id/validate.
func (h *ResultsHandler) ValidateManual(c *gin.Context) {
	rec, err := h.svc.ValidateManual(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

// ValidateDocument handles POST /results/:id/validate-document.  The request
// is multipart: the document file plus its pre-extracted text and type.
func (h *ResultsHandler) ValidateDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "reading uploaded document"))
		return
	}
	defer f.Close()

	docType := c.PostForm("type")
	if strings.TrimSpace(docType) == "" {
		docType = "document"
	}

	rec, err := h.svc.ValidateDocument(c.Request.Context(), common.ID(c.Param("id")), materials.Document{
		Type:        docType,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Text:        c.PostForm("text"),
		Reader:      f,
		Size:        fh.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}

type reassignRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// ReassignParameter handles POST /results/:id/parameters.
func (h *ResultsHandler) ReassignParameter(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.svc.ReassignParameter(c.Request.Context(), common.ID(c.Param("id")), req.Name, req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rec)
}
