package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/internal/application/hierarchy"
	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// IngestHandler serves file ingestion and ad-hoc resolution.
type IngestHandler struct {
	resolver resolution.Service
	cluster  hierarchy.Service
	logger   logging.Logger
}

func NewIngestHandler(resolver resolution.Service, cluster hierarchy.Service, log logging.Logger) *IngestHandler {
	return &IngestHandler{resolver: resolver, cluster: cluster, logger: log.Named("ingest")}
}

// Upload handles POST /ingest: a multipart CSV upload that replaces the
// session's records.  Annotations are cleared with the old records; layout
// overrides persist.
func (h *IngestHandler) Upload(c *gin.Context) {
	session := strings.TrimSpace(c.PostForm("session_id"))
	if session == "" {
		session = "default"
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "reading uploaded file"))
		return
	}
	defer f.Close()

	rows, err := material.ParseRawItems(f)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	count, err := h.resolver.Ingest(ctx, common.SessionID(session), rows)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.cluster.ClearAnnotations(ctx); err != nil {
		h.logger.Warn("clearing annotations after ingest", logging.Err(err))
	}

	respond(c, http.StatusOK, gin.H{
		"session_id": session,
		"rows":       len(rows),
		"records":    count,
	})
}

type resolveRequest struct {
	Description string `json:"description" binding:"required"`
	SubCategory string `json:"sub_category"`
}

// Resolve handles POST /resolve: run the pipeline for one description without
// persisting anything.
func (h *IngestHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := h.resolver.Resolve(c.Request.Context(), req.Description, req.SubCategory)
	respond(c, http.StatusOK, res)
}
