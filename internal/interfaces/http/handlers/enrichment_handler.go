package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/internal/application/resolution"
)

// EnrichmentHandler triggers and polls the background bulk-enrichment run.
type EnrichmentHandler struct {
	svc resolution.Service
}

func NewEnrichmentHandler(svc resolution.Service) *EnrichmentHandler {
	return &EnrichmentHandler{svc: svc}
}

// Start handles POST /enrichment/start.  At most one run at a time; a second
// start while running yields 409.
func (h *EnrichmentHandler) Start(c *gin.Context) {
	if err := h.svc.StartBulkEnrichment(); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, h.svc.EnrichmentProgress())
}

// Status handles GET /enrichment/status.
func (h *EnrichmentHandler) Status(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.EnrichmentProgress())
}
