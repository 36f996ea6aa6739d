package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/pkg/types/common"
)

// Pinger is one dependency checked by the readiness probe.
type Pinger struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	version string
	deps    []Pinger
}

func NewHealthHandler(version string, deps ...Pinger) *HealthHandler {
	return &HealthHandler{version: version, deps: deps}
}

// Liveness handles GET /healthz: process is up.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Readiness handles GET /readyz: every dependency answers within a short
// deadline, or the probe reports 503 with per-component detail.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make([]common.ComponentHealth, 0, len(h.deps))
	ready := true
	for _, dep := range h.deps {
		started := time.Now()
		ch := common.ComponentHealth{Name: dep.Name, Status: common.HealthUp}
		if err := dep.Ping(ctx); err != nil {
			ch.Status = common.HealthDown
			ch.Message = err.Error()
			ready = false
		}
		ch.Latency = time.Since(started)
		components = append(components, ch)
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "components": components})
}
