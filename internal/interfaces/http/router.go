package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/internal/interfaces/http/handlers"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// complete route tree.
type RouterConfig struct {
	Ingest     *handlers.IngestHandler
	Results    *handlers.ResultsHandler
	Tree       *handlers.TreeHandler
	Rules      *handlers.RulesHandler
	Enrichment *handlers.EnrichmentHandler
	Health     *handlers.HealthHandler

	CORSOrigins []string

	Logger  logging.Logger
	Metrics *prometheus.Metrics
}

// NewRouter builds the gin engine with all middleware and routes mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(recovery(cfg.Logger))
	r.Use(requestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(requestMetrics(cfg.Metrics))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORSOrigins))
	}

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")

	if cfg.Ingest != nil {
		api.POST("/ingest", cfg.Ingest.Upload)
		api.POST("/resolve", cfg.Ingest.Resolve)
	}

	if cfg.Results != nil {
		api.GET("/results", cfg.Results.List)
		api.GET("/results/:id", cfg.Results.Get)
		api.PUT("/results/:id", cfg.Results.Update)
		api.POST("/results/:id/validate", cfg.Results.ValidateManual)
		api.POST("/results/:id/validate-document", cfg.Results.ValidateDocument)
		api.POST("/results/:id/parameters", cfg.Results.ReassignParameter)
	}

	if cfg.Tree != nil {
		api.GET("/subcategories", cfg.Tree.SubCategories)
		api.GET("/tree", cfg.Tree.Get)
		api.POST("/tree/move", cfg.Tree.Move)
		api.POST("/tree/sync", cfg.Tree.Sync)
		api.POST("/tree/rename", cfg.Tree.Rename)
		api.DELETE("/tree/overrides/:nodeID", cfg.Tree.Reset)

		api.GET("/annotations", cfg.Tree.ListAnnotations)
		api.POST("/annotations", cfg.Tree.CreateAnnotation)
		api.PUT("/annotations/:id", cfg.Tree.UpdateAnnotation)
		api.POST("/annotations/:id/answer", cfg.Tree.AnswerAnnotation)
		api.DELETE("/annotations/:id", cfg.Tree.DeleteAnnotation)
	}

	if cfg.Rules != nil {
		api.GET("/rules", cfg.Rules.List)
		api.GET("/rules/:subCategory", cfg.Rules.Get)
		api.PUT("/rules/:subCategory", cfg.Rules.Upsert)
		api.DELETE("/rules/:subCategory", cfg.Rules.Delete)
	}

	if cfg.Enrichment != nil {
		api.POST("/enrichment/start", cfg.Enrichment.Start)
		api.GET("/enrichment/status", cfg.Enrichment.Status)
	}

	return r
}
