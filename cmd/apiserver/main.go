// apiserver is the ChemLens API process: Postgres-backed repositories, the
// resolution pipeline, the cluster tree, and the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chemlens/chemlens/internal/application/hierarchy"
	"github.com/chemlens/chemlens/internal/application/materials"
	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres/repositories"
	"github.com/chemlens/chemlens/internal/infrastructure/database/redis"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/messaging/kafka"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/internal/infrastructure/registry"
	"github.com/chemlens/chemlens/internal/infrastructure/storage/minio"
	"github.com/chemlens/chemlens/internal/infrastructure/synonyms"
	httpapi "github.com/chemlens/chemlens/internal/interfaces/http"
	"github.com/chemlens/chemlens/internal/interfaces/http/handlers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; using defaults and environment\n", err)
		if cfg, err = config.Load(""); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Info("starting chemlens api server",
		logging.String("environment", cfg.App.Environment),
		logging.String("version", cfg.App.Version))

	metrics := prometheus.New()

	pg, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		log.Error("postgres connection failed", logging.Err(err))
		os.Exit(1)
	}
	defer pg.Close()
	if err := pg.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Error("migrations failed", logging.Err(err))
		os.Exit(1)
	}

	var cache redis.Cache
	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		// The registry client degrades to uncached lookups.
		log.Warn("redis unavailable, registry cache disabled", logging.Err(err))
	} else {
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, log,
			redis.WithDefaultTTL(cfg.Redis.RegistryTTL))
	}

	var docs materials.DocStore
	store, err := minio.NewDocumentStore(cfg.MinIO, log)
	if err != nil {
		log.Warn("object storage unavailable, document validation disabled", logging.Err(err))
	} else {
		docs = store
	}

	regClient := registry.NewClient(cfg.Registry, cache, metrics, log)
	synClient := synonyms.NewClient(cfg.Synonyms, metrics, log)
	assistant := llm.New(cfg.LLM, metrics, log)
	publisher := kafka.NewPublisher(cfg.Kafka, metrics, log)
	defer publisher.Close()

	materialRepo := repositories.NewMaterialRepository(pg, log)
	ruleRepo := repositories.NewRuleRepository(pg, log)
	overrideRepo := repositories.NewOverrideRepository(pg, log)
	annotationRepo := repositories.NewAnnotationRepository(pg, log)

	resolver := resolution.NewService(regClient, synClient, assistant, ruleRepo,
		materialRepo, publisher, metrics, cfg.Worker.ItemTimeout, log)
	cluster := hierarchy.NewService(materialRepo, ruleRepo, overrideRepo,
		annotationRepo, metrics, log)
	records := materials.NewService(materialRepo, ruleRepo, assistant, docs, log)

	health := []handlers.Pinger{
		{Name: "postgres", Ping: pg.HealthCheck},
	}
	if redisClient != nil {
		health = append(health, handlers.Pinger{Name: "redis", Ping: redisClient.Ping})
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Ingest:      handlers.NewIngestHandler(resolver, cluster, log),
		Results:     handlers.NewResultsHandler(records),
		Tree:        handlers.NewTreeHandler(cluster, records),
		Rules:       handlers.NewRulesHandler(ruleRepo),
		Enrichment:  handlers.NewEnrichmentHandler(resolver),
		Health:      handlers.NewHealthHandler(cfg.App.Version, health...),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log,
		Metrics:     metrics,
	})
	server := httpapi.NewServer(cfg.Server, router, log)

	// Metrics get their own listener so scrapes never compete with API traffic.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listener failed", logging.Err(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", logging.Err(err))
		}
	}

	ctx := context.Background()
	if err := server.Stop(ctx); err != nil {
		log.Error("server shutdown failed", logging.Err(err))
	}
	_ = metricsSrv.Shutdown(ctx)
	log.Info("chemlens api server stopped")
}
