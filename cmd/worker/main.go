// worker runs one bulk enrichment pass over the stored material records and
// exits.  Intended for scheduled (cron-style) execution next to the API
// server, which can also trigger the same run over HTTP.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres"
	"github.com/chemlens/chemlens/internal/infrastructure/database/postgres/repositories"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/messaging/kafka"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/internal/infrastructure/registry"
	"github.com/chemlens/chemlens/internal/infrastructure/synonyms"
)

const pollInterval = 2 * time.Second

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
	log.Info("starting chemlens enrichment worker")

	metrics := prometheus.New()

	pg, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		log.Error("postgres connection failed", logging.Err(err))
		os.Exit(1)
	}
	defer pg.Close()

	publisher := kafka.NewPublisher(cfg.Kafka, metrics, log)
	defer publisher.Close()

	materialRepo := repositories.NewMaterialRepository(pg, log)
	ruleRepo := repositories.NewRuleRepository(pg, log)

	resolver := resolution.NewService(
		registry.NewClient(cfg.Registry, nil, metrics, log),
		synonyms.NewClient(cfg.Synonyms, metrics, log),
		llm.New(cfg.LLM, metrics, log),
		ruleRepo,
		materialRepo,
		publisher,
		metrics,
		cfg.Worker.ItemTimeout,
		log,
	)

	if err := resolver.StartBulkEnrichment(); err != nil {
		log.Error("enrichment run refused", logging.Err(err))
		os.Exit(1)
	}

	for {
		time.Sleep(pollInterval)
		p := resolver.EnrichmentProgress()
		switch p.Status {
		case resolution.StatusCompleted:
			log.Info("enrichment run completed",
				logging.Int("total", p.Total),
				logging.Int("processed", p.Processed),
				logging.Int("errors", p.Errors))
			return
		case resolution.StatusFailed:
			log.Error("enrichment run failed",
				logging.Int("processed", p.Processed),
				logging.Int("errors", p.Errors))
			os.Exit(1)
		default:
			log.Debug("enrichment in progress",
				logging.Int("processed", p.Processed),
				logging.Int("total", p.Total),
				logging.String("current", p.Current))
		}
	}
}
