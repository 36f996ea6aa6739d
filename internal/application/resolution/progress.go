package resolution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chemlens/chemlens/internal/infrastructure/messaging/kafka"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// Enrichment run states.
const (
	StatusIdle      = "idle"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Progress is a point-in-time snapshot of the enrichment job, polled by the
// HTTP layer.
type Progress struct {
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Current   string    `json:"current,omitempty"`
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
	LastRun   time.Time `json:"last_run,omitempty"`
}

// Job is the owned, mutex-guarded handle for the single background enrichment
// run.  It is never package-global; the service owns exactly one.
type Job struct {
	mu sync.Mutex
	p  Progress
}

// NewJob returns an idle job handle.
func NewJob() *Job {
	return &Job{p: Progress{Status: StatusIdle}}
}

// Snapshot returns a copy of the current progress.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.p
}

// begin transitions idle/terminal → running.  Returns false when a run is
// already active.
func (j *Job) begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.p.Status == StatusRunning {
		return false
	}
	j.p = Progress{Status: StatusRunning}
	return true
}

func (j *Job) setTotal(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.p.Total = total
}

func (j *Job) step(current string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.p.Current = current
}

func (j *Job) markProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.p.Processed++
}

func (j *Job) markError() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.p.Errors++
}

func (j *Job) finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.p.Status = status
	j.p.Current = ""
	j.p.LastRun = time.Now().UTC()
}

func (s *service) EnrichmentProgress() Progress {
	return s.job.Snapshot()
}

// StartBulkEnrichment launches the enrichment run on its own goroutine.
func (s *service) StartBulkEnrichment() error {
	if !s.assistant.Available() {
		return errors.New(errors.ErrCodeAssistantUnavailable,
			"bulk enrichment requires a configured assistant")
	}
	if !s.job.begin() {
		return errors.New(errors.ErrCodeEnrichmentRunning, "an enrichment run is already active")
	}
	go s.runEnrichment(context.Background())
	return nil
}

// runEnrichment walks every distinct unenriched description, asks the
// assistant for a known identity, and applies the standardized enriched
// format when both name and identifier come back.
func (s *service) runEnrichment(ctx context.Context) {
	log := s.logger.Named("enrichment")

	descriptions, err := s.materials.ListUnenrichedDescriptions(ctx)
	if err != nil {
		log.Error("failed to list unenriched descriptions", logging.Err(err))
		s.metrics.EnrichmentRunsTotal.WithLabelValues("failed").Inc()
		s.job.finish(StatusFailed)
		return
	}
	s.job.setTotal(len(descriptions))
	log.Info("enrichment run started", logging.Int("total", len(descriptions)))

	for _, desc := range descriptions {
		s.job.step(desc)

		itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
		identity, err := s.assistant.LookupKnownIdentity(itemCtx, desc)
		cancel()
		if err != nil {
			log.Debug("identity lookup failed", logging.String("description", desc), logging.Err(err))
			s.metrics.EnrichmentItemsTotal.WithLabelValues("error").Inc()
			s.job.markError()
			continue
		}
		if identity.Identifier == "" || identity.DescriptiveName == "" {
			s.metrics.EnrichmentItemsTotal.WithLabelValues("skipped").Inc()
			s.job.markProcessed()
			continue
		}

		enriched := SimpleEnrichedName(identity.DescriptiveName, identity.Identifier)
		if _, err := s.materials.UpdateEnrichment(ctx, desc, enriched, identity.Identifier); err != nil {
			log.Warn("failed to apply enrichment", logging.String("description", desc), logging.Err(err))
			s.metrics.EnrichmentItemsTotal.WithLabelValues("error").Inc()
			s.job.markError()
			continue
		}
		s.metrics.EnrichmentItemsTotal.WithLabelValues("enriched").Inc()
		s.job.markProcessed()
	}

	s.job.finish(StatusCompleted)
	s.metrics.EnrichmentRunsTotal.WithLabelValues("completed").Inc()

	snap := s.job.Snapshot()
	payload, err := json.Marshal(kafka.EnrichmentCompletedEvent{
		Total:     snap.Total,
		Processed: snap.Processed,
		Errors:    snap.Errors,
	})
	if err == nil {
		if err := s.publisher.Publish(ctx, "enrichment", common.EventEnvelope{
			Type:    kafka.EventEnrichmentCompleted,
			Payload: payload,
		}); err != nil {
			log.Warn("failed to publish enrichment event", logging.Err(err))
		}
	}
	log.Info("enrichment run finished",
		logging.Int("processed", snap.Processed),
		logging.Int("errors", snap.Errors))
}
