// Package prometheus defines and registers the ChemLens metric families.
// All instrumentation in the platform goes through the Metrics struct so that
// metric names and label sets stay consistent across components.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chemlens"

// Metrics aggregates every metric family the platform emits.  A single
// instance is created at startup and shared by constructor injection.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP surface.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity resolution pipeline.
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	ResolutionStage    *prometheus.CounterVec

	// External registry (CAS Common Chemistry style) client.
	RegistryRequestsTotal *prometheus.CounterVec
	RegistryCacheHits     prometheus.Counter
	RegistryCacheMisses   prometheus.Counter

	// Synonym fallback (PubChem).
	SynonymLookupsTotal *prometheus.CounterVec

	// LLM assistant.
	AssistantCallsTotal   *prometheus.CounterVec
	AssistantCallDuration *prometheus.HistogramVec

	// Hierarchy builder.
	TreeBuildsTotal   *prometheus.CounterVec
	TreeBuildDuration prometheus.Histogram
	TreeNodeCount     prometheus.Gauge

	// Background enrichment worker.
	EnrichmentRunsTotal  *prometheus.CounterVec
	EnrichmentItemsTotal *prometheus.CounterVec

	// Kafka event publishing.
	EventsPublishedTotal *prometheus.CounterVec
}

// New constructs a Metrics instance registered against a fresh Registry.
// The returned registry should be exposed via promhttp on the metrics port.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, labelled by method, route, and status class.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),

		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Material identity resolutions, labelled by outcome (hit, llm_hit, miss, error).",
		}, []string{"outcome"}),

		ResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Wall time for resolving a single material.",
			Buckets:   []float64{.05, .25, 1, 2.5, 5, 10, 30, 60},
		}),

		ResolutionStage: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_stage_total",
			Help:      "Which pipeline stage produced each successful match.",
		}, []string{"stage"}),

		RegistryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_requests_total",
			Help:      "Upstream chemical registry requests, labelled by operation and result.",
		}, []string{"operation", "result"}),

		RegistryCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_cache_hits_total",
			Help:      "Registry lookups served from the Redis cache.",
		}),

		RegistryCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_cache_misses_total",
			Help:      "Registry lookups that required an upstream request.",
		}),

		SynonymLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synonym_lookups_total",
			Help:      "PubChem synonym fallback lookups, labelled by result.",
		}, []string{"result"}),

		AssistantCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_calls_total",
			Help:      "LLM assistant invocations, labelled by operation and result.",
		}, []string{"operation", "result"}),

		AssistantCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assistant_call_duration_seconds",
			Help:      "LLM assistant call latency distribution.",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		TreeBuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_builds_total",
			Help:      "Cluster tree builds, labelled by result.",
		}, []string{"result"}),

		TreeBuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_build_duration_seconds",
			Help:      "Wall time for a full cluster tree build.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		TreeNodeCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_node_count",
			Help:      "Node count of the most recently built cluster tree.",
		}),

		EnrichmentRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_runs_total",
			Help:      "Background enrichment runs, labelled by result (completed, failed).",
		}, []string{"result"}),

		EnrichmentItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_items_total",
			Help:      "Individual items processed by enrichment runs, labelled by outcome.",
		}, []string{"outcome"}),

		EventsPublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published to Kafka, labelled by topic and result.",
		}, []string{"topic", "result"}),
	}
}

// Registry exposes the underlying registry for mounting promhttp handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveResolution records one completed material resolution.
func (m *Metrics) ObserveResolution(outcome string, elapsed time.Duration) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(elapsed.Seconds())
}

// ObserveAssistantCall records one LLM assistant invocation.
func (m *Metrics) ObserveAssistantCall(operation, result string, elapsed time.Duration) {
	m.AssistantCallsTotal.WithLabelValues(operation, result).Inc()
	m.AssistantCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveTreeBuild records one cluster tree build.
func (m *Metrics) ObserveTreeBuild(result string, nodes int, elapsed time.Duration) {
	m.TreeBuildsTotal.WithLabelValues(result).Inc()
	m.TreeBuildDuration.Observe(elapsed.Seconds())
	m.TreeNodeCount.Set(float64(nodes))
}
