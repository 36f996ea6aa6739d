// Package resolution implements the identity resolution pipeline: it takes a
// raw procurement line item and determines the material's registry identifier,
// descriptive name, synonyms, and enriched description.
package resolution

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/messaging/kafka"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/internal/infrastructure/registry"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// Registry is the slice of the registry client the resolver consumes.
type Registry interface {
	SearchAndDetail(ctx context.Context, term string) (registry.Result, error)
}

// SynonymSource is the secondary descriptive-name lookup (PubChem style).
type SynonymSource interface {
	DescriptiveName(ctx context.Context, identifier string) (string, error)
}

// Resolution is the outcome of resolving one description.
type Resolution struct {
	Identifier          string               `json:"identifier"`
	DescriptiveName     string               `json:"descriptive_name"`
	Synonyms            string               `json:"synonyms"`
	EnrichedDescription string               `json:"enriched_description"`
	FinalSearchTerm     string               `json:"final_search_term"`
	Source              string               `json:"source"`
	Confidence          int                  `json:"confidence"`
	Parameters          []material.Parameter `json:"parameters,omitempty"`
}

// Resolved reports whether a registry identifier was determined, verified or
// not.
func (r Resolution) Resolved() bool {
	return r.Identifier != "" && r.Identifier != material.IdentifierNotFound
}

// Service runs the resolution pipeline and ingests resolved records.
type Service interface {
	// Resolve runs the full pipeline for one description.  External failures
	// degrade individual stages; the call itself never fails.
	Resolve(ctx context.Context, description, subCategory string) Resolution

	// Ingest replaces a session's records: each raw row is resolved once per
	// distinct (description, sub-category) pair and fanned out into one
	// record per brand.
	Ingest(ctx context.Context, session common.SessionID, rows []material.RawItem) (int, error)

	// StartBulkEnrichment launches the background enrichment run; at most one
	// runs at a time.
	StartBulkEnrichment() error

	// EnrichmentProgress returns a snapshot of the current or last run.
	EnrichmentProgress() Progress
}

type service struct {
	registry  Registry
	synonyms  SynonymSource
	assistant llm.Assistant
	rules     rule.Repository
	materials material.Repository
	publisher kafka.Publisher
	metrics   *prometheus.Metrics
	logger    logging.Logger

	itemTimeout time.Duration
	job         *Job
}

// NewService wires the resolution pipeline.
func NewService(
	reg Registry,
	syn SynonymSource,
	assistant llm.Assistant,
	rules rule.Repository,
	materials material.Repository,
	publisher kafka.Publisher,
	metrics *prometheus.Metrics,
	itemTimeout time.Duration,
	logger logging.Logger,
) Service {
	if itemTimeout <= 0 {
		itemTimeout = 30 * time.Second
	}
	return &service{
		registry:    reg,
		synonyms:    syn,
		assistant:   assistant,
		rules:       rules,
		materials:   materials,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger.Named("resolution"),
		itemTimeout: itemTimeout,
		job:         NewJob(),
	}
}

// trial is one candidate search term with its provenance label.
type trial struct {
	term  string
	label string
}

// buildTrials produces the ordered candidate terms: raw and normalized forms
// of the description and sub-category first, then every spelling variant
// appended after the bases.
func buildTrials(description, subCategory, cleanDesc, cleanSub string) []trial {
	bases := []trial{
		{description, "Raw Desc"},
		{subCategory, "Raw Sub"},
		{cleanDesc, "Clean Desc"},
		{cleanSub, "Clean Sub"},
	}
	out := make([]trial, 0, len(bases))
	var variants []trial
	for _, b := range bases {
		out = append(out, b)
		variants = append(variants, variantsOf(b)...)
	}
	return append(out, variants...)
}

// variantsOf derives alternate spellings known to unlock registry matches.
func variantsOf(t trial) []trial {
	upper := strings.ToUpper(t.term)
	var out []trial
	if strings.Contains(upper, "POLYGLYCEROL") {
		out = append(out, trial{
			term:  strings.ReplaceAll(upper, "POLYGLYCEROL", "POLYGLYCERYL"),
			label: t.label + " (Var)",
		})
	}
	if containsToken(upper, "ESTER") {
		out = append(out, trial{
			term:  dropToken(upper, "ESTER"),
			label: t.label + " (No Ester)",
		})
	}
	return out
}

func containsToken(s, token string) bool {
	for _, f := range strings.Fields(s) {
		if f == token {
			return true
		}
	}
	return false
}

func dropToken(s, token string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if f != token {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// cleanIdentifier strips any parenthesized marker ("(LLM)" etc.) from an
// identifier before it is used in an upstream lookup.
func cleanIdentifier(id string) string {
	if i := strings.IndexByte(id, '('); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(id)
}

func (s *service) Resolve(ctx context.Context, description, subCategory string) Resolution {
	started := time.Now()
	res := Resolution{
		DescriptiveName: material.ValueNA,
		Synonyms:        material.ValueNA,
	}

	stored := s.storedRule(ctx, subCategory)
	cfg := rule.Resolve(subCategory, stored)

	cleanDesc := material.Normalize(description)
	cleanSub := material.Normalize(subCategory)

	// The cleaned description is the search term of record until a trial or
	// fallback stage produces a better one.
	res.FinalSearchTerm = cleanDesc

	enrichmentApplied := false

	// Stage 1: rule-driven parameter enrichment.
	if stored != nil && s.assistant.Available() {
		extracted, err := s.assistant.ExtractParameters(ctx, description, cfg.IdentifierName, cfg.ParameterOrder)
		if err != nil {
			s.logger.Debug("parameter extraction failed", logging.Err(err))
		} else if len(extracted) > 0 {
			res.Parameters = orderedParameters(extracted, cfg.IdentifierName, cfg.ParameterOrder)
			if id := extracted[cfg.IdentifierName]; id != "" {
				res.Identifier = id
				res.Source = "Rule Enrichment"
				s.metrics.ResolutionStage.WithLabelValues("rule_enrichment").Inc()
			}
			res.EnrichedDescription = ComposeEnrichedName(cleanDesc, cfg.IdentifierName, res.Identifier, res.Parameters)
			res.FinalSearchTerm = res.EnrichedDescription
			enrichmentApplied = true
		}
	}

	// Stage 2: registry trial loop.  An upstream failure skips the trial,
	// never the row.
	if res.Identifier == "" {
		for _, t := range buildTrials(description, subCategory, cleanDesc, cleanSub) {
			if !material.UsableTerm(t.term) {
				continue
			}
			r, err := s.registry.SearchAndDetail(ctx, t.term)
			if err != nil {
				s.logger.Debug("registry trial failed",
					logging.String("term", t.term), logging.Err(err))
				continue
			}
			if !r.Found() {
				continue
			}
			res.Identifier = r.Identifier
			res.Synonyms = r.Synonyms
			res.Source = t.label
			if !enrichmentApplied {
				res.FinalSearchTerm = t.term + " (" + t.label + ")"
			}
			s.metrics.ResolutionStage.WithLabelValues("registry").Inc()
			break
		}
	}

	// Stage 3: assistant fallback.
	if res.Identifier == "" && s.assistant.Available() {
		s.assistantFallback(ctx, description, cleanDesc, enrichmentApplied, &res)
	}

	// Stage 4: descriptive name.
	if res.DescriptiveName == material.ValueNA && res.Synonyms != "" && res.Synonyms != material.ValueNA {
		res.DescriptiveName = material.DescriptiveNameFromSynonyms(res.Synonyms)
	}
	if res.DescriptiveName == material.ValueNA && res.Identifier != "" {
		if name, err := s.synonyms.DescriptiveName(ctx, cleanIdentifier(res.Identifier)); err == nil {
			res.DescriptiveName = name
		} else {
			s.logger.Debug("synonym lookup failed", logging.Err(err))
		}
	}

	// Stage 5: final enrichment regeneration.  With the identifier settled
	// the enriched description is recomposed as the canonical value of
	// record; the assistant is only needed to refresh the extracted
	// parameters, the name itself composes without it.
	if res.Identifier != "" && stored != nil {
		if s.assistant.Available() {
			extracted, err := s.assistant.ExtractParameters(ctx, description, cfg.IdentifierName, cfg.ParameterOrder)
			if err != nil {
				s.logger.Debug("final parameter extraction failed", logging.Err(err))
			} else {
				extracted[cfg.IdentifierName] = cleanIdentifier(res.Identifier)
				res.Parameters = orderedParameters(extracted, cfg.IdentifierName, cfg.ParameterOrder)
			}
		}
		res.EnrichedDescription = ComposeEnrichedName(
			cleanDesc, cfg.IdentifierName, cleanIdentifier(res.Identifier), res.Parameters)
	}

	outcome := "miss"
	if res.Identifier == "" {
		res.Identifier = material.IdentifierNotFound
		res.Confidence = material.ConfidenceNone
	} else {
		res.Confidence = material.ConfidenceResolved
		outcome = "hit"
		if strings.HasPrefix(res.Source, "AI") {
			outcome = "llm_hit"
		}
	}
	s.metrics.ObserveResolution(outcome, time.Since(started))
	return res
}

// assistantFallback runs Stage 3: model-suggested search term, then the
// model's own knowledge with registry verification.
func (s *service) assistantFallback(ctx context.Context, description, cleanDesc string, enrichmentApplied bool, res *Resolution) {
	cleaned, err := s.assistant.CleanTerm(ctx, description)
	if err != nil {
		s.logger.Debug("assistant clean failed", logging.Err(err))
	} else if cleaned != "" && !strings.EqualFold(cleaned, cleanDesc) {
		if r, err := s.registry.SearchAndDetail(ctx, cleaned); err == nil && r.Found() {
			res.Identifier = r.Identifier
			res.Synonyms = r.Synonyms
			res.Source = "AI Clean"
			res.FinalSearchTerm = cleaned + " (AI Clean)"
			s.metrics.ResolutionStage.WithLabelValues("ai_clean").Inc()
			return
		}
	}

	identity, err := s.assistant.LookupKnownIdentity(ctx, description)
	if err != nil {
		s.logger.Debug("assistant identity lookup failed", logging.Err(err))
		return
	}
	if identity.Identifier != "" {
		if r, err := s.registry.SearchAndDetail(ctx, identity.Identifier); err == nil && r.Found() {
			res.Identifier = r.Identifier
			res.Synonyms = r.Synonyms
			res.Source = "AI Verified"
			if !enrichmentApplied {
				res.FinalSearchTerm = description + " (AI Verified)"
			}
			s.metrics.ResolutionStage.WithLabelValues("ai_verified").Inc()
		} else {
			res.Identifier = identity.Identifier + " (LLM)"
			res.Source = "AI Knowledge"
			res.FinalSearchTerm = description + " (AI Knowledge)"
			s.metrics.ResolutionStage.WithLabelValues("ai_knowledge").Inc()
		}
	}
	if identity.DescriptiveName != "" {
		res.DescriptiveName = identity.DescriptiveName + " (AI)"
	}
}

// storedRule loads the sub-category's rule; a missing rule is normal and
// yields nil.
func (s *service) storedRule(ctx context.Context, subCategory string) *rule.CategoryRule {
	if strings.TrimSpace(subCategory) == "" {
		return nil
	}
	stored, err := s.rules.FindBySubCategory(ctx, subCategory)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeRuleNotFound) {
			s.logger.Warn("rule lookup failed",
				logging.String("sub_category", subCategory), logging.Err(err))
		}
		return nil
	}
	return stored
}

func (s *service) Ingest(ctx context.Context, session common.SessionID, rows []material.RawItem) (int, error) {
	if err := s.materials.DeleteSession(ctx, session); err != nil {
		return 0, err
	}

	// Rows are resolved once per (description, sub-category) pair: the same
	// description under two sub-categories is governed by two rules.
	type resolveKey struct {
		description string
		subCategory string
	}
	resolved := make(map[resolveKey]Resolution)
	var records []*material.MaterialRecord

	for _, row := range rows {
		if strings.TrimSpace(row.Description) == "" {
			continue
		}
		key := resolveKey{row.Description, row.SubCategory}
		res, ok := resolved[key]
		if !ok {
			res = s.Resolve(ctx, row.Description, row.SubCategory)
			resolved[key] = res
			s.publishResolved(ctx, row.Description, res)
		}

		for _, brand := range row.SplitBrands() {
			records = append(records, &material.MaterialRecord{
				SessionID:           session,
				RowNumber:           row.RowNumber,
				Commodity:           row.Commodity,
				SubCategory:         row.SubCategory,
				Description:         row.Description,
				Brand:               brand,
				ItemCode:            row.ItemCode,
				Plant:               row.Plant,
				Region:              row.Region,
				Cluster:             row.Cluster,
				EnrichedDescription: res.EnrichedDescription,
				FinalSearchTerm:     res.FinalSearchTerm,
				Identifier:          res.Identifier,
				DescriptiveName:     res.DescriptiveName,
				Synonyms:            res.Synonyms,
				Confidence:          res.Confidence,
				ValidationStatus:    material.ValidationPending,
				Quantity:            row.Quantity,
				SpendValue:          row.SpendValue,
				Parameters:          res.Parameters,
			})
		}
	}

	if len(records) == 0 {
		return 0, nil
	}
	if err := s.materials.CreateBatch(ctx, records); err != nil {
		return 0, err
	}
	s.logger.Info("session ingested",
		logging.String("session", string(session)),
		logging.Int("rows", len(rows)),
		logging.Int("records", len(records)))
	return len(records), nil
}

func (s *service) publishResolved(ctx context.Context, description string, res Resolution) {
	payload, err := json.Marshal(kafka.MaterialResolvedEvent{
		Description: description,
		Identifier:  res.Identifier,
		SearchTerm:  res.FinalSearchTerm,
		Source:      res.Source,
		Confidence:  res.Confidence,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, description, common.EventEnvelope{
		Type:    kafka.EventMaterialResolved,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to publish resolution event", logging.Err(err))
	}
}
