package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemlens/chemlens/internal/config"
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

// fakeRegistry serves canned results keyed by exact term and records the
// terms it was asked for.
type fakeRegistry struct {
	results map[string]registry.Result
	err     error
	calls   []string
}

func (f *fakeRegistry) SearchAndDetail(_ context.Context, term string) (registry.Result, error) {
	f.calls = append(f.calls, term)
	if f.err != nil {
		return registry.Result{}, f.err
	}
	return f.results[term], nil
}

type fakeSynonyms struct {
	names map[string]string
}

func (f *fakeSynonyms) DescriptiveName(_ context.Context, identifier string) (string, error) {
	if name, ok := f.names[identifier]; ok {
		return name, nil
	}
	return material.ValueNA, nil
}

// fakeAssistant implements llm.Assistant with overridable behaviors.
type fakeAssistant struct {
	available bool
	cleanTerm string
	identity  llm.Identity
	params    map[string]string
	lookups   chan string // when non-nil, LookupKnownIdentity blocks until read
}

func (f *fakeAssistant) Available() bool { return f.available }

func (f *fakeAssistant) CleanTerm(context.Context, string) (string, error) {
	if f.cleanTerm == "" {
		return "", errors.New(errors.ErrCodeAssistantBadOutput, "no suggestion")
	}
	return f.cleanTerm, nil
}

func (f *fakeAssistant) LookupKnownIdentity(_ context.Context, text string) (llm.Identity, error) {
	if f.lookups != nil {
		f.lookups <- text
	}
	return f.identity, nil
}

func (f *fakeAssistant) ExtractParameters(context.Context, string, string, []string) (map[string]string, error) {
	if f.params == nil {
		return nil, errors.New(errors.ErrCodeAssistantBadOutput, "no parameters")
	}
	out := make(map[string]string, len(f.params))
	for k, v := range f.params {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAssistant) VerifyIdentifierInDocument(context.Context, string, string) (bool, error) {
	return false, nil
}

type fakeRules struct {
	bySubCategory map[string]*rule.CategoryRule
}

func (f *fakeRules) Upsert(_ context.Context, r *rule.CategoryRule) error {
	f.bySubCategory[r.SubCategory] = r
	return nil
}

func (f *fakeRules) FindBySubCategory(_ context.Context, subCategory string) (*rule.CategoryRule, error) {
	if r, ok := f.bySubCategory[subCategory]; ok {
		return r, nil
	}
	return nil, errors.New(errors.ErrCodeRuleNotFound, "no rule")
}

func (f *fakeRules) List(context.Context) ([]*rule.CategoryRule, error) { return nil, nil }
func (f *fakeRules) Delete(context.Context, common.ID) error            { return nil }

// fakeMaterials implements material.Repository in memory, covering only what
// the resolution service touches.
type fakeMaterials struct {
	created     []*material.MaterialRecord
	unenriched  []string
	enrichments map[string]string // description → enriched
	deletedSess []common.SessionID
}

func newFakeMaterials() *fakeMaterials {
	return &fakeMaterials{enrichments: make(map[string]string)}
}

func (f *fakeMaterials) Create(_ context.Context, rec *material.MaterialRecord) error {
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeMaterials) CreateBatch(_ context.Context, recs []*material.MaterialRecord) error {
	f.created = append(f.created, recs...)
	return nil
}

func (f *fakeMaterials) Update(context.Context, *material.MaterialRecord) error { return nil }

func (f *fakeMaterials) FindByID(context.Context, common.ID) (*material.MaterialRecord, error) {
	return nil, errors.New(errors.ErrCodeMaterialNotFound, "not found")
}

func (f *fakeMaterials) FindByDescription(context.Context, string, string) (*material.MaterialRecord, error) {
	return nil, errors.New(errors.ErrCodeMaterialNotFound, "not found")
}

func (f *fakeMaterials) List(context.Context, material.Filter) ([]*material.MaterialRecord, error) {
	return f.created, nil
}

func (f *fakeMaterials) ListSubCategories(context.Context) ([]string, error) { return nil, nil }

func (f *fakeMaterials) ListUnenrichedDescriptions(context.Context) ([]string, error) {
	return f.unenriched, nil
}

func (f *fakeMaterials) UpdateEnrichment(_ context.Context, description, enriched, _ string) (int64, error) {
	f.enrichments[description] = enriched
	return 1, nil
}

func (f *fakeMaterials) ReplaceParameters(context.Context, common.ID, []material.Parameter) error {
	return nil
}

func (f *fakeMaterials) DeleteSession(_ context.Context, session common.SessionID) error {
	f.deletedSess = append(f.deletedSess, session)
	return nil
}

type fixture struct {
	registry  *fakeRegistry
	synonyms  *fakeSynonyms
	assistant *fakeAssistant
	rules     *fakeRules
	materials *fakeMaterials
	service   Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:  &fakeRegistry{results: map[string]registry.Result{}},
		synonyms:  &fakeSynonyms{names: map[string]string{}},
		assistant: &fakeAssistant{},
		rules:     &fakeRules{bySubCategory: map[string]*rule.CategoryRule{}},
		materials: newFakeMaterials(),
	}
	f.service = NewService(
		f.registry, f.synonyms, f.assistant, f.rules, f.materials,
		kafka.NewPublisher(config.KafkaConfig{}, prometheus.New(), logging.NewNopLogger()),
		prometheus.New(), 5*time.Second, logging.NewNopLogger(),
	)
	return f
}

func TestResolve_RegistryHitOnCleanDescription(t *testing.T) {
	f := newFixture(t)
	f.registry.results["GLYCERINE"] = registry.Result{
		Identifier: "56-81-5",
		Synonyms:   "Glycerol|STEARIC ACID",
	}

	res := f.service.Resolve(context.Background(), "USP GLYCERINE 99.5%", "Humectants")

	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "Clean Desc", res.Source)
	assert.Equal(t, "GLYCERINE (Clean Desc)", res.FinalSearchTerm)
	assert.Equal(t, material.ConfidenceResolved, res.Confidence)
	assert.Equal(t, "STEARIC ACID", res.DescriptiveName)
	assert.True(t, res.Resolved())
}

func TestResolve_NoMatchAnywhere(t *testing.T) {
	f := newFixture(t)

	res := f.service.Resolve(context.Background(), "MYSTERY BLEND X", "Misc")

	assert.Equal(t, material.IdentifierNotFound, res.Identifier)
	assert.Equal(t, material.ConfidenceNone, res.Confidence)
	assert.Equal(t, material.ValueNA, res.DescriptiveName)
	// Unresolved rows still carry the cleaned description as search term.
	assert.Equal(t, "MYSTERY BLEND", res.FinalSearchTerm)
	assert.False(t, res.Resolved())
}

func TestResolve_RegistryErrorDoesNotAbortTrials(t *testing.T) {
	f := newFixture(t)
	// Every call errors; the resolver must still finish as a miss.
	f.registry.err = errors.New(errors.ErrCodeRegistryUnavailable, "down")

	res := f.service.Resolve(context.Background(), "CITRIC ACID", "Acids")

	assert.Equal(t, material.IdentifierNotFound, res.Identifier)
	assert.NotEmpty(t, f.registry.calls)
}

func TestResolve_SkipsUnusableTrialTerms(t *testing.T) {
	f := newFixture(t)

	// Sub-category "Oil" normalizes to a blocked term and must not be tried.
	f.service.Resolve(context.Background(), "MYSTERY BLEND X", "Oil")

	for _, term := range f.registry.calls {
		assert.True(t, material.UsableTerm(term), "tried unusable term %q", term)
	}
}

func TestResolve_AssistantCleanFallback(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.cleanTerm = "ASCORBIC ACID"
	f.registry.results["ASCORBIC ACID"] = registry.Result{Identifier: "50-81-7", Synonyms: "ASCORBIC ACID"}

	res := f.service.Resolve(context.Background(), "VIT C RAW MATERIAL", "Vitamins")

	assert.Equal(t, "50-81-7", res.Identifier)
	assert.Equal(t, "AI Clean", res.Source)
	assert.Equal(t, "ASCORBIC ACID (AI Clean)", res.FinalSearchTerm)
}

func TestResolve_AssistantKnowledgeVerified(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.identity = llm.Identity{Identifier: "57-55-6", DescriptiveName: "PROPYLENE GLYCOL"}
	f.registry.results["57-55-6"] = registry.Result{Identifier: "57-55-6", Synonyms: "PROPYLENE GLYCOL"}

	res := f.service.Resolve(context.Background(), "MPG INDUSTRIAL", "Solvents")

	assert.Equal(t, "57-55-6", res.Identifier)
	assert.Equal(t, "AI Verified", res.Source)
	assert.Equal(t, "MPG INDUSTRIAL (AI Verified)", res.FinalSearchTerm)
	assert.Equal(t, "PROPYLENE GLYCOL (AI)", res.DescriptiveName)
}

func TestResolve_AssistantKnowledgeUnverified(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.identity = llm.Identity{Identifier: "9005-25-8"}

	res := f.service.Resolve(context.Background(), "MODIFIED STARCH ZX", "Starches")

	assert.Equal(t, "9005-25-8 (LLM)", res.Identifier)
	assert.Equal(t, "AI Knowledge", res.Source)
	assert.Equal(t, "MODIFIED STARCH ZX (AI Knowledge)", res.FinalSearchTerm)
	assert.Equal(t, material.ConfidenceResolved, res.Confidence)
	assert.True(t, res.Resolved())
}

func TestResolve_RuleEnrichmentComposesCanonicalName(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.params = map[string]string{"CAS": "56-81-5", "Purity": "99.5%"}
	f.rules.bySubCategory["Humectants"] = &rule.CategoryRule{
		SubCategory:    "Humectants",
		IdentifierName: "CAS",
		ParameterOrder: []string{"Purity"},
	}

	res := f.service.Resolve(context.Background(), "GLYCERINE USP 99.5%", "Humectants")

	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "glycerine_cas_56-81-5_purity_99.5%", res.EnrichedDescription)
	assert.Equal(t, res.EnrichedDescription, res.FinalSearchTerm)
	assert.Equal(t, []material.Parameter{
		{Name: "CAS", Value: "56-81-5"},
		{Name: "Purity", Value: "99.5%"},
	}, res.Parameters)
	// The identifier came from extraction, so the registry was never needed.
	assert.Empty(t, f.registry.calls)
}

func TestResolve_EnrichmentSuppressesSearchTermOverwrite(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.params = map[string]string{"Purity": "85%"} // no identifier extracted
	f.rules.bySubCategory["Humectants"] = &rule.CategoryRule{
		SubCategory:    "Humectants",
		IdentifierName: "CAS",
		ParameterOrder: []string{"Purity"},
	}
	f.registry.results["GLYCERINE"] = registry.Result{Identifier: "56-81-5", Synonyms: "N/A"}

	res := f.service.Resolve(context.Background(), "GLYCERINE USP", "Humectants")

	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "Clean Desc", res.Source)
	// The final pass regenerated the enriched name with the settled
	// identifier; the search term keeps the enrichment-stage value since the
	// trial hit never overwrites it.
	assert.Equal(t, "glycerine_cas_56-81-5_purity_85%", res.EnrichedDescription)
	assert.Equal(t, "glycerine_purity_85%", res.FinalSearchTerm)
}

func TestResolve_EnrichedNameComposedWithoutAssistant(t *testing.T) {
	f := newFixture(t)
	f.rules.bySubCategory["Surfactants"] = &rule.CategoryRule{
		SubCategory:    "Surfactants",
		IdentifierName: "CAS",
		ParameterOrder: []string{"Purity"},
	}
	f.registry.results["GLYCERINE"] = registry.Result{Identifier: "56-81-5", Synonyms: "N/A"}

	res := f.service.Resolve(context.Background(), "GLYCERINE USP", "Surfactants")

	// Identifier plus rule is enough: the enriched name composes without any
	// parameter extraction.
	assert.Equal(t, "56-81-5", res.Identifier)
	assert.Equal(t, "glycerine_cas_56-81-5", res.EnrichedDescription)
	assert.Equal(t, "GLYCERINE (Clean Desc)", res.FinalSearchTerm)
	assert.Empty(t, res.Parameters)
}

func TestBuildTrials_Variants(t *testing.T) {
	trials := buildTrials(
		"POLYGLYCEROL ESTER BLEND", "Emulsifiers",
		material.Normalize("POLYGLYCEROL ESTER BLEND"), material.Normalize("Emulsifiers"))

	// All four base candidates come first; spelling variants only after them.
	require.GreaterOrEqual(t, len(trials), 5)
	baseLabels := []string{"Raw Desc", "Raw Sub", "Clean Desc", "Clean Sub"}
	for i, want := range baseLabels {
		assert.Equal(t, want, trials[i].label)
	}

	terms := map[string]string{}
	for _, tr := range trials[len(baseLabels):] {
		assert.Contains(t, tr.label, "(", "expected only variants after the bases, got %q", tr.label)
		terms[tr.label] = tr.term
	}
	assert.Equal(t, "POLYGLYCERYL ESTER BLEND", terms["Raw Desc (Var)"])
	assert.Equal(t, "POLYGLYCEROL BLEND", terms["Raw Desc (No Ester)"])
}

func TestComposeEnrichedName(t *testing.T) {
	tests := []struct {
		name       string
		material   string
		identifier string
		params     []material.Parameter
		want       string
	}{
		{
			name:       "full",
			material:   "Stearic Acid",
			identifier: "57-11-4",
			params: []material.Parameter{
				{Name: "CAS", Value: "57-11-4"},
				{Name: "Grade", Value: "FCC"},
			},
			want: "stearicacid_cas_57-11-4_grade_FCC",
		},
		{
			name:     "no identifier",
			material: "ALPHA-TOCOPHEROL",
			params:   []material.Parameter{{Name: "Purity", Value: "98%"}},
			want:     "alphatocopherol_purity_98%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeEnrichedName(tt.material, "CAS", tt.identifier, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimpleEnrichedName(t *testing.T) {
	assert.Equal(t, "glycerin_cas_56-81-5", SimpleEnrichedName("Glycerin", "56-81-5"))
}

func TestIngest_BrandFanOut(t *testing.T) {
	f := newFixture(t)
	f.registry.results["GLYCERINE"] = registry.Result{Identifier: "56-81-5", Synonyms: "N/A"}

	rows := []material.RawItem{
		{
			RowNumber:   1,
			Description: "GLYCERINE USP",
			SubCategory: "Humectants",
			Brands:      "Acme, Brenntag",
			Region:      "EMEA",
		},
		{
			RowNumber:   2,
			Description: "GLYCERINE USP", // same description, resolved once
			SubCategory: "Humectants",
			Brands:      "",
			Region:      "APAC",
		},
	}

	n, err := f.service.Ingest(context.Background(), "session-7", rows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []common.SessionID{"session-7"}, f.materials.deletedSess)

	require.Len(t, f.materials.created, 3)
	assert.Equal(t, "Acme", f.materials.created[0].Brand)
	assert.Equal(t, "Brenntag", f.materials.created[1].Brand)
	assert.Equal(t, "N/A", f.materials.created[2].Brand)
	for _, rec := range f.materials.created {
		assert.Equal(t, "56-81-5", rec.Identifier)
		assert.Equal(t, material.ValidationPending, rec.ValidationStatus)
	}

	// One resolution for the shared description.
	resolvedCalls := 0
	for _, term := range f.registry.calls {
		if term == "GLYCERINE" {
			resolvedCalls++
		}
	}
	assert.Equal(t, 1, resolvedCalls)
}

func TestIngest_ResolvesPerSubCategory(t *testing.T) {
	f := newFixture(t)
	f.registry.results["GLYCERINE"] = registry.Result{Identifier: "56-81-5", Synonyms: "N/A"}
	f.rules.bySubCategory["Humectants"] = &rule.CategoryRule{
		SubCategory:    "Humectants",
		IdentifierName: "CAS",
		ParameterOrder: []string{"Purity"},
	}

	rows := []material.RawItem{
		{RowNumber: 1, Description: "GLYCERINE USP", SubCategory: "Humectants"},
		{RowNumber: 2, Description: "GLYCERINE USP", SubCategory: "Solvents"},
	}

	n, err := f.service.Ingest(context.Background(), "session-8", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The shared description was resolved once per sub-category, so only the
	// Humectants record carries the rule-based enriched name.
	require.Len(t, f.materials.created, 2)
	assert.Equal(t, "glycerine_cas_56-81-5", f.materials.created[0].EnrichedDescription)
	assert.Empty(t, f.materials.created[1].EnrichedDescription)

	resolvedCalls := 0
	for _, term := range f.registry.calls {
		if term == "GLYCERINE" {
			resolvedCalls++
		}
	}
	assert.Equal(t, 2, resolvedCalls)
}

func TestBulkEnrichment_AppliesStandardizedFormat(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.identity = llm.Identity{Identifier: "56-81-5", DescriptiveName: "Glycerin"}
	f.materials.unenriched = []string{"GLYCERINE USP", "GLYCERINE BP"}

	require.NoError(t, f.service.StartBulkEnrichment())

	require.Eventually(t, func() bool {
		return f.service.EnrichmentProgress().Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	p := f.service.EnrichmentProgress()
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 2, p.Processed)
	assert.Zero(t, p.Errors)
	assert.False(t, p.LastRun.IsZero())
	assert.Equal(t, "glycerin_cas_56-81-5", f.materials.enrichments["GLYCERINE USP"])
	assert.Equal(t, "glycerin_cas_56-81-5", f.materials.enrichments["GLYCERINE BP"])
}

func TestBulkEnrichment_RequiresAssistant(t *testing.T) {
	f := newFixture(t)

	err := f.service.StartBulkEnrichment()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssistantUnavailable))
}

func TestBulkEnrichment_SingleRunAtATime(t *testing.T) {
	f := newFixture(t)
	f.assistant.available = true
	f.assistant.lookups = make(chan string)
	f.materials.unenriched = []string{"GLYCERINE USP"}

	require.NoError(t, f.service.StartBulkEnrichment())

	// The worker is blocked inside the first lookup; a second start conflicts.
	require.Eventually(t, func() bool {
		return f.service.EnrichmentProgress().Status == StatusRunning
	}, 5*time.Second, 10*time.Millisecond)
	err := f.service.StartBulkEnrichment()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEnrichmentRunning))

	<-f.assistant.lookups // release the worker
	require.Eventually(t, func() bool {
		return f.service.EnrichmentProgress().Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}
