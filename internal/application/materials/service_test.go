package materials

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

type fakeMaterials struct {
	byID           map[common.ID]*material.MaterialRecord
	replacedParams map[common.ID][]material.Parameter
}

func newFakeMaterials(recs ...*material.MaterialRecord) *fakeMaterials {
	f := &fakeMaterials{
		byID:           map[common.ID]*material.MaterialRecord{},
		replacedParams: map[common.ID][]material.Parameter{},
	}
	for _, r := range recs {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeMaterials) Create(_ context.Context, r *material.MaterialRecord) error {
	f.byID[r.ID] = r
	return nil
}

func (f *fakeMaterials) CreateBatch(ctx context.Context, recs []*material.MaterialRecord) error {
	for _, r := range recs {
		if err := f.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeMaterials) Update(_ context.Context, r *material.MaterialRecord) error {
	if _, ok := f.byID[r.ID]; !ok {
		return errors.New(errors.ErrCodeMaterialNotFound, "not found")
	}
	f.byID[r.ID] = r
	return nil
}

func (f *fakeMaterials) FindByID(_ context.Context, id common.ID) (*material.MaterialRecord, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeMaterialNotFound, "not found")
	}
	return r, nil
}

func (f *fakeMaterials) FindByDescription(context.Context, string, string) (*material.MaterialRecord, error) {
	return nil, errors.New(errors.ErrCodeMaterialNotFound, "not found")
}

func (f *fakeMaterials) List(_ context.Context, flt material.Filter) ([]*material.MaterialRecord, error) {
	var out []*material.MaterialRecord
	for _, r := range f.byID {
		if flt.SubCategory != "" && r.SubCategory != flt.SubCategory {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeMaterials) ListSubCategories(context.Context) ([]string, error) { return nil, nil }

func (f *fakeMaterials) ListUnenrichedDescriptions(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeMaterials) UpdateEnrichment(context.Context, string, string, string) (int64, error) {
	return 0, nil
}

func (f *fakeMaterials) ReplaceParameters(_ context.Context, id common.ID, params []material.Parameter) error {
	f.replacedParams[id] = params
	return nil
}

func (f *fakeMaterials) DeleteSession(context.Context, common.SessionID) error { return nil }

type fakeRules struct {
	stored *rule.CategoryRule
}

func (f *fakeRules) Upsert(context.Context, *rule.CategoryRule) error { return nil }

func (f *fakeRules) FindBySubCategory(context.Context, string) (*rule.CategoryRule, error) {
	if f.stored == nil {
		return nil, errors.New(errors.ErrCodeRuleNotFound, "no rule")
	}
	return f.stored, nil
}

func (f *fakeRules) List(context.Context) ([]*rule.CategoryRule, error) { return nil, nil }
func (f *fakeRules) Delete(context.Context, common.ID) error            { return nil }

type fakeAssistant struct {
	available bool
	verify    bool
	verifyErr error
	params    map[string]string
}

func (f *fakeAssistant) Available() bool { return f.available }

func (f *fakeAssistant) CleanTerm(context.Context, string) (string, error) { return "", nil }

func (f *fakeAssistant) LookupKnownIdentity(context.Context, string) (llm.Identity, error) {
	return llm.Identity{}, nil
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
	return f.verify, f.verifyErr
}

type fakeDocs struct {
	keys []string
	err  error
}

func (f *fakeDocs) Put(_ context.Context, recordID common.ID, docType, filename, _ string, _ io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := string(recordID) + "/" + strings.ToUpper(docType) + "/" + filename
	f.keys = append(f.keys, key)
	return key, nil
}

func testRecord() *material.MaterialRecord {
	return &material.MaterialRecord{
		BaseEntity:       common.BaseEntity{ID: "rec-1"},
		Description:      "GLYCERINE USP",
		SubCategory:      "Humectants",
		Identifier:       "56-81-5",
		DescriptiveName:  "GLYCERIN",
		Synonyms:         "Glycerol",
		Confidence:       material.ConfidenceResolved,
		ValidationStatus: material.ValidationPending,
	}
}

type fixture struct {
	materials *fakeMaterials
	rules     *fakeRules
	assistant *fakeAssistant
	docs      *fakeDocs
	service   Service
}

func newFixture(t *testing.T, recs ...*material.MaterialRecord) *fixture {
	t.Helper()
	f := &fixture{
		materials: newFakeMaterials(recs...),
		rules:     &fakeRules{},
		assistant: &fakeAssistant{},
		docs:      &fakeDocs{},
	}
	f.service = NewService(f.materials, f.rules, f.assistant, f.docs, logging.NewNopLogger())
	return f
}

func strPtr(s string) *string { return &s }

func TestUpdateEditable(t *testing.T) {
	f := newFixture(t, testRecord())

	rec, err := f.service.UpdateEditable(context.Background(), "rec-1", Edit{
		Identifier:      strPtr("57-55-6"),
		DescriptiveName: strPtr("PROPYLENE GLYCOL"),
	})
	require.NoError(t, err)
	assert.Equal(t, "57-55-6", rec.Identifier)
	assert.Equal(t, "PROPYLENE GLYCOL", rec.DescriptiveName)
	// Untouched fields survive.
	assert.Equal(t, "GLYCERINE USP", rec.Description)
}

func TestUpdateEditable_RejectsEmptyDescription(t *testing.T) {
	f := newFixture(t, testRecord())

	_, err := f.service.UpdateEditable(context.Background(), "rec-1", Edit{
		Description: strPtr("   "),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMaterialInvalidField))
}

func TestValidateManual(t *testing.T) {
	f := newFixture(t, testRecord())

	rec, err := f.service.ValidateManual(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, material.ConfidenceValidated, rec.Confidence)
	assert.Equal(t, "Validated (Manual)", rec.ValidationStatus)
}

func TestValidateManual_RequiresResolvedIdentifier(t *testing.T) {
	rec := testRecord()
	rec.Identifier = material.IdentifierNotFound
	f := newFixture(t, rec)

	_, err := f.service.ValidateManual(context.Background(), "rec-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMaterialInvalidField))
}

func TestValidateDocument_VerifiedAndStored(t *testing.T) {
	f := newFixture(t, testRecord())
	f.assistant.available = true
	f.assistant.verify = true
	f.assistant.params = map[string]string{"CAS": "56-81-5", "Purity": "99.5%"}
	f.rules.stored = &rule.CategoryRule{
		SubCategory:    "Humectants",
		IdentifierName: "CAS",
		ParameterOrder: []string{"Purity"},
	}

	rec, err := f.service.ValidateDocument(context.Background(), "rec-1", Document{
		Type:     "msds",
		Filename: "glycerine-msds.pdf",
		Text:     "Safety data sheet. CAS No. 56-81-5. Purity 99.5%.",
		Reader:   strings.NewReader("%PDF-"),
		Size:     5,
	})
	require.NoError(t, err)

	assert.Equal(t, material.ConfidenceValidated, rec.Confidence)
	assert.Equal(t, "Validated (1 docs)", rec.ValidationStatus)
	require.Len(t, rec.ValidationDocs, 1)
	assert.Equal(t, "MSDS", rec.ValidationDocs[0].Type)
	assert.Equal(t, "99.5%", rec.Parameter("Purity"))
	assert.Equal(t, "glycerine_cas_56-81-5_purity_99.5%", rec.EnrichedDescription)
	assert.Len(t, f.docs.keys, 1)
}

func TestValidateDocument_RejectedWhenNotConfirmed(t *testing.T) {
	f := newFixture(t, testRecord())
	f.assistant.available = true
	f.assistant.verify = false

	_, err := f.service.ValidateDocument(context.Background(), "rec-1", Document{
		Type:     "coa",
		Filename: "coa.pdf",
		Text:     "Certificate of analysis for a different material.",
		Reader:   strings.NewReader("x"),
		Size:     1,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationDocRejected))
	assert.Empty(t, f.docs.keys)
}

func TestValidateDocument_RejectsEmptyText(t *testing.T) {
	f := newFixture(t, testRecord())

	_, err := f.service.ValidateDocument(context.Background(), "rec-1", Document{Text: "  "})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationDocRejected))
}

func TestReassignParameter(t *testing.T) {
	rec := testRecord()
	rec.Parameters = []material.Parameter{{Name: "Purity", Value: "85%"}}
	f := newFixture(t, rec)

	got, err := f.service.ReassignParameter(context.Background(), "rec-1", "Purity", "99%")
	require.NoError(t, err)
	assert.Equal(t, "99%", got.Parameter("Purity"))
	assert.Equal(t, got.Parameters, f.materials.replacedParams["rec-1"])

	// Empty value removes the parameter.
	got, err = f.service.ReassignParameter(context.Background(), "rec-1", "Purity", "")
	require.NoError(t, err)
	assert.Equal(t, material.ValueNA, got.Parameter("Purity"))
}

func TestReassignParameter_IdentifierField(t *testing.T) {
	f := newFixture(t, testRecord())

	got, err := f.service.ReassignParameter(context.Background(), "rec-1", "CAS", "64-17-5")
	require.NoError(t, err)
	assert.Equal(t, "64-17-5", got.Identifier)

	got, err = f.service.ReassignParameter(context.Background(), "rec-1", "CAS", "")
	require.NoError(t, err)
	assert.Equal(t, material.IdentifierNotFound, got.Identifier)
}

func TestRenameValue(t *testing.T) {
	a := testRecord()
	a.SetParameter("Grade", "Tech")
	b := testRecord()
	b.ID = "rec-2"
	b.SetParameter("Grade", "USP")
	other := testRecord()
	other.ID = "rec-3"
	other.SubCategory = "Surfactants"
	other.SetParameter("Grade", "Tech")
	f := newFixture(t, a, b, other)

	n, err := f.service.RenameValue(context.Background(), "Humectants", "Grade", "Tech", "Technical")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Technical", a.Parameter("Grade"))
	assert.Equal(t, "USP", b.Parameter("Grade"))
	// Other sub-categories are untouched.
	assert.Equal(t, "Tech", other.Parameter("Grade"))
	assert.Equal(t, a.Parameters, f.materials.replacedParams["rec-1"])
}

func TestRenameValue_IdentifierField(t *testing.T) {
	f := newFixture(t, testRecord())

	n, err := f.service.RenameValue(context.Background(), "Humectants", "CAS", "56-81-5", "57-55-6")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "57-55-6", f.materials.byID["rec-1"].Identifier)
}

func TestRenameValue_RequiresNameAndValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RenameValue(context.Background(), "Humectants", "", "a", "b")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMaterialInvalidField))
}
