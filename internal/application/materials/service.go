// Package materials is the application service for resolved material records:
// listing and manual edits, plus the validation review flow that confirms a
// resolved identity manually or against an uploaded source document.
package materials

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/internal/domain/rule"
	"github.com/chemlens/chemlens/internal/infrastructure/llm"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// DocStore is the slice of object storage the validation flow needs.
type DocStore interface {
	Put(ctx context.Context, recordID common.ID, docType, filename, contentType string, r io.Reader, size int64) (string, error)
}

// Edit carries the manually editable fields of a record.  Nil pointers leave
// the field unchanged; only these five fields can be edited by hand.
type Edit struct {
	Description         *string `json:"description"`
	EnrichedDescription *string `json:"enriched_description"`
	Identifier          *string `json:"identifier"`
	DescriptiveName     *string `json:"descriptive_name"`
	Synonyms            *string `json:"synonyms"`
}

// Document is one uploaded validation document plus its extracted text.
type Document struct {
	Type        string // e.g. "MSDS", "COA"
	Filename    string
	ContentType string
	Text        string // extracted text used for verification
	Reader      io.Reader
	Size        int64
}

// Service manages resolved records.
type Service interface {
	List(ctx context.Context, f material.Filter) ([]*material.MaterialRecord, error)
	Get(ctx context.Context, id common.ID) (*material.MaterialRecord, error)

	// UpdateEditable applies a manual edit to the record's identity fields.
	UpdateEditable(ctx context.Context, id common.ID, edit Edit) (*material.MaterialRecord, error)

	// ValidateManual marks a record's identity as confirmed by a reviewer.
	ValidateManual(ctx context.Context, id common.ID) (*material.MaterialRecord, error)

	// ValidateDocument verifies a record against an uploaded document,
	// re-extracts parameters from its text, and stores the document.
	ValidateDocument(ctx context.Context, id common.ID, doc Document) (*material.MaterialRecord, error)

	// ReassignParameter rewrites one parameter of a record; an empty value
	// removes it.  The identifier field updates the record's identifier.
	ReassignParameter(ctx context.Context, id common.ID, name, value string) (*material.MaterialRecord, error)

	// RenameValue rewrites one parameter value (or the identifier) across
	// every record of a sub-category.  Backs tree node renames: the node's
	// records all move to the new value.  Returns the number of records
	// changed.
	RenameValue(ctx context.Context, subCategory, name, oldValue, newValue string) (int, error)
}

type service struct {
	materials material.Repository
	rules     rule.Repository
	assistant llm.Assistant
	docs      DocStore
	logger    logging.Logger
}

// NewService wires the record management service.
func NewService(
	materials material.Repository,
	rules rule.Repository,
	assistant llm.Assistant,
	docs DocStore,
	logger logging.Logger,
) Service {
	return &service{
		materials: materials,
		rules:     rules,
		assistant: assistant,
		docs:      docs,
		logger:    logger.Named("materials"),
	}
}

func (s *service) List(ctx context.Context, f material.Filter) ([]*material.MaterialRecord, error) {
	return s.materials.List(ctx, f)
}

func (s *service) Get(ctx context.Context, id common.ID) (*material.MaterialRecord, error) {
	return s.materials.FindByID(ctx, id)
}

func (s *service) UpdateEditable(ctx context.Context, id common.ID, edit Edit) (*material.MaterialRecord, error) {
	rec, err := s.materials.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&rec.Description, edit.Description)
	apply(&rec.EnrichedDescription, edit.EnrichedDescription)
	apply(&rec.Identifier, edit.Identifier)
	apply(&rec.DescriptiveName, edit.DescriptiveName)
	apply(&rec.Synonyms, edit.Synonyms)

	if rec.Description == "" {
		return nil, errors.New(errors.ErrCodeMaterialInvalidField, "description cannot be empty")
	}
	if err := s.materials.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) ValidateManual(ctx context.Context, id common.ID) (*material.MaterialRecord, error) {
	rec, err := s.materials.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Resolved() {
		return nil, errors.New(errors.ErrCodeMaterialInvalidField,
			"cannot validate a record without a resolved identifier")
	}

	rec.Confidence = material.ConfidenceValidated
	rec.ValidationStatus = "Validated (Manual)"
	if err := s.materials.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("record validated manually", logging.String("id", string(rec.ID)))
	return rec, nil
}

func (s *service) ValidateDocument(ctx context.Context, id common.ID, doc Document) (*material.MaterialRecord, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, errors.New(errors.ErrCodeValidationDocRejected, "document has no extractable text")
	}

	rec, err := s.materials.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Re-extract identity and parameters from the document; the document is
	// a better source than the original line item.
	if s.assistant.Available() {
		s.applyDocumentExtraction(ctx, rec, doc.Text)
	}

	verified := false
	if s.assistant.Available() && rec.Resolved() {
		ok, err := s.assistant.VerifyIdentifierInDocument(ctx, doc.Text, rec.CleanIdentifier())
		if err != nil {
			s.logger.Warn("document verification failed", logging.Err(err))
		} else {
			verified = ok
		}
	}
	if !verified {
		return nil, errors.New(errors.ErrCodeValidationDocRejected,
			"document does not confirm the record's identifier")
	}

	if s.docs == nil {
		return nil, errors.New(errors.ErrCodeExternalService, "document storage is not configured")
	}
	key, err := s.docs.Put(ctx, rec.ID, doc.Type, doc.Filename, doc.ContentType, doc.Reader, doc.Size)
	if err != nil {
		return nil, err
	}
	rec.ValidationDocs = append(rec.ValidationDocs, material.DocRef{Type: strings.ToUpper(doc.Type), Path: key})
	rec.Confidence = material.ConfidenceValidated
	rec.ValidationStatus = fmt.Sprintf("Validated (%d docs)", len(rec.ValidationDocs))

	if err := s.materials.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("record validated by document",
		logging.String("id", string(rec.ID)),
		logging.String("doc", key))
	return rec, nil
}

// applyDocumentExtraction updates the record's identifier, parameters, and
// enriched description from document text.  Extraction failures leave the
// record as it was.
func (s *service) applyDocumentExtraction(ctx context.Context, rec *material.MaterialRecord, text string) {
	stored, err := s.rules.FindBySubCategory(ctx, rec.SubCategory)
	if err != nil && !errors.IsCode(err, errors.ErrCodeRuleNotFound) {
		s.logger.Warn("rule lookup failed", logging.Err(err))
	}
	cfg := rule.Resolve(rec.SubCategory, stored)

	extracted, err := s.assistant.ExtractParameters(ctx, text, cfg.IdentifierName, cfg.ParameterOrder)
	if err != nil {
		s.logger.Debug("document extraction failed", logging.Err(err))
		return
	}
	if id := extracted[cfg.IdentifierName]; id != "" {
		rec.Identifier = id
	}
	for _, name := range cfg.ParameterOrder {
		if v := extracted[name]; v != "" {
			rec.SetParameter(name, v)
		}
	}
	if rec.Resolved() {
		rec.EnrichedDescription = resolution.ComposeEnrichedName(
			material.Normalize(rec.Description), cfg.IdentifierName, rec.CleanIdentifier(), rec.Parameters)
	}
}

func (s *service) ReassignParameter(ctx context.Context, id common.ID, name, value string) (*material.MaterialRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New(errors.ErrCodeMaterialInvalidField, "parameter name is required")
	}

	rec, err := s.materials.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stored, err := s.rules.FindBySubCategory(ctx, rec.SubCategory)
	if err != nil && !errors.IsCode(err, errors.ErrCodeRuleNotFound) {
		return nil, err
	}
	cfg := rule.Resolve(rec.SubCategory, stored)

	if strings.EqualFold(name, cfg.IdentifierName) {
		rec.Identifier = strings.TrimSpace(value)
		if rec.Identifier == "" {
			rec.Identifier = material.IdentifierNotFound
		}
		if err := s.materials.Update(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if strings.TrimSpace(value) == "" {
		kept := rec.Parameters[:0]
		for _, p := range rec.Parameters {
			if !strings.EqualFold(p.Name, name) {
				kept = append(kept, p)
			}
		}
		rec.Parameters = kept
	} else {
		rec.SetParameter(name, strings.TrimSpace(value))
	}

	if err := s.materials.ReplaceParameters(ctx, rec.ID, rec.Parameters); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) RenameValue(ctx context.Context, subCategory, name, oldValue, newValue string) (int, error) {
	name = strings.TrimSpace(name)
	newValue = strings.TrimSpace(newValue)
	if name == "" || newValue == "" {
		return 0, errors.New(errors.ErrCodeMaterialInvalidField,
			"parameter name and new value are required")
	}

	stored, err := s.rules.FindBySubCategory(ctx, subCategory)
	if err != nil && !errors.IsCode(err, errors.ErrCodeRuleNotFound) {
		return 0, err
	}
	cfg := rule.Resolve(subCategory, stored)

	recs, err := s.materials.List(ctx, material.Filter{SubCategory: subCategory})
	if err != nil {
		return 0, err
	}

	isIdentifier := strings.EqualFold(name, cfg.IdentifierName)
	renamed := 0
	for _, rec := range recs {
		switch {
		case isIdentifier:
			if !strings.EqualFold(rec.CleanIdentifier(), oldValue) {
				continue
			}
			rec.Identifier = newValue
			if err := s.materials.Update(ctx, rec); err != nil {
				return renamed, err
			}
		default:
			if !strings.EqualFold(rec.Parameter(name), oldValue) {
				continue
			}
			rec.SetParameter(name, newValue)
			if err := s.materials.ReplaceParameters(ctx, rec.ID, rec.Parameters); err != nil {
				return renamed, err
			}
		}
		renamed++
	}
	s.logger.Info("node value renamed",
		logging.String("sub_category", subCategory),
		logging.String("name", name),
		logging.Int("records", renamed))
	return renamed, nil
}
