// Package material defines the core domain model for procurement line items:
// the immutable raw input row, the resolved material record, and the
// deterministic text normalization used to derive registry search terms.
package material

import (
	"strings"

	"github.com/chemlens/chemlens/pkg/types/common"
)

// Sentinel values used throughout the resolution pipeline.
const (
	// IdentifierNotFound marks a record whose registry identity could not be
	// resolved.  It is a valid terminal state, not an error.
	IdentifierNotFound = "NOT FOUND"

	// ValueNA marks an absent descriptive name, synonym set, or parameter.
	ValueNA = "N/A"
)

// Validation status lifecycle for a MaterialRecord.
const (
	ValidationPending   = "Pending"
	ValidationValidated = "Validated"
	ValidationRejected  = "Rejected"
)

// Confidence defaults assigned by the resolver and validation flow.
const (
	ConfidenceResolved  = 70  // identifier found by registry or assistant
	ConfidenceNone      = 0   // identifier not found
	ConfidenceValidated = 100 // identifier confirmed against a source document
)

// RawItem is one row of an uploaded procurement file, exactly as ingested.
// A single RawItem may fan out into several MaterialRecords when the brand
// column lists multiple comma-separated brands.
type RawItem struct {
	RowNumber   int               `json:"row_number"`
	Description string            `json:"description"`
	SubCategory string            `json:"sub_category"`
	Commodity   string            `json:"commodity"`
	Brands      string            `json:"brands"` // raw, possibly comma-separated
	ItemCode    string            `json:"item_code"`
	Plant       string            `json:"plant"`
	Region      string            `json:"region"`
	Cluster     string            `json:"cluster"`
	Quantity    float64           `json:"quantity"`
	SpendValue  float64           `json:"spend_value"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// SplitBrands returns the individual brand names of a raw row, one entry per
// comma-separated token.  An empty or "N/A" brands column yields a single
// "N/A" entry so that the row still produces exactly one record.
func (r RawItem) SplitBrands() []string {
	raw := strings.TrimSpace(r.Brands)
	if raw == "" || raw == ValueNA {
		return []string{ValueNA}
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return []string{ValueNA}
	}
	return out
}

// Parameter is one named descriptive attribute extracted for a record,
// e.g. ("Purity", "85%").  Order is significant: it mirrors the category
// rule's parameter order and drives hierarchy depth.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MaterialRecord is the persisted outcome of resolving one RawItem for one
// brand.  Records are mutated by manual edits, validation review, and
// re-extraction; they are deleted only when a whole session is re-ingested.
type MaterialRecord struct {
	common.BaseEntity

	SessionID common.SessionID `json:"session_id"`
	RowNumber int              `json:"row_number"`

	Commodity   string `json:"commodity"`
	SubCategory string `json:"sub_category"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	ItemCode    string `json:"item_code"`
	Plant       string `json:"plant"`
	Region      string `json:"region"`
	Cluster     string `json:"cluster"`

	EnrichedDescription string `json:"enriched_description"`
	FinalSearchTerm     string `json:"final_search_term"`
	Identifier          string `json:"identifier"`       // registry number or IdentifierNotFound
	DescriptiveName     string `json:"descriptive_name"` // INCI-style name or ValueNA
	Synonyms            string `json:"synonyms"`         // "|"-joined registry synonyms or ValueNA

	Confidence       int     `json:"confidence"`
	ValidationStatus string  `json:"validation_status"`
	ValidationDocs   []DocRef `json:"validation_docs,omitempty"`

	Quantity   float64 `json:"quantity"`
	SpendValue float64 `json:"spend_value"`

	Parameters []Parameter `json:"parameters"`
}

// DocRef points at a validation document stored in object storage.
type DocRef struct {
	Type string `json:"type"` // e.g. "MSDS", "COA"
	Path string `json:"path"` // object key within the validation bucket
}

// Resolved reports whether the record carries a usable registry identifier.
// Unverified assistant-supplied identifiers (suffixed markers) still count.
func (m *MaterialRecord) Resolved() bool {
	return m.Identifier != "" && !strings.Contains(m.Identifier, IdentifierNotFound)
}

// CleanIdentifier strips any trailing annotation (e.g. an unverified-source
// marker) from the identifier, yielding the bare registry number.
func (m *MaterialRecord) CleanIdentifier() string {
	id := m.Identifier
	if i := strings.IndexByte(id, '('); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(id)
}

// DisplayName returns the name shown in tree leaves: the enriched description
// when present, falling back to the raw description.
func (m *MaterialRecord) DisplayName() string {
	if m.EnrichedDescription != "" {
		return m.EnrichedDescription
	}
	return m.Description
}

// Parameter returns the value of the named parameter, or ValueNA when unset.
func (m *MaterialRecord) Parameter(name string) string {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p.Value
		}
	}
	return ValueNA
}

// SetParameter upserts a parameter value, preserving insertion order.
func (m *MaterialRecord) SetParameter(name, value string) {
	for i, p := range m.Parameters {
		if p.Name == name {
			m.Parameters[i].Value = value
			return
		}
	}
	m.Parameters = append(m.Parameters, Parameter{Name: name, Value: value})
}
