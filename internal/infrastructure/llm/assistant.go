// Package llm implements the optional language-model assistant consumed by
// the resolution pipeline.  The assistant is a best-effort collaborator: when
// no API key is configured it reports itself unavailable, and every call site
// branches on that flag instead of probing dynamically.
package llm

import (
	"context"
	"strings"
)

// NotFoundSentinel is the value the model is instructed to emit for fields it
// cannot determine.
const NotFoundSentinel = "NOT FOUND"

// Identity is a direct knowledge-base answer for a material description.
type Identity struct {
	Identifier      string // registry number, or "" when unknown
	DescriptiveName string // INCI-style name, or "" when unknown
}

// Assistant is the capability contract the resolver consumes.  Every
// operation returns its zero value plus an error on failure; callers treat
// errors as "no result" and continue.
type Assistant interface {
	// Available reports whether the assistant can serve calls at all.
	// Determined once at construction.
	Available() bool

	// CleanTerm asks for a single best-guess canonical chemical name for a
	// noisy description.
	CleanTerm(ctx context.Context, text string) (string, error)

	// LookupKnownIdentity asks the model's own knowledge for the registry
	// identifier and descriptive name of a material.
	LookupKnownIdentity(ctx context.Context, text string) (Identity, error)

	// ExtractParameters pulls the named parameters plus the identifier field
	// out of free text.  Missing values are omitted from the result map.
	ExtractParameters(ctx context.Context, text, identifierName string, paramNames []string) (map[string]string, error)

	// VerifyIdentifierInDocument checks whether a document confirms that the
	// material carries the given identifier.
	VerifyIdentifierInDocument(ctx context.Context, text, identifier string) (bool, error)
}

// Unavailable is the Assistant used when no model is configured.  Available
// returns false; the operations exist only to satisfy the interface and are
// never reached by well-behaved callers.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) CleanTerm(context.Context, string) (string, error) {
	return "", errUnavailable
}

func (Unavailable) LookupKnownIdentity(context.Context, string) (Identity, error) {
	return Identity{}, errUnavailable
}

func (Unavailable) ExtractParameters(context.Context, string, string, []string) (map[string]string, error) {
	return nil, errUnavailable
}

func (Unavailable) VerifyIdentifierInDocument(context.Context, string, string) (bool, error) {
	return false, errUnavailable
}

// extractJSONObject returns the substring between the first '{' and the last
// '}' of a model reply, tolerating prose around the JSON payload.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
