package resolution

import (
	"strings"

	"github.com/chemlens/chemlens/internal/domain/material"
)

// enrichedNamePart lowercases a name and strips spaces and hyphens, producing
// the compact material-name segment of an enriched description.
func enrichedNamePart(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "")
	return strings.ReplaceAll(name, "-", "")
}

// ComposeEnrichedName builds the canonical enriched description:
// materialname_idname_idvalue_pname_pvalue...  The identifier segment is
// omitted when no identifier is known; parameters appear in their given order.
func ComposeEnrichedName(materialName, identifierName, identifier string, params []material.Parameter) string {
	var b strings.Builder
	b.WriteString(enrichedNamePart(materialName))
	if identifier != "" {
		b.WriteString("_")
		b.WriteString(strings.ToLower(identifierName))
		b.WriteString("_")
		b.WriteString(identifier)
	}
	for _, p := range params {
		if strings.EqualFold(p.Name, identifierName) {
			continue
		}
		b.WriteString("_")
		b.WriteString(strings.ToLower(p.Name))
		b.WriteString("_")
		b.WriteString(p.Value)
	}
	return b.String()
}

// SimpleEnrichedName is the standardized Name_cas_Number format applied by the
// bulk enrichment job.  Both parts must be present; callers check first.
func SimpleEnrichedName(descriptiveName, identifier string) string {
	return enrichedNamePart(descriptiveName) + "_cas_" + identifier
}

// orderedParameters turns an extracted value map into an ordered Parameter
// slice: the identifier field first, then the rule's parameter order.  Fields
// absent from the map are skipped.
func orderedParameters(values map[string]string, identifierName string, paramOrder []string) []material.Parameter {
	var out []material.Parameter
	if v := values[identifierName]; v != "" {
		out = append(out, material.Parameter{Name: identifierName, Value: v})
	}
	for _, name := range paramOrder {
		if v := values[name]; v != "" {
			out = append(out, material.Parameter{Name: name, Value: v})
		}
	}
	return out
}
