package mapping

import (
	"fmt"
	"strings"

	"github.com/ignite/sheet-importer/internal/domain"
)

// MissingField names a template source column that the uploaded file does
// not provide, together with the target field the rule maps it to.
type MissingField struct {
	SourceField string `json:"source_field"`
	TargetField string `json:"target_field"`
	Message     string `json:"message"`
}

// ValidationResult is the outcome of cross-checking a template's rules
// against a file's headers. It is advisory: the validator only reports, and
// the caller decides whether missing fields block the wizard.
type ValidationResult struct {
	FoundFields       []string       `json:"found_fields"`
	MissingFields     []MissingField `json:"missing_fields"`
	UnusedFileHeaders []string       `json:"unused_file_headers"`
	AllRequiredFound  bool           `json:"all_required_found"`
}

// ValidateTemplate computes which of the template's declared source columns
// exist in the file's headers and classifies file headers no rule reads.
// Rules missing a target or source are inert and ignored, matching the
// engine's behavior.
func ValidateTemplate(rules []domain.FieldRule, headers []string) *ValidationResult {
	res := &ValidationResult{
		FoundFields:       []string{},
		MissingFields:     []MissingField{},
		UnusedFileHeaders: []string{},
	}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = true
	}

	used := make(map[string]bool)
	seen := make(map[string]bool)
	for _, rule := range rules {
		if rule.TargetField == "" || rule.SourceField == "" {
			continue
		}
		source := strings.TrimSpace(rule.SourceField)
		if seen[source] {
			continue
		}
		seen[source] = true

		if present[source] {
			res.FoundFields = append(res.FoundFields, source)
			used[source] = true
			continue
		}
		res.MissingFields = append(res.MissingFields, MissingField{
			SourceField: source,
			TargetField: rule.TargetField,
			Message: fmt.Sprintf("template column %q (mapped to %q) was not found in the uploaded file",
				source, rule.TargetField),
		})
	}

	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" && !used[h] {
			res.UnusedFileHeaders = append(res.UnusedFileHeaders, h)
		}
	}

	res.AllRequiredFound = len(res.MissingFields) == 0
	return res
}
