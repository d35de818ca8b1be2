package mapping

import (
	"strings"

	"github.com/ignite/sheet-importer/internal/domain"
)

// headerAliases maps normalized header spellings to target field keys, used
// to draft rules from a bare header list before a template exists.
var headerAliases = map[string][]string{
	"email":       {"email", "email_address", "e_mail", "emailaddress", "mail"},
	"first_name":  {"first_name", "firstname", "first", "fname", "given_name"},
	"last_name":   {"last_name", "lastname", "last", "lname", "surname", "family_name"},
	"telephone":   {"telephone", "phone", "phone_number", "mobile", "cell", "tel", "телефон"},
	"company":     {"company", "company_name", "organization", "organisation", "org"},
	"city":        {"city", "town", "город"},
	"region":      {"region", "state", "province", "state_province"},
	"country":     {"country", "country_code", "nation"},
	"postal_code": {"postal_code", "postalcode", "zip", "zipcode", "zip_code", "postcode"},
	"external_id": {"external_id", "id", "subscriber_id", "customer_id"},
	"source":      {"source", "lead_source", "origin", "signup_source"},
	"birthdate":   {"birthdate", "birth_date", "birthday", "dob", "date_of_birth"},
}

// Suggestion is a drafted rule for one file header. Confidence is "high"
// for exact key matches, "medium" for alias matches, "none" otherwise.
type Suggestion struct {
	ColumnIndex    int    `json:"column_index"`
	OriginalHeader string `json:"original_header"`
	TargetField    string `json:"target_field,omitempty"`
	Confidence     string `json:"confidence"`
}

// SuggestRules proposes a target field per header by alias matching against
// the catalog. Suggestions are advisory; they seed the template editor and
// never bypass rule compilation.
func (c *Catalog) SuggestRules(headers []string) []Suggestion {
	out := make([]Suggestion, len(headers))
	for i, header := range headers {
		s := Suggestion{ColumnIndex: i, OriginalHeader: header, Confidence: "none"}
		normalized := normalizeHeader(header)

		if _, ok := c.Field(normalized); ok {
			s.TargetField = normalized
			s.Confidence = "high"
		} else {
			for target, aliases := range headerAliases {
				if _, known := c.Field(target); !known {
					continue
				}
				for _, alias := range aliases {
					if normalized == alias {
						s.TargetField = target
						s.Confidence = "medium"
						break
					}
				}
				if s.TargetField != "" {
					break
				}
			}
		}
		out[i] = s
	}
	return out
}

// DraftRules converts suggestions into pass-through field rules, skipping
// headers with no suggested target. When two headers suggest the same
// target, the first wins so the draft still compiles.
func DraftRules(suggestions []Suggestion) []domain.FieldRule {
	var rules []domain.FieldRule
	taken := make(map[string]bool)
	for _, s := range suggestions {
		if s.TargetField == "" || taken[s.TargetField] {
			continue
		}
		taken[s.TargetField] = true
		rules = append(rules, domain.FieldRule{
			TargetField: s.TargetField,
			SourceField: s.OriginalHeader,
			Processing:  domain.Processing{Function: domain.FuncNone},
		})
	}
	return rules
}

func normalizeHeader(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return normalized
}
