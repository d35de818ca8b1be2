// Package mapping implements the field-mapping rule engine and the template
// validator: it evaluates an ordered set of field rules against tabulated
// rows, applying one transformation function per rule, and cross-checks a
// template's declared source columns against an uploaded file's headers.
package mapping

import (
	"github.com/ignite/sheet-importer/internal/domain"
)

// FieldType describes what kind of value a target field holds. It decides
// which processing functions the field legally accepts.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
)

// TargetField is one slot of the fixed target schema: a key, a human label,
// and the closed set of transformation functions it accepts.
type TargetField struct {
	Key       string                `json:"key"`
	Label     string                `json:"label"`
	Type      FieldType             `json:"type"`
	Functions []domain.FunctionKind `json:"functions"`
}

// Catalog is the immutable target-field configuration table. It is built
// once at process start and injected into the engine and validator; nothing
// mutates it afterwards.
type Catalog struct {
	fields []TargetField
	byKey  map[string]TargetField
}

// NewCatalog builds a catalog from an ordered field list.
func NewCatalog(fields []TargetField) *Catalog {
	c := &Catalog{fields: fields, byKey: make(map[string]TargetField, len(fields))}
	for _, f := range fields {
		c.byKey[f.Key] = f
	}
	return c
}

// Fields returns the catalog in declaration order.
func (c *Catalog) Fields() []TargetField { return c.fields }

// Field looks up a target field by key.
func (c *Catalog) Field(key string) (TargetField, bool) {
	f, ok := c.byKey[key]
	return f, ok
}

// Accepts reports whether the target field legally accepts the function.
func (f TargetField) Accepts(kind domain.FunctionKind) bool {
	for _, k := range f.Functions {
		if k == kind {
			return true
		}
	}
	return false
}

var textFuncs = []domain.FunctionKind{
	domain.FuncNone, domain.FuncLeft, domain.FuncRight, domain.FuncSubstring,
	domain.FuncSplit, domain.FuncReplace, domain.FuncRegexp,
}

// DefaultCatalog returns the standard contact target schema.
func DefaultCatalog() *Catalog {
	dateFuncs := []domain.FunctionKind{domain.FuncNone, domain.FuncExtractDate}
	dateTimeFuncs := []domain.FunctionKind{domain.FuncNone, domain.FuncExtractDateTime}

	return NewCatalog([]TargetField{
		{Key: "email", Label: "Email Address", Type: TypeEmail, Functions: textFuncs},
		{Key: "first_name", Label: "First Name", Type: TypeString, Functions: textFuncs},
		{Key: "last_name", Label: "Last Name", Type: TypeString, Functions: textFuncs},
		{Key: "telephone", Label: "Phone Number", Type: TypePhone, Functions: textFuncs},
		{Key: "company", Label: "Company Name", Type: TypeString, Functions: textFuncs},
		{Key: "city", Label: "City", Type: TypeString, Functions: textFuncs},
		{Key: "region", Label: "State/Region", Type: TypeString, Functions: textFuncs},
		{Key: "country", Label: "Country", Type: TypeString, Functions: textFuncs},
		{Key: "postal_code", Label: "Postal/ZIP Code", Type: TypeString, Functions: textFuncs},
		{Key: "external_id", Label: "External ID", Type: TypeString, Functions: textFuncs},
		{Key: "source", Label: "Source", Type: TypeString, Functions: textFuncs},
		{Key: "birthdate", Label: "Birth Date", Type: TypeDate, Functions: dateFuncs},
		{Key: "registered_at", Label: "Registration Date", Type: TypeDateTime, Functions: dateTimeFuncs},
	})
}
