package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FunctionKind enumerates the closed set of processing functions a field
// rule may apply to a source cell before it lands in the target record.
type FunctionKind string

const (
	FuncNone            FunctionKind = "NONE"
	FuncLeft            FunctionKind = "LEFT"
	FuncRight           FunctionKind = "RIGHT"
	FuncSubstring       FunctionKind = "SUBSTRING"
	FuncExtractDate     FunctionKind = "EXTRACT_DATE"
	FuncExtractDateTime FunctionKind = "EXTRACT_DATETIME"
	FuncSplit           FunctionKind = "SPLIT"
	FuncReplace         FunctionKind = "REPLACE"
	FuncRegexp          FunctionKind = "REGEXP"
)

// Processing is the wire form of a rule's transformation: a function tag plus
// that function's own parameter object. Params are decoded into the typed
// parameter struct for the given function when the rule set is compiled;
// an unknown function or a malformed parameter set fails compilation.
type Processing struct {
	Function FunctionKind    `json:"function"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// FieldRule binds one column of the uploaded file to one slot of the target
// schema. Rules with an empty TargetField or SourceField are inert and
// skipped by the engine.
type FieldRule struct {
	TargetField  string     `json:"target_field"`
	SourceField  string     `json:"source_field"`
	Processing   Processing `json:"processing"`
	DefaultValue string     `json:"default_value,omitempty"`
}

// MappingTemplate is a tenant-scoped, named, ordered set of field rules.
// Templates are immutable per version: an update writes a new version
// rather than mutating rules in place.
type MappingTemplate struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	OrganizationID uuid.UUID   `json:"organization_id" db:"organization_id"`
	Name           string      `json:"name" db:"name"`
	Version        int         `json:"version" db:"version"`
	Rules          []FieldRule `json:"rules" db:"rules"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}
