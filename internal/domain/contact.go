package domain

import (
	"time"

	"github.com/google/uuid"
)

// Contact is the fixed target schema that normalized rows are imported into.
// Every slot of the schema corresponds to one target field key in the
// mapping catalog; fields with no bound rule stay at their zero value.
type Contact struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	SessionID      uuid.UUID  `json:"session_id" db:"session_id"`
	Email          string     `json:"email" db:"email"`
	FirstName      string     `json:"first_name" db:"first_name"`
	LastName       string     `json:"last_name" db:"last_name"`
	Telephone      string     `json:"telephone" db:"telephone"`
	Company        string     `json:"company" db:"company"`
	City           string     `json:"city" db:"city"`
	Region         string     `json:"region" db:"region"`
	Country        string     `json:"country" db:"country"`
	PostalCode     string     `json:"postal_code" db:"postal_code"`
	ExternalID     string     `json:"external_id" db:"external_id"`
	Source         string     `json:"source" db:"source"`
	Birthdate      *time.Time `json:"birthdate" db:"birthdate"`
	RegisteredAt   *time.Time `json:"registered_at" db:"registered_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Canonical layouts produced by the rule engine for date-valued fields.
// The repository layer parses these back when persisting contacts.
const (
	CanonicalDateLayout     = "2006-01-02"
	CanonicalDateTimeLayout = time.RFC3339
)
