package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sheet-importer/internal/domain"
)

// ContactRepo implements importer.ContactRepository against PostgreSQL.
// Rows with a non-empty email upsert on (organization_id, email) so
// re-importing a file refreshes contacts instead of duplicating them.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

func (r *ContactRepo) Insert(ctx context.Context, orgID, sessionID uuid.UUID, record map[string]string) error {
	birthdate, err := nullDate(record["birthdate"], domain.CanonicalDateLayout)
	if err != nil {
		return fmt.Errorf("birthdate: %w", err)
	}
	registeredAt, err := nullDate(record["registered_at"], domain.CanonicalDateTimeLayout)
	if err != nil {
		return fmt.Errorf("registered_at: %w", err)
	}

	q := `
		INSERT INTO contacts
			(id, organization_id, import_session_id, email, first_name, last_name,
			 telephone, company, city, region, country, postal_code, external_id,
			 source, birthdate, registered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())`
	if record["email"] != "" {
		q += `
		ON CONFLICT (organization_id, email) WHERE email <> '' DO UPDATE SET
			import_session_id = EXCLUDED.import_session_id,
			first_name = CASE WHEN EXCLUDED.first_name <> '' THEN EXCLUDED.first_name ELSE contacts.first_name END,
			last_name = CASE WHEN EXCLUDED.last_name <> '' THEN EXCLUDED.last_name ELSE contacts.last_name END,
			telephone = CASE WHEN EXCLUDED.telephone <> '' THEN EXCLUDED.telephone ELSE contacts.telephone END,
			company = CASE WHEN EXCLUDED.company <> '' THEN EXCLUDED.company ELSE contacts.company END,
			city = CASE WHEN EXCLUDED.city <> '' THEN EXCLUDED.city ELSE contacts.city END,
			region = CASE WHEN EXCLUDED.region <> '' THEN EXCLUDED.region ELSE contacts.region END,
			country = CASE WHEN EXCLUDED.country <> '' THEN EXCLUDED.country ELSE contacts.country END,
			postal_code = CASE WHEN EXCLUDED.postal_code <> '' THEN EXCLUDED.postal_code ELSE contacts.postal_code END,
			external_id = CASE WHEN EXCLUDED.external_id <> '' THEN EXCLUDED.external_id ELSE contacts.external_id END,
			source = CASE WHEN EXCLUDED.source <> '' THEN EXCLUDED.source ELSE contacts.source END,
			birthdate = COALESCE(EXCLUDED.birthdate, contacts.birthdate),
			registered_at = COALESCE(EXCLUDED.registered_at, contacts.registered_at),
			updated_at = NOW()`
	}

	_, err = r.db.ExecContext(ctx, q,
		uuid.New(), orgID, sessionID,
		record["email"], record["first_name"], record["last_name"],
		record["telephone"], record["company"], record["city"],
		record["region"], record["country"], record["postal_code"],
		record["external_id"], record["source"], birthdate, registeredAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func nullDate(value, layout string) (sql.NullTime, error) {
	if value == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}
