package postgres

import (
	"database/sql"
	"fmt"
)

// EnsureSchema creates the import tables when they do not exist yet.
// Idempotent; called once at startup.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS import_templates (
			id UUID PRIMARY KEY,
			organization_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			version INT NOT NULL DEFAULT 1,
			rules JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (organization_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS import_sessions (
			id UUID PRIMARY KEY,
			organization_id UUID NOT NULL,
			initiated_by UUID,
			template_id UUID,
			name VARCHAR(500) NOT NULL,
			file_name VARCHAR(500) DEFAULT '',
			file_key VARCHAR(1000) DEFAULT '',
			status VARCHAR(50) NOT NULL DEFAULT 'initiated',
			status_details TEXT DEFAULT '',
			total_rows_in_file INT DEFAULT 0,
			rows_successfully_previewed INT DEFAULT 0,
			rows_failed_preview INT DEFAULT 0,
			rows_successfully_imported INT DEFAULT 0,
			rows_failed INT DEFAULT 0,
			rows_skipped INT DEFAULT 0,
			error_summary JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_sessions_org_created
			ON import_sessions (organization_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY,
			organization_id UUID NOT NULL,
			import_session_id UUID,
			email VARCHAR(320) DEFAULT '',
			first_name VARCHAR(255) DEFAULT '',
			last_name VARCHAR(255) DEFAULT '',
			telephone VARCHAR(50) DEFAULT '',
			company VARCHAR(255) DEFAULT '',
			city VARCHAR(255) DEFAULT '',
			region VARCHAR(255) DEFAULT '',
			country VARCHAR(255) DEFAULT '',
			postal_code VARCHAR(50) DEFAULT '',
			external_id VARCHAR(255) DEFAULT '',
			source VARCHAR(255) DEFAULT '',
			birthdate DATE,
			registered_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_org_email
			ON contacts (organization_id, email) WHERE email <> ''`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
