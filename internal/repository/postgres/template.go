package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/service/template"
)

// TemplateRepo implements template.Repository against PostgreSQL.
// Rules are stored as a JSONB array in the shape they travel over the API.
type TemplateRepo struct{ db *sql.DB }

// NewTemplateRepo creates a Postgres-backed template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func (r *TemplateRepo) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.MappingTemplate, error) {
	t := &domain.MappingTemplate{}
	var rules []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, version, rules, created_at, updated_at
		FROM import_templates
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Version, &rules, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, template.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if err := json.Unmarshal(rules, &t.Rules); err != nil {
		return nil, fmt.Errorf("decode template rules: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, orgID uuid.UUID) ([]domain.MappingTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, version, rules, created_at, updated_at
		FROM import_templates
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.MappingTemplate
	for rows.Next() {
		var t domain.MappingTemplate
		var rules []byte
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Version, &rules, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if err := json.Unmarshal(rules, &t.Rules); err != nil {
			return nil, fmt.Errorf("decode template rules: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TemplateRepo) Create(ctx context.Context, t *domain.MappingTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	rules, err := json.Marshal(t.Rules)
	if err != nil {
		return fmt.Errorf("encode template rules: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO import_templates (id, organization_id, name, version, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, t.ID, t.OrganizationID, t.Name, t.Version, rules)
	if isUniqueViolation(err) {
		return template.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) Update(ctx context.Context, t *domain.MappingTemplate) error {
	rules, err := json.Marshal(t.Rules)
	if err != nil {
		return fmt.Errorf("encode template rules: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_templates
		SET name = $1, version = $2, rules = $3, updated_at = NOW()
		WHERE id = $4 AND organization_id = $5
	`, t.Name, t.Version, rules, t.ID, t.OrganizationID)
	if isUniqueViolation(err) {
		return template.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM import_templates WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return template.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
