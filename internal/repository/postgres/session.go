package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/service/importer"
)

// sessionColumns is the full column list shared by Get and List scans.
const sessionColumns = `
	id, organization_id, initiated_by, template_id, name,
	COALESCE(file_name,''), COALESCE(file_key,''), status, COALESCE(status_details,''),
	total_rows_in_file, rows_successfully_previewed, rows_failed_preview,
	rows_successfully_imported, rows_failed, rows_skipped,
	error_summary, created_at, updated_at`

// SessionRepo implements importer.SessionRepository against PostgreSQL.
type SessionRepo struct{ db *sql.DB }

// NewSessionRepo creates a Postgres-backed session repository.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

func (r *SessionRepo) Create(ctx context.Context, s *domain.ImportSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_sessions
			(id, organization_id, initiated_by, template_id, name, status, status_details,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, s.ID, s.OrganizationID, nullUUID(s.InitiatedBy), nullUUID(s.TemplateID),
		s.Name, s.Status, s.StatusDetails)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.ImportSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM import_sessions
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, importer.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) Update(ctx context.Context, s *domain.ImportSession) error {
	var summary interface{}
	if s.ErrorSummary != nil {
		data, err := json.Marshal(s.ErrorSummary)
		if err != nil {
			return fmt.Errorf("encode error summary: %w", err)
		}
		summary = data
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_sessions SET
			name = $1, file_name = $2, file_key = $3, status = $4, status_details = $5,
			total_rows_in_file = $6, rows_successfully_previewed = $7, rows_failed_preview = $8,
			rows_successfully_imported = $9, rows_failed = $10, rows_skipped = $11,
			error_summary = $12, updated_at = NOW()
		WHERE id = $13 AND organization_id = $14
	`, s.Name, s.FileName, s.FileKey, s.Status, s.StatusDetails,
		s.TotalRowsInFile, s.RowsSuccessfullyPreviewed, s.RowsFailedPreview,
		s.RowsSuccessfullyImported, s.RowsFailed, s.RowsSkipped,
		summary, s.ID, s.OrganizationID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return importer.ErrSessionNotFound
	}
	return nil
}

// sortColumns whitelists user-supplied sort keys.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
	"status":     "status",
}

func (r *SessionRepo) List(ctx context.Context, orgID uuid.UUID, f importer.ListFilter) ([]domain.ImportSession, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "organization_id = $1"
	args := []interface{}{orgID}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR file_name ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+f.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM import_sessions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	sortBy, ok := sortColumns[f.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	order := "DESC"
	if f.SortOrder == "asc" {
		order = "ASC"
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM import_sessions
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, sessionColumns, where, sortBy, order, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.ImportSession, error) {
	s := &domain.ImportSession{}
	var initiatedBy, templateID uuid.NullUUID
	var summary []byte
	err := row.Scan(
		&s.ID, &s.OrganizationID, &initiatedBy, &templateID, &s.Name,
		&s.FileName, &s.FileKey, &s.Status, &s.StatusDetails,
		&s.TotalRowsInFile, &s.RowsSuccessfullyPreviewed, &s.RowsFailedPreview,
		&s.RowsSuccessfullyImported, &s.RowsFailed, &s.RowsSkipped,
		&summary, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if initiatedBy.Valid {
		s.InitiatedBy = &initiatedBy.UUID
	}
	if templateID.Valid {
		s.TemplateID = &templateID.UUID
	}
	if len(summary) > 0 {
		s.ErrorSummary = &domain.ErrorSummary{}
		if err := json.Unmarshal(summary, s.ErrorSummary); err != nil {
			return nil, fmt.Errorf("decode error summary: %w", err)
		}
	}
	return s, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
