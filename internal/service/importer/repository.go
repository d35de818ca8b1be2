package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/sheet-importer/internal/domain"
)

// SessionRepository defines the data access contract for import sessions.
// Implementations must be safe for concurrent use.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *domain.ImportSession) error

	// Get returns a single session. Returns ErrSessionNotFound if it
	// doesn't exist within the organization.
	Get(ctx context.Context, orgID, id uuid.UUID) (*domain.ImportSession, error)

	// Update persists the session's mutable fields (status, counters,
	// error summary, file reference, status details).
	Update(ctx context.Context, s *domain.ImportSession) error

	// List returns sessions matching the filter, newest first, plus the
	// total count before pagination.
	List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]domain.ImportSession, int, error)
}

// ContactRepository persists normalized records into the target store.
type ContactRepository interface {
	// Insert persists one normalized record. Per-row failures surface as
	// errors; the lifecycle manager decides whether a failure is a bad
	// row or a systemic outage.
	Insert(ctx context.Context, orgID, sessionID uuid.UUID, record map[string]string) error
}

// ObjectStore holds uploaded file bytes between stage and commit.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ListFilter controls search, ordering, and pagination for session lists.
type ListFilter struct {
	Search    string
	SortBy    string // created_at | updated_at | status
	SortOrder string // asc | desc
	Limit     int
	Offset    int
}
