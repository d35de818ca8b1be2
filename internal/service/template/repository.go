package template

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/sheet-importer/internal/domain"
)

// Repository defines the data access contract for mapping templates.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single template. Returns ErrNotFound if it doesn't
	// exist within the organization.
	Get(ctx context.Context, orgID, id uuid.UUID) (*domain.MappingTemplate, error)

	// List returns all templates for the organization, newest first.
	List(ctx context.Context, orgID uuid.UUID) ([]domain.MappingTemplate, error)

	// Create inserts a new template at version 1.
	Create(ctx context.Context, t *domain.MappingTemplate) error

	// Update replaces the template's name and rules and bumps its
	// version. Templates are immutable per version.
	Update(ctx context.Context, t *domain.MappingTemplate) error

	// Delete removes a template.
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}
