package template

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/mapping"
)

// Service implements template business logic on top of a Repository and the
// immutable target-field catalog.
type Service struct {
	repo    Repository
	catalog *mapping.Catalog
}

// NewService creates a template service backed by the given repository.
func NewService(repo Repository, catalog *mapping.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// Get returns a single template.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.MappingTemplate, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns all templates for the organization.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]domain.MappingTemplate, error) {
	return s.repo.List(ctx, orgID)
}

// Create validates and persists a new template at version 1.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, name string, rules []domain.FieldRule) (*domain.MappingTemplate, error) {
	if name == "" {
		return nil, ErrNameMissing
	}
	if err := s.validateRules(rules); err != nil {
		return nil, err
	}

	t := &domain.MappingTemplate{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Version:        1,
		Rules:          rules,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update validates the new rule set and writes it as the next version of
// the template.
func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, name string, rules []domain.FieldRule) (*domain.MappingTemplate, error) {
	t, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateRules(rules); err != nil {
		return nil, err
	}

	if name != "" {
		t.Name = name
	}
	t.Rules = rules
	t.Version++
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.Delete(ctx, orgID, id)
}

// validateRules runs the full rule compiler so a template that saves is a
// template that stages: duplicate target bindings, unknown targets, illegal
// functions, and malformed parameters are all rejected here.
func (s *Service) validateRules(rules []domain.FieldRule) error {
	if _, err := s.catalog.CompileRules(rules); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}
