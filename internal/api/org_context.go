package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
)

// OrgContextKey is the key for storing organization context
type OrgContextKey struct{}

// OrganizationContext holds organization information extracted from auth
type OrganizationContext struct {
	ID   uuid.UUID
	Name string
}

// OrgContextProvider extracts the tenant for a request. Every repository
// query is scoped by the organization ID this resolves.
type OrgContextProvider struct {
	defaultOrgID   uuid.UUID
	devModeEnabled bool
}

// NewOrgContextProvider creates a new provider. In dev mode a DEFAULT_ORG_ID
// env var stands in for real auth.
func NewOrgContextProvider() *OrgContextProvider {
	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"

	var defaultOrgID uuid.UUID
	if s := os.Getenv("DEFAULT_ORG_ID"); s != "" {
		if parsed, err := uuid.Parse(s); err == nil {
			defaultOrgID = parsed
		}
	}

	return &OrgContextProvider{
		defaultOrgID:   defaultOrgID,
		devModeEnabled: devMode,
	}
}

// ExtractOrgID resolves the organization for a request.
// Priority: 1. Auth context, 2. X-Organization-ID header, 3. Query param, 4. Dev mode default
func (p *OrgContextProvider) ExtractOrgID(r *http.Request) (uuid.UUID, error) {
	if orgCtx, ok := r.Context().Value(OrgContextKey{}).(*OrganizationContext); ok && orgCtx != nil {
		return orgCtx.ID, nil
	}

	if s := r.Header.Get("X-Organization-ID"); s != "" {
		if orgID, err := uuid.Parse(s); err == nil {
			return orgID, nil
		}
	}

	if s := r.URL.Query().Get("org_id"); s != "" {
		if orgID, err := uuid.Parse(s); err == nil {
			return orgID, nil
		}
	}

	if p.devModeEnabled && p.defaultOrgID != uuid.Nil {
		return p.defaultOrgID, nil
	}

	return uuid.Nil, fmt.Errorf("organization ID not found in request")
}
