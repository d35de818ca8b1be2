package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/sheet-importer/internal/domain"
)

type templateRequest struct {
	Name  string             `json:"name"`
	Rules []domain.FieldRule `json:"rules"`
}

// HandleListTemplates returns all mapping templates for the tenant.
func (h *Handlers) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}

	templates, err := h.templates.List(r.Context(), orgID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if templates == nil {
		templates = []domain.MappingTemplate{}
	}
	respondJSON(w, http.StatusOK, templates)
}

// HandleGetTemplate returns one template.
func (h *Handlers) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	tpl, err := h.templates.Get(r.Context(), orgID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

// HandleCreateTemplate validates and saves a new template.
func (h *Handlers) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := h.templates.Create(r.Context(), orgID, req.Name, req.Rules)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tpl)
}

// HandleUpdateTemplate validates and saves the next version of a template.
func (h *Handlers) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tpl, err := h.templates.Update(r.Context(), orgID, id, req.Name, req.Rules)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

// HandleDeleteTemplate removes a template.
func (h *Handlers) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := h.templates.Delete(r.Context(), orgID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
