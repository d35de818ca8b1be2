package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ignite/sheet-importer/internal/mapping"
	"github.com/ignite/sheet-importer/internal/service/importer"
	"github.com/ignite/sheet-importer/internal/service/template"
	"github.com/ignite/sheet-importer/internal/tabular"
)

// Handlers holds the services the HTTP layer dispatches into.
type Handlers struct {
	imports   *importer.Service
	templates *template.Service
	catalog   *mapping.Catalog
	orgs      *OrgContextProvider
}

// NewHandlers creates the handler set.
func NewHandlers(imports *importer.Service, templates *template.Service, catalog *mapping.Catalog, orgs *OrgContextProvider) *Handlers {
	return &Handlers{imports: imports, templates: templates, catalog: catalog, orgs: orgs}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service-layer errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	var validationErr *template.ValidationError
	var mismatchErr *importer.TemplateMismatchError
	var storageErr *importer.StorageError

	switch {
	case errors.Is(err, importer.ErrSessionNotFound),
		errors.Is(err, importer.ErrTemplateNotFound),
		errors.Is(err, template.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, importer.ErrSessionBusy):
		respondError(w, http.StatusConflict, "another stage or commit is already running for this session")
	case errors.Is(err, tabular.ErrSizeLimit):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &mismatchErr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":          mismatchErr.Error(),
			"missing_fields": mismatchErr.Missing,
		})
	case errors.As(err, &validationErr),
		errors.Is(err, importer.ErrInvalidTransition),
		errors.Is(err, importer.ErrMissingTemplate),
		errors.Is(err, importer.ErrNoRules),
		errors.Is(err, template.ErrNameMissing),
		errors.Is(err, template.ErrNameTaken),
		errors.Is(err, tabular.ErrEmptyFile),
		errors.Is(err, tabular.ErrNoHeaders),
		errors.Is(err, tabular.ErrNotTabular):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &storageErr):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
