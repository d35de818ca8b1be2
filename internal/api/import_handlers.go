package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/service/importer"
	"github.com/ignite/sheet-importer/internal/tabular"
)

func listFilterFromQuery(r *http.Request, params PaginationParams) importer.ListFilter {
	q := r.URL.Query()
	return importer.ListFilter{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Limit:     params.Limit,
		Offset:    params.Offset,
	}
}

type createSessionRequest struct {
	TemplateID uuid.UUID `json:"template_id"`
	Name       string    `json:"name"`
}

// HandleCreateSession starts a new import session bound to a template.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.imports.Initiate(r.Context(), orgID, req.TemplateID, req.Name, nil)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// HandleStageFile accepts a multipart upload and stages it against the
// session's template, returning the preview statistics.
func (h *Handlers) HandleStageFile(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := r.ParseMultipartForm(int64(tabular.MaxFileSize)); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	// Read one byte past the cap so oversized uploads are detected without
	// buffering the whole body.
	data, err := io.ReadAll(io.LimitReader(file, int64(tabular.MaxFileSize)+1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	result, err := h.imports.Stage(r.Context(), orgID, sessionID, data, header.Filename)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    fmt.Sprintf("previewed %d rows", result.Statistics.RowsSuccessfullyPreviewed),
		"session":    result.Session,
		"statistics": result.Statistics,
	})
}

type commitSessionRequest struct {
	Rules []domain.FieldRule `json:"finalized_rules"`
}

// HandleCommitSession finalizes the import with the caller's rule set and
// persists the normalized rows.
func (h *Handlers) HandleCommitSession(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req commitSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.imports.Commit(r.Context(), orgID, sessionID, req.Rules)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":              fmt.Sprintf("imported %d of %d rows", result.Statistics.RowsSuccessfullyImported, result.Statistics.TotalProcessedRows),
		"imported_count":       result.Statistics.RowsSuccessfullyImported,
		"total_processed_rows": result.Statistics.TotalProcessedRows,
		"session":              result.Session,
		"statistics":           result.Statistics,
	})
}

// HandleListSessions returns a paginated session history for the tenant.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}

	params := ParsePagination(r, 50, 200)
	sessions, total, err := h.imports.List(r.Context(), orgID, listFilterFromQuery(r, params))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.ImportSession{}
	}
	respondJSON(w, http.StatusOK, NewPaginatedResponse(sessions, params, total))
}

// HandleGetSession returns one session with its counters and error summary.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	orgID, err := h.orgs.ExtractOrgID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "organization context required")
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.imports.Get(r.Context(), orgID, sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}
