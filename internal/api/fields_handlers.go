package api

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/sheet-importer/internal/mapping"
)

// HandleListFields returns the target-field catalog so clients can build
// mapping UIs without hardcoding the schema.
func (h *Handlers) HandleListFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Fields())
}

type suggestRequest struct {
	Headers []string `json:"headers"`
}

// HandleSuggestRules matches uploaded file headers against known aliases
// and returns draft mapping rules.
func (h *Handlers) HandleSuggestRules(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Headers) == 0 {
		respondError(w, http.StatusBadRequest, "headers required")
		return
	}

	suggestions := h.catalog.SuggestRules(req.Headers)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"draft_rules": mapping.DraftRules(suggestions),
	})
}
