package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/okian/aura/internal/domain/intervene"
	"github.com/okian/aura/internal/domain/model"
)

// InterventionsHandler serves ranked behaviour-change suggestions.
type InterventionsHandler struct {
	deps Dependencies
}

func NewInterventionsHandler(deps Dependencies) *InterventionsHandler {
	return &InterventionsHandler{deps: deps}
}

type interventionsRequest struct {
	Constraints intervene.Constraints `json:"constraints,omitempty"`
}

type interventionsResponse struct {
	UserID        string                        `json:"user_id"`
	Interventions []model.InterventionCandidate `json:"interventions"`
}

// HandleInterventions handles GET and POST /interventions/{user}. The
// POST form carries per-field constraints in the body; GET runs
// unconstrained.
func (h *InterventionsHandler) HandleInterventions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	userID := pathTail(r, "/interventions")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", model.ErrMissingUserID)
		return
	}
	var req interventionsRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	candidates, err := h.deps.Interventions(r.Context(), userID, req.Constraints)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if candidates == nil {
		candidates = []model.InterventionCandidate{}
	}
	writeJSON(w, http.StatusOK, interventionsResponse{UserID: userID, Interventions: candidates})
}
