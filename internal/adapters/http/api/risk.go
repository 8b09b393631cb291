package api

import (
	"net/http"

	"github.com/okian/aura/internal/domain/model"
)

// RiskHandler serves current vulnerability estimates.
type RiskHandler struct {
	deps Dependencies
}

func NewRiskHandler(deps Dependencies) *RiskHandler {
	return &RiskHandler{deps: deps}
}

// HandleGetVulnerability handles GET /vulnerability/{user}.
func (h *RiskHandler) HandleGetVulnerability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	userID := pathTail(r, "/vulnerability")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", model.ErrMissingUserID)
		return
	}
	state, err := h.deps.Vulnerability(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
