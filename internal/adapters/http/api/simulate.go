package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/simulate"
)

// SimulateHandler serves counterfactual what-if rollouts.
type SimulateHandler struct {
	deps Dependencies
}

func NewSimulateHandler(deps Dependencies) *SimulateHandler {
	return &SimulateHandler{deps: deps}
}

type simulateRequest struct {
	// Baseline is the record history the counterfactual perturbs; an empty
	// baseline is rejected.
	Baseline  []model.DailyRecord `json:"baseline,omitempty"`
	Overrides map[string]float64  `json:"overrides"`
}

// HandleSimulate handles POST /simulate/{user}.
func (h *SimulateHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	userID := pathTail(r, "/simulate")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", model.ErrMissingUserID)
		return
	}
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.deps.Simulate(r.Context(), userID, req.Baseline, req.Overrides)
	if err != nil {
		if errors.Is(err, simulate.ErrNoRecords) {
			writeError(w, http.StatusBadRequest, "empty_baseline", err)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
