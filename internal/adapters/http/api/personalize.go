package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/okian/aura/internal/domain/model"
)

// PersonalizeHandler triggers adapter refits, synchronously or via the
// background queue.
type PersonalizeHandler struct {
	deps Dependencies
}

func NewPersonalizeHandler(deps Dependencies) *PersonalizeHandler {
	return &PersonalizeHandler{deps: deps}
}

type personalizeRequest struct {
	Epochs int  `json:"epochs,omitempty"`
	Async  bool `json:"async,omitempty"`
}

type personalizeAsyncResponse struct {
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`
	Queued bool   `json:"queued"`
}

// HandlePersonalize handles POST /personalize/{user}.
func (h *PersonalizeHandler) HandlePersonalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	userID := pathTail(r, "/personalize")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", model.ErrMissingUserID)
		return
	}
	var req personalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Async {
		jobID, ok := h.deps.EnqueuePersonalize(r.Context(), userID, req.Epochs)
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "queue_full", nil)
			return
		}
		writeJSON(w, http.StatusAccepted, personalizeAsyncResponse{
			UserID: userID,
			JobID:  jobID,
			Queued: true,
		})
		return
	}
	result, err := h.deps.Personalize(r.Context(), userID, req.Epochs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
