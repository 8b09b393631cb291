package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/aura/internal/domain/model"
)

// RecordsHandler accepts daily log entries.
type RecordsHandler struct {
	deps Dependencies
}

func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

type submitRecordResponse struct {
	UserID   string   `json:"user_id"`
	Stored   bool     `json:"stored"`
	Warnings []string `json:"warnings"`
}

// HandleSubmitRecord handles POST /logs/{user}. Out-of-range values are
// clipped at feature extraction time, so a record is rejected only for
// structural problems. Soft warnings are returned alongside the ack.
func (h *RecordsHandler) HandleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	userID := pathTail(r, "/logs")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", model.ErrMissingUserID)
		return
	}
	var record model.DailyRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.deps.SubmitRecord(r.Context(), userID, record)
	if err != nil {
		if errors.Is(err, model.ErrIntensityWithoutEvent) {
			writeError(w, http.StatusBadRequest, "invalid_record", err)
			return
		}
		writeDomainError(w, err)
		return
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusAccepted, submitRecordResponse{
		UserID:   userID,
		Stored:   true,
		Warnings: warnings,
	})
}
