package handler

import (
	"net/http"

	"github.com/quantfold/sibyl/internal/domain"
)

// ActivityHandler serves the activity feed.
type ActivityHandler struct {
	activity domain.ActivityStore
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(activity domain.ActivityStore) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ListActivity returns activity entries, newest first.
// GET /api/activity
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
