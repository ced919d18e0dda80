package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/service"
)

// StatusHandler serves the derived performance summary.
type StatusHandler struct {
	stats  *service.StatsService
	cycles domain.CycleStore
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(stats *service.StatsService, cycles domain.CycleStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{stats: stats, cycles: cycles, logger: logger}
}

// GetStatus returns BotStats together with the controller state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Compute(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "status compute failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	state, err := h.cycles.GetState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cycle state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       stats,
		"cycle_count": state.CycleCount,
		"last_run_at": state.LastRunAt,
	})
}
