package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/service"
)

// CycleHandler triggers cycles and serves the cycle audit trail.
type CycleHandler struct {
	cycleSvc *service.CycleService
	cycles   domain.CycleStore
	logger   *slog.Logger
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(cycleSvc *service.CycleService, cycles domain.CycleStore, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{cycleSvc: cycleSvc, cycles: cycles, logger: logger}
}

// TriggerCycle runs one cycle immediately, bypassing the throttle. The
// lock still applies: a cycle already in flight reports status "locked".
// POST /api/cycle/run
func (h *CycleHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.cycleSvc.RunCycle(r.Context(), true)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual cycle failed",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListCycles returns the cycle audit records, newest first.
// GET /api/cycles
func (h *CycleHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	reports, err := h.cycles.ListCycles(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": reports})
}
