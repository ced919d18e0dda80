package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/service"
)

// PositionHandler serves the position ledger.
type PositionHandler struct {
	positions domain.PositionStore
	ledger    *service.LedgerService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions domain.PositionStore, ledger *service.LedgerService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, ledger: ledger, logger: logger}
}

// ListPositions returns positions, filtered by ?status= when given,
// otherwise the open set.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	var (
		positions []domain.Position
		err       error
	)

	switch status := r.URL.Query().Get("status"); status {
	case "":
		positions, err = h.positions.ListOpen(r.Context())
	case "settled":
		positions, err = h.positions.ListSettled(r.Context(), parseListOpts(r))
	default:
		positions, err = h.positions.ListByStatus(r.Context(), domain.PositionStatus(status), parseListOpts(r))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// GetPosition returns one position by id.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.positions.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// CancelPosition cancels a pending position and refunds its cost.
// DELETE /api/positions/{id}
func (h *PositionHandler) CancelPosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.ledger.CancelPending(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no pending position with that id")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cancel failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to cancel position")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
}
