package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantfold/sibyl/internal/service"
)

// PortfolioHandler serves the explicit portfolio reset.
type PortfolioHandler struct {
	ledger         *service.LedgerService
	initialBalance float64
	logger         *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(ledger *service.LedgerService, initialBalance float64, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{ledger: ledger, initialBalance: initialBalance, logger: logger}
}

// Reset wipes all positions and state and restores the starting balance.
// POST /api/portfolio/reset
func (h *PortfolioHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Reset(r.Context(), h.initialBalance); err != nil {
		h.logger.ErrorContext(r.Context(), "portfolio reset failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reset",
		"balance": h.initialBalance,
	})
}
