// Package service wires the decision pipeline: the cycle controller, the
// order ledger, the resolution engine, and the derived-stats reader.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/metrics"
	"github.com/quantfold/sibyl/internal/notify"
	"github.com/quantfold/sibyl/internal/screener"
)

// LedgerService owns position placement, cancellation, reconciliation, and
// the explicit portfolio reset. Every balance-coupled mutation goes through
// the store's single-transaction methods.
type LedgerService struct {
	positions domain.PositionStore
	portfolio domain.PortfolioStore
	cycles    domain.CycleStore
	recent    domain.RecentCache
	activity  domain.ActivityStore
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(
	positions domain.PositionStore,
	portfolio domain.PortfolioStore,
	cycles domain.CycleStore,
	recent domain.RecentCache,
	activity domain.ActivityStore,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		positions: positions,
		portfolio: portfolio,
		cycles:    cycles,
		recent:    recent,
		activity:  activity,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With(slog.String("component", "ledger")),
	}
}

// Place opens a position for an accepted sizing decision. The position row
// and the balance debit commit in one transaction; a concurrent spender
// that drained the balance surfaces as domain.ErrInsufficientFunds.
func (s *LedgerService) Place(ctx context.Context, a domain.ScoredAssessment, d domain.SizingDecision) (domain.Position, error) {
	if d.Rejected() {
		return domain.Position{}, fmt.Errorf("ledger: place: decision was rejected (%s)", d.Reason)
	}

	quantity := d.Amount / d.EntryPrice
	pos := domain.Position{
		ID:              uuid.New().String(),
		ContractID:      a.Contract.ID,
		Question:        a.Contract.Question,
		OutcomeIndex:    d.OutcomeIndex,
		Outcome:         a.Contract.Outcomes[d.OutcomeIndex],
		Price:           d.EntryPrice,
		Quantity:        quantity,
		Cost:            d.Amount,
		PotentialPayout: quantity, // winning shares pay $1 each
		Status:          domain.PositionStatusFilled,
		ClusterKey:      screener.ClusterKey(a.Contract.Question),
		Reasoning:       a.Reasoning,
		EndDate:         a.Contract.EndDate,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.positions.CreateWithDebit(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: place %s: %w", pos.ContractID, err)
	}

	s.metrics.BetsPlaced.Inc()
	s.metrics.AmountStaked.Add(d.Amount)

	s.logActivity(ctx, domain.ActivityOrder, fmt.Sprintf(
		"bet $%.2f on %s (%s @ $%.2f, edge %+.1f%%)",
		pos.Cost, pos.Question, pos.Outcome, pos.Price, a.Edge*100))
	s.notifier.BetPlaced(ctx, pos, a.Edge)

	s.logger.InfoContext(ctx, "position opened",
		slog.String("position_id", pos.ID),
		slog.String("contract_id", pos.ContractID),
		slog.String("outcome", pos.Outcome),
		slog.Float64("price", pos.Price),
		slog.Float64("cost", pos.Cost),
	)
	return pos, nil
}

// CancelPending cancels a pending position and refunds its cost.
func (s *LedgerService) CancelPending(ctx context.Context, id string) error {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ledger: cancel %s: %w", id, err)
	}
	if err := s.positions.Cancel(ctx, id); err != nil {
		return fmt.Errorf("ledger: cancel %s: %w", id, err)
	}

	s.logActivity(ctx, domain.ActivityWarning, fmt.Sprintf(
		"cancelled pending bet on %s, refunded $%.2f", pos.Question, pos.Cost))
	return nil
}

// Reconcile checks the ledger invariant
//
//	balance == initial - sum(open cost) + realized pnl
//
// and self-heals when the recorded balance drifts beyond tolerance. Drift
// indicates a past partial failure; the derived value is authoritative
// because positions and realized pnl are the primary records.
func (s *LedgerService) Reconcile(ctx context.Context, tolerance float64) error {
	pf, err := s.portfolio.Get(ctx)
	if err != nil {
		return fmt.Errorf("ledger: reconcile: %w", err)
	}

	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("ledger: reconcile: %w", err)
	}

	var committed float64
	for _, p := range open {
		committed += p.Cost
	}

	expected := pf.InitialBalance - committed + pf.RealizedPnL
	drift := pf.Balance - expected
	if math.Abs(drift) <= tolerance {
		return nil
	}

	s.logger.WarnContext(ctx, "balance drift detected, correcting",
		slog.Float64("recorded", pf.Balance),
		slog.Float64("expected", expected),
		slog.Float64("drift", drift),
	)
	s.logActivity(ctx, domain.ActivityWarning, fmt.Sprintf(
		"balance drift $%+.2f corrected (recorded $%.2f, expected $%.2f)",
		drift, pf.Balance, expected))

	if err := s.portfolio.ForceBalance(ctx, expected); err != nil {
		return fmt.Errorf("ledger: reconcile force balance: %w", err)
	}
	s.notifier.DriftCorrected(ctx, pf.Balance, expected)
	return nil
}

// Reset wipes positions, controller state, and the recent-analysis cache,
// and restores the portfolio to the given starting balance.
func (s *LedgerService) Reset(ctx context.Context, initialBalance float64) error {
	if err := s.positions.DeleteAll(ctx); err != nil {
		return fmt.Errorf("ledger: reset: %w", err)
	}
	if err := s.portfolio.Reset(ctx, initialBalance); err != nil {
		return fmt.Errorf("ledger: reset: %w", err)
	}
	if err := s.cycles.ClearState(ctx); err != nil {
		return fmt.Errorf("ledger: reset: %w", err)
	}
	if err := s.recent.Clear(ctx); err != nil {
		return fmt.Errorf("ledger: reset: %w", err)
	}

	s.logActivity(ctx, domain.ActivityInfo, fmt.Sprintf(
		"portfolio reset to $%.2f", initialBalance))
	s.logger.InfoContext(ctx, "portfolio reset",
		slog.Float64("initial_balance", initialBalance))
	return nil
}

// logActivity appends to the feed, logging failures instead of propagating
// them: the feed is best-effort and never blocks the pipeline.
func (s *LedgerService) logActivity(ctx context.Context, kind domain.ActivityKind, message string) {
	if err := s.activity.Log(ctx, kind, message); err != nil {
		s.logger.WarnContext(ctx, "activity log failed",
			slog.String("error", err.Error()))
	}
}
