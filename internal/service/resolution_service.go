package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/metrics"
	"github.com/quantfold/sibyl/internal/notify"
)

// ResolutionConfig holds the resolution-engine parameters.
type ResolutionConfig struct {
	Interval time.Duration
	// CheckCooldown bounds per-position API load: a position probed within
	// the cooldown is skipped this pass.
	CheckCooldown time.Duration
	// WinnerThreshold is the price at which an outcome counts as decided.
	WinnerThreshold float64
	// DriftTolerance is passed to ledger reconciliation after each pass.
	DriftTolerance float64
}

// ResolutionService settles open positions against live market state. It
// re-fetches each open position's contract, decides won or lost once the
// market is decided, and cancels pending positions whose market closed
// before a fill.
type ResolutionService struct {
	cfg       ResolutionConfig
	source    domain.MarketSource
	positions domain.PositionStore
	ledger    *LedgerService
	activity  domain.ActivityStore
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewResolutionService creates a ResolutionService.
func NewResolutionService(
	cfg ResolutionConfig,
	source domain.MarketSource,
	positions domain.PositionStore,
	ledger *LedgerService,
	activity domain.ActivityStore,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		cfg:       cfg,
		source:    source,
		positions: positions,
		ledger:    ledger,
		activity:  activity,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With(slog.String("component", "resolution")),
	}
}

// Run ticks the resolution pass until the context is done. Each pass ends
// with a ledger reconciliation so drift from partial failures heals within
// one interval.
func (s *ResolutionService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "resolution loop started",
		slog.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("resolution loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.CheckOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "resolution pass failed",
					slog.String("error", err.Error()))
			}
			if err := s.ledger.Reconcile(ctx, s.cfg.DriftTolerance); err != nil {
				s.logger.ErrorContext(ctx, "reconciliation failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// CheckOnce probes each due open position exactly once. A position is due
// when its contract's end date has passed (positions without a snapshot are
// always due) and its last probe is outside the cooldown. Individual
// position failures are logged and skipped; only listing the open set is
// pass-fatal.
func (s *ResolutionService) CheckOnce(ctx context.Context) error {
	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("resolution: list open: %w", err)
	}

	now := time.Now().UTC()
	for _, pos := range open {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if pos.EndDate != nil && now.Before(*pos.EndDate) {
			continue
		}
		if pos.LastCheckedAt != nil && now.Sub(*pos.LastCheckedAt) < s.cfg.CheckCooldown {
			continue
		}
		if err := s.checkPosition(ctx, pos, now); err != nil {
			s.logger.WarnContext(ctx, "position check failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *ResolutionService) checkPosition(ctx context.Context, pos domain.Position, now time.Time) error {
	contract, err := s.source.GetContract(ctx, pos.ContractID)
	if errors.Is(err, domain.ErrNotFound) {
		// The venue no longer serves the market. A pending position gets
		// its money back; a filled one stays until an operator decides.
		if pos.Status == domain.PositionStatusPending {
			return s.ledger.CancelPending(ctx, pos.ID)
		}
		s.logActivity(ctx, domain.ActivityWarning, fmt.Sprintf(
			"market vanished for open position: %s", pos.Question))
		return s.positions.TouchChecked(ctx, pos.ID, now)
	}
	if err != nil {
		return fmt.Errorf("fetch contract %s: %w", pos.ContractID, err)
	}

	if err := s.positions.TouchChecked(ctx, pos.ID, now); err != nil {
		return err
	}

	// A market is decided when the venue closed it, or when it stopped
	// accepting orders and some outcome already trades at the winner
	// threshold. A contract past its end date but still accepting orders
	// is not decided; its price is still a live price.
	decided := contract.Closed ||
		(!contract.AcceptingOrders && contract.MaxPrice() >= s.cfg.WinnerThreshold)
	if !decided {
		return nil
	}

	if pos.Status == domain.PositionStatusPending {
		return s.ledger.CancelPending(ctx, pos.ID)
	}

	price := contract.PriceFor(pos.OutcomeIndex)
	switch {
	case price >= s.cfg.WinnerThreshold:
		return s.settle(ctx, pos, domain.PositionStatusWon)
	case price <= 1-s.cfg.WinnerThreshold:
		return s.settle(ctx, pos, domain.PositionStatusLost)
	default:
		// Closed but undecided (disputed or awaiting oracle settlement on
		// the venue side). Leave it; a later pass sees the final price.
		return nil
	}
}

// settle records the terminal state. Settlement is idempotent at the store
// level: a concurrent pass that already settled the position surfaces as
// ErrAlreadySettled and is treated as success.
func (s *ResolutionService) settle(ctx context.Context, pos domain.Position, status domain.PositionStatus) error {
	payout := 0.0
	pnl := -pos.Cost
	if status == domain.PositionStatusWon {
		payout = pos.PotentialPayout
		pnl = pos.PotentialPayout - pos.Cost
	}

	err := s.positions.Settle(ctx, pos.ID, status, payout, pnl)
	if errors.Is(err, domain.ErrAlreadySettled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle %s: %w", pos.ID, err)
	}

	s.metrics.PositionsSettled.WithLabelValues(string(status)).Inc()

	pos.Status = status
	pos.PnL = &pnl
	s.logActivity(ctx, domain.ActivityResolved, fmt.Sprintf(
		"%s: %s (%s @ $%.2f, pnl $%+.2f)",
		status, pos.Question, pos.Outcome, pos.Price, pnl))
	s.notifier.Settled(ctx, pos)

	s.logger.InfoContext(ctx, "position settled",
		slog.String("position_id", pos.ID),
		slog.String("status", string(status)),
		slog.Float64("payout", payout),
		slog.Float64("pnl", pnl),
	)
	return nil
}

func (s *ResolutionService) logActivity(ctx context.Context, kind domain.ActivityKind, message string) {
	if err := s.activity.Log(ctx, kind, message); err != nil {
		s.logger.WarnContext(ctx, "activity log failed",
			slog.String("error", err.Error()))
	}
}
