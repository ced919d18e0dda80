package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
)

// StatsService derives the performance summary from the ledger. The stats
// feed the status surface and are echoed back to the oracle as historical
// context.
type StatsService struct {
	positions domain.PositionStore
	portfolio domain.PortfolioStore
	cycles    domain.CycleStore
	// throttle is the minimum interval between oracle-call cycles, used to
	// project the daily oracle burn rate.
	throttle time.Duration
}

// NewStatsService creates a StatsService.
func NewStatsService(
	positions domain.PositionStore,
	portfolio domain.PortfolioStore,
	cycles domain.CycleStore,
	throttle time.Duration,
) *StatsService {
	return &StatsService{
		positions: positions,
		portfolio: portfolio,
		cycles:    cycles,
		throttle:  throttle,
	}
}

// Compute assembles the current BotStats snapshot.
func (s *StatsService) Compute(ctx context.Context) (domain.BotStats, error) {
	pf, err := s.portfolio.Get(ctx)
	if err != nil {
		return domain.BotStats{}, fmt.Errorf("stats: portfolio: %w", err)
	}

	settled, err := s.positions.ListSettled(ctx, domain.ListOpts{Limit: 10_000})
	if err != nil {
		return domain.BotStats{}, fmt.Errorf("stats: settled positions: %w", err)
	}

	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return domain.BotStats{}, fmt.Errorf("stats: open positions: %w", err)
	}

	state, err := s.cycles.GetState(ctx)
	if err != nil {
		return domain.BotStats{}, fmt.Errorf("stats: cycle state: %w", err)
	}

	stats := domain.BotStats{
		Balance:        pf.Balance,
		InitialBalance: pf.InitialBalance,
		TotalPnL:       pf.RealizedPnL,
		OracleSpend:    pf.OracleSpend,
		OpenPositions:  len(open),
		Cycles:         state.CycleCount,
	}

	for _, p := range open {
		stats.OpenExposure += p.Cost
	}

	var (
		totalBet float64
		returns  []float64
	)
	stats.BestTrade = math.Inf(-1)
	stats.WorstTrade = math.Inf(1)
	for _, p := range settled {
		pnl := 0.0
		if p.PnL != nil {
			pnl = *p.PnL
		}
		switch p.Status {
		case domain.PositionStatusWon:
			stats.Wins++
		case domain.PositionStatusLost:
			stats.Losses++
		}
		totalBet += p.Cost
		if pnl > stats.BestTrade {
			stats.BestTrade = pnl
		}
		if pnl < stats.WorstTrade {
			stats.WorstTrade = pnl
		}
		if p.Cost > 0 {
			returns = append(returns, pnl/p.Cost)
		}
	}

	stats.TotalTrades = stats.Wins + stats.Losses
	if stats.TotalTrades == 0 {
		stats.BestTrade = 0
		stats.WorstTrade = 0
	} else {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
		stats.AvgBet = totalBet / float64(stats.TotalTrades)
	}
	stats.SharpeRatio = sharpe(returns)

	stats.RunwayDays = s.runwayDays(pf, state)
	return stats, nil
}

// sharpe is the per-trade return mean over its sample standard deviation.
// Fewer than two settled trades have no meaningful dispersion.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// runwayDays projects how many days the balance sustains the oracle burn
// rate observed so far.
func (s *StatsService) runwayDays(pf domain.Portfolio, state domain.CycleState) int {
	if pf.OracleSpend <= 0 || state.CycleCount == 0 || s.throttle <= 0 {
		return 0
	}
	costPerCycle := pf.OracleSpend / float64(state.CycleCount)
	cyclesPerDay := float64(24*time.Hour) / float64(s.throttle)
	dailyBurn := costPerCycle * cyclesPerDay
	if dailyBurn <= 0 {
		return 0
	}
	return int(pf.Balance / dailyBurn)
}
