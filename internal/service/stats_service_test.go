package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
)

func newStatsFixture(t *testing.T) (*StatsService, *fakePositions, *fakePortfolio, *fakeCycles) {
	t.Helper()
	portfolio := newFakePortfolio(1000)
	positions := newFakePositions(portfolio)
	cycles := &fakeCycles{}
	svc := NewStatsService(positions, portfolio, cycles, 30*time.Minute)
	return svc, positions, portfolio, cycles
}

func settleTrade(t *testing.T, positions *fakePositions, id string, cost float64, won bool) {
	t.Helper()
	ctx := context.Background()
	pos := domain.Position{
		ID:              id,
		ContractID:      "mkt-" + id,
		Cost:            cost,
		PotentialPayout: cost * 2,
		Status:          domain.PositionStatusFilled,
	}
	require.NoError(t, positions.CreateWithDebit(ctx, pos))
	if won {
		require.NoError(t, positions.Settle(ctx, id, domain.PositionStatusWon, cost*2, cost))
	} else {
		require.NoError(t, positions.Settle(ctx, id, domain.PositionStatusLost, 0, -cost))
	}
}

func TestComputeEmptyLedger(t *testing.T) {
	svc, _, _, _ := newStatsFixture(t)

	stats, err := svc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000.0, stats.Balance)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.BestTrade)
	assert.Equal(t, 0.0, stats.WorstTrade)
	assert.Equal(t, 0.0, stats.SharpeRatio)
	assert.Equal(t, 0, stats.RunwayDays)
}

func TestComputeTradeSummary(t *testing.T) {
	svc, positions, portfolio, cycles := newStatsFixture(t)

	settleTrade(t, positions, "w1", 50, true)  // pnl +50, return +1.0
	settleTrade(t, positions, "w2", 30, true)  // pnl +30, return +1.0
	settleTrade(t, positions, "l1", 20, false) // pnl -20, return -1.0

	// One open position ties up capital but does not count as a trade.
	open := domain.Position{ID: "o1", ContractID: "mkt-o1", Cost: 40, Status: domain.PositionStatusFilled}
	require.NoError(t, positions.CreateWithDebit(context.Background(), open))

	cycles.state.CycleCount = 4
	portfolio.pf.OracleSpend = 2.0

	stats, err := svc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
	assert.InDelta(t, 100.0/3, stats.AvgBet, 1e-9)
	assert.Equal(t, 50.0, stats.BestTrade)
	assert.Equal(t, -20.0, stats.WorstTrade)
	assert.Equal(t, 1, stats.OpenPositions)
	assert.Equal(t, 40.0, stats.OpenExposure)
	assert.Equal(t, 60.0, stats.TotalPnL)
	assert.Equal(t, int64(4), stats.Cycles)

	// Returns are {+1, +1, -1}: mean 1/3, sample stddev sqrt(4/3).
	assert.InDelta(t, 0.2887, stats.SharpeRatio, 0.001)

	// $2 over 4 cycles at a 30m throttle projects 48 cycles/day, $24/day.
	assert.Equal(t, 1020.0, stats.Balance)
	assert.Equal(t, 42, stats.RunwayDays)
}

func TestComputeSharpeNeedsTwoTrades(t *testing.T) {
	svc, positions, _, _ := newStatsFixture(t)
	settleTrade(t, positions, "w1", 50, true)

	stats, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.SharpeRatio)
	assert.Equal(t, 100.0, stats.WinRate)
}

func TestComputeZeroVarianceSharpe(t *testing.T) {
	svc, positions, _, _ := newStatsFixture(t)
	settleTrade(t, positions, "w1", 50, true)
	settleTrade(t, positions, "w2", 25, true)

	stats, err := svc.Compute(context.Background())
	require.NoError(t, err)
	// Both trades returned exactly +1.0: no dispersion, no ratio.
	assert.Equal(t, 0.0, stats.SharpeRatio)
}

func TestRunwayProjection(t *testing.T) {
	svc, _, portfolio, cycles := newStatsFixture(t)
	portfolio.pf.Balance = 240
	portfolio.pf.OracleSpend = 1.0
	cycles.state.CycleCount = 2

	stats, err := svc.Compute(context.Background())
	require.NoError(t, err)
	// $0.50/cycle at 48 cycles/day burns $24/day: ten days of runway.
	assert.Equal(t, 10, stats.RunwayDays)
}
