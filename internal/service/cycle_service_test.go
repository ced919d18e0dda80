package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/oracle"
	"github.com/quantfold/sibyl/internal/screener"
	"github.com/quantfold/sibyl/internal/sizing"
)

type cycleFixture struct {
	svc       *CycleService
	lock      *fakeLock
	cycles    *fakeCycles
	recent    *fakeRecent
	positions *fakePositions
	portfolio *fakePortfolio
	activity  *fakeActivity
	source    *fakeSource
	oracle    *fakeOracle
}

func testCycleConfig() CycleConfig {
	return CycleConfig{
		Interval:       time.Minute,
		Throttle:       30 * time.Minute,
		LockMaxAge:     10 * time.Minute,
		AnalysisCap:    20,
		PerCategoryCap: 4,
		BatchSize:      5,
		MaxBatches:     3,
		AutoTrading:    true,
		Sizing: sizing.Config{
			KellyFraction:   0.25,
			BankrollCap:     0.10,
			MinOrder:        1.0,
			ConfidenceFloor: 60,
			MinPrice:        0.05,
			MaxPrice:        0.95,
			MinNetEdge:      0.02,
			MinReturnPct:    0.005,
		},
	}
}

func testScreenerConfig() screener.FilterConfig {
	return screener.FilterConfig{
		MaxDaysToClose:     90,
		MinTimeToClose:     time.Hour,
		AbsoluteFloor:      5_000,
		FloorCeiling:       20_000,
		Multiplier:         50,
		TypicalBetFraction: 0.05,
		VolumeFloorRatio:   1.0,
		MaxSpread:          0.05,
		SlowCategorySpread: 0.08,
		ExtremePrice:       0.03,
		TargetPoolSize:     15,
	}
}

func newCycleFixture(t *testing.T, cfg CycleConfig) *cycleFixture {
	t.Helper()

	f := &cycleFixture{
		lock:      &fakeLock{},
		cycles:    &fakeCycles{},
		recent:    newFakeRecent(),
		portfolio: newFakePortfolio(1000),
		activity:  &fakeActivity{},
		source:    &fakeSource{},
		oracle:    &fakeOracle{},
	}
	f.positions = newFakePositions(f.portfolio)

	logger := testLogger()
	m := testMetrics()
	notifier := testNotifier()

	ledger := NewLedgerService(f.positions, f.portfolio, f.cycles, f.recent, f.activity, notifier, m, logger)
	stats := NewStatsService(f.positions, f.portfolio, f.cycles, cfg.Throttle)
	interpreter := oracle.NewInterpreter(oracle.InterpreterConfig{EdgeCeiling: 0.40}, logger)

	f.svc = NewCycleService(
		cfg,
		f.source,
		f.oracle,
		screener.NewFilter(testScreenerConfig()),
		interpreter,
		f.lock,
		f.cycles,
		f.recent,
		f.positions,
		f.portfolio,
		ledger,
		stats,
		f.activity,
		notifier,
		m,
		logger,
	)
	return f
}

func tradeable(id, question string) domain.Contract {
	end := time.Now().UTC().Add(48 * time.Hour)
	return domain.Contract{
		ID:            id,
		Question:      question,
		Outcomes:      [2]string{"Yes", "No"},
		OutcomePrices: [2]float64{0.50, 0.50},
		Volume:        40_000,
		Liquidity:     40_000,
		EndDate:       &end,
		Active:        true,
	}
}

func TestRunCycleLockHeld(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	f.lock.held = true

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusLocked, report.Status)
	assert.Equal(t, 0, f.source.fetches)
	assert.Equal(t, 0, f.oracle.calls)
}

func TestRunCycleThrottled(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	last := time.Now().UTC().Add(-time.Minute)
	f.cycles.state = domain.CycleState{CycleCount: 3, LastRunAt: &last}

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusWaiting, report.Status)
	assert.Equal(t, int64(4), report.Cycle)
	assert.Equal(t, 0, f.source.fetches)
	// The lock is still released on the throttled path.
	assert.Equal(t, f.lock.acquired, f.lock.released)
}

func TestRunCycleForceBypassesThrottleNotLock(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	last := time.Now().UTC().Add(-time.Minute)
	f.cycles.state = domain.CycleState{LastRunAt: &last}

	report, err := f.svc.RunCycle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusCompleted, report.Status)

	f.lock.held = true
	report, err = f.svc.RunCycle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusLocked, report.Status)
}

func TestRunCyclePlacesBet(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	c := tradeable("mkt-1", "Will the senate confirm the nominee?")
	f.source.universe = []domain.Contract{c}
	f.oracle.reply = domain.OracleReply{
		Text: `{"assessments":[{"contract_id":"mkt-1","side":"YES","probability":0.65,"confidence":80,"reasoning":"polling shift"}],"summary":"one edge found"}`,
		Cost: 0.05,
	}

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 1, report.MarketsScanned)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 1, report.Assessed)
	assert.Equal(t, 1, report.BetsPlaced)
	assert.InDelta(t, 0.05, report.OracleCost, 1e-9)

	// p=0.65 at even money: quarter-Kelly 0.075 of $1000.
	open, _ := f.positions.ListOpen(context.Background())
	require.Len(t, open, 1)
	pos := open[0]
	assert.Equal(t, "mkt-1", pos.ContractID)
	assert.Equal(t, domain.PositionStatusFilled, pos.Status)
	assert.Equal(t, 75.0, pos.Cost)
	assert.Equal(t, 150.0, pos.Quantity)
	assert.Equal(t, 150.0, pos.PotentialPayout)
	assert.InDelta(t, 925.0, f.portfolio.pf.Balance, 1e-9)
	assert.InDelta(t, 0.05, f.portfolio.pf.OracleSpend, 1e-9)

	// The contract is remembered, the throttle is armed, and the audit
	// trail has the report.
	assert.True(t, f.recent.marked["mkt-1"])
	assert.Equal(t, int64(1), f.cycles.state.CycleCount)
	require.Len(t, f.cycles.reports, 1)
	assert.Equal(t, domain.CycleStatusCompleted, f.cycles.reports[0].Status)
	assert.Equal(t, f.lock.acquired, f.lock.released)
}

func TestRunCycleOracleFailureAbandonsRemainingBatches(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	// Eight candidates across two categories make two batches at size 5.
	f.source.universe = []domain.Contract{
		tradeable("mkt-1", "Will the senate confirm the nominee?"),
		tradeable("mkt-2", "Will the governor sign the measure?"),
		tradeable("mkt-3", "Will congress pass the stopgap funding bill?"),
		tradeable("mkt-4", "Will the president veto the resolution?"),
		tradeable("mkt-5", "Will the fed cut interest rates in September?"),
		tradeable("mkt-6", "Will inflation exceed expectations this quarter?"),
		tradeable("mkt-7", "Will a recession begin before next year?"),
		tradeable("mkt-8", "Will unemployment rise above five percent?"),
	}
	f.oracle.err = errors.New("upstream 529")

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 2, report.Batches)

	// The failed call abandons the second batch too; the cycle itself
	// completes and the throttle is still armed.
	assert.Equal(t, 1, f.oracle.calls)
	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 0, report.Assessed)
	assert.Equal(t, 0, report.BetsPlaced)
	assert.Equal(t, int64(1), f.cycles.state.CycleCount)
	assert.Contains(t, f.activity.kinds(), domain.ActivityError)
}

func TestRunCycleUnparseableReply(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	f.source.universe = []domain.Contract{tradeable("mkt-1", "Will the senate confirm the nominee?")}
	f.oracle.reply = domain.OracleReply{Text: "I forgot to use JSON.", Cost: 0.02}

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 0, report.Assessed)
	assert.Equal(t, 0, report.BetsPlaced)
	// The bill is still owed even when the reply is garbage.
	assert.InDelta(t, 0.02, f.portfolio.pf.OracleSpend, 1e-9)
	assert.Contains(t, f.activity.kinds(), domain.ActivityWarning)
}

func TestRunCycleEmptyPoolStillArmsThrottle(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	f.source.universe = nil

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 0, f.oracle.calls)
	assert.Equal(t, int64(1), f.cycles.state.CycleCount)

	// The immediately following tick waits.
	report, err = f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusWaiting, report.Status)
}

func TestRunCycleAutoTradingOff(t *testing.T) {
	cfg := testCycleConfig()
	cfg.AutoTrading = false
	f := newCycleFixture(t, cfg)
	f.source.universe = []domain.Contract{tradeable("mkt-1", "Will the senate confirm the nominee?")}
	f.oracle.reply = domain.OracleReply{
		Text: `{"assessments":[{"contract_id":"mkt-1","side":"YES","probability":0.65,"confidence":80}]}`,
		Cost: 0.05,
	}

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 0, report.BetsPlaced)
	open, _ := f.positions.ListOpen(context.Background())
	assert.Empty(t, open)
	// The edge is still recorded in the feed.
	assert.Contains(t, f.activity.kinds(), domain.ActivityEdge)
	assert.Equal(t, 1000.0, f.portfolio.pf.Balance)
}

func TestRunCycleSkipsRecentlyAnalyzed(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	f.source.universe = []domain.Contract{tradeable("mkt-1", "Will the senate confirm the nominee?")}
	f.recent.marked["mkt-1"] = true

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 0, f.oracle.calls)
	assert.Equal(t, 1, report.Breakdown.RecentlySent)
}

func TestRunCycleExcludesHeldClusters(t *testing.T) {
	f := newCycleFixture(t, testCycleConfig())
	f.source.universe = []domain.Contract{
		tradeable("mkt-2", "Will Bitcoin reach $90,000 by June 30?"),
	}

	// An open position on a numeric variant of the same question family.
	held := domain.Position{
		ID:         "pos-1",
		ContractID: "mkt-1",
		Question:   "Will Bitcoin reach $100,000 by June 30?",
		Cost:       10,
		Status:     domain.PositionStatusFilled,
		ClusterKey: screener.ClusterKey("Will Bitcoin reach $100,000 by June 30?"),
	}
	require.NoError(t, f.positions.CreateWithDebit(context.Background(), held))

	report, err := f.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, domain.CycleStatusCompleted, report.Status)
	assert.Equal(t, 0, f.oracle.calls)
	assert.Equal(t, 0, report.Candidates)
}
