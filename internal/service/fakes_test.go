package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/metrics"
	"github.com/quantfold/sibyl/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWith(prometheus.NewRegistry())
}

func testNotifier() *notify.Notifier {
	return notify.New(nil, nil, testLogger())
}

// ---------------------------------------------------------------------------
// In-memory stores. The position fake couples balance mutations to the
// portfolio fake the way the real store couples them in one transaction.
// ---------------------------------------------------------------------------

type fakePortfolio struct {
	pf     domain.Portfolio
	forced []float64
}

func newFakePortfolio(balance float64) *fakePortfolio {
	return &fakePortfolio{pf: domain.Portfolio{
		Balance:        balance,
		InitialBalance: balance,
	}}
}

func (f *fakePortfolio) Get(context.Context) (domain.Portfolio, error) { return f.pf, nil }

func (f *fakePortfolio) AdjustBalance(_ context.Context, delta float64) error {
	f.pf.Balance += delta
	return nil
}

func (f *fakePortfolio) AddOracleSpend(_ context.Context, cost float64) error {
	if cost > 0 {
		f.pf.OracleSpend += cost
	}
	return nil
}

func (f *fakePortfolio) ForceBalance(_ context.Context, balance float64) error {
	f.pf.Balance = balance
	f.forced = append(f.forced, balance)
	return nil
}

func (f *fakePortfolio) Reset(_ context.Context, initialBalance float64) error {
	f.pf = domain.Portfolio{Balance: initialBalance, InitialBalance: initialBalance}
	return nil
}

type fakePositions struct {
	portfolio *fakePortfolio
	byID      map[string]*domain.Position
	order     []string
}

func newFakePositions(pf *fakePortfolio) *fakePositions {
	return &fakePositions{portfolio: pf, byID: make(map[string]*domain.Position)}
}

func (f *fakePositions) CreateWithDebit(_ context.Context, pos domain.Position) error {
	if f.portfolio.pf.Balance < pos.Cost {
		return domain.ErrInsufficientFunds
	}
	f.portfolio.pf.Balance -= pos.Cost
	stored := pos
	f.byID[pos.ID] = &stored
	f.order = append(f.order, pos.ID)
	return nil
}

func (f *fakePositions) Settle(_ context.Context, id string, status domain.PositionStatus, payout, pnl float64) error {
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !p.Status.Open() {
		return domain.ErrAlreadySettled
	}
	now := time.Now().UTC()
	p.Status = status
	p.PnL = &pnl
	p.ResolvedAt = &now
	f.portfolio.pf.Balance += payout
	f.portfolio.pf.RealizedPnL += pnl
	return nil
}

func (f *fakePositions) Cancel(_ context.Context, id string) error {
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status != domain.PositionStatusPending {
		return domain.ErrAlreadySettled
	}
	p.Status = domain.PositionStatusCancelled
	f.portfolio.pf.Balance += p.Cost
	return nil
}

func (f *fakePositions) GetByID(_ context.Context, id string) (domain.Position, error) {
	p, ok := f.byID[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return *p, nil
}

func (f *fakePositions) ListOpen(context.Context) ([]domain.Position, error) {
	var out []domain.Position
	for _, id := range f.order {
		if p := f.byID[id]; p.Status.Open() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePositions) ListByStatus(_ context.Context, status domain.PositionStatus, _ domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, id := range f.order {
		if p := f.byID[id]; p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePositions) ListSettled(context.Context, domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, id := range f.order {
		p := f.byID[id]
		if p.Status == domain.PositionStatusWon || p.Status == domain.PositionStatusLost {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePositions) OpenClusterKeys(context.Context) (map[string]bool, error) {
	keys := make(map[string]bool)
	for _, id := range f.order {
		if p := f.byID[id]; p.Status.Open() && p.ClusterKey != "" {
			keys[p.ClusterKey] = true
		}
	}
	return keys, nil
}

func (f *fakePositions) TouchChecked(_ context.Context, id string, at time.Time) error {
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.LastCheckedAt = &at
	return nil
}

func (f *fakePositions) DeleteAll(context.Context) error {
	f.byID = make(map[string]*domain.Position)
	f.order = nil
	return nil
}

type fakeCycles struct {
	state   domain.CycleState
	reports []domain.CycleReport
}

func (f *fakeCycles) GetState(context.Context) (domain.CycleState, error) { return f.state, nil }

func (f *fakeCycles) MarkRun(_ context.Context, at time.Time) error {
	f.state.CycleCount++
	f.state.LastRunAt = &at
	return nil
}

func (f *fakeCycles) ClearState(context.Context) error {
	f.state = domain.CycleState{}
	return nil
}

func (f *fakeCycles) LogCycle(_ context.Context, report domain.CycleReport) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeCycles) ListCycles(context.Context, domain.ListOpts) ([]domain.CycleReport, error) {
	return f.reports, nil
}

type fakeActivity struct {
	entries []domain.ActivityEntry
}

func (f *fakeActivity) Log(_ context.Context, kind domain.ActivityKind, message string) error {
	f.entries = append(f.entries, domain.ActivityEntry{
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeActivity) List(context.Context, domain.ListOpts) ([]domain.ActivityEntry, error) {
	return f.entries, nil
}

func (f *fakeActivity) ListBefore(_ context.Context, before time.Time) ([]domain.ActivityEntry, error) {
	var out []domain.ActivityEntry
	for _, e := range f.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivity) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.ActivityEntry
	var removed int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return removed, nil
}

func (f *fakeActivity) kinds() []domain.ActivityKind {
	out := make([]domain.ActivityKind, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Kind
	}
	return out
}

type fakeRecent struct {
	marked map[string]bool
}

func newFakeRecent() *fakeRecent { return &fakeRecent{marked: make(map[string]bool)} }

func (f *fakeRecent) MarkAnalyzed(_ context.Context, ids []string, _ time.Duration) error {
	for _, id := range ids {
		f.marked[id] = true
	}
	return nil
}

func (f *fakeRecent) FilterFresh(_ context.Context, ids []string) (map[string]bool, error) {
	fresh := make(map[string]bool)
	for _, id := range ids {
		if f.marked[id] {
			fresh[id] = true
		}
	}
	return fresh, nil
}

func (f *fakeRecent) Clear(context.Context) error {
	f.marked = make(map[string]bool)
	return nil
}

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.acquired++
	return func() { f.released++ }, nil
}

// ---------------------------------------------------------------------------
// Collaborator fakes.
// ---------------------------------------------------------------------------

type fakeSource struct {
	universe  []domain.Contract
	contracts map[string]domain.Contract
	fetches   int
	gets      int
}

func (f *fakeSource) FetchUniverse(context.Context) ([]domain.Contract, error) {
	f.fetches++
	return f.universe, nil
}

func (f *fakeSource) ListContracts(context.Context, int, int) ([]domain.Contract, error) {
	return f.universe, nil
}

func (f *fakeSource) GetContract(_ context.Context, id string) (domain.Contract, error) {
	f.gets++
	c, ok := f.contracts[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

type fakeOracle struct {
	reply domain.OracleReply
	err   error
	calls int
}

func (f *fakeOracle) Analyze(context.Context, domain.OracleRequest) (domain.OracleReply, error) {
	f.calls++
	if f.err != nil {
		return domain.OracleReply{}, f.err
	}
	return f.reply, nil
}
