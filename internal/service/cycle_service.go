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
	"github.com/quantfold/sibyl/internal/oracle"
	"github.com/quantfold/sibyl/internal/screener"
	"github.com/quantfold/sibyl/internal/sizing"
)

// cycleLockKey names the distributed cycle lock. One lock guards every
// instance of the service: at most one decision cycle runs at a time.
const cycleLockKey = "cycle"

// UniverseSource fetches the full contract universe for one cycle.
type UniverseSource interface {
	FetchUniverse(ctx context.Context) ([]domain.Contract, error)
}

// CycleConfig holds the controller parameters.
type CycleConfig struct {
	// Interval is the scheduler tick. The throttle decides whether a tick
	// actually calls the oracle.
	Interval time.Duration
	// Throttle is the minimum time between oracle-call cycles; it is also
	// the recently-analyzed cache TTL.
	Throttle time.Duration
	// LockMaxAge bounds cycle lock validity so a crashed cycle self-expires.
	LockMaxAge time.Duration
	// AnalysisCap limits how many contracts one cycle sends to the oracle.
	AnalysisCap    int
	PerCategoryCap int
	BatchSize      int
	MaxBatches     int
	// AutoTrading gates order placement; when false the pipeline records
	// what it would have bet without touching the ledger.
	AutoTrading bool
	Sizing      sizing.Config
}

// CycleService is the controller: it serializes cycles behind the
// distributed lock, throttles oracle spend, and drives one batch of
// contracts through filter, dedup, oracle, interpretation, sizing, and
// placement.
type CycleService struct {
	cfg         CycleConfig
	source      UniverseSource
	oracle      domain.Oracle
	filter      *screener.Filter
	interpreter *oracle.Interpreter
	lock        domain.LockManager
	cycles      domain.CycleStore
	recent      domain.RecentCache
	positions   domain.PositionStore
	portfolio   domain.PortfolioStore
	ledger      *LedgerService
	stats       *StatsService
	activity    domain.ActivityStore
	notifier    *notify.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewCycleService creates a CycleService.
func NewCycleService(
	cfg CycleConfig,
	source UniverseSource,
	oracleClient domain.Oracle,
	filter *screener.Filter,
	interpreter *oracle.Interpreter,
	lock domain.LockManager,
	cycles domain.CycleStore,
	recent domain.RecentCache,
	positions domain.PositionStore,
	portfolio domain.PortfolioStore,
	ledger *LedgerService,
	stats *StatsService,
	activity domain.ActivityStore,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *CycleService {
	return &CycleService{
		cfg:         cfg,
		source:      source,
		oracle:      oracleClient,
		filter:      filter,
		interpreter: interpreter,
		lock:        lock,
		cycles:      cycles,
		recent:      recent,
		positions:   positions,
		portfolio:   portfolio,
		ledger:      ledger,
		stats:       stats,
		activity:    activity,
		notifier:    notifier,
		metrics:     m,
		logger:      logger.With(slog.String("component", "cycle")),
	}
}

// Run ticks the controller until the context is done. Every tick attempts
// a cycle; the lock and the throttle decide whether it proceeds.
func (s *CycleService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "cycle loop started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("throttle", s.cfg.Throttle),
	)

	// First attempt immediately rather than waiting a full tick.
	s.runAndLog(ctx, false)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cycle loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runAndLog(ctx, false)
		}
	}
}

func (s *CycleService) runAndLog(ctx context.Context, force bool) {
	report, err := s.RunCycle(ctx, force)
	if err != nil {
		s.logger.ErrorContext(ctx, "cycle failed",
			slog.Int64("cycle", report.Cycle),
			slog.String("error", err.Error()),
		)
	}
}

// RunCycle executes one cycle invocation. force bypasses the throttle, not
// the lock. Every invocation produces a CycleReport; locked and throttled
// invocations return early with the matching status and no error.
func (s *CycleService) RunCycle(ctx context.Context, force bool) (domain.CycleReport, error) {
	report := domain.CycleReport{
		Status:    domain.CycleStatusError,
		StartedAt: time.Now().UTC(),
	}

	unlock, err := s.lock.Acquire(ctx, cycleLockKey, s.cfg.LockMaxAge)
	if errors.Is(err, domain.ErrLockHeld) {
		report.Status = domain.CycleStatusLocked
		report.FinishedAt = time.Now().UTC()
		s.logger.InfoContext(ctx, "cycle skipped, lock held elsewhere")
		return report, nil
	}
	if err != nil {
		report.Error = err.Error()
		report.FinishedAt = time.Now().UTC()
		return report, fmt.Errorf("cycle: acquire lock: %w", err)
	}
	defer unlock()

	state, err := s.cycles.GetState(ctx)
	if err != nil {
		report.Error = err.Error()
		report.FinishedAt = time.Now().UTC()
		return report, fmt.Errorf("cycle: load state: %w", err)
	}
	report.Cycle = state.CycleCount + 1

	if !force && state.LastRunAt != nil {
		elapsed := time.Since(*state.LastRunAt)
		if elapsed < s.cfg.Throttle {
			report.Status = domain.CycleStatusWaiting
			report.FinishedAt = time.Now().UTC()
			s.metrics.CyclesTotal.WithLabelValues(string(report.Status)).Inc()
			s.logger.DebugContext(ctx, "cycle waiting for throttle",
				slog.Duration("elapsed", elapsed),
				slog.Duration("throttle", s.cfg.Throttle),
			)
			return report, nil
		}
	}

	err = s.execute(ctx, &report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Status = domain.CycleStatusError
		report.Error = err.Error()
		s.notifier.CycleError(ctx, report.Cycle, err)
	} else {
		report.Status = domain.CycleStatusCompleted
	}

	s.metrics.CyclesTotal.WithLabelValues(string(report.Status)).Inc()
	if logErr := s.cycles.LogCycle(ctx, report); logErr != nil {
		s.logger.WarnContext(ctx, "cycle audit write failed",
			slog.String("error", logErr.Error()))
	}

	if err != nil {
		return report, fmt.Errorf("cycle %d: %w", report.Cycle, err)
	}
	return report, nil
}

// execute runs the pipeline body under a panic guard: a panicking cycle is
// cycle-fatal, never process-fatal, and the deferred unlock still runs.
func (s *CycleService) execute(ctx context.Context, report *domain.CycleReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	pf, err := s.portfolio.Get(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	cash := pf.Balance
	s.metrics.BalanceGauge.Set(cash)

	open, err := s.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	s.metrics.OpenPositions.Set(float64(len(open)))

	heldClusters, err := s.positions.OpenClusterKeys(ctx)
	if err != nil {
		return fmt.Errorf("load held clusters: %w", err)
	}

	universe, err := s.source.FetchUniverse(ctx)
	if err != nil {
		return fmt.Errorf("fetch universe: %w", err)
	}
	report.MarketsScanned = len(universe)
	s.metrics.MarketsScanned.Add(float64(len(universe)))

	held := make(map[string]bool, len(open))
	for _, p := range open {
		held[p.ContractID] = true
	}

	ids := make([]string, len(universe))
	for i, c := range universe {
		ids[i] = c.ID
	}
	recent, err := s.recent.FilterFresh(ctx, ids)
	if err != nil {
		return fmt.Errorf("query recent cache: %w", err)
	}

	fr := s.filter.Apply(universe, held, recent, time.Now().UTC(), cash)
	report.Breakdown = fr.Breakdown
	report.FilterLevel = fr.Level

	pool := screener.DedupPool(fr.Pool)
	pool, _ = screener.ExcludeHeldClusters(pool, heldClusters)

	selected := screener.Diversify(pool, s.cfg.PerCategoryCap, s.cfg.AnalysisCap)
	batches := screener.Batch(selected, s.cfg.BatchSize, s.cfg.MaxBatches)
	report.Candidates = len(selected)
	report.Batches = len(batches)
	s.metrics.CandidatesGauge.Set(float64(len(selected)))

	s.logger.InfoContext(ctx, "candidate pool built",
		slog.Int("universe", len(universe)),
		slog.Int("pool", len(pool)),
		slog.Int("selected", len(selected)),
		slog.Int("batches", len(batches)),
		slog.Int("filter_level", fr.Level),
	)

	// A cycle with nothing to assess still counts against the throttle:
	// thin markets should not turn every tick into a universe re-scan.
	if len(batches) == 0 {
		return s.cycles.MarkRun(ctx, time.Now().UTC())
	}

	analyzed := make([]string, len(selected))
	for i, c := range selected {
		analyzed[i] = c.ID
	}
	if err := s.recent.MarkAnalyzed(ctx, analyzed, s.cfg.Throttle); err != nil {
		return fmt.Errorf("mark analyzed: %w", err)
	}

	stats, err := s.stats.Compute(ctx)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	scored := s.assessBatches(ctx, batches, open, cash, stats, report)
	scored = screener.DedupAssessed(scored)

	s.placeBets(ctx, scored, cash, report)

	return s.cycles.MarkRun(ctx, time.Now().UTC())
}

// assessBatches calls the oracle once per batch, sequentially. An oracle
// call error abandons the current batch and every remaining batch in this
// cycle; an unparseable reply only costs its own batch, since the call
// itself (and its spend) went through.
func (s *CycleService) assessBatches(
	ctx context.Context,
	batches [][]domain.Contract,
	open []domain.Position,
	cash float64,
	stats domain.BotStats,
	report *domain.CycleReport,
) []domain.ScoredAssessment {
	var scored []domain.ScoredAssessment

	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}

		reply, err := s.oracle.Analyze(ctx, domain.OracleRequest{
			Contracts:     batch,
			OpenPositions: open,
			AvailableCash: cash,
			Stats:         stats,
		})
		s.metrics.OracleCalls.Inc()
		if err != nil {
			s.logger.ErrorContext(ctx, "oracle call failed",
				slog.Int("batch", i),
				slog.String("error", err.Error()),
			)
			s.logActivity(ctx, domain.ActivityError,
				fmt.Sprintf("oracle call failed for batch %d, abandoning remaining batches: %v", i+1, err))
			break
		}

		report.OracleCost += reply.Cost
		s.metrics.OracleCost.Add(reply.Cost)
		if err := s.portfolio.AddOracleSpend(ctx, reply.Cost); err != nil {
			s.logger.WarnContext(ctx, "oracle spend accounting failed",
				slog.String("error", err.Error()))
		}

		assessments, summary, err := oracle.Parse(reply.Text)
		if err != nil {
			s.metrics.ParseFailures.Inc()
			s.logger.WarnContext(ctx, "oracle reply unparseable",
				slog.Int("batch", i),
				slog.Int("reply_bytes", len(reply.Text)),
			)
			s.logActivity(ctx, domain.ActivityWarning,
				fmt.Sprintf("oracle reply for batch %d could not be parsed", i+1))
			continue
		}
		report.Assessed += len(assessments)
		if summary != "" {
			s.logActivity(ctx, domain.ActivityInference, summary)
		}

		poolIndex := make(map[string]domain.Contract, len(batch))
		for _, c := range batch {
			poolIndex[c.ID] = c
		}
		batchScored, drops := s.interpreter.Interpret(assessments, poolIndex)
		for _, d := range drops {
			s.logger.DebugContext(ctx, "assessment dropped",
				slog.String("contract_id", d.ContractID),
				slog.String("reason", string(d.Reason)),
			)
		}
		scored = append(scored, batchScored...)
	}

	return scored
}

// placeBets sizes each surviving assessment and routes accepted decisions
// to the ledger. cash is tracked locally so one cycle's bets compound
// their own debits without re-reading the portfolio.
func (s *CycleService) placeBets(ctx context.Context, scored []domain.ScoredAssessment, cash float64, report *domain.CycleReport) {
	if len(scored) == 0 {
		return
	}

	// Each bet carries an equal share of the cycle's oracle bill.
	amortized := report.OracleCost / float64(len(scored))

	for _, a := range scored {
		d := sizing.Size(s.cfg.Sizing, a, cash, amortized)
		if d.Rejected() {
			s.metrics.SizingRejects.WithLabelValues(string(d.Reason)).Inc()
			s.logger.DebugContext(ctx, "sizing rejected",
				slog.String("contract_id", a.Contract.ID),
				slog.String("reason", string(d.Reason)),
			)
			continue
		}

		s.logActivity(ctx, domain.ActivityEdge, fmt.Sprintf(
			"edge %+.1f%% on %s (%s, confidence %d)",
			a.Edge*100, a.Contract.Question, a.Side, a.Confidence))

		if !s.cfg.AutoTrading {
			s.logActivity(ctx, domain.ActivityInfo, fmt.Sprintf(
				"auto-trading off: would bet $%.2f on %s", d.Amount, a.Contract.Question))
			continue
		}

		if _, err := s.ledger.Place(ctx, a, d); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				s.logger.InfoContext(ctx, "bet skipped, balance drained",
					slog.String("contract_id", a.Contract.ID),
					slog.Float64("amount", d.Amount),
				)
				continue
			}
			s.logger.ErrorContext(ctx, "bet placement failed",
				slog.String("contract_id", a.Contract.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		cash -= d.Amount
		report.BetsPlaced++
		report.TotalStaked += d.Amount
	}
}

func (s *CycleService) logActivity(ctx context.Context, kind domain.ActivityKind, message string) {
	if err := s.activity.Log(ctx, kind, message); err != nil {
		s.logger.WarnContext(ctx, "activity log failed",
			slog.String("error", err.Error()))
	}
}
