package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/sibyl/internal/server"
	"github.com/quantfold/sibyl/internal/server/handler"
)

// RunMode is the normal operating mode: the cycle loop, the resolution
// loop, the archiver sweep, and (when enabled) the operator API all run
// until the context is cancelled.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting run mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Cycle.Run(ctx)
	})

	g.Go(func() error {
		return deps.Resolution.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	return g.Wait()
}

// OnceMode runs a single forced cycle followed by one resolution pass,
// then exits. Useful for cron-driven deployments and manual testing.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	report, err := deps.Cycle.RunCycle(ctx, true)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "cycle finished",
		slog.Int64("cycle", report.Cycle),
		slog.String("status", string(report.Status)),
		slog.Int("bets_placed", report.BetsPlaced),
		slog.Float64("total_staked", report.TotalStaked),
	)

	if err := deps.Resolution.CheckOnce(ctx); err != nil {
		return err
	}
	return deps.Ledger.Reconcile(ctx, a.cfg.Resolution.DriftTolerance)
}

// ServeMode runs only the operator API: no cycles, no resolution. Intended
// for read-only inspection of a shared ledger.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// startServer builds the HTTP server and registers its run and shutdown
// goroutines on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}, a.logger),
		Status:    handler.NewStatusHandler(deps.Stats, deps.Cycles, a.logger),
		Cycle:     handler.NewCycleHandler(deps.Cycle, deps.Cycles, a.logger),
		Positions: handler.NewPositionHandler(deps.Positions, deps.Ledger, a.logger),
		Activity:  handler.NewActivityHandler(deps.Activity),
		Portfolio: handler.NewPortfolioHandler(deps.Ledger, a.cfg.Trading.InitialBalance, a.logger),
	}

	srv := server.New(server.Config{Port: a.cfg.Server.Port}, handlers, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// archiveLoop sweeps aged history to object storage once a day.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)

			if n, err := deps.Archiver.ArchiveActivity(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "activity archive failed",
					slog.String("error", err.Error()))
			} else if n > 0 {
				a.logger.InfoContext(ctx, "activity archived", slog.Int64("entries", n))
			}

			if _, err := deps.Archiver.ArchiveCycles(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "cycle archive failed",
					slog.String("error", err.Error()))
			}
		}
	}
}
