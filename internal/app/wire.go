package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/quantfold/sibyl/internal/blob/s3"
	"github.com/quantfold/sibyl/internal/cache/redis"
	"github.com/quantfold/sibyl/internal/config"
	"github.com/quantfold/sibyl/internal/domain"
	"github.com/quantfold/sibyl/internal/metrics"
	"github.com/quantfold/sibyl/internal/notify"
	"github.com/quantfold/sibyl/internal/oracle"
	"github.com/quantfold/sibyl/internal/platform/anthropic"
	"github.com/quantfold/sibyl/internal/platform/polymarket"
	"github.com/quantfold/sibyl/internal/screener"
	"github.com/quantfold/sibyl/internal/service"
	"github.com/quantfold/sibyl/internal/sizing"
	"github.com/quantfold/sibyl/internal/store/postgres"
)

// Dependencies bundles everything the modes need, constructed by Wire and
// torn down by the returned cleanup function.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client

	Positions domain.PositionStore
	Portfolio *postgres.PortfolioStore
	Cycles    domain.CycleStore
	Activity  domain.ActivityStore
	Recent    domain.RecentCache
	Lock      domain.LockManager

	Gamma    *polymarket.GammaClient
	Oracle   domain.Oracle
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
	Archiver *s3blob.Archiver

	Ledger     *service.LedgerService
	Stats      *service.StatsService
	Cycle      *service.CycleService
	Resolution *service.ResolutionService
}

// Wire constructs all concrete implementations from the configuration.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Postgres = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.Positions = postgres.NewPositionStore(pgClient)
	deps.Portfolio = postgres.NewPortfolioStore(pgClient)
	deps.Cycles = postgres.NewCycleStore(pgClient)
	deps.Activity = postgres.NewActivityStore(pgClient)

	if err := deps.Portfolio.Ensure(ctx, cfg.Trading.InitialBalance); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: seed portfolio: %w", err)
	}

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Redis = redisClient

	deps.Recent = redis.NewRecentCache(redisClient)
	deps.Lock = redis.NewLockManager(redisClient)

	deps.Gamma = polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL:   cfg.Polymarket.GammaHost,
		PageSize:  cfg.Polymarket.PageSize,
		MaxPages:  cfg.Polymarket.MaxPages,
		RateLimit: cfg.Polymarket.RateLimit,
	})

	deps.Oracle = anthropic.New(anthropic.ClientConfig{
		APIKey:            cfg.Oracle.APIKey,
		Model:             cfg.Oracle.Model,
		BaseURL:           cfg.Oracle.BaseURL,
		MaxTokens:         cfg.Oracle.MaxTokens,
		Timeout:           cfg.Oracle.Timeout.Duration,
		InputCostPerMTok:  cfg.Oracle.InputCostPerMTok,
		OutputCostPerMTok: cfg.Oracle.OutputCostPerMTok,
	})

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	deps.Metrics = metrics.New()

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client), deps.Activity, deps.Cycles, logger)
	}

	deps.Ledger = service.NewLedgerService(
		deps.Positions, deps.Portfolio, deps.Cycles, deps.Recent,
		deps.Activity, deps.Notifier, deps.Metrics, logger)

	deps.Stats = service.NewStatsService(
		deps.Positions, deps.Portfolio, deps.Cycles, cfg.Trading.Throttle.Duration)

	filter := screener.NewFilter(screener.FilterConfig{
		MaxDaysToClose:     cfg.Filter.MaxDaysToClose,
		MinTimeToClose:     cfg.Filter.MinTimeToClose.Duration,
		AbsoluteFloor:      cfg.Filter.AbsoluteFloor,
		FloorCeiling:       cfg.Filter.FloorCeiling,
		Multiplier:         cfg.Filter.Multiplier,
		TypicalBetFraction: cfg.Filter.TypicalBetFraction,
		VolumeFloorRatio:   cfg.Filter.VolumeFloorRatio,
		MaxSpread:          cfg.Filter.MaxSpread,
		SlowCategorySpread: cfg.Filter.SlowCategorySpread,
		ExtremePrice:       cfg.Filter.ExtremePrice,
		TargetPoolSize:     cfg.Filter.TargetPoolSize,
	})

	interpreter := oracle.NewInterpreter(oracle.InterpreterConfig{
		EdgeCeiling: cfg.Sizing.EdgeCeiling,
	}, logger)

	deps.Cycle = service.NewCycleService(
		service.CycleConfig{
			Interval:       cfg.Trading.CycleInterval.Duration,
			Throttle:       cfg.Trading.Throttle.Duration,
			LockMaxAge:     cfg.Trading.LockMaxAge.Duration,
			AnalysisCap:    cfg.Trading.DailyAnalysisCap,
			PerCategoryCap: cfg.Trading.PerCategoryCap,
			BatchSize:      cfg.Trading.BatchSize,
			MaxBatches:     cfg.Trading.MaxBatches,
			AutoTrading:    cfg.Trading.AutoTrading,
			Sizing: sizing.Config{
				KellyFraction:   cfg.Sizing.KellyFraction,
				BankrollCap:     cfg.Sizing.BankrollCap,
				MinOrder:        cfg.Sizing.MinOrder,
				ConfidenceFloor: cfg.Sizing.ConfidenceFloor,
				MinPrice:        cfg.Sizing.MinPrice,
				MaxPrice:        cfg.Sizing.MaxPrice,
				MinNetEdge:      cfg.Sizing.MinNetEdge,
				MinReturnPct:    cfg.Sizing.MinReturnPct,
			},
		},
		deps.Gamma, deps.Oracle, filter, interpreter,
		deps.Lock, deps.Cycles, deps.Recent, deps.Positions, deps.Portfolio,
		deps.Ledger, deps.Stats, deps.Activity, deps.Notifier, deps.Metrics, logger)

	deps.Resolution = service.NewResolutionService(
		service.ResolutionConfig{
			Interval:        cfg.Resolution.Interval.Duration,
			CheckCooldown:   cfg.Resolution.CheckCooldown.Duration,
			WinnerThreshold: cfg.Resolution.WinnerThreshold,
			DriftTolerance:  cfg.Resolution.DriftTolerance,
		},
		deps.Gamma, deps.Positions, deps.Ledger,
		deps.Activity, deps.Notifier, deps.Metrics, logger)

	return deps, cleanup, nil
}
