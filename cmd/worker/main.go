package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cranefleet/cranefleet/internal/app"
	"github.com/cranefleet/cranefleet/internal/ledger"
	"github.com/cranefleet/cranefleet/internal/masterdata"
	"github.com/cranefleet/cranefleet/internal/monitoring"
	"github.com/cranefleet/cranefleet/internal/movements"
	"github.com/cranefleet/cranefleet/internal/notifier"
	"github.com/cranefleet/cranefleet/internal/observability"
	"github.com/cranefleet/cranefleet/internal/platform/cache"
	"github.com/cranefleet/cranefleet/internal/platform/db"
	"github.com/cranefleet/cranefleet/internal/refs"
	"github.com/cranefleet/cranefleet/internal/reports"
	"github.com/cranefleet/cranefleet/internal/scheduler"
	"github.com/cranefleet/cranefleet/internal/stock"
	"github.com/cranefleet/cranefleet/internal/terminalops"
	"github.com/cranefleet/cranefleet/internal/vendista"
	"github.com/cranefleet/cranefleet/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() { _ = redisClient.Close() }()
	}
	reportCache := cache.NewJSONCache(redisClient, "cranefleet:", cfg.CacheTTL)

	metrics := observability.NewMetrics()

	refsRepo := refs.NewRepository(pool)
	resolver := refs.NewResolver(refsRepo)

	mdRepo := masterdata.NewRepository(pool)
	directory := masterdata.NewDirectory(pool)

	ledgerService := ledger.NewService(ledger.NewRepository(pool))
	stockService := stock.NewService(stock.NewRepository(pool), logger)
	movementsService := movements.NewService(movements.NewRepository(pool), directory, resolver, ledgerService, logger)

	opsService := terminalops.NewService(terminalops.NewRepository(pool), resolver, logger)

	vendistaClient := vendista.NewClient(cfg.VendistaTokenURL, cfg.VendistaReportURL, nil)
	vendistaService := vendista.NewService(vendistaClient, directory, opsService, logger)

	monitoringRepo := monitoring.NewRepository(pool)

	reportsService := reports.NewService(reports.NewRepository(pool), directory, mdRepo,
		monitoringRepo, movementsService, stockService, reportCache, logger)

	telegram := notifier.NewTelegram(cfg.TelegramAPIBase, nil)
	notifierService := notifier.NewService(notifier.NewRepository(pool), telegram, logger)

	registry := jobs.BuildRegistry(jobs.RegistryDeps{
		Sync:    vendistaService,
		Close:   opsService,
		Reports: reportsService,
		Stock:   stockService,
		Fleet:   mdRepo,
		Notify:  notifierService,
		Metrics: metrics,
		Logger:  logger,
	})
	jobsService := scheduler.NewService(scheduler.NewRepository(pool), registry, logger)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Jobs:      jobsService,
		Metrics:   metrics,
		Logger:    logger,
	})

	if err := worker.RegisterJobs(ctx); err != nil {
		logger.Error("register jobs", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
