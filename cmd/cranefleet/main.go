package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/cranefleet/cranefleet/internal/app"
	"github.com/cranefleet/cranefleet/internal/auth"
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
	mdService := masterdata.NewService(mdRepo)
	directory := masterdata.NewDirectory(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, logger)

	movementsRepo := movements.NewRepository(pool)
	movementsService := movements.NewService(movementsRepo, directory, resolver, ledgerService, logger)

	opsRepo := terminalops.NewRepository(pool)
	opsService := terminalops.NewService(opsRepo, resolver, logger)

	vendistaClient := vendista.NewClient(cfg.VendistaTokenURL, cfg.VendistaReportURL, nil)
	vendistaService := vendista.NewService(vendistaClient, directory, opsService, logger)

	monitoringRepo := monitoring.NewRepository(pool)
	monitoringService := monitoring.NewService(monitoringRepo)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, directory, mdRepo,
		monitoringRepo, movementsService, stockService, reportCache, logger)

	notifierRepo := notifier.NewRepository(pool)
	telegram := notifier.NewTelegram(cfg.TelegramAPIBase, nil)
	notifierService := notifier.NewService(notifierRepo, telegram, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, []byte(cfg.JWTSecret))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		AuthHandler:        auth.NewHandler(logger, authService),
		MasterDataHandler:  masterdata.NewHandler(logger, mdService, mdRepo),
		RefsHandler:        refs.NewHandler(logger, refsRepo),
		LedgerHandler:      ledger.NewHandler(logger, ledgerService, ledgerRepo),
		StockHandler:       stock.NewHandler(logger, stockService),
		MovementsHandler:   movements.NewHandler(logger, movementsService),
		TerminalOpsHandler: terminalops.NewHandler(logger, opsService),
		VendistaHandler:    vendista.NewHandler(logger, vendistaService),
		MonitoringHandler:  monitoring.NewHandler(logger, monitoringService),
		ReportsHandler:     reports.NewHandler(logger, reportsService),
		NotifierHandler:    notifier.NewHandler(logger, notifierService),
		JobsHandler:        jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
