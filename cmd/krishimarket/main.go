package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/krishimarket/krishimarket/internal/app"
	"github.com/krishimarket/krishimarket/internal/counterparty"
	"github.com/krishimarket/krishimarket/internal/identity"
	"github.com/krishimarket/krishimarket/internal/observability"
	"github.com/krishimarket/krishimarket/internal/orders"
	"github.com/krishimarket/krishimarket/internal/planning"
	"github.com/krishimarket/krishimarket/internal/platform/cache"
	"github.com/krishimarket/krishimarket/internal/platform/db"
	"github.com/krishimarket/krishimarket/internal/store"
	"github.com/krishimarket/krishimarket/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.PGAutoMigrate {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("migrate postgres", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tables := append(orders.Tables(), counterparty.Tables()...)
	tables = append(tables, identity.ProfileTables()...)
	tables = append(tables, planning.Tables()...)
	dataStore := store.NewPostgres(dbpool, tables...)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	profiles := identity.NewProfiles(dataStore)
	provider := identity.ContextProvider{}

	orderService := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(dataStore),
		Drafts:      orders.NewDraftStore(redisClient, cfg.DraftTTL),
		Parties:     counterparty.NewSearcher(dataStore, logger, metrics),
		Profiles:    profiles,
		Notifier:    jobClient,
		Recorder:    metrics,
		Logger:      logger,
		RecentLimit: cfg.RecentLimit,
	})
	billingHandler := orders.NewHandler(logger, orderService, orders.StoreInvoice, provider)
	brokerHandler := orders.NewHandler(logger, orderService, orders.BrokerSale, provider)

	planningHandler := planning.NewHandler(logger, planning.NewService(dataStore), provider)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Authenticator:   identity.NewAuthenticator(cfg.JWTSecret, cfg.JWTAudience, logger),
		Profiles:        profiles,
		BillingHandler:  billingHandler,
		BrokerHandler:   brokerHandler,
		PlanningHandler: planningHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
