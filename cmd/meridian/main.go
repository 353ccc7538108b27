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

	"github.com/meridian-ops/meridian/internal/app"
	"github.com/meridian-ops/meridian/internal/catalog"
	"github.com/meridian-ops/meridian/internal/hierarchy"
	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/observability"
	"github.com/meridian-ops/meridian/internal/party"
	"github.com/meridian-ops/meridian/internal/placement"
	"github.com/meridian-ops/meridian/internal/platform/cache"
	"github.com/meridian-ops/meridian/internal/platform/db"
	"github.com/meridian-ops/meridian/internal/purchasing"
	"github.com/meridian-ops/meridian/internal/receiving"
	"github.com/meridian-ops/meridian/internal/shared"
	"github.com/meridian-ops/meridian/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	availabilityCache := ledger.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)

	// TODO: replace the static token with the identity gateway client once
	// its staging endpoint is available.
	authorizer := shared.NewStaticTokenAuthorizer(map[string]shared.Actor{
		cfg.APIToken: {ID: 1, BusinessID: 1, Name: "service"},
	})

	catalogService := catalog.NewService(catalog.NewRepository(pool), auditLogger)
	ledgerService := ledger.NewService(ledger.NewRepository(pool), idempotencyStore, availabilityCache,
		ledger.ServiceConfig{LineCap: cfg.LedgerLineCap})
	placementService := placement.NewService(placement.NewRepository(pool))
	hierarchyService := hierarchy.NewService(hierarchy.NewRepository(pool), jobClient,
		hierarchy.NewStatsCache(redisClient),
		hierarchy.ServiceConfig{WriteBatchSize: cfg.WriteBatchSize})
	partyService := party.NewService(party.NewRepository(pool), auditLogger)
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), partyService, catalogService)
	receivingService := receiving.NewService(receiving.NewRepository(pool), catalogService, hierarchyService,
		availabilityCache, receiving.ServiceConfig{LineCap: cfg.LedgerLineCap})

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Authorizer:        authorizer,
		CatalogHandler:    catalog.NewHandler(logger, catalogService),
		LedgerHandler:     ledger.NewHandler(logger, ledgerService, metrics),
		PlacementHandler:  placement.NewHandler(logger, placementService),
		HierarchyHandler:  hierarchy.NewHandler(logger, hierarchyService),
		PartyHandler:      party.NewHandler(logger, partyService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		ReceivingHandler:  receiving.NewHandler(logger, receivingService, metrics),
		JobsHandler:       jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
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
