package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/config"
	"github.com/mamadbah2/daybook-sync/internal/repository/mongodb"
	"github.com/mamadbah2/daybook-sync/internal/repository/sheets"
	"github.com/mamadbah2/daybook-sync/internal/repository/sqlite"
	"github.com/mamadbah2/daybook-sync/internal/scheduler"
	"github.com/mamadbah2/daybook-sync/internal/server/handlers"
	"github.com/mamadbah2/daybook-sync/internal/server/router"
	"github.com/mamadbah2/daybook-sync/internal/service/connectivity"
	"github.com/mamadbah2/daybook-sync/internal/service/offlinesync"
	"github.com/mamadbah2/daybook-sync/internal/service/reference"
	"github.com/mamadbah2/daybook-sync/internal/service/settlement"
	"github.com/mamadbah2/daybook-sync/pkg/clients/remote"
	"github.com/mamadbah2/daybook-sync/pkg/logger"
)

// remoteBackend is what either backend offers the services.
type remoteBackend interface {
	offlinesync.RemoteStore
	reference.Provider
	connectivity.Prober
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend := openBackend(ctx, cfg, baseLogger)
	defer closeBackend()

	// Without a queue the service still runs, submitting entries directly.
	var (
		queue offlinesync.QueueStore
		cache reference.Cache
	)
	store, err := sqlite.Open(ctx, cfg.Queue.Path, baseLogger.Named("repo.sqlite"))
	if err != nil {
		baseLogger.Error("queue store unavailable, running without offline queue", zap.Error(err))
	} else {
		queue, cache = store, store
		defer func() {
			if err := store.Close(); err != nil {
				baseLogger.Error("failed to close queue store", zap.Error(err))
			}
		}()
	}

	monitor := connectivity.NewMonitor(false, baseLogger.Named("svc.connectivity"))
	engine := offlinesync.NewEngine(queue, backend, monitor, baseLogger.Named("svc.offlinesync"),
		offlinesync.WithStatusWindow(cfg.Sync.StatusWindow))
	controller := connectivity.NewController(ctx, monitor, engine, baseLogger.Named("svc.controller"))
	go monitor.Watch(ctx, backend, cfg.Connectivity.ProbeInterval)

	referenceSvc := reference.NewService(backend, cache, baseLogger.Named("svc.reference"))

	var exporter handlers.SettlementExporter
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		exporter = settlement.NewExporter(sheetsRepo, cfg.Sheets.SettlementRange, baseLogger.Named("svc.settlement"))
	} else {
		baseLogger.Warn("google sheets credentials missing, settlement export disabled")
	}

	syncHandler := handlers.NewSyncHandler(engine, controller, baseLogger.Named("handlers.sync"))
	businessHandler := handlers.NewBusinessHandler(referenceSvc, exporter, baseLogger.Named("handlers.business"))
	ginEngine := router.New(syncHandler, businessHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Sync, controller, referenceSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ginEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("remote_backend", cfg.Remote.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	controller.Wait()
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (remoteBackend, func()) {
	switch cfg.Remote.Backend {
	case config.BackendMongoDB:
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			log.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		indexCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mongoRepo.EnsureIndexes(indexCtx); err != nil {
			log.Warn("mongodb index not ensured yet, retried on first submission", zap.Error(err))
		}
		return mongoRepo, func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				log.Error("failed to close mongodb connection", zap.Error(err))
			}
		}
	default:
		return remote.NewClient(cfg.Remote), func() {}
	}
}
