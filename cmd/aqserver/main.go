package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/aq-forecast-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/aq-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/aq-forecast-service/internal/adapter/mapbox"
	"github.com/couchcryptid/aq-forecast-service/internal/adapter/storage"
	"github.com/couchcryptid/aq-forecast-service/internal/cache"
	"github.com/couchcryptid/aq-forecast-service/internal/cluster"
	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/forecast"
	"github.com/couchcryptid/aq-forecast-service/internal/ingest"
	"github.com/couchcryptid/aq-forecast-service/internal/model"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/registry"
	"github.com/couchcryptid/aq-forecast-service/internal/scaler"
	"github.com/couchcryptid/aq-forecast-service/internal/timeseries"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("aqserver failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	repo := storage.NewRepository(db)

	reg, err := loadRegistry(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	scalers, err := scaler.LoadFile(cfg.ScalersPath)
	if err != nil {
		return err
	}
	network, err := model.LoadDenseNetworkFile(cfg.ModelPath)
	if err != nil {
		return err
	}

	store := timeseries.NewStore()
	readings, err := repo.LoadReadings(ctx)
	if err != nil {
		return err
	}
	store.Append(readings...)
	logger.Info("readings loaded", "rows", len(readings), "cities", len(store.Cities()))

	logWarnings(logger, reg.Reconcile("readings", store.Cities()))
	logWarnings(logger, reg.Reconcile("scalers", scalers.Cities()))

	predictions := cache.New(metrics, logger)
	snapshots := cluster.NewHolder()
	go snapshots.Refresh(ctx, repo, cfg.SnapshotRefreshInterval, logger)

	svc, err := forecast.NewService(forecast.Deps{
		Cities:    reg,
		Series:    store,
		Scalers:   scalers,
		Model:     model.NewAdapter(network, metrics),
		Cache:     predictions,
		Snapshots: snapshots,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	ready := readiness{svc, repo}

	var reader *kafkaadapter.Reader
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		loader := ingest.NewLoader(repo, store, predictions, reg, logger)
		p := ingest.New(reader, ingest.RowParser{}, loader, logger, metrics, cfg.BatchSize)
		ready = append(ready, p)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("ingest error", "error", err)
			}
		}()
		logger.Info("batch ingestion enabled", "topic", cfg.KafkaSourceTopic, "batch_size", cfg.BatchSize)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, cfg.CORSOrigins, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func loadRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*registry.Registry, error) {
	reg, warnings, err := registry.LoadFile(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	logWarnings(logger, warnings)

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		repaired := reg.ResolveMissingCoordinates(ctx, client, logger)
		logger.Info("registry coordinates repaired", "cities", repaired)
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("registry %s: no cities", cfg.RegistryPath)
	}
	logger.Info("registry loaded", "cities", reg.Len())
	return reg, nil
}

func logWarnings(logger *slog.Logger, warnings []*domain.ConfigError) {
	for _, w := range warnings {
		logger.Warn("registry warning", "city", w.City, "reason", w.Reason)
	}
}

// readiness is ready when every component is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
