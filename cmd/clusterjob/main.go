// Command clusterjob runs one severity-clustering pass over the stored
// readings, persists the snapshot and optionally publishes the assignments.
//
// Usage:
//
//	go run ./cmd/clusterjob -seed 42 -publish
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/aq-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/aq-forecast-service/internal/adapter/storage"
	"github.com/couchcryptid/aq-forecast-service/internal/cluster"
	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/timeseries"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	seed := flag.Uint64("seed", cfg.ClusterSeed, "k-means random seed")
	publish := flag.Bool("publish", false, "publish assignments to the Kafka sink topic")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed, *publish, logger); err != nil {
		logger.Error("clustering failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed uint64, publish bool, logger *slog.Logger) error {
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	repo := storage.NewRepository(db)

	readings, err := repo.LoadReadings(ctx)
	if err != nil {
		return err
	}
	store := timeseries.NewStore()
	store.Append(readings...)
	logger.Info("readings loaded", "rows", len(readings), "cities", len(store.Cities()))

	sinks := []cluster.SnapshotSink{repo}
	if publish {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
	}

	runner := cluster.NewRunner(
		cluster.NewAssigner(seed),
		store,
		cluster.NewHolder(),
		logger,
		observability.NewMetrics(),
		sinks...,
	)
	snap, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	for _, a := range sortedAssignments(snap) {
		logger.Info("city tier", "city", a.City, "tier", a.Tier.String(), "level", a.Level)
	}
	return nil
}
