// Command importcsv loads an hourly city CSV export into the reading database.
// Re-importing the same file is idempotent: rows are upserted by city, hour and
// pollutant.
//
// Usage:
//
//	go run ./cmd/importcsv -csv city_hour.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/couchcryptid/aq-forecast-service/internal/adapter/csvfile"
	"github.com/couchcryptid/aq-forecast-service/internal/adapter/storage"
	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/registry"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	csvPath := flag.String("csv", "", "hourly CSV export to import")
	batch := flag.Int("batch", 1000, "rows per insert transaction")
	flag.Parse()

	if *csvPath == "" || *batch < 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *csvPath, *batch, logger); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

// ReadingSink persists a batch of readings.
type ReadingSink interface {
	InsertReadings(ctx context.Context, readings []domain.Reading) error
}

func run(ctx context.Context, cfg *config.Config, csvPath string, batchSize int, logger *slog.Logger) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	rd, err := csvfile.NewReader(f)
	if err != nil {
		return err
	}
	stats, err := importReadings(ctx, rd, storage.NewRepository(db), batchSize)
	if err != nil {
		return err
	}
	logger.Info("csv imported",
		"path", csvPath,
		"rows", stats.rows,
		"rejected", rd.Rejected,
		"cities", len(stats.cities),
	)

	if reg, warnings, err := registry.LoadFile(cfg.RegistryPath); err == nil {
		warnings = append(warnings, reg.Reconcile("csv "+csvPath, stats.cityList())...)
		for _, w := range warnings {
			logger.Warn("registry warning", "city", w.City, "reason", w.Reason)
		}
	} else {
		logger.Warn("registry not checked", "error", err)
	}
	return nil
}

type importStats struct {
	rows   int
	cities map[string]struct{}
}

func (s importStats) cityList() []string {
	out := make([]string, 0, len(s.cities))
	for c := range s.cities {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func importReadings(ctx context.Context, rd *csvfile.Reader, sink ReadingSink, batchSize int) (importStats, error) {
	stats := importStats{cities: make(map[string]struct{})}
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := rd.ReadBatch(batchSize)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		if err := sink.InsertReadings(ctx, batch); err != nil {
			return stats, fmt.Errorf("insert batch at row %d: %w", stats.rows, err)
		}
		stats.rows += len(batch)
		for _, r := range batch {
			stats.cities[r.City] = struct{}{}
		}
	}
}
