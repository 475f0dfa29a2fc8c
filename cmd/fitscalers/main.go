// Command fitscalers fits a min-max scaler to every city's daily PM2.5 series
// and writes the scaler artifact loaded by aqserver.
//
// Usage:
//
//	go run ./cmd/fitscalers -out data/scalers.json
//	go run ./cmd/fitscalers -csv city_hour.csv -out data/scalers.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/aq-forecast-service/internal/adapter/csvfile"
	"github.com/couchcryptid/aq-forecast-service/internal/adapter/storage"
	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/scaler"
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

	csvPath := flag.String("csv", "", "hourly CSV export to fit from (default: the reading database)")
	out := flag.String("out", cfg.ScalersPath, "output path for the scaler artifact")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(context.Background(), cfg, *csvPath, *out, logger); err != nil {
		logger.Error("scaler fitting failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, csvPath, out string, logger *slog.Logger) error {
	store := timeseries.NewStore()
	if csvPath != "" {
		if err := loadCSV(store, csvPath); err != nil {
			return err
		}
	} else {
		db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		readings, err := storage.NewRepository(db).LoadReadings(ctx)
		if err != nil {
			return err
		}
		store.Append(readings...)
	}

	reg, skipped, err := scaler.FitAll(citySeries(store), domain.MinForecastHistory)
	if err != nil {
		return err
	}
	for _, city := range skipped {
		logger.Warn("city skipped, not enough daily values", "city", city, "min", domain.MinForecastHistory)
	}
	if err := reg.SaveFile(out); err != nil {
		return err
	}
	logger.Info("scalers written", "path", out, "cities", reg.Len(), "skipped", len(skipped))
	return nil
}

// citySeries returns each city's present daily PM2.5 values in date order.
func citySeries(store *timeseries.Store) map[string][]float64 {
	series := make(map[string][]float64)
	for _, city := range store.Cities() {
		series[city] = domain.PresentValues(store.DailySeries(city, domain.PM25))
	}
	return series
}

func loadCSV(store *timeseries.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rd, err := csvfile.NewReader(f)
	if err != nil {
		return err
	}
	for {
		batch, err := rd.ReadBatch(1000)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		store.Append(batch...)
	}
}
