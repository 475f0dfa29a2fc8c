package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// RowParser implements Parser for JSON reading rows.
type RowParser struct{}

// Parse decodes the row and rejects rows without a single pollutant column.
func (RowParser) Parse(_ context.Context, raw domain.RawRow) (domain.Reading, error) {
	r, err := domain.ParseReadingRow(raw)
	if err != nil {
		return domain.Reading{}, err
	}
	if len(r.Values) == 0 {
		return domain.Reading{}, fmt.Errorf("reading row for %s at %s has no pollutant columns", r.City, r.Time.Format(domain.DatetimeLayout))
	}
	return r, nil
}

// ReadingSink persists readings.
type ReadingSink interface {
	InsertReadings(ctx context.Context, readings []domain.Reading) error
}

// Appender receives readings for serving.
type Appender interface {
	Append(readings ...domain.Reading)
}

// EpochResetter invalidates memoized forecasts.
type EpochResetter interface {
	Reset() uint64
}

// CityChecker reports whether a city is registered.
type CityChecker interface {
	Has(name string) bool
}

// Loader implements BatchLoader: persist, append, then start a new cache epoch
// so later queries see the batch.
type Loader struct {
	sink   ReadingSink
	store  Appender
	cache  EpochResetter
	cities CityChecker
	logger *slog.Logger
	warned map[string]struct{}
}

// NewLoader wires the load stage. sink and cities may be nil.
func NewLoader(sink ReadingSink, store Appender, cache EpochResetter, cities CityChecker, logger *slog.Logger) *Loader {
	return &Loader{
		sink:   sink,
		store:  store,
		cache:  cache,
		cities: cities,
		logger: logger,
		warned: make(map[string]struct{}),
	}
}

// LoadBatch makes readings visible to queries. Nothing is appended if
// persisting fails, so a retried batch is not double counted in memory.
func (l *Loader) LoadBatch(ctx context.Context, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	if l.sink != nil {
		if err := l.sink.InsertReadings(ctx, readings); err != nil {
			return fmt.Errorf("persist readings: %w", err)
		}
	}
	l.warnUnregistered(readings)
	l.store.Append(readings...)
	epoch := l.cache.Reset()
	l.logger.Debug("batch loaded", "readings", len(readings), "epoch", epoch)
	return nil
}

// warnUnregistered logs each unregistered city once. Their readings are kept.
func (l *Loader) warnUnregistered(readings []domain.Reading) {
	if l.cities == nil {
		return
	}
	var fresh []string
	for _, r := range readings {
		if l.cities.Has(r.City) {
			continue
		}
		if _, ok := l.warned[r.City]; ok {
			continue
		}
		l.warned[r.City] = struct{}{}
		fresh = append(fresh, r.City)
	}
	if len(fresh) > 0 {
		l.logger.Warn("readings for unregistered cities", "cities", strings.Join(fresh, ","))
	}
}
