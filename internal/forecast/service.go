// Package forecast answers city queries: next-day PM2.5 forecasts, severity
// tiers, and the map and ranking views built on them.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/aq-forecast-service/internal/cache"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/couchcryptid/aq-forecast-service/internal/scaler"
	"github.com/couchcryptid/aq-forecast-service/internal/sequence"
)

// DefaultTopN is the size of the most-polluted ranking when none is requested.
const DefaultTopN = 5

// CityDirectory resolves registered cities.
type CityDirectory interface {
	City(name string) (domain.City, error)
	Cities() []domain.City
}

// SeriesSource reads aggregated readings.
type SeriesSource interface {
	Latest(city string, p domain.Pollutant) (float64, bool)
	LatestAll(p domain.Pollutant) map[string]float64
	DailySeries(city string, p domain.Pollutant) []domain.DailyPoint
}

// ScalerSource looks up a city's fitted normalization.
type ScalerSource interface {
	Get(city string) (scaler.Scaler, error)
}

// Model predicts the next normalized value from a normalized window.
type Model interface {
	WindowSize() int
	Predict(ctx context.Context, window []float64) (float64, error)
}

// ForecastCache memoizes forecasts per city per epoch.
type ForecastCache interface {
	GetOrCompute(ctx context.Context, city string, fn cache.ComputeFunc) (domain.Forecast, error)
}

// SnapshotSource returns the current cluster snapshot, or nil.
type SnapshotSource interface {
	Current() *domain.ClusterSnapshot
}

// Deps are the collaborators of a Service. Metrics may be nil.
type Deps struct {
	Cities    CityDirectory
	Series    SeriesSource
	Scalers   ScalerSource
	Model     Model
	Cache     ForecastCache
	Snapshots SnapshotSource
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Service is the read-only query facade over the registries, the store, the
// model and the published cluster snapshot.
type Service struct {
	cities    CityDirectory
	series    SeriesSource
	scalers   ScalerSource
	model     Model
	cache     ForecastCache
	snapshots SnapshotSource
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService validates the dependencies and returns a Service.
func NewService(d Deps) (*Service, error) {
	if d.Cities == nil || d.Series == nil || d.Scalers == nil || d.Model == nil || d.Cache == nil || d.Snapshots == nil {
		return nil, errors.New("forecast service: missing dependency")
	}
	if w := d.Model.WindowSize(); w != domain.LookbackWindow {
		return nil, fmt.Errorf("forecast service: model window %d, want %d", w, domain.LookbackWindow)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cities:    d.Cities,
		series:    d.Series,
		scalers:   d.Scalers,
		model:     d.Model,
		cache:     d.Cache,
		snapshots: d.Snapshots,
		logger:    logger,
		metrics:   d.Metrics,
	}, nil
}

// ForecastFor returns the latest and predicted PM2.5 for a registered city.
// Either value is nil when unavailable; only ErrUnknownCity and unexpected
// failures are errors.
func (s *Service) ForecastFor(ctx context.Context, city string) (domain.CityForecast, error) {
	if _, err := s.cities.City(city); err != nil {
		s.observe("unknown_city")
		return domain.CityForecast{}, err
	}

	out := domain.CityForecast{City: city}
	if v, ok := s.series.Latest(city, domain.PM25); ok {
		out.Latest = domain.Float(domain.Round1(v))
	}

	f, err := s.cache.GetOrCompute(ctx, city, func(ctx context.Context) (*float64, error) {
		return s.computeForecast(ctx, city)
	})
	if err != nil {
		s.observe("error")
		return domain.CityForecast{}, fmt.Errorf("forecast %s: %w", city, err)
	}
	if f.Value != nil {
		out.Predicted = domain.Float(domain.Round1(*f.Value))
		s.observe("predicted")
	} else {
		s.observe("absent")
	}
	return out, nil
}

// computeForecast runs the pipeline for one city. Cities that cannot be
// forecast yield a nil value, which the cache memoizes for the epoch.
func (s *Service) computeForecast(ctx context.Context, city string) (*float64, error) {
	v, err := s.predict(ctx, city)
	if domain.IsNotForecastable(err) {
		s.logger.Debug("forecast unavailable", "city", city, "reason", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) predict(ctx context.Context, city string) (float64, error) {
	values := domain.PresentValues(s.series.DailySeries(city, domain.PM25))
	if len(values) < domain.MinForecastHistory {
		return 0, fmt.Errorf("%w: %s has %d daily values, need %d",
			domain.ErrInsufficientHistory, city, len(values), domain.MinForecastHistory)
	}

	sc, err := s.scalers.Get(city)
	if err != nil {
		return 0, err
	}

	window, ok := sequence.LastWindow(values, s.model.WindowSize())
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrInsufficientHistory, city)
	}
	y, err := s.model.Predict(ctx, sc.Transform(window))
	if err != nil {
		return 0, err
	}
	return sc.Inverse(y), nil
}

// TierFor returns the city's assignment in the current snapshot.
func (s *Service) TierFor(city string) (domain.ClusterAssignment, error) {
	if _, err := s.cities.City(city); err != nil {
		return domain.ClusterAssignment{}, err
	}
	a, ok := s.snapshots.Current().Assignment(city)
	if !ok {
		return domain.ClusterAssignment{}, fmt.Errorf("%w: %s", domain.ErrNoAssignment, city)
	}
	return a, nil
}

// CityLevel is one entry of the most-polluted ranking.
type CityLevel struct {
	City string  `json:"city"`
	PM25 float64 `json:"pm25"`
}

// TopPolluted ranks registered cities by latest PM2.5, highest first. Equal
// values are ordered by name. n <= 0 means DefaultTopN.
func (s *Service) TopPolluted(n int) []CityLevel {
	if n <= 0 {
		n = DefaultTopN
	}
	latest := s.series.LatestAll(domain.PM25)
	levels := make([]CityLevel, 0, len(latest))
	for city, v := range latest {
		if _, err := s.cities.City(city); err != nil {
			continue
		}
		levels = append(levels, CityLevel{City: city, PM25: domain.Round1(v)})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].PM25 != levels[j].PM25 {
			return levels[i].PM25 > levels[j].PM25
		}
		return levels[i].City < levels[j].City
	})
	if len(levels) > n {
		levels = levels[:n]
	}
	return levels
}

// CheckReadiness reports whether there is anything to serve.
func (s *Service) CheckReadiness(_ context.Context) error {
	if len(s.cities.Cities()) == 0 {
		return errors.New("entity registry is empty")
	}
	return nil
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ForecastRequests.WithLabelValues(outcome).Inc()
	}
}
