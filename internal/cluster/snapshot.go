package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
)

// Holder publishes cluster snapshots by pointer replacement. Readers always see
// a complete snapshot; published snapshots must not be modified.
type Holder struct {
	current atomic.Pointer[domain.ClusterSnapshot]
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Publish replaces the current snapshot.
func (h *Holder) Publish(s *domain.ClusterSnapshot) {
	h.current.Store(s)
}

// Current returns the latest snapshot, or nil before the first publish.
func (h *Holder) Current() *domain.ClusterSnapshot {
	return h.current.Load()
}

// MeansSource supplies per-city pollutant means.
type MeansSource interface {
	CityMeans(pollutants []domain.Pollutant) map[string]map[domain.Pollutant]float64
}

// SnapshotSink receives each successful snapshot before it is published.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, s *domain.ClusterSnapshot) error
}

// Runner executes one clustering batch: read means, assign, persist, publish.
type Runner struct {
	assigner *Assigner
	source   MeansSource
	holder   *Holder
	sinks    []SnapshotSink
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRunner wires a clustering batch job.
func NewRunner(a *Assigner, source MeansSource, holder *Holder, logger *slog.Logger, metrics *observability.Metrics, sinks ...SnapshotSink) *Runner {
	return &Runner{
		assigner: a,
		source:   source,
		holder:   holder,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run performs one clustering run. On ErrInsufficientData or a sink failure the
// previously published snapshot stays in place.
func (r *Runner) Run(ctx context.Context) (*domain.ClusterSnapshot, error) {
	start := time.Now()
	means := r.source.CityMeans(r.assigner.Pollutants)

	snap, err := r.assigner.Assign(means)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			r.metrics.ClusterRuns.WithLabelValues("insufficient_data").Inc()
			r.logger.Warn("clustering skipped, keeping previous snapshot", "error", err, "cities", len(means))
		} else {
			r.metrics.ClusterRuns.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	for _, sink := range r.sinks {
		if err := sink.SaveSnapshot(ctx, snap); err != nil {
			r.metrics.ClusterRuns.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
		}
	}

	r.holder.Publish(snap)
	r.metrics.ClusterRuns.WithLabelValues("published").Inc()
	r.metrics.ClusterCities.Set(float64(len(snap.Assignments)))
	r.metrics.ClusterDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("cluster snapshot published",
		"run_id", snap.RunID,
		"cities", len(snap.Assignments),
		"inertia", snap.Inertia,
	)
	return snap, nil
}

// SnapshotLoader reads the most recently persisted snapshot. It returns nil
// without error when none exists.
type SnapshotLoader interface {
	LatestSnapshot(ctx context.Context) (*domain.ClusterSnapshot, error)
}

// Refresh loads the persisted snapshot into the holder now and then every
// interval until ctx is cancelled. A snapshot with the current run id is not
// republished.
func (h *Holder) Refresh(ctx context.Context, loader SnapshotLoader, interval time.Duration, logger *slog.Logger) {
	h.reload(ctx, loader, logger)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reload(ctx, loader, logger)
		}
	}
}

func (h *Holder) reload(ctx context.Context, loader SnapshotLoader, logger *slog.Logger) {
	snap, err := loader.LatestSnapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("load cluster snapshot failed", "error", err)
		}
		return
	}
	if snap == nil {
		return
	}
	if cur := h.Current(); cur != nil && cur.RunID == snap.RunID {
		return
	}
	h.Publish(snap)
	logger.Info("cluster snapshot loaded", "run_id", snap.RunID, "cities", len(snap.Assignments))
}
