// Package cache memoizes one forecast per city per epoch.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
)

// ComputeFunc produces a forecast value for one city. A nil value with a nil
// error is an absent forecast and is memoized like any other result.
type ComputeFunc func(ctx context.Context) (*float64, error)

// PredictionCache runs at most one ComputeFunc per city per epoch. The mutex
// only guards the entry map; computations run outside it, so cities never wait
// on each other. Entries are never evicted: the key space is the city set.
type PredictionCache struct {
	mu      sync.Mutex
	epoch   uint64
	entries map[string]*entry
	metrics *observability.Metrics
	logger  *slog.Logger
}

// entry is filled in exactly once, then done is closed.
type entry struct {
	done  chan struct{}
	value float64
	valid bool
	err   error
}

// New creates an empty cache at epoch 0. metrics may be nil.
func New(metrics *observability.Metrics, logger *slog.Logger) *PredictionCache {
	return &PredictionCache{
		entries: make(map[string]*entry),
		metrics: metrics,
		logger:  logger,
	}
}

// GetOrCompute returns the city's forecast for the current epoch, running fn if
// no caller has done so yet. Concurrent callers for the same city wait for the
// first one. Errors from fn are returned to every waiter of that computation
// but are not memoized. The computation is detached from the first caller's
// cancellation so one abandoned request cannot fail the others.
func (c *PredictionCache) GetOrCompute(ctx context.Context, city string, fn ComputeFunc) (domain.Forecast, error) {
	c.mu.Lock()
	epoch, entries := c.epoch, c.entries
	e, found := entries[city]
	if !found {
		e = &entry{done: make(chan struct{})}
		entries[city] = e
	}
	c.mu.Unlock()

	if found {
		c.observeLookup("hit")
		select {
		case <-e.done:
		case <-ctx.Done():
			return domain.Forecast{}, ctx.Err()
		}
		return e.forecast(city, epoch)
	}

	c.observeLookup("miss")
	c.compute(context.WithoutCancel(ctx), city, entries, e, fn)
	return e.forecast(city, epoch)
}

func (c *PredictionCache) compute(ctx context.Context, city string, entries map[string]*entry, e *entry, fn ComputeFunc) {
	if c.metrics != nil {
		c.metrics.CacheComputes.Inc()
	}
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.value, e.valid = 0, false
			e.err = fmt.Errorf("forecast for %s panicked: %v", city, r)
			c.forget(city, entries, e)
			if c.logger != nil {
				c.logger.Error("forecast computation panicked", "city", city, "panic", r)
			}
		}
	}()

	value, err := fn(ctx)
	if err != nil {
		e.err = err
		c.forget(city, entries, e)
		return
	}
	if value != nil {
		e.value, e.valid = *value, true
	}
}

// forget drops a failed entry so the next call computes again.
func (c *PredictionCache) forget(city string, entries map[string]*entry, e *entry) {
	c.mu.Lock()
	if entries[city] == e {
		delete(entries, city)
	}
	c.mu.Unlock()
}

func (e *entry) forecast(city string, epoch uint64) (domain.Forecast, error) {
	if e.err != nil {
		return domain.Forecast{}, e.err
	}
	f := domain.Forecast{City: city, Epoch: epoch}
	if e.valid {
		f.Value = domain.Float(e.value)
	}
	return f, nil
}

// Reset ends the current epoch. Computations already running finish into the
// old epoch and are discarded; later calls compute afresh.
func (c *PredictionCache) Reset() uint64 {
	c.mu.Lock()
	c.epoch++
	c.entries = make(map[string]*entry)
	epoch := c.epoch
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CacheEpoch.Set(float64(epoch))
	}
	if c.logger != nil {
		c.logger.Info("prediction cache reset", "epoch", epoch)
	}
	return epoch
}

// Epoch returns the current epoch.
func (c *PredictionCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Len returns the number of cities with an entry in the current epoch.
func (c *PredictionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PredictionCache) observeLookup(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
