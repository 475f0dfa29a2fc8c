package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() *PredictionCache {
	return New(observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func constant(v float64, calls *atomic.Int64) ComputeFunc {
	return func(context.Context) (*float64, error) {
		calls.Add(1)
		return domain.Float(v), nil
	}
}

func TestGetOrCompute_SingleComputationUnderConcurrency(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(context.Context) (*float64, error) {
		calls.Add(1)
		<-release
		return domain.Float(87.3), nil
	}

	const n = 64
	results := make([]domain.Forecast, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := c.GetOrCompute(context.Background(), "Delhi", fn)
			assert.NoError(t, err)
			results[i] = f
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, f := range results {
		require.NotNil(t, f.Value)
		assert.InDelta(t, 87.3, *f.Value, 1e-12)
		assert.Equal(t, "Delhi", f.City)
	}
}

func TestGetOrCompute_ReturnsStoredValueVerbatim(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int64

	first, err := c.GetOrCompute(context.Background(), "Delhi", constant(10, &calls))
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "Delhi", constant(20, &calls))
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
	assert.InDelta(t, 10.0, *second.Value, 1e-12)

	*first.Value = 999
	third, err := c.GetOrCompute(context.Background(), "Delhi", constant(20, &calls))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, *third.Value, 1e-12, "callers must not share the stored value")
}

func TestGetOrCompute_AbsentResultIsMemoized(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int64
	fn := func(context.Context) (*float64, error) {
		calls.Add(1)
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		f, err := c.GetOrCompute(context.Background(), "Aizawl", fn)
		require.NoError(t, err)
		assert.Nil(t, f.Value)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrCompute_ErrorsAreNotMemoized(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int64
	fail := true
	fn := func(context.Context) (*float64, error) {
		calls.Add(1)
		if fail {
			return nil, errors.New("model unavailable")
		}
		return domain.Float(5), nil
	}

	_, err := c.GetOrCompute(context.Background(), "Delhi", fn)
	require.Error(t, err)
	assert.Zero(t, c.Len())

	fail = false
	f, err := c.GetOrCompute(context.Background(), "Delhi", fn)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, *f.Value, 1e-12)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGetOrCompute_PanicIsAnErrorNotAnAbsentForecast(t *testing.T) {
	c := newTestCache()
	release := make(chan struct{})
	boom := func(context.Context) (*float64, error) {
		<-release
		panic("window out of range")
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrCompute(context.Background(), "Delhi", boom)
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	}
	assert.Zero(t, c.Len())

	var calls atomic.Int64
	f, err := c.GetOrCompute(context.Background(), "Delhi", constant(42, &calls))
	require.NoError(t, err)
	require.NotNil(t, f.Value)
	assert.InDelta(t, 42.0, *f.Value, 1e-12)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrCompute_CitiesAreIndependent(t *testing.T) {
	c := newTestCache()
	blockDelhi := make(chan struct{})
	delhiStarted := make(chan struct{})

	go func() {
		_, _ = c.GetOrCompute(context.Background(), "Delhi", func(context.Context) (*float64, error) {
			close(delhiStarted)
			<-blockDelhi
			return domain.Float(1), nil
		})
	}()
	<-delhiStarted

	var calls atomic.Int64
	done := make(chan domain.Forecast, 1)
	go func() {
		f, _ := c.GetOrCompute(context.Background(), "Chennai", constant(42, &calls))
		done <- f
	}()

	select {
	case f := <-done:
		assert.Equal(t, "Chennai", f.City)
		assert.InDelta(t, 42.0, *f.Value, 1e-12)
	case <-time.After(2 * time.Second):
		t.Fatal("Chennai blocked behind Delhi's computation")
	}
	close(blockDelhi)
}

func TestGetOrCompute_WaiterHonoursContext(t *testing.T) {
	c := newTestCache()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = c.GetOrCompute(context.Background(), "Delhi", func(context.Context) (*float64, error) {
			close(started)
			<-release
			return domain.Float(1), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetOrCompute(ctx, "Delhi", func(context.Context) (*float64, error) {
		t.Error("second caller must not compute")
		return nil, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestReset_StartsNewEpoch(t *testing.T) {
	c := newTestCache()
	var calls atomic.Int64

	f, err := c.GetOrCompute(context.Background(), "Delhi", constant(10, &calls))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.Epoch)

	assert.Equal(t, uint64(1), c.Reset())
	assert.Zero(t, c.Len())

	f, err = c.GetOrCompute(context.Background(), "Delhi", constant(20, &calls))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Epoch)
	assert.InDelta(t, 20.0, *f.Value, 1e-12)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, uint64(1), c.Epoch())
}

func TestReset_InFlightComputationDoesNotLeakIntoNewEpoch(t *testing.T) {
	c := newTestCache()
	release := make(chan struct{})
	started := make(chan struct{})
	oldDone := make(chan domain.Forecast, 1)
	go func() {
		f, _ := c.GetOrCompute(context.Background(), "Delhi", func(context.Context) (*float64, error) {
			close(started)
			<-release
			return domain.Float(1), nil
		})
		oldDone <- f
	}()
	<-started
	c.Reset()
	close(release)
	old := <-oldDone
	assert.Equal(t, uint64(0), old.Epoch)

	var calls atomic.Int64
	f, err := c.GetOrCompute(context.Background(), "Delhi", constant(2, &calls))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, *f.Value, 1e-12)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMetrics(t *testing.T) {
	m := observability.NewMetricsForTesting()
	c := New(m, nil)
	var calls atomic.Int64

	_, _ = c.GetOrCompute(context.Background(), "Delhi", constant(1, &calls))
	_, _ = c.GetOrCompute(context.Background(), "Delhi", constant(1, &calls))
	c.Reset()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CacheComputes), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.CacheEpoch), 1e-9)
}
