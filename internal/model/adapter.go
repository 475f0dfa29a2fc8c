// Package model adapts a frozen sequence-to-scalar predictor to the forecast
// pipeline. Inputs and outputs are in normalized (scaled) space.
package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/observability"
)

// Predictor is a trained artifact mapping a window to one value. Implementations
// must be safe for concurrent use and must not change between calls.
type Predictor interface {
	WindowSize() int
	Predict(input []float64) (float64, error)
}

// Adapter is the uniform call contract the forecast pipeline uses.
type Adapter struct {
	predictor Predictor
	metrics   *observability.Metrics
}

// NewAdapter wraps a predictor. metrics may be nil.
func NewAdapter(p Predictor, metrics *observability.Metrics) *Adapter {
	return &Adapter{predictor: p, metrics: metrics}
}

// WindowSize returns the window length the predictor expects.
func (a *Adapter) WindowSize() int {
	return a.predictor.WindowSize()
}

// Predict runs the predictor on a copy of the normalized window.
func (a *Adapter) Predict(ctx context.Context, window []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(window) != a.predictor.WindowSize() {
		return 0, fmt.Errorf("predict: window length %d, want %d", len(window), a.predictor.WindowSize())
	}
	input := make([]float64, len(window))
	copy(input, window)

	start := time.Now()
	out, err := a.predictor.Predict(input)
	if a.metrics != nil {
		a.metrics.PredictDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("predict: non-finite output %v", out)
	}
	return out, nil
}
