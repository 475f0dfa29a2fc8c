// Package scaler implements per-city min-max normalization of PM2.5 series.
package scaler

import (
	"errors"
	"fmt"
	"math"
)

// Scaler maps a city's values into [0, 1] over the range seen at fit time.
// Values outside that range map outside [0, 1]; nothing is clamped.
type Scaler struct {
	City string  `json:"city"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Fit computes a scaler over a city's full training-time series.
func Fit(city string, series []float64) (Scaler, error) {
	if len(series) == 0 {
		return Scaler{}, errors.New("fit scaler: empty series")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Scaler{}, fmt.Errorf("fit scaler for %q: non-finite value %v", city, v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return Scaler{City: city, Min: lo, Max: hi}, nil
}

// scale is the divisor; a constant training series gets a unit range so the
// transform stays invertible.
func (s Scaler) scale() float64 {
	if r := s.Max - s.Min; r != 0 {
		return r
	}
	return 1
}

// Transform normalizes values as (v - min) / (max - min). The input is not modified.
func (s Scaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	scale := s.scale()
	for i, v := range values {
		out[i] = (v - s.Min) / scale
	}
	return out
}

// Inverse maps a normalized value back to physical units: v*(max-min) + min.
func (s Scaler) Inverse(v float64) float64 {
	return v*s.scale() + s.Min
}

// Validate checks that the parameters are usable.
func (s Scaler) Validate() error {
	if math.IsNaN(s.Min) || math.IsNaN(s.Max) || math.IsInf(s.Min, 0) || math.IsInf(s.Max, 0) {
		return fmt.Errorf("scaler %q: non-finite parameters", s.City)
	}
	if s.Max < s.Min {
		return fmt.Errorf("scaler %q: max %v below min %v", s.City, s.Max, s.Min)
	}
	return nil
}
