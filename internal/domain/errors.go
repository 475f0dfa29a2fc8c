package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory means a city has fewer daily values than a forecast needs.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrScalerMissing means a city has no fitted normalization transform.
	ErrScalerMissing = errors.New("scaler missing")
	// ErrUnknownCity means the city is not in the entity registry.
	ErrUnknownCity = errors.New("unknown city")
	// ErrInsufficientData means too few populated cities to cluster.
	ErrInsufficientData = errors.New("insufficient data for clustering")
	// ErrNoAssignment means the current snapshot has no tier for the city.
	ErrNoAssignment = errors.New("no cluster assignment")
)

// ConfigError reports structurally invalid metadata for one city. It is a
// warning: the affected city is degraded, the rest of the registry loads.
type ConfigError struct {
	City   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: city %q: %s", e.City, e.Reason)
}

// IsNotForecastable reports whether err is a per-city condition that turns a
// forecast into an absent value rather than a failure.
func IsNotForecastable(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) || errors.Is(err, ErrScalerMissing)
}
