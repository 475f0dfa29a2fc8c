package domain

import (
	"math"
	"time"
)

// Pollutant is a measured quantity column, e.g. "PM2.5".
type Pollutant string

const (
	PM25    Pollutant = "PM2.5"
	PM10    Pollutant = "PM10"
	NO      Pollutant = "NO"
	NO2     Pollutant = "NO2"
	NOx     Pollutant = "NOx"
	NH3     Pollutant = "NH3"
	CO      Pollutant = "CO"
	SO2     Pollutant = "SO2"
	O3      Pollutant = "O3"
	Benzene Pollutant = "Benzene"
	Toluene Pollutant = "Toluene"
	Xylene  Pollutant = "Xylene"
	AQI     Pollutant = "AQI"
)

// AllPollutants lists every column accepted on ingestion, in export order.
var AllPollutants = []Pollutant{PM25, PM10, NO, NO2, NOx, NH3, CO, SO2, O3, Benzene, Toluene, Xylene, AQI}

// ClusterPollutants is the feature set used for severity clustering.
var ClusterPollutants = []Pollutant{PM25, PM10, NO2, SO2, CO, O3}

// IsKnownPollutant reports whether p is one of AllPollutants.
func IsKnownPollutant(p Pollutant) bool {
	for _, known := range AllPollutants {
		if known == p {
			return true
		}
	}
	return false
}

// Reading is one hourly observation for a city. A nil value means the
// pollutant was not measured; absent keys are treated the same way.
type Reading struct {
	City   string
	Time   time.Time
	Values map[Pollutant]*float64
}

// Value returns the reading's value for p and whether it was measured.
func (r Reading) Value(p Pollutant) (float64, bool) {
	v, ok := r.Values[p]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// DailyPoint is the daily mean of one pollutant for one city.
// Valid is false when no hourly value contributed to the day.
type DailyPoint struct {
	Date  time.Time
	Value float64
	Valid bool
}

// Float returns a pointer to v, for building reading values.
func Float(v float64) *float64 {
	return &v
}

// PresentValues returns the valid values of a daily series in order.
func PresentValues(points []DailyPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Valid {
			out = append(out, p.Value)
		}
	}
	return out
}

// Round1 rounds to one decimal place, the presentation precision for PM2.5.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// TruncateDay returns t's UTC calendar day at midnight.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
