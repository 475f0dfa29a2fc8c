package timeseries

import (
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/montanaflynn/stats"
)

// dailyMeans groups a city's hourly readings by UTC calendar day and averages
// each pollutant over the values that are present. The result covers every day
// from the first to the last reading; days without any present value for a
// pollutant are returned as invalid points.
func dailyMeans(hourly []domain.Reading, pollutants []domain.Pollutant) map[domain.Pollutant][]domain.DailyPoint {
	out := make(map[domain.Pollutant][]domain.DailyPoint, len(pollutants))
	if len(hourly) == 0 {
		return out
	}

	first := domain.TruncateDay(hourly[0].Time)
	last := domain.TruncateDay(hourly[len(hourly)-1].Time)
	days := int(last.Sub(first)/(24*time.Hour)) + 1

	buckets := make(map[domain.Pollutant][][]float64, len(pollutants))
	for _, p := range pollutants {
		buckets[p] = make([][]float64, days)
	}
	for _, r := range hourly {
		idx := int(domain.TruncateDay(r.Time).Sub(first) / (24 * time.Hour))
		for _, p := range pollutants {
			if v, ok := r.Value(p); ok {
				buckets[p][idx] = append(buckets[p][idx], v)
			}
		}
	}

	for _, p := range pollutants {
		series := make([]domain.DailyPoint, days)
		for i, values := range buckets[p] {
			series[i].Date = first.AddDate(0, 0, i)
			if len(values) == 0 {
				continue
			}
			mean, err := stats.Mean(values)
			if err != nil {
				continue
			}
			series[i].Value = mean
			series[i].Valid = true
		}
		out[p] = series
	}
	return out
}

// seriesMean averages the valid points of a daily series.
func seriesMean(points []domain.DailyPoint) (float64, bool) {
	values := domain.PresentValues(points)
	if len(values) == 0 {
		return 0, false
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0, false
	}
	return mean, true
}
