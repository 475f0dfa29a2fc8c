// Package timeseries is the in-memory view over ingested hourly readings and the
// daily aggregates derived from them.
package timeseries

import (
	"sort"
	"sync"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// Store indexes readings by city and time. Appending recomputes the daily
// aggregates of the touched cities; readers see either the old or the new
// per-city view, never a partial one.
type Store struct {
	mu     sync.RWMutex
	cities map[string]*cityData
}

// cityData is immutable once published in Store.cities.
type cityData struct {
	hourly []domain.Reading
	daily  map[domain.Pollutant][]domain.DailyPoint
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{cities: make(map[string]*cityData)}
}

// Append adds readings. A reading for an hour the city already has is merged
// into it per pollutant, with the later value winning, so a redelivered batch
// leaves the store as the repository's upsert leaves the readings table.
func (s *Store) Append(readings ...domain.Reading) {
	if len(readings) == 0 {
		return
	}
	byCity := make(map[string][]domain.Reading)
	for _, r := range readings {
		byCity[r.City] = append(byCity[r.City], r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for city, added := range byCity {
		var cur []domain.Reading
		if cd, ok := s.cities[city]; ok {
			cur = cd.hourly
		}
		hourly := mergeHourly(cur, added)
		s.cities[city] = &cityData{
			hourly: hourly,
			daily:  dailyMeans(hourly, domain.AllPollutants),
		}
	}
}

// mergeHourly returns a new time-ordered slice holding cur and added with one
// reading per instant. cur is not modified.
func mergeHourly(cur, added []domain.Reading) []domain.Reading {
	hourly := make([]domain.Reading, 0, len(cur)+len(added))
	hourly = append(hourly, cur...)
	at := make(map[int64]int, len(hourly))
	for i, r := range hourly {
		at[r.Time.UnixNano()] = i
	}
	for _, r := range added {
		key := r.Time.UnixNano()
		i, ok := at[key]
		if !ok {
			at[key] = len(hourly)
			hourly = append(hourly, r)
			continue
		}
		values := make(map[domain.Pollutant]*float64, len(hourly[i].Values)+len(r.Values))
		for p, v := range hourly[i].Values {
			values[p] = v
		}
		for p, v := range r.Values {
			values[p] = v
		}
		hourly[i] = domain.Reading{City: hourly[i].City, Time: hourly[i].Time, Values: values}
	}
	sort.SliceStable(hourly, func(i, j int) bool { return hourly[i].Time.Before(hourly[j].Time) })
	return hourly
}

func (s *Store) city(name string) (*cityData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cd, ok := s.cities[name]
	return cd, ok
}

// Cities returns the names of cities with at least one reading, sorted.
func (s *Store) Cities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cities))
	for name := range s.cities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Latest returns the most recent measured hourly value of a pollutant for a city.
// Hours where the pollutant is missing are skipped.
func (s *Store) Latest(city string, p domain.Pollutant) (float64, bool) {
	cd, ok := s.city(city)
	if !ok {
		return 0, false
	}
	return cd.latest(p)
}

func (cd *cityData) latest(p domain.Pollutant) (float64, bool) {
	for i := len(cd.hourly) - 1; i >= 0; i-- {
		if v, ok := cd.hourly[i].Value(p); ok {
			return v, true
		}
	}
	return 0, false
}

// LatestAll returns the latest measured value of a pollutant for every city that has one.
func (s *Store) LatestAll(p domain.Pollutant) map[string]float64 {
	s.mu.RLock()
	snapshot := make(map[string]*cityData, len(s.cities))
	for name, cd := range s.cities {
		snapshot[name] = cd
	}
	s.mu.RUnlock()

	out := make(map[string]float64, len(snapshot))
	for name, cd := range snapshot {
		if v, ok := cd.latest(p); ok {
			out[name] = v
		}
	}
	return out
}

// DailySeries returns the city's daily means of a pollutant in ascending date
// order. Gaps are invalid points, never zeros. The returned slice is a copy.
func (s *Store) DailySeries(city string, p domain.Pollutant) []domain.DailyPoint {
	cd, ok := s.city(city)
	if !ok {
		return nil
	}
	series := cd.daily[p]
	out := make([]domain.DailyPoint, len(series))
	copy(out, series)
	return out
}

// CityMeans averages each requested pollutant over each city's full daily
// history, excluding missing days. Pollutants a city never measured are absent
// from its inner map, and cities with none of the pollutants are omitted.
func (s *Store) CityMeans(pollutants []domain.Pollutant) map[string]map[domain.Pollutant]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[domain.Pollutant]float64, len(s.cities))
	for name, cd := range s.cities {
		means := make(map[domain.Pollutant]float64, len(pollutants))
		for _, p := range pollutants {
			if m, ok := seriesMean(cd.daily[p]); ok {
				means[p] = m
			}
		}
		if len(means) > 0 {
			out[name] = means
		}
	}
	return out
}
