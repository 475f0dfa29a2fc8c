package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/scaler"
	"github.com/couchcryptid/aq-forecast-service/internal/timeseries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCitySeries_SkipsMissingDays(t *testing.T) {
	store := timeseries.NewStore()
	day := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	store.Append(
		domain.Reading{City: "Delhi", Time: day, Values: map[domain.Pollutant]*float64{domain.PM25: domain.Float(100)}},
		domain.Reading{City: "Delhi", Time: day.Add(time.Hour), Values: map[domain.Pollutant]*float64{domain.PM25: domain.Float(200)}},
		domain.Reading{City: "Delhi", Time: day.AddDate(0, 0, 2), Values: map[domain.Pollutant]*float64{domain.PM25: domain.Float(50)}},
	)

	series := citySeries(store)
	assert.Equal(t, []float64{150, 50}, series["Delhi"])
}

func TestLoadCSV_FitsFromExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city_hour.csv")
	var b strings.Builder
	b.WriteString("City,Datetime,PM2.5,PM10\n")
	for d := 1; d <= 9; d++ {
		fmt.Fprintf(&b, "Patna,2020-01-%02d 10:00:00,%d,\n", d, d*10)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	store := timeseries.NewStore()
	require.NoError(t, loadCSV(store, path))

	reg, skipped, err := scaler.FitAll(citySeries(store), domain.MinForecastHistory)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	s, err := reg.Get("Patna")
	require.NoError(t, err)
	assert.InDelta(t, 10, s.Min, 1e-9)
	assert.InDelta(t, 90, s.Max, 1e-9)
}
