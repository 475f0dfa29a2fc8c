package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_NamesAndColors(t *testing.T) {
	assert.Equal(t, "Low", TierLow.String())
	assert.Equal(t, "Medium", TierMedium.String())
	assert.Equal(t, "High", TierHigh.String())
	assert.Equal(t, "#00ff00", TierLow.Color())
	assert.Equal(t, "#ffaa00", TierMedium.Color())
	assert.Equal(t, "#ff0000", TierHigh.Color())

	assert.Equal(t, "Tier(7)", Tier(7).String())
	assert.Empty(t, Tier(-1).Color())
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(ClusterAssignment{City: "Patna", Tier: TierMedium, Rank: 1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tier":"Medium"`)

	var a ClusterAssignment
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, TierMedium, a.Tier)

	assert.Error(t, json.Unmarshal([]byte(`{"tier":"Severe"}`), &a))
	_, err = json.Marshal(ClusterAssignment{Tier: Tier(5)})
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("High")
	require.NoError(t, err)
	assert.Equal(t, TierHigh, tier)

	_, err = ParseTier("high")
	assert.Error(t, err)
}

func TestClusterSnapshot_Assignment(t *testing.T) {
	var nilSnap *ClusterSnapshot
	_, ok := nilSnap.Assignment("Delhi")
	assert.False(t, ok)

	snap := &ClusterSnapshot{Assignments: map[string]ClusterAssignment{"Delhi": {City: "Delhi", Tier: TierHigh}}}
	a, ok := snap.Assignment("Delhi")
	require.True(t, ok)
	assert.Equal(t, TierHigh, a.Tier)
}

func TestStation_DisplayName(t *testing.T) {
	cases := map[string]string{
		"Anand Vihar, Delhi - DPCC": "Anand Vihar",
		"Talcher Coalfields":        "Talcher Coalfields",
		" ITO ,Delhi":               "ITO",
		"":                          "",
	}
	for name, want := range cases {
		assert.Equal(t, want, Station{Name: name}.DisplayName(), name)
	}
}

func TestPresentValues(t *testing.T) {
	points := []DailyPoint{
		{Value: 10, Valid: true},
		{Valid: false},
		{Value: 0, Valid: true},
		{Value: 12, Valid: true},
	}
	assert.Equal(t, []float64{10, 0, 12}, PresentValues(points))
	assert.Empty(t, PresentValues(nil))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 87.3, Round1(87.26))
	assert.Equal(t, 87.2, Round1(87.24))
	assert.Equal(t, -3.5, Round1(-3.46))
}

func TestTruncateDay(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	got := TruncateDay(time.Date(2020, 1, 2, 2, 0, 0, 0, ist))
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestIsNotForecastable(t *testing.T) {
	assert.True(t, IsNotForecastable(fmt.Errorf("city: %w", ErrInsufficientHistory)))
	assert.True(t, IsNotForecastable(fmt.Errorf("city: %w", ErrScalerMissing)))
	assert.False(t, IsNotForecastable(ErrUnknownCity))
	assert.False(t, IsNotForecastable(nil))
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{City: "Talcher", Reason: "missing coordinates"}
	assert.Equal(t, `config: city "Talcher": missing coordinates`, err.Error())
}

func TestSetClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, fake.Now(), Now())
	fake.Advance(time.Hour)
	assert.Equal(t, time.Date(2024, time.April, 26, 16, 10, 0, 0, time.UTC), Now())
}
