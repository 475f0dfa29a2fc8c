package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReadingRow(t *testing.T) {
	raw := RawRow{Value: []byte(`{
		"City": "Delhi",
		"Datetime": "2019-11-03 14:00:00",
		"PM2.5": 412.6,
		"PM10": null,
		"NO2": "58.1",
		"O3": "",
		"AQI_Bucket": "Severe"
	}`)}

	r, err := ParseReadingRow(raw)
	require.NoError(t, err)
	assert.Equal(t, "Delhi", r.City)
	assert.Equal(t, time.Date(2019, 11, 3, 14, 0, 0, 0, time.UTC), r.Time)

	v, ok := r.Value(PM25)
	require.True(t, ok)
	assert.InDelta(t, 412.6, v, 1e-9)

	v, ok = r.Value(NO2)
	require.True(t, ok)
	assert.InDelta(t, 58.1, v, 1e-9)

	_, ok = r.Value(PM10)
	assert.False(t, ok, "null stays missing")
	_, ok = r.Value(O3)
	assert.False(t, ok, "empty string stays missing")
	_, ok = r.Value(SO2)
	assert.False(t, ok, "absent column is missing")
}

func TestParseReadingRow_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `not json`,
		"no city":      `{"Datetime": "2019-11-03 14:00:00", "PM2.5": 1}`,
		"blank city":   `{"City": "  ", "Datetime": "2019-11-03 14:00:00"}`,
		"bad datetime": `{"City": "Delhi", "Datetime": "03/11/2019"}`,
		"no datetime":  `{"City": "Delhi", "PM2.5": 1}`,
		"bad value":    `{"City": "Delhi", "Datetime": "2019-11-03 14:00:00", "PM2.5": "high"}`,
		"bool value":   `{"City": "Delhi", "Datetime": "2019-11-03 14:00:00", "CO": true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReadingRow(RawRow{Value: []byte(body)})
			assert.Error(t, err)
		})
	}
}

func TestParseDatetime(t *testing.T) {
	want := time.Date(2020, 1, 2, 3, 0, 0, 0, time.UTC)
	for _, s := range []string{"2020-01-02 03:00:00", "2020-01-02T03:00:00Z", "2020-01-02T08:30:00+05:30", "2020-01-02T03:00:00"} {
		got, err := ParseDatetime(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
		assert.Equal(t, time.UTC, got.Location(), s)
	}

	day, err := ParseDatetime("2020-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDatetime("yesterday")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	for _, s := range []string{"", " ", "NaN", "nan", "null", "None"} {
		v, err := ParseValue(s)
		require.NoError(t, err, s)
		assert.Nil(t, v, s)
	}

	v, err := ParseValue(" 0 ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Zero(t, *v, "zero is a measurement")

	_, err = ParseValue("Inf")
	assert.Error(t, err)
	_, err = ParseValue("12ug")
	assert.Error(t, err)
}
