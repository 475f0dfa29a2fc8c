package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRow is an undecoded reading row as received from the source topic.
type RawRow struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string

	// Commit acknowledges the row at the source. Nil when the source has no
	// acknowledgement, e.g. a file.
	Commit func(ctx context.Context) error
}

// DatetimeLayout is the timestamp format of the hourly exports.
const DatetimeLayout = "2006-01-02 15:04:05"

var datetimeLayouts = []string{DatetimeLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDatetime parses an export timestamp. Timestamps without a zone are UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

// ParseValue parses one pollutant cell. Empty, "NaN" and "null" cells are
// missing and return nil without error.
func ParseValue(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	return &v, nil
}

// ParseReadingRow decodes a JSON reading row. Columns that are not pollutants
// (for example "AQI_Bucket") are ignored. A row must name a city and carry a
// valid timestamp.
func ParseReadingRow(raw RawRow) (Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw.Value, &fields); err != nil {
		return Reading{}, fmt.Errorf("decode reading row: %w", err)
	}

	var city, datetime string
	if err := decodeString(fields["City"], &city); err != nil {
		return Reading{}, fmt.Errorf("decode reading row: City: %w", err)
	}
	if err := decodeString(fields["Datetime"], &datetime); err != nil {
		return Reading{}, fmt.Errorf("decode reading row: Datetime: %w", err)
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return Reading{}, errors.New("decode reading row: missing City")
	}
	ts, err := ParseDatetime(datetime)
	if err != nil {
		return Reading{}, fmt.Errorf("decode reading row for %s: %w", city, err)
	}

	r := Reading{City: city, Time: ts, Values: make(map[Pollutant]*float64)}
	for _, p := range AllPollutants {
		msg, ok := fields[string(p)]
		if !ok {
			continue
		}
		v, err := decodeValue(msg)
		if err != nil {
			return Reading{}, fmt.Errorf("decode reading row for %s: %s: %w", city, p, err)
		}
		r.Values[p] = v
	}
	return r, nil
}

func decodeString(msg json.RawMessage, dst *string) error {
	if len(msg) == 0 || string(msg) == "null" {
		return nil
	}
	return json.Unmarshal(msg, dst)
}

// decodeValue accepts a JSON number, null, or a numeric string.
func decodeValue(msg json.RawMessage) (*float64, error) {
	if len(msg) == 0 || string(msg) == "null" {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(msg, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, fmt.Errorf("invalid value %s", msg)
	}
	return ParseValue(s)
}
