// Package csvfile reads hourly city exports in CSV form.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// Reader streams readings from a CSV export with a header row. The City and
// Datetime columns are required; any pollutant columns may be present.
type Reader struct {
	csv      *csv.Reader
	cityCol  int
	timeCol  int
	columns  map[int]domain.Pollutant
	line     int
	Rejected int
}

// NewReader reads the header and returns a Reader positioned at the first row.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	rd := &Reader{csv: cr, cityCol: -1, timeCol: -1, columns: make(map[int]domain.Pollutant), line: 1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case h == "City":
			rd.cityCol = i
		case h == "Datetime" || h == "Date":
			rd.timeCol = i
		case domain.IsKnownPollutant(domain.Pollutant(h)):
			rd.columns[i] = domain.Pollutant(h)
		}
	}
	if rd.cityCol < 0 || rd.timeCol < 0 {
		return nil, errors.New("csv header must contain City and Datetime columns")
	}
	if len(rd.columns) == 0 {
		return nil, errors.New("csv header has no pollutant columns")
	}
	return rd, nil
}

// Next returns the next valid reading, or io.EOF. Rows with a blank city or
// an unparseable timestamp or value are skipped and counted in Rejected.
func (r *Reader) Next() (domain.Reading, error) {
	for {
		rec, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.Reading{}, io.EOF
			}
			return domain.Reading{}, fmt.Errorf("read csv line %d: %w", r.line+1, err)
		}
		r.line++
		reading, ok := r.parse(rec)
		if !ok {
			r.Rejected++
			continue
		}
		return reading, nil
	}
}

// ReadBatch returns up to n readings. It returns io.EOF only with an empty batch.
func (r *Reader) ReadBatch(n int) ([]domain.Reading, error) {
	batch := make([]domain.Reading, 0, n)
	for len(batch) < n {
		reading, err := r.Next()
		if errors.Is(err, io.EOF) {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, reading)
	}
	return batch, nil
}

func (r *Reader) parse(rec []string) (domain.Reading, bool) {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	city := strings.TrimSpace(field(r.cityCol))
	if city == "" {
		return domain.Reading{}, false
	}
	ts, err := domain.ParseDatetime(field(r.timeCol))
	if err != nil {
		return domain.Reading{}, false
	}
	reading := domain.Reading{City: city, Time: ts, Values: make(map[domain.Pollutant]*float64, len(r.columns))}
	for i, p := range r.columns {
		v, err := domain.ParseValue(field(i))
		if err != nil {
			return domain.Reading{}, false
		}
		reading.Values[p] = v
	}
	return reading, true
}
