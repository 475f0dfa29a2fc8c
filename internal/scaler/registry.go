package scaler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// Registry holds one frozen scaler per city. It is built once (by the offline
// fitting pass or by loading its artifact) and only read afterwards.
type Registry struct {
	scalers map[string]Scaler
}

// params is the serialized form of one scaler in the artifact.
type params struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewRegistry builds a registry from fitted scalers. Each scaler is keyed by its
// own City, so a scaler can only ever be returned for the city it was fit on.
func NewRegistry(scalers ...Scaler) (*Registry, error) {
	r := &Registry{scalers: make(map[string]Scaler, len(scalers))}
	for _, s := range scalers {
		if s.City == "" {
			return nil, fmt.Errorf("scaler without city")
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.scalers[s.City]; dup {
			return nil, fmt.Errorf("duplicate scaler for city %q", s.City)
		}
		r.scalers[s.City] = s
	}
	return r, nil
}

// Get returns the scaler fit for city, or ErrScalerMissing.
func (r *Registry) Get(city string) (Scaler, error) {
	s, ok := r.scalers[city]
	if !ok {
		return Scaler{}, fmt.Errorf("%w: %q", domain.ErrScalerMissing, city)
	}
	return s, nil
}

// Cities returns the cities with a fitted scaler, sorted.
func (r *Registry) Cities() []string {
	out := make([]string, 0, len(r.scalers))
	for city := range r.scalers {
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of scalers.
func (r *Registry) Len() int {
	return len(r.scalers)
}

// Load reads a scaler artifact: {"Delhi": {"min": 12.3, "max": 812.4}, ...}.
func Load(rd io.Reader) (*Registry, error) {
	var doc map[string]params
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scalers: %w", err)
	}
	scalers := make([]Scaler, 0, len(doc))
	for city, p := range doc {
		scalers = append(scalers, Scaler{City: city, Min: p.Min, Max: p.Max})
	}
	return NewRegistry(scalers...)
}

// LoadFile reads a scaler artifact from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scalers: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Save writes the registry as a scaler artifact.
func (r *Registry) Save(w io.Writer) error {
	doc := make(map[string]params, len(r.scalers))
	for city, s := range r.scalers {
		doc[city] = params{Min: s.Min, Max: s.Max}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode scalers: %w", err)
	}
	return nil
}

// SaveFile writes the artifact atomically by renaming a temp file into place.
func (r *Registry) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scalers-*.json")
	if err != nil {
		return fmt.Errorf("create temp scalers file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if err := r.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close scalers file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename scalers file: %w", err)
	}
	return nil
}

// FitAll fits a scaler for every city whose series has at least minPoints
// values. Cities below the threshold are returned in skipped.
func FitAll(series map[string][]float64, minPoints int) (*Registry, []string, error) {
	cities := make([]string, 0, len(series))
	for city := range series {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	var fitted []Scaler
	var skipped []string
	for _, city := range cities {
		values := series[city]
		if len(values) < minPoints {
			skipped = append(skipped, city)
			continue
		}
		s, err := Fit(city, values)
		if err != nil {
			return nil, nil, err
		}
		fitted = append(fitted, s)
	}
	reg, err := NewRegistry(fitted...)
	if err != nil {
		return nil, nil, err
	}
	return reg, skipped, nil
}
