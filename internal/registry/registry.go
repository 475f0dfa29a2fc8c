// Package registry holds the static catalog of cities and their monitoring stations.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// stationsDoc is the on-disk metadata format:
//
//	{"Delhi": {"lat": 28.61, "lon": 77.21, "state": "Delhi", "stations": [{"name": "...", "lat": .., "lon": ..}]}}
type stationsDoc map[string]cityDoc

type cityDoc struct {
	Lat      *float64     `json:"lat"`
	Lon      *float64     `json:"lon"`
	State    string       `json:"state"`
	Stations []stationDoc `json:"stations"`
}

type stationDoc struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// Registry is an immutable set of cities keyed by name.
type Registry struct {
	cities map[string]domain.City
	names  []string
}

// Load parses entity metadata from r. Structurally invalid entries are returned
// as ConfigError warnings alongside a usable registry; only unreadable or
// unparseable input fails.
func Load(r io.Reader) (*Registry, []*domain.ConfigError, error) {
	var doc stationsDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode entity metadata: %w", err)
	}

	reg := &Registry{cities: make(map[string]domain.City, len(doc))}
	var warnings []*domain.ConfigError

	for rawName, cd := range doc {
		name := strings.TrimSpace(rawName)
		if name == "" {
			warnings = append(warnings, &domain.ConfigError{City: rawName, Reason: "empty city name"})
			continue
		}

		city := domain.City{Name: name, State: cd.State, Mappable: true}
		if cd.Lat == nil || cd.Lon == nil {
			warnings = append(warnings, &domain.ConfigError{City: name, Reason: "missing coordinates"})
			city.Mappable = false
		} else {
			city.Geo = domain.Geo{Lat: *cd.Lat, Lon: *cd.Lon}
			if !validGeo(city.Geo) {
				warnings = append(warnings, &domain.ConfigError{City: name, Reason: "coordinates out of range"})
				city.Mappable = false
				city.Geo = domain.Geo{}
			}
		}

		for i, sd := range cd.Stations {
			if strings.TrimSpace(sd.Name) == "" || sd.Lat == nil || sd.Lon == nil {
				warnings = append(warnings, &domain.ConfigError{
					City:   name,
					Reason: fmt.Sprintf("station %d: missing name or coordinates", i),
				})
				continue
			}
			city.Stations = append(city.Stations, domain.Station{
				Name: sd.Name,
				Geo:  domain.Geo{Lat: *sd.Lat, Lon: *sd.Lon},
				City: name,
			})
		}

		reg.cities[name] = city
		reg.names = append(reg.names, name)
	}

	sort.Strings(reg.names)
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].City < warnings[j].City })
	return reg, warnings, nil
}

// LoadFile reads entity metadata from a JSON file.
func LoadFile(path string) (*Registry, []*domain.ConfigError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open entity metadata: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Cities returns every registered city in name order.
func (r *Registry) Cities() []domain.City {
	out := make([]domain.City, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.cities[name])
	}
	return out
}

// City looks up a city by name.
func (r *Registry) City(name string) (domain.City, error) {
	c, ok := r.cities[name]
	if !ok {
		return domain.City{}, fmt.Errorf("%w: %q", domain.ErrUnknownCity, name)
	}
	return c, nil
}

// Has reports whether the city is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.cities[name]
	return ok
}

// StationsOf returns the stations of a city.
func (r *Registry) StationsOf(name string) ([]domain.Station, error) {
	c, err := r.City(name)
	if err != nil {
		return nil, err
	}
	return c.Stations, nil
}

// Len returns the number of registered cities.
func (r *Registry) Len() int {
	return len(r.names)
}

// Reconcile reports cities referenced by another source (readings, scalers)
// that have no registry entry. These are warnings: such cities simply have no
// curated metadata.
func (r *Registry) Reconcile(source string, referenced []string) []*domain.ConfigError {
	var out []*domain.ConfigError
	seen := make(map[string]struct{}, len(referenced))
	for _, name := range referenced {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if !r.Has(name) {
			out = append(out, &domain.ConfigError{City: name, Reason: "referenced by " + source + " but not registered"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// Geocoder resolves a place name to coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error)
}

// ResolveMissingCoordinates forward-geocodes cities that were loaded without
// usable coordinates. Failures are logged and leave the city unmappable. It must
// run before the registry is shared. Returns the number of repaired cities.
func (r *Registry) ResolveMissingCoordinates(ctx context.Context, geocoder Geocoder, logger *slog.Logger) int {
	if geocoder == nil {
		return 0
	}
	repaired := 0
	for _, name := range r.names {
		city := r.cities[name]
		if city.Mappable {
			continue
		}
		result, err := geocoder.ForwardGeocode(ctx, city.Name, city.State)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"city", city.Name,
				"state", city.State,
				"error", err,
			)
			continue
		}
		geo := result.Geo
		if !result.Found() || geo.IsZero() || !validGeo(geo) {
			logger.Warn("geocoder returned no coordinates", "city", city.Name)
			continue
		}
		city.Geo = geo
		city.Mappable = true
		r.cities[name] = city
		repaired++
		logger.Info("city coordinates resolved", "city", city.Name, "place", result.Place)
	}
	return repaired
}

func validGeo(g domain.Geo) bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}
