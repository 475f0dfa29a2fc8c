package domain

import "strings"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the coordinate is unset.
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

// Station is a monitoring point. City is a back-reference by name only.
type Station struct {
	Name string `json:"name"`
	Geo  Geo    `json:"geo"`
	City string `json:"city"`
}

// DisplayName returns the station name up to the first comma, e.g.
// "Anand Vihar, Delhi - DPCC" -> "Anand Vihar".
func (s Station) DisplayName() string {
	name, _, _ := strings.Cut(s.Name, ",")
	return strings.TrimSpace(name)
}

// City is a tracked urban area. Cities are immutable once the registry is loaded.
type City struct {
	Name     string    `json:"name"`
	Geo      Geo       `json:"geo"`
	State    string    `json:"state,omitempty"`
	Stations []Station `json:"stations,omitempty"`

	// Mappable is false when the metadata was structurally invalid (for example
	// missing coordinates). The city can still be queried but gets no map marker.
	Mappable bool `json:"mappable"`
}

// GeocodingResult is a forward-geocoding match used to repair a city's
// coordinates. Place is the provider's full label, e.g. "Talcher, Odisha, India".
type GeocodingResult struct {
	Geo       Geo
	Place     string
	Relevance float64 // 0 to 1
}

// Found reports whether the geocoder matched anything.
func (r GeocodingResult) Found() bool {
	return r.Place != "" || !r.Geo.IsZero()
}
