package forecast

import (
	"context"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// StationMarker is a monitoring station as drawn on the map.
type StationMarker struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// MapMarker is everything the dashboard shows for one city.
type MapMarker struct {
	City      string          `json:"city"`
	State     string          `json:"state,omitempty"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	Tier      *domain.Tier    `json:"tier"`
	Color     string          `json:"color"`
	Latest    *float64        `json:"latest"`
	Predicted *float64        `json:"predicted"`
	Stations  []StationMarker `json:"stations"`
}

// unassignedColor marks cities missing from the cluster snapshot.
const unassignedColor = "#808080"

// MapMarkers builds a marker for every mappable city in registry order.
// Cities without coordinates are left off the map.
func (s *Service) MapMarkers(ctx context.Context) ([]MapMarker, error) {
	snap := s.snapshots.Current()
	var markers []MapMarker
	for _, c := range s.cities.Cities() {
		if !c.Mappable {
			continue
		}
		f, err := s.ForecastFor(ctx, c.Name)
		if err != nil {
			return nil, err
		}

		m := MapMarker{
			City:      c.Name,
			State:     c.State,
			Lat:       c.Geo.Lat,
			Lon:       c.Geo.Lon,
			Color:     unassignedColor,
			Latest:    f.Latest,
			Predicted: f.Predicted,
			Stations:  make([]StationMarker, 0, len(c.Stations)),
		}
		if a, ok := snap.Assignment(c.Name); ok {
			tier := a.Tier
			m.Tier = &tier
			m.Color = tier.Color()
		}
		for _, st := range c.Stations {
			m.Stations = append(m.Stations, StationMarker{
				Name:        st.Name,
				DisplayName: st.DisplayName(),
				Lat:         st.Geo.Lat,
				Lon:         st.Geo.Lon,
			})
		}
		markers = append(markers, m)
	}
	return markers, nil
}
