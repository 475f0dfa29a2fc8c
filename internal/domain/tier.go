package domain

import (
	"fmt"
	"time"
)

// Tier is a rank-derived pollution severity label.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// TierCount is the number of severity tiers, and so the cluster count k.
const TierCount = 3

var tierNames = [TierCount]string{"Low", "Medium", "High"}

// Marker colors used by the map layer, one per tier.
var tierColors = [TierCount]string{"#00ff00", "#ffaa00", "#ff0000"}

func (t Tier) String() string {
	if t < 0 || int(t) >= TierCount {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// Color returns the marker color for the tier.
func (t Tier) Color() string {
	if t < 0 || int(t) >= TierCount {
		return ""
	}
	return tierColors[t]
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= TierCount {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	tier, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseTier converts "Low", "Medium" or "High" into a Tier.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// ClusterAssignment places a city in a severity tier.
type ClusterAssignment struct {
	City string `json:"city"`
	Tier Tier   `json:"tier"`
	// Rank is the ascending position of the city's cluster by mean overall
	// pollution; it equals int(Tier).
	Rank int `json:"rank"`
	// Distance is the Euclidean distance to the cluster centroid in standardized space.
	Distance float64 `json:"distance"`
	// Level is the city's mean overall pollution: the mean of its unstandardized
	// pollutant means.
	Level float64 `json:"level"`
}

// ClusterSnapshot is the complete output of one clustering run. Snapshots are
// published whole and never modified afterwards.
type ClusterSnapshot struct {
	RunID       string                       `json:"run_id"`
	GeneratedAt time.Time                    `json:"generated_at"`
	Seed        uint64                       `json:"seed"`
	Inertia     float64                      `json:"inertia"`
	Pollutants  []Pollutant                  `json:"pollutants"`
	Assignments map[string]ClusterAssignment `json:"assignments"`
}

// Assignment returns the city's assignment in the snapshot, if any.
func (s *ClusterSnapshot) Assignment(city string) (ClusterAssignment, bool) {
	if s == nil {
		return ClusterAssignment{}, false
	}
	a, ok := s.Assignments[city]
	return a, ok
}
