// Package cluster groups cities into ordered severity tiers from their
// multi-pollutant means, and holds the published snapshot.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

const (
	// DefaultSeed fixes k-means randomness for reproducible runs.
	DefaultSeed uint64 = 42
	// DefaultRestarts is the number of independent k-means initializations.
	DefaultRestarts = 10
)

// Assigner turns per-city pollutant means into a tier snapshot.
type Assigner struct {
	Pollutants []domain.Pollutant
	Seed       uint64
	Restarts   int
}

// NewAssigner returns an assigner over the clustering pollutant set.
func NewAssigner(seed uint64) *Assigner {
	return &Assigner{
		Pollutants: domain.ClusterPollutants,
		Seed:       seed,
		Restarts:   DefaultRestarts,
	}
}

// Assign clusters the cities into domain.TierCount groups and labels each group
// by the rank of its mean overall pollution. Group sizes are then kept while
// members are reassigned in level order, so a Low city never has a higher
// level than a High one. Distance is measured to the final tier's centroid in
// standardized space. Cities are processed in name order,
// so the result does not depend on how the input was assembled. Returns
// ErrInsufficientData when fewer than TierCount distinct cities have data.
func (a *Assigner) Assign(means map[string]map[domain.Pollutant]float64) (*domain.ClusterSnapshot, error) {
	const k = domain.TierCount

	pollutants := a.populatedPollutants(means)
	cities := make([]string, 0, len(means))
	for city, m := range means {
		if hasAny(m, pollutants) {
			cities = append(cities, city)
		}
	}
	sort.Strings(cities)
	if len(cities) < k {
		return nil, fmt.Errorf("%w: %d populated cities, need %d", domain.ErrInsufficientData, len(cities), k)
	}

	raw := featureMatrix(cities, pollutants, means)
	points := standardize(raw)
	if n := distinctCount(points); n < k {
		return nil, fmt.Errorf("%w: %d distinct cities, need %d", domain.ErrInsufficientData, n, k)
	}

	restarts := a.Restarts
	if restarts <= 0 {
		restarts = DefaultRestarts
	}
	part := kmeans(points, k, restarts, a.Seed)

	levels := make([]float64, len(cities))
	for i, city := range cities {
		levels[i] = overallLevel(means[city], pollutants)
	}
	groupTiers := rankGroups(part.labels, levels, k)
	tiers := make([]domain.Tier, len(cities))
	for i, l := range part.labels {
		tiers[i] = groupTiers[l]
	}
	tiers = alignToLevels(tiers, levels, k)
	centroids := tierCentroids(points, tiers, k)

	snap := &domain.ClusterSnapshot{
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now(),
		Seed:        a.Seed,
		Inertia:     part.inertia,
		Pollutants:  pollutants,
		Assignments: make(map[string]domain.ClusterAssignment, len(cities)),
	}
	for i, city := range cities {
		tier := tiers[i]
		snap.Assignments[city] = domain.ClusterAssignment{
			City:     city,
			Tier:     tier,
			Rank:     int(tier),
			Distance: math.Sqrt(sqDist(points[i], centroids[tier])),
			Level:    levels[i],
		}
	}
	return snap, nil
}

// populatedPollutants keeps the configured pollutants that at least one city measured.
func (a *Assigner) populatedPollutants(means map[string]map[domain.Pollutant]float64) []domain.Pollutant {
	var out []domain.Pollutant
	for _, p := range a.Pollutants {
		for _, m := range means {
			if _, ok := m[p]; ok {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func hasAny(m map[domain.Pollutant]float64, pollutants []domain.Pollutant) bool {
	for _, p := range pollutants {
		if _, ok := m[p]; ok {
			return true
		}
	}
	return false
}

// featureMatrix builds one row per city. A pollutant a city never measured is
// imputed with that pollutant's mean over the cities that did, which
// standardizes to zero.
func featureMatrix(cities []string, pollutants []domain.Pollutant, means map[string]map[domain.Pollutant]float64) [][]float64 {
	colMeans := make([]float64, len(pollutants))
	for d, p := range pollutants {
		var present []float64
		for _, city := range cities {
			if v, ok := means[city][p]; ok {
				present = append(present, v)
			}
		}
		colMeans[d], _ = stats.Mean(present)
	}

	rows := make([][]float64, len(cities))
	for i, city := range cities {
		row := make([]float64, len(pollutants))
		for d, p := range pollutants {
			if v, ok := means[city][p]; ok {
				row[d] = v
			} else {
				row[d] = colMeans[d]
			}
		}
		rows[i] = row
	}
	return rows
}

// overallLevel is the mean of the city's measured pollutant means.
func overallLevel(m map[domain.Pollutant]float64, pollutants []domain.Pollutant) float64 {
	values := make([]float64, 0, len(pollutants))
	for _, p := range pollutants {
		if v, ok := m[p]; ok {
			values = append(values, v)
		}
	}
	level, _ := stats.Mean(values)
	return level
}

// rankGroups maps raw cluster labels to tiers by ascending mean level of each
// group's members. Equal means are ordered by the group's first member, which
// is stable because members are in city-name order.
func rankGroups(labels []int, levels []float64, k int) []domain.Tier {
	type group struct {
		label int
		first int
		mean  float64
	}
	members := make([][]float64, k)
	first := make([]int, k)
	for c := range first {
		first[c] = math.MaxInt
	}
	for i, l := range labels {
		members[l] = append(members[l], levels[i])
		first[l] = min(first[l], i)
	}

	groups := make([]group, k)
	for c := 0; c < k; c++ {
		mean, _ := stats.Mean(members[c])
		groups[c] = group{label: c, first: first[c], mean: mean}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].mean != groups[j].mean {
			return groups[i].mean < groups[j].mean
		}
		return groups[i].first < groups[j].first
	})

	tiers := make([]domain.Tier, k)
	for rank, g := range groups {
		tiers[g.label] = domain.Tier(rank)
	}
	return tiers
}

// alignToLevels keeps the number of cities in each tier but hands the tiers
// out in ascending level order, so tier order agrees with every member's
// level and not only with group means. Equal levels keep city-name order.
// A partition that is already ordered is returned unchanged.
func alignToLevels(tiers []domain.Tier, levels []float64, k int) []domain.Tier {
	sizes := make([]int, k)
	for _, t := range tiers {
		sizes[t]++
	}
	order := make([]int, len(levels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return levels[order[a]] < levels[order[b]] })

	out := make([]domain.Tier, len(tiers))
	tier, filled := 0, 0
	for _, i := range order {
		for filled == sizes[tier] {
			tier++
			filled = 0
		}
		out[i] = domain.Tier(tier)
		filled++
	}
	return out
}

// tierCentroids averages the standardized points of each tier's members.
func tierCentroids(points [][]float64, tiers []domain.Tier, k int) [][]float64 {
	dims := 0
	if len(points) > 0 {
		dims = len(points[0])
	}
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, dims)
	}
	for i, p := range points {
		t := tiers[i]
		counts[t]++
		for d, v := range p {
			centroids[t][d] += v
		}
	}
	for c, n := range counts {
		if n == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] /= float64(n)
		}
	}
	return centroids
}

func distinctCount(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		seen[fmt.Sprint(p)] = struct{}{}
	}
	return len(seen)
}
