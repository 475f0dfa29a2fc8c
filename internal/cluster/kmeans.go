package cluster

import (
	"math"
	"math/rand/v2"
)

const maxIterations = 300

// partition is one k-means result.
type partition struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kmeans partitions points into k groups with Lloyd's algorithm from k-means++
// seeds, repeated restarts times, and keeps the lowest-inertia result. All
// randomness comes from seed, so equal inputs give equal partitions. Callers
// must ensure there are at least k distinct points.
func kmeans(points [][]float64, k, restarts int, seed uint64) partition {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var best partition
	best.inertia = math.Inf(1)
	for r := 0; r < restarts; r++ {
		p := lloyd(points, seedCentroids(points, k, rng))
		if p.inertia < best.inertia {
			best = p
		}
	}
	return best
}

// seedCentroids picks k initial centroids with k-means++: the first uniformly,
// each next one with probability proportional to its squared distance from
// the nearest centroid chosen so far.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			dist[i] = math.Inf(1)
			for _, c := range centroids {
				dist[i] = math.Min(dist[i], sqDist(p, c))
			}
			total += dist[i]
		}

		target := rng.Float64() * total
		chosen := -1
		for i, d := range dist {
			if d == 0 {
				continue
			}
			target -= d
			chosen = i
			if target < 0 {
				break
			}
		}
		centroids = append(centroids, clone(points[chosen]))
	}
	return centroids
}

// lloyd alternates assignment and centroid update until no point changes group.
func lloyd(points [][]float64, centroids [][]float64) partition {
	k := len(centroids)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			if l := nearest(p, centroids); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, labels, k)
		relocateEmpty(points, labels, centroids)
	}

	var inertia float64
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return partition{labels: labels, centroids: centroids, inertia: inertia}
}

func recompute(points [][]float64, labels []int, k int) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		counts[labels[i]]++
		for d, v := range p {
			sums[labels[i]][d] += v
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			sums[c] = nil
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
	}
	return sums
}

// relocateEmpty moves each empty group's centroid onto the point farthest from
// its current centroid, and reassigns that point.
func relocateEmpty(points [][]float64, labels []int, centroids [][]float64) {
	for c := range centroids {
		if centroids[c] != nil {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if centroids[labels[i]] == nil {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		centroids[c] = clone(points[far])
		labels[far] = c
	}
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
