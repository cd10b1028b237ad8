package rfm

import (
	"math"
	"math/rand"
)

// KMeansOptions tunes the clustering run. Zero values take the defaults.
type KMeansOptions struct {
	NInit     int
	MaxIter   int
	Tolerance float64
}

// Default k-means settings
const (
	DefaultNInit     = 10
	DefaultMaxIter   = 300
	DefaultTolerance = 1e-4
)

func (o KMeansOptions) withDefaults() KMeansOptions {
	if o.NInit <= 0 {
		o.NInit = DefaultNInit
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// KMeansResult is the best of NInit clustering runs
type KMeansResult struct {
	Assignments []int
	Centroids   [][]float64
	Inertia     float64
	Iterations  int
}

// KMeans partitions points into k clusters using Lloyd iterations seeded with
// k-means++. The same seed, k and input always give the same assignments.
func KMeans(points [][]float64, k int, seed int64, opts KMeansOptions) (KMeansResult, error) {
	if len(points) == 0 {
		return KMeansResult{}, &DataError{Reason: "no points to cluster"}
	}
	if k < 1 {
		return KMeansResult{}, configErrorf("cluster count must be positive, got %d", k)
	}
	if k > len(points) {
		return KMeansResult{}, configErrorf("cluster count %d exceeds %d customers", k, len(points))
	}
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(seed))

	var best KMeansResult
	for run := 0; run < opts.NInit; run++ {
		res := lloyd(points, seedCentroids(points, k, rng), opts)
		if run == 0 || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// seedCentroids picks k initial centroids with the k-means++ rule
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(n)]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}
	for len(centroids) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}
		idx := n - 1
		if total == 0 {
			idx = rng.Intn(n)
		} else {
			r := rng.Float64() * total
			cum := 0.0
			for i, d := range dist {
				cum += d
				if cum > r {
					idx = i
					break
				}
			}
		}
		c := clone(points[idx])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, opts KMeansOptions) KMeansResult {
	k := len(centroids)
	assign := make([]int, len(points))
	iter := 0
	for iter < opts.MaxIter {
		iter++
		assignNearest(points, centroids, assign)
		next := recompute(points, centroids, assign, k)
		shift := 0.0
		for c := range centroids {
			shift += sqDist(centroids[c], next[c])
		}
		centroids = next
		if shift <= opts.Tolerance {
			break
		}
	}
	inertia := assignNearest(points, centroids, assign)
	return KMeansResult{
		Assignments: assign,
		Centroids:   centroids,
		Inertia:     inertia,
		Iterations:  iter,
	}
}

// assignNearest sets each point's cluster and returns the total squared distance
func assignNearest(points, centroids [][]float64, assign []int) float64 {
	inertia := 0.0
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := sqDist(p, centroid); d < bestD {
				bestC, bestD = c, d
			}
		}
		assign[i] = bestC
		inertia += bestD
	}
	return inertia
}

// recompute returns the cluster means. An empty cluster takes over the point
// lying farthest from its own centroid in a cluster that can spare it.
func recompute(points, centroids [][]float64, assign []int, k int) [][]float64 {
	counts := make([]int, k)
	for _, c := range assign {
		counts[c]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range points {
			if counts[assign[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[assign[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[assign[far]]--
		assign[far] = c
		counts[c]++
	}

	dims := len(points[0])
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		for d, v := range p {
			sums[assign[i]][d] += v
		}
	}
	next := make([][]float64, k)
	for c := range next {
		if counts[c] == 0 {
			next[c] = clone(centroids[c])
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
		next[c] = sums[c]
	}
	return next
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
