package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Veraticus/pickpath/internal/distance"
)

// KMeansParams configures k-means over the dissimilarity matrix.
type KMeansParams struct {
	NClusters int
	NInit     int
	MaxIter   int
	Tolerance float64
	Seed      int64
}

// DefaultKMeansParams returns the k-means defaults.
func DefaultKMeansParams() KMeansParams {
	return KMeansParams{
		NClusters: 50,
		NInit:     10,
		MaxIter:   300,
		Tolerance: 1e-4,
	}
}

// KMeans partitions items into a fixed number of clusters. Each matrix row,
// after conversion to 1 - d/max(d), is treated as the item's feature vector.
type KMeans struct {
	params KMeansParams
}

// NewKMeans validates params and returns the strategy.
func NewKMeans(p KMeansParams) (*KMeans, error) {
	if p.NClusters <= 0 {
		return nil, fmt.Errorf("%w: k-means needs a positive cluster count", ErrInvalidParams)
	}
	d := DefaultKMeansParams()
	if p.NInit <= 0 {
		p.NInit = d.NInit
	}
	if p.MaxIter <= 0 {
		p.MaxIter = d.MaxIter
	}
	if p.Tolerance <= 0 {
		p.Tolerance = d.Tolerance
	}
	return &KMeans{params: p}, nil
}

// Name implements Strategy.
func (k *KMeans) Name() string {
	return StrategyKMeans
}

// Fit runs NInit seeded k-means++ restarts and keeps the lowest inertia.
func (k *KMeans) Fit(m *distance.Matrix) (*Result, error) {
	n := m.Size()
	if k.params.NClusters > n {
		return nil, fmt.Errorf("%w: %d clusters requested for %d items", ErrInvalidParams, k.params.NClusters, n)
	}

	x := distance.Dissimilarity(m).Rows()
	rng := rand.New(rand.NewSource(k.params.Seed)) //nolint:gosec // reproducible clustering, not security
	tol := k.params.Tolerance * meanVariance(x)

	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < k.params.NInit; run++ {
		centers := seedCenters(x, k.params.NClusters, rng)
		labels, inertia := lloyd(x, centers, k.params.MaxIter, tol)
		if inertia < bestInertia {
			bestInertia = inertia
			best = labels
		}
	}

	return newResult(m, m.Rows(), best), nil
}

// seedCenters picks initial centers with k-means++.
func seedCenters(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	chosen := make(map[int]bool, k)

	first := rng.Intn(n)
	centers = append(centers, clonePoint(x[first]))
	chosen[first] = true

	d2 := make([]float64, n)
	for i := range x {
		d2[i] = sqDist(x[i], centers[0])
	}

	for len(centers) < k {
		total := 0.0
		for _, v := range d2 {
			total += v
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, v := range d2 {
				r -= v
				if r <= 0 && !chosen[i] {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// Every remaining point coincides with a center; take any unused one.
			for _, i := range rng.Perm(n) {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		chosen[next] = true
		c := clonePoint(x[next])
		centers = append(centers, c)
		for i := range x {
			if d := sqDist(x[i], c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

// lloyd iterates assignment and update steps until centers stop moving.
func lloyd(x [][]float64, centers [][]float64, maxIter int, tol float64) ([]int, float64) {
	n, k := len(x), len(centers)
	dim := len(x[0])
	labels := make([]int, n)

	for iter := 0; iter < maxIter; iter++ {
		assign(x, centers, labels)

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, c := range labels {
			counts[c]++
			for d, v := range x[i] {
				sums[c][d] += v
			}
		}

		relocateEmpty(x, centers, labels, counts, sums)

		shift := 0.0
		for c := range centers {
			next := make([]float64, dim)
			for d := range next {
				next[d] = sums[c][d] / float64(counts[c])
			}
			shift += sqDist(centers[c], next)
			centers[c] = next
		}
		if shift <= tol {
			break
		}
	}

	inertia := assign(x, centers, labels)
	return labels, inertia
}

// assign labels every point with its nearest center and returns the inertia.
func assign(x [][]float64, centers [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range x {
		best, bestD := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(p, center); d < bestD {
				best, bestD = c, d
			}
		}
		labels[i] = best
		inertia += bestD
	}
	return inertia
}

// relocateEmpty moves the point farthest from its center into each empty cluster.
func relocateEmpty(x [][]float64, centers [][]float64, labels []int, counts []int, sums [][]float64) {
	for c := range centers {
		if counts[c] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range x {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := sqDist(p, centers[labels[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			continue
		}
		old := labels[far]
		counts[old]--
		for d, v := range x[far] {
			sums[old][d] -= v
		}
		labels[far] = c
		counts[c] = 1
		copy(sums[c], x[far])
	}
}

func meanVariance(x [][]float64) float64 {
	n := float64(len(x))
	dim := len(x[0])
	total := 0.0
	for d := 0; d < dim; d++ {
		mean := 0.0
		for _, p := range x {
			mean += p[d]
		}
		mean /= n
		v := 0.0
		for _, p := range x {
			v += (p[d] - mean) * (p[d] - mean)
		}
		total += v / n
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clonePoint(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
