package cluster

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/Veraticus/pickpath/internal/distance"
)

// AffinityParams configures affinity propagation. Preference nil means the
// median of the similarity matrix.
type AffinityParams struct {
	Preference      *float64
	Alpha           float64
	Damping         float64
	MaxIter         int
	ConvergenceIter int
	Seed            int64
}

// DefaultAffinityParams returns the affinity propagation defaults.
func DefaultAffinityParams() AffinityParams {
	return AffinityParams{
		Alpha:           0.05,
		Damping:         0.9,
		MaxIter:         500,
		ConvergenceIter: 15,
	}
}

// Affinity clusters by exchanging responsibility and availability messages
// over exp(-alpha*d) similarities. The number of clusters is not fixed.
type Affinity struct {
	params AffinityParams
}

// NewAffinity validates params and returns the strategy.
func NewAffinity(p AffinityParams) (*Affinity, error) {
	d := DefaultAffinityParams()
	if p.Alpha == 0 {
		p.Alpha = d.Alpha
	}
	if p.Damping == 0 {
		p.Damping = d.Damping
	}
	if p.MaxIter == 0 {
		p.MaxIter = d.MaxIter
	}
	if p.ConvergenceIter == 0 {
		p.ConvergenceIter = d.ConvergenceIter
	}

	switch {
	case p.Alpha < 0:
		return nil, fmt.Errorf("%w: alpha must be positive, got %g", ErrInvalidParams, p.Alpha)
	case p.Damping < 0.5 || p.Damping >= 1:
		return nil, fmt.Errorf("%w: damping must be in [0.5, 1), got %g", ErrInvalidParams, p.Damping)
	case p.MaxIter < 0 || p.ConvergenceIter < 0:
		return nil, fmt.Errorf("%w: iteration limits must be positive", ErrInvalidParams)
	}
	return &Affinity{params: p}, nil
}

// Name implements Strategy.
func (a *Affinity) Name() string {
	return StrategyAffinity
}

// Fit implements Strategy.
func (a *Affinity) Fit(m *distance.Matrix) (*Result, error) {
	n := m.Size()
	if n == 1 {
		return newResult(m, m.Rows(), []int{0}), nil
	}

	s := distance.Similarity(m, a.params.Alpha).Rows()
	pref := median(s)
	if a.params.Preference != nil {
		pref = *a.params.Preference
	}
	for i := 0; i < n; i++ {
		s[i][i] = pref
	}

	// Break ties between identical rows deterministically.
	rng := rand.New(rand.NewSource(a.params.Seed)) //nolint:gosec // reproducible clustering, not security
	const eps = 2.220446049250313e-16
	const tiny = 2.2250738585072014e-308
	for i := range s {
		for j := range s[i] {
			s[i][j] += (eps*s[i][j] + tiny*100) * rng.NormFloat64()
		}
	}

	exemplars, iters, converged := a.propagate(s)
	slog.Debug("Affinity propagation finished",
		"items", n, "exemplars", len(exemplars), "iterations", iters, "converged", converged)

	if len(exemplars) == 0 {
		slog.Warn("Affinity propagation found no exemplars, leaving every item in its own cluster", "items", n)
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i
		}
		return newResult(m, m.Rows(), labels), nil
	}

	return newResult(m, m.Rows(), assignExemplars(s, exemplars)), nil
}

// propagate runs the damped message updates and returns the exemplar rows.
func (a *Affinity) propagate(s [][]float64) ([]int, int, bool) {
	n := len(s)
	damp := a.params.Damping
	conv := a.params.ConvergenceIter

	r := square(n)
	av := square(n)
	window := make([][]bool, n)
	for i := range window {
		window[i] = make([]bool, conv)
	}

	it := 0
	converged := false
	for ; it < a.params.MaxIter; it++ {
		// Responsibilities.
		for i := 0; i < n; i++ {
			first, second := math.Inf(-1), math.Inf(-1)
			best := -1
			for k := 0; k < n; k++ {
				v := av[i][k] + s[i][k]
				if v > first {
					second = first
					first = v
					best = k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				other := first
				if k == best {
					other = second
				}
				r[i][k] = damp*r[i][k] + (1-damp)*(s[i][k]-other)
			}
		}

		// Availabilities.
		for k := 0; k < n; k++ {
			colsum := r[k][k]
			for i := 0; i < n; i++ {
				if i != k {
					colsum += math.Max(0, r[i][k])
				}
			}
			for i := 0; i < n; i++ {
				var next float64
				if i == k {
					next = colsum - r[k][k]
				} else {
					next = math.Min(0, colsum-math.Max(0, r[i][k]))
				}
				av[i][k] = damp*av[i][k] + (1-damp)*next
			}
		}

		// An item is an exemplar when its self-evidence is positive; stop once
		// that set has been stable for the whole window.
		exemplars := 0
		for i := 0; i < n; i++ {
			e := av[i][i]+r[i][i] > 0
			window[i][it%conv] = e
			if e {
				exemplars++
			}
		}
		if it >= conv {
			stable := true
			for i := 0; i < n && stable; i++ {
				hits := 0
				for _, e := range window[i] {
					if e {
						hits++
					}
				}
				stable = hits == 0 || hits == conv
			}
			if stable && exemplars > 0 {
				converged = true
				it++
				break
			}
		}
	}

	var exemplars []int
	for i := 0; i < n; i++ {
		if av[i][i]+r[i][i] > 0 {
			exemplars = append(exemplars, i)
		}
	}
	return exemplars, it, converged
}

// assignExemplars attaches every row to its most similar exemplar, then
// re-elects each cluster's exemplar as the member with the highest total
// similarity to the rest, and assigns once more.
func assignExemplars(s [][]float64, exemplars []int) []int {
	n := len(s)
	nearest := func(ex []int) []int {
		c := make([]int, n)
		for i := 0; i < n; i++ {
			best := 0
			for k := 1; k < len(ex); k++ {
				if s[i][ex[k]] > s[i][ex[best]] {
					best = k
				}
			}
			c[i] = best
		}
		for k, e := range ex {
			c[e] = k
		}
		return c
	}

	ex := append([]int(nil), exemplars...)
	c := nearest(ex)
	for k := range ex {
		var members []int
		for i, ck := range c {
			if ck == k {
				members = append(members, i)
			}
		}
		bestSum := math.Inf(-1)
		for _, j := range members {
			sum := 0.0
			for _, i := range members {
				sum += s[i][j]
			}
			if sum > bestSum {
				bestSum = sum
				ex[k] = j
			}
		}
	}

	c = nearest(ex)
	labels := make([]int, n)
	for i, k := range c {
		labels[i] = ex[k]
	}
	return labels
}

func square(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}

func median(s [][]float64) float64 {
	flat := make([]float64, 0, len(s)*len(s))
	for _, row := range s {
		flat = append(flat, row...)
	}
	sort.Float64s(flat)
	mid := len(flat) / 2
	if len(flat)%2 == 0 {
		return (flat[mid-1] + flat[mid]) / 2
	}
	return flat[mid]
}
