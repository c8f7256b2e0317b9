package cluster

import (
	"fmt"
	"math"

	"github.com/Veraticus/pickpath/internal/distance"
)

// HierarchicalParams configures average-linkage clustering. Exactly one of
// NClusters and DistanceThreshold must be positive; the other stays zero.
type HierarchicalParams struct {
	NClusters         int
	DistanceThreshold float64
}

// Validate enforces the count/cutoff exclusivity.
func (p HierarchicalParams) Validate() error {
	if p.NClusters < 0 || p.DistanceThreshold < 0 {
		return fmt.Errorf("%w: cluster count and distance threshold must not be negative", ErrInvalidParams)
	}
	hasCount := p.NClusters > 0
	hasCutoff := p.DistanceThreshold > 0
	if hasCount && hasCutoff {
		return fmt.Errorf("%w: set either a cluster count or a distance threshold, not both", ErrInvalidParams)
	}
	if !hasCount && !hasCutoff {
		return fmt.Errorf("%w: a cluster count or a distance threshold is required", ErrInvalidParams)
	}
	return nil
}

// Hierarchical is agglomerative clustering with average linkage over the
// precomputed distance matrix.
type Hierarchical struct {
	params HierarchicalParams
}

// NewHierarchical validates params and returns the strategy.
func NewHierarchical(p HierarchicalParams) (*Hierarchical, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Hierarchical{params: p}, nil
}

// Name implements Strategy.
func (h *Hierarchical) Name() string {
	return StrategyHierarchical
}

// Fit merges the closest pair of clusters until the target count is reached
// or the closest average linkage is at or above the threshold.
// Ties go to the lowest (i, j) row pair.
func (h *Hierarchical) Fit(m *distance.Matrix) (*Result, error) {
	n := m.Size()
	if h.params.NClusters > n {
		return nil, fmt.Errorf("%w: %d clusters requested for %d items", ErrInvalidParams, h.params.NClusters, n)
	}

	rows := m.Rows()
	linkage := m.Rows()
	size := make([]int, n)
	active := make([]bool, n)
	members := make([][]int, n)
	for i := 0; i < n; i++ {
		size[i] = 1
		active[i] = true
		members[i] = []int{i}
	}

	count := n
	for count > 1 {
		if h.params.NClusters > 0 && count <= h.params.NClusters {
			break
		}

		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && linkage[i][j] < best {
					best = linkage[i][j]
					bi, bj = i, j
				}
			}
		}
		if bi < 0 {
			break
		}
		if h.params.DistanceThreshold > 0 && best >= h.params.DistanceThreshold {
			break
		}

		// Average linkage update for the merged cluster.
		si, sj := float64(size[bi]), float64(size[bj])
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			d := (si*linkage[bi][k] + sj*linkage[bj][k]) / (si + sj)
			linkage[bi][k] = d
			linkage[k][bi] = d
		}
		size[bi] += size[bj]
		members[bi] = append(members[bi], members[bj]...)
		members[bj] = nil
		active[bj] = false
		count--
	}

	labels := make([]int, n)
	for rep := 0; rep < n; rep++ {
		for _, i := range members[rep] {
			labels[i] = rep
		}
	}
	return newResult(m, rows, labels), nil
}
