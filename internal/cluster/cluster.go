// Package cluster groups items into proximity clusters from a distance matrix.
//
// Three interchangeable strategies implement Strategy: average-linkage
// hierarchical clustering on the raw distances, k-means on the normalized
// dissimilarity matrix, and affinity propagation on an exponential similarity
// matrix. All of them share the same post-processing, so every Result carries
// an assignment numbered by first appearance in the item ordering, its reverse
// index and the inter-cluster distance table.
package cluster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/pickpath/internal/distance"
	"github.com/Veraticus/pickpath/internal/model"
)

// ErrInvalidParams indicates the caller broke a strategy's parameter contract.
var ErrInvalidParams = errors.New("invalid clustering parameters")

// Strategy names.
const (
	StrategyHierarchical = "hierarchical"
	StrategyKMeans       = "kmeans"
	StrategyAffinity     = "affinity"
)

// Strategy is one clustering backend.
type Strategy interface {
	Name() string
	Fit(m *distance.Matrix) (*Result, error)
}

// Result is the outcome of fitting a strategy.
type Result struct {
	Assignment model.ClusterAssignment
	Index      model.ClusterIndex
	Distances  model.ClusterDistanceTable
	Cohesion   model.ClusterCohesion
	Count      int
}

// Params carries the tuning for every strategy; only the selected one is read.
type Params struct {
	Hierarchical HierarchicalParams
	KMeans       KMeansParams
	Affinity     AffinityParams
}

// DefaultParams returns the defaults for every strategy.
func DefaultParams() Params {
	return Params{
		Hierarchical: HierarchicalParams{DistanceThreshold: 60},
		KMeans:       DefaultKMeansParams(),
		Affinity:     DefaultAffinityParams(),
	}
}

// ParseName normalizes a strategy name. The numeric codes used by older
// clients are accepted: 0 and 1 select hierarchical, 2 selects affinity.
func ParseName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "0", "1", StrategyHierarchical, "agglomerative":
		return StrategyHierarchical, nil
	case "2", StrategyAffinity, "affinity-propagation":
		return StrategyAffinity, nil
	case StrategyKMeans, "k-means":
		return StrategyKMeans, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidParams, name)
	}
}

// New returns the strategy registered under name.
func New(name string, p Params) (Strategy, error) {
	canonical, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case StrategyKMeans:
		return NewKMeans(p.KMeans)
	case StrategyAffinity:
		return NewAffinity(p.Affinity)
	default:
		return NewHierarchical(p.Hierarchical)
	}
}

// newResult turns raw labels (one per matrix row, any integers) into a Result.
// Clusters are renumbered 0..k-1 in order of first appearance.
func newResult(m *distance.Matrix, rows [][]float64, labels []int) *Result {
	renumber := make(map[int]int)
	groups := make([][]int, 0)
	assignment := make(model.ClusterAssignment)

	for i, label := range labels {
		id, ok := renumber[label]
		if !ok {
			id = len(groups)
			renumber[label] = id
			groups = append(groups, nil)
		}
		groups[id] = append(groups[id], i)
		assignment[id] = append(assignment[id], m.Item(i))
	}

	return &Result{
		Assignment: assignment,
		Index:      model.NewClusterIndex(assignment),
		Distances:  interClusterDistances(rows, groups, m.Sentinel()),
		Cohesion:   cohesion(rows, groups, m.Sentinel()),
		Count:      len(groups),
	}
}
