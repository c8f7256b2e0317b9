package model

import "sort"

// ClusterAssignment maps a cluster id to the items it contains.
type ClusterAssignment map[int][]string

// IDs returns the cluster ids in ascending order.
func (a ClusterAssignment) IDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Size returns the total number of assigned items.
func (a ClusterAssignment) Size() int {
	n := 0
	for _, items := range a {
		n += len(items)
	}
	return n
}

// ClusterIndex is the reverse lookup from item to cluster id.
type ClusterIndex map[string]int

// NewClusterIndex builds the reverse index for an assignment.
func NewClusterIndex(a ClusterAssignment) ClusterIndex {
	idx := make(ClusterIndex, a.Size())
	for id, items := range a {
		for _, item := range items {
			idx[item] = id
		}
	}
	return idx
}

// ClusterOf returns the cluster of an item.
func (x ClusterIndex) ClusterOf(item string) (int, bool) {
	id, ok := x[item]
	return id, ok
}

// ClusterPair is an unordered pair of cluster ids with A < B.
type ClusterPair struct {
	A int
	B int
}

// NewClusterPair returns the canonical pair for two cluster ids.
func NewClusterPair(a, b int) ClusterPair {
	if b < a {
		a, b = b, a
	}
	return ClusterPair{A: a, B: b}
}

// ClusterDistanceTable maps cluster pairs to the mean observed distance between their members.
type ClusterDistanceTable map[ClusterPair]float64

// Get returns the distance between two clusters.
func (t ClusterDistanceTable) Get(a, b int) (float64, bool) {
	d, ok := t[NewClusterPair(a, b)]
	return d, ok
}

// Pairs returns the stored pairs sorted by (A, B).
func (t ClusterDistanceTable) Pairs() []ClusterPair {
	pairs := make([]ClusterPair, 0, len(t))
	for p := range t {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// ClusterCohesion maps a cluster id to the mean observed distance between its own members.
type ClusterCohesion map[int]float64
