// Package sequence orders a shopping list so that proximate items are
// adjacent, starting from an anchor item.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Veraticus/pickpath/internal/model"
)

// ErrItemNotFound indicates an explicit anchor the list or the clusters do not know.
var ErrItemNotFound = errors.New("item not found")

// Tables are the learned structures a sequencing call reads. All of them come
// from the same compiled snapshot.
type Tables struct {
	Index    model.ClusterIndex
	Clusters model.ClusterDistanceTable
	Timegaps *model.TimegapTable
}

// Sequence reorders list. An empty anchor means the first item anchors the
// ordering and stays in the output; an explicit anchor must be in the list and
// is removed from the output.
func Sequence(anchor string, list []string, tables Tables) ([]string, error) {
	explicit := anchor != ""
	if explicit && indexOf(list, anchor) < 0 {
		return nil, fmt.Errorf("anchor %q not in list: %w", anchor, ErrItemNotFound)
	}
	if len(list) == 0 {
		return []string{}, nil
	}

	if len(tables.Index) == 0 {
		return withoutAnchor(list, anchor, explicit), nil
	}

	if !explicit {
		anchor = list[0]
	}
	home, ok := tables.Index.ClusterOf(anchor)
	if !ok {
		if explicit {
			return nil, fmt.Errorf("anchor %q has no cluster: %w", anchor, ErrItemNotFound)
		}
		home, ok = firstKnownCluster(list, tables.Index)
		if !ok {
			return append([]string(nil), list...), nil
		}
	}

	ordered := group(anchor, home, list, tables)
	refine(ordered, tables)
	return withoutAnchor(ordered, anchor, explicit), nil
}

// group places the anchor first, then its cluster mates, then the other
// clusters nearest first, then items without a cluster. Input order is kept
// inside each group.
func group(anchor string, home int, list []string, tables Tables) []string {
	out := make([]string, 0, len(list))
	out = append(out, anchor)

	var same, loose []string
	others := make(map[int][]string)
	skipped := false
	for _, item := range list {
		if item == anchor && !skipped {
			skipped = true
			continue
		}
		id, ok := tables.Index.ClusterOf(item)
		switch {
		case !ok:
			loose = append(loose, item)
		case id == home:
			same = append(same, item)
		default:
			others[id] = append(others[id], item)
		}
	}

	ids := make([]int, 0, len(others))
	for id := range others {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := clusterDistance(tables.Clusters, home, ids[i]), clusterDistance(tables.Clusters, home, ids[j])
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})

	out = append(out, same...)
	for _, id := range ids {
		out = append(out, others[id]...)
	}
	return append(out, loose...)
}

// refine walks adjacent positions; when a pair crosses clusters, the item
// after i with the smallest timegap to position i is swapped into i+1.
func refine(items []string, tables Tables) {
	for i := 0; i+1 < len(items); i++ {
		if sameCluster(tables.Index, items[i], items[i+1]) {
			continue
		}
		best := i + 1
		bestGap := timegap(tables.Timegaps, items[i], items[best])
		for j := i + 2; j < len(items); j++ {
			if gap := timegap(tables.Timegaps, items[i], items[j]); gap < bestGap {
				best, bestGap = j, gap
			}
		}
		items[i+1], items[best] = items[best], items[i+1]
	}
}

func sameCluster(index model.ClusterIndex, a, b string) bool {
	ca, okA := index.ClusterOf(a)
	cb, okB := index.ClusterOf(b)
	return okA && okB && ca == cb
}

func clusterDistance(t model.ClusterDistanceTable, a, b int) float64 {
	if d, ok := t.Get(a, b); ok {
		return d
	}
	return math.Inf(1)
}

func timegap(t *model.TimegapTable, a, b string) float64 {
	if t == nil {
		return math.Inf(1)
	}
	return t.Distance(a, b)
}

func firstKnownCluster(list []string, index model.ClusterIndex) (int, bool) {
	for _, item := range list {
		if id, ok := index.ClusterOf(item); ok {
			return id, true
		}
	}
	return 0, false
}

func withoutAnchor(list []string, anchor string, explicit bool) []string {
	out := append([]string(nil), list...)
	if !explicit {
		return out
	}
	if i := indexOf(out, anchor); i >= 0 {
		out = append(out[:i], out[i+1:]...)
	}
	return out
}

func indexOf(list []string, item string) int {
	for i, v := range list {
		if v == item {
			return i
		}
	}
	return -1
}
