package cluster

import (
	"github.com/Veraticus/pickpath/internal/distance"
	"github.com/Veraticus/pickpath/internal/model"
)

// InterClusterDistances averages the matrix entries between the members of
// every pair of clusters, skipping sentinel entries. Cluster pairs with no
// observed entries are left out. Items missing from the matrix are ignored.
func InterClusterDistances(m *distance.Matrix, a model.ClusterAssignment) model.ClusterDistanceTable {
	ids, groups := indexGroups(m, a)
	table := interClusterDistances(m.Rows(), groups, m.Sentinel())

	// Translate positional ids back to the assignment's ids.
	out := make(model.ClusterDistanceTable, len(table))
	for p, d := range table {
		out[model.NewClusterPair(ids[p.A], ids[p.B])] = d
	}
	return out
}

// Cohesion averages the observed distances inside every cluster.
func Cohesion(m *distance.Matrix, a model.ClusterAssignment) model.ClusterCohesion {
	ids, groups := indexGroups(m, a)
	c := cohesion(m.Rows(), groups, m.Sentinel())

	out := make(model.ClusterCohesion, len(c))
	for pos, d := range c {
		out[ids[pos]] = d
	}
	return out
}

func indexGroups(m *distance.Matrix, a model.ClusterAssignment) ([]int, [][]int) {
	ids := a.IDs()
	groups := make([][]int, len(ids))
	for pos, id := range ids {
		for _, item := range a[id] {
			if i, ok := m.IndexOf(item); ok {
				groups[pos] = append(groups[pos], i)
			}
		}
	}
	return ids, groups
}

func interClusterDistances(rows [][]float64, groups [][]int, sentinel float64) model.ClusterDistanceTable {
	table := make(model.ClusterDistanceTable)
	for a := 0; a < len(groups); a++ {
		for b := a + 1; b < len(groups); b++ {
			sum, n := 0.0, 0
			for _, i := range groups[a] {
				for _, j := range groups[b] {
					d := rows[i][j]
					if d == sentinel {
						continue
					}
					sum += d
					n++
				}
			}
			if n > 0 {
				table[model.NewClusterPair(a, b)] = sum / float64(n)
			}
		}
	}
	return table
}

func cohesion(rows [][]float64, groups [][]int, sentinel float64) model.ClusterCohesion {
	out := make(model.ClusterCohesion)
	for id, members := range groups {
		sum, n := 0.0, 0
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				d := rows[members[x]][members[y]]
				if d == sentinel {
					continue
				}
				sum += d
				n++
			}
		}
		if n > 0 {
			out[id] = sum / float64(n)
		}
	}
	return out
}
