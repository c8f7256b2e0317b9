package model

import "time"

// Snapshot is one compiled proximity model. Once published it is never mutated.
type Snapshot struct {
	CreatedAt        time.Time
	Timegaps         *TimegapTable
	Assignment       ClusterAssignment
	Index            ClusterIndex
	ClusterDistances ClusterDistanceTable
	Cohesion         ClusterCohesion
	ID               string
	Strategy         string
	Items            []string
	ClusterCount     int
	TripCount        int
}

// SnapshotSummary is the lightweight listing form of a stored snapshot.
type SnapshotSummary struct {
	CreatedAt    time.Time
	ID           string
	Strategy     string
	ItemCount    int
	ClusterCount int
	TripCount    int
}

// Summary returns the listing form of the snapshot.
func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		CreatedAt:    s.CreatedAt,
		ID:           s.ID,
		Strategy:     s.Strategy,
		ItemCount:    len(s.Items),
		ClusterCount: s.ClusterCount,
		TripCount:    s.TripCount,
	}
}

// SortTiming records how long sequencing a customer's initial list took.
type SortTiming struct {
	RecordedAt     time.Time
	ID             int64
	CustomerNumber int
	ItemCount      int
	Duration       time.Duration
}
