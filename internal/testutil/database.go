// Package testutil provides shared test helpers for packages that need a
// migrated database or a compiled snapshot.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/model"
	"github.com/Veraticus/pickpath/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustSaveSnapshot stores snap or fails the test.
func (db *TestDB) MustSaveSnapshot(snap *model.Snapshot) {
	db.t.Helper()
	if err := db.Storage.SaveSnapshot(context.Background(), snap); err != nil {
		db.t.Fatalf("failed to save snapshot %s: %v", snap.ID, err)
	}
}

// ScenarioSnapshot returns a small compiled snapshot over items A through D
// where {A,B} and {C,D} are the two clusters.
func ScenarioSnapshot(id string) *model.Snapshot {
	gaps := model.NewTimegapTable(model.DefaultSentinel)
	gaps.Set("A", "B", 5)
	gaps.Set("A", "C", 50)
	gaps.Set("A", "D", 60)
	gaps.Set("B", "C", 52)
	gaps.Set("B", "D", 58)
	gaps.Set("C", "D", 6)

	assignment := model.ClusterAssignment{0: {"A", "B"}, 1: {"C", "D"}}
	return &model.Snapshot{
		CreatedAt:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Timegaps:         gaps,
		Assignment:       assignment,
		Index:            model.NewClusterIndex(assignment),
		ClusterDistances: model.ClusterDistanceTable{model.NewClusterPair(0, 1): 55},
		Cohesion:         model.ClusterCohesion{0: 5, 1: 6},
		ID:               id,
		Strategy:         "hierarchical",
		Items:            []string{"A", "B", "C", "D"},
		ClusterCount:     2,
		TripCount:        6,
	}
}

// ScenarioRecords returns a trip log whose estimate matches ScenarioSnapshot.
func ScenarioRecords() []model.TripRecord {
	pairs := []struct {
		a, b string
		gap  float64
	}{
		{"A", "B", 5},
		{"A", "C", 50},
		{"A", "D", 60},
		{"B", "C", 52},
		{"B", "D", 58},
		{"C", "D", 6},
	}
	records := make([]model.TripRecord, 0, 2*len(pairs))
	for _, p := range pairs {
		records = append(records,
			model.TripRecord{Item: p.a, Offset: 0, Status: "1"},
			model.TripRecord{Item: p.b, Offset: p.gap, Status: "1"},
		)
	}
	return records
}
