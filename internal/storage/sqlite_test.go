package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/common"
	"github.com/Veraticus/pickpath/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func createTestSnapshot(id string, created time.Time) *model.Snapshot {
	gaps := model.NewTimegapTable(model.DefaultSentinel)
	gaps.Set("A", "B", 5)
	gaps.Set("A", "C", 50)
	gaps.Set("A", "D", model.DefaultSentinel)
	gaps.Set("B", "C", 52)
	gaps.Set("B", "D", 58)
	gaps.Set("C", "D", 6)

	assignment := model.ClusterAssignment{0: {"A", "B"}, 1: {"C", "D"}}
	return &model.Snapshot{
		CreatedAt:        created,
		Timegaps:         gaps,
		Assignment:       assignment,
		Index:            model.NewClusterIndex(assignment),
		ClusterDistances: model.ClusterDistanceTable{model.NewClusterPair(0, 1): 53.33},
		Cohesion:         model.ClusterCohesion{0: 5, 1: 6},
		ID:               id,
		Strategy:         "hierarchical",
		Items:            []string{"A", "B", "C", "D"},
		ClusterCount:     2,
		TripCount:        9,
	}
}

func TestSQLiteStorage_SaveAndGetSnapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := createTestSnapshot("snap-1", created)
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	got, err := store.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)

	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.Strategy, got.Strategy)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, snap.Items, got.Items)
	assert.Equal(t, snap.Assignment, got.Assignment)
	assert.Equal(t, snap.Index, got.Index)
	assert.Equal(t, snap.ClusterDistances, got.ClusterDistances)
	assert.Equal(t, snap.Cohesion, got.Cohesion)
	assert.Equal(t, 2, got.ClusterCount)
	assert.Equal(t, 9, got.TripCount)

	assert.Equal(t, model.DefaultSentinel, got.Timegaps.Sentinel())
	assert.Equal(t, snap.Timegaps.Len(), got.Timegaps.Len())
	d, ok := got.Timegaps.Get("D", "C")
	require.True(t, ok)
	assert.Equal(t, 6.0, d)
}

func TestSQLiteStorage_DuplicateSnapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	snap := createTestSnapshot("dup", time.Now())
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	assert.Error(t, store.SaveSnapshot(ctx, snap))

	// The failed save must not leave partial rows behind.
	list, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteStorage_LatestSnapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSnapshot(ctx, createTestSnapshot("older", base)))
	require.NoError(t, store.SaveSnapshot(ctx, createTestSnapshot("newer", base.Add(time.Hour))))

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.ID)
}

func TestSQLiteStorage_ListAndDeleteSnapshots(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, store.SaveSnapshot(ctx, createTestSnapshot(id, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s3", all[0].ID)
	assert.Equal(t, 4, all[0].ItemCount)

	limited, err := store.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, store.DeleteSnapshot(ctx, "s3"))
	_, err = store.GetSnapshot(ctx, "s3")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteSnapshot(ctx, "s3"), common.ErrNotFound)

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ID)
}

func TestSQLiteStorage_SortTimings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &model.SortTiming{RecordedAt: base, CustomerNumber: 1, ItemCount: 12, Duration: 1500 * time.Microsecond}
	second := &model.SortTiming{RecordedAt: base.Add(time.Second), CustomerNumber: 2, ItemCount: 3, Duration: time.Millisecond}
	require.NoError(t, store.RecordSortTiming(ctx, first))
	require.NoError(t, store.RecordSortTiming(ctx, second))
	assert.NotZero(t, first.ID)

	timings, err := store.GetSortTimings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, timings, 2)
	assert.Equal(t, 2, timings[0].CustomerNumber)
	assert.Equal(t, 1500*time.Microsecond, timings[1].Duration)
	assert.Equal(t, 12, timings[1].ItemCount)

	one, err := store.GetSortTimings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}
