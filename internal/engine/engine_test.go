package engine

import (
	"context"
	"testing"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trip(a string, b string, gap float64) []model.TripRecord {
	return []model.TripRecord{
		{Item: a, Offset: 0, Status: "1"},
		{Item: b, Offset: gap, Status: "good"},
	}
}

func scenarioRecords() []model.TripRecord {
	var records []model.TripRecord
	records = append(records, trip("A", "B", 5)...)
	records = append(records, trip("A", "C", 50)...)
	records = append(records, trip("A", "D", 60)...)
	records = append(records, trip("B", "C", 52)...)
	records = append(records, trip("B", "D", 58)...)
	records = append(records, trip("C", "D", 6)...)
	return records
}

func newTestEngine() *Engine {
	config := DefaultConfig()
	config.Clustering.Hierarchical = cluster.HierarchicalParams{DistanceThreshold: 10}
	return New(nil, config)
}

func TestEngine_Compile(t *testing.T) {
	e := newTestEngine()
	snap, err := e.Compile(context.Background(), scenarioRecords(), cluster.StrategyHierarchical)
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, cluster.StrategyHierarchical, snap.Strategy)
	assert.Equal(t, []string{"A", "B", "C", "D"}, snap.Items)
	assert.Equal(t, 6, snap.TripCount)
	assert.Equal(t, 2, snap.ClusterCount)
	assert.Equal(t, model.ClusterAssignment{0: {"A", "B"}, 1: {"C", "D"}}, snap.Assignment)

	d, ok := snap.Timegaps.Get("C", "D")
	require.True(t, ok)
	assert.Equal(t, 6.0, d)

	assert.Same(t, snap, e.Snapshot())
}

func TestEngine_CompileEmptyBatch(t *testing.T) {
	e := newTestEngine()
	first, err := e.Compile(context.Background(), scenarioRecords(), "")
	require.NoError(t, err)

	empty := []model.TripRecord{{Item: "A", Offset: 0, Status: "bad"}}
	_, err = e.Compile(context.Background(), empty, "")
	require.ErrorIs(t, err, ErrNoData)
	_, err = e.Compile(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrNoData)

	assert.Same(t, first, e.Snapshot(), "failed compile must not replace the snapshot")
}

func TestEngine_CompileInvalidStrategy(t *testing.T) {
	e := newTestEngine()
	_, err := e.Compile(context.Background(), scenarioRecords(), "dbscan")
	require.ErrorIs(t, err, cluster.ErrInvalidParams)
	assert.Nil(t, e.Snapshot())
}

func TestEngine_CompileCanceled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Compile(ctx, scenarioRecords(), "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, e.Snapshot())
}

func TestEngine_Sort(t *testing.T) {
	e := newTestEngine()
	_, err := e.Compile(context.Background(), scenarioRecords(), "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		stage  Stage
		anchor string
		items  []string
		want   []string
	}{
		{"start", StageStart, "", []string{"D", "A", "C", "B"}, []string{"D", "C", "A", "B"}},
		{"mid prepends anchor", StageMid, "D", []string{"A", "C", "B"}, []string{"C", "A", "B"}},
		{"mid anchor already listed", StageMid, "D", []string{"D", "A", "C", "B"}, []string{"C", "A", "B"}},
		{"end passes through", StageEnd, "", []string{"B", "A"}, []string{"B", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Sort(context.Background(), tt.stage, tt.anchor, tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_SortErrors(t *testing.T) {
	e := newTestEngine()
	_, err := e.Sort(context.Background(), StageStart, "", []string{"A"})
	assert.ErrorIs(t, err, ErrNoData)

	got, err := e.Sort(context.Background(), StageEnd, "", []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)

	_, err = e.Compile(context.Background(), scenarioRecords(), "")
	require.NoError(t, err)

	_, err = e.Sort(context.Background(), StageMid, "", []string{"A"})
	assert.ErrorIs(t, err, ErrMissingAnchor)
	_, err = e.Sort(context.Background(), Stage("late"), "", []string{"A"})
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage(" MID ")
	require.NoError(t, err)
	assert.Equal(t, StageMid, st)

	_, err = ParseStage("later")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestEngine_RecordSortTimingWithoutStore(t *testing.T) {
	e := newTestEngine()
	assert.NoError(t, e.RecordSortTiming(context.Background(), 3, 12, 0))
}
