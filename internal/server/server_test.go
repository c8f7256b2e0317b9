package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/cluster"
	"github.com/Veraticus/pickpath/internal/engine"
	"github.com/Veraticus/pickpath/internal/export"
	"github.com/Veraticus/pickpath/internal/recordings"
	"github.com/Veraticus/pickpath/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioLog = "A,0,1\nB,5,1\n" +
	"A,0,1\nC,50,1\n" +
	"A,0,1\nD,60,1\n" +
	"B,0,1\nC,52,1\n" +
	"B,0,1\nD,58,1\n" +
	"C,0,1\nD,6,1\n"

func newTestServer(t *testing.T) (*Server, *testutil.TestDB, string) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	config := engine.DefaultConfig()
	config.Clustering.Hierarchical = cluster.HierarchicalParams{DistanceThreshold: 10}
	e := engine.New(db.Storage, config)

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	return New(e, cfg), db, dir
}

func writeRecording(t *testing.T, dir, name, content string) {
	t.Helper()
	rec := filepath.Join(dir, recordings.RecordingsDir)
	require.NoError(t, os.MkdirAll(rec, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(rec, name), []byte(content), 0o600))
}

func TestHandle_ClusterAndSort(t *testing.T) {
	s, db, dir := newTestServer(t)
	ctx := context.Background()
	writeRecording(t, dir, "session1.csv", scenarioLog)

	assert.Equal(t, ReplyDone, s.Handle(ctx, "cluster|0^"+dir))
	_, err := os.Stat(filepath.Join(dir, export.ClustersCSVDir, export.ClustersCSVName))
	require.NoError(t, err)

	assert.Equal(t, "D, C, A, B", s.Handle(ctx, "sort|start^1/D, A, C, B"))
	assert.Equal(t, "C, A, B", s.Handle(ctx, "sort|mid^D/A, C, B"))
	assert.Equal(t, "B, A", s.Handle(ctx, "sort|end^B, A"))

	timings, err := db.Storage.GetSortTimings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, timings, 1)
	assert.Equal(t, 1, timings[0].CustomerNumber)
	assert.Equal(t, 4, timings[0].ItemCount)
}

func TestHandle_NotSort(t *testing.T) {
	s, _, dir := newTestServer(t)
	ctx := context.Background()
	writeRecording(t, dir, "session1.csv", scenarioLog)
	require.Equal(t, ReplyDone, s.Handle(ctx, "cluster|1^"+dir))

	assert.Equal(t, "D, A, C, B", s.Handle(ctx, "notsort|start^2/D,A,C,B"))
	assert.Equal(t, "A, C, B", s.Handle(ctx, "notsort|mid^D/A,C,B"))
}

func TestHandle_NoData(t *testing.T) {
	s, _, dir := newTestServer(t)
	ctx := context.Background()

	assert.Equal(t, ReplyNoData, s.Handle(ctx, "cluster|0^"+dir))

	writeRecording(t, dir, "empty.csv", "A,0,bad\n")
	assert.Equal(t, ReplyNoData, s.Handle(ctx, "cluster|0^"+dir))

	// Without a snapshot, sorts fall back to the client's order.
	assert.Equal(t, "D, A", s.Handle(ctx, "sort|start^1/D,A"))
}

func TestHandle_Errors(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		request string
	}{
		{"no separator", "hello"},
		{"unknown action", "dance|start^1/A"},
		{"missing stage separator", "sort|start"},
		{"unknown stage", "sort|later^A"},
		{"bad customer", "sort|start^x/A,B"},
		{"start without items separator", "sort|start^1"},
		{"mid without anchor separator", "sort|mid^A"},
		{"unknown strategy", "cluster|dbscan^/tmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(s.Handle(ctx, tt.request), "ERROR: "))
		})
	}
}

func TestStrategyFor(t *testing.T) {
	s, _, _ := newTestServer(t)
	tests := map[string]string{
		"":         cluster.StrategyHierarchical,
		"0":        cluster.StrategyHierarchical,
		"1":        cluster.StrategyHierarchical,
		"2":        cluster.StrategyAffinity,
		"7":        cluster.StrategyAffinity,
		"kmeans":   cluster.StrategyKMeans,
		"affinity": cluster.StrategyAffinity,
	}
	for code, want := range tests {
		got, err := s.strategyFor(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got, code)
	}
}

func TestServe_RoundTrip(t *testing.T) {
	s, _, dir := newTestServer(t)
	writeRecording(t, dir, "session1.csv", scenarioLog)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	request := func(msg string) string {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()
		require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))

		_, err = conn.Write([]byte(msg))
		require.NoError(t, err)
		reply, err := io.ReadAll(conn)
		require.NoError(t, err)
		return string(reply)
	}

	assert.Equal(t, ReplyDone, request("cluster|0^"+dir))
	assert.Equal(t, "D, C, A, B", request("sort|start^1/D,A,C,B"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ReadTimeout = 0
	assert.Error(t, cfg.Validate())
}
