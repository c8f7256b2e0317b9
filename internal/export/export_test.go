package export

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/Veraticus/pickpath/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *model.Snapshot {
	gaps := model.NewTimegapTable(model.DefaultSentinel)
	gaps.Set("B", "A", 5)
	gaps.Set("C", "D", 6)
	return &model.Snapshot{
		CreatedAt:  time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC),
		Timegaps:   gaps,
		Assignment: model.ClusterAssignment{0: {"A", "B"}, 1: {"C", "D"}},
		ID:         "snap",
	}
}

func TestWriteClustersCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteClustersCSV(&buf, testSnapshot().Assignment))
	assert.Equal(t, "Item,Cluster\nA,0\nB,0\nC,1\nD,1\n", buf.String())
}

func TestWriteClustersJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteClustersJSON(&buf, testSnapshot().Assignment))

	var got map[string][]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string][]string{"0": {"A", "B"}, "1": {"C", "D"}}, got)
}

func TestWriteTimegapsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTimegapsJSON(&buf, testSnapshot().Timegaps))

	var got map[string]float64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]float64{"A,B": 5, "C,D": 6}, got)
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	art, err := WriteArtifacts(dir, testSnapshot())
	require.NoError(t, err)

	assert.Contains(t, art.ClustersJSON, "clusters_20240301093015.json")
	assert.Contains(t, art.TimegapsJSON, "timegaps_20240301093015.json")
	for _, path := range []string{art.ClustersCSV, art.ClustersJSON, art.TimegapsJSON} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size())
	}

	// A second export overwrites the CSV in place.
	_, err = WriteArtifacts(dir, testSnapshot())
	require.NoError(t, err)
}

func TestCompiledPath(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	assert.Equal(t, "/data/Server Data Files/compiled_csv/CompiledData_20240301093015.csv", CompiledPath("/data", at))
}

func TestWriteCompiledLog(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	records := []model.TripRecord{
		{Item: "milk", Offset: 0, Status: "1"},
		{Item: "eggs", Offset: 4.5, Status: "good"},
	}

	path, err := WriteCompiledLog(dir, at, records)
	require.NoError(t, err)
	assert.Equal(t, CompiledPath(dir, at), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "milk,0,1\neggs,4.5,good\n", string(data))
}
