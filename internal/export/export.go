// Package export writes snapshot artifacts for the scanner clients and for
// offline inspection.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Veraticus/pickpath/internal/model"
	"github.com/Veraticus/pickpath/internal/recordings"
)

// Artifact locations relative to the data directory.
const (
	ClustersCSVDir  = "clusteredCSV"
	ClustersCSVName = "clusters.csv"
	DataFilesDir    = "Server Data Files"
	JSONDir         = "Clusters_and_Timegaps"
	CompiledDir     = "compiled_csv"

	timestampLayout = "20060102150405"
)

// Artifacts lists the files written by WriteArtifacts.
type Artifacts struct {
	ClustersCSV  string
	ClustersJSON string
	TimegapsJSON string
}

// WriteClustersCSV writes one Item,Cluster row per item, cluster by cluster.
func WriteClustersCSV(w io.Writer, a model.ClusterAssignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Item", "Cluster"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, id := range a.IDs() {
		for _, item := range a[id] {
			if err := cw.Write([]string{item, strconv.Itoa(id)}); err != nil {
				return fmt.Errorf("failed to write cluster row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteClustersJSON writes the assignment as an object keyed by cluster id.
func WriteClustersJSON(w io.Writer, a model.ClusterAssignment) error {
	out := make(map[string][]string, len(a))
	for id, members := range a {
		out[strconv.Itoa(id)] = members
	}
	return json.NewEncoder(w).Encode(out)
}

// WriteTimegapsJSON writes every timegap keyed by "A,B".
func WriteTimegapsJSON(w io.Writer, t *model.TimegapTable) error {
	out := make(map[string]float64, t.Len())
	for _, p := range t.Pairs() {
		d, _ := t.Get(p.A, p.B)
		out[p.String()] = d
	}
	return json.NewEncoder(w).Encode(out)
}

// WriteArtifacts writes the clusters CSV and the timestamped JSON pair for
// snap under dir. The CSV is overwritten on every call.
func WriteArtifacts(dir string, snap *model.Snapshot) (*Artifacts, error) {
	stamp := snap.CreatedAt.Format(timestampLayout)
	if snap.CreatedAt.IsZero() {
		stamp = time.Now().Format(timestampLayout)
	}

	art := &Artifacts{
		ClustersCSV:  filepath.Join(dir, ClustersCSVDir, ClustersCSVName),
		ClustersJSON: filepath.Join(dir, DataFilesDir, JSONDir, "clusters_"+stamp+".json"),
		TimegapsJSON: filepath.Join(dir, DataFilesDir, JSONDir, "timegaps_"+stamp+".json"),
	}

	writers := []struct {
		write func(io.Writer) error
		path  string
	}{
		{func(w io.Writer) error { return WriteClustersCSV(w, snap.Assignment) }, art.ClustersCSV},
		{func(w io.Writer) error { return WriteClustersJSON(w, snap.Assignment) }, art.ClustersJSON},
		{func(w io.Writer) error { return WriteTimegapsJSON(w, snap.Timegaps) }, art.TimegapsJSON},
	}
	for _, wr := range writers {
		if err := writeFile(wr.path, wr.write); err != nil {
			return nil, err
		}
	}
	return art, nil
}

// CompiledPath returns where a compiled trip log for the given time goes.
func CompiledPath(dir string, at time.Time) string {
	return filepath.Join(dir, DataFilesDir, CompiledDir, "CompiledData_"+at.Format(timestampLayout)+".csv")
}

// WriteCompiledLog writes records to the compiled log for at and returns
// the file path.
func WriteCompiledLog(dir string, at time.Time, records []model.TripRecord) (string, error) {
	path := CompiledPath(dir, at)
	if err := writeFile(path, func(w io.Writer) error { return recordings.WriteCompiled(w, records) }); err != nil {
		return "", err
	}
	return path, nil
}

// CreateFile creates path and its parent directories.
func CreateFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path) //nolint:gosec // path is built from the configured data directory
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := CreateFile(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
