// Package recordings discovers, parses and concatenates the per-session scan
// logs that feed a compile.
package recordings

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/pickpath/internal/model"
	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Directory layout shared with the scanner clients.
const (
	// RecordingsDir holds one CSV per recorded session.
	RecordingsDir = "CSVRecordings"
	// DefaultPattern matches the session files inside RecordingsDir.
	DefaultPattern = "*.csv"
	// defaultConcurrency bounds the number of files parsed at once.
	defaultConcurrency = 4
)

// ErrNoRecordings indicates the recordings directory holds no matching files.
var ErrNoRecordings = errors.New("no recordings found")

// Discover lists files under dir that match pattern, sorted by path.
// The pattern may use ** to descend into subdirectories.
func Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid recording pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s: %w", dir, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	sort.Strings(paths)
	return paths, nil
}

// ParseReader reads item,offset,status rows. NUL bytes are removed first.
// Rows with fewer than three fields, an empty item or a non-numeric offset
// are skipped.
func ParseReader(r io.Reader) ([]model.TripRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	raw = bytes.ReplaceAll(raw, []byte{0}, nil)
	raw = bytes.ToValidUTF8(raw, []byte("\uFFFD"))

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records []model.TripRecord
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse recording: %w", err)
		}

		record, ok := parseRow(row)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}

	if skipped > 0 {
		slog.Debug("Skipped malformed recording rows", "count", skipped)
	}
	return records, nil
}

func parseRow(row []string) (model.TripRecord, bool) {
	if len(row) < 3 {
		return model.TripRecord{}, false
	}
	item := strings.TrimSpace(row[0])
	if item == "" {
		return model.TripRecord{}, false
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return model.TripRecord{}, false
	}
	return model.TripRecord{
		Item:   item,
		Offset: offset,
		Status: strings.TrimSpace(row[2]),
	}, true
}

// ParseFile parses a single recording file.
func ParseFile(path string) ([]model.TripRecord, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from Discover
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Options tunes Compile.
type Options struct {
	// Progress, if set, is called once per parsed file. Calls are serialized.
	Progress    func(path string, records int)
	Pattern     string
	Concurrency int
}

// Compile parses every recording in dir concurrently and concatenates the
// rows in file order.
func Compile(ctx context.Context, dir string, opts Options) ([]model.TripRecord, error) {
	paths, err := Discover(dir, opts.Pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRecordings, dir)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	parsed := make([][]model.TripRecord, len(paths))
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := ParseFile(path)
			if err != nil {
				return err
			}
			parsed[i] = records
			if opts.Progress != nil {
				progressMu.Lock()
				opts.Progress(path, len(records))
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parsed {
		total += len(p)
	}
	out := make([]model.TripRecord, 0, total)
	for _, p := range parsed {
		out = append(out, p...)
	}

	slog.Info("Compiled recordings", "dir", dir, "files", len(paths), "rows", total)
	return out, nil
}

// WriteCompiled writes records back out as headerless CSV.
func WriteCompiled(w io.Writer, records []model.TripRecord) error {
	cw := csv.NewWriter(w)
	for _, r := range records {
		row := []string{r.Item, strconv.FormatFloat(r.Offset, 'f', -1, 64), r.Status}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write compiled row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush compiled log: %w", err)
	}
	return nil
}
