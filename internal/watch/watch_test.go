package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	batches := make(chan []string, 4)

	w, err := New(dir, "*.csv", 100*time.Millisecond, func(_ context.Context, paths []string) error {
		batches <- paths
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("A,0,1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("B,0,1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case paths := <-batches:
		assert.Equal(t, []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(t.TempDir(), "[", time.Second, nil)
	assert.Error(t, err)
}
