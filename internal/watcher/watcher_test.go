package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUploader captures every upload it receives.
type recordingUploader struct {
	mu      sync.Mutex
	uploads []string
	tags    []string
	err     error
	nextID  int64
}

func (u *recordingUploader) UploadFile(_ context.Context, path string, tags []string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.err != nil {
		return 0, u.err
	}

	u.uploads = append(u.uploads, filepath.Base(path))
	u.tags = tags
	u.nextID++

	return u.nextID, nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([]string(nil), u.uploads...)
}

// collectResults drains the results channel until ctx ends.
func collectResults(ctx context.Context, ch <-chan Result, sink *[]Result, mu *sync.Mutex) {
	for {
		select {
		case r := <-ch:
			mu.Lock()
			*sink = append(*sink, r)
			mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// runWatcher runs w until either want results arrived or the deadline
// passed, then cancels and waits for Run to return.
func runWatcher(t *testing.T, w *Watcher, want int) []Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := make(chan Result)
	w.Notify(results)

	var (
		mu  sync.Mutex
		got []Result
	)

	go collectResults(ctx, results, &got, &mu)

	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	deadline := time.After(25 * time.Second)

	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()

		if n >= want {
			break
		}

		select {
		case <-deadline:
			t.Fatalf("watcher produced %d results, want %d", n, want)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()

	return got
}

func TestRun_UploadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "already.txt"), []byte("x"), 0o600))

	u := &recordingUploader{}
	w := New(u, dir, []string{"auto"}, 2, nil)

	results := runWatcher(t, w, 1)

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, []string{"already.txt"}, u.uploaded())
	assert.Equal(t, []string{"auto"}, u.tags)
}

func TestRun_UploadsCreatedFiles(t *testing.T) {
	dir := t.TempDir()

	u := &recordingUploader{}
	w := New(u, dir, nil, 1, nil)

	go func() {
		// Give the watch a moment to register before creating the file.
		time.Sleep(300 * time.Millisecond)

		_ = os.WriteFile(filepath.Join(dir, "fresh.bin"), []byte("payload"), 0o600)
	}()

	results := runWatcher(t, w, 1)

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int64(1), results[0].FileID)
	assert.Equal(t, []string{"fresh.bin"}, u.uploaded())
}

func TestRun_SkipsExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.tmp"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600))

	u := &recordingUploader{}
	w := New(u, dir, nil, 1, nil)

	results := runWatcher(t, w, 1)

	require.Len(t, results, 1)
	assert.Equal(t, []string{"keep.txt"}, u.uploaded())
}

func TestRun_ReportsUploadFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doomed.txt"), []byte("x"), 0o600))

	u := &recordingUploader{err: errors.New("service unavailable")}
	w := New(u, dir, nil, 1, nil)

	results := runWatcher(t, w, 1)

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Empty(t, u.uploaded())
}

func TestRun_MissingDirectory(t *testing.T) {
	u := &recordingUploader{}
	w := New(u, filepath.Join(t.TempDir(), "nope"), nil, 1, nil)

	err := w.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afile")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	w := New(&recordingUploader{}, path, nil, 1, nil)

	err := w.Run(context.Background())
	assert.Error(t, err)
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, isExcluded(".DS_Store"))
	assert.True(t, isExcluded("~backup"))
	assert.True(t, isExcluded("movie.partial"))
	assert.True(t, isExcluded("notes.swp"))
	assert.True(t, isExcluded("big.crdownload"))
	assert.True(t, isExcluded("x.TMP"))
	assert.False(t, isExcluded("report.pdf"))
	assert.False(t, isExcluded("tmp.report"))
}
