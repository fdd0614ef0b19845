// Package watcher watches a directory and uploads files that appear in
// it. It is the engine behind the watch-and-upload command: new files
// are debounced until their size stops changing, then handed to a
// bounded pool of upload workers.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Settle parameters: a file is considered complete when its size is
// unchanged across one settle interval, giving slow writers time to
// finish before the upload starts.
const (
	settleInterval = 500 * time.Millisecond
	settleAttempts = 20
)

// Uploader transfers a local file to the backend. internal/transfer
// provides the real implementation through a thin adapter in the CLI.
type Uploader interface {
	UploadFile(ctx context.Context, path string, tags []string) (int64, error)
}

// Result reports one finished auto-upload.
type Result struct {
	Path   string
	FileID int64
	Err    error
}

// Watcher uploads files that appear in a watched directory.
type Watcher struct {
	uploader Uploader
	dir      string
	tags     []string
	parallel int
	logger   *slog.Logger

	// results receives one Result per attempted upload. Nil unless the
	// caller asked for notifications.
	results chan<- Result
}

// New creates a Watcher over dir. Every uploaded file carries tags;
// parallel bounds the number of concurrent uploads (values below one
// are treated as one).
func New(uploader Uploader, dir string, tags []string, parallel int, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	if parallel < 1 {
		parallel = 1
	}

	return &Watcher{
		uploader: uploader,
		dir:      dir,
		tags:     tags,
		parallel: parallel,
		logger:   logger,
	}
}

// Notify registers a channel that receives one Result per attempted
// upload. Must be called before Run.
func (w *Watcher) Notify(ch chan<- Result) {
	w.results = ch
}

// Run watches the directory until the context is canceled. Files
// already present when Run starts are uploaded first, then filesystem
// events drive the rest. Returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watcher: %s: %w", w.dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("watcher: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching directory",
		slog.String("dir", w.dir),
		slog.Int("parallel", w.parallel),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.parallel)

	w.uploadExisting(groupCtx, group)
	w.eventLoop(groupCtx, fsw, group)

	// Workers drain before Run returns so no upload is abandoned
	// mid-flight on shutdown.
	if err := group.Wait(); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	return nil
}

// uploadExisting enqueues files already present in the watched
// directory. Without this, files dropped in before Run started would
// never upload.
func (w *Watcher) uploadExisting(ctx context.Context, group *errgroup.Group) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial directory scan failed", slog.String("error", err.Error()))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || isExcluded(entry.Name()) {
			continue
		}

		w.enqueue(ctx, group, filepath.Join(w.dir, entry.Name()))
	}
}

// eventLoop consumes fsnotify events until the context is canceled.
func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher, group *errgroup.Group) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}

			w.handleEvent(ctx, ev, group)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}

			w.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent enqueues an upload for newly created files. Writes to a
// file already being settled are handled by the settle loop itself, so
// only Create events matter here.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event, group *errgroup.Group) {
	if !ev.Has(fsnotify.Create) {
		return
	}

	name := filepath.Base(ev.Name)
	if isExcluded(name) {
		w.logger.Debug("skipping excluded file", slog.String("name", name))
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// Gone already; nothing to upload.
		w.logger.Debug("stat failed for created path",
			slog.String("path", ev.Name), slog.String("error", err.Error()))

		return
	}

	// Subdirectories are not recursed into.
	if info.IsDir() {
		w.logger.Debug("skipping directory", slog.String("path", ev.Name))
		return
	}

	w.enqueue(ctx, group, ev.Name)
}

// enqueue hands one file to the worker pool. The pool limit makes this
// block when all workers are busy, which naturally throttles a burst of
// created files.
func (w *Watcher) enqueue(ctx context.Context, group *errgroup.Group, path string) {
	group.Go(func() error {
		id, err := w.uploadOne(ctx, path)
		w.report(ctx, Result{Path: path, FileID: id, Err: err})

		// Upload failures are reported, not fatal: one bad file must not
		// stop the watch.
		return nil
	})
}

// uploadOne waits for the file to settle, then uploads it.
func (w *Watcher) uploadOne(ctx context.Context, path string) (int64, error) {
	if err := waitSettled(ctx, path); err != nil {
		w.logger.Warn("file never settled",
			slog.String("path", path), slog.String("error", err.Error()))

		return 0, err
	}

	id, err := w.uploader.UploadFile(ctx, path, w.tags)
	if err != nil {
		w.logger.Warn("auto-upload failed",
			slog.String("path", path), slog.String("error", err.Error()))

		return 0, err
	}

	w.logger.Info("auto-upload complete",
		slog.String("path", path), slog.Int64("file_id", id))

	return id, nil
}

func (w *Watcher) report(ctx context.Context, r Result) {
	if w.results == nil {
		return
	}

	select {
	case w.results <- r:
	case <-ctx.Done():
	}
}

// waitSettled polls the file's size until it is unchanged across one
// interval, or fails after settleAttempts polls.
func waitSettled(ctx context.Context, path string) error {
	var lastSize int64 = -1

	for i := 0; i < settleAttempts; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("watcher: stat %s: %w", path, err)
		}

		if info.Size() == lastSize {
			return nil
		}

		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
	}

	return fmt.Errorf("watcher: %s still growing after %d polls", path, settleAttempts)
}

// isExcluded returns true for files that must never be auto-uploaded:
// hidden files, partial downloads, and editor temporaries.
func isExcluded(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}

	lower := strings.ToLower(name)
	for _, ext := range excludedSuffixes {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

var excludedSuffixes = []string{".partial", ".tmp", ".swp", ".crdownload"}
