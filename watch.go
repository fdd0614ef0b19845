package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fileflow/fileflow-go/internal/journal"
	"github.com/fileflow/fileflow-go/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and upload new files",
		Long: `Watch a directory and automatically upload files that appear in it.
The directory, tags, and upload parallelism default to the [watch]
section of the config file; flags override it. Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringSliceP("tag", "t", nil, "tag to attach to every upload (repeatable)")
	cmd.Flags().Int("parallel", 0, "concurrent uploads (defaults to watch.parallel_uploads)")

	return cmd
}

// engineUploader adapts the transfer engine (and journal) to the
// watcher's Uploader interface.
type engineUploader struct {
	clients *clients
	journal *journal.Store
}

func (u *engineUploader) UploadFile(ctx context.Context, path string, tags []string) (int64, error) {
	return uploadOne(ctx, u.clients, u.journal, path, tags)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := resolvedCfg.Watch.Dir
	if len(args) > 0 {
		dir = args[0]
	}

	if dir == "" {
		return fmt.Errorf("no directory given and watch.dir is not configured")
	}

	tags, _ := cmd.Flags().GetStringSlice("tag")
	if len(tags) == 0 {
		tags = resolvedCfg.Watch.Tags
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel == 0 {
		parallel = resolvedCfg.Watch.ParallelUploads
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	j := openJournal(c)
	if j != nil {
		defer j.Close()
	}

	// SIGINT/SIGTERM cancel the watch; in-flight uploads drain before
	// Run returns.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watcher.New(&engineUploader{clients: c, journal: j}, dir, tags, parallel, c.logger)

	results := make(chan watcher.Result)
	w.Notify(results)

	go reportResults(results)

	statusf("Watching %s (Ctrl-C to stop)\n", dir)

	return w.Run(ctx)
}

// reportResults prints one line per attempted auto-upload.
func reportResults(results <-chan watcher.Result) {
	for r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %s: %v\n", filepath.Base(r.Path), r.Err)
			continue
		}

		statusf("Uploaded %s (ID %d)\n", filepath.Base(r.Path), r.FileID)
	}
}
