package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fileflow/fileflow-go/internal/journal"
)

const defaultDownloadParallelism = 3

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path>...",
		Short: "Upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPut,
	}

	cmd.Flags().StringSliceP("tag", "t", nil, "tag to attach (repeatable)")

	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <file-id>...",
		Short: "Download files by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGet,
	}

	cmd.Flags().StringP("output", "o", "", "output path (single file) or directory (multiple files)")
	cmd.Flags().Int("parallel", defaultDownloadParallelism, "concurrent downloads")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file-id>...",
		Short: "Delete files by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRm,
	}
}

// parseFileIDs converts CLI arguments to file IDs, rejecting anything
// non-numeric up front so no partial batch starts.
func parseFileIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))

	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid file ID %q", arg)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// openJournal opens the transfer journal. Journal failures are reported
// but never block a transfer: history is an audit convenience, not a
// correctness requirement.
func openJournal(c *clients) *journal.Store {
	j, err := journal.Open(resolvedCfg.JournalPath(), c.logger)
	if err != nil {
		c.logger.Warn("transfer journal unavailable", "error", err)
		return nil
	}

	return j
}

// recordTransfer appends one journal entry for a finished transfer.
func recordTransfer(ctx context.Context, j *journal.Store, resourceID, fileName, direction string, bytes int64, started time.Time, transferErr error) {
	if j == nil {
		return
	}

	e := journal.Entry{
		ResourceID: resourceID,
		FileName:   fileName,
		Direction:  direction,
		Bytes:      bytes,
		Status:     journal.StatusCompleted,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	if transferErr != nil {
		e.Status = journal.StatusFailed
		e.Detail = transferErr.Error()
	}

	if err := j.Record(ctx, e); err != nil {
		// Already logged with context inside the journal.
		_ = err
	}
}

type putResult struct {
	Path   string `json:"path"`
	FileID int64  `json:"file_id"`
}

func runPut(cmd *cobra.Command, args []string) error {
	tags, _ := cmd.Flags().GetStringSlice("tag")

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

	ctx := cmd.Context()
	results := make([]putResult, 0, len(args))

	for _, path := range args {
		id, err := uploadOne(ctx, c, j, path, tags)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}

		results = append(results, putResult{Path: path, FileID: id})
		statusf("Uploaded %s (ID %d)\n", filepath.Base(path), id)
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	return nil
}

// uploadOne streams a single local file to the backend and journals the
// outcome either way.
func uploadOne(ctx context.Context, c *clients, j *journal.Store, path string, tags []string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	sink := progressSink(name)
	started := time.Now()

	id, err := c.engine.Upload(ctx, name, f, info.Size(), tags, sink)
	finishProgress(sink)
	recordTransfer(ctx, j, name, name, "upload", info.Size(), started, err)

	return id, err
}

func runGet(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel < 1 {
		parallel = 1
	}

	ids, err := parseFileIDs(args)
	if err != nil {
		return err
	}

	if len(ids) > 1 && output != "" {
		if info, statErr := os.Stat(output); statErr != nil || !info.IsDir() {
			return fmt.Errorf("--output must be an existing directory when downloading multiple files")
		}
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

	ctx := cmd.Context()

	if len(ids) == 1 {
		return downloadOne(ctx, c, j, ids[0], downloadTarget(output, ids[0], false))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallel)

	for _, id := range ids {
		id := id
		group.Go(func() error {
			return downloadOne(groupCtx, c, j, id, downloadTarget(output, id, true))
		})
	}

	return group.Wait()
}

// downloadTarget picks the local path for a downloaded file. The backend
// streams raw bytes without a filename, so batch downloads are named by
// ID.
func downloadTarget(output string, id int64, batch bool) string {
	name := fmt.Sprintf("file-%d", id)

	if output == "" {
		return name
	}

	if batch {
		return filepath.Join(output, name)
	}

	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}

	return output
}

// downloadOne streams a single file from the backend to target,
// journaling the outcome. A failed download leaves no partial file.
func downloadOne(ctx context.Context, c *clients, j *journal.Store, id int64, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}

	resourceID := strconv.FormatInt(id, 10)
	sink := progressSink(filepath.Base(target))
	started := time.Now()

	written, err := c.engine.Download(ctx, id, f, sink)
	finishProgress(sink)

	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	recordTransfer(ctx, j, resourceID, filepath.Base(target), "download", written, started, err)

	if err != nil {
		os.Remove(target)
		return fmt.Errorf("downloading file %d: %w", id, err)
	}

	statusf("Downloaded file %d to %s (%s)\n", id, target, formatSize(written))

	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ids, err := parseFileIDs(args)
	if err != nil {
		return err
	}

	c, err := buildClients()
	if err != nil {
		return err
	}

	if err := requireSession(c.sessions); err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.engine.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting file %d: %w", id, err)
		}

		statusf("Deleted file %d\n", id)
	}

	return nil
}
