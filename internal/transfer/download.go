package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fileflow/fileflow-go/internal/api"
)

// downloadChunkSize is the read granularity for streamed downloads.
// Progress is recomputed once per chunk.
const downloadChunkSize = 32 * 1024

// Download streams the file with the given identifier into w, reporting
// progress through sink after each chunk. The declared total comes from
// the Content-Length header; when absent, progress carries the running
// byte count with total and percent of -1. Returns the number of bytes
// written, which on success equals the declared total exactly.
func (e *Engine) Download(ctx context.Context, fileID int64, w io.Writer, sink ProgressFunc) (int64, error) {
	if err := e.checkLiveness(ctx); err != nil {
		return 0, err
	}

	resourceID := strconv.FormatInt(fileID, 10)

	e.logger.Info("downloading file", slog.String("file_id", resourceID))

	url := fmt.Sprintf("%s/download/%d", e.baseURL, fileID)

	resp, err := e.dispatcher.Do(ctx, http.MethodGet, url, http.NoBody, nil)
	if err != nil {
		return 0, fmt.Errorf("transfer: downloading file %d: %w", fileID, err)
	}
	defer resp.Body.Close()

	// A response without a stream cannot be a completed download; treat
	// it like the service being mid-(re)start.
	if resp.Body == http.NoBody {
		return 0, fmt.Errorf("transfer: download of file %d returned no stream: %w",
			fileID, api.ErrServiceUnavailable)
	}

	total := resp.ContentLength
	if total < 0 {
		total = UnknownTotal
	}

	e.tracker.Begin(resourceID, DirectionDownload, total)

	written, err := e.readChunks(resp.Body, w, resourceID, total, sink)
	if err != nil {
		e.tracker.Fail(resourceID)
		return written, fmt.Errorf("transfer: streaming file %d: %w", fileID, err)
	}

	if total != UnknownTotal && written != total {
		e.tracker.Fail(resourceID)
		return written, fmt.Errorf("transfer: file %d truncated (%d of %d bytes): %w",
			fileID, written, total, api.ErrTransport)
	}

	e.tracker.Complete(resourceID)

	e.logger.Debug("download complete",
		slog.String("file_id", resourceID),
		slog.Int64("bytes_written", written),
	)

	return written, nil
}

// readChunks copies the response stream to w one chunk at a time,
// appending in arrival order so the reassembled payload is byte-for-byte
// the source payload. The running total drives progress exactly as in
// upload.
func (e *Engine) readChunks(
	r io.Reader, w io.Writer, resourceID string, total int64, sink ProgressFunc,
) (int64, error) {
	buf := make([]byte, downloadChunkSize)

	var written int64

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("writing chunk: %w", writeErr)
			}

			written += int64(n)

			task, advErr := e.tracker.Advance(resourceID, int64(n))
			if advErr == nil && sink != nil {
				sink(task.TransferredBytes, total, task.Percent)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, fmt.Errorf("reading chunk: %w", readErr)
		}
	}
}

// Delete removes the file with the given identifier from the file service.
func (e *Engine) Delete(ctx context.Context, fileID int64) error {
	e.logger.Info("deleting file", slog.Int64("file_id", fileID))

	url := fmt.Sprintf("%s/delete/%d", e.baseURL, fileID)

	resp, err := e.dispatcher.Do(ctx, http.MethodDelete, url, http.NoBody, nil)
	if err != nil {
		return fmt.Errorf("transfer: deleting file %d: %w", fileID, err)
	}
	defer resp.Body.Close()

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return fmt.Errorf("transfer: draining delete response: %w", drainErr)
	}

	return nil
}
