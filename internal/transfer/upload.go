package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/fileflow/fileflow-go/internal/api"
)

// legacyFileIDPattern matches the plain-text upload response older file
// service builds return, e.g. "File uploaded successfully. FileID: 42".
var legacyFileIDPattern = regexp.MustCompile(`FileID:\s*(\d+)\s*$`)

// uploadResponse is the structured upload response shape.
type uploadResponse struct {
	ID *int64 `json:"id"`
}

// Upload streams a multipart body containing the file payload and zero or
// more tag strings to the file service, reporting progress through sink
// as payload bytes are consumed. On success it returns the
// server-assigned file identifier. Tag failures are fatal for the
// attempt; nothing is retried.
func (e *Engine) Upload(
	ctx context.Context, fileName string, r io.Reader, size int64, tags []string, sink ProgressFunc,
) (int64, error) {
	if err := e.checkLiveness(ctx); err != nil {
		return 0, err
	}

	// NFC-normalize the name so files created on macOS (NFD) match the
	// names other platforms will query for.
	name := norm.NFC.String(fileName)

	e.logger.Info("uploading file",
		slog.String("file_name", name),
		slog.Int64("size", size),
		slog.Int("tags", len(tags)),
	)

	e.tracker.Begin(name, DirectionUpload, size)

	body, contentType := e.multipartBody(name, r, size, tags, sink)

	resp, err := e.dispatcher.Do(ctx, http.MethodPost, e.baseURL+"/upload", body, &api.Options{
		ContentType: contentType,
	})
	if err != nil {
		e.tracker.Fail(name)
		return 0, fmt.Errorf("transfer: uploading %q: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		e.tracker.Fail(name)
		return 0, fmt.Errorf("transfer: reading upload response: %w", err)
	}

	fileID, err := decodeUploadID(respBody)
	if err != nil {
		e.tracker.Fail(name)
		e.logger.Error("upload response unparseable",
			slog.String("file_name", name),
			slog.String("body", string(respBody)),
		)

		return 0, err
	}

	e.tracker.Complete(name)

	e.logger.Debug("upload complete",
		slog.String("file_name", name),
		slog.Int64("file_id", fileID),
	)

	return fileID, nil
}

// multipartBody builds the streamed multipart request body: the file part
// first, then one tags[] field per tag. The writer side runs in its own
// goroutine; errors surface through the pipe to the HTTP client.
func (e *Engine) multipartBody(
	name string, r io.Reader, size int64, tags []string, sink ProgressFunc,
) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	counted := &progressReader{
		r:          r,
		engine:     e,
		resourceID: name,
		total:      size,
		sink:       sink,
	}

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("transfer: creating file part: %w", err))
			return
		}

		if _, err := io.Copy(part, counted); err != nil {
			pw.CloseWithError(fmt.Errorf("transfer: streaming file part: %w", err))
			return
		}

		for _, tag := range tags {
			if err := mw.WriteField("tags[]", tag); err != nil {
				pw.CloseWithError(fmt.Errorf("transfer: writing tag field: %w", err))
				return
			}
		}

		pw.CloseWithError(mw.Close())
	}()

	return pr, mw.FormDataContentType()
}

// progressReader counts payload bytes as the multipart writer consumes
// them, advancing the task and notifying the sink at each chunk boundary.
type progressReader struct {
	r          io.Reader
	engine     *Engine
	resourceID string
	total      int64
	sink       ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		task, advErr := p.engine.tracker.Advance(p.resourceID, int64(n))
		if advErr == nil && p.sink != nil {
			p.sink(task.TransferredBytes, p.total, task.Percent)
		}
	}

	return n, err
}

// decodeUploadID extracts the server-assigned file identifier from an
// upload response, accepting either the structured JSON shape or the
// legacy plain-text shape. Structured parse is tried first; failing both
// is a malformed response.
func decodeUploadID(body []byte) (int64, error) {
	var structured uploadResponse
	if err := json.Unmarshal(body, &structured); err == nil && structured.ID != nil {
		return *structured.ID, nil
	}

	if m := legacyFileIDPattern.FindSubmatch(body); m != nil {
		id, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err == nil {
			return id, nil
		}
	}

	return 0, fmt.Errorf("transfer: upload response carries no file ID: %w", api.ErrMalformedResponse)
}
