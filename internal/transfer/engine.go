// Package transfer performs chunked, progress-observed file transfer
// against the fileflow file service: multipart upload, streamed download
// reassembly, and deletion. Progress is tracked per resource identifier
// so concurrent transfers do not interfere.
package transfer

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/fileflow/fileflow-go/internal/api"
	"github.com/fileflow/fileflow-go/internal/health"
)

// ProgressFunc receives transfer progress at each chunk boundary. It is
// invoked synchronously from the transfer loop, possibly many times per
// second — implementations must be cheap and non-blocking. total and
// percent are -1 when the backend does not declare a size.
type ProgressFunc func(transferred, total int64, percent int)

// Prober reports backend liveness before a transfer is attempted.
// internal/health provides the real implementation.
type Prober interface {
	Check(ctx context.Context, baseURL string) health.Status
}

// Dispatcher executes authenticated HTTP requests.
// internal/api provides the real implementation.
type Dispatcher interface {
	Do(ctx context.Context, method, url string, body io.Reader, opts *api.Options) (*http.Response, error)
}

// Engine is the transfer engine for one file service.
type Engine struct {
	dispatcher Dispatcher
	prober     Prober
	baseURL    string
	tracker    *Tracker
	logger     *slog.Logger
}

// NewEngine creates a transfer engine for the file service at baseURL.
func NewEngine(dispatcher Dispatcher, prober Prober, baseURL string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		dispatcher: dispatcher,
		prober:     prober,
		baseURL:    baseURL,
		tracker:    NewTracker(),
		logger:     logger,
	}
}

// Tracker exposes the engine's task tracker for progress inspection.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// checkLiveness short-circuits with ErrServiceUnavailable when the file
// service probe reports down, without attempting the substantive call.
func (e *Engine) checkLiveness(ctx context.Context) error {
	if e.prober.Check(ctx, e.baseURL) == health.Down {
		e.logger.Warn("file service liveness probe failed",
			slog.String("base_url", e.baseURL),
		)

		return api.ErrServiceUnavailable
	}

	return nil
}
