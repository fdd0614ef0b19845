package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fileflow/fileflow-go/internal/session"
)

const userAgent = "fileflow-go/0.1"

// SessionStore is the subset of the session store the dispatcher needs.
// Defined at the consumer per Go convention "accept interfaces, return
// structs"; internal/session provides the real implementation.
type SessionStore interface {
	Get() session.Session
	Clear()
}

// Options adjust a single dispatched request.
type Options struct {
	// ContentType, when non-empty, is set on the outgoing request.
	ContentType string

	// LoginCall marks the login request itself. A 401 on the login call
	// means the submitted credentials are wrong — there is no session to
	// invalidate — while a 401 anywhere else means the stored credential
	// has expired.
	LoginCall bool
}

// Dispatcher wraps the underlying HTTP client. It is the single point of
// truth for credentials: every outgoing request gets the bearer header
// when a session exists, and every unauthorized response invalidates the
// session (login excepted). No caller attaches credentials or handles
// expiry itself.
type Dispatcher struct {
	httpClient *http.Client
	sessions   SessionStore
	logger     *slog.Logger

	// onExpired is invoked after a mid-session 401 has cleared the
	// session, so the outer boundary can steer the user back to login.
	onExpired func()
}

// NewDispatcher creates a Dispatcher. A nil httpClient falls back to
// http.DefaultClient. Timeouts are the transport's own; the dispatcher
// imposes no deadline and performs no retries.
func NewDispatcher(httpClient *http.Client, sessions SessionStore, logger *slog.Logger) *Dispatcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		httpClient: httpClient,
		sessions:   sessions,
		logger:     logger,
	}
}

// OnSessionExpired registers the hook invoked when a mid-session 401
// clears the session. At most one hook; nil disables it.
func (d *Dispatcher) OnSessionExpired(fn func()) {
	d.onExpired = fn
}

// Do executes one HTTP request. On a non-2xx response the body has been
// read and closed and the returned error wraps the matching sentinel; on
// success the caller owns the response body.
func (d *Dispatcher) Do(ctx context.Context, method, url string, body io.Reader, opts *Options) (*http.Response, error) {
	if opts == nil {
		opts = &Options{}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("api: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	if cur := d.sessions.Get(); cur.Valid() {
		req.Header.Set("Authorization", "Bearer "+cur.Credential)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("api: request canceled: %w", ctx.Err())
		}

		d.logger.Warn("request failed",
			slog.String("method", method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("api: %s %s: %w: %v", method, url, ErrTransport, err)
	}

	// 2xx — success.
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		d.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	// Read and close body for error responses.
	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, d.handleUnauthorized(method, url, string(errBody), opts)
	}

	sentinel := classifyStatus(resp.StatusCode)

	d.logger.Debug("request failed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
	)

	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		Message:    string(errBody),
		Err:        sentinel,
	}
}

// handleUnauthorized applies the 401 policy: the login call surfaces
// invalid credentials and leaves any pre-existing session alone; every
// other call invalidates the session and signals the expiry hook.
func (d *Dispatcher) handleUnauthorized(method, url, body string, opts *Options) error {
	if opts.LoginCall {
		return &StatusError{
			StatusCode: http.StatusUnauthorized,
			Message:    body,
			Err:        ErrInvalidCredentials,
		}
	}

	d.logger.Info("unauthorized response, clearing session",
		slog.String("method", method),
		slog.String("url", url),
	)

	d.sessions.Clear()

	if d.onExpired != nil {
		d.onExpired()
	}

	return &StatusError{
		StatusCode: http.StatusUnauthorized,
		Message:    body,
		Err:        ErrSessionExpired,
	}
}
