// Package auth implements the login, register, and logout flows against
// the fileflow auth service. Login is the only operation that creates a
// session; logout and the dispatcher's unauthorized interceptor are the
// only operations that destroy one.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fileflow/fileflow-go/internal/api"
	"github.com/fileflow/fileflow-go/internal/health"
)

// Dispatcher executes HTTP requests with credential handling.
// internal/api provides the real implementation.
type Dispatcher interface {
	Do(ctx context.Context, method, url string, body io.Reader, opts *api.Options) (*http.Response, error)
}

// Prober reports backend liveness. internal/health provides the real
// implementation.
type Prober interface {
	Check(ctx context.Context, baseURL string) health.Status
}

// SessionStore is the subset of the session store the auth client needs.
type SessionStore interface {
	Set(identity, credential string) error
	Clear()
}

// Client is the auth service client.
type Client struct {
	dispatcher Dispatcher
	prober     Prober
	sessions   SessionStore
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an auth client for the auth service at baseURL.
func NewClient(dispatcher Dispatcher, prober Prober, sessions SessionStore, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		dispatcher: dispatcher,
		prober:     prober,
		sessions:   sessions,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// credentialsRequest is the login/register request body.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the successful login response body.
type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates with username/password. On success the session
// store holds the identity/credential pair and the credential is
// returned; on any failure no partial session is left behind. Failures
// classify by cause: wrong password is ErrInvalidCredentials, an unknown
// account is ErrUnknownUser, and an unreachable or mid-restart service is
// ErrServiceUnavailable.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if c.prober.Check(ctx, c.baseURL) == health.Down {
		return "", fmt.Errorf("auth: login: %w", api.ErrServiceUnavailable)
	}

	body, err := json.Marshal(credentialsRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("auth: encoding login request: %w", err)
	}

	resp, err := c.dispatcher.Do(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body), &api.Options{
		ContentType: "application/json",
		LoginCall:   true,
	})
	if err != nil {
		return "", classifyLoginFailure(err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lr); decErr != nil {
		return "", fmt.Errorf("auth: decoding login response: %w: %v", api.ErrMalformedResponse, decErr)
	}

	if lr.Token == "" {
		return "", fmt.Errorf("auth: login response carries no token: %w", api.ErrMalformedResponse)
	}

	if setErr := c.sessions.Set(username, lr.Token); setErr != nil {
		return "", fmt.Errorf("auth: persisting session: %w", setErr)
	}

	c.logger.Info("login successful", slog.String("identity", username))

	return lr.Token, nil
}

// classifyLoginFailure maps a dispatch failure onto the auth taxonomy.
// The dispatcher already surfaced 401 as ErrInvalidCredentials for the
// login call; here 404 becomes ErrUnknownUser and an unreachable service
// joins 503 under ErrServiceUnavailable.
func classifyLoginFailure(err error) error {
	switch {
	case errors.Is(err, api.ErrInvalidCredentials),
		errors.Is(err, api.ErrServiceUnavailable):
		return fmt.Errorf("auth: login: %w", err)
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("auth: login: %w", api.ErrUnknownUser)
	case errors.Is(err, api.ErrTransport):
		return fmt.Errorf("auth: login: %w: %v", api.ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("auth: login failed: %w", err)
	}
}

// Register creates a new account and returns the server's confirmation
// message. Registration never establishes a session; the caller logs in
// afterward.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	if c.prober.Check(ctx, c.baseURL) == health.Down {
		return "", fmt.Errorf("auth: register: %w", api.ErrServiceUnavailable)
	}

	body, err := json.Marshal(credentialsRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("auth: encoding register request: %w", err)
	}

	resp, err := c.dispatcher.Do(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body), &api.Options{
		ContentType: "application/json",
	})
	if err != nil {
		if errors.Is(err, api.ErrTransport) {
			return "", fmt.Errorf("auth: register: %w: %v", api.ErrServiceUnavailable, err)
		}

		return "", fmt.Errorf("auth: register: %w", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("auth: reading register response: %w", readErr)
	}

	c.logger.Info("registration successful", slog.String("identity", username))

	return confirmationMessage(raw), nil
}

// confirmationMessage extracts the register confirmation, accepting both
// the structured {"message": ...} shape and the legacy plain-text body.
func confirmationMessage(raw []byte) string {
	var structured struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(raw, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}

	return strings.TrimSpace(string(raw))
}

// Logout clears the session store unconditionally. It never fails: the
// backend holds no session state to revoke, so discarding the credential
// is the whole operation.
func (c *Client) Logout() {
	c.sessions.Clear()
	c.logger.Info("logged out")
}
