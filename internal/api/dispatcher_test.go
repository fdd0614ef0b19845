package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflow/fileflow-go/internal/session"
)

// fakeSessions is an in-memory SessionStore for dispatcher tests.
type fakeSessions struct {
	cur     session.Session
	cleared int
}

func (f *fakeSessions) Get() session.Session {
	return f.cur
}

func (f *fakeSessions) Clear() {
	f.cur = session.Session{}
	f.cleared++
}

func loggedIn() *fakeSessions {
	return &fakeSessions{cur: session.Session{Identity: "alice", Credential: "tok-123"}}
}

func TestDo_InjectsBearerWhenLoggedIn(t *testing.T) {
	var gotAuth, gotAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), loggedIn(), nil)

	resp, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "fileflow-go/0.1", gotAgent)
}

func TestDo_NoBearerWhenLoggedOut(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

	resp, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestDo_SetsContentType(t *testing.T) {
	var gotCT string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

	resp, err := d.Do(context.Background(), http.MethodPost, srv.URL, nil,
		&Options{ContentType: "application/json"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", gotCT)
}

func TestDo_UnauthorizedMidSessionClearsAndSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sessions := loggedIn()
	d := NewDispatcher(srv.Client(), sessions, nil)

	var hookFired bool

	d.OnSessionExpired(func() { hookFired = true })

	_, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, sessions.cleared)
	assert.True(t, hookFired)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestDo_UnauthorizedOnLoginLeavesSessionAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sessions := loggedIn()
	d := NewDispatcher(srv.Client(), sessions, nil)

	var hookFired bool

	d.OnSessionExpired(func() { hookFired = true })

	_, err := d.Do(context.Background(), http.MethodPost, srv.URL, nil, &Options{LoginCall: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, sessions.cleared)
	assert.False(t, hookFired)
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"internal error", http.StatusInternalServerError, ErrServerError},
		{"bad gateway", http.StatusBadGateway, ErrServerError},
		{"service unavailable", http.StatusServiceUnavailable, ErrServiceUnavailable},
		{"teapot", http.StatusTeapot, ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

			_, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
		})
	}
}

func TestDo_ErrorBodyCaptured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "file not found", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

	_, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Contains(t, statusErr.Message, "file not found")
}

func TestDo_SuccessBodyOwnedByCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

	resp, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestDo_UnreachableServerIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // closed before use

	d := NewDispatcher(http.DefaultClient, &fakeSessions{}, nil)

	_, err := d.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestDo_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(srv.Client(), &fakeSessions{}, nil)

	_, err := d.Do(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusError_Unwrap(t *testing.T) {
	err := &StatusError{StatusCode: 404, Message: "gone", Err: ErrNotFound}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "404")
}
