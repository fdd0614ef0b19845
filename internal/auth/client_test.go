package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflow/fileflow-go/internal/api"
	"github.com/fileflow/fileflow-go/internal/health"
	"github.com/fileflow/fileflow-go/internal/session"
)

// fakeSessions records Set/Clear calls and backs the real dispatcher.
type fakeSessions struct {
	cur     session.Session
	sets    int
	cleared int
}

func (f *fakeSessions) Get() session.Session {
	return f.cur
}

func (f *fakeSessions) Set(identity, credential string) error {
	f.cur = session.Session{Identity: identity, Credential: credential}
	f.sets++

	return nil
}

func (f *fakeSessions) Clear() {
	f.cur = session.Session{}
	f.cleared++
}

// staticProber reports a fixed liveness status.
type staticProber health.Status

func (p staticProber) Check(_ context.Context, _ string) health.Status {
	return health.Status(p)
}

func newTestAuth(t *testing.T, handler http.Handler, up bool) (*Client, *fakeSessions, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := &fakeSessions{}
	dispatcher := api.NewDispatcher(srv.Client(), sessions, nil)

	status := health.Up
	if !up {
		status = health.Down
	}

	return NewClient(dispatcher, staticProber(status), sessions, srv.URL, nil), sessions, srv
}

func TestLogin_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "alice", creds.Username)
		assert.Equal(t, "hunter2", creds.Password)

		_, _ = w.Write([]byte(`{"token":"tok-abc"}`))
	})

	c, sessions, _ := newTestAuth(t, handler, true)

	token, err := c.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, 1, sessions.sets)
	assert.Equal(t, session.Session{Identity: "alice", Credential: "tok-abc"}, sessions.Get())
}

func TestLogin_WrongPassword(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	})

	c, sessions, _ := newTestAuth(t, handler, true)

	_, err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	// A failed login must not create or destroy a session.
	assert.Equal(t, 0, sessions.sets)
	assert.Equal(t, 0, sessions.cleared)
}

func TestLogin_UnknownUser(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such user", http.StatusNotFound)
	})

	c, sessions, _ := newTestAuth(t, handler, true)

	_, err := c.Login(context.Background(), "ghost", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnknownUser)
	assert.Equal(t, 0, sessions.sets)
}

func TestLogin_ProberDown(t *testing.T) {
	var requests int

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	})

	c, _, _ := newTestAuth(t, handler, false)

	_, err := c.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServiceUnavailable)
	assert.Zero(t, requests)
}

func TestLogin_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close()

	sessions := &fakeSessions{}
	dispatcher := api.NewDispatcher(http.DefaultClient, sessions, nil)
	c := NewClient(dispatcher, staticProber(health.Up), sessions, srv.URL, nil)

	_, err := c.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServiceUnavailable)
}

func TestLogin_MissingToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	})

	c, sessions, _ := newTestAuth(t, handler, true)

	_, err := c.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
	assert.Equal(t, 0, sessions.sets)
}

func TestRegister_PlainTextConfirmation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/register", r.URL.Path)
		_, _ = w.Write([]byte("Registration successful!\n"))
	})

	c, sessions, _ := newTestAuth(t, handler, true)

	msg, err := c.Register(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Registration successful!", msg)

	// Registration never establishes a session.
	assert.Equal(t, 0, sessions.sets)
}

func TestRegister_StructuredConfirmation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Registration successful!"}`))
	})

	c, _, _ := newTestAuth(t, handler, true)

	msg, err := c.Register(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Registration successful!", msg)
}

func TestRegister_ProberDown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c, _, _ := newTestAuth(t, handler, false)

	_, err := c.Register(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrServiceUnavailable)
}

func TestLogout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c, sessions, _ := newTestAuth(t, handler, true)
	require.NoError(t, sessions.Set("alice", "tok"))

	c.Logout()
	assert.Equal(t, 1, sessions.cleared)
	assert.False(t, sessions.Get().Valid())
}
