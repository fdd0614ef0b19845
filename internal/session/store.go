// Package session holds the current authentication session: the identity
// (username) and the bearer credential proving it. The pair is persisted
// to a single file so a restart can reconstruct the session, and is
// guarded by the invariant that both slots are present or both absent —
// never one without the other.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FilePerms restricts the session file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the session directory.
const DirPerms = 0o700

// Session is one identity/credential pair. The zero value means "not
// logged in".
type Session struct {
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
}

// Valid reports whether both slots are set.
func (s Session) Valid() bool {
	return s.Identity != "" && s.Credential != ""
}

// Store provides thread-safe access to the current session and persists
// it to disk. Many goroutines may be mid-transfer while login, logout, or
// the dispatcher's 401 interceptor mutates the pair, so every read-then-
// write of the two slots happens under one lock.
type Store struct {
	mu     sync.RWMutex
	cur    Session
	path   string // immutable after construction
	logger *slog.Logger
}

// NewStore creates a Store backed by the session file at path and
// rehydrates any previously persisted session. A missing or unreadable
// file yields an empty store, not an error: a corrupt session is
// indistinguishable from being logged out, and login repairs it.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{path: path, logger: logger}

	cur, err := load(path)
	if err != nil {
		logger.Warn("discarding unreadable session file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return s
	}

	if cur.Valid() {
		logger.Debug("session rehydrated",
			slog.String("identity", cur.Identity),
		)

		s.cur = cur
	}

	return s
}

// Get returns the current session. The returned pair is either fully set
// or fully empty.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cur
}

// Set persists both slots atomically. Rejects half-set pairs so no code
// path can violate the both-or-none invariant.
func (s *Store) Set(identity, credential string) error {
	if identity == "" || credential == "" {
		return fmt.Errorf("session: refusing to store partial session (identity=%q set=%t)",
			identity, credential != "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := Session{Identity: identity, Credential: credential}

	if err := save(s.path, next); err != nil {
		return err
	}

	s.cur = next

	s.logger.Debug("session stored", slog.String("identity", identity))

	return nil
}

// Clear removes both slots from memory and disk. Never fails: a missing
// session file already is the cleared state, and an undeletable file only
// matters at next startup where load failures are tolerated.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Session{}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to remove session file",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
	}
}

// load reads a persisted session. Returns the zero Session if the file
// does not exist.
func load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}

	if err != nil {
		return Session{}, fmt.Errorf("session: reading %s: %w", path, err)
	}

	var cur Session
	if err := json.Unmarshal(data, &cur); err != nil {
		return Session{}, fmt.Errorf("session: decoding %s: %w", path, err)
	}

	// A half-set file (partial write from an old version, manual edit)
	// must not become a half-set session.
	if !cur.Valid() && (cur.Identity != "" || cur.Credential != "") {
		return Session{}, fmt.Errorf("session: %s holds a partial session", path)
	}

	return cur, nil
}

// save writes the session file atomically (write-to-temp + rename) with
// 0600 permissions. Never logs the credential value.
func save(path string, cur Session) error {
	data, err := json.MarshalIndent(cur, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("session: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("session: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("session: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("session: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("session: renaming: %w", err)
	}

	success = true

	return nil
}
