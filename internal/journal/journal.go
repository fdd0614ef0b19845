// Package journal persists a history of finished transfers in an
// embedded SQLite database so users can audit what moved, when, and
// whether it succeeded.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// Status values for journal entries.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Entry is one finished transfer.
type Entry struct {
	ID         string
	ResourceID string
	FileName   string
	Direction  string
	Bytes      int64
	Status     string
	Detail     string // failure detail, empty on success
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the SQLite-backed transfer journal. Use ":memory:" as the
// path for tests.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	record *sql.Stmt
	list   *sql.Stmt
}

// Open opens (creating if needed) the journal database at dbPath and
// applies pending schema migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("opening transfer journal", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: opening sqlite: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: setting WAL mode: %w", err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.prepareStatements(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	s.record, err = s.db.PrepareContext(ctx, `
		INSERT INTO transfers (id, resource_id, file_name, direction, bytes, status, detail, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: preparing insert: %w", err)
	}

	s.list, err = s.db.PrepareContext(ctx, `
		SELECT id, resource_id, file_name, direction, bytes, status, detail, started_at, finished_at
		FROM transfers ORDER BY finished_at DESC LIMIT ?`)
	if err != nil {
		return fmt.Errorf("journal: preparing list: %w", err)
	}

	return nil
}

// Record appends one entry. A zero ID is assigned a fresh UUID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.record.ExecContext(ctx,
		e.ID, e.ResourceID, e.FileName, e.Direction, e.Bytes, e.Status, e.Detail,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: recording transfer: %w", err)
	}

	s.logger.Debug("transfer recorded",
		slog.String("resource_id", e.ResourceID),
		slog.String("direction", e.Direction),
		slog.String("status", e.Status),
	)

	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.list.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: listing transfers: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var e Entry

		var startedAt, finishedAt string

		if err := rows.Scan(&e.ID, &e.ResourceID, &e.FileName, &e.Direction,
			&e.Bytes, &e.Status, &e.Detail, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("journal: scanning transfer row: %w", err)
		}

		e.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating transfer rows: %w", err)
	}

	return entries, nil
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	if s.record != nil {
		s.record.Close()
	}

	if s.list != nil {
		s.list.Close()
	}

	return s.db.Close()
}
