package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcomes recorded for a run. Finished runs take the value of
// services.Outcome for the run's error.
const (
	OutcomeRunning = "running"
)

// Entry is one session run.
type Entry struct {
	ID          int64
	RunID       string
	Session     string
	Directory   string
	Kind        string
	StateBefore string
	StateAfter  string
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     string
	Error       string
}

// Duration is the wall time of a finished run, or zero while it is running.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store persists run entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("run ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records the start of a session run and returns its row id.
func (s *Store) Begin(ctx context.Context, e Entry) (int64, error) {
	if e.RunID == "" || e.Session == "" {
		return 0, errors.New("run id and session are required")
	}
	started := e.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session, directory, kind, state_before, started_at, outcome)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID,
		e.Session,
		e.Directory,
		e.Kind,
		nullableString(e.StateBefore),
		started.UTC().Format(time.RFC3339Nano),
		OutcomeRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Finish closes the run with its outcome. runErr may be nil.
func (s *Store) Finish(ctx context.Context, id int64, stateAfter, outcome string, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state_after = ?, finished_at = ?, outcome = ?, error_message = ? WHERE id = ?`,
		nullableString(stateAfter),
		time.Now().UTC().Format(time.RFC3339Nano),
		outcome,
		nullableString(message),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: no run with id %d", id)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ForSession returns every entry for a session basename, newest first.
func (s *Store) ForSession(ctx context.Context, session string) ([]Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM runs WHERE session = ? ORDER BY id DESC`, session)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
