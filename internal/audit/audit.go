// Package audit persists one record per tool invocation to a local SQLite
// database: what was called, with which date, how it ended and how long it
// took. The gateway reads it back for operators; a cron job prunes old rows.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/SolanceLab/garmin-mcp/internal/tools"
)

// timeLayout is fixed-width (UTC, millisecond precision) so lexicographic
// order on the column matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

const defaultBusyTimeout = 5000 // milliseconds

// Entry is one recorded invocation, as read back from the store.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Tool       string    `json:"tool"`
	Date       string    `json:"date,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationUS int64     `json:"duration_us"`
}

// Store is a SQLite-backed invocation log. Safe for concurrent use; SQLite
// serializes writes over the single connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ tools.Observer = (*Store)(nil)

// Open opens (creating if needed) the audit database at path. WAL mode,
// a 5 s busy timeout and a single connection; the schema is migrated
// automatically.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ObserveInvocation records a completed invocation. It runs on the request
// path, so failures are logged and swallowed rather than surfacing to the
// tool caller.
func (s *Store) ObserveInvocation(inv tools.Invocation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.record(ctx, inv); err != nil {
		s.logger.Error("audit: record invocation failed", "tool", inv.Tool, "error", err)
	}
}

func (s *Store) record(ctx context.Context, inv tools.Invocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, invoked_at, tool, date_param, outcome, error, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Time.UTC().Format(timeLayout), inv.Tool, inv.Date,
		inv.Outcome, inv.Error, inv.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert invocation: %w", err)
	}
	return nil
}

// Recent returns the latest n invocations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoked_at, tool, date_param, outcome, error, duration_us
		FROM invocations
		ORDER BY invoked_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			invokedAt string
		)
		if err := rows.Scan(&e.ID, &invokedAt, &e.Tool, &e.Date, &e.Outcome, &e.Error, &e.DurationUS); err != nil {
			return nil, fmt.Errorf("audit: scan invocation: %w", err)
		}
		t, err := time.Parse(timeLayout, invokedAt)
		if err != nil {
			return nil, fmt.Errorf("audit: parse invoked_at %q: %w", invokedAt, err)
		}
		e.Time = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan invocation rows: %w", err)
	}
	return entries, nil
}

// Counts returns invocation totals grouped by outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM invocations GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit: query counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("audit: scan count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan count rows: %w", err)
	}
	return counts, nil
}

// Prune deletes records invoked before the cutoff. Returns the number of
// rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE invoked_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: rows affected: %w", err)
	}
	return n, nil
}
