package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"webmpipe/internal/config"
	"webmpipe/internal/services"
)

// Status values stored for each run.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is one finished run.
type Entry struct {
	ID          string
	Source      string
	Output      string
	Status      string
	FailedKey   string
	Message     string
	Threads     int
	Audio       bool
	Options     string
	OutputBytes int64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Elapsed is the wall-clock duration of the run.
func (e Entry) Elapsed() time.Duration {
	if e.StartedAt.IsZero() || e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store manages the run journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the journal configured in cfg, creating it when missing.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Paths.HistoryPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "history path not configured", nil)
	}
	return OpenPath(cfg.Paths.HistoryPath)
}

// OpenPath connects to the journal at dbPath, creating it when missing.
func OpenPath(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
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

// Record inserts or replaces the entry with e.ID.
func (s *Store) Record(ctx context.Context, e Entry) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(e.ID) == "" {
		return services.Wrap(services.ErrValidation, "history", "record", "entry id required", nil)
	}
	switch e.Status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
	default:
		return services.Wrap(services.ErrValidation, "history", "record", fmt.Sprintf("unknown status %q", e.Status), nil)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
			(id, source, output, status, failed_key, message, threads, audio, options, output_bytes, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Source, e.Output, e.Status, e.FailedKey, e.Message, e.Threads, boolToInt(e.Audio),
			e.Options, e.OutputBytes, formatTime(e.StartedAt), formatTime(e.FinishedAt),
		)
		return err
	})
}

// List returns up to limit entries, most recently finished first. A limit of
// zero or less returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, source, output, status, failed_key, message, threads, audio, options, output_bytes, started_at, finished_at
		FROM runs ORDER BY finished_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return entries, nil
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT id, source, output, status, failed_key, message, threads, audio, options, output_bytes, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("run %s", id), nil)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get run: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                 Entry
		audio             int
		started, finished string
	)
	if err := row.Scan(&e.ID, &e.Source, &e.Output, &e.Status, &e.FailedKey, &e.Message,
		&e.Threads, &audio, &e.Options, &e.OutputBytes, &started, &finished); err != nil {
		return Entry{}, err
	}
	e.Audio = audio != 0
	e.StartedAt = parseTime(started)
	e.FinishedAt = parseTime(finished)
	return e, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
