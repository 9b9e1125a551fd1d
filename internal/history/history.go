// Package history persists terminal transfer outcomes to a local SQLite
// database so the CLI can show what was uploaded and downloaded, when, and
// how it ended. Only terminal states are recorded — the ledger is an
// audit trail, not live transfer state.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/filedrop/filedrop-go/internal/transfer"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one recorded transfer outcome.
type Entry struct {
	ID         string
	Kind       transfer.Kind
	Name       string
	SizeBytes  int64
	Status     transfer.Status
	ErrorKind  string
	ErrorText  string
	FinishedAt time.Time
}

// Ledger is a SQLite-backed transfer history.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at dbPath and
// applies pending schema migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", dbPath, err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("history: closing database: %w", err)
	}

	return nil
}

// Record stores a terminal task snapshot. Non-terminal snapshots are
// ignored so callers can feed the ledger directly as a task observer.
func (l *Ledger) Record(ctx context.Context, snap transfer.Snapshot) error {
	switch snap.Status {
	case transfer.StatusSucceeded, transfer.StatusFailed, transfer.StatusCancelled:
	default:
		return nil
	}

	errText := ""
	if snap.Err != nil {
		errText = snap.Err.Error()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transfers
		   (id, kind, name, size_bytes, status, error_kind, error_text, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, string(snap.Kind), snap.Name, snap.SentBytes,
		string(snap.Status), string(snap.ErrKind), errText, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("history: recording transfer %s: %w", snap.ID, err)
	}

	l.logger.Debug("transfer recorded",
		slog.String("task_id", snap.ID),
		slog.String("status", string(snap.Status)),
	)

	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, name, size_bytes, status, error_kind, error_text, finished_at
		   FROM transfers ORDER BY finished_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: querying transfers: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e        Entry
			kind     string
			status   string
			finished int64
		)

		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.SizeBytes, &status, &e.ErrorKind, &e.ErrorText, &finished); err != nil {
			return nil, fmt.Errorf("history: scanning transfer row: %w", err)
		}

		e.Kind = transfer.Kind(kind)
		e.Status = transfer.Status(status)
		e.FinishedAt = time.Unix(finished, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating transfer rows: %w", err)
	}

	return entries, nil
}

// runMigrations applies all pending schema migrations to the database.
// Uses the goose v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	// Strip the "migrations/" prefix so goose sees files at the root of the FS.
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}
