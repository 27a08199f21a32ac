// Package ledger persists per-route, per-camera transfer progress. It is
// the single source of truth for resumption across restarts.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/duongdev/comma-sync/routes"
)

// Entry is the durable progress record for one route camera stream.
type Entry struct {
	Key routes.RouteKey
	// UploadedUntil is the confirmed-transmitted offset in seconds. It
	// never decreases.
	UploadedUntil float64
	// Processed marks that housekeeping for the source file is done. A
	// stream can be fully uploaded without being processed yet.
	Processed bool
	UpdatedAt time.Time
}

// ProgressLedger defines the operations the pipeline needs from the
// progress store.
type ProgressLedger interface {
	// Get returns the confirmed progress for the key, or 0 if absent.
	Get(ctx context.Context, key routes.RouteKey) (float64, error)

	// Advance merges candidate into the stored progress, keeping the
	// maximum. Safe under out-of-order confirmations: the merge is
	// commutative and idempotent.
	Advance(ctx context.Context, key routes.RouteKey, candidateSeconds float64) error

	// MarkProcessed records that housekeeping for the stream is done.
	MarkProcessed(ctx context.Context, key routes.RouteKey) error

	// IsProcessed reports whether housekeeping for the stream is done.
	IsProcessed(ctx context.Context, key routes.RouteKey) (bool, error)

	// Reset clears progress for the key so the stream is re-transferred.
	Reset(ctx context.Context, key routes.RouteKey) error

	// Entries lists every record, newest first.
	Entries(ctx context.Context) ([]*Entry, error)
}

// SQLiteProgressLedger implements ProgressLedger using SQLite
type SQLiteProgressLedger struct {
	db *sql.DB
}

// NewSQLiteProgressLedger creates a new SQLite-based ProgressLedger
func NewSQLiteProgressLedger(db *sql.DB) (*SQLiteProgressLedger, error) {
	l := &SQLiteProgressLedger{db: db}
	if err := l.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// createTables ensures that the required tables exist
func (l *SQLiteProgressLedger) createTables() error {
	createProgressTable := `
	CREATE TABLE IF NOT EXISTS route_progress (
		route_id TEXT NOT NULL,
		camera TEXT NOT NULL,
		uploaded_until REAL NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (route_id, camera)
	);`

	_, err := l.db.Exec(createProgressTable)
	return err
}

// Get returns the confirmed progress for the key, or 0 if absent.
func (l *SQLiteProgressLedger) Get(ctx context.Context, key routes.RouteKey) (float64, error) {
	query := `SELECT uploaded_until FROM route_progress WHERE route_id = ? AND camera = ?`

	var uploadedUntil float64
	err := l.db.QueryRowContext(ctx, query, key.RouteID, string(key.Camera)).Scan(&uploadedUntil)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read progress for %s: %w", key, err)
	}
	return uploadedUntil, nil
}

// Advance merges candidate into the stored progress, keeping the maximum.
// The load-merge-store happens inside a single statement, so concurrent
// confirmations arriving out of order cannot move the value backwards.
func (l *SQLiteProgressLedger) Advance(ctx context.Context, key routes.RouteKey, candidateSeconds float64) error {
	query := `
	INSERT INTO route_progress (route_id, camera, uploaded_until, processed, updated_at)
	VALUES (?, ?, ?, 0, ?)
	ON CONFLICT (route_id, camera) DO UPDATE SET
		uploaded_until = MAX(route_progress.uploaded_until, excluded.uploaded_until),
		updated_at = excluded.updated_at`

	_, err := l.db.ExecContext(ctx, query, key.RouteID, string(key.Camera), candidateSeconds, TimeToString(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to advance progress for %s: %w", key, err)
	}
	return nil
}

// MarkProcessed records that housekeeping for the stream is done.
func (l *SQLiteProgressLedger) MarkProcessed(ctx context.Context, key routes.RouteKey) error {
	query := `
	INSERT INTO route_progress (route_id, camera, uploaded_until, processed, updated_at)
	VALUES (?, ?, 0, 1, ?)
	ON CONFLICT (route_id, camera) DO UPDATE SET
		processed = 1,
		updated_at = excluded.updated_at`

	_, err := l.db.ExecContext(ctx, query, key.RouteID, string(key.Camera), TimeToString(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", key, err)
	}
	return nil
}

// IsProcessed reports whether housekeeping for the stream is done.
func (l *SQLiteProgressLedger) IsProcessed(ctx context.Context, key routes.RouteKey) (bool, error) {
	query := `SELECT processed FROM route_progress WHERE route_id = ? AND camera = ?`

	var processed int
	err := l.db.QueryRowContext(ctx, query, key.RouteID, string(key.Camera)).Scan(&processed)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to read processed flag for %s: %w", key, err)
	}
	return processed == 1, nil
}

// Reset clears progress for the key so the stream is re-transferred.
func (l *SQLiteProgressLedger) Reset(ctx context.Context, key routes.RouteKey) error {
	query := `
	UPDATE route_progress SET uploaded_until = 0, processed = 0, updated_at = ?
	WHERE route_id = ? AND camera = ?`

	_, err := l.db.ExecContext(ctx, query, TimeToString(time.Now().UTC()), key.RouteID, string(key.Camera))
	if err != nil {
		return fmt.Errorf("failed to reset progress for %s: %w", key, err)
	}
	return nil
}

// Entries lists every record, newest first.
func (l *SQLiteProgressLedger) Entries(ctx context.Context) ([]*Entry, error) {
	query := `
	SELECT route_id, camera, uploaded_until, processed, updated_at
	FROM route_progress ORDER BY updated_at DESC`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var camera string
		var processed int
		var updatedAtStr string
		if err := rows.Scan(&entry.Key.RouteID, &camera, &entry.UploadedUntil, &processed, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan progress entry: %w", err)
		}

		entry.Key.Camera = routes.Camera(camera)
		entry.Processed = processed == 1
		entry.UpdatedAt, err = StringToTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
