// Package queue keeps pending reminders in a local SQLite file and enforces
// the ceiling on how many may be pending at once.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lowkey_bot/internal/domain/notification"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS reservations (
    identifier   TEXT    PRIMARY KEY,
    contact_id   TEXT    NOT NULL,
    display_text TEXT    NOT NULL,
    fire_at      INTEGER NOT NULL,
    created_at   INTEGER NOT NULL,
    planned      INTEGER NOT NULL DEFAULT 0,
    planned_from INTEGER
);

CREATE INDEX IF NOT EXISTS idx_reservations_fire_at ON reservations(fire_at);
CREATE INDEX IF NOT EXISTS idx_reservations_contact ON reservations(contact_id);
`

// planColumns were added after the first release; older queue files get them on open.
var planColumns = []struct{ name, ddl string }{
	{"planned", "ALTER TABLE reservations ADD COLUMN planned INTEGER NOT NULL DEFAULT 0"},
	{"planned_from", "ALTER TABLE reservations ADD COLUMN planned_from INTEGER"},
}

const selectColumns = `identifier, contact_id, display_text, fire_at, created_at, planned, planned_from`

// SQLiteQueue implements notification.Queue.
type SQLiteQueue struct {
	db       *sql.DB
	capacity int
	now      func() time.Time
}

// Open opens (or creates) the queue file at path.
func Open(path string, capacity int) (*SQLiteQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return open(path, capacity)
}

// OpenMemory opens an in-memory queue for testing.
func OpenMemory(capacity int) (*SQLiteQueue, error) {
	return open(":memory:", capacity)
}

func open(dsn string, capacity int) (*SQLiteQueue, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite queue: %w", err)
	}
	// One connection serialises writers, which makes the capacity check atomic
	// and keeps a :memory: database shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	if err := addMissingColumns(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteQueue{db: db, capacity: capacity, now: time.Now}, nil
}

func (q *SQLiteQueue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

// Capacity is the pending ceiling the queue enforces.
func (q *SQLiteQueue) Capacity() int { return q.capacity }

// Reserve adds r unless the queue is full or r.Identifier is already pending.
func (q *SQLiteQueue) Reserve(ctx context.Context, r notification.Reservation) error {
	if r.Identifier == "" || r.ContactID == "" {
		return fmt.Errorf("reservation needs an identifier and a contact ID")
	}
	var planned int
	var plannedFrom sql.NullInt64
	if r.Plan != nil {
		planned = 1
		if r.Plan.LastReminded.Valid {
			plannedFrom = sql.NullInt64{Int64: r.Plan.LastReminded.Time.UnixMilli(), Valid: true}
		}
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO reservations (identifier, contact_id, display_text, fire_at, created_at, planned, planned_from)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE (SELECT COUNT(*) FROM reservations) < ?`,
		r.Identifier, r.ContactID, r.DisplayText, r.FireAt.UnixMilli(), q.now().UnixMilli(), planned, plannedFrom, q.capacity,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s", notification.ErrDuplicateReservation, r.Identifier)
		}
		return fmt.Errorf("insert reservation %s: %w", r.Identifier, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reservation %s: %w", r.Identifier, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d pending", notification.ErrCapacityReached, q.capacity)
	}
	return nil
}

func (q *SQLiteQueue) CancelAll(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM reservations`); err != nil {
		return fmt.Errorf("cancel all reservations: %w", err)
	}
	return nil
}

func (q *SQLiteQueue) CancelForContact(ctx context.Context, contactID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM reservations WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("cancel reservations for %s: %w", contactID, err)
	}
	return nil
}

// ListPending returns every pending reservation, soonest first.
func (q *SQLiteQueue) ListPending(ctx context.Context) ([]notification.Reservation, error) {
	return q.list(ctx, `SELECT `+selectColumns+`
		FROM reservations ORDER BY fire_at, identifier`)
}

// ListDue returns reservations whose fire time is at or before now, soonest first.
func (q *SQLiteQueue) ListDue(ctx context.Context, now time.Time) ([]notification.Reservation, error) {
	return q.list(ctx, `SELECT `+selectColumns+`
		FROM reservations WHERE fire_at <= ? ORDER BY fire_at, identifier`, now.UnixMilli())
}

// MarkDelivered drops a fired reservation. The contact's remaining reservations
// lose their plan, so the next pass plans from the stored last reminded time.
// Marking an unknown identifier is a no-op.
func (q *SQLiteQueue) MarkDelivered(ctx context.Context, identifier string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delivery of %s: %w", identifier, err)
	}
	defer tx.Rollback()

	var contactID string
	err = tx.QueryRowContext(ctx, `SELECT contact_id FROM reservations WHERE identifier = ?`, identifier).Scan(&contactID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up reservation %s: %w", identifier, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("remove reservation %s: %w", identifier, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET planned = 0, planned_from = NULL WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("clear plan for %s: %w", contactID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery of %s: %w", identifier, err)
	}
	return nil
}

func (q *SQLiteQueue) list(ctx context.Context, query string, args ...any) ([]notification.Reservation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	out := make([]notification.Reservation, 0)
	for rows.Next() {
		var r notification.Reservation
		var fireAt, createdAt int64
		var planned int64
		var plannedFrom sql.NullInt64
		if err := rows.Scan(&r.Identifier, &r.ContactID, &r.DisplayText, &fireAt, &createdAt, &planned, &plannedFrom); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		r.FireAt = time.UnixMilli(fireAt).UTC()
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		if planned != 0 {
			r.Plan = &notification.Plan{}
			if plannedFrom.Valid {
				r.Plan.LastReminded = sql.NullTime{Time: time.UnixMilli(plannedFrom.Int64).UTC(), Valid: true}
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func addMissingColumns(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info('reservations')`)
	if err != nil {
		return fmt.Errorf("inspect queue schema: %w", err)
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("inspect queue schema: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect queue schema: %w", err)
	}

	for _, col := range planColumns {
		if have[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("add queue column %s: %w", col.name, err)
		}
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

var _ notification.Queue = (*SQLiteQueue)(nil)
