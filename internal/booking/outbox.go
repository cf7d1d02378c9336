package booking

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Outbox intent states. pending means the intent is recorded but no
// booking exists yet; created means the booking record was written but
// the capacity commit has not landed; committed and the failure states
// are terminal.
const (
	IntentPending     = "pending"
	IntentCreated     = "created"
	IntentCommitted   = "committed"
	IntentFailed      = "failed"
	IntentCompensated = "compensated"
	IntentAbandoned   = "abandoned"
)

// Target kinds for the capacity record an intent books against.
const (
	TargetSlot    = "slot"
	TargetService = "service"
)

// ErrDuplicateIntent reports a second intent carrying an idempotency
// key with a live or committed row in the ledger. The unique index
// makes "insert booking intent if no active row with this key" a
// single write. Terminal-failure rows (failed, compensated, abandoned)
// release their key so a retry after a failed attempt can proceed.
var ErrDuplicateIntent = fmt.Errorf("outbox: duplicate idempotency key")

// Intent is one durable record of an in-flight booking operation.
type Intent struct {
	ID              string
	IdempotencyKey  string
	State           string
	BookingRecordID string
	TargetRecordID  string
	TargetKind      string
	PartySize       int
	NewUsed         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outbox is the local durable ledger consulted by the reconciler to
// complete or roll back operations interrupted between the booking
// create and the capacity commit.
type Outbox struct {
	db *sql.DB
}

// OpenOutbox opens (and if needed creates) the SQLite ledger at path.
func OpenOutbox(path string) (*Outbox, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("outbox dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS intents (
		id                TEXT PRIMARY KEY,
		idempotency_key   TEXT NOT NULL,
		state             TEXT NOT NULL,
		booking_record_id TEXT NOT NULL DEFAULT '',
		target_record_id  TEXT NOT NULL DEFAULT '',
		target_kind       TEXT NOT NULL DEFAULT '',
		party_size        INTEGER NOT NULL DEFAULT 0,
		new_used          INTEGER NOT NULL DEFAULT 0,
		created_at        DATETIME NOT NULL,
		updated_at        DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS ux_intents_idem_key ON intents(idempotency_key);
	CREATE INDEX IF NOT EXISTS ix_intents_state ON intents(state, updated_at);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("outbox schema: %w", err)
	}

	return &Outbox{db: db}, nil
}

// Close releases the underlying database.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Begin records a pending intent before any external side effect.
// A second intent with the same idempotency key fails with
// ErrDuplicateIntent unless the existing row reached a terminal
// failure state, in which case the old row is reclaimed and the retry
// proceeds.
func (o *Outbox) Begin(ctx context.Context, intent *Intent) error {
	now := time.Now().UTC()
	intent.State = IntentPending
	intent.CreatedAt = now
	intent.UpdatedAt = now

	// A failed, compensated or abandoned attempt left nothing external
	// behind; its row must not block the retry forever.
	_, err := o.db.ExecContext(ctx, `
		DELETE FROM intents WHERE idempotency_key = ? AND state IN (?, ?, ?)`,
		intent.IdempotencyKey, IntentFailed, IntentCompensated, IntentAbandoned,
	)
	if err != nil {
		return fmt.Errorf("outbox begin: %w", err)
	}

	_, err = o.db.ExecContext(ctx, `
		INSERT INTO intents (id, idempotency_key, state, target_record_id, target_kind, party_size, new_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID, intent.IdempotencyKey, intent.State, intent.TargetRecordID,
		intent.TargetKind, intent.PartySize, intent.NewUsed, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateIntent
		}
		return fmt.Errorf("outbox begin: %w", err)
	}
	return nil
}

// MarkCreated advances an intent after the booking record was written.
func (o *Outbox) MarkCreated(ctx context.Context, intentID, bookingRecordID string) error {
	return o.setState(ctx, intentID, IntentCreated, bookingRecordID)
}

// MarkPlanned records the counter value the capacity commit is about to
// write, just before the write itself. The reconciler compares it with
// the live record to tell a landed commit from a lost one.
func (o *Outbox) MarkPlanned(ctx context.Context, intentID string, newUsed int) error {
	_, err := o.db.ExecContext(ctx,
		`UPDATE intents SET new_used = ?, updated_at = ? WHERE id = ?`,
		newUsed, time.Now().UTC(), intentID,
	)
	if err != nil {
		return fmt.Errorf("outbox mark planned: %w", err)
	}
	return nil
}

// MarkCommitted closes an intent after the capacity commit landed.
func (o *Outbox) MarkCommitted(ctx context.Context, intentID string) error {
	return o.setState(ctx, intentID, IntentCommitted, "")
}

// MarkFailed closes an intent whose booking create never succeeded.
func (o *Outbox) MarkFailed(ctx context.Context, intentID string) error {
	return o.setState(ctx, intentID, IntentFailed, "")
}

// MarkCompensated closes an intent whose booking was cancelled or
// deleted after a failed capacity commit.
func (o *Outbox) MarkCompensated(ctx context.Context, intentID string) error {
	return o.setState(ctx, intentID, IntentCompensated, "")
}

// MarkAbandoned closes a stale pending intent that never produced a
// booking.
func (o *Outbox) MarkAbandoned(ctx context.Context, intentID string) error {
	return o.setState(ctx, intentID, IntentAbandoned, "")
}

func (o *Outbox) setState(ctx context.Context, intentID, state, bookingRecordID string) error {
	var err error
	if bookingRecordID != "" {
		_, err = o.db.ExecContext(ctx,
			`UPDATE intents SET state = ?, booking_record_id = ?, updated_at = ? WHERE id = ?`,
			state, bookingRecordID, time.Now().UTC(), intentID,
		)
	} else {
		_, err = o.db.ExecContext(ctx,
			`UPDATE intents SET state = ?, updated_at = ? WHERE id = ?`,
			state, time.Now().UTC(), intentID,
		)
	}
	if err != nil {
		return fmt.Errorf("outbox set state %s: %w", state, err)
	}
	return nil
}

// Get returns one intent by id.
func (o *Outbox) Get(ctx context.Context, intentID string) (*Intent, error) {
	row := o.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, state, booking_record_id, target_record_id, target_kind, party_size, new_used, created_at, updated_at
		FROM intents WHERE id = ?`, intentID)
	return scanIntent(row)
}

// Stale returns non-terminal intents not touched for longer than age,
// oldest first.
func (o *Outbox) Stale(ctx context.Context, age time.Duration) ([]Intent, error) {
	cutoff := time.Now().UTC().Add(-age)
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, idempotency_key, state, booking_record_id, target_record_id, target_kind, party_size, new_used, created_at, updated_at
		FROM intents
		WHERE state IN (?, ?) AND updated_at < ?
		ORDER BY updated_at`,
		IntentPending, IntentCreated, cutoff)
	if err != nil {
		return nil, fmt.Errorf("outbox stale: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		intent, err := scanIntentRows(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *intent)
	}
	return intents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*Intent, error) {
	var it Intent
	err := row.Scan(
		&it.ID, &it.IdempotencyKey, &it.State, &it.BookingRecordID,
		&it.TargetRecordID, &it.TargetKind, &it.PartySize, &it.NewUsed, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("outbox scan: %w", err)
	}
	return &it, nil
}

func scanIntentRows(rows *sql.Rows) (*Intent, error) {
	return scanIntent(rows)
}
