// Package storage persists the coordination core's local bookkeeping:
// zombie-recovery attempt counters and the repair audit journal.
//
// Nothing in here is authoritative coordination state. The event log
// owns work unit state; this database only remembers how often recovery
// has been tried for a unit and what repairs were applied, so operators
// can audit them and so recovery can stop retrying a unit that keeps
// coming back wrong.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is a SQLite-backed bookkeeping store.
type Store struct {
	db *sql.DB
}

// RecoveryRecord tracks recovery attempts for one work unit.
type RecoveryRecord struct {
	WU          string
	Attempts    int
	LastAttempt time.Time
	Escalated   bool
}

// JournalEntry records one applied repair.
type JournalEntry struct {
	ID        int64
	WU        string
	Kind      string
	Detail    string
	AppliedAt time.Time
}

// Open opens (creating if necessary) the bookkeeping database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for better concurrency between the CLI and long-running
	// recovery loops.
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRecoveryAttempt increments the attempt counter for a unit and
// returns the updated record.
func (s *Store) RecordRecoveryAttempt(ctx context.Context, wu string) (*RecoveryRecord, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recovery_attempts (wu, attempts, last_attempt)
		VALUES (?, 1, ?)
		ON CONFLICT(wu) DO UPDATE SET
			attempts = attempts + 1,
			last_attempt = excluded.last_attempt`,
		wu, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to record recovery attempt for %s: %w", wu, err)
	}
	return s.GetRecovery(ctx, wu)
}

// GetRecovery returns the recovery record for a unit, or a zero record
// if the unit has never needed recovery.
func (s *Store) GetRecovery(ctx context.Context, wu string) (*RecoveryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT attempts, last_attempt, escalated
		FROM recovery_attempts WHERE wu = ?`, wu)

	rec := &RecoveryRecord{WU: wu}
	var last string
	err := row.Scan(&rec.Attempts, &last, &rec.Escalated)
	if err == sql.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recovery record for %s: %w", wu, err)
	}

	rec.LastAttempt, err = time.Parse(time.RFC3339, last)
	if err != nil {
		return nil, fmt.Errorf("corrupt last_attempt for %s: %w", wu, err)
	}
	return rec, nil
}

// MarkEscalated flags a unit as requiring manual intervention. Once
// escalated, automatic recovery must not touch the unit again until
// the flag is reset.
func (s *Store) MarkEscalated(ctx context.Context, wu string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recovery_attempts SET escalated = 1 WHERE wu = ?`, wu)
	if err != nil {
		return fmt.Errorf("failed to escalate %s: %w", wu, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no recovery record for %s", wu)
	}
	return nil
}

// ResetRecovery clears the attempt counter and escalation flag for a
// unit, re-arming automatic recovery.
func (s *Store) ResetRecovery(ctx context.Context, wu string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recovery_attempts WHERE wu = ?`, wu)
	if err != nil {
		return fmt.Errorf("failed to reset recovery for %s: %w", wu, err)
	}
	return nil
}

// ListEscalated returns all units flagged for manual intervention.
func (s *Store) ListEscalated(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wu FROM recovery_attempts WHERE escalated = 1 ORDER BY wu`)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalated units: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var wu string
		if err := rows.Scan(&wu); err != nil {
			return nil, err
		}
		out = append(out, wu)
	}
	return out, rows.Err()
}

// AppendJournal records an applied repair.
func (s *Store) AppendJournal(ctx context.Context, wu, kind, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repair_journal (wu, kind, detail, applied_at)
		VALUES (?, ?, ?, ?)`,
		wu, kind, detail, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to journal repair for %s: %w", wu, err)
	}
	return nil
}

// Journal returns the repair journal for one unit, oldest first. An
// empty wu returns the whole journal.
func (s *Store) Journal(ctx context.Context, wu string) ([]JournalEntry, error) {
	query := `SELECT id, wu, kind, detail, applied_at FROM repair_journal`
	var args []any
	if wu != "" {
		query += ` WHERE wu = ?`
		args = append(args, wu)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read repair journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var applied string
		if err := rows.Scan(&e.ID, &e.WU, &e.Kind, &e.Detail, &applied); err != nil {
			return nil, err
		}
		e.AppliedAt, err = time.Parse(time.RFC3339, applied)
		if err != nil {
			return nil, fmt.Errorf("corrupt applied_at in journal entry %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
