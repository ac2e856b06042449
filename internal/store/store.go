// Package store persists the operator-side access state: the DM allow-list,
// pending access requests, and a tally of denied attempts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// PendingRequest is one user waiting for an admin to authorize them.
type PendingRequest struct {
	UserID      string
	Username    string
	DisplayName string
	RequestedAt time.Time
}

// Store is the SQLite-backed access state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS authorized_users (
		user_id TEXT PRIMARY KEY,
		authorized_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pending_requests (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		display_name TEXT NOT NULL,
		requested_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS access_attempts (
		user_id TEXT PRIMARY KEY,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_attempt_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsAuthorized reports whether the user is on the allow-list.
func (s *Store) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM authorized_users WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query authorization: %w", err)
	}
	return true, nil
}

// Authorize adds a user to the allow-list and clears any pending request.
func (s *Store) Authorize(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO authorized_users (user_id, authorized_at) VALUES (?, ?)`,
		userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert authorization: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_requests WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear pending request: %w", err)
	}
	return tx.Commit()
}

// Revoke removes a user from the allow-list.
func (s *Store) Revoke(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM authorized_users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete authorization: %w", err)
	}
	return nil
}

// AuthorizedList returns all allow-listed user IDs.
func (s *Store) AuthorizedList(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM authorized_users ORDER BY authorized_at`)
	if err != nil {
		return nil, fmt.Errorf("query authorized users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan authorized user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddPendingRequest records that a user asked for access. Repeats overwrite
// so only the latest request survives per user.
func (s *Store) AddPendingRequest(ctx context.Context, req PendingRequest) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_requests (user_id, username, display_name, requested_at)
		 VALUES (?, ?, ?, ?)`,
		req.UserID, req.Username, req.DisplayName, req.RequestedAt.Unix()); err != nil {
		return fmt.Errorf("insert pending request: %w", err)
	}
	return nil
}

// PendingRequests lists users waiting for authorization.
func (s *Store) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, display_name, requested_at
		 FROM pending_requests ORDER BY requested_at`)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	defer rows.Close()

	var reqs []PendingRequest
	for rows.Next() {
		var req PendingRequest
		var ts int64
		if err := rows.Scan(&req.UserID, &req.Username, &req.DisplayName, &ts); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		req.RequestedAt = time.Unix(ts, 0)
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// RecordAttempt bumps the denied-attempt counter for a user.
func (s *Store) RecordAttempt(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO access_attempts (user_id, attempts, last_attempt_at) VALUES (?, 1, ?)
		 ON CONFLICT(user_id) DO UPDATE SET attempts = attempts + 1, last_attempt_at = excluded.last_attempt_at`,
		userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Stats returns allow-list size, pending count and total denied attempts.
func (s *Store) Stats(ctx context.Context) (authorized, pending, attempts int, err error) {
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authorized_users`).Scan(&authorized); err != nil {
		return 0, 0, 0, fmt.Errorf("count authorized: %w", err)
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_requests`).Scan(&pending); err != nil {
		return 0, 0, 0, fmt.Errorf("count pending: %w", err)
	}
	if err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(attempts), 0) FROM access_attempts`).Scan(&attempts); err != nil {
		return 0, 0, 0, fmt.Errorf("sum attempts: %w", err)
	}
	return authorized, pending, attempts, nil
}
