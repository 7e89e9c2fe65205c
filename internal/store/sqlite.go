package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	subject_id TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	is_admin   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS user_bans (
	ban_id        TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	reason        TEXT NOT NULL,
	duration_days INTEGER NOT NULL,
	actor_id      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ip_bans (
	ban_id        TEXT PRIMARY KEY,
	ip_address    TEXT NOT NULL,
	reason        TEXT NOT NULL,
	duration_days INTEGER NOT NULL,
	actor_id      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS licenses (
	license_key   TEXT PRIMARY KEY,
	plan          TEXT NOT NULL,
	validity_days INTEGER NOT NULL,
	actor_id      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// OpenSQLite opens (or creates) the SQLite store at path and bootstraps
// the schema. The returned store is safe for concurrent use.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent mutations.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) GetUser(ctx context.Context, subjectID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT subject_id, email, is_admin, created_at FROM users WHERE subject_id = ?`, subjectID)

	var u User
	var isAdmin int
	var createdAt string
	if err := row.Scan(&u.SubjectID, &u.Email, &isAdmin, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, email, is_admin, created_at FROM users ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var isAdmin int
		var createdAt string
		if err := rows.Scan(&u.SubjectID, &u.Email, &isAdmin, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		u.IsAdmin = isAdmin != 0
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// PutUser inserts or replaces a user record. Used by provisioning, not
// by the gateway pipeline.
func (s *SQLite) PutUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (subject_id, email, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		u.SubjectID, u.Email, boolToInt(u.IsAdmin), u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: put user: %w", err)
	}
	return nil
}

func (s *SQLite) InsertUserBan(ctx context.Context, ban UserBan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_bans (ban_id, user_id, reason, duration_days, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ban.BanID, ban.UserID, ban.Reason, ban.DurationDays, ban.ActorID, ban.CreatedAt.Format(time.RFC3339))
	return insertErr("user ban", err)
}

func (s *SQLite) InsertIPBan(ctx context.Context, ban IPBan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ip_bans (ban_id, ip_address, reason, duration_days, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ban.BanID, ban.IPAddress, ban.Reason, ban.DurationDays, ban.ActorID, ban.CreatedAt.Format(time.RFC3339))
	return insertErr("ip ban", err)
}

func (s *SQLite) InsertLicense(ctx context.Context, lic License) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO licenses (license_key, plan, validity_days, actor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		lic.LicenseKey, lic.Plan, lic.ValidityDays, lic.ActorID, lic.CreatedAt.Format(time.RFC3339))
	return insertErr("license", err)
}

func insertErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint") {
		return fmt.Errorf("store: insert %s: %w", kind, ErrConflict)
	}
	return fmt.Errorf("store: insert %s: %w", kind, err)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
