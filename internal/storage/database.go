package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"infrascan/internal/models"
)

// ErrNotFound is returned when no row matches the session ID
var ErrNotFound = errors.New("session not found")

// DB wraps the session index connection
type DB struct {
	*sql.DB
}

// isMemoryDSN reports whether dsn names an in-memory database
func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// InitDB opens the session index and creates its schema
func InitDB(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isMemoryDSN(dsn) {
		// An in-memory database lives as long as its last connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)

		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen);
	`

	_, err := db.Exec(schema)
	return err
}

// Timestamps are stored as unix nanoseconds so range scans compare numerically.
func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// SaveSession inserts a session row
func (db *DB) SaveSession(ctx context.Context, s models.Session) error {
	query := `INSERT INTO sessions (id, created_at, last_seen) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, query, s.ID, toUnix(s.CreatedAt), toUnix(s.LastSeen))
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// TouchSession records activity on a session
func (db *DB) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE sessions SET last_seen = ? WHERE id = ?`, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(ctx context.Context, id string) (models.Session, error) {
	var (
		s                   models.Session
		createdAt, lastSeen int64
	)
	query := `SELECT id, created_at, last_seen FROM sessions WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(&s.ID, &createdAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	s.CreatedAt = fromUnix(createdAt)
	s.LastSeen = fromUnix(lastSeen)
	return s, nil
}

// ExpiredSessions lists the IDs of sessions last seen before cutoff
func (db *DB) ExpiredSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM sessions WHERE last_seen < ? ORDER BY last_seen`, toUnix(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes a session row
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// CountSessions returns the number of indexed sessions
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
