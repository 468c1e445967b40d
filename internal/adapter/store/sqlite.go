package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores answers in a single table. Expired rows are hidden from Get
// and removed by Purge, which the server schedules on store.sqlite.purge_schedule.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result db: %w", err)
	}
	// WAL mode for concurrent readers while an answer is being written.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable("store.sqlite.open", fmt.Errorf("set WAL mode: %w", err))
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, unavailable("store.sqlite.open", fmt.Errorf("set busy timeout: %w", err))
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate result db: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			uuid       TEXT PRIMARY KEY,
			body       BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS results_expires_at ON results (expires_at);
	`)
	return err
}

func (s *SQLite) Get(ctx context.Context, uuid string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM results WHERE uuid = ? AND (expires_at = 0 OR expires_at > ?)",
		uuid, s.now().UnixMilli(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("store.sqlite.get", uuid)
	}
	if err != nil {
		return nil, unavailable("store.sqlite.get", err)
	}
	return body, nil
}

// Put upserts body. A zero ttl stores without expiry.
func (s *SQLite) Put(ctx context.Context, uuid string, body []byte, ttl time.Duration) error {
	now := s.now()
	var expires int64
	if ttl > 0 {
		expires = now.Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (uuid, body, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET body = excluded.body, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		uuid, body, now.UnixMilli(), expires,
	)
	if err != nil {
		return unavailable("store.sqlite.put", err)
	}
	return nil
}

// Purge deletes expired rows and reports how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM results WHERE expires_at > 0 AND expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, unavailable("store.sqlite.purge", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Ping reports whether the database is usable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("store.sqlite.ping", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
