// Package localdb persists client-side state (the bearer credential and the
// last-known resource snapshots) in a sqlite file under the user data dir, so
// a restarted console can show stale-but-displayable data immediately.
package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const fileName = "state.db"

type DB struct {
	sql *sql.DB
}

// Open creates the data dir if needed, opens the sqlite file and ensures the
// schema. Single connection; the console is the only writer.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + filepath.Join(dataDir, fileName) + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS credentials(scope TEXT PRIMARY KEY, token TEXT NOT NULL, saved_at INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS snapshots(key TEXT PRIMARY KEY, value BLOB NOT NULL, fetched_at INTEGER NOT NULL);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) SaveToken(scope, token string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO credentials(scope, token, saved_at) VALUES(?,?,?)
		 ON CONFLICT(scope) DO UPDATE SET token=excluded.token, saved_at=excluded.saved_at`,
		scope, token, time.Now().Unix())
	return err
}

// LoadToken returns the persisted token for a scope. Absence is not an error.
func (d *DB) LoadToken(scope string) (string, bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var token string
	err := d.sql.QueryRowContext(ctx, `SELECT token FROM credentials WHERE scope=?`, scope).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (d *DB) ClearToken(scope string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := d.sql.ExecContext(ctx, `DELETE FROM credentials WHERE scope=?`, scope)
	return err
}

func (d *DB) SaveSnapshot(key string, value []byte, fetchedAt time.Time) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO snapshots(key, value, fetched_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, fetched_at=excluded.fetched_at`,
		key, value, fetchedAt.Unix())
	return err
}

func (d *DB) LoadSnapshot(key string) ([]byte, time.Time, bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var value []byte
	var ts int64
	err := d.sql.QueryRowContext(ctx, `SELECT value, fetched_at FROM snapshots WHERE key=?`, key).Scan(&value, &ts)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return value, time.Unix(ts, 0), true, nil
}

// ClearSnapshots drops all cached resource snapshots (logout teardown).
func (d *DB) ClearSnapshots() error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := d.sql.ExecContext(ctx, `DELETE FROM snapshots`)
	return err
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}
