// Package sqlite stores key-press statistics in a local SQLite database
// through the CGO-free ncruces driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zjrosen/keysound/internal/infrastructure/migrations"
	"github.com/zjrosen/keysound/internal/log"
	"github.com/zjrosen/keysound/internal/stats"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// DB owns the statistics connection.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens the database at path, creating its directory, and brings the
// schema up to date. An existing file is copied to path.bak first.
func NewDB(path string) (*DB, error) {
	log.Debug(log.CatDB, "Opening database", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			log.ErrorErr(log.CatDB, "Pre-migration backup failed", err, "path", path)
			return nil, fmt.Errorf("backing up database: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := setup(conn); err != nil {
		_ = conn.Close()
		log.ErrorErr(log.CatDB, "Database setup failed", err, "path", path)
		return nil, err
	}

	log.Info(log.CatDB, "Database ready", "path", path)
	return &DB{conn: conn, path: path}, nil
}

func setup(conn *sql.DB) error {
	if err := conn.Ping(); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := migrations.Up(conn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Path returns the database file.
func (db *DB) Path() string { return db.path }

// Presses returns the key-press repository on this connection.
func (db *DB) Presses() stats.Repository {
	return &pressRepository{db: db.conn}
}

// Close releases the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	log.Debug(log.CatDB, "Closing database", "path", db.path)
	return db.conn.Close()
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) //nolint:gosec // src is the configured database path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode()) //nolint:gosec // dst derives from the database path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
