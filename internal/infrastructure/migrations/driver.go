package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

// VersionTable records the applied schema version.
const VersionTable = "schema_migrations"

// ErrNoOpen is returned by Driver.Open; drivers are built from an open *sql.DB.
var ErrNoOpen = errors.New("migrations: open by URL is not supported, use WithInstance")

// Driver is a golang-migrate database driver over a *sql.DB opened with the
// ncruces SQLite driver. The upstream sqlite3 driver links mattn/go-sqlite3,
// which registers the same "sqlite3" driver name.
type Driver struct {
	db     *sql.DB
	table  string
	locked atomic.Bool
}

var _ database.Driver = (*Driver)(nil)

// WithInstance wraps db and creates the version table if needed. An empty
// table name selects VersionTable.
func WithInstance(db *sql.DB, table string) (*Driver, error) {
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if table == "" {
		table = VersionTable
	}
	d := &Driver{db: db, table: table}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (version uint64, dirty bool);
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_version ON %[1]s (version);`, table)
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating %s: %w", table, err)
	}
	return d, nil
}

// Open implements database.Driver.
func (d *Driver) Open(string) (database.Driver, error) {
	return nil, ErrNoOpen
}

// Close implements database.Driver. The connection belongs to the caller and
// stays open.
func (d *Driver) Close() error {
	return nil
}

// Lock implements database.Driver with an in-process flag.
func (d *Driver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

// Unlock implements database.Driver.
func (d *Driver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run applies one migration file inside a transaction.
func (d *Driver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(body)); err != nil {
			return &database.Error{OrigErr: err, Query: body}
		}
		return nil
	})
}

// SetVersion replaces the recorded version.
func (d *Driver) SetVersion(version int, dirty bool) error {
	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + d.table); err != nil { //nolint:gosec // table name is not user input
			return &database.Error{OrigErr: err, Err: "clearing version"}
		}
		// A dirty nil version is still written so a failed first down
		// migration is visible.
		if version < 0 && !(version == database.NilVersion && dirty) {
			return nil
		}
		if _, err := tx.Exec("INSERT INTO "+d.table+" (version, dirty) VALUES (?, ?)", version, dirty); err != nil { //nolint:gosec // table name is not user input
			return &database.Error{OrigErr: err, Err: "writing version"}
		}
		return nil
	})
}

// Version returns the recorded version, or database.NilVersion when none is.
func (d *Driver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	err := d.db.QueryRow("SELECT version, dirty FROM " + d.table + " LIMIT 1").Scan(&version, &dirty) //nolint:gosec // table name is not user input
	if errors.Is(err, sql.ErrNoRows) {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return database.NilVersion, false, &database.Error{OrigErr: err, Err: "reading version"}
	}
	return version, dirty, nil
}

// Drop removes every table.
func (d *Driver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return &database.Error{OrigErr: err, Err: "listing tables"}
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return &database.Error{OrigErr: err, Err: "listing tables"}
	}
	if len(tables) == 0 {
		return nil
	}

	err = d.inTx(func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.Exec(`DROP TABLE IF EXISTS "` + t + `"`); err != nil {
				return &database.Error{OrigErr: err, Err: "dropping " + t}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = d.db.Exec("VACUUM")
	return err
}

func (d *Driver) inTx(fn func(*sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}
