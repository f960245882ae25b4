package migrations

import (
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/require"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestUp_FreshDatabase(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Up(db))
	require.True(t, tableExists(t, db, "key_presses"))

	version, dirty, ok, err := Version(db)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, dirty)
	require.EqualValues(t, 1, version)
}

func TestUp_Idempotent(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Up(db))
	require.NoError(t, Up(db))
	require.True(t, tableExists(t, db, "key_presses"))
}

func TestUp_Schema(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Up(db))

	rows, err := db.Query(`PRAGMA table_info(key_presses)`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notnull, pk  int
			defaultValue any
		)
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notnull, &defaultValue, &pk))
		columns[name] = true
	}
	require.NoError(t, rows.Err())
	for _, c := range []string{"id", "profile", "key_name", "sound", "fallback", "pressed_at"} {
		require.True(t, columns[c], "missing column %s", c)
	}
}

func TestDown_RemovesSchema(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Up(db))
	require.NoError(t, Down(db))
	require.False(t, tableExists(t, db, "key_presses"))

	_, _, ok, err := Version(db)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFS_Embedded(t *testing.T) {
	up, err := fs.Glob(FS(), "*.up.sql")
	require.NoError(t, err)
	down, err := fs.Glob(FS(), "*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, up)
	require.Len(t, down, len(up))
}

func TestDriver_VersionAndLock(t *testing.T) {
	db := openDB(t)
	d, err := WithInstance(db, "")
	require.NoError(t, err)

	v, dirty, err := d.Version()
	require.NoError(t, err)
	require.Equal(t, database.NilVersion, v)
	require.False(t, dirty)

	require.NoError(t, d.SetVersion(3, true))
	v, dirty, err = d.Version()
	require.NoError(t, err)
	require.Equal(t, 3, v)
	require.True(t, dirty)

	require.NoError(t, d.Lock())
	require.ErrorIs(t, d.Lock(), database.ErrLocked)
	require.NoError(t, d.Unlock())
	require.ErrorIs(t, d.Unlock(), database.ErrNotLocked)

	_, err = d.Open("sqlite3://x")
	require.ErrorIs(t, err, ErrNoOpen)
}

func TestDriver_Drop(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Up(db))
	d, err := WithInstance(db, "")
	require.NoError(t, err)

	require.NoError(t, d.Drop())
	require.False(t, tableExists(t, db, "key_presses"))
	require.False(t, tableExists(t, db, VersionTable))
}
