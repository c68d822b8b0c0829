package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// CurrentSchemaVersion is the highest migration shipped with this build.
// Backups record the schema version they were taken at; restores refuse
// anything newer than this.
const CurrentSchemaVersion = 4

// Tables lists every domain table in child-before-parent order, so that
// deleting (or dropping) in this order never violates a foreign key.
var Tables = []string{
	"daily_statuses",
	"intensity_readings",
	"episode_notes",
	"medication_schedules",
	"medication_doses",
	"medications",
	"episodes",
	"settings",
}

// DB wraps *sql.DB together with the path it was opened from. The backup
// engine needs the path to snapshot the file, and Replace to swap it out
// underneath a restore.
type DB struct {
	*sql.DB
	mu   sync.Mutex
	path string
}

// Open opens a SQLite database at the given path and runs migrations.
func Open(dbPath string) (*DB, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, path: dbPath}, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Path returns the file path this database was opened from.
func (d *DB) Path() string {
	return d.path
}

// Replace swaps the live database file for the one at srcPath. It closes the
// current handle, copies srcPath over the live file, removes the now-stale
// WAL/SHM files, and reopens — which forward-migrates if srcPath holds an
// older schema. On failure the handle may be left closed; callers should not
// continue using it.
func (d *DB) Replace(srcPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read replacement db: %w", err)
	}
	if err := os.WriteFile(d.path, data, 0o600); err != nil {
		return fmt.Errorf("write db file: %w", err)
	}

	// The old WAL/SHM belong to the replaced file and must not be replayed.
	os.Remove(d.path + "-wal")
	os.Remove(d.path + "-shm")

	db, err := open(d.path)
	if err != nil {
		return fmt.Errorf("reopen db: %w", err)
	}
	d.DB = db
	return nil
}

var dialectOnce sync.Once

func setDialect() (err error) {
	dialectOnce.Do(func() {
		err = goose.SetDialect("sqlite3")
	})
	return err
}

// Migrate applies all pending migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := setDialect(); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// SchemaVersion reports the migration version of the given database.
func SchemaVersion(db *sql.DB) (int64, error) {
	if err := setDialect(); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

// SetSchemaVersion rewinds the recorded migration version inside a
// transaction, so that a restore which recreated an older schema from raw
// DDL can be forward-migrated by the next Migrate call.
func SetSchemaVersion(tx *sql.Tx, version int64) error {
	if _, err := tx.Exec(`DELETE FROM goose_db_version WHERE version_id > ?`, version); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// SchemaDDL returns the CREATE statements for every domain table and index,
// as stored by SQLite itself. Backups embed this so a restore can reproduce
// the exact schema the data was written against.
func SchemaDDL(db *sql.DB) (string, error) {
	rows, err := db.Query(
		`SELECT sql FROM sqlite_master
		 WHERE type IN ('table', 'index') AND sql IS NOT NULL
		   AND name NOT LIKE 'sqlite_%' AND name != 'goose_db_version'
		 ORDER BY rowid`,
	)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scan schema: %w", err)
		}
		stmts = append(stmts, stmt+";")
	}
	return strings.Join(stmts, "\n"), rows.Err()
}
