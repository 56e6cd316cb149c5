// Package sqlitedb opens the SQLite files docrag keeps on local disk and
// brings their schema up to date.
//
// Schemas evolve through an ordered list of migration scripts. The number of
// scripts applied is recorded in PRAGMA user_version, so each script runs
// exactly once per database file.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// pragmas apply to every connection the driver opens.
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// DataDir returns ~/.docrag, creating it with owner-only permissions.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("sqlitedb: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("sqlitedb: could not create %s: %w", dir, err)
	}
	return dir, nil
}

// Open opens or creates the database at path (":memory:" for a private
// in-memory database) and applies the migrations it has not seen yet.
// The pool holds a single connection so ":memory:" stays one database.
func Open(path string, migrations []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitedb: %s: %w", path, err)
	}
	return db, nil
}

// Version returns the number of migrations applied to db.
func Version(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// Migrate runs migrations[Version(db):] in order, each in its own
// transaction together with the user_version bump. A database whose version
// exceeds len(migrations) is rejected.
func Migrate(db *sql.DB, migrations []string) error {
	current, err := Version(db)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this binary supports (%d)", current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: set version: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i+1, err)
		}
	}
	return nil
}
