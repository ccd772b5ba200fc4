// Package db is the run journal: every match or bench run gets a row in runs,
// and the drive exchanges, actuator commands, approach transitions and camera
// sightings of that run hang off it.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the journal at path and brings its schema
// up to date.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The journal is written from the control loop and read from the debug
	// routes; one connection keeps sqlite's locking out of the way.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Path returns the file the journal was opened from.
func (db *DB) Path() string {
	return db.path
}
