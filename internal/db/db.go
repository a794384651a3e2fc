// Package db persists hazard sessions and events in SQLite.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/hazard.report/internal/timeutil"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// DB is the SQLite store for hazard sessions and events.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// NewDB opens (creating if needed) the database at path and applies all
// pending migrations.
func NewDB(path string) (*DB, error) {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SetClock replaces the clock used for timestamps and retry backoff.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string { return db.path }
