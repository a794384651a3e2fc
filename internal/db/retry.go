package db

import (
	"strings"
	"time"
)

const (
	busyRetries     = 5
	busyBaseBackoff = 20 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with doubling backoff while SQLite reports
// the database busy.
func (db *DB) retryOnBusy(fn func() error) error {
	backoff := busyBaseBackoff
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		if attempt < busyRetries {
			db.clock.Sleep(backoff)
			backoff *= 2
		}
	}
	return err
}
