package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/hazard.report/internal/timeutil"
)

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// setupTestDB opens a migrated database in a temp dir with a mock clock.
func setupTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "hazard.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := timeutil.NewMockClock(epoch)
	db.SetClock(clock)
	return db, clock
}
