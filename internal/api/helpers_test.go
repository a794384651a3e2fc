package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/hazard.report/internal/db"
	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/pipeline"
)

var t0 = time.Unix(1_750_000_000, 0).UTC()

type fakeRunner struct {
	mu        sync.Mutex
	frames    []ingest.Frame
	busy      bool
	resetErr  error
	sessionID string
	resets    int
}

func (f *fakeRunner) Submit(fr ingest.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeRunner) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	f.sessionID = "session-after-reset"
	return nil
}

func (f *fakeRunner) Stats() pipeline.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pipeline.Stats{Accepted: int64(len(f.frames)), SessionID: f.sessionID}
}

// setupServer returns a server backed by a fresh database holding one
// session with three events.
func setupServer(t *testing.T) (*Server, *db.DB, *fakeRunner, db.Session) {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	session, err := store.StartSession("test")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	events := []hazard.Event{
		{Type: hazard.EventPedestrianAhead, Severity: hazard.SeverityHigh, Timestamp: t0, Description: "Person ahead", Score: 0.6},
		{Type: hazard.EventClosingFast, Severity: hazard.SeverityCritical, Timestamp: t0.Add(time.Second), Description: "Car closing fast", Score: 0.9},
		{Type: hazard.EventFuturePath, Severity: hazard.SeverityLow, Timestamp: t0.Add(2 * time.Second), Description: "Bicycle may enter path", Score: 0.2},
	}
	if err := store.RecordHazardEvents(session.ID, events); err != nil {
		t.Fatalf("RecordHazardEvents: %v", err)
	}

	runner := &fakeRunner{sessionID: session.ID}
	return NewServer(store, runner, nil, nil), store, runner, session
}
