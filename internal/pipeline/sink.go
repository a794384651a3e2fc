package pipeline

import (
	"fmt"
	"sync"

	"github.com/banshee-data/hazard.report/internal/hazard"
)

// Sink receives analysed frames. Publish runs on the worker goroutine and
// should not block for long.
type Sink interface {
	Publish(FrameResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(FrameResult) error

// Publish calls f.
func (f SinkFunc) Publish(r FrameResult) error { return f(r) }

// EventStore persists hazard events for a session.
type EventStore interface {
	RecordHazardEvents(sessionID string, events []hazard.Event) error
}

// StoreSink writes every non-empty result's events to an EventStore.
type StoreSink struct {
	Store EventStore
}

// Publish implements Sink.
func (s StoreSink) Publish(r FrameResult) error {
	if len(r.Result.Events) == 0 {
		return nil
	}
	if r.SessionID == "" {
		return fmt.Errorf("store %d events for seq %d: no session", len(r.Result.Events), r.Seq)
	}
	if err := s.Store.RecordHazardEvents(r.SessionID, r.Result.Events); err != nil {
		return fmt.Errorf("store events for seq %d: %w", r.Seq, err)
	}
	return nil
}

// Collector keeps every published result in memory. Replay and tests use it.
type Collector struct {
	mu      sync.Mutex
	results []FrameResult
}

// Publish implements Sink.
func (c *Collector) Publish(r FrameResult) error {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	return nil
}

// Results returns a copy of the collected results.
func (c *Collector) Results() []FrameResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FrameResult(nil), c.results...)
}

// Events flattens every collected event in publish order.
func (c *Collector) Events() []hazard.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []hazard.Event
	for _, r := range c.results {
		out = append(out, r.Result.Events...)
	}
	return out
}
