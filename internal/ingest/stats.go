package ingest

import "sync/atomic"

// Stats counts what a reader saw.
type Stats struct {
	Messages int64 `json:"messages"` // lines, datagrams or packets inspected
	Frames   int64 `json:"frames"`   // valid frames handed on
	Invalid  int64 `json:"invalid"`  // messages rejected by DecodeFrame
}

// counters is the concurrent form of Stats used by the UDP listener.
type counters struct {
	messages, frames, invalid atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{Messages: c.messages.Load(), Frames: c.frames.Load(), Invalid: c.invalid.Load()}
}
