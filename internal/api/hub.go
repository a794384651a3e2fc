package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/pipeline"
)

// clientBuffer is the number of payloads queued per live client before
// further payloads are dropped for that client.
const clientBuffer = 16

// LivePayload is what live clients receive for every analysed frame.
type LivePayload struct {
	SessionID     string                `json:"session_id,omitempty"`
	Source        string                `json:"source"`
	Seq           int64                 `json:"seq"`
	TS            float64               `json:"ts"`
	Events        []hazard.Event        `json:"events"`
	MotionVectors map[int]hazard.Vector `json:"motion_vectors"`
}

func newLivePayload(r pipeline.FrameResult) LivePayload {
	events := r.Result.Events
	if events == nil {
		events = []hazard.Event{}
	}
	vectors := r.Result.MotionVectors
	if vectors == nil {
		vectors = map[int]hazard.Vector{}
	}
	return LivePayload{
		SessionID:     r.SessionID,
		Source:        r.Source,
		Seq:           r.Seq,
		TS:            float64(r.Time.UnixNano()) / float64(time.Second),
		Events:        events,
		MotionVectors: vectors,
	}
}

// Hub fans analysed frames out to websocket and SSE clients. It is a
// pipeline.Sink; Publish never blocks on a slow client.
type Hub struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	dropped int64
	closed  bool

	// EventsOnly, when true, skips frames with no events.
	EventsOnly bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[int]chan []byte)}
}

// Subscribe registers a client and returns its ID and payload channel.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, clientBuffer)
	if h.closed {
		close(ch)
		return -1, ch
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = ch
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of payloads dropped for slow clients.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Publish implements pipeline.Sink.
func (h *Hub) Publish(r pipeline.FrameResult) error {
	if h.EventsOnly && len(r.Result.Events) == 0 {
		return nil
	}
	b, err := json.Marshal(newLivePayload(r))
	if err != nil {
		return fmt.Errorf("encode live payload: %w", err)
	}
	h.Broadcast(b)
	return nil
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.dropped++
			monitoring.Tracef("api: live client %d is slow, dropped payload", id)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}
