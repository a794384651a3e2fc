package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/hazard.report/internal/httputil"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLive streams LivePayload messages over a websocket. Clients may
// send anything; incoming messages only keep the connection alive.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Opsf("api: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, payloads := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	monitoring.Diagf("api: live client %d connected from %s", id, r.RemoteAddr)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-payloads:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				monitoring.Diagf("api: live client %d write error: %v", id, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			monitoring.Diagf("api: live client %d disconnected", id)
			return
		}
	}
}

// handleEventStream streams the same payloads as server-sent events.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, payloads := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	_, _ = io.WriteString(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-payloads:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
