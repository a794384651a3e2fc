// Package api serves the hazard HTTP API: event history, sessions, runner
// statistics, frame ingest, reset and live streams.
package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/hazard.report/internal/db"
	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/httputil"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/pipeline"
	"github.com/banshee-data/hazard.report/internal/report"
	"github.com/banshee-data/hazard.report/internal/serialmux"
	"github.com/banshee-data/hazard.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxChartEvents bounds the events loaded for the timeline chart.
const maxChartEvents = 5000

// Store is the subset of *db.DB the API reads from.
type Store interface {
	HazardEvents(db.EventFilter) ([]db.HazardEventRecord, error)
	Sessions(limit int) ([]db.Session, error)
	EventCounts(sessionID string) ([]db.EventCount, error)
}

// Runner is the subset of *pipeline.Runner the API drives.
type Runner interface {
	Submit(ingest.Frame) bool
	Reset(ctx context.Context) error
	Stats() pipeline.Stats
}

// Server serves the hazard HTTP API.
type Server struct {
	store  Store
	runner Runner
	hub    *Hub
	m      serialmux.SerialMuxInterface
}

// NewServer creates the API server. m may be nil when no serial link is
// configured.
func NewServer(store Store, runner Runner, hub *Hub, m serialmux.SerialMuxInterface) *Server {
	if hub == nil {
		hub = NewHub()
	}
	return &Server{store: store, runner: runner, hub: hub, m: m}
}

// Hub returns the live fan-out hub; register it as a pipeline sink.
func (s *Server) Hub() *Hub { return s.hub }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", lrw.ResponseWriter)
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
// Long-lived streams are logged when they end.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/events/stream", s.handleEventStream)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/frames", s.postFrame)
	mux.HandleFunc("/api/reset", s.postReset)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/command", s.sendCommand)
	mux.HandleFunc("/charts/timeline", s.timelineChart)
	return mux
}

// parseEventFilter reads session, type, min_severity, since and limit.
func parseEventFilter(r *http.Request) (db.EventFilter, error) {
	q := r.URL.Query()
	f := db.EventFilter{SessionID: q.Get("session")}

	if v := q.Get("type"); v != "" {
		t, err := hazard.ParseEventType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if v := q.Get("min_severity"); v != "" {
		sev, err := hazard.ParseSeverity(v)
		if err != nil {
			return f, err
		}
		f.MinSeverity = sev
	}
	if v := q.Get("since"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil || sec < 0 {
			return f, errInvalidParam("since")
		}
		f.Since = time.Unix(0, int64(sec*1e9))
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errInvalidParam("limit")
		}
		f.Limit = n
	}
	return f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid '" + string(e) + "' parameter" }

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	f, err := parseEventFilter(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	events, err := s.store.HazardEvents(f)
	if err != nil {
		monitoring.Opsf("api: list events: %v", err)
		httputil.InternalServerError(w, "failed to retrieve events")
		return
	}
	if events == nil {
		events = []db.HazardEventRecord{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, errInvalidParam("limit").Error())
			return
		}
		limit = n
	}
	sessions, err := s.store.Sessions(limit)
	if err != nil {
		monitoring.Opsf("api: list sessions: %v", err)
		httputil.InternalServerError(w, "failed to retrieve sessions")
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

type statsResponse struct {
	Runner      pipeline.Stats  `json:"runner"`
	Counts      []db.EventCount `json:"counts"`
	LiveClients int             `json:"live_clients"`
	LiveDropped int64           `json:"live_dropped"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	st := s.runner.Stats()
	session := r.URL.Query().Get("session")
	if session == "" {
		session = st.SessionID
	}
	counts, err := s.store.EventCounts(session)
	if err != nil {
		monitoring.Opsf("api: event counts: %v", err)
		httputil.InternalServerError(w, "failed to count events")
		return
	}
	if counts == nil {
		counts = []db.EventCount{}
	}
	httputil.WriteJSONOK(w, statsResponse{
		Runner:      st,
		Counts:      counts,
		LiveClients: s.hub.Clients(),
		LiveDropped: s.hub.Dropped(),
	})
}

// postFrame accepts one wire frame. 202 means the frame was handed to the
// engine; 429 means the engine was busy and the frame was dropped.
func (s *Server) postFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes+1))
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}
	if len(body) > httputil.MaxBodyBytes {
		httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	f, err := ingest.DecodeFrame(bytes.TrimSpace(body))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !s.runner.Submit(f) {
		httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{"accepted": false, "seq": f.Seq})
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true, "seq": f.Seq})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.runner.Reset(ctx); err != nil {
		monitoring.Opsf("api: reset: %v", err)
		httputil.ServiceUnavailable(w, "reset failed: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"session_id": s.runner.Stats().SessionID})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

// sendCommand forwards a command line to the detector co-processor.
func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.m == nil {
		httputil.ServiceUnavailable(w, "no serial link configured")
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		monitoring.Opsf("api: send command %q: %v", command, err)
		httputil.InternalServerError(w, "failed to send command")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "sent", "command": command})
}

// timelineChart renders the score timeline for a session (the current one
// by default) as an HTML page.
func (s *Server) timelineChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	session := r.URL.Query().Get("session")
	if session == "" {
		session = s.runner.Stats().SessionID
	}
	recs, err := s.store.HazardEvents(db.EventFilter{SessionID: session, Limit: maxChartEvents})
	if err != nil {
		monitoring.Opsf("api: timeline events: %v", err)
		httputil.InternalServerError(w, "failed to retrieve events")
		return
	}
	events := make([]hazard.Event, len(recs))
	for i, rec := range recs {
		events[i] = rec.Event()
	}

	title := "Hazard timeline"
	if session != "" {
		title += " " + session
	}
	var buf bytes.Buffer
	if err := report.RenderTimelineHTML(&buf, title, events); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
