package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/google/uuid"
)

// maxEventLimit caps HazardEvents result size.
const maxEventLimit = 10000

// HazardEventRecord is a stored hazard event.
type HazardEventRecord struct {
	EventID     string           `json:"event_id"`
	SessionID   string           `json:"session_id"`
	Type        hazard.EventType `json:"type"`
	Severity    hazard.Severity  `json:"severity"`
	Label       hazard.Label     `json:"label,omitempty"`
	Description string           `json:"description"`
	Score       float64          `json:"hazard_score"`
	Confidence  float64          `json:"confidence,omitempty"`
	Box         *hazard.Box      `json:"box,omitempty"`
	TrackID     int64            `json:"track_id,omitempty"`
	Time        time.Time        `json:"timestamp"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Event converts the record back to an engine event.
func (r HazardEventRecord) Event() hazard.Event {
	ev := hazard.Event{
		Type:        r.Type,
		Severity:    r.Severity,
		Timestamp:   r.Time,
		Description: r.Description,
		TrackID:     r.TrackID,
		Score:       r.Score,
	}
	if r.Box != nil {
		ev.Object = &hazard.Detection{Label: r.Label, Confidence: r.Confidence, Box: *r.Box}
	}
	return ev
}

// RecordHazardEvents stores events for a session in one transaction.
func (db *DB) RecordHazardEvents(sessionID string, events []hazard.Event) error {
	if len(events) == 0 {
		return nil
	}
	created := db.clock.Now().UnixNano()
	err := db.retryOnBusy(func() error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`INSERT INTO hazard_events (
			event_id, session_id, event_type, severity, severity_rank, label, description,
			hazard_score, confidence, box_x, box_y, box_w, box_h, track_id,
			event_unix_nanos, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ev := range events {
			var (
				label            string
				conf, x, y, w, h sql.NullFloat64
			)
			if ev.Object != nil {
				label = string(ev.Object.Label)
				conf = sql.NullFloat64{Float64: ev.Object.Confidence, Valid: true}
				x = sql.NullFloat64{Float64: ev.Object.Box.X, Valid: true}
				y = sql.NullFloat64{Float64: ev.Object.Box.Y, Valid: true}
				w = sql.NullFloat64{Float64: ev.Object.Box.W, Valid: true}
				h = sql.NullFloat64{Float64: ev.Object.Box.H, Valid: true}
			}
			if _, err := stmt.Exec(
				uuid.New().String(), sessionID, string(ev.Type), ev.Severity.String(), int(ev.Severity),
				label, ev.Description, ev.Score, conf, x, y, w, h, ev.TrackID,
				ev.Timestamp.UnixNano(), created,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("record %d hazard events for session %s: %w", len(events), sessionID, err)
	}
	return nil
}

// EventFilter narrows HazardEvents. Zero fields do not filter.
type EventFilter struct {
	SessionID   string
	Type        hazard.EventType
	MinSeverity hazard.Severity
	Since       time.Time
	Limit       int
}

// HazardEvents returns matching events, newest first. A zero Limit
// returns up to 100.
func (db *DB) HazardEvents(f EventFilter) ([]HazardEventRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Type != "" {
		where = append(where, "event_type = ?")
		args = append(args, string(f.Type))
	}
	if f.MinSeverity > hazard.SeverityLow {
		where = append(where, "severity_rank >= ?")
		args = append(args, int(f.MinSeverity))
	}
	if !f.Since.IsZero() {
		where = append(where, "event_unix_nanos >= ?")
		args = append(args, f.Since.UnixNano())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	q := `SELECT event_id, session_id, event_type, severity_rank, label, description,
		hazard_score, confidence, box_x, box_y, box_w, box_h, track_id,
		event_unix_nanos, created_at
		FROM hazard_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY event_unix_nanos DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query hazard events: %w", err)
	}
	defer rows.Close()

	var out []HazardEventRecord
	for rows.Next() {
		var (
			r                HazardEventRecord
			typ, label       string
			rank             int
			conf, x, y, w, h sql.NullFloat64
			ts, created      int64
		)
		if err := rows.Scan(&r.EventID, &r.SessionID, &typ, &rank, &label, &r.Description,
			&r.Score, &conf, &x, &y, &w, &h, &r.TrackID, &ts, &created); err != nil {
			return nil, fmt.Errorf("scan hazard event: %w", err)
		}
		r.Type = hazard.EventType(typ)
		r.Severity = hazard.Severity(rank)
		r.Label = hazard.Label(label)
		r.Confidence = conf.Float64
		if x.Valid && y.Valid && w.Valid && h.Valid {
			r.Box = &hazard.Box{X: x.Float64, Y: y.Float64, W: w.Float64, H: h.Float64}
		}
		r.Time = time.Unix(0, ts).UTC()
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// EventCount is the number of events of one type and severity.
type EventCount struct {
	Type     hazard.EventType `json:"type"`
	Severity hazard.Severity  `json:"severity"`
	Count    int64            `json:"count"`
}

// EventCounts groups stored events by type and severity. An empty
// sessionID counts across all sessions.
func (db *DB) EventCounts(sessionID string) ([]EventCount, error) {
	q := `SELECT event_type, severity_rank, COUNT(*) FROM hazard_events`
	var args []any
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` GROUP BY event_type, severity_rank ORDER BY event_type, severity_rank`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query event counts: %w", err)
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var (
			c    EventCount
			typ  string
			rank int
		)
		if err := rows.Scan(&typ, &rank, &c.Count); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		c.Type = hazard.EventType(typ)
		c.Severity = hazard.Severity(rank)
		out = append(out, c)
	}
	return out, rows.Err()
}
