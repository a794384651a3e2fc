package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionEnded is returned when ending a session that already ended.
var ErrSessionEnded = errors.New("session already ended")

// Session is one continuous detection stream. A reset of the engine starts
// a new session.
type Session struct {
	ID        string     `json:"session_id"`
	Source    string     `json:"source"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StartSession records a new session for source.
func (db *DB) StartSession(source string) (Session, error) {
	s := Session{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: db.clock.Now().UTC(),
	}
	err := db.retryOnBusy(func() error {
		_, err := db.Exec(`INSERT INTO hazard_sessions (session_id, source, started_at) VALUES (?, ?, ?)`,
			s.ID, s.Source, s.StartedAt.UnixNano())
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

// EndSession marks the session ended at the given time.
func (db *DB) EndSession(id string, at time.Time) error {
	var affected int64
	err := db.retryOnBusy(func() error {
		res, err := db.Exec(`UPDATE hazard_sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL`,
			at.UnixNano(), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := db.Session(id); err != nil {
		return err
	}
	return fmt.Errorf("end session %s: %w", id, ErrSessionEnded)
}

// Session returns one session by ID.
func (db *DB) Session(id string) (Session, error) {
	row := db.QueryRow(`SELECT session_id, source, started_at, ended_at FROM hazard_sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}

// Sessions returns the most recently started sessions first. A limit of
// zero or less returns 100.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT session_id, source, started_at, ended_at FROM hazard_sessions
		ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Source, &started, &ended); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return s, nil
}
