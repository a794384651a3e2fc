package hazard

import (
	"fmt"
	"strings"
	"time"
)

// EventType classifies a hazard event.
type EventType string

const (
	EventVehicleAhead    EventType = "vehicle_ahead"
	EventPedestrianAhead EventType = "pedestrian_ahead"
	EventClosingFast     EventType = "closing_fast"
	EventFuturePath      EventType = "future_path"
)

// ParseEventType validates s as an EventType.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventVehicleAhead, EventPedestrianAhead, EventClosingFast, EventFuturePath:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Severity is an ordinal hazard level. Higher is more urgent.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// MarshalText encodes the severity as its name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Event is a single hazard warning for one detection in one frame.
type Event struct {
	Type        EventType  `json:"type"`
	Severity    Severity   `json:"severity"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
	Object      *Detection `json:"object,omitempty"`
	TrackID     int64      `json:"track_id,omitempty"`
	Score       float64    `json:"hazard_score"`
}

// Result is the output of one Analyze call. MotionVectors is keyed by the
// detection's index in the input slice.
type Result struct {
	Events        []Event
	MotionVectors map[int]Vector
}
