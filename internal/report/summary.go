// Package report summarises hazard events and renders timeline charts.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a list of hazard events.
type Summary struct {
	Events     int                      `json:"events"`
	ByType     map[hazard.EventType]int `json:"by_type"`
	BySeverity map[hazard.Severity]int  `json:"by_severity"`
	MeanScore  float64                  `json:"mean_score"`
	StdDev     float64                  `json:"stddev_score"`
	P95Score   float64                  `json:"p95_score"`
	PeakScore  float64                  `json:"peak_score"`
	First      time.Time                `json:"first,omitempty"`
	Last       time.Time                `json:"last,omitempty"`
}

// Summarize counts events by type and severity and computes score
// statistics. StdDev is the sample standard deviation and is zero for
// fewer than two events.
func Summarize(events []hazard.Event) Summary {
	s := Summary{
		Events:     len(events),
		ByType:     make(map[hazard.EventType]int),
		BySeverity: make(map[hazard.Severity]int),
	}
	if len(events) == 0 {
		return s
	}

	scores := make([]float64, len(events))
	for i, ev := range events {
		s.ByType[ev.Type]++
		s.BySeverity[ev.Severity]++
		scores[i] = ev.Score
		if s.First.IsZero() || ev.Timestamp.Before(s.First) {
			s.First = ev.Timestamp
		}
		if ev.Timestamp.After(s.Last) {
			s.Last = ev.Timestamp
		}
	}

	s.MeanScore = stat.Mean(scores, nil)
	if len(scores) > 1 {
		s.StdDev = stat.StdDev(scores, nil)
	}
	sort.Float64s(scores)
	s.P95Score = stat.Quantile(0.95, stat.Empirical, scores, nil)
	s.PeakScore = floats.Max(scores)
	return s
}

// Span returns the time between the first and last event.
func (s Summary) Span() time.Duration {
	return s.Last.Sub(s.First)
}

var eventTypes = []hazard.EventType{
	hazard.EventVehicleAhead,
	hazard.EventClosingFast,
	hazard.EventPedestrianAhead,
	hazard.EventFuturePath,
}

// WriteText prints a human-readable summary.
func (s Summary) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "events: %d over %v\n", s.Events, s.Span().Round(time.Millisecond)); err != nil {
		return err
	}
	for _, t := range eventTypes {
		fmt.Fprintf(w, "  %-17s %d\n", t, s.ByType[t])
	}
	for sev := hazard.SeverityCritical; sev >= hazard.SeverityLow; sev-- {
		fmt.Fprintf(w, "  %-17s %d\n", sev, s.BySeverity[sev])
	}
	_, err := fmt.Fprintf(w, "score: mean=%.3f stddev=%.3f p95=%.3f peak=%.3f\n",
		s.MeanScore, s.StdDev, s.P95Score, s.PeakScore)
	return err
}
