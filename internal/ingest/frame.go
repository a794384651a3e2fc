package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
)

// ErrInvalidFrame wraps every frame validation failure.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one detector output message.
type Frame struct {
	TS         float64         `json:"ts"` // seconds since Unix epoch
	Seq        int64           `json:"seq,omitempty"`
	Source     string          `json:"source,omitempty"`
	Detections []WireDetection `json:"detections"`
}

// WireDetection is a detection as the detector emits it. Label is free text.
type WireDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        hazard.Box `json:"box"`
}

// NewFrame builds a Frame from engine detections, used by replay tools and
// tests that generate traffic.
func NewFrame(ts time.Time, seq int64, source string, dets []hazard.Detection) Frame {
	f := Frame{
		TS:         float64(ts.UnixNano()) / 1e9,
		Seq:        seq,
		Source:     source,
		Detections: make([]WireDetection, len(dets)),
	}
	for i, d := range dets {
		f.Detections[i] = WireDetection{Label: string(d.Label), Confidence: d.Confidence, Box: d.Box}
	}
	return f
}

// DecodeFrame parses and validates one JSON frame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks the timestamp and every detection.
func (f Frame) Validate() error {
	if !(f.TS > 0) || math.IsInf(f.TS, 0) {
		return fmt.Errorf("%w: missing or invalid ts %v", ErrInvalidFrame, f.TS)
	}
	for i, d := range f.Detections {
		if !finite(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("%w: detection %d: confidence %v outside [0,1]", ErrInvalidFrame, i, d.Confidence)
		}
		b := d.Box
		if !finite(b.X) || !finite(b.Y) || !finite(b.W) || !finite(b.H) {
			return fmt.Errorf("%w: detection %d: non-finite box", ErrInvalidFrame, i)
		}
		if b.W < 0 || b.H < 0 {
			return fmt.Errorf("%w: detection %d: negative box size %vx%v", ErrInvalidFrame, i, b.W, b.H)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Time returns the frame timestamp.
func (f Frame) Time() time.Time {
	sec, frac := math.Modf(f.TS)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// HazardDetections maps wire detections onto the engine's label set.
func (f Frame) HazardDetections() []hazard.Detection {
	out := make([]hazard.Detection, len(f.Detections))
	for i, d := range f.Detections {
		out[i] = hazard.Detection{
			Label:      hazard.ParseLabel(d.Label),
			Confidence: d.Confidence,
			Box:        d.Box,
		}
	}
	return out
}
