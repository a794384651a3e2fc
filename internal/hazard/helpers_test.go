package hazard

import (
	"math"
	"time"
)

var t0 = time.Unix(1_700_000_000, 0)

// at returns t0 offset by sec seconds.
func at(sec float64) time.Time {
	return t0.Add(time.Duration(sec * float64(time.Second)))
}

// det builds a square detection centred on (cx, cy) with the given area.
func det(label Label, cx, cy, area, conf float64) Detection {
	side := math.Sqrt(area)
	return Detection{
		Label:      label,
		Confidence: conf,
		Box:        Box{X: cx - side/2, Y: cy - side/2, W: side, H: side},
	}
}

type seed struct {
	x, y, area, sec float64
}

// seedTrack installs a track directly in the engine's store.
func seedTrack(e *Engine, label Label, samples ...seed) {
	for i, s := range samples {
		d := det(label, s.x, s.y, s.area, 0.9)
		idx, matched := -1, false
		if i > 0 {
			idx, matched = e.tracks.Len()-1, true
		}
		e.tracks.Update(d, idx, matched, at(s.sec))
	}
}

func eventsOfType(evs []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
