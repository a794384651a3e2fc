package hazard

// Rect is an axis-aligned region in normalised frame coordinates.
// Bounds are inclusive.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Expand grows r by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{MinX: r.MinX - margin, MinY: r.MinY - margin, MaxX: r.MaxX + margin, MaxY: r.MaxY + margin}
}

var (
	// ForwardPath is the broad zone ahead of the vehicle.
	ForwardPath = Rect{MinX: 0.1, MinY: 0.1, MaxX: 0.9, MaxY: 0.95}
	// CenterLane is the narrow strip approximating the ego lane.
	CenterLane = Rect{MinX: 0.35, MinY: 0.1, MaxX: 0.65, MaxY: 0.95}
)

// InForwardPath reports whether p lies in the forward path.
func InForwardPath(p Point) bool { return ForwardPath.Contains(p) }

// InCenterLane reports whether p lies in the center lane.
func InCenterLane(p Point) bool { return CenterLane.Contains(p) }

// NearForwardPath reports whether p lies in the forward path expanded by margin.
func NearForwardPath(p Point, margin float64) bool {
	return ForwardPath.Expand(margin).Contains(p)
}

// inAdjacentLane reports whether the mean x of the track's samples falls
// outside the center lane's lateral range.
func inAdjacentLane(t *Track) bool {
	if t == nil || len(t.Samples) == 0 {
		return false
	}
	var sum float64
	for _, s := range t.Samples {
		sum += s.Center.X
	}
	mean := sum / float64(len(t.Samples))
	return mean < CenterLane.MinX || mean > CenterLane.MaxX
}

// centerLaneRun counts consecutive center-lane frames ending at the current
// detection, walking back through the track while samples stay in the lane.
func centerLaneRun(current Point, t *Track, limit int) int {
	if !InCenterLane(current) {
		return 0
	}
	run := 1
	if t == nil {
		return run
	}
	for i := len(t.Samples) - 1; i >= 0 && run < limit; i-- {
		if !InCenterLane(t.Samples[i].Center) {
			break
		}
		run++
	}
	return run
}
