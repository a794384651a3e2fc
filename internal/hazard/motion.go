package hazard

import "time"

// WeightedVelocity averages the pairwise velocities of a track's samples,
// weighting pair i of n by 0.6 + i/n so recent motion dominates. Pairs with
// non-positive elapsed time are skipped. It returns false when fewer than
// two samples exist or no pair carries weight.
func WeightedVelocity(t *Track) (Vector, bool) {
	if t == nil || len(t.Samples) < 2 {
		return Vector{}, false
	}
	pairs := len(t.Samples) - 1
	var sum Vector
	var totalWeight float64
	for i := 1; i < len(t.Samples); i++ {
		prev, cur := t.Samples[i-1], t.Samples[i]
		dt := cur.Time.Sub(prev.Time).Seconds()
		if dt <= 0 {
			continue
		}
		w := 0.6 + float64(i-1)/float64(pairs)
		sum.DX += (cur.Center.X - prev.Center.X) / dt * w
		sum.DY += (cur.Center.Y - prev.Center.Y) / dt * w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return Vector{}, false
	}
	return sum.Scale(1 / totalWeight), true
}

// GrowthRate returns the area change per second between the track's newest
// sample and d observed at now. It is zero without a prior sample or when
// no time has elapsed.
func GrowthRate(d Detection, t *Track, now time.Time) float64 {
	if t == nil {
		return 0
	}
	last, ok := t.Last()
	if !ok {
		return 0
	}
	dt := now.Sub(last.Time).Seconds()
	if dt <= 0 {
		return 0
	}
	return (d.Area() - last.Area) / dt
}

// previousGrowth is the growth rate between the two newest samples.
func previousGrowth(t *Track) (float64, bool) {
	if t == nil || len(t.Samples) < 2 {
		return 0, false
	}
	prev, cur := t.Samples[len(t.Samples)-2], t.Samples[len(t.Samples)-1]
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return (cur.Area - prev.Area) / dt, true
}
