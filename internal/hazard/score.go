package hazard

import "math"

const (
	areaWeight       = 0.4
	centralityWeight = 0.25
	growthWeight     = 0.35
	vulnerableBoost  = 0.15

	maxLatencyRatio = 1.5
	latencyBonus    = 0.1
)

var frameCenter = Point{X: 0.5, Y: 0.5}

// Score combines area, path centrality, growth and object type into a
// hazard score in [0,1], discounted by detection confidence.
func (c Config) Score(d Detection, growth float64, vulnerable bool) float64 {
	area := math.Min(1, d.Area()/c.LargeAreaThreshold)
	centrality := math.Max(0, 1-2*distance(d.Center(), frameCenter))
	approach := clamp01(growth / c.CriticalGrowthThreshold)

	score := areaWeight*area + centralityWeight*centrality + growthWeight*approach
	if vulnerable {
		score += vulnerableBoost
	}
	score *= 0.7 + 0.3*clamp01(d.Confidence)
	return clamp01(score)
}

// CompensateLatency projects an approaching object's area forward by the
// configured system latency and boosts the score by the projected growth.
// Scores for objects that are not growing are returned unchanged.
func (c Config) CompensateLatency(score, area, growth float64) float64 {
	if growth <= 0 || area <= 0 {
		return score
	}
	projected := area + growth*c.LatencyCompensation.Seconds()
	ratio := math.Min(projected/area, maxLatencyRatio)
	return clamp01(math.Min(1, score*ratio+latencyBonus))
}

// SeverityFor maps a score to a severity, escalating closing-fast objects.
func SeverityFor(score float64, closingFast bool) Severity {
	switch {
	case score >= 0.75, closingFast && score >= 0.5:
		return SeverityCritical
	case score >= 0.5:
		return SeverityHigh
	case score >= 0.3:
		return SeverityMedium
	}
	return SeverityLow
}
