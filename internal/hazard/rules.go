package hazard

import (
	"math"
	"time"
)

// Alert key prefixes. Keys are "<prefix>_<label>", e.g. "veh_car".
const (
	keyVehicle     = "veh"
	keyClosing     = "closing"
	keyPedestrian  = "ped"
	keyPredictive  = "pred"
	areaBoostScale = 6.0
	maxAreaBoost   = 2.5

	predictedGrowthFactor = 1.02
	approachDY            = 0.01
	highSeverityDY        = 0.08
)

func alertKey(prefix string, l Label) string {
	return prefix + "_" + string(l)
}

// cooling reports whether key fired less than AlertCooldown before now.
func (e *Engine) cooling(key string, now time.Time) bool {
	last, ok := e.lastAlert[key]
	return ok && now.Sub(last) < e.cfg.AlertCooldown
}

func (e *Engine) stamp(now time.Time, keys ...string) {
	for _, k := range keys {
		e.lastAlert[k] = now
	}
}

func newEvent(typ EventType, sev Severity, d Detection, desc string, score float64, now time.Time) Event {
	obj := d
	return Event{
		Type:        typ,
		Severity:    sev,
		Timestamp:   now,
		Description: desc,
		Object:      &obj,
		Score:       score,
	}
}

// pedestrianRule warns about a vulnerable road user in the forward path.
// Growth is ignored because pedestrian motion is not monotonic.
func (e *Engine) pedestrianRule(d Detection, now time.Time) (Event, bool) {
	key := alertKey(keyPedestrian, d.Label)
	if e.cooling(key, now) {
		return Event{}, false
	}
	score := e.cfg.Score(d, 0, true)
	e.stamp(now, key)
	return newEvent(EventPedestrianAhead, SeverityFor(score, false), d, d.Label.DisplayName()+" ahead", score, now), true
}

// vehicleRule warns about a vehicle that has held the center lane and is
// close or approaching. Receding vehicles never warn.
//
// vehicle_ahead and closing_fast use separate cooldown keys so an
// escalation to closing_fast is not masked by an earlier vehicle_ahead.
// A closing_fast event also restarts the vehicle_ahead cooldown.
func (e *Engine) vehicleRule(d Detection, t *Track, vel Vector, hasVel bool, growth float64, now time.Time) (Event, bool) {
	cfg := e.cfg
	if growth < cfg.RecedingGrowthThreshold || (hasVel && vel.DY < cfg.RecedingVelocityYThreshold) {
		return Event{}, false
	}
	area := d.Area()
	if area < cfg.VehicleAheadMinArea {
		return Event{}, false
	}
	approaching := growth > cfg.ApproachGrowthThreshold && area > cfg.MinimumTrackingArea*3
	if area <= cfg.CloseAreaThreshold && !approaching {
		return Event{}, false
	}

	score := cfg.CompensateLatency(cfg.Score(d, growth, false), area, growth)

	adjacent := inAdjacentLane(t)
	prev, hasPrev := previousGrowth(t)
	sustained := hasPrev && growth > cfg.SustainedGrowthThreshold && prev > cfg.SustainedGrowthThreshold
	closingFast := growth > cfg.RapidGrowthThreshold && sustained && !adjacent

	typ, key, desc := EventVehicleAhead, alertKey(keyVehicle, d.Label), d.Label.DisplayName()+" ahead"
	if closingFast {
		typ, key, desc = EventClosingFast, alertKey(keyClosing, d.Label), d.Label.DisplayName()+" closing fast"
	}
	if e.cooling(key, now) {
		return Event{}, false
	}

	sev := SeverityFor(score, closingFast)
	if adjacent {
		sev = SeverityLow
	}
	// closing_fast is keyed apart from vehicle_ahead so an approach that
	// becomes sustained still warns; it also restarts the veh_ key.
	if closingFast {
		e.stamp(now, key, alertKey(keyVehicle, d.Label))
	} else {
		e.stamp(now, key)
	}
	return newEvent(typ, sev, d, desc, score, now), true
}

// predictivePathRule projects a moving object forward by the prediction
// horizon and warns when it is forecast to enter the center lane while
// getting closer.
func (e *Engine) predictivePathRule(d Detection, vel Vector, hasVel bool, growth float64, now time.Time) (Event, bool) {
	cfg := e.cfg
	vulnerable := d.Label.IsVulnerable()
	if !vulnerable && !d.Label.IsVehicle() {
		return Event{}, false
	}
	center := d.Center()
	if !NearForwardPath(center, cfg.NearPathMargin) {
		return Event{}, false
	}
	if !hasVel || vel.Speed() < cfg.MinPredictionSpeed {
		return Event{}, false
	}
	key := alertKey(keyPredictive, d.Label)
	if e.cooling(key, now) {
		return Event{}, false
	}

	area := d.Area()
	horizon := cfg.PredictionHorizon.Seconds()
	boost := math.Min(1+area*areaBoostScale, maxAreaBoost)
	disp := vel.Scale(horizon * boost)
	predicted := center.Add(disp)
	predictedArea := area + growth*horizon

	if !InCenterLane(predicted) {
		return Event{}, false
	}
	if predictedArea <= area*predictedGrowthFactor && disp.DY <= approachDY {
		return Event{}, false
	}
	// Already imminent; the direct rules own it.
	if InForwardPath(center) && area > cfg.CloseAreaThreshold {
		return Event{}, false
	}

	sev := SeverityMedium
	if predictedArea > cfg.CloseAreaThreshold || disp.DY > highSeverityDY {
		sev = SeverityHigh
	}
	score := cfg.Score(d, growth, vulnerable)
	e.stamp(now, key)
	return newEvent(EventFuturePath, sev, d, d.Label.DisplayName()+" entering path", score, now), true
}
