package hazard

import "time"

// Engine analyses one detection stream. It is not safe for concurrent use;
// run one Engine per stream and serialise calls.
type Engine struct {
	cfg       Config
	tracks    *TrackStore
	lastAlert map[string]time.Time

	lastAnalysis time.Time
	analysed     bool
}

// NewEngine creates an engine with cfg. A degenerate cfg is replaced by
// DefaultConfig.
func NewEngine(cfg Config) *Engine {
	if !cfg.sane() {
		opsf("degenerate engine config %+v, using defaults", cfg)
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:       cfg,
		tracks:    NewTrackStore(cfg.MaxTrackSamples, cfg.MaxTrackAge, cfg.MaxMatchDistance),
		lastAlert: make(map[string]time.Time),
	}
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Analyze runs one frame of detections observed at now through the track
// store and the hazard rules.
func (e *Engine) Analyze(detections []Detection, now time.Time) Result {
	cfg := e.cfg
	res := Result{MotionVectors: make(map[int]Vector)}

	e.tracks.Prune(now)

	var pending []Event
	for i, d := range detections {
		if !d.finite() || d.Box.W <= 0 || d.Box.H <= 0 {
			continue
		}
		d.Confidence = clamp01(d.Confidence)
		area := d.Area()
		if area < cfg.MinimumTrackingArea {
			continue
		}

		idx, matched := e.tracks.Match(d)
		var t *Track
		if matched {
			t = e.tracks.At(idx)
		}
		vel, hasVel := WeightedVelocity(t)
		growth := GrowthRate(d, t, now)
		center := d.Center()

		pending = pending[:0]
		if ev, ok := e.predictivePathRule(d, vel, hasVel, growth, now); ok {
			pending = append(pending, ev)
		}
		if hasVel && vel.Speed() > cfg.MinPredictionSpeed && area >= cfg.MotionVectorMinArea {
			res.MotionVectors[i] = vel
		}

		if InForwardPath(center) {
			switch {
			case d.Label.IsVulnerable():
				if ev, ok := e.pedestrianRule(d, now); ok {
					pending = append(pending, ev)
				}
			case d.Label.IsVehicle():
				required := cfg.RequiredCenterLaneFrames
				if centerLaneRun(center, t, required) >= required {
					if ev, ok := e.vehicleRule(d, t, vel, hasVel, growth, now); ok {
						pending = append(pending, ev)
					}
				}
			}
		}

		id := e.tracks.Update(d, idx, matched, now)
		for _, ev := range pending {
			ev.TrackID = id
			res.Events = append(res.Events, ev)
		}
	}

	e.lastAnalysis = now
	e.analysed = true
	return res
}

// Reset clears tracks, the last analysis time and every cooldown. Call it
// whenever the input stream changes.
func (e *Engine) Reset() {
	diagf("reset: dropping %d tracks and %d cooldowns", e.tracks.Len(), len(e.lastAlert))
	e.tracks.Reset()
	e.lastAlert = make(map[string]time.Time)
	e.lastAnalysis = time.Time{}
	e.analysed = false
}

// LastAnalysisTime returns the timestamp of the most recent Analyze call.
// It reports false for a fresh or reset engine.
func (e *Engine) LastAnalysisTime() (time.Time, bool) {
	return e.lastAnalysis, e.analysed
}

// Tracks returns a copy of the live tracks.
func (e *Engine) Tracks() []Track {
	return e.tracks.Snapshot()
}
