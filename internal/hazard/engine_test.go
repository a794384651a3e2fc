package hazard

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPedestrianAheadThenCooldown(t *testing.T) {
	e := NewEngine(DefaultConfig())
	person := det(LabelPerson, 0.5, 0.5, 0.04, 0.9)

	res := e.Analyze([]Detection{person}, at(0))
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, EventPedestrianAhead, ev.Type)
	assert.GreaterOrEqual(t, ev.Severity, SeverityMedium)
	assert.Equal(t, "Person ahead", ev.Description)
	assert.Equal(t, at(0), ev.Timestamp)
	require.NotNil(t, ev.Object)
	assert.Equal(t, LabelPerson, ev.Object.Label)
	assert.NotZero(t, ev.TrackID)

	res = e.Analyze([]Detection{person}, at(1))
	assert.Empty(t, res.Events, "same key inside cooldown")

	res = e.Analyze([]Detection{person}, at(3.99))
	assert.Empty(t, res.Events)

	res = e.Analyze([]Detection{person}, at(4.5))
	assert.Len(t, eventsOfType(res.Events, EventPedestrianAhead), 1, "cooldown expired")
}

func TestClosingFastCar(t *testing.T) {
	e := NewEngine(DefaultConfig())

	res := e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.05, 0.9)}, at(0))
	assert.Empty(t, res.Events, "single frame in lane is not sustained")

	res = e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.07, 0.9)}, at(0.2))
	require.Len(t, res.Events, 1)
	assert.Equal(t, EventVehicleAhead, res.Events[0].Type, "growth not yet sustained over two pairs")

	res = e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.09, 0.9)}, at(0.4))
	closing := eventsOfType(res.Events, EventClosingFast)
	require.Len(t, closing, 1)
	assert.Equal(t, "Car closing fast", closing[0].Description)
	assert.GreaterOrEqual(t, closing[0].Severity, SeverityHigh)
	assert.Equal(t, res.Events[0].TrackID, closing[0].TrackID)

	res = e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.11, 0.9)}, at(0.6))
	assert.Empty(t, res.Events, "closing_fast restarts both vehicle cooldowns")
}

func TestAdjacentLaneCapsSeverity(t *testing.T) {
	e := NewEngine(DefaultConfig())
	seedTrack(e, LabelCar,
		seed{0.10, 0.5, 0.06, 0},
		seed{0.10, 0.5, 0.07, 0.2},
		seed{0.15, 0.5, 0.08, 0.4},
		seed{0.38, 0.5, 0.10, 0.6},
	)

	res := e.Analyze([]Detection{det(LabelCar, 0.45, 0.5, 0.12, 0.9)}, at(0.8))
	vehicle := eventsOfType(res.Events, EventVehicleAhead)
	require.Len(t, vehicle, 1)
	assert.Equal(t, SeverityLow, vehicle[0].Severity)
	assert.GreaterOrEqual(t, vehicle[0].Score, 0.75, "raw score is high")
	assert.Empty(t, eventsOfType(res.Events, EventClosingFast), "adjacent traffic never closes fast")
}

func TestFuturePathBicycle(t *testing.T) {
	e := NewEngine(DefaultConfig())
	seedTrack(e, LabelBicycle,
		seed{0.980, 0.496, 0.02, 0},
		seed{0.965, 0.498, 0.02, 0.05},
	)

	res := e.Analyze([]Detection{det(LabelBicycle, 0.95, 0.5, 0.02, 0.9)}, at(0.1))
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, EventFuturePath, ev.Type)
	assert.Equal(t, "Bicycle entering path", ev.Description)
	assert.Equal(t, SeverityMedium, ev.Severity)
	assert.Contains(t, res.MotionVectors, 0)
	assert.InDelta(t, -0.3, res.MotionVectors[0].DX, 1e-6)
}

func TestFuturePathFiresOnceCenterLaneIsReachable(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Drifting left at 0.1/s and slightly down. With a 1.12 area boost the
	// projected centre reaches the lane edge once x <= ~0.784.
	fired := 0
	for k := 0; k <= 25; k++ {
		x := 0.95 - 0.01*float64(k)
		y := 0.4 + 0.004*float64(k)
		res := e.Analyze([]Detection{det(LabelBicycle, x, y, 0.02, 0.9)}, at(0.1*float64(k)))
		for _, ev := range eventsOfType(res.Events, EventFuturePath) {
			fired++
			assert.LessOrEqual(t, ev.Object.Center().X, 0.785, "fired before the lane was reachable at k=%d", k)
		}
	}
	assert.Equal(t, 1, fired, "fires once, then cools down")
}

func TestRecedingVehicleNeverWarns(t *testing.T) {
	t.Run("shrinking", func(t *testing.T) {
		e := NewEngine(DefaultConfig())
		seedTrack(e, LabelTruck, seed{0.5, 0.5, 0.25, 0}, seed{0.5, 0.5, 0.20, 0.2})
		res := e.Analyze([]Detection{det(LabelTruck, 0.5, 0.5, 0.15, 0.9)}, at(0.4))
		assert.Empty(t, eventsOfType(res.Events, EventVehicleAhead))
		assert.Empty(t, eventsOfType(res.Events, EventClosingFast))
	})
	t.Run("moving up the frame", func(t *testing.T) {
		e := NewEngine(DefaultConfig())
		seedTrack(e, LabelCar, seed{0.5, 0.60, 0.12, 0}, seed{0.5, 0.55, 0.12, 0.2})
		res := e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.12, 0.9)}, at(0.4))
		assert.Empty(t, eventsOfType(res.Events, EventVehicleAhead))
		assert.Empty(t, eventsOfType(res.Events, EventClosingFast))
	})
}

func TestVehicleAreaGates(t *testing.T) {
	cases := []struct {
		name   string
		prev   float64
		cur    float64
		expect bool
	}{
		{"distant even when growing", 0.03, 0.05, false},
		{"mid size, static", 0.07, 0.07, false},
		{"mid size, approaching", 0.065, 0.07, true},
		{"close and static", 0.10, 0.10, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(DefaultConfig())
			seedTrack(e, LabelCar, seed{0.5, 0.5, tc.prev, 0})
			res := e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, tc.cur, 0.9)}, at(0.2))
			assert.Equal(t, tc.expect, len(eventsOfType(res.Events, EventVehicleAhead)) == 1)
		})
	}
}

func TestSingleFrameInLaneDoesNotWarn(t *testing.T) {
	e := NewEngine(DefaultConfig())
	var all []Event
	all = append(all, e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.12, 0.9)}, at(0)).Events...)
	all = append(all, e.Analyze([]Detection{det(LabelCar, 0.75, 0.5, 0.12, 0.9)}, at(0.2)).Events...)
	all = append(all, e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.12, 0.9)}, at(0.4)).Events...)
	assert.Empty(t, eventsOfType(all, EventVehicleAhead))
	assert.Empty(t, eventsOfType(all, EventClosingFast))
}

func TestStaleTracksArePruned(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.05, 0.9)}, at(0))
	e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.06, 0.9)}, at(0.2))
	require.Len(t, e.Tracks(), 1)
	firstID := e.Tracks()[0].ID

	e.Analyze(nil, at(2.1))
	assert.Empty(t, e.Tracks())

	e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.09, 0.9)}, at(2.2))
	tracks := e.Tracks()
	require.Len(t, tracks, 1)
	assert.NotEqual(t, firstID, tracks[0].ID)
	assert.Len(t, tracks[0].Samples, 1, "fresh track starts over")
}

func TestCooldownMonotonic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	last := map[string]time.Time{}
	for k := 0; k < 300; k++ {
		now := at(0.1 * float64(k))
		// A pedestrian pacing across the lane and a car creeping closer.
		px := 0.4 + 0.1*math.Sin(float64(k)/10)
		dets := []Detection{
			det(LabelPerson, px, 0.6, 0.03, 0.8),
			det(LabelCar, 0.5, 0.45, 0.07+0.0005*float64(k%40), 0.9),
		}
		for _, ev := range e.Analyze(dets, now).Events {
			key := string(ev.Type) + "/" + string(ev.Object.Label)
			if prev, ok := last[key]; ok {
				assert.GreaterOrEqual(t, ev.Timestamp.Sub(prev), 4*time.Second, "key %s", key)
			}
			last[key] = ev.Timestamp
		}
	}
	assert.NotEmpty(t, last)
}

func TestResetClearsState(t *testing.T) {
	e := NewEngine(DefaultConfig())
	_, ok := e.LastAnalysisTime()
	assert.False(t, ok)

	person := det(LabelPerson, 0.5, 0.5, 0.04, 0.9)
	require.Len(t, e.Analyze([]Detection{person}, at(0)).Events, 1)
	ts, ok := e.LastAnalysisTime()
	require.True(t, ok)
	assert.Equal(t, at(0), ts)

	e.Reset()
	_, ok = e.LastAnalysisTime()
	assert.False(t, ok)
	assert.Empty(t, e.Tracks())

	assert.Len(t, e.Analyze([]Detection{person}, at(1)).Events, 1, "cooldown cleared by reset")
}

func TestMotionVectors(t *testing.T) {
	e := NewEngine(DefaultConfig())
	for k := 0; k < 3; k++ {
		x := 0.2 + 0.02*float64(k)
		dets := []Detection{
			det(LabelCar, x, 0.3, 0.02, 0.9),
			det(LabelPerson, 0.8-x/2, 0.8, 0.005, 0.9), // moving but tiny
			det(LabelBus, 0.7, 0.3, 0.05, 0.9),         // static
		}
		res := e.Analyze(dets, at(0.1*float64(k)))
		if k < 2 {
			assert.Empty(t, res.MotionVectors, "frame %d", k)
			continue
		}
		require.Len(t, res.MotionVectors, 1)
		assert.InDelta(t, 0.2, res.MotionVectors[0].DX, 1e-6)
	}
}

func TestBelowTrackingAreaIgnored(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res := e.Analyze([]Detection{det(LabelPerson, 0.5, 0.5, 0.002, 0.9)}, at(0))
	assert.Empty(t, res.Events)
	assert.Empty(t, e.Tracks())
}

func TestDegenerateInputNeverPanics(t *testing.T) {
	e := NewEngine(DefaultConfig())
	dets := []Detection{
		{Label: LabelCar, Confidence: math.NaN(), Box: Box{X: 0.4, Y: 0.4, W: 0.3, H: 0.3}},
		{Label: LabelCar, Confidence: 0.9, Box: Box{X: math.Inf(1), Y: 0.4, W: 0.3, H: 0.3}},
		{Label: LabelCar, Confidence: 0.9, Box: Box{X: 0.4, Y: 0.4, W: -0.3, H: -0.3}},
		{Label: LabelCar, Confidence: 0.9, Box: Box{X: 0.4, Y: 0.4, W: 0, H: 0.3}},
		{Label: LabelPerson, Confidence: 7, Box: Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}},
	}
	assert.NotPanics(t, func() {
		res := e.Analyze(dets, at(0))
		require.Len(t, res.Events, 1)
		assert.LessOrEqual(t, res.Events[0].Score, 1.0)
		assert.Equal(t, 1.0, res.Events[0].Object.Confidence, "confidence clamped")

		// Duplicate and backwards timestamps.
		e.Analyze(dets, at(0))
		e.Analyze(dets, at(-5))
	})
	for _, tr := range e.Tracks() {
		assert.LessOrEqual(t, len(tr.Samples), 5)
	}
}

func TestDirectAndPredictiveRulesBothFire(t *testing.T) {
	e := NewEngine(DefaultConfig())
	seedTrack(e, LabelBicycle, seed{0.86, 0.496, 0.02, 0}, seed{0.83, 0.498, 0.02, 0.1})

	res := e.Analyze([]Detection{det(LabelBicycle, 0.80, 0.5, 0.02, 0.9)}, at(0.2))
	assert.Len(t, eventsOfType(res.Events, EventFuturePath), 1)
	assert.Len(t, eventsOfType(res.Events, EventPedestrianAhead), 1)
}

func TestDegenerateConfigFallsBack(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, DefaultConfig(), e.Config())
}

func TestVehicleRuleCooldownKeys(t *testing.T) {
	e := NewEngine(DefaultConfig())

	e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.05, 0.9)}, at(0))
	res := e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.07, 0.9)}, at(0.2))
	require.Len(t, eventsOfType(res.Events, EventVehicleAhead), 1)
	assert.Contains(t, e.lastAlert, "veh_car")
	assert.NotContains(t, e.lastAlert, "closing_car")

	res = e.Analyze([]Detection{det(LabelCar, 0.5, 0.5, 0.09, 0.9)}, at(0.4))
	require.Len(t, eventsOfType(res.Events, EventClosingFast), 1, "vehicle_ahead does not suppress closing_fast")
	assert.Equal(t, at(0.4), e.lastAlert["closing_car"])
	assert.Equal(t, at(0.4), e.lastAlert["veh_car"], "closing_fast restarts the vehicle_ahead cooldown")
}
