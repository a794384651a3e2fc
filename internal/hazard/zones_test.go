package hazard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegions(t *testing.T) {
	tests := []struct {
		name    string
		p       Point
		forward bool
		center  bool
		near    bool
	}{
		{"frame centre", Point{0.5, 0.5}, true, true, true},
		{"left of lane", Point{0.2, 0.5}, true, false, true},
		{"lane edge inclusive", Point{0.35, 0.1}, true, true, true},
		{"just outside forward path", Point{0.95, 0.5}, false, false, true},
		{"beyond near margin", Point{1.05, 0.5}, false, false, false},
		{"top strip", Point{0.5, 0.05}, false, false, true},
		{"bottom edge", Point{0.5, 0.95}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Repeated calls in any order give the same answer.
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.near, NearForwardPath(tt.p, 0.12))
				assert.Equal(t, tt.center, InCenterLane(tt.p))
				assert.Equal(t, tt.forward, InForwardPath(tt.p))
			}
		})
	}
}

func TestInAdjacentLane(t *testing.T) {
	assert.False(t, inAdjacentLane(nil))
	assert.False(t, inAdjacentLane(&Track{}))

	centred := &Track{Samples: []Sample{{Center: Point{0.5, 0.5}}, {Center: Point{0.45, 0.5}}}}
	assert.False(t, inAdjacentLane(centred))

	drifting := &Track{Samples: []Sample{
		{Center: Point{0.1, 0.5}}, {Center: Point{0.1, 0.5}}, {Center: Point{0.15, 0.5}}, {Center: Point{0.38, 0.5}},
	}}
	assert.True(t, inAdjacentLane(drifting))
}

func TestCenterLaneRun(t *testing.T) {
	inLane := Sample{Center: Point{0.5, 0.5}}
	outLane := Sample{Center: Point{0.8, 0.5}}

	assert.Equal(t, 0, centerLaneRun(Point{0.8, 0.5}, nil, 2))
	assert.Equal(t, 1, centerLaneRun(Point{0.5, 0.5}, nil, 2))
	assert.Equal(t, 2, centerLaneRun(Point{0.5, 0.5}, &Track{Samples: []Sample{inLane}}, 2))
	assert.Equal(t, 1, centerLaneRun(Point{0.5, 0.5}, &Track{Samples: []Sample{inLane, outLane}}, 2))
	assert.Equal(t, 3, centerLaneRun(Point{0.5, 0.5}, &Track{Samples: []Sample{outLane, inLane, inLane}}, 5))
}
