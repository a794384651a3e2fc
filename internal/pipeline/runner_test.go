package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Unix(1_750_000_000, 0)

// pedestrianFrame returns a frame with one person in the middle of the road.
func pedestrianFrame(seq int64, sec float64) ingest.Frame {
	ts := base.Add(time.Duration(sec * float64(time.Second)))
	return ingest.NewFrame(ts, seq, "test", []hazard.Detection{
		{Label: hazard.LabelPerson, Confidence: 0.9, Box: hazard.Box{X: 0.45, Y: 0.4, W: 0.1, H: 0.3}},
	})
}

// startRunner runs r in the background and returns a stop function that
// waits for Run to return.
func startRunner(t *testing.T, r *Runner) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
		}
	}
}

// waitAnalysed blocks until the runner has analysed n frames.
func waitAnalysed(t *testing.T, r *Runner, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Stats().Analysed >= n }, 2*time.Second, time.Millisecond)
}

func TestRunnerPublishesEvents(t *testing.T) {
	col := &Collector{}
	r := NewRunner(Config{
		Engine:    hazard.DefaultConfig(),
		Clock:     timeutil.NewMockClock(base),
		Sinks:     []Sink{col},
		SessionID: "s1",
	})
	stop := startRunner(t, r)
	defer stop()

	ctx := context.Background()
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(1, 0)))
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(2, 0.5)))
	waitAnalysed(t, r, 2)

	results := col.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].SessionID)
	assert.Equal(t, int64(1), results[0].Seq)

	evs := col.Events()
	require.Len(t, evs, 1, "second frame is inside the pedestrian cooldown")
	assert.Equal(t, hazard.EventPedestrianAhead, evs[0].Type)

	st := r.Stats()
	assert.Equal(t, int64(2), st.Accepted)
	assert.Equal(t, int64(2), st.Analysed)
	assert.Equal(t, int64(1), st.Events)
	assert.Zero(t, st.Dropped)
	assert.Zero(t, st.Late)
}

func TestRunnerDiscardsLateResults(t *testing.T) {
	var slow atomic.Bool
	clock := timeutil.NewMockClock(base)
	clock.OnNow = func(c *timeutil.MockClock) {
		if slow.Load() {
			c.Advance(150 * time.Millisecond)
		}
	}

	col := &Collector{}
	r := NewRunner(Config{
		Engine:     hazard.DefaultConfig(),
		MaxLatency: 100 * time.Millisecond,
		Clock:      clock,
		Sinks:      []Sink{col},
		SessionID:  "s1",
	})
	stop := startRunner(t, r)
	defer stop()

	ctx := context.Background()
	slow.Store(true)
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(1, 0)))
	waitAnalysed(t, r, 1)

	st := r.Stats()
	assert.Equal(t, int64(1), st.Late)
	assert.Equal(t, 150*time.Millisecond, st.LastLatency)
	assert.Empty(t, col.Results(), "late results are not published")

	slow.Store(false)
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(2, 5)))
	waitAnalysed(t, r, 2)
	assert.Len(t, col.Results(), 1)
	assert.Equal(t, int64(1), r.Stats().Late)
}

func TestRunnerDropsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := SinkFunc(func(FrameResult) error {
		entered <- struct{}{}
		<-release
		return nil
	})

	r := NewRunner(Config{Engine: hazard.DefaultConfig(), Sinks: []Sink{blocking}, SessionID: "s1"})
	stop := startRunner(t, r)
	defer stop()

	require.NoError(t, r.SubmitWait(context.Background(), pedestrianFrame(1, 0)))
	<-entered

	assert.False(t, r.Submit(pedestrianFrame(2, 0.1)))
	assert.False(t, r.Submit(pedestrianFrame(3, 0.2)))
	close(release)

	st := r.Stats()
	assert.Equal(t, int64(2), st.Dropped)
	assert.Equal(t, int64(1), st.Accepted)
}

func TestRunnerResetStartsNewSession(t *testing.T) {
	col := &Collector{}
	r := NewRunner(Config{
		Engine:    hazard.DefaultConfig(),
		Sinks:     []Sink{col},
		SessionID: "s1",
		OnReset:   func() (string, error) { return "s2", nil },
	})
	stop := startRunner(t, r)
	defer stop()

	ctx := context.Background()
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(1, 0)))
	require.NoError(t, r.Reset(ctx))
	require.NoError(t, r.SubmitWait(ctx, pedestrianFrame(2, 0.5)))
	waitAnalysed(t, r, 2)

	results := col.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].SessionID)
	assert.Equal(t, "s2", results[1].SessionID)
	assert.Len(t, col.Events(), 2, "reset clears the cooldown")
	assert.Equal(t, int64(1), r.Stats().Resets)
}

func TestRunnerResetHookError(t *testing.T) {
	hookErr := errors.New("db down")
	r := NewRunner(Config{
		Engine:    hazard.DefaultConfig(),
		SessionID: "s1",
		OnReset:   func() (string, error) { return "", hookErr },
	})
	stop := startRunner(t, r)
	defer stop()

	assert.ErrorIs(t, r.Reset(context.Background()), hookErr)
	assert.Equal(t, "s1", r.Stats().SessionID)
}

func TestRunnerStopped(t *testing.T) {
	r := NewRunner(Config{Engine: hazard.DefaultConfig()})
	startRunner(t, r)()

	assert.ErrorIs(t, r.Reset(context.Background()), ErrNotRunning)
	assert.ErrorIs(t, r.SubmitWait(context.Background(), pedestrianFrame(1, 0)), ErrNotRunning)
	assert.False(t, r.Submit(pedestrianFrame(2, 0)))
}

func TestRunnerSinkErrorIsNotFatal(t *testing.T) {
	failing := SinkFunc(func(FrameResult) error { return errors.New("boom") })
	col := &Collector{}
	r := NewRunner(Config{Engine: hazard.DefaultConfig(), Sinks: []Sink{failing, col}})
	stop := startRunner(t, r)
	defer stop()

	require.NoError(t, r.SubmitWait(context.Background(), pedestrianFrame(1, 0)))
	waitAnalysed(t, r, 1)
	require.Eventually(t, func() bool { return len(col.Results()) == 1 }, time.Second, time.Millisecond)
}

func TestRunnerSync(t *testing.T) {
	col := &Collector{}
	r := NewRunner(Config{Engine: hazard.DefaultConfig(), Sinks: []Sink{col}, SessionID: "s1"})
	stop := startRunner(t, r)
	defer stop()

	ctx := context.Background()
	handle := r.Handle(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, handle(pedestrianFrame(int64(i), float64(i))))
	}
	require.NoError(t, r.Sync(ctx))
	assert.Len(t, col.Results(), 5, "Sync returns after the last accepted frame is published")
}
