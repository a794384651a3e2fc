package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/timeutil"
)

// ErrNotRunning is returned by Reset when the worker loop has stopped.
var ErrNotRunning = errors.New("pipeline runner not running")

// FrameResult is the published outcome of one analysed frame.
type FrameResult struct {
	SessionID string
	Source    string
	Seq       int64
	Time      time.Time
	Latency   time.Duration
	Result    hazard.Result
}

// Config wires a Runner.
type Config struct {
	Engine hazard.Config

	// MaxLatency is the external per-frame deadline. A result that took
	// longer to compute is discarded. Zero disables the check.
	MaxLatency time.Duration

	Clock timeutil.Clock
	Sinks []Sink

	// SessionID labels published results until the first reset.
	SessionID string

	// OnReset, if set, runs on the worker after the engine is reset and
	// returns the session ID for subsequent results.
	OnReset func() (string, error)
}

// Stats is a point-in-time snapshot of runner counters.
type Stats struct {
	Accepted    int64         `json:"accepted"`
	Dropped     int64         `json:"dropped"`
	Late        int64         `json:"late"`
	Analysed    int64         `json:"analysed"`
	Events      int64         `json:"events"`
	Resets      int64         `json:"resets"`
	LastLatency time.Duration `json:"last_latency_ns"`
	SessionID   string        `json:"session_id,omitempty"`
}

// Runner owns one hazard.Engine. Submit and Reset are safe for concurrent
// use; Run must be called exactly once.
type Runner struct {
	engine     *hazard.Engine
	clock      timeutil.Clock
	maxLatency time.Duration
	sinks      []Sink
	onReset    func() (string, error)

	frames  chan ingest.Frame
	resets  chan chan error
	syncs   chan chan struct{}
	stopped chan struct{}

	accepted, dropped, late, analysed, events, resetCount atomic.Int64
	lastLatency                                        atomic.Int64

	mu        sync.Mutex
	sessionID string
}

// NewRunner creates a runner. The engine is built from cfg.Engine.
func NewRunner(cfg Config) *Runner {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		engine:     hazard.NewEngine(cfg.Engine),
		clock:      clock,
		maxLatency: cfg.MaxLatency,
		sinks:      append([]Sink(nil), cfg.Sinks...),
		onReset:    cfg.OnReset,
		frames:     make(chan ingest.Frame),
		resets:     make(chan chan error),
		syncs:      make(chan chan struct{}),
		stopped:    make(chan struct{}),
		sessionID:  cfg.SessionID,
	}
}

// Submit hands f to the worker if it is idle. It never blocks: a frame that
// arrives while the previous one is still being analysed is dropped and
// Submit reports false.
func (r *Runner) Submit(f ingest.Frame) bool {
	select {
	case r.frames <- f:
		r.accepted.Add(1)
		return true
	default:
		n := r.dropped.Add(1)
		monitoring.Tracef("pipeline: dropped frame seq=%d source=%s (worker busy, %d dropped)", f.Seq, f.Source, n)
		return false
	}
}

// SubmitWait blocks until the worker takes f or ctx is done. Offline replay
// uses it so that no frame is dropped.
func (r *Runner) SubmitWait(ctx context.Context, f ingest.Frame) error {
	select {
	case r.frames <- f:
		r.accepted.Add(1)
		return nil
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle adapts SubmitWait to an ingest.Handler bound to ctx.
func (r *Runner) Handle(ctx context.Context) ingest.Handler {
	return func(f ingest.Frame) error { return r.SubmitWait(ctx, f) }
}

// Reset clears the engine on the worker goroutine, between frames, and
// runs the OnReset hook. It waits for completion.
func (r *Runner) Reset(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case r.resets <- done:
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until every frame accepted before the call has been analysed
// and published.
func (r *Runner) Sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case r.syncs <- done:
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the worker loop. It returns ctx.Err() when ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-r.frames:
			r.analyse(f)
		case done := <-r.resets:
			done <- r.reset()
		case done := <-r.syncs:
			close(done)
		}
	}
}

func (r *Runner) analyse(f ingest.Frame) {
	dets := f.HazardDetections()
	ts := f.Time()

	start := r.clock.Now()
	res := r.engine.Analyze(dets, ts)
	latency := r.clock.Now().Sub(start)

	r.lastLatency.Store(int64(latency))
	defer r.analysed.Add(1)

	if r.maxLatency > 0 && latency > r.maxLatency {
		r.late.Add(1)
		monitoring.Opsf("pipeline: discarding late result seq=%d source=%s latency=%v deadline=%v events=%d",
			f.Seq, f.Source, latency, r.maxLatency, len(res.Events))
		return
	}

	r.events.Add(int64(len(res.Events)))
	monitoring.Tracef("pipeline: seq=%d source=%s detections=%d events=%d vectors=%d latency=%v",
		f.Seq, f.Source, len(dets), len(res.Events), len(res.MotionVectors), latency)

	out := FrameResult{
		SessionID: r.currentSession(),
		Source:    f.Source,
		Seq:       f.Seq,
		Time:      ts,
		Latency:   latency,
		Result:    res,
	}
	for _, s := range r.sinks {
		if err := s.Publish(out); err != nil {
			monitoring.Opsf("pipeline: sink %T failed for seq=%d: %v", s, f.Seq, err)
		}
	}
}

func (r *Runner) reset() error {
	r.engine.Reset()
	r.resetCount.Add(1)
	if r.onReset == nil {
		return nil
	}
	id, err := r.onReset()
	if err != nil {
		monitoring.Opsf("pipeline: reset hook failed: %v", err)
		return err
	}
	if id != "" {
		r.mu.Lock()
		r.sessionID = id
		r.mu.Unlock()
		monitoring.Diagf("pipeline: reset, new session %s", id)
	}
	return nil
}

func (r *Runner) currentSession() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Stats returns the runner counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Accepted:    r.accepted.Load(),
		Dropped:     r.dropped.Load(),
		Late:        r.late.Load(),
		Analysed:    r.analysed.Load(),
		Events:      r.events.Load(),
		Resets:      r.resetCount.Load(),
		LastLatency: time.Duration(r.lastLatency.Load()),
		SessionID:   r.currentSession(),
	}
}

// LogStats writes the counters to the diag stream every interval until ctx
// is done.
func (r *Runner) LogStats(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			st := r.Stats()
			monitoring.Diagf("pipeline: accepted=%d dropped=%d late=%d analysed=%d events=%d last_latency=%v",
				st.Accepted, st.Dropped, st.Late, st.Analysed, st.Events, st.LastLatency)
		}
	}
}
