package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/hazard.report/internal/config"
	"github.com/banshee-data/hazard.report/internal/db"
	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/httputil"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/pipeline"
	"github.com/banshee-data/hazard.report/internal/report"
	"github.com/banshee-data/hazard.report/internal/timeutil"
)

type replayOptions struct {
	input    string
	format   string // "jsonl", "pcap" or "" to infer from the extension
	port     int
	tuning   string
	dbPath   string
	pngPath  string
	htmlPath string
	jsonOut  bool
	postURL  string
	realtime bool

	client httputil.HTTPClient
	clock  timeutil.Clock
}

func (o replayOptions) inputFormat() (string, error) {
	if o.format != "" {
		switch o.format {
		case "jsonl", "pcap":
			return o.format, nil
		}
		return "", fmt.Errorf("unknown format %q (want jsonl or pcap)", o.format)
	}
	switch strings.ToLower(filepath.Ext(o.input)) {
	case ".pcap", ".cap":
		return "pcap", nil
	default:
		return "jsonl", nil
	}
}

// readFrames streams every frame in the input to fn.
func readFrames(ctx context.Context, o replayOptions, fn ingest.Handler) (ingest.Stats, error) {
	format, err := o.inputFormat()
	if err != nil {
		return ingest.Stats{}, err
	}
	f, err := os.Open(o.input)
	if err != nil {
		return ingest.Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	if format == "pcap" {
		return ingest.ReadPCAP(ctx, f, o.port, fn)
	}
	return ingest.ReadJSONLines(ctx, f, fn)
}

// pacer sleeps between frames so they are delivered at their recorded rate.
type pacer struct {
	clock timeutil.Clock
	last  time.Time
}

func (p *pacer) wait(ts time.Time) {
	if !p.last.IsZero() {
		if gap := ts.Sub(p.last); gap > 0 {
			p.clock.Sleep(gap)
		}
	}
	p.last = ts
}

// postFrames forwards every frame to a running hazard service.
func postFrames(ctx context.Context, o replayOptions, w io.Writer) error {
	url := strings.TrimRight(o.postURL, "/") + "/api/frames"
	p := &pacer{clock: o.clock}
	var posted, rejected int
	st, err := readFrames(ctx, o, func(f ingest.Frame) error {
		if o.realtime {
			p.wait(f.Time())
		}
		if err := httputil.PostJSON(ctx, o.client, url, f); err != nil {
			rejected++
			monitoring.Opsf("replay: frame %d: %v", f.Seq, err)
			return nil
		}
		posted++
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "posted %d of %d frames to %s (%d rejected, %d invalid)\n",
		posted, st.Frames, url, rejected, st.Invalid)
	return err
}

// analyse replays the input through a local engine and reports on the
// resulting events.
func analyse(ctx context.Context, o replayOptions, w io.Writer) (report.Summary, error) {
	tuning := config.EmptyTuningConfig()
	if o.tuning != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(o.tuning); err != nil {
			return report.Summary{}, err
		}
	}
	if err := tuning.Validate(); err != nil {
		return report.Summary{}, fmt.Errorf("tuning: %w", err)
	}

	col := &pipeline.Collector{}
	sinks := []pipeline.Sink{col}
	sessionID := ""
	if o.dbPath != "" {
		database, err := db.NewDB(o.dbPath)
		if err != nil {
			return report.Summary{}, err
		}
		defer database.Close()
		database.SetClock(o.clock)
		s, err := database.StartSession("replay:" + filepath.Base(o.input))
		if err != nil {
			return report.Summary{}, err
		}
		sessionID = s.ID
		sinks = append(sinks, pipeline.StoreSink{Store: database})
		defer func() {
			if err := database.EndSession(s.ID, o.clock.Now()); err != nil {
				monitoring.Opsf("replay: %v", err)
			}
		}()
	}

	runner := pipeline.NewRunner(pipeline.Config{
		Engine:    hazard.ConfigFromTuning(tuning),
		Clock:     o.clock,
		Sinks:     sinks,
		SessionID: sessionID,
	})
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(runCtx) }()

	p := &pacer{clock: o.clock}
	handle := runner.Handle(ctx)
	st, err := readFrames(ctx, o, func(f ingest.Frame) error {
		if o.realtime {
			p.wait(f.Time())
		}
		return handle(f)
	})
	if err != nil {
		return report.Summary{}, err
	}
	if err := runner.Sync(ctx); err != nil {
		return report.Summary{}, err
	}
	cancel()
	<-runDone

	events := col.Events()
	summary := report.Summarize(events)

	if o.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return summary, err
		}
	} else {
		fmt.Fprintf(w, "frames: %d read, %d invalid\n", st.Frames, st.Invalid)
		if err := summary.WriteText(w); err != nil {
			return summary, err
		}
	}

	if o.pngPath != "" && len(events) > 0 {
		if err := report.WriteTimelinePNG(o.pngPath, events); err != nil {
			return summary, err
		}
	}
	if o.htmlPath != "" {
		f, err := os.Create(o.htmlPath)
		if err != nil {
			return summary, fmt.Errorf("create %s: %w", o.htmlPath, err)
		}
		defer f.Close()
		if err := report.RenderTimelineHTML(f, "Replay "+filepath.Base(o.input), events); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
