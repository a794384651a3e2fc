package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoEvents is returned when there is nothing to plot.
var ErrNoEvents = errors.New("no events to plot")

var severityColors = map[hazard.Severity]color.RGBA{
	hazard.SeverityLow:      {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
	hazard.SeverityMedium:   {R: 0xff, G: 0xc1, B: 0x07, A: 0xff},
	hazard.SeverityHigh:     {R: 0xff, G: 0x70, B: 0x43, A: 0xff},
	hazard.SeverityCritical: {R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff},
}

// offsetSeconds returns each event's time relative to the earliest event.
func offsetSeconds(events []hazard.Event) []float64 {
	first := Summarize(events).First
	out := make([]float64, len(events))
	for i, ev := range events {
		out[i] = ev.Timestamp.Sub(first).Seconds()
	}
	return out
}

// WriteTimelinePNG saves a score-over-time scatter plot, one series per
// severity, to path.
func WriteTimelinePNG(path string, events []hazard.Event) error {
	if len(events) == 0 {
		return ErrNoEvents
	}

	p := plot.New()
	p.Title.Text = "Hazard score timeline"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Hazard score"
	p.Y.Min = 0
	p.Y.Max = 1

	secs := offsetSeconds(events)
	bySeverity := make(map[hazard.Severity]plotter.XYs)
	for i, ev := range events {
		bySeverity[ev.Severity] = append(bySeverity[ev.Severity], plotter.XY{X: secs[i], Y: ev.Score})
	}

	for sev := hazard.SeverityLow; sev <= hazard.SeverityCritical; sev++ {
		pts, ok := bySeverity[sev]
		if !ok {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("%s series: %w", sev, err)
		}
		sc.GlyphStyle.Color = severityColors[sev]
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(sev.String(), sc)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(12*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// RenderTimelineHTML writes an interactive score-over-time chart, one
// series per event type.
func RenderTimelineHTML(w io.Writer, title string, events []hazard.Event) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("events=%d", len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: "score"}),
	)

	secs := offsetSeconds(events)
	byType := make(map[hazard.EventType][]opts.ScatterData)
	for i, ev := range events {
		byType[ev.Type] = append(byType[ev.Type], opts.ScatterData{
			Name:  fmt.Sprintf("%s %s", ev.Severity, ev.Description),
			Value: []interface{}{secs[i], ev.Score},
		})
	}
	for _, t := range eventTypes {
		if data, ok := byType[t]; ok {
			scatter.AddSeries(string(t), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
		}
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	return nil
}
