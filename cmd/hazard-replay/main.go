// Command hazard-replay replays a recorded detection stream (JSON lines or
// a pcap of UDP frames) through the hazard engine and reports the events,
// or forwards it to a running hazard service.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/timeutil"
)

func main() {
	var o replayOptions
	flag.StringVar(&o.input, "in", "", "input capture (.jsonl or .pcap)")
	flag.StringVar(&o.format, "format", "", "input format: jsonl or pcap (default: from extension)")
	flag.IntVar(&o.port, "port", 5600, "UDP destination port of frames in a pcap (0 for any)")
	flag.StringVar(&o.tuning, "tuning", "", "JSON tuning file")
	flag.StringVar(&o.dbPath, "db", "", "optional SQLite database to store the replayed events in")
	flag.StringVar(&o.pngPath, "png", "", "write a score timeline PNG")
	flag.StringVar(&o.htmlPath, "html", "", "write an interactive score timeline HTML page")
	flag.BoolVar(&o.jsonOut, "json", false, "print the summary as JSON")
	flag.StringVar(&o.postURL, "post", "", "base URL of a hazard service to forward frames to instead of analysing locally")
	flag.BoolVar(&o.realtime, "realtime", false, "pace frames by their recorded timestamps")
	verbose := flag.Bool("v", false, "log diagnostics to stderr")
	flag.Parse()

	if o.input == "" {
		log.Fatal("-in is required")
	}

	monitoring.SetLogWriters(os.Stderr, nil, nil)
	if *verbose {
		monitoring.SetLogWriters(os.Stderr, os.Stderr, nil)
		hazard.SetLogWriters(os.Stderr, os.Stderr)
	}
	o.clock = timeutil.RealClock{}
	o.client = &http.Client{Timeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if o.postURL != "" {
		err = postFrames(ctx, o, os.Stdout)
	} else {
		_, err = analyse(ctx, o, os.Stdout)
	}
	if err != nil {
		log.Fatal(err)
	}
}
