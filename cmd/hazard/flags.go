package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/banshee-data/hazard.report/internal/config"
	"github.com/banshee-data/hazard.report/internal/hazard"
)

// Source names accepted by -source.
const (
	sourceUDP    = "udp"
	sourceSerial = "serial"
	sourceHTTP   = "http"
)

// envFlags maps environment variables onto flag names. An environment
// value applies only when the flag was not given on the command line.
var envFlags = map[string]string{
	"HAZARD_LISTEN":      "listen",
	"HAZARD_DB":          "db",
	"HAZARD_TUNING":      "tuning",
	"HAZARD_SOURCE":      "source",
	"HAZARD_SERIAL_PORT": "serial-port",
	"HAZARD_UDP_ADDR":    "udp-addr",
}

type options struct {
	listen     string
	dbPath     string
	tuning     string
	source     string
	serialPort string
	baudRate   int
	udpAddr    string
	udpRcvBuf  int
	envFile    string
	trace      bool
	statsEvery string
	version    bool
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("hazard", flag.ContinueOnError)
	fs.StringVar(&o.listen, "listen", ":8080", "HTTP listen address")
	fs.StringVar(&o.dbPath, "db", "hazard.db", "SQLite database path")
	fs.StringVar(&o.tuning, "tuning", "", "JSON tuning file (built-in defaults when empty)")
	fs.StringVar(&o.source, "source", sourceUDP, "detection source: udp, serial or http")
	fs.StringVar(&o.serialPort, "serial-port", "/dev/ttyUSB0", "detector co-processor serial port")
	fs.IntVar(&o.baudRate, "baud", 0, "serial baud rate (0 for the device default)")
	fs.StringVar(&o.udpAddr, "udp-addr", ":5600", "UDP address for detector frames")
	fs.IntVar(&o.udpRcvBuf, "udp-rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	fs.StringVar(&o.envFile, "env-file", ".env", "optional file of HAZARD_* environment variables")
	fs.BoolVar(&o.trace, "trace", false, "log per-frame telemetry to stdout")
	fs.StringVar(&o.statsEvery, "stats-interval", "1m", "interval between pipeline stats log lines")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	return fs
}

// applyEnv sets every flag named in envFlags from env unless it was set on
// the command line.
func applyEnv(fs *flag.FlagSet, env func(string) (string, bool)) error {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	for key, name := range envFlags {
		if explicit[name] {
			continue
		}
		v, ok := env(key)
		if !ok || v == "" {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (o *options) validate() error {
	switch o.source {
	case sourceUDP, sourceSerial, sourceHTTP:
	default:
		return fmt.Errorf("unknown source %q (want %s)", o.source, strings.Join([]string{sourceUDP, sourceSerial, sourceHTTP}, ", "))
	}
	if o.listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if o.source == sourceSerial && o.serialPort == "" {
		return fmt.Errorf("serial port is required for source %q", sourceSerial)
	}
	return nil
}

// loadTuning reads path, or returns the built-in defaults when path is empty.
func loadTuning(path string) (*config.TuningConfig, hazard.Config, error) {
	tuning := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(path); err != nil {
			return nil, hazard.Config{}, err
		}
	}
	if err := tuning.Validate(); err != nil {
		return nil, hazard.Config{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return tuning, hazard.ConfigFromTuning(tuning), nil
}
