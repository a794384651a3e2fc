// Command hazard runs the live hazard detection service: it reads detector
// frames from UDP, a serial co-processor or HTTP, analyses them, stores
// hazard events and serves the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/hazard.report/internal/api"
	"github.com/banshee-data/hazard.report/internal/db"
	"github.com/banshee-data/hazard.report/internal/hazard"
	"github.com/banshee-data/hazard.report/internal/ingest"
	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/pipeline"
	"github.com/banshee-data/hazard.report/internal/serialmux"
	"github.com/banshee-data/hazard.report/internal/timeutil"
	"github.com/banshee-data/hazard.report/internal/version"
	"github.com/joho/godotenv"
)

func main() {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if o.version {
		fmt.Println(version.Current())
		return
	}

	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to load %s: %v", o.envFile, err)
	}
	if err := applyEnv(fs, os.LookupEnv); err != nil {
		log.Fatalf("invalid environment: %v", err)
	}
	if err := o.validate(); err != nil {
		log.Fatal(err)
	}

	var trace io.Writer
	if o.trace {
		trace = os.Stdout
	}
	monitoring.SetLogWriters(os.Stderr, os.Stdout, trace)
	hazard.SetLogWriters(os.Stderr, os.Stdout)

	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	tuning, engineCfg, err := loadTuning(o.tuning)
	if err != nil {
		return err
	}
	statsEvery, err := time.ParseDuration(o.statsEvery)
	if err != nil || statsEvery <= 0 {
		return fmt.Errorf("invalid -stats-interval %q", o.statsEvery)
	}

	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	session, err := database.StartSession(o.source)
	if err != nil {
		return err
	}
	monitoring.Diagf("hazard %s: session %s source=%s", version.Current(), session.ID, o.source)

	clock := timeutil.RealClock{}
	current := session.ID
	hub := api.NewHub()
	runner := pipeline.NewRunner(pipeline.Config{
		Engine:     engineCfg,
		MaxLatency: tuning.GetMaxFrameLatency(),
		Clock:      clock,
		Sinks:      []pipeline.Sink{pipeline.StoreSink{Store: database}, hub},
		SessionID:  session.ID,
		OnReset: func() (string, error) {
			if err := database.EndSession(current, clock.Now()); err != nil {
				monitoring.Opsf("failed to end session %s: %v", current, err)
			}
			next, err := database.StartSession(o.source)
			if err != nil {
				return "", err
			}
			current = next.ID
			return next.ID, nil
		},
	})

	var m serialmux.SerialMuxInterface = serialmux.NewDisabledSerialMux()
	if o.source == sourceSerial {
		link, err := serialmux.NewRealSerialMux(o.serialPort, serialmux.PortOptions{BaudRate: o.baudRate})
		if err != nil {
			return fmt.Errorf("failed to open detector link: %w", err)
		}
		m = link
	}
	defer m.Close()
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize detector link: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Opsf("%s: %v", name, err)
				stop()
			}
			monitoring.Diagf("%s routine terminated", name)
		}()
	}

	goRun("pipeline", runner.Run)
	goRun("pipeline stats", func(ctx context.Context) error {
		runner.LogStats(ctx, statsEvery)
		return nil
	})

	submit := func(f ingest.Frame) error {
		runner.Submit(f)
		return nil
	}
	switch o.source {
	case sourceUDP:
		listener := ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:     o.udpAddr,
			RcvBuf:      o.udpRcvBuf,
			LogInterval: statsEvery,
			Handler:     submit,
		})
		goRun("udp listener", listener.Start)
	case sourceSerial:
		goRun("serial monitor", m.Monitor)
		goRun("serial reader", func(ctx context.Context) error {
			st, err := ingest.ReadSerial(ctx, m, submit)
			monitoring.Diagf("serial reader: lines=%d frames=%d invalid=%d", st.Messages, st.Frames, st.Invalid)
			return err
		})
	case sourceHTTP:
		monitoring.Diagf("accepting frames on POST %s/api/frames", o.listen)
	}

	mux := http.NewServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}
	m.AttachAdminRoutes(mux)

	apiServer := api.NewServer(database, runner, hub, m)
	apiMux := apiServer.ServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/charts/", apiMux)

	server := &http.Server{
		Addr:              o.listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				monitoring.Opsf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		monitoring.Diagf("shutting down HTTP server...")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Opsf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()

	final := runner.Stats()
	if err := database.EndSession(final.SessionID, clock.Now()); err != nil {
		monitoring.Opsf("failed to end session %s: %v", final.SessionID, err)
	}
	monitoring.Diagf("stopped: accepted=%d dropped=%d late=%d analysed=%d events=%d",
		final.Accepted, final.Dropped, final.Late, final.Analysed, final.Events)
	return nil
}
