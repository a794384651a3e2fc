package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/hazard.report/internal/monitoring"
)

// maxDatagram is the largest frame accepted over UDP.
const maxDatagram = 64 * 1024

// pollInterval bounds how long a read blocks before ctx is re-checked.
const pollInterval = 100 * time.Millisecond

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Handler     Handler
}

// UDPListener receives one JSON frame per datagram.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	handler     Handler
	counters    counters
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: logInterval,
		handler:     cfg.Handler,
	}
}

// Start listens on the configured address until ctx is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Opsf("ingest: failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Diagf("ingest: UDP listener started on %s", conn.LocalAddr())
	return l.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is cancelled.
func (l *UDPListener) Serve(ctx context.Context, conn net.PacketConn) error {
	go l.logStats(ctx)

	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			monitoring.Opsf("ingest: UDP read error: %v", err)
			continue
		}

		l.counters.messages.Add(1)
		f, err := DecodeFrame(buf[:n])
		if err != nil {
			l.counters.invalid.Add(1)
			monitoring.Opsf("ingest: datagram from %v: %v", from, err)
			continue
		}
		l.counters.frames.Add(1)
		if l.handler == nil {
			continue
		}
		if err := l.handler(f); err != nil {
			monitoring.Opsf("ingest: handler rejected frame %d from %v: %v", f.Seq, from, err)
		}
	}
}

// Stats returns the listener's counters.
func (l *UDPListener) Stats() Stats {
	return l.counters.snapshot()
}

func (l *UDPListener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := l.Stats()
			monitoring.Diagf("ingest: udp datagrams=%d frames=%d invalid=%d", st.Messages, st.Frames, st.Invalid)
		}
	}
}
