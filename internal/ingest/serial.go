package ingest

import (
	"context"
	"fmt"

	"github.com/banshee-data/hazard.report/internal/monitoring"
	"github.com/banshee-data/hazard.report/internal/serialmux"
)

// LineSubscriber is the part of a serial mux the serial reader needs.
type LineSubscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// ReadSerial decodes frames from a serial mux subscription until ctx is
// done or the mux closes. Status lines from the device are logged to the
// diag stream and are not counted.
func ReadSerial(ctx context.Context, mux LineSubscriber, fn Handler) (Stats, error) {
	var st Stats
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return st, nil
			}
			switch serialmux.ClassifyLine(line) {
			case serialmux.LineTypeFrame:
			case serialmux.LineTypeStatus:
				monitoring.Diagf("ingest: detector status: %s", line)
				continue
			default:
				monitoring.Tracef("ingest: ignoring serial line %q", line)
				continue
			}

			st.Messages++
			f, err := DecodeFrame([]byte(line))
			if err != nil {
				st.Invalid++
				monitoring.Opsf("ingest: serial: %v", err)
				continue
			}
			st.Frames++
			if err := fn(f); err != nil {
				return st, fmt.Errorf("serial frame %d: %w", f.Seq, err)
			}
		}
	}
}
