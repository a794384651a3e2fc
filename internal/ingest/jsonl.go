package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/banshee-data/hazard.report/internal/monitoring"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// Handler receives each decoded frame. Returning an error stops the reader.
type Handler func(Frame) error

// ReadJSONLines decodes one frame per line from r until EOF or ctx is done.
// Blank lines are skipped; invalid lines are counted and logged.
func ReadJSONLines(ctx context.Context, r io.Reader, fn Handler) (Stats, error) {
	var st Stats
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scan.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return st, err
		}
		b := bytes.TrimSpace(scan.Bytes())
		if len(b) == 0 {
			continue
		}
		st.Messages++
		f, err := DecodeFrame(b)
		if err != nil {
			st.Invalid++
			monitoring.Opsf("ingest: line %d: %v", line, err)
			continue
		}
		st.Frames++
		if err := fn(f); err != nil {
			return st, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scan.Err(); err != nil {
		return st, fmt.Errorf("read json lines: %w", err)
	}
	return st, nil
}
