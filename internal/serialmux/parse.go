package serialmux

import "strings"

const (
	LineTypeFrame   = "frame"
	LineTypeStatus  = "status"
	LineTypeUnknown = "unknown"
)

// ClassifyLine inspects a line from the co-processor and returns a coarse
// type token. Detection frames carry a "detections" array; anything else
// that looks like JSON is a status/config echo.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return LineTypeUnknown
	}
	if strings.Contains(line, `"detections"`) {
		return LineTypeFrame
	}
	return LineTypeStatus
}
