// Package pipeline feeds detector frames through one hazard engine per
// stream. A single worker goroutine owns the engine: frames that arrive
// while it is busy are dropped, results that exceed the frame deadline are
// discarded, and resets are serialised with analysis.
package pipeline
