// Package ingest decodes detector output into frames for the hazard
// pipeline. Frames arrive as JSON objects: one per line on a serial link
// or in a capture file, or one per UDP datagram.
package ingest
