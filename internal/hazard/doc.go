// Package hazard turns per-frame object detections into motion-tracked
// objects, hazard scores, severities and throttled hazard events.
//
// Responsibilities: nearest-neighbour track arena, recency-weighted
// velocity and area growth estimation, forward-path / center-lane /
// near-path classification, hazard scoring with latency compensation,
// severity mapping, and the vehicle, pedestrian and predictive-path rules.
// Key types: Detection, Engine, Event, Result.
//
// An Engine is owned by a single goroutine. It performs no I/O and holds
// no locks; callers serialise Analyze and Reset (see internal/pipeline).
// All geometry is frame-normalised: x and y in [0,1], origin top-left.
package hazard
