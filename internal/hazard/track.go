package hazard

import "time"

// Sample is one observation of a tracked object.
type Sample struct {
	Center Point
	Area   float64
	Time   time.Time
}

// Track is a short rolling history of samples believed to be the same
// physical object. Samples are ordered oldest to newest.
type Track struct {
	ID      int64
	Label   Label
	Samples []Sample
}

// Last returns the newest sample.
func (t *Track) Last() (Sample, bool) {
	if len(t.Samples) == 0 {
		return Sample{}, false
	}
	return t.Samples[len(t.Samples)-1], true
}

// TrackStore is an arena of tracks matched by label and nearest centre.
// Indices returned by Match stay valid until the next Prune or Reset.
type TrackStore struct {
	tracks      []Track
	maxSamples  int
	maxAge      time.Duration
	maxDistance float64
	nextID      int64
}

// NewTrackStore creates an empty store.
func NewTrackStore(maxSamples int, maxAge time.Duration, maxDistance float64) *TrackStore {
	return &TrackStore{
		maxSamples:  maxSamples,
		maxAge:      maxAge,
		maxDistance: maxDistance,
		nextID:      1,
	}
}

// Prune removes every track whose newest sample is older than maxAge.
func (s *TrackStore) Prune(now time.Time) {
	kept := s.tracks[:0]
	for _, t := range s.tracks {
		last, ok := t.Last()
		if !ok || now.Sub(last.Time) > s.maxAge {
			continue
		}
		kept = append(kept, t)
	}
	// Release references held by the tail.
	for i := len(kept); i < len(s.tracks); i++ {
		s.tracks[i] = Track{}
	}
	s.tracks = kept
}

// Match returns the index of the same-label track whose newest centre is
// nearest to d, provided it is closer than maxDistance.
func (s *TrackStore) Match(d Detection) (int, bool) {
	center := d.Center()
	best := -1
	bestDist := s.maxDistance
	for i := range s.tracks {
		t := &s.tracks[i]
		if t.Label != d.Label {
			continue
		}
		last, ok := t.Last()
		if !ok {
			continue
		}
		if dist := distance(center, last.Center); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best, best >= 0
}

// Update appends d as a sample to the track at idx, or creates a new track
// when matched is false. It returns the updated track's ID.
func (s *TrackStore) Update(d Detection, idx int, matched bool, now time.Time) int64 {
	sample := Sample{Center: d.Center(), Area: d.Area(), Time: now}
	if matched && idx >= 0 && idx < len(s.tracks) {
		t := &s.tracks[idx]
		t.Samples = append(t.Samples, sample)
		if over := len(t.Samples) - s.maxSamples; over > 0 {
			t.Samples = append(t.Samples[:0], t.Samples[over:]...)
		}
		return t.ID
	}
	id := s.nextID
	s.nextID++
	samples := make([]Sample, 1, s.maxSamples)
	samples[0] = sample
	s.tracks = append(s.tracks, Track{ID: id, Label: d.Label, Samples: samples})
	return id
}

// At returns the track at idx. The pointer is only valid until the next
// Update, Prune or Reset.
func (s *TrackStore) At(idx int) *Track {
	if idx < 0 || idx >= len(s.tracks) {
		return nil
	}
	return &s.tracks[idx]
}

// Len returns the number of live tracks.
func (s *TrackStore) Len() int { return len(s.tracks) }

// Snapshot returns a deep copy of the live tracks.
func (s *TrackStore) Snapshot() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = Track{ID: t.ID, Label: t.Label, Samples: append([]Sample(nil), t.Samples...)}
	}
	return out
}

// Reset drops every track. IDs keep increasing across resets.
func (s *TrackStore) Reset() {
	s.tracks = nil
}
