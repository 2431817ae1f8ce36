package edit

import (
	"sync"

	"xsection-editor/internal/overlap"
	"xsection-editor/internal/section"
)

// Overlaps is the boundary classification of one section.
type Overlaps struct {
	Classes   map[int]overlap.Class
	Intervals []overlap.Interval
}

type overlapKey struct {
	rec      *section.Record
	revision uint64
	boundary uint64
}

// overlapCache holds the last classification. It is recomputed when the
// record, its revision or the boundary generation differ.
type overlapCache struct {
	mu       sync.Mutex
	key      overlapKey
	value    Overlaps
	valid    bool
	computed int
}

// Overlaps classifies the current section against the boundary. It reports
// false when no section is current or no boundary is set.
func (s *Session) Overlaps() (Overlaps, bool) {
	rec, err := s.repo.Current()
	if err != nil {
		return Overlaps{}, false
	}
	return s.overlapsFor(rec, rec.Snapshot())
}

func (s *Session) overlapsFor(rec *section.Record, snap section.Snapshot) (Overlaps, bool) {
	b, gen := s.repo.Boundary()
	if b == nil {
		return Overlaps{}, false
	}
	key := overlapKey{rec: rec, revision: snap.Revision, boundary: gen}

	c := &s.overlaps
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == key {
		return c.value, true
	}
	classes := overlap.Classify(snap.Samples, b)
	c.key = key
	c.value = Overlaps{Classes: classes, Intervals: overlap.Intervals(snap.Samples, classes)}
	c.valid = true
	c.computed++
	return c.value, true
}
