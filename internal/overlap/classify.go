package overlap

import (
	"xsection-editor/internal/section"
	"xsection-editor/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// BoundaryTolerance is the distance within which a point counts as lying on
// the boundary.
const BoundaryTolerance = 1e-9

// Class is a sample's position relative to the boundary.
type Class int

const (
	Outside Class = iota
	Inside
	OnBoundary
)

func (c Class) String() string {
	switch c {
	case Inside:
		return "inside"
	case OnBoundary:
		return "on_boundary"
	default:
		return "outside"
	}
}

// Classify maps sample index to class for every sample that has a spatial
// point. Samples without a point are absent from the result.
func Classify(samples []section.Sample, b *Boundary) map[int]Class {
	out := make(map[int]Class)
	if b == nil {
		return out
	}
	for i, s := range samples {
		if s.Point == nil {
			continue
		}
		out[i] = b.classify(*s.Point)
	}
	return out
}

func (b *Boundary) classify(p geometry.Point2D) Class {
	if !b.reach.Contains(p) {
		return Outside
	}
	for _, ring := range b.rings {
		if geometry.OnRing(p, ring, BoundaryTolerance) {
			return OnBoundary
		}
	}
	if planar.MultiPolygonContains(b.polygon, orb.Point{p.X, p.Y}) {
		return Inside
	}
	return Outside
}

// Interval is a contiguous run of samples inside the boundary, as a station
// range.
type Interval struct {
	From, To   float64
	FirstIndex int
	LastIndex  int
}

// Intervals returns the runs of consecutive samples classified Inside or
// OnBoundary. A sample that is outside or unclassified ends a run.
func Intervals(samples []section.Sample, classes map[int]Class) []Interval {
	var (
		out  []Interval
		open bool
		cur  Interval
	)
	for i, s := range samples {
		c, ok := classes[i]
		in := ok && c != Outside
		switch {
		case in && !open:
			cur = Interval{From: s.Station, To: s.Station, FirstIndex: i, LastIndex: i}
			open = true
		case in:
			cur.To, cur.LastIndex = s.Station, i
		case open:
			out = append(out, cur)
			open = false
		}
	}
	if open {
		out = append(out, cur)
	}
	return out
}
