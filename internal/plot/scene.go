// Package plot draws cross sections: a PNG written beside saved files, and
// the raster image shown in the editor's plot view.
package plot

import (
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/section"
)

// Scene is everything drawn for one section.
type Scene struct {
	Title    string
	Samples  []section.Sample
	Banks    section.Banks
	Overlaps []overlap.Interval

	// Reference is another version of the same section drawn underneath.
	Reference     []section.Sample
	ReferenceName string

	// Selected is the highlighted sample index, -1 for none.
	Selected int
}

// NewScene returns a scene for a record snapshot with nothing selected.
func NewScene(snap section.Snapshot) Scene {
	return Scene{
		Title:    snap.ID,
		Samples:  snap.Samples,
		Banks:    snap.Banks,
		Selected: -1,
	}
}

func xy(samples []section.Sample) (xs, ys []float64) {
	xs = make([]float64, len(samples))
	ys = make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.Station, s.Elevation
	}
	return xs, ys
}
