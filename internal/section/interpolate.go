package section

import (
	"math"
	"sort"

	"xsection-editor/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gonum.org/v1/gonum/interp"
)

// Interpolate builds a sample at station by linear interpolation between its
// neighbors. idx is where the sample belongs in the sequence. When a sample
// already sits at station, exists is true and idx is its index.
//
// Numeric auxiliary fields are interpolated too; non-numeric ones are copied
// from the left neighbor. Stations must be strictly increasing.
func Interpolate(samples []Sample, m Mapping, station float64) (idx int, s Sample, exists bool, err error) {
	if len(samples) < MinSamples {
		return 0, Sample{}, false, &MinimumSamplesError{Op: "interpolate", Remaining: len(samples)}
	}
	if !Monotonic(samples) {
		return 0, Sample{}, false, ErrNotMonotonic
	}
	first, last := samples[0].Station, samples[len(samples)-1].Station
	if math.IsNaN(station) || station < first || station > last {
		return 0, Sample{}, false, ErrOutOfRange
	}

	idx = sort.Search(len(samples), func(i int) bool { return samples[i].Station >= station })
	if samples[idx].Station == station {
		return idx, samples[idx], true, nil
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, smp := range samples {
		xs[i], ys[i] = smp.Station, smp.Elevation
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return 0, Sample{}, false, err
	}

	left, right := samples[idx-1], samples[idx]
	s = Sample{Station: station, Elevation: pl.Predict(station)}
	s.fields = interpolateFields(left, right, m, station)
	if left.Point != nil && right.Point != nil {
		t := (station - left.Station) / (right.Station - left.Station)
		s.Point = &geometry.Point2D{
			X: left.Point.X + t*(right.Point.X-left.Point.X),
			Y: left.Point.Y + t*(right.Point.Y-left.Point.Y),
		}
	}
	s.fields = withPoint(s.fields, m, s.Point)
	return idx, s, false, nil
}

func interpolateFields(left, right Sample, m Mapping, station float64) []string {
	fields := left.Fields()
	if len(fields) == 0 {
		return nil
	}
	skip := map[int]bool{}
	for _, name := range []string{ColStation, ColElevation, ColWKT, ColEasting, ColNorthing} {
		if idx, ok := m.Index(name); ok {
			skip[idx] = true
		}
	}
	xs := []float64{left.Station, right.Station}
	for i := range fields {
		if skip[i] {
			continue
		}
		lt, _ := left.field(i)
		rt, ok := right.field(i)
		if !ok {
			continue
		}
		lv, lerr := parseFloat(lt)
		rv, rerr := parseFloat(rt)
		if lerr != nil || rerr != nil {
			continue
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, []float64{lv, rv}); err != nil {
			continue
		}
		fields[i] = formatFloat(pl.Predict(station))
	}
	return fields
}

// withPoint writes p into the spatial columns of fields; a nil p blanks them.
func withPoint(fields []string, m Mapping, p *geometry.Point2D) []string {
	if len(fields) == 0 {
		return fields
	}
	set := func(name, text string) {
		if idx, ok := m.Index(name); ok && idx < len(fields) {
			fields[idx] = text
		}
	}
	if p == nil {
		set(ColWKT, "")
		set(ColEasting, "")
		set(ColNorthing, "")
		return fields
	}
	set(ColWKT, wkt.MarshalString(orb.Point{p.X, p.Y}))
	set(ColEasting, formatFloat(p.X))
	set(ColNorthing, formatFloat(p.Y))
	return fields
}
