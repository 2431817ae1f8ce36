package plot

import (
	"math"

	"xsection-editor/internal/section"
	"xsection-editor/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// Margin is the pixel border kept around the plotted data.
const Margin = 40

// Viewport maps section coordinates (station, elevation) to pixels and
// back. Elevation grows upward on screen.
type Viewport struct {
	Data          geometry.Rect
	Width, Height int

	toPixel geometry.AffineTransform
	toData  geometry.AffineTransform
}

// Extent returns the padded data rectangle covering all scene series.
func Extent(sc Scene) geometry.Rect {
	var xs, ys []float64
	for _, series := range [][]section.Sample{sc.Samples, sc.Reference} {
		x, y := xy(series)
		xs = append(xs, x...)
		ys = append(ys, y...)
	}
	if len(xs) == 0 {
		return geometry.NewRect(0, 0, 1, 1)
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	return geometry.NewRect(minX, minY, maxX-minX, maxY-minY).Pad(0.05)
}

// NewViewport fits data into a width x height pixel area.
func NewViewport(data geometry.Rect, width, height int) Viewport {
	v := Viewport{Data: data, Width: width, Height: height}
	pw := math.Max(1, float64(width-2*Margin))
	ph := math.Max(1, float64(height-2*Margin))
	sx := pw / math.Max(data.Width, 1e-12)
	sy := ph / math.Max(data.Height, 1e-12)

	v.toPixel = geometry.Translation(Margin, float64(height-Margin)).
		Compose(geometry.Scale(sx, -sy)).
		Compose(geometry.Translation(-data.X, -data.Y))
	v.toData, _ = v.toPixel.Inverse()
	return v
}

// ToPixel converts a data point to pixel coordinates.
func (v Viewport) ToPixel(p geometry.Point2D) geometry.Point2D { return v.toPixel.Apply(p) }

// ToData converts a pixel position to data coordinates.
func (v Viewport) ToData(p geometry.Point2D) geometry.Point2D { return v.toData.Apply(p) }

// Plot returns the pixel rectangle data is drawn into.
func (v Viewport) Plot() geometry.Rect {
	return geometry.NewRect(Margin, Margin, float64(v.Width-2*Margin), float64(v.Height-2*Margin))
}

// Nearest returns the sample whose plotted position is closest to the pixel
// position p, if it lies within maxDist pixels. Measuring in pixels
// normalizes the two axes.
func (v Viewport) Nearest(samples []section.Sample, p geometry.Point2D, maxDist float64) (int, bool) {
	best, bestDist := -1, math.Inf(1)
	for i, s := range samples {
		d := v.ToPixel(geometry.Point2D{X: s.Station, Y: s.Elevation}).Distance(p)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > maxDist {
		return -1, false
	}
	return best, true
}
