package plot

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"xsection-editor/internal/section"
	"xsection-editor/pkg/geometry"
)

// Colors used by the raster view.
var (
	BackgroundColor = color.RGBA{255, 255, 255, 255}
	GridColor       = color.RGBA{225, 225, 225, 255}
	AxisColor       = color.RGBA{90, 90, 90, 255}
	SectionColor    = color.RGBA{31, 97, 166, 255}
	ReferenceColor  = color.RGBA{150, 150, 150, 255}
	BankColor       = color.RGBA{200, 60, 40, 255}
	SelectionColor  = color.RGBA{255, 160, 0, 255}
	OverlapColor    = color.RGBA{60, 170, 80, 60}
)

// RasterOptions configures the raster view.
type RasterOptions struct {
	LineWidth   int
	PointRadius int
	BankDash    int
	BankGap     int
	GridLines   int
}

// DefaultRasterOptions returns the options the editor uses.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		LineWidth:   2,
		PointRadius: 3,
		BankDash:    6,
		BankGap:     4,
		GridLines:   5,
	}
}

// Raster draws a scene into an RGBA image using the viewport's mapping.
func Raster(sc Scene, vp Viewport, opts RasterOptions) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	fillRect(img, img.Bounds(), BackgroundColor)

	plot := vp.Plot()
	top, bottom := int(plot.Y), int(plot.Y+plot.Height)
	left, right := int(plot.X), int(plot.X+plot.Width)

	// Overlap bands behind everything else
	for _, iv := range sc.Overlaps {
		a := vp.ToPixel(geometry.Point2D{X: iv.From, Y: vp.Data.Y})
		b := vp.ToPixel(geometry.Point2D{X: iv.To, Y: vp.Data.Y})
		x0, x1 := int(a.X), int(b.X)
		if x1-x0 < 2 {
			x0, x1 = x0-1, x0+2
		}
		fillRect(img, image.Rect(x0, top, x1, bottom), OverlapColor)
	}

	drawGrid(img, vp, opts.GridLines)

	if len(sc.Reference) > 1 {
		drawSeries(img, vp, sc.Reference, 1, ReferenceColor)
	}
	drawSeries(img, vp, sc.Samples, opts.LineWidth, SectionColor)

	for _, s := range sc.Samples {
		p := vp.ToPixel(geometry.Point2D{X: s.Station, Y: s.Elevation})
		fillCircle(img, int(p.X), int(p.Y), opts.PointRadius, SectionColor)
	}
	if sc.Selected >= 0 && sc.Selected < len(sc.Samples) {
		s := sc.Samples[sc.Selected]
		p := vp.ToPixel(geometry.Point2D{X: s.Station, Y: s.Elevation})
		drawCircle(img, int(p.X), int(p.Y), opts.PointRadius+3, SelectionColor)
		drawCircle(img, int(p.X), int(p.Y), opts.PointRadius+4, SelectionColor)
	}

	for _, b := range []struct {
		label string
		at    *float64
	}{{"L", sc.Banks.Left}, {"R", sc.Banks.Right}} {
		if b.at == nil {
			continue
		}
		x := int(vp.ToPixel(geometry.Point2D{X: *b.at, Y: 0}).X)
		drawLine(img, x, top, x, bottom, BankColor, opts.BankDash, opts.BankGap)
		drawText(img, x+3, top+12, b.label, BankColor)
	}

	// Axes frame
	drawLine(img, left, bottom, right, bottom, AxisColor, 0, 0)
	drawLine(img, left, top, left, bottom, AxisColor, 0, 0)

	if sc.Title != "" {
		drawText(img, left, top-10, sc.Title, AxisColor)
	}
	return img
}

func drawSeries(img *image.RGBA, vp Viewport, samples []section.Sample, width int, c color.RGBA) {
	for i := 1; i < len(samples); i++ {
		a := vp.ToPixel(geometry.Point2D{X: samples[i-1].Station, Y: samples[i-1].Elevation})
		b := vp.ToPixel(geometry.Point2D{X: samples[i].Station, Y: samples[i].Elevation})
		drawThickLine(img, a.X, a.Y, b.X, b.Y, width, c)
	}
}

func drawGrid(img *image.RGBA, vp Viewport, n int) {
	if n <= 0 {
		return
	}
	plot := vp.Plot()
	top, bottom := int(plot.Y), int(plot.Y+plot.Height)
	left, right := int(plot.X), int(plot.X+plot.Width)

	for i := 0; i <= n; i++ {
		f := float64(i) / float64(n)

		x := left + int(f*plot.Width)
		drawLine(img, x, top, x, bottom, GridColor, 0, 0)
		xv := vp.Data.X + f*vp.Data.Width
		label := formatTick(xv, vp.Data.Width)
		drawText(img, x-textWidth(label)/2, bottom+14, label, AxisColor)

		y := bottom - int(f*plot.Height)
		drawLine(img, left, y, right, y, GridColor, 0, 0)
		yv := vp.Data.Y + f*vp.Data.Height
		label = formatTick(yv, vp.Data.Height)
		drawText(img, left-textWidth(label)-4, y+4, label, AxisColor)
	}
}

// formatTick prints v with enough decimals to tell ticks over span apart.
func formatTick(v, span float64) string {
	decimals := 0
	if span > 0 {
		decimals = int(math.Max(0, math.Ceil(-math.Log10(span/10))))
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
