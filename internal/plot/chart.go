package plot

import (
	"errors"
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmptyScene is returned when there is nothing to plot.
var ErrEmptyScene = errors.New("plot: no samples")

var (
	sectionColor   = drawing.Color{R: 31, G: 97, B: 166, A: 255}
	referenceColor = drawing.Color{R: 150, G: 150, B: 150, A: 255}
	bankColor      = drawing.Color{R: 200, G: 60, B: 40, A: 255}
	overlapColor   = drawing.Color{R: 60, G: 170, B: 80, A: 255}
)

// PNG renders scenes to PNG with go-chart. It is the image written beside a
// saved section file.
type PNG struct {
	Width  int
	Height int
}

// Render writes sc as a PNG image to w.
func (p PNG) Render(w io.Writer, sc Scene) error {
	if len(sc.Samples) == 0 {
		return ErrEmptyScene
	}
	ext := Extent(sc)

	var series []chart.Series
	if len(sc.Reference) > 0 {
		xs, ys := xy(sc.Reference)
		name := sc.ReferenceName
		if name == "" {
			name = "reference"
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor:     referenceColor,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5, 3},
			},
		})
	}

	xs, ys := xy(sc.Samples)
	series = append(series, chart.ContinuousSeries{
		Name:    sc.Title,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: sectionColor,
			StrokeWidth: 2,
			DotWidth:    3,
			DotColor:    sectionColor,
		},
	})

	for _, b := range []struct {
		name string
		at   *float64
	}{{"left bank", sc.Banks.Left}, {"right bank", sc.Banks.Right}} {
		if b.at == nil {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    b.name,
			XValues: []float64{*b.at, *b.at},
			YValues: []float64{ext.Y, ext.Y + ext.Height},
			Style: chart.Style{
				StrokeColor:     bankColor,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{4, 4},
			},
		})
	}

	for i, iv := range sc.Overlaps {
		from, to := iv.From, iv.To
		if from == to {
			from -= ext.Width * 0.002
			to += ext.Width * 0.002
		}
		name := ""
		if i == 0 {
			name = "inside boundary"
		}
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: []float64{from, to},
			YValues: []float64{ext.Y, ext.Y},
			Style: chart.Style{
				StrokeColor: overlapColor,
				StrokeWidth: 6,
			},
		})
	}

	ch := chart.Chart{
		Title:      sc.Title,
		Width:      p.Width,
		Height:     p.Height,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "Station",
			Range: &chart.ContinuousRange{Min: ext.X, Max: ext.X + ext.Width},
		},
		YAxis: chart.YAxis{
			Name:  "Elevation",
			Range: &chart.ContinuousRange{Min: ext.Y, Max: ext.Y + ext.Height},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", sc.Title, err)
	}
	return nil
}
