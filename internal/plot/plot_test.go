package plot

import (
	"bytes"
	"image/png"
	"testing"

	"xsection-editor/internal/overlap"
	"xsection-editor/internal/section"
	"xsection-editor/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(pairs ...[2]float64) []section.Sample {
	out := make([]section.Sample, len(pairs))
	for i, p := range pairs {
		out[i] = section.NewSample(p[0], p[1])
	}
	return out
}

func testScene() Scene {
	left, right := 2.0, 8.0
	return Scene{
		Title:     "xs_001",
		Samples:   samples([2]float64{0, 10}, [2]float64{2, 6}, [2]float64{5, 2}, [2]float64{8, 6}, [2]float64{10, 10}),
		Banks:     section.Banks{Left: &left, Right: &right},
		Reference: samples([2]float64{0, 9}, [2]float64{5, 3}, [2]float64{10, 9}),
		Overlaps:  []overlap.Interval{{From: 2, To: 5, FirstIndex: 1, LastIndex: 2}},
		Selected:  2,
	}
}

func TestExtent(t *testing.T) {
	ext := Extent(testScene())
	assert.InDelta(t, -0.5, ext.X, 1e-9)
	assert.InDelta(t, 11.0, ext.Width, 1e-9)
	assert.InDelta(t, 1.6, ext.Y, 1e-9)

	flat := Extent(Scene{Samples: samples([2]float64{3, 4})})
	assert.Greater(t, flat.Width, 0.0)
	assert.Greater(t, flat.Height, 0.0)
}

func TestViewportRoundTrip(t *testing.T) {
	vp := NewViewport(geometry.NewRect(0, 0, 10, 5), 500, 300)

	p := vp.ToPixel(geometry.Point2D{X: 0, Y: 0})
	assert.InDelta(t, float64(Margin), p.X, 1e-9)
	assert.InDelta(t, float64(300-Margin), p.Y, 1e-9)

	top := vp.ToPixel(geometry.Point2D{X: 10, Y: 5})
	assert.InDelta(t, float64(500-Margin), top.X, 1e-9)
	assert.InDelta(t, float64(Margin), top.Y, 1e-9)

	back := vp.ToData(geometry.Point2D{X: 123, Y: 77})
	again := vp.ToPixel(back)
	assert.InDelta(t, 123.0, again.X, 1e-9)
	assert.InDelta(t, 77.0, again.Y, 1e-9)
}

func TestNearest(t *testing.T) {
	sc := testScene()
	vp := NewViewport(Extent(sc), 600, 400)

	target := vp.ToPixel(geometry.Point2D{X: 5, Y: 2})
	idx, ok := vp.Nearest(sc.Samples, geometry.Point2D{X: target.X + 3, Y: target.Y - 2}, 10)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = vp.Nearest(sc.Samples, geometry.Point2D{X: target.X + 50, Y: target.Y}, 10)
	assert.False(t, ok)
}

func TestRaster(t *testing.T) {
	sc := testScene()
	vp := NewViewport(Extent(sc), 400, 300)
	img := Raster(sc, vp, DefaultRasterOptions())
	require.Equal(t, 400, img.Bounds().Dx())
	require.Equal(t, 300, img.Bounds().Dy())

	p := vp.ToPixel(geometry.Point2D{X: 5, Y: 2})
	assert.Equal(t, SectionColor, img.RGBAAt(int(p.X), int(p.Y)))
	assert.Equal(t, BackgroundColor, img.RGBAAt(1, 1))
}

func TestPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PNG{Width: 640, Height: 320}.Render(&buf, testScene()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())

	err = PNG{Width: 640, Height: 320}.Render(&buf, Scene{Title: "empty"})
	assert.ErrorIs(t, err, ErrEmptyScene)
}

func TestFormatTick(t *testing.T) {
	assert.Equal(t, "12", formatTick(12.3, 100))
	assert.Equal(t, "12.3", formatTick(12.3, 5))
}
