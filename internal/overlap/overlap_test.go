package overlap

import (
	"os"
	"path/filepath"
	"testing"

	"xsection-editor/internal/section"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(t *testing.T) *Boundary {
	t.Helper()
	poly := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	b, err := NewBoundary("square", orb.MultiPolygon{poly})
	require.NoError(t, err)
	return b
}

func loadPoints(t *testing.T, rows ...[]string) []section.Sample {
	t.Helper()
	tbl := section.Table{Header: []string{"x", "y", "wkt"}, HasHeader: true, Rows: rows}
	rec, err := section.Load("xs", tbl, section.DefaultPreferences().Resolve(tbl.Header, 3))
	require.NoError(t, err)
	return rec.Samples()
}

func TestClassify(t *testing.T) {
	samples := loadPoints(t,
		[]string{"0", "5", "POINT (5 5)"},
		[]string{"1", "5", "POINT (20 5)"},
		[]string{"2", "5", ""},
		[]string{"3", "5", "POINT (10 4)"},
		[]string{"4", "5", "POINT (0 0)"},
	)
	got := Classify(samples, square(t))
	assert.Equal(t, map[int]Class{0: Inside, 1: Outside, 3: OnBoundary, 4: OnBoundary}, got)
	_, ok := got[2]
	assert.False(t, ok)
}

func TestClassifyAgainstBounds(t *testing.T) {
	tri := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}
	b, err := NewBoundary("triangle", orb.MultiPolygon{tri})
	require.NoError(t, err)
	assert.Equal(t, 10.0, b.Bounds().Height)

	samples := loadPoints(t,
		[]string{"0", "1", "POINT (10 10)"},
		[]string{"1", "1", "POINT (10.0000000001 0)"},
		[]string{"2", "1", "POINT (-50 3)"},
		[]string{"3", "1", "POINT (2 2)"},
	)
	assert.Equal(t, map[int]Class{0: Outside, 1: OnBoundary, 2: Outside, 3: Inside}, Classify(samples, b))
}

func TestClassifyNoBoundary(t *testing.T) {
	samples := loadPoints(t, []string{"0", "5", "POINT (5 5)"}, []string{"1", "4", ""})
	assert.Empty(t, Classify(samples, nil))
}

func TestClassifyHole(t *testing.T) {
	poly := orb.Polygon{
		orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		orb.Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}
	b, err := NewBoundary("donut", orb.MultiPolygon{poly})
	require.NoError(t, err)
	samples := loadPoints(t, []string{"0", "1", "POINT (5 5)"}, []string{"1", "1", "POINT (2 2)"})
	assert.Equal(t, map[int]Class{0: Outside, 1: Inside}, Classify(samples, b))
}

func TestIntervals(t *testing.T) {
	samples := []section.Sample{
		section.NewSample(0, 1), section.NewSample(1, 1), section.NewSample(2, 1),
		section.NewSample(3, 1), section.NewSample(4, 1), section.NewSample(5, 1),
	}
	classes := map[int]Class{0: Outside, 1: Inside, 2: OnBoundary, 3: Outside, 5: Inside}
	assert.Equal(t, []Interval{
		{From: 1, To: 2, FirstIndex: 1, LastIndex: 2},
		{From: 5, To: 5, FirstIndex: 5, LastIndex: 5},
	}, Intervals(samples, classes))
	assert.Empty(t, Intervals(samples, nil))
}

func TestLoadBoundary(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"fc.geojson": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}]}`,
		"feature.json": `{"type":"Feature","properties":{},
			"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}`,
		"geom.geojson": `{"type":"MultiPolygon","coordinates":[[[[0,0],[10,0],[10,10],[0,10],[0,0]]]]}`,
		"poly.wkt":     "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			b, err := LoadBoundary(path)
			require.NoError(t, err)
			assert.Len(t, b.MultiPolygon(), 1)
			assert.Equal(t, 10.0, b.Bounds().Width)
		})
	}
}

func TestLoadBoundaryNoPolygon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pt.wkt")
	require.NoError(t, os.WriteFile(path, []byte("POINT (1 2)"), 0o644))
	_, err := LoadBoundary(path)
	assert.ErrorIs(t, err, ErrNoPolygon)
}
