// Package overlap classifies section samples against a boundary polygon.
package overlap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xsection-editor/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// ErrNoPolygon is returned when a boundary file holds no polygonal geometry.
var ErrNoPolygon = errors.New("overlap: no polygon in boundary file")

// Boundary is read-only reference geometry shared by all sections.
type Boundary struct {
	Source  string
	polygon orb.MultiPolygon
	rings   [][]geometry.Point2D
	bounds  geometry.Rect
	reach   geometry.Rect // bounds grown by BoundaryTolerance
}

// NewBoundary wraps a polygon.
func NewBoundary(source string, mp orb.MultiPolygon) (*Boundary, error) {
	if len(mp) == 0 {
		return nil, ErrNoPolygon
	}
	b := &Boundary{Source: source, polygon: mp}
	var all []geometry.Point2D
	for _, poly := range mp {
		for _, ring := range poly {
			pts := make([]geometry.Point2D, len(ring))
			for i, p := range ring {
				pts[i] = geometry.Point2D{X: p[0], Y: p[1]}
			}
			b.rings = append(b.rings, pts)
			all = append(all, pts...)
		}
	}
	b.bounds = geometry.BoundingBox(all)
	b.reach = b.bounds.Grow(BoundaryTolerance)
	return b, nil
}

// MultiPolygon returns the boundary geometry.
func (b *Boundary) MultiPolygon() orb.MultiPolygon { return b.polygon }

// Bounds returns the boundary's bounding rectangle.
func (b *Boundary) Bounds() geometry.Rect { return b.bounds }

// LoadBoundary reads a GeoJSON (FeatureCollection, Feature or bare
// geometry) or WKT file. All polygons found are combined.
func LoadBoundary(path string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var geoms []orb.Geometry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wkt", ".txt":
		g, err := wkt.Unmarshal(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		geoms = append(geoms, g)
	default:
		geoms, err = geoJSONGeometries(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		mp = append(mp, polygons(g)...)
	}
	b, err := NewBoundary(path, mp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func geoJSONGeometries(data []byte) ([]orb.Geometry, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var out []orb.Geometry
		for _, f := range fc.Features {
			out = append(out, f.Geometry)
		}
		return out, nil
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return []orb.Geometry{f.Geometry}, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	return []orb.Geometry{g.Geometry()}, nil
}

func polygons(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Collection:
		var out orb.MultiPolygon
		for _, c := range v {
			out = append(out, polygons(c)...)
		}
		return out
	}
	return nil
}
