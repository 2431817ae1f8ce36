package section

import (
	"math"
	"strconv"
	"strings"

	"xsection-editor/pkg/geometry"

	"github.com/paulmach/orb/encoding/wkt"
)

// MinSamples is the fewest samples a section may be edited down to.
const MinSamples = 2

// Sample is one row of a section.
type Sample struct {
	Station   float64
	Elevation float64
	Point     *geometry.Point2D // nil when the row carries no spatial point

	// fields holds the physical row text as loaded. ToRows re-emits it for
	// every value that did not change, which keeps round trips byte exact.
	fields []string
}

// NewSample builds a sample that has no backing row text.
func NewSample(station, elevation float64) Sample {
	return Sample{Station: station, Elevation: elevation}
}

// Fields returns a copy of the row text backing the sample.
func (s Sample) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// field returns the raw text of physical column idx.
func (s Sample) field(idx int) (string, bool) {
	if idx < 0 || idx >= len(s.fields) {
		return "", false
	}
	return s.fields[idx], true
}

func parseFloat(text string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(text), 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseSample reads station, elevation and the optional spatial point from a
// data row. row is the 1-based data row used in error reports.
func parseSample(source string, row int, fields []string, m Mapping) (Sample, error) {
	s := Sample{fields: fields}

	var err error
	if s.Station, err = requiredFloat(source, row, fields, m, ColStation); err != nil {
		return Sample{}, err
	}
	if s.Elevation, err = requiredFloat(source, row, fields, m, ColElevation); err != nil {
		return Sample{}, err
	}
	s.Point = parsePoint(fields, m)
	return s, nil
}

func requiredFloat(source string, row int, fields []string, m Mapping, name string) (float64, error) {
	idx, ok := m.Index(name)
	if !ok {
		return 0, &MalformedInputError{Source: source, Column: name, Reason: "no matching column"}
	}
	if idx >= len(fields) {
		return 0, &MalformedInputError{Source: source, Row: row, Column: name, Reason: "row too short"}
	}
	v, err := parseFloat(fields[idx])
	if err != nil {
		return 0, &MalformedInputError{Source: source, Row: row, Column: name, Reason: "not numeric", Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &MalformedInputError{Source: source, Row: row, Column: name, Reason: "not finite"}
	}
	return v, nil
}

// parsePoint prefers a WKT column and falls back to easting/northing. Any
// problem yields nil; spatial points are never required.
func parsePoint(fields []string, m Mapping) *geometry.Point2D {
	if idx, ok := m.Index(ColWKT); ok && idx < len(fields) {
		text := strings.TrimSpace(fields[idx])
		if text != "" {
			if p, err := wkt.UnmarshalPoint(text); err == nil {
				return &geometry.Point2D{X: p[0], Y: p[1]}
			}
		}
	}

	ei, eok := m.Index(ColEasting)
	ni, nok := m.Index(ColNorthing)
	if !eok || !nok || ei >= len(fields) || ni >= len(fields) {
		return nil
	}
	x, err := parseFloat(fields[ei])
	if err != nil {
		return nil
	}
	y, err := parseFloat(fields[ni])
	if err != nil {
		return nil
	}
	return &geometry.Point2D{X: x, Y: y}
}

// row renders the sample back to row text using mapping m.
func (s Sample) row(m Mapping) []string {
	out := s.Fields()
	out = setNumeric(out, m, ColStation, s.Station)
	out = setNumeric(out, m, ColElevation, s.Elevation)
	return out
}

func setNumeric(fields []string, m Mapping, name string, v float64) []string {
	idx, ok := m.Index(name)
	if !ok {
		return fields
	}
	for len(fields) <= idx {
		fields = append(fields, "")
	}
	if old, err := parseFloat(fields[idx]); err == nil && old == v {
		return fields
	}
	fields[idx] = formatFloat(v)
	return fields
}
