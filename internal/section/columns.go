package section

import (
	"sort"
	"strconv"
	"strings"
)

// Logical column names understood by the model. Anything else in a Mapping
// is an auxiliary scalar field.
const (
	ColStation   = "station"
	ColElevation = "elevation"
	ColRoughness = "roughness"
	ColWKT       = "wkt"
	ColEasting   = "easting"
	ColNorthing  = "northing"
)

// Mapping binds logical column names to 0-based physical column indices.
type Mapping map[string]int

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Index returns the physical index bound to name.
func (m Mapping) Index(name string) (int, bool) {
	idx, ok := m[name]
	if !ok || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Names returns the bound logical names in a stable order.
func (m Mapping) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ColumnRef is one entry of a column preference list: a case-insensitive
// header name or a 0-based index.
type ColumnRef struct {
	Name    string
	Index   int
	IsIndex bool
}

// NameRef returns a header-name preference.
func NameRef(name string) ColumnRef { return ColumnRef{Name: name} }

// IndexRef returns a positional preference.
func IndexRef(idx int) ColumnRef { return ColumnRef{Index: idx, IsIndex: true} }

func (c ColumnRef) String() string {
	if c.IsIndex {
		return strconv.Itoa(c.Index)
	}
	return c.Name
}

// Preferences maps each logical column to an ordered preference list. The
// first entry that matches a file wins.
type Preferences map[string][]ColumnRef

// DefaultPreferences mirrors the column names commonly found in surveyed
// cross-section exports.
func DefaultPreferences() Preferences {
	return Preferences{
		ColStation:   {NameRef("x"), NameRef("x (m)"), NameRef("chainage"), NameRef("station"), NameRef("w"), IndexRef(0)},
		ColElevation: {NameRef("y"), NameRef("z"), NameRef("h"), NameRef("elevation"), IndexRef(1)},
		ColRoughness: {NameRef("n"), NameRef("m"), NameRef("mannings n")},
		ColWKT:       {NameRef("wkt")},
		ColEasting:   {NameRef("easting")},
		ColNorthing:  {NameRef("northing")},
	}
}

// Resolve builds a Mapping for a file with the given header and column
// count. Logical names with no matching preference are left unbound.
func (p Preferences) Resolve(header []string, width int) Mapping {
	lower := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := lower[key]; !seen {
			lower[key] = i
		}
	}

	m := make(Mapping, len(p))
	for name, refs := range p {
		for _, ref := range refs {
			if ref.IsIndex {
				if ref.Index >= 0 && ref.Index < width {
					m[name] = ref.Index
					break
				}
				continue
			}
			if idx, ok := lower[strings.ToLower(strings.TrimSpace(ref.Name))]; ok {
				m[name] = idx
				break
			}
		}
	}
	return m
}

// ColumnName returns the header text of the column bound to name, or the
// index as text for headerless tables.
func ColumnName(header []string, m Mapping, name string) string {
	idx, ok := m.Index(name)
	if !ok {
		return ""
	}
	if idx < len(header) {
		return header[idx]
	}
	return strconv.Itoa(idx)
}
