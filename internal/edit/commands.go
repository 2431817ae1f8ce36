package edit

import (
	"fmt"

	"xsection-editor/internal/section"
)

// Command is one user edit. The set is closed: only the types in this
// package implement it.
type Command interface {
	fmt.Stringer

	// apply mutates rec and returns the indices that changed, nil for all.
	apply(s *Session, rec *section.Record) ([]int, error)
}

// MovePointCommand sets the station and elevation of one sample, as a point
// drag does. The sequence is not re-sorted; a point dragged past a neighbor
// stays where it was put until save-time normalization repairs it.
type MovePointCommand struct {
	Index     int
	Station   float64
	Elevation float64
}

func (c MovePointCommand) String() string {
	return fmt.Sprintf("move %d to (%g, %g)", c.Index, c.Station, c.Elevation)
}

func (c MovePointCommand) apply(_ *Session, rec *section.Record) ([]int, error) {
	if err := rec.SetSample(c.Index, c.Station, c.Elevation); err != nil {
		return nil, err
	}
	return []int{c.Index}, nil
}

// DeletePointCommand removes one sample.
type DeletePointCommand struct {
	Index int
}

func (c DeletePointCommand) String() string { return fmt.Sprintf("delete %d", c.Index) }

func (c DeletePointCommand) apply(_ *Session, rec *section.Record) ([]int, error) {
	return nil, rec.RemoveSample(c.Index)
}

// TrimBankCommand drops every sample beyond Index on Side. The configured
// trim style decides whether the dropped rows stay in the file as comments.
type TrimBankCommand struct {
	Side  section.Side
	Index int
}

func (c TrimBankCommand) String() string { return fmt.Sprintf("trim %s at %d", c.Side, c.Index) }

func (c TrimBankCommand) apply(s *Session, rec *section.Record) ([]int, error) {
	return nil, rec.Trim(c.Side, c.Index, s.repo.Config().TrimAsComments())
}

// TrimBankAtStationCommand trims Side at a station that may fall between two
// samples. A sample is interpolated there first. Stations must be strictly
// increasing.
type TrimBankAtStationCommand struct {
	Side    section.Side
	Station float64
}

func (c TrimBankAtStationCommand) String() string {
	return fmt.Sprintf("trim %s at station %g", c.Side, c.Station)
}

func (c TrimBankAtStationCommand) apply(s *Session, rec *section.Record) ([]int, error) {
	_, err := rec.TrimAtStation(c.Side, c.Station, s.repo.Config().TrimAsComments())
	return nil, err
}

// Scope selects which mapping a remap changes.
type Scope int

const (
	// ScopeRecord changes only the current section.
	ScopeRecord Scope = iota
	// ScopeGlobal changes the default mapping used by every section that was
	// not remapped on its own, and by files loaded later.
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "record"
}

// RemapColumnCommand binds logical column Name to physical column Index.
type RemapColumnCommand struct {
	Name  string
	Index int
	Scope Scope
}

func (c RemapColumnCommand) String() string {
	return fmt.Sprintf("remap %s to column %d (%s)", c.Name, c.Index, c.Scope)
}

func (c RemapColumnCommand) apply(s *Session, rec *section.Record) ([]int, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("remap: empty column name")
	}
	if c.Scope == ScopeGlobal {
		return nil, s.repo.Remap("", c.Name, c.Index, true)
	}
	return nil, s.repo.Remap(rec.ID(), c.Name, c.Index, false)
}
