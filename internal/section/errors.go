package section

import (
	"errors"
	"fmt"
)

var (
	// ErrSaveInFlight is returned by mutations attempted while the record is
	// being saved.
	ErrSaveInFlight = errors.New("section: save in flight")

	// ErrNotMonotonic is returned by operations that need strictly increasing
	// stations (interpolated banks).
	ErrNotMonotonic = errors.New("section: stations are not strictly increasing")

	// ErrOutOfRange is returned when an interpolation station lies outside the
	// section.
	ErrOutOfRange = errors.New("section: station outside section extent")

	errUnchanged = errors.New("section: unchanged")
)

// MalformedInputError reports a required column that is missing or not
// numeric. It is fatal to loading one file only.
type MalformedInputError struct {
	Source string // record id or path
	Row    int    // 1-based data row, 0 when the problem is not row specific
	Column string // logical column name
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed input %s", e.Source)
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// IndexOutOfRangeError reports an edit that references a nonexistent sample.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("sample index %d out of range [0,%d)", e.Index, e.Len)
}

// MinimumSamplesError reports an edit that would leave fewer than
// MinSamples samples.
type MinimumSamplesError struct {
	Op        string
	Remaining int
}

func (e *MinimumSamplesError) Error() string {
	return fmt.Sprintf("%s would leave %d sample(s), need at least %d", e.Op, e.Remaining, MinSamples)
}
