// Package section holds the cross-section data model: an ordered sequence of
// station/elevation samples with its column mapping, comment rows, bank
// markers and dirty bookkeeping, plus the pure normalization functions
// applied to it.
package section

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// trimMarker prefixes rows that were trimmed out of a section but kept in
// the file as comments.
const trimMarker = "!#"

// Table is the raw tabular form of a section file.
type Table struct {
	Header    []string
	HasHeader bool
	Rows      [][]string // data and comment rows, file order
}

// Width returns the widest row length, header included.
func (t Table) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// IsComment reports whether a row is a comment row (first field starts
// with '!').
func IsComment(row []string) bool {
	return len(row) > 0 && strings.HasPrefix(strings.TrimSpace(row[0]), "!")
}

// Side selects a bank.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Banks records where a section was trimmed. Nil means untrimmed on that
// side.
type Banks struct {
	Left  *float64
	Right *float64
}

// comment is a comment row anchored before sample index at (at == len means
// after the last sample).
type comment struct {
	at     int
	fields []string
}

// Snapshot is an immutable copy of a record's content.
type Snapshot struct {
	ID         string
	SourcePath string
	Version    int
	Revision   uint64
	Header     []string
	HasHeader  bool
	Mapping    Mapping
	Samples    []Sample
	Banks      Banks
	comments   []comment
}

// ToRows renders the snapshot with mapping m. Unchanged values keep their
// original text.
func (s Snapshot) ToRows(m Mapping) Table {
	t := Table{HasHeader: s.HasHeader}
	if s.HasHeader {
		t.Header = append([]string(nil), s.Header...)
	}
	ci := 0
	for i, smp := range s.Samples {
		for ci < len(s.comments) && s.comments[ci].at <= i {
			t.Rows = append(t.Rows, append([]string(nil), s.comments[ci].fields...))
			ci++
		}
		t.Rows = append(t.Rows, smp.row(m))
	}
	for ; ci < len(s.comments); ci++ {
		t.Rows = append(t.Rows, append([]string(nil), s.comments[ci].fields...))
	}
	return t
}

// WithSamples returns a copy of the snapshot carrying different samples.
// Comment anchors are clamped to the new length.
func (s Snapshot) WithSamples(samples []Sample) Snapshot {
	s.Samples = samples
	s.comments = clampComments(s.comments, len(samples))
	return s
}

// Record is one loaded section. All access goes through methods; mutations
// are atomic and refused while a save is in flight.
type Record struct {
	mu sync.Mutex

	id         string
	sourcePath string
	version    int
	header     []string
	hasHeader  bool
	mapping    Mapping
	samples    []Sample
	comments   []comment
	banks      Banks
	dirty      bool
	revision   uint64

	baseline Snapshot

	saving  bool
	idle    chan struct{}
	saveErr error
}

// Load parses a table into a record using mapping m. Row order is kept as
// is; rows starting with '!' are kept as comments.
func Load(id string, t Table, m Mapping) (*Record, error) {
	r := &Record{
		id:        id,
		header:    append([]string(nil), t.Header...),
		hasHeader: t.HasHeader,
		mapping:   m.Clone(),
	}
	samples, comments, err := parseRows(id, t.Rows, r.mapping)
	if err != nil {
		return nil, err
	}
	r.samples = samples
	r.comments = comments
	r.banks = banksFromComments(samples, comments)
	r.baseline = r.snapshotLocked()
	return r, nil
}

func parseRows(source string, rows [][]string, m Mapping) ([]Sample, []comment, error) {
	var (
		samples  []Sample
		comments []comment
	)
	for i, row := range rows {
		if IsComment(row) {
			comments = append(comments, comment{at: len(samples), fields: append([]string(nil), row...)})
			continue
		}
		s, err := parseSample(source, i+1, append([]string(nil), row...), m)
		if err != nil {
			return nil, nil, err
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, nil, &MalformedInputError{Source: source, Reason: "no samples"}
	}
	return samples, comments, nil
}

func banksFromComments(samples []Sample, comments []comment) Banks {
	var b Banks
	for _, c := range comments {
		if !strings.HasPrefix(strings.TrimSpace(c.fields[0]), trimMarker) {
			continue
		}
		switch c.at {
		case 0:
			v := samples[0].Station
			b.Left = &v
		case len(samples):
			v := samples[len(samples)-1].Station
			b.Right = &v
		}
	}
	return b
}

// ID returns the record id (derived from the source file name).
func (r *Record) ID() string { return r.id }

// SourcePath returns the file the record was loaded from.
func (r *Record) SourcePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourcePath
}

// SetSourcePath records where the section was loaded from.
func (r *Record) SetSourcePath(path string) {
	r.mu.Lock()
	r.sourcePath = path
	r.mu.Unlock()
}

// Version returns the save version counter.
func (r *Record) Version() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// SetVersion seeds the save version counter (at load time).
func (r *Record) SetVersion(v int) {
	r.mu.Lock()
	r.version = v
	r.baseline.Version = v
	r.mu.Unlock()
}

// Dirty reports whether the record differs from what was last loaded or saved.
func (r *Record) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Revision increases on every mutation.
func (r *Record) Revision() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// Len returns the number of samples.
func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Samples returns a copy of the sample sequence.
func (r *Record) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

// Mapping returns a copy of the record's column mapping.
func (r *Record) Mapping() Mapping {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapping.Clone()
}

// Header returns the header row (nil for headerless files).
func (r *Record) Header() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.header...)
}

// Banks returns the current bank markers.
func (r *Record) Banks() Banks {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.banks
}

// Value reads auxiliary field name of sample i through the mapping.
func (r *Record) Value(i int, name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.samples) {
		return 0, false
	}
	idx, ok := r.mapping.Index(name)
	if !ok {
		return 0, false
	}
	text, ok := r.samples[i].field(idx)
	if !ok {
		return 0, false
	}
	v, err := parseFloat(text)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Snapshot returns an immutable copy of the record's content.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Record) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         r.id,
		SourcePath: r.sourcePath,
		Version:    r.version,
		Revision:   r.revision,
		Header:     append([]string(nil), r.header...),
		HasHeader:  r.hasHeader,
		Mapping:    r.mapping.Clone(),
		Samples:    append([]Sample(nil), r.samples...),
		Banks:      r.banks,
		comments:   append([]comment(nil), r.comments...),
	}
}

// ToRows renders the record with mapping m; the inverse of Load.
func (r *Record) ToRows(m Mapping) Table {
	return r.Snapshot().ToRows(m)
}

// mutate runs fn under the lock unless a save is in flight. fn must
// validate before it changes anything; on success the record becomes dirty.
func (r *Record) mutate(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saving {
		return ErrSaveInFlight
	}
	if err := fn(); err != nil {
		return err
	}
	r.dirty = true
	r.revision++
	return nil
}

func (r *Record) checkIndex(i int) error {
	if i < 0 || i >= len(r.samples) {
		return &IndexOutOfRangeError{Index: i, Len: len(r.samples)}
	}
	return nil
}

// SetSample replaces station and elevation of sample i. Order is positional
// and is never re-sorted.
func (r *Record) SetSample(i int, station, elevation float64) error {
	return r.mutate(func() error {
		if err := r.checkIndex(i); err != nil {
			return err
		}
		s := r.samples[i]
		s.Station, s.Elevation = station, elevation
		samples := append([]Sample(nil), r.samples...)
		samples[i] = s
		r.samples = samples
		return nil
	})
}

// RemoveSample deletes sample i.
func (r *Record) RemoveSample(i int) error {
	return r.mutate(func() error {
		if err := r.checkIndex(i); err != nil {
			return err
		}
		if len(r.samples)-1 < MinSamples {
			return &MinimumSamplesError{Op: "delete", Remaining: len(r.samples) - 1}
		}
		samples := make([]Sample, 0, len(r.samples)-1)
		samples = append(samples, r.samples[:i]...)
		samples = append(samples, r.samples[i+1:]...)

		comments := append([]comment(nil), r.comments...)
		for k := range comments {
			if comments[k].at > i {
				comments[k].at--
			}
		}
		r.samples = samples
		r.comments = comments
		return nil
	})
}

// Trim removes every sample beyond index on the given side: Left keeps
// index..end, Right keeps start..index. With asComments the removed rows
// stay in the file as "!#" comment rows.
func (r *Record) Trim(side Side, index int, asComments bool) error {
	return r.mutate(func() error {
		samples, comments, banks, err := r.trimmed(r.samples, r.comments, side, index, asComments)
		if err != nil {
			return err
		}
		r.samples, r.comments, r.banks = samples, comments, banks
		return nil
	})
}

// TrimAtStation inserts a sample interpolated at station (unless one already
// sits there) and trims the given side at it, as one mutation. It returns the
// index of the new bank sample after trimming.
func (r *Record) TrimAtStation(side Side, station float64, asComments bool) (int, error) {
	var bank int
	err := r.mutate(func() error {
		idx, s, exists, err := Interpolate(r.samples, r.mapping, station)
		if err != nil {
			return err
		}
		samples, comments := r.samples, r.comments
		if !exists {
			samples, comments = insertAt(samples, comments, idx, s)
		}
		samples, comments, banks, err := r.trimmed(samples, comments, side, idx, asComments)
		if err != nil {
			return err
		}
		r.samples, r.comments, r.banks = samples, comments, banks
		if side == Left {
			bank = 0
		} else {
			bank = len(samples) - 1
		}
		return nil
	})
	return bank, err
}

// trimmed computes the result of a trim without touching the record.
func (r *Record) trimmed(src []Sample, srcComments []comment, side Side, index int, asComments bool) ([]Sample, []comment, Banks, error) {
	if index < 0 || index >= len(src) {
		return nil, nil, Banks{}, &IndexOutOfRangeError{Index: index, Len: len(src)}
	}
	lo, hi := 0, len(src)-1
	if side == Left {
		lo = index
	} else {
		hi = index
	}
	if remaining := hi - lo + 1; remaining < MinSamples {
		return nil, nil, Banks{}, &MinimumSamplesError{Op: "trim " + side.String() + " bank", Remaining: remaining}
	}

	kept := append([]Sample(nil), src[lo:hi+1]...)
	var comments []comment
	for _, c := range srcComments {
		c.at -= lo
		comments = append(comments, c)
	}
	comments = clampComments(comments, len(kept))

	if asComments {
		var removed []Sample
		at := 0
		if side == Left {
			removed = src[:lo]
		} else {
			removed = src[hi+1:]
			at = len(kept)
		}
		var trimmed []comment
		for _, s := range removed {
			trimmed = append(trimmed, comment{at: at, fields: commentRow(s.row(r.mapping))})
		}
		if side == Left {
			comments = append(trimmed, comments...)
		} else {
			comments = append(comments, trimmed...)
		}
	}

	banks := r.banks
	if side == Left {
		v := kept[0].Station
		banks.Left = &v
	} else {
		v := kept[len(kept)-1].Station
		banks.Right = &v
	}
	return kept, comments, banks, nil
}

func commentRow(fields []string) []string {
	if len(fields) == 0 {
		return []string{trimMarker}
	}
	fields[0] = trimMarker + " " + fields[0]
	return fields
}

func clampComments(comments []comment, n int) []comment {
	out := make([]comment, len(comments))
	for i, c := range comments {
		if c.at < 0 {
			c.at = 0
		}
		if c.at > n {
			c.at = n
		}
		out[i] = c
	}
	return out
}

// InsertSample inserts s before index i (i == Len appends).
func (r *Record) InsertSample(i int, s Sample) error {
	return r.mutate(func() error {
		if i < 0 || i > len(r.samples) {
			return &IndexOutOfRangeError{Index: i, Len: len(r.samples) + 1}
		}
		r.samples, r.comments = insertAt(r.samples, r.comments, i, s)
		return nil
	})
}

func insertAt(src []Sample, srcComments []comment, i int, s Sample) ([]Sample, []comment) {
	samples := make([]Sample, 0, len(src)+1)
	samples = append(samples, src[:i]...)
	samples = append(samples, s)
	samples = append(samples, src[i:]...)

	comments := append([]comment(nil), srcComments...)
	for k := range comments {
		if comments[k].at > i {
			comments[k].at++
		}
	}
	return samples, comments
}

// ReplaceSamples swaps in a full sample sequence of the same length, as
// produced by the normalization functions. It reports whether anything
// changed; an unchanged sequence leaves the record clean.
func (r *Record) ReplaceSamples(samples []Sample) (bool, error) {
	changed := false
	err := r.mutate(func() error {
		if len(samples) != len(r.samples) {
			return fmt.Errorf("section: replace with %d samples, have %d", len(samples), len(r.samples))
		}
		for i := range samples {
			if samples[i].Station != r.samples[i].Station || samples[i].Elevation != r.samples[i].Elevation {
				changed = true
				break
			}
		}
		if !changed {
			return errUnchanged
		}
		r.samples = append([]Sample(nil), samples...)
		return nil
	})
	if err == errUnchanged {
		return false, nil
	}
	return changed, err
}

// SetMapping rebinds the record's columns. Station and elevation are
// re-parsed; a failure leaves the record unchanged.
func (r *Record) SetMapping(m Mapping) error {
	return r.mutate(func() error {
		m = m.Clone()
		samples := make([]Sample, len(r.samples))
		for i, s := range r.samples {
			// bake edited values into the row text before reading it anew
			ns, err := parseSample(r.id, i+1, s.row(r.mapping), m)
			if err != nil {
				return err
			}
			samples[i] = ns
		}
		r.mapping = m
		r.samples = samples
		return nil
	})
}

// Restore returns the record to its last loaded or saved content and
// clears any save error.
func (r *Record) Restore() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saving {
		return ErrSaveInFlight
	}
	b := r.baseline
	r.samples = append([]Sample(nil), b.Samples...)
	r.comments = append([]comment(nil), b.comments...)
	r.mapping = b.Mapping.Clone()
	r.banks = b.Banks
	r.version = b.Version
	r.dirty = false
	r.saveErr = nil
	r.revision++
	return nil
}

// BeginSave marks the record as saving. Mutations are refused until
// FinishSave.
func (r *Record) BeginSave() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saving {
		return Snapshot{}, ErrSaveInFlight
	}
	r.saving = true
	r.idle = make(chan struct{})
	return r.snapshotLocked(), nil
}

// FinishSave ends a save started by BeginSave. On success the written
// snapshot (normalized as it went to disk) becomes the record's content and
// baseline. On failure the record keeps its content and stays dirty.
func (r *Record) FinishSave(written Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saving {
		return
	}
	if err == nil {
		r.samples = append([]Sample(nil), written.Samples...)
		r.comments = append([]comment(nil), written.comments...)
		r.version = written.Version
		r.dirty = false
		r.revision++
		r.baseline = r.snapshotLocked()
	} else {
		r.dirty = true
	}
	r.saveErr = err
	r.saving = false
	close(r.idle)
}

// Saving reports whether a save is in flight.
func (r *Record) Saving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saving
}

// SaveErr returns the error of the last failed save, nil after a
// successful save or Restore.
func (r *Record) SaveErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveErr
}

// WaitIdle blocks until no save is in flight or ctx is done.
func (r *Record) WaitIdle(ctx context.Context) error {
	r.mu.Lock()
	if !r.saving {
		r.mu.Unlock()
		return nil
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkDirty flags the record as differing from disk without changing it.
// Used when load-time normalization altered the parsed values.
func (r *Record) MarkDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}
