// Package repository owns the loaded sections: load order, the current
// section, the save policy and navigation between sections.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"xsection-editor/internal/config"
	"xsection-editor/internal/csvio"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/plot"
	"xsection-editor/internal/section"
	"xsection-editor/internal/versioning"

	"golang.org/x/sync/errgroup"
)

// loadWorkers bounds concurrent file parsing in LoadFiles.
const loadWorkers = 4

// Plotter renders a scene as an image.
type Plotter interface {
	Render(w io.Writer, sc plot.Scene) error
}

type entry struct {
	rec    *section.Record
	path   string // cleaned absolute source path, for duplicate checks
	format csvio.Format

	// remapped is set once the record's mapping was changed on its own; a
	// global remap no longer touches it.
	remapped bool
}

// Repository holds every loaded section in load order. It is the only owner
// of section records; other packages look them up by id for the duration of
// one operation.
type Repository struct {
	mu sync.Mutex

	cfg     config.Config
	log     *slog.Logger
	plotter Plotter

	order   []string
	entries map[string]*entry
	current int // index into order, -1 when empty

	// global column overrides applied on top of the preference lists
	globalMapping section.Mapping

	boundary    *overlap.Boundary
	boundaryGen uint64
	references  []string

	// nav serializes navigation so autosave and the switch are one step.
	nav sync.Mutex
}

// New creates an empty repository. A nil logger uses slog.Default.
func New(cfg config.Config, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		cfg:           cfg,
		log:           logger.With("component", "repository"),
		plotter:       plot.PNG{Width: cfg.Plot.Width, Height: cfg.Plot.Height},
		entries:       make(map[string]*entry),
		current:       -1,
		globalMapping: section.Mapping{},
	}
}

// SetPlotter replaces the image renderer used by plot-on-save.
func (r *Repository) SetPlotter(p Plotter) {
	r.mu.Lock()
	r.plotter = p
	r.mu.Unlock()
}

// Config returns the active configuration.
func (r *Repository) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the configuration. Loaded sections are not reparsed;
// normalization flags take effect at the next save or Discard.
func (r *Repository) SetConfig(cfg config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.plotter = replacePlotSize(r.plotter, cfg.Plot)
	r.mu.Unlock()
}

func replacePlotSize(p Plotter, pc config.PlotConfig) Plotter {
	if _, ok := p.(plot.PNG); ok {
		return plot.PNG{Width: pc.Width, Height: pc.Height}
	}
	return p
}

type loadResult struct {
	id    string
	path  string
	abs   string
	rec   *section.Record
	f     csvio.Format
	dirty bool
	err   error
}

// LoadFiles parses the given files concurrently and appends them in
// argument order. A file that fails to load is reported in errs and does
// not stop the others. Paths already loaded are skipped.
func (r *Repository) LoadFiles(ctx context.Context, paths []string) (loaded []string, errs map[string]error) {
	errs = make(map[string]error)

	r.mu.Lock()
	cfg := r.cfg
	global := r.globalMapping.Clone()
	seen := make(map[string]bool, len(r.entries))
	taken := make(map[string]bool, len(r.entries))
	for id, e := range r.entries {
		seen[e.path] = true
		taken[id] = true
	}
	r.mu.Unlock()

	var todo []*loadResult
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			errs[p] = err
			continue
		}
		abs = filepath.Clean(abs)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		id := uniqueID(versioning.ID(p), taken)
		taken[id] = true
		todo = append(todo, &loadResult{id: id, path: p, abs: abs})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadWorkers)
	for _, lr := range todo {
		lr := lr
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				lr.err = err
				return nil
			}
			lr.rec, lr.f, lr.dirty, lr.err = loadFile(lr.id, lr.path, cfg, global)
			return nil // a bad file never cancels the others
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lr := range todo {
		if lr.err != nil {
			errs[lr.path] = lr.err
			r.log.Warn("load failed", "path", lr.path, "error", lr.err)
			continue
		}
		id := lr.id
		if _, dup := r.entries[id]; dup {
			// a concurrent LoadFiles took the id first
			errs[lr.path] = fmt.Errorf("section id %q already loaded", id)
			continue
		}
		r.entries[id] = &entry{rec: lr.rec, path: lr.abs, format: lr.f}
		r.order = append(r.order, id)
		loaded = append(loaded, id)
		r.log.Debug("loaded", "id", id, "path", lr.path, "samples", lr.rec.Len(), "dirty", lr.dirty)
	}
	if r.current < 0 && len(r.order) > 0 {
		r.current = 0
	}
	return loaded, errs
}

func loadFile(id, path string, cfg config.Config, global section.Mapping) (*section.Record, csvio.Format, bool, error) {
	tbl, f, err := csvio.ReadFile(path)
	if err != nil {
		return nil, csvio.Format{}, false, err
	}
	m := resolveMapping(cfg, global, tbl)
	rec, err := section.Load(id, tbl, m)
	if err != nil {
		return nil, csvio.Format{}, false, err
	}
	_, _, _, version := versioning.Split(path)
	rec.SetSourcePath(path)
	rec.SetVersion(version)

	// values changed by load normalization differ from disk, so the record
	// starts dirty
	dirty, err := normalize(rec, cfg)
	if err != nil {
		return nil, csvio.Format{}, false, err
	}
	return rec, f, dirty, nil
}

func resolveMapping(cfg config.Config, global section.Mapping, tbl section.Table) section.Mapping {
	width := tbl.Width()
	m := cfg.Preferences().Resolve(tbl.Header, width)
	for name, idx := range global {
		if idx < width {
			m[name] = idx
		}
	}
	return m
}

func normalize(rec *section.Record, cfg config.Config) (bool, error) {
	opts := cfg.NormalizeOptions(section.ColumnName(rec.Header(), rec.Mapping(), section.ColStation))
	return rec.ReplaceSamples(section.Normalize(rec.Samples(), opts))
}

func uniqueID(id string, taken map[string]bool) string {
	if !taken[id] {
		return id
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s (%d)", id, n)
		if !taken[cand] {
			return cand
		}
	}
}

// IDs returns the loaded ids in load order.
func (r *Repository) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of loaded sections.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Get returns the record for id.
func (r *Repository) Get(id string) (*section.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.rec, nil
}

// CurrentID returns the id of the current section, "" when none is loaded.
func (r *Repository) CurrentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < 0 {
		return ""
	}
	return r.order[r.current]
}

// CurrentIndex returns the position of the current section in load order.
func (r *Repository) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Current returns the current record.
func (r *Repository) Current() (*section.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < 0 {
		return nil, ErrNoSection
	}
	return r.entries[r.order[r.current]].rec, nil
}

// Close removes a section. The current section moves to a neighbor when the
// closed one was current. A save in flight is waited for first.
func (r *Repository) Close(ctx context.Context, id string) error {
	r.nav.Lock()
	defer r.nav.Unlock()

	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := rec.WaitIdle(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, oid := range r.order {
		if oid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.order = append(r.order[:idx:idx], r.order[idx+1:]...)
	delete(r.entries, id)

	switch {
	case len(r.order) == 0:
		r.current = -1
	case idx < r.current:
		r.current--
	case r.current >= len(r.order):
		r.current = len(r.order) - 1
	}
	r.log.Debug("closed", "id", id, "dirty", rec.Dirty())
	return nil
}

// Reload re-reads the source file of id after it changed on disk. The new
// record takes the old one's place in load order. A dirty record is left
// alone and ErrUnsaved is returned.
func (r *Repository) Reload(ctx context.Context, id string) error {
	r.nav.Lock()
	defer r.nav.Unlock()

	r.mu.Lock()
	e, ok := r.entries[id]
	cfg, global := r.cfg, r.globalMapping.Clone()
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := e.rec.WaitIdle(ctx); err != nil {
		return err
	}
	if e.rec.Dirty() {
		return fmt.Errorf("%w: %s", ErrUnsaved, id)
	}

	if e.remapped {
		global = e.rec.Mapping()
	}
	rec, f, _, err := loadFile(id, e.rec.SourcePath(), cfg, global)
	if err != nil {
		return err
	}
	rec.SetVersion(e.rec.Version())

	r.mu.Lock()
	r.entries[id] = &entry{rec: rec, path: e.path, format: f, remapped: e.remapped}
	r.mu.Unlock()
	r.log.Info("reloaded", "id", id, "samples", rec.Len())
	return nil
}

// Discard drops unsaved edits of id: the record returns to what was last
// loaded or saved, with load normalization applied again.
func (r *Repository) Discard(id string) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := rec.Restore(); err != nil {
		return err
	}
	_, err = normalize(rec, r.Config())
	return err
}

// Remap binds a logical column to a physical index. With global false only
// record id changes. With global true the default mapping changes: records
// not remapped on their own follow it, files loaded later use it, and the
// index becomes the first column preference in Config. A
// record that cannot take the new mapping keeps its old one; the failures
// are joined in the returned error.
func (r *Repository) Remap(id, name string, idx int, global bool) error {
	if !global {
		r.mu.Lock()
		e, ok := r.entries[id]
		r.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		m := e.rec.Mapping()
		m[name] = idx
		if err := e.rec.SetMapping(m); err != nil {
			return err
		}
		r.mu.Lock()
		e.remapped = true
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	r.globalMapping[name] = idx
	r.cfg = r.cfg.WithColumnIndex(name, idx)
	var targets []*entry
	for _, oid := range r.order {
		if e := r.entries[oid]; !e.remapped {
			targets = append(targets, e)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range targets {
		if idx < 0 || idx >= widest(e.rec) {
			errs = append(errs, fmt.Errorf("%s: column %d does not exist", e.rec.ID(), idx))
			continue
		}
		m := e.rec.Mapping()
		if m[name] == idx {
			continue
		}
		m[name] = idx
		if err := e.rec.SetMapping(m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.rec.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func widest(rec *section.Record) int {
	return rec.ToRows(rec.Mapping()).Width()
}

// SetBoundary installs the boundary polygon shared by every section. Nil
// clears it.
func (r *Repository) SetBoundary(b *overlap.Boundary) {
	r.mu.Lock()
	r.boundary = b
	r.boundaryGen++
	r.mu.Unlock()
}

// Boundary returns the boundary polygon and a generation counter that
// changes whenever it is replaced.
func (r *Repository) Boundary() (*overlap.Boundary, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boundary, r.boundaryGen
}

// AddReferences registers other-version files used as plot overlays.
func (r *Repository) AddReferences(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		dup := false
		for _, q := range r.references {
			if q == p {
				dup = true
				break
			}
		}
		if !dup {
			r.references = append(r.references, p)
		}
	}
}

// References returns the registered reference files.
func (r *Repository) References() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.references...)
}

// ReferenceFor returns the newest registered version of section id other
// than its own source file.
func (r *Repository) ReferenceFor(id string) (string, bool) {
	rec, err := r.Get(id)
	if err != nil {
		return "", false
	}
	return versioning.Latest(rec.SourcePath(), r.References())
}

// LoadReference reads the reference file for id, if any, with the same
// column resolution as the section itself.
func (r *Repository) LoadReference(id string) ([]section.Sample, string, error) {
	path, ok := r.ReferenceFor(id)
	if !ok {
		return nil, "", nil
	}
	r.mu.Lock()
	cfg, global := r.cfg, r.globalMapping.Clone()
	r.mu.Unlock()

	tbl, _, err := csvio.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	rec, err := section.Load(versioning.ID(path), tbl, resolveMapping(cfg, global, tbl))
	if err != nil {
		return nil, "", err
	}
	return rec.Samples(), filepath.Base(path), nil
}
