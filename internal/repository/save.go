package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"xsection-editor/internal/atomicfile"
	"xsection-editor/internal/csvio"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/plot"
	"xsection-editor/internal/section"
	"xsection-editor/internal/versioning"
)

// SaveResult describes a completed save.
type SaveResult struct {
	ID       string
	Path     string
	Version  int
	PlotPath string

	// RenderErr is set when plot-on-save failed; the data file was still
	// written. It is a *RenderError.
	RenderErr error
}

// Save writes section id to disk under the naming policy. Edits to the
// record are refused until it returns. The normalized samples become the
// record's content only when the write succeeds; on failure the record
// stays dirty and any previous file is untouched.
func (r *Repository) Save(ctx context.Context, id string) (SaveResult, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	cfg, plotter := r.cfg, r.plotter
	boundary := r.boundary
	r.mu.Unlock()
	if !ok {
		return SaveResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	snap, err := e.rec.BeginSave()
	if err != nil {
		return SaveResult{}, err
	}

	start := time.Now()
	written := snap.WithSamples(section.Normalize(snap.Samples,
		cfg.NormalizeOptions(section.ColumnName(snap.Header, snap.Mapping, section.ColStation))))
	policy := cfg.Policy()
	if policy == versioning.Increment {
		written.Version = snap.Version + 1
	}
	path := versioning.Path(snap.SourcePath, policy, written.Version)
	res := SaveResult{ID: id, Path: path, Version: written.Version}

	tbl := written.ToRows(snap.Mapping)
	err = atomicfile.WriteFile(ctx, path, 0o644, func(w io.Writer) error {
		return csvio.Write(w, tbl, e.format)
	})
	if err != nil {
		err = &SaveIOError{ID: id, Path: path, Err: err}
		e.rec.FinishSave(snap, err)
		r.log.Error("save failed", "id", id, "path", path, "error", err)
		return SaveResult{}, err
	}
	e.rec.FinishSave(written, nil)
	r.log.Info("saved", "id", id, "path", path, "version", written.Version, "took", time.Since(start))

	if cfg.PlotOnSave && plotter != nil {
		res.PlotPath = versioning.PlotPath(path)
		if err := r.renderPlot(ctx, plotter, written, boundary, res.PlotPath); err != nil {
			res.RenderErr = &RenderError{ID: id, Path: res.PlotPath, Err: err}
			r.log.Warn("plot failed", "id", id, "path", res.PlotPath, "error", err)
		}
	}

	if policy == versioning.Increment {
		// the new version is the overlay for later edits of this section
		r.AddReferences(path)
	}
	return res, nil
}

func (r *Repository) renderPlot(ctx context.Context, p Plotter, snap section.Snapshot, b *overlap.Boundary, path string) error {
	sc := plot.NewScene(snap)
	if b != nil {
		sc.Overlaps = overlap.Intervals(snap.Samples, overlap.Classify(snap.Samples, b))
	}
	if ref, name, err := r.LoadReference(snap.ID); err == nil && ref != nil {
		sc.Reference, sc.ReferenceName = ref, name
	}

	var buf bytes.Buffer
	if err := p.Render(&buf, sc); err != nil {
		return err
	}
	return atomicfile.WriteBytes(ctx, path, 0o644, buf.Bytes())
}
