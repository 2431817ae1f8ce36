package repository

import (
	"context"
	"fmt"
)

// Switch describes the outcome of a navigation request.
type Switch struct {
	From string
	To   string

	// Autosave is set when the outgoing section was saved before the switch.
	Autosave *SaveResult
}

// Moved reports whether the current section changed.
func (s Switch) Moved() bool { return s.From != s.To }

// Next makes the following section current. It is a no-op on the last one.
func (r *Repository) Next(ctx context.Context) (Switch, error) {
	return r.step(ctx, 1)
}

// Previous makes the preceding section current. It is a no-op on the first
// one.
func (r *Repository) Previous(ctx context.Context) (Switch, error) {
	return r.step(ctx, -1)
}

func (r *Repository) step(ctx context.Context, delta int) (Switch, error) {
	r.nav.Lock()
	defer r.nav.Unlock()

	r.mu.Lock()
	if r.current < 0 {
		r.mu.Unlock()
		return Switch{}, ErrNoSection
	}
	target := r.current + delta
	if target < 0 {
		target = 0
	}
	if target >= len(r.order) {
		target = len(r.order) - 1
	}
	r.mu.Unlock()
	return r.switchToLocked(ctx, target)
}

// JumpTo makes section id current.
func (r *Repository) JumpTo(ctx context.Context, id string) (Switch, error) {
	r.nav.Lock()
	defer r.nav.Unlock()

	r.mu.Lock()
	target := -1
	for i, oid := range r.order {
		if oid == id {
			target = i
			break
		}
	}
	r.mu.Unlock()
	if target < 0 {
		return Switch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.switchToLocked(ctx, target)
}

// switchToLocked moves current to target. The outgoing section's in-flight
// save is waited for, and with autosave a dirty section is saved first; if
// that save fails the switch does not happen. r.nav must be held.
func (r *Repository) switchToLocked(ctx context.Context, target int) (Switch, error) {
	r.mu.Lock()
	from := r.order[r.current]
	to := r.order[target]
	out := r.entries[from].rec
	autosave := r.cfg.AutosaveOnChange
	r.mu.Unlock()

	sw := Switch{From: from, To: from}
	if from == to {
		return sw, nil
	}

	if err := out.WaitIdle(ctx); err != nil {
		return sw, err
	}
	if autosave && out.Dirty() {
		res, err := r.Save(ctx, from)
		if err != nil {
			return sw, fmt.Errorf("autosave %s: %w", from, err)
		}
		sw.Autosave = &res
	}

	r.mu.Lock()
	r.current = target
	r.mu.Unlock()
	sw.To = to
	r.log.Debug("switched", "from", from, "to", to)
	return sw, nil
}
