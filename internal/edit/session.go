// Package edit mediates user edits of the current section. Gestures from the
// view layer arrive as Command values; the session applies them to the record
// the repository marks current and notifies observers of what changed.
package edit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"xsection-editor/internal/plot"
	"xsection-editor/internal/repository"
	"xsection-editor/internal/section"
)

// State is the edit state of one section.
type State int

const (
	Clean State = iota
	Dirty
	Saving
	Error
)

func (s State) String() string {
	switch s {
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Error:
		return "error"
	default:
		return "clean"
	}
}

// StateOf derives the state of rec. A failed save keeps the record in Error
// until a save succeeds or the edits are discarded.
func StateOf(rec *section.Record) State {
	switch {
	case rec == nil:
		return Clean
	case rec.Saving():
		return Saving
	case rec.SaveErr() != nil:
		return Error
	case rec.Dirty():
		return Dirty
	}
	return Clean
}

// Observer receives the notifications a view layer redraws from. Calls may
// arrive on any goroutine.
type Observer interface {
	// SectionChanged reports a new current section; rec is nil when the
	// last section was closed.
	SectionChanged(rec *section.Record)

	// SamplesChanged reports edited samples. A nil changed slice means the
	// whole sequence may differ.
	SamplesChanged(rec *section.Record, changed []int)

	// SaveCompleted reports the outcome of every save, including autosaves
	// triggered by navigation.
	SaveCompleted(rec *section.Record, res repository.SaveResult, err error)
}

// Session applies commands to the current section of a repository.
type Session struct {
	repo *repository.Repository
	log  *slog.Logger

	mu        sync.Mutex
	observers []Observer
	overlaps  overlapCache
}

// NewSession creates a session over repo. A nil logger uses slog.Default.
func NewSession(repo *repository.Repository, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{repo: repo, log: logger.With("component", "edit")}
}

// Repository returns the repository the session edits.
func (s *Session) Repository() *repository.Repository { return s.repo }

// Subscribe registers an observer.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Session) each(fn func(Observer)) {
	s.mu.Lock()
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, o := range obs {
		fn(o)
	}
}

// State returns the state of the current section, Clean when none is loaded.
func (s *Session) State() State {
	rec, err := s.repo.Current()
	if err != nil {
		return Clean
	}
	return StateOf(rec)
}

// Apply runs cmd against the current section. A rejected command leaves the
// record unchanged and nothing is notified. A global remap can fail for other
// sections after the current one changed; observers still hear about it.
func (s *Session) Apply(cmd Command) error {
	rec, err := s.repo.Current()
	if err != nil {
		return err
	}
	rev := rec.Revision()
	changed, err := cmd.apply(s, rec)
	if err != nil {
		s.log.Debug("command rejected", "id", rec.ID(), "command", cmd.String(), "error", err)
		if rec.Revision() != rev {
			s.each(func(o Observer) { o.SamplesChanged(rec, nil) })
		}
		return err
	}
	s.log.Debug("command applied", "id", rec.ID(), "command", cmd.String(), "revision", rec.Revision())
	s.each(func(o Observer) { o.SamplesChanged(rec, changed) })
	return nil
}

// Save writes the current section. Observers get SaveCompleted whether or
// not it succeeded.
func (s *Session) Save(ctx context.Context) (repository.SaveResult, error) {
	rec, err := s.repo.Current()
	if err != nil {
		return repository.SaveResult{}, err
	}
	return s.save(ctx, rec)
}

func (s *Session) save(ctx context.Context, rec *section.Record) (repository.SaveResult, error) {
	res, err := s.repo.Save(ctx, rec.ID())
	if errors.Is(err, section.ErrSaveInFlight) {
		return res, err
	}
	s.each(func(o Observer) { o.SaveCompleted(rec, res, err) })
	if err == nil {
		// save-time normalization may have moved stations
		s.each(func(o Observer) { o.SamplesChanged(rec, nil) })
	}
	return res, err
}

// SaveAsync runs Save on its own goroutine. done, if not nil, is called with
// the outcome after the observers.
func (s *Session) SaveAsync(ctx context.Context, done func(repository.SaveResult, error)) {
	rec, err := s.repo.Current()
	if err != nil {
		if done != nil {
			done(repository.SaveResult{}, err)
		}
		return
	}
	go func() {
		res, err := s.save(ctx, rec)
		if done != nil {
			done(res, err)
		}
	}()
}

// Discard drops the current section's unsaved edits and clears a save
// error.
func (s *Session) Discard() error {
	rec, err := s.repo.Current()
	if err != nil {
		return err
	}
	if err := s.repo.Discard(rec.ID()); err != nil {
		return err
	}
	s.each(func(o Observer) { o.SamplesChanged(rec, nil) })
	return nil
}

// Next moves to the following section.
func (s *Session) Next(ctx context.Context) (repository.Switch, error) {
	return s.navigate(ctx, s.repo.Next)
}

// Previous moves to the preceding section.
func (s *Session) Previous(ctx context.Context) (repository.Switch, error) {
	return s.navigate(ctx, s.repo.Previous)
}

// JumpTo makes section id current.
func (s *Session) JumpTo(ctx context.Context, id string) (repository.Switch, error) {
	return s.navigate(ctx, func(ctx context.Context) (repository.Switch, error) {
		return s.repo.JumpTo(ctx, id)
	})
}

func (s *Session) navigate(ctx context.Context, move func(context.Context) (repository.Switch, error)) (repository.Switch, error) {
	from, _ := s.repo.Current()
	sw, err := move(ctx)
	if err != nil {
		var sioe *repository.SaveIOError
		if from != nil && errors.As(err, &sioe) {
			s.each(func(o Observer) { o.SaveCompleted(from, repository.SaveResult{}, err) })
		}
		return sw, err
	}
	if sw.Autosave != nil && from != nil {
		res := *sw.Autosave
		s.each(func(o Observer) { o.SaveCompleted(from, res, nil) })
	}
	if sw.Moved() {
		s.notifyCurrent()
	}
	return sw, nil
}

func (s *Session) notifyCurrent() {
	rec, _ := s.repo.Current()
	s.each(func(o Observer) { o.SectionChanged(rec) })
}

// Open loads files into the repository. When nothing was current before,
// the first loaded section becomes current and observers are told.
func (s *Session) Open(ctx context.Context, paths []string) ([]string, map[string]error) {
	before := s.repo.CurrentID()
	loaded, errs := s.repo.LoadFiles(ctx, paths)
	if s.repo.CurrentID() != before {
		s.notifyCurrent()
	}
	return loaded, errs
}

// Close removes section id from the repository.
func (s *Session) Close(ctx context.Context, id string) error {
	before := s.repo.CurrentID()
	if err := s.repo.Close(ctx, id); err != nil {
		return err
	}
	if id == before {
		s.notifyCurrent()
	}
	return nil
}

// Reload re-reads section id from disk. Observers see it as a section
// change when id is current.
func (s *Session) Reload(ctx context.Context, id string) error {
	if err := s.repo.Reload(ctx, id); err != nil {
		return err
	}
	if s.repo.CurrentID() == id {
		s.notifyCurrent()
	}
	return nil
}

// Scene assembles what the plot view draws for the current section: the
// samples, the overlap bands and the newest other version as reference.
func (s *Session) Scene() (plot.Scene, error) {
	rec, err := s.repo.Current()
	if err != nil {
		return plot.Scene{}, err
	}
	snap := rec.Snapshot()
	sc := plot.NewScene(snap)
	if ov, ok := s.overlapsFor(rec, snap); ok {
		sc.Overlaps = ov.Intervals
	}
	ref, name, err := s.repo.LoadReference(snap.ID)
	if err != nil {
		s.log.Warn("reference not loaded", "id", snap.ID, "error", err)
	} else if ref != nil {
		sc.Reference, sc.ReferenceName = ref, name
	}
	return sc, nil
}
