// Package app provides application lifecycle management, configuration, and events.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"xsection-editor/internal/config"
	"xsection-editor/internal/edit"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/project"
	"xsection-editor/internal/repository"
	"xsection-editor/internal/section"
	"xsection-editor/internal/versioning"
)

// State holds the application state: the open sections, the edit session
// over them, the selection and the settings.
type State struct {
	mu sync.RWMutex

	Repo    *repository.Repository
	Session *edit.Session

	// Settings
	Config     config.Config
	ConfigPath string

	// Selected sample of the current section, -1 for none
	Selected int

	// Boundary polygon file, "" when none is loaded
	BoundaryPath string

	// Project file, "" until one is opened or saved
	ProjectPath string

	reloader *HotReloader

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventSectionChanged EventType = iota
	EventSamplesChanged
	EventSaveCompleted
	EventSelectionChanged
	EventBoundaryChanged
	EventConfigChanged
	EventReferencesChanged
	EventExternalChange
	EventProjectLoaded
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// SamplesChangedData is the payload of EventSamplesChanged.
type SamplesChangedData struct {
	Record  *section.Record
	Changed []int // nil when any sample may have changed
}

// SaveCompletedData is the payload of EventSaveCompleted.
type SaveCompletedData struct {
	Record *section.Record
	Result repository.SaveResult
	Err    error
}

// NewState creates the application state for cfg, saved to cfgPath when the
// settings change. A nil logger uses slog.Default.
func NewState(cfg config.Config, cfgPath string, logger *slog.Logger) *State {
	repo := repository.New(cfg, logger)
	s := &State{
		Repo:       repo,
		Session:    edit.NewSession(repo, logger),
		Config:     cfg,
		ConfigPath: cfgPath,
		Selected:   -1,
		listeners:  make(map[EventType][]EventListener),
	}
	s.Session.Subscribe(s)
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SectionChanged implements edit.Observer.
func (s *State) SectionChanged(rec *section.Record) {
	s.mu.Lock()
	s.Selected = -1
	s.mu.Unlock()
	s.Emit(EventSectionChanged, rec)
}

// SamplesChanged implements edit.Observer.
func (s *State) SamplesChanged(rec *section.Record, changed []int) {
	s.mu.Lock()
	if s.Selected >= rec.Len() {
		s.Selected = -1
	}
	s.mu.Unlock()
	s.Emit(EventSamplesChanged, SamplesChangedData{Record: rec, Changed: changed})
}

// SaveCompleted implements edit.Observer.
func (s *State) SaveCompleted(rec *section.Record, res repository.SaveResult, err error) {
	if err != nil {
		log.Printf("Save: %s failed: %v", rec.ID(), err)
	} else {
		log.Printf("Save: %s written to %s", rec.ID(), res.Path)
		if res.RenderErr != nil {
			log.Printf("Save: plot for %s failed: %v", rec.ID(), res.RenderErr)
		}
	}
	s.Emit(EventSaveCompleted, SaveCompletedData{Record: rec, Result: res, Err: err})
}

// SetSelected changes the selected sample.
func (s *State) SetSelected(i int) {
	s.mu.Lock()
	if s.Selected == i {
		s.mu.Unlock()
		return
	}
	s.Selected = i
	s.mu.Unlock()
	s.Emit(EventSelectionChanged, i)
}

// SelectedIndex returns the selected sample, -1 for none.
func (s *State) SelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Selected
}

// Settings returns the active configuration.
func (s *State) Settings() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Config
}

// OpenFiles loads section files and starts watching them for external
// changes. It returns one error per file that could not be loaded.
func (s *State) OpenFiles(ctx context.Context, paths []string) map[string]error {
	loaded, errs := s.Session.Open(ctx, paths)
	for path, err := range errs {
		log.Printf("Open: %s: %v", path, err)
	}
	for _, id := range loaded {
		rec, err := s.Repo.Get(id)
		if err != nil {
			continue
		}
		s.watch(rec.SourcePath())
	}
	log.Printf("Open: loaded %d of %d files", len(loaded), len(paths))
	return errs
}

// AddReferences registers other versions of sections for the plot overlay.
func (s *State) AddReferences(paths ...string) {
	s.Repo.AddReferences(paths...)
	s.Emit(EventReferencesChanged, s.Repo.References())
}

// LoadBoundary reads the overlap polygon from path and applies it to every
// section.
func (s *State) LoadBoundary(path string) error {
	b, err := overlap.LoadBoundary(path)
	if err != nil {
		return err
	}
	s.Repo.SetBoundary(b)
	s.mu.Lock()
	s.BoundaryPath = path
	s.mu.Unlock()
	log.Printf("Boundary: loaded %s", path)
	s.Emit(EventBoundaryChanged, b)
	return nil
}

// ClearBoundary removes the overlap polygon.
func (s *State) ClearBoundary() {
	s.Repo.SetBoundary(nil)
	s.mu.Lock()
	s.BoundaryPath = ""
	s.mu.Unlock()
	s.Emit(EventBoundaryChanged, (*overlap.Boundary)(nil))
}

// ApplyConfig validates cfg, makes it active and writes it to the config
// file. An invalid cfg changes nothing.
func (s *State) ApplyConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.Repo.SetConfig(cfg)
	return s.persistConfig(cfg)
}

func (s *State) persistConfig(cfg config.Config) error {
	s.mu.Lock()
	s.Config = cfg
	path := s.ConfigPath
	s.mu.Unlock()

	var err error
	if path != "" {
		if err = config.Save(path, cfg); err != nil {
			err = fmt.Errorf("settings applied but not saved: %w", err)
		}
	}
	s.Emit(EventConfigChanged, cfg)
	return err
}

// RemapColumn applies cmd to the current section. A global remap also
// becomes the saved column preference, so it survives a restart.
func (s *State) RemapColumn(cmd edit.RemapColumnCommand) error {
	err := s.Session.Apply(cmd)
	if cmd.Scope != edit.ScopeGlobal {
		return err
	}
	if perr := s.persistConfig(s.Repo.Config()); perr != nil {
		log.Printf("Config: %v", perr)
		if err == nil {
			err = perr
		}
	}
	return err
}

// Close removes a section and stops watching its file.
func (s *State) Close(ctx context.Context, id string) error {
	rec, err := s.Repo.Get(id)
	if err != nil {
		return err
	}
	path := rec.SourcePath()
	if err := s.Session.Close(ctx, id); err != nil {
		return err
	}
	s.mu.RLock()
	r := s.reloader
	s.mu.RUnlock()
	if r != nil {
		r.Unwatch(path)
	}
	return nil
}

// StartWatching enables reloading of sections whose files change on disk.
// A clean section is reloaded; a dirty one is left alone and
// EventExternalChange carries the id so the UI can tell the user.
func (s *State) StartWatching(debounce time.Duration) error {
	r, err := NewHotReloader(debounce)
	if err != nil {
		return err
	}
	r.OnChange(s.externalChange)

	s.mu.Lock()
	s.reloader = r
	s.mu.Unlock()
	s.Session.Subscribe(ownWrites{r})

	for _, id := range s.Repo.IDs() {
		if rec, err := s.Repo.Get(id); err == nil {
			s.watch(rec.SourcePath())
		}
	}
	r.Start()
	return nil
}

// StopWatching stops the file watcher.
func (s *State) StopWatching() {
	s.mu.Lock()
	r := s.reloader
	s.reloader = nil
	s.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}

func (s *State) watch(path string) {
	s.mu.RLock()
	r := s.reloader
	s.mu.RUnlock()
	if r == nil || path == "" {
		return
	}
	if err := r.Watch(path); err != nil {
		log.Printf("HotReload: cannot watch %s: %v", path, err)
	}
}

func (s *State) externalChange(path string) {
	for _, id := range s.Repo.IDs() {
		rec, err := s.Repo.Get(id)
		if err != nil || cleanPath(rec.SourcePath()) != path {
			continue
		}
		err = s.Session.Reload(context.Background(), id)
		switch {
		case errors.Is(err, repository.ErrUnsaved):
			log.Printf("HotReload: %s changed on disk but has unsaved edits", id)
			s.Emit(EventExternalChange, id)
		case err != nil:
			log.Printf("HotReload: reloading %s failed: %v", id, err)
		default:
			log.Printf("HotReload: reloaded %s", id)
		}
	}
}

// SaveProject writes the open sections, reference files and boundary to a
// project file at path.
func (s *State) SaveProject(path string) error {
	path = cleanPath(path)
	var sections []string
	for _, id := range s.Repo.IDs() {
		if rec, err := s.Repo.Get(id); err == nil {
			sections = append(sections, cleanPath(rec.SourcePath()))
		}
	}
	refs := s.Repo.References()
	for i := range refs {
		refs[i] = cleanPath(refs[i])
	}

	s.mu.RLock()
	boundary := s.BoundaryPath
	s.mu.RUnlock()
	if boundary != "" {
		boundary = cleanPath(boundary)
	}

	proj, err := project.Load(path)
	if err != nil {
		proj = project.New(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	proj.SetSections(path, sections)
	proj.SetReferences(path, refs)
	proj.SetBoundary(path, boundary)
	proj.Current = s.Repo.CurrentID()
	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.mu.Unlock()
	log.Printf("Project: saved %s (%d sections)", path, len(sections))
	return nil
}

// LoadProject opens the sections, references and boundary named by the
// project file at path. Sections that fail to load are returned; a missing
// boundary is logged and skipped.
func (s *State) LoadProject(ctx context.Context, path string) (map[string]error, error) {
	proj, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	wasEmpty := s.Repo.Len() == 0

	s.AddReferences(proj.ReferencePaths(path)...)
	if b := proj.BoundaryPath(path); b != "" {
		if err := s.LoadBoundary(b); err != nil {
			log.Printf("Project: boundary %s not loaded: %v", b, err)
		}
	}
	errs := s.OpenFiles(ctx, proj.SectionPaths(path))

	// leaving a section normalized on load would autosave it
	restore := wasEmpty && proj.Current != "" && proj.Current != s.Repo.CurrentID()
	if rec, err := s.Repo.Current(); restore && err == nil && rec.Dirty() && s.Settings().AutosaveOnChange {
		restore = false
	}
	if restore {
		if _, err := s.Session.JumpTo(ctx, proj.Current); err != nil {
			log.Printf("Project: cannot show %s: %v", proj.Current, err)
		}
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.mu.Unlock()
	s.Emit(EventProjectLoaded, path)
	return errs, nil
}

// ownWrites keeps the reloader from treating in-place saves as external
// changes.
type ownWrites struct{ r *HotReloader }

func (ownWrites) SectionChanged(*section.Record)        {}
func (ownWrites) SamplesChanged(*section.Record, []int) {}

func (o ownWrites) SaveCompleted(rec *section.Record, res repository.SaveResult, err error) {
	if err == nil && res.Path == rec.SourcePath() {
		o.r.Ignore(res.Path, 2*time.Second)
	}
}

// Title returns the window title for the current section.
func (s *State) Title(app string) string {
	rec, err := s.Repo.Current()
	if err != nil {
		return app
	}
	mark := ""
	switch edit.StateOf(rec) {
	case edit.Dirty:
		mark = " *"
	case edit.Saving:
		mark = " (saving)"
	case edit.Error:
		mark = " (save failed)"
	}
	name := rec.ID()
	if v := rec.Version(); v > 0 && s.Settings().Policy() == versioning.Increment {
		name = fmt.Sprintf("%s (v%02d)", name, v)
	}
	return fmt.Sprintf("%s [%d/%d]%s - %s", name, s.Repo.CurrentIndex()+1, s.Repo.Len(), mark, app)
}
