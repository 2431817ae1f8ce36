package app

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HotReloader watches the source files of loaded sections and calls back
// when one is changed by another program. Directories are watched rather
// than files so that editors which replace a file by rename are seen.
type HotReloader struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	files    map[string]bool
	dirs     map[string]int
	ignore   map[string]time.Time // own writes, suppressed until the time
	pending  map[string]time.Time
	onChange func(path string) // Called from a background goroutine

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHotReloader creates a reloader. Changes to a file are reported once it
// has been quiet for debounce.
func NewHotReloader(debounce time.Duration) (*HotReloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &HotReloader{
		watcher:  w,
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		ignore:   make(map[string]time.Time),
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}, nil
}

// OnChange sets the callback for external changes. The callback runs on the
// watcher goroutine.
func (h *HotReloader) OnChange(callback func(path string)) {
	h.mu.Lock()
	h.onChange = callback
	h.mu.Unlock()
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

// Watch starts reporting changes to path.
func (h *HotReloader) Watch(path string) error {
	path = cleanPath(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.files[path] {
		return nil
	}
	dir := filepath.Dir(path)
	if h.dirs[dir] == 0 {
		if err := h.watcher.Add(dir); err != nil {
			return err
		}
	}
	h.dirs[dir]++
	h.files[path] = true
	return nil
}

// Unwatch stops reporting changes to path.
func (h *HotReloader) Unwatch(path string) {
	path = cleanPath(path)
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.files[path] {
		return
	}
	delete(h.files, path)
	delete(h.pending, path)
	dir := filepath.Dir(path)
	h.dirs[dir]--
	if h.dirs[dir] <= 0 {
		delete(h.dirs, dir)
		_ = h.watcher.Remove(dir)
	}
}

// Ignore suppresses events for path for the duration d. Used around the
// editor's own in-place saves.
func (h *HotReloader) Ignore(path string, d time.Duration) {
	path = cleanPath(path)
	h.mu.Lock()
	h.ignore[path] = time.Now().Add(d)
	delete(h.pending, path)
	h.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (h *HotReloader) Start() {
	go h.watchLoop()
}

// Stop ends the watcher goroutine and releases the watcher.
func (h *HotReloader) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.watcher.Close()
	})
}

func (h *HotReloader) watchLoop() {
	tick := h.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.note(filepath.Clean(ev.Name))
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("HotReload: watcher error: %v", err)
		case now := <-ticker.C:
			h.flush(now)
		}
	}
}

func (h *HotReloader) note(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.files[path] {
		return
	}
	if until, ok := h.ignore[path]; ok {
		if time.Now().Before(until) {
			return
		}
		delete(h.ignore, path)
	}
	h.pending[path] = time.Now()
}

func (h *HotReloader) flush(now time.Time) {
	h.mu.Lock()
	var ready []string
	for path, at := range h.pending {
		if now.Sub(at) >= h.debounce {
			ready = append(ready, path)
			delete(h.pending, path)
		}
	}
	cb := h.onChange
	h.mu.Unlock()

	for _, path := range ready {
		// a rename away leaves nothing to reload
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if cb != nil {
			cb(path)
		}
	}
}
