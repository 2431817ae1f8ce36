// Package prefs provides JSON-based window preferences: last directories,
// recent files and the split position. Editor settings live in
// internal/config.
package prefs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"xsection-editor/internal/atomicfile"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyLastDirectory  = "lastDirectory"
	KeyBoundaryPath   = "boundaryPath"
	KeyRecentSections = "recentSections"
	KeySplitOffset    = "splitOffset"
	KeyWindowWidth    = "windowWidth"
	KeyWindowHeight   = "windowHeight"
)

// MaxRecent bounds recent-file lists.
const MaxRecent = 10

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from ~/.config/xsection-editor/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFrom(filepath.Join(configDir, "xsection-editor", prefsFile))
}

// LoadFrom reads preferences from path. A missing or unreadable file gives
// empty preferences that will be written to path on Save.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return atomicfile.WriteBytes(context.Background(), p.path, 0o644, data)
}

// FloatWithFallback returns a float64 preference, or fallback if not set.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// String returns a string preference, or "" if not set.
func (p *Prefs) String(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Strings returns a string list preference, or nil if not set.
func (p *Prefs) Strings(key string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list, ok := p.values[key].([]interface{})
	if !ok {
		if s, ok := p.values[key].([]string); ok {
			return append([]string(nil), s...)
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AddRecent moves val to the front of the list under key, keeping at most
// MaxRecent entries.
func (p *Prefs) AddRecent(key, val string) {
	list := p.Strings(key)
	out := []string{val}
	for _, s := range list {
		if s != val && len(out) < MaxRecent {
			out = append(out, s)
		}
	}
	p.mu.Lock()
	p.values[key] = out
	p.mu.Unlock()
}
