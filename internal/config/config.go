// Package config holds the editor settings persisted as YAML in the user's
// config directory.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"xsection-editor/internal/atomicfile"
	"xsection-editor/internal/section"
	"xsection-editor/internal/versioning"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	TrimRemove  = "remove"
	TrimComment = "comment"
)

// Config is the editor configuration. It is passed by value into the
// repository; nothing reads it from package state.
type Config struct {
	FixVerticalsAndOrder bool                    `yaml:"fix_verticals_and_order"`
	StartAtZero          bool                    `yaml:"start_at_zero"`
	AutosaveOnChange     bool                    `yaml:"autosave_on_change"`
	PlotOnSave           bool                    `yaml:"plot_on_save"`
	SaveNamingPolicy     string                  `yaml:"save_naming_policy" validate:"oneof=increment in_place"`
	TrimStyle            string                  `yaml:"trim_style" validate:"oneof=remove comment"`
	Columns              map[string][]ColumnPref `yaml:"columns" validate:"required,requiredcolumns,dive,min=1"`
	UnsortableColumns    []string                `yaml:"unsortable_columns"`
	Plot                 PlotConfig              `yaml:"plot"`
}

// PlotConfig sizes the image written on save.
type PlotConfig struct {
	Width  int `yaml:"width" validate:"min=200,max=8000"`
	Height int `yaml:"height" validate:"min=150,max=8000"`
}

// Default returns the settings used on first run.
func Default() Config {
	cfg := Config{
		SaveNamingPolicy:  string(versioning.Increment),
		TrimStyle:         TrimComment,
		Columns:           map[string][]ColumnPref{},
		UnsortableColumns: []string{"w"},
		Plot:              PlotConfig{Width: 1200, Height: 600},
	}
	for name, refs := range section.DefaultPreferences() {
		for _, r := range refs {
			cfg.Columns[name] = append(cfg.Columns[name], ColumnPref(r))
		}
	}
	return cfg
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("requiredcolumns", validateRequiredColumns)
}

// validateRequiredColumns checks that station and elevation have
// preferences.
func validateRequiredColumns(fl validator.FieldLevel) bool {
	cols, ok := fl.Field().Interface().(map[string][]ColumnPref)
	if !ok {
		return false
	}
	return len(cols[section.ColStation]) > 0 && len(cols[section.ColElevation]) > 0
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Policy returns the save naming policy.
func (c Config) Policy() versioning.Policy {
	if c.SaveNamingPolicy == string(versioning.InPlace) {
		return versioning.InPlace
	}
	return versioning.Increment
}

// TrimAsComments reports whether trimmed rows are kept as comment rows.
func (c Config) TrimAsComments() bool { return c.TrimStyle == TrimComment }

// Preferences converts the column settings for section.Preferences.Resolve.
func (c Config) Preferences() section.Preferences {
	p := make(section.Preferences, len(c.Columns))
	for name, refs := range c.Columns {
		for _, r := range refs {
			p[name] = append(p[name], section.ColumnRef(r))
		}
	}
	return p
}

// NormalizeOptions returns the normalization steps for a section whose
// station column has the given header text.
func (c Config) NormalizeOptions(stationHeader string) section.Options {
	opts := section.Options{FixVerticals: c.FixVerticalsAndOrder, StartAtZero: c.StartAtZero}
	h := strings.ToLower(strings.TrimSpace(stationHeader))
	for _, u := range c.UnsortableColumns {
		if h != "" && strings.ToLower(strings.TrimSpace(u)) == h {
			opts.Unsortable = true
		}
	}
	return opts
}

// DefaultPath is config.yaml under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user config directory: %w", err)
	}
	return filepath.Join(dir, "xsection-editor", "config.yaml"), nil
}

// Load reads the config at path, writing the defaults there first if the
// file does not exist. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Info("first run, creating config", "path", path)
		if err := Save(path, Default()); err != nil {
			return Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	var raw struct {
		Columns map[string][]ColumnPref `yaml:"columns"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config: %w", err)
	}
	// a columns block replaces the default lists rather than merging into them
	if raw.Columns != nil {
		cfg.Columns = raw.Columns
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.WriteBytes(context.Background(), path, 0o644, data)
}
