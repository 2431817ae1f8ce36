package config

import (
	"fmt"
	"strconv"
	"strings"

	"xsection-editor/internal/section"

	"gopkg.in/yaml.v3"
)

// ColumnPref is a section.ColumnRef as written in YAML: an integer is a
// 0-based column index, anything else a header name.
type ColumnPref section.ColumnRef

func (c *ColumnPref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column preference must be a name or an index", node.Line)
	}
	if node.ShortTag() == "!!int" {
		idx, err := strconv.Atoi(node.Value)
		if err != nil || idx < 0 {
			return fmt.Errorf("line %d: bad column index %q", node.Line, node.Value)
		}
		*c = ColumnPref(section.IndexRef(idx))
		return nil
	}
	*c = ColumnPref(section.NameRef(node.Value))
	return nil
}

func (c ColumnPref) MarshalYAML() (interface{}, error) {
	if c.IsIndex {
		return c.Index, nil
	}
	return c.Name, nil
}

// FormatPrefs writes a preference list as comma-separated text, the form
// used in the settings dialog.
func FormatPrefs(refs []ColumnPref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = section.ColumnRef(r).String()
	}
	return strings.Join(parts, ", ")
}

// ParsePrefs reads comma-separated text written by FormatPrefs. Blank
// entries are skipped; a non-negative integer is a column index.
func ParsePrefs(text string) []ColumnPref {
	var refs []ColumnPref
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
			refs = append(refs, ColumnPref(section.IndexRef(idx)))
			continue
		}
		refs = append(refs, ColumnPref(section.NameRef(part)))
	}
	return refs
}

// WithColumnIndex returns a copy of c in which physical column idx is the
// first preference for logical column name. Existing preferences follow it,
// minus any earlier entry for the same index.
func (c Config) WithColumnIndex(name string, idx int) Config {
	cols := make(map[string][]ColumnPref, len(c.Columns)+1)
	for k, v := range c.Columns {
		cols[k] = append([]ColumnPref(nil), v...)
	}
	prefs := []ColumnPref{ColumnPref(section.IndexRef(idx))}
	for _, p := range cols[name] {
		if p.IsIndex && p.Index == idx {
			continue
		}
		prefs = append(prefs, p)
	}
	cols[name] = prefs
	c.Columns = cols
	return c
}
