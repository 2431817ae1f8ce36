// Package project provides project file handling and persistence. A project
// is the set of section files being edited together with their reference
// versions and the overlap boundary.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xsection-editor/internal/atomicfile"
)

// Extension is the project file extension.
const Extension = ".xsproj"

// FormatVersion is the newest project format this package reads.
const FormatVersion = 1

// File represents a project file (.xsproj).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Paths (relative to project file when possible)
	Sections   []string `json:"sections"`
	References []string `json:"references,omitempty"`
	Boundary   string   `json:"boundary,omitempty"`

	// Current is the id of the section shown when the project was saved.
	Current string `json:"current,omitempty"`
}

// New creates a new, empty project file.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  FormatVersion,
		Name:     name,
		Created:  now,
		Modified: now,
	}
}

// Load loads a project from a .xsproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	if proj.Version > FormatVersion {
		return nil, fmt.Errorf("project %s: format version %d is newer than this program (%d)", path, proj.Version, FormatVersion)
	}
	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteBytes(context.Background(), path, 0o644, data)
}

// SetSections records the section files (relative to project).
func (p *File) SetSections(projectPath string, paths []string) {
	p.Sections = relAll(projectPath, paths)
	p.Modified = time.Now()
}

// SetReferences records the reference files (relative to project).
func (p *File) SetReferences(projectPath string, paths []string) {
	p.References = relAll(projectPath, paths)
	p.Modified = time.Now()
}

// SetBoundary records the boundary file (relative to project).
func (p *File) SetBoundary(projectPath, path string) {
	p.Boundary = ""
	if path != "" {
		p.Boundary = rel(projectPath, path)
	}
	p.Modified = time.Now()
}

// SectionPaths returns the absolute paths of the section files.
func (p *File) SectionPaths(projectPath string) []string {
	return absAll(projectPath, p.Sections)
}

// ReferencePaths returns the absolute paths of the reference files.
func (p *File) ReferencePaths(projectPath string) []string {
	return absAll(projectPath, p.References)
}

// BoundaryPath returns the absolute path to the boundary file, "" if none.
func (p *File) BoundaryPath(projectPath string) string {
	if p.Boundary == "" {
		return ""
	}
	return abs(projectPath, p.Boundary)
}

func rel(projectPath, path string) string {
	r, err := filepath.Rel(filepath.Dir(projectPath), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

func abs(projectPath, path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(projectPath), path)
}

func relAll(projectPath string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = rel(projectPath, p)
	}
	return out
}

func absAll(projectPath string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = abs(projectPath, p)
	}
	return out
}
