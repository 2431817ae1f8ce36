package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an id that is not loaded.
	ErrNotFound = errors.New("repository: section not found")

	// ErrNoSection is returned when an operation needs a current section and
	// none is loaded.
	ErrNoSection = errors.New("repository: no current section")

	// ErrUnsaved is returned by Reload when the record has unsaved edits.
	ErrUnsaved = errors.New("repository: section has unsaved edits")
)

// SaveIOError reports a failed data write. The record stays dirty and no
// partial file is left at Path.
type SaveIOError struct {
	ID   string
	Path string
	Err  error
}

func (e *SaveIOError) Error() string {
	return fmt.Sprintf("save %s to %s: %v", e.ID, e.Path, e.Err)
}

func (e *SaveIOError) Unwrap() error { return e.Err }

// RenderError reports a failed plot image. It never fails the data save it
// accompanies.
type RenderError struct {
	ID   string
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("plot %s to %s: %v", e.ID, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
