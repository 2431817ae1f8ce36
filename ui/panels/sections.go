package panels

import (
	"context"
	"fmt"
	"path/filepath"

	"xsection-editor/internal/app"
	"xsection-editor/internal/edit"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// SectionsPanel lists the loaded sections in navigation order. Selecting one
// jumps to it, autosaving the current section first when enabled.
type SectionsPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	list     *widget.List
	ids      []string
	syncing  bool // true while the list follows a programmatic switch
	refLabel *widget.Label
}

// NewSectionsPanel creates a new sections panel.
func NewSectionsPanel(state *app.State) *SectionsPanel {
	sp := &SectionsPanel{state: state}

	sp.list = widget.NewList(
		func() int { return len(sp.ids) },
		func() fyne.CanvasObject { return widget.NewLabel("section name (v00) *") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if id >= len(sp.ids) {
				return
			}
			text, failed := sp.describe(sp.ids[id])
			// failed saves show in the theme's warning colour
			label.Importance = widget.MediumImportance
			if failed {
				label.Importance = widget.WarningImportance
			}
			label.SetText(text)
		},
	)
	sp.list.OnSelected = func(id widget.ListItemID) {
		if sp.syncing || id >= len(sp.ids) {
			return
		}
		target := sp.ids[id]
		go func() {
			if _, err := state.Session.JumpTo(context.Background(), target); err != nil {
				showError(err, sp.window)
				sp.reload()
			}
		}()
	}

	closeBtn := widget.NewButton("Close section", sp.onClose)
	sp.refLabel = widget.NewLabel("")
	sp.refLabel.Wrapping = fyne.TextWrapWord

	sp.container = container.NewBorder(
		nil,
		container.NewVBox(closeBtn, widget.NewSeparator(), sp.refLabel),
		nil,
		nil,
		sp.list,
	)

	for _, ev := range []app.EventType{
		app.EventSectionChanged,
		app.EventSamplesChanged,
		app.EventSaveCompleted,
		app.EventReferencesChanged,
		app.EventConfigChanged,
	} {
		state.On(ev, func(interface{}) { sp.reload() })
	}
	return sp
}

// Container returns the panel container.
func (sp *SectionsPanel) Container() fyne.CanvasObject {
	return sp.container
}

func (sp *SectionsPanel) describe(id string) (string, bool) {
	rec, err := sp.state.Repo.Get(id)
	if err != nil {
		return id, false
	}
	text := id
	if v := rec.Version(); v > 0 {
		text = fmt.Sprintf("%s (v%02d)", text, v)
	}
	switch edit.StateOf(rec) {
	case edit.Dirty:
		text += " *"
	case edit.Saving:
		text += " (saving)"
	case edit.Error:
		return text + " (!)", true
	}
	return text, false
}

func (sp *SectionsPanel) reload() {
	sp.ids = sp.state.Repo.IDs()
	sp.list.Refresh()

	sp.syncing = true
	if i := sp.state.Repo.CurrentIndex(); i >= 0 && i < len(sp.ids) {
		sp.list.Select(i)
	} else {
		sp.list.UnselectAll()
	}
	sp.syncing = false

	refs := sp.state.Repo.References()
	if len(refs) == 0 {
		sp.refLabel.SetText("No reference files")
		return
	}
	text := fmt.Sprintf("%d reference files", len(refs))
	if ref, ok := sp.currentReference(); ok {
		text += "\nShowing: " + filepath.Base(ref)
	}
	sp.refLabel.SetText(text)
}

func (sp *SectionsPanel) currentReference() (string, bool) {
	id := sp.state.Repo.CurrentID()
	if id == "" {
		return "", false
	}
	return sp.state.Repo.ReferenceFor(id)
}

func (sp *SectionsPanel) onClose() {
	id := sp.state.Repo.CurrentID()
	if id == "" {
		return
	}
	if err := sp.state.Close(context.Background(), id); err != nil {
		showError(err, sp.window)
	}
}
