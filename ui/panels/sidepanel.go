// Package panels provides UI panels for the application.
package panels

import (
	"xsection-editor/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	state     *app.State
	container *container.AppTabs

	// Tab content
	samplesPanel  *SamplesPanel
	sectionsPanel *SectionsPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(state *app.State) *SidePanel {
	sp := &SidePanel{state: state}

	sp.samplesPanel = NewSamplesPanel(state)
	sp.sectionsPanel = NewSectionsPanel(state)

	sp.container = container.NewAppTabs(
		container.NewTabItem("Samples", sp.samplesPanel.Container()),
		container.NewTabItem("Sections", sp.sectionsPanel.Container()),
	)
	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.samplesPanel.window = w
	sp.sectionsPanel.window = w
}

// showError reports err in a dialog when a window is set.
func showError(err error, w fyne.Window) {
	if err == nil || w == nil {
		return
	}
	dialog.ShowError(err, w)
}
