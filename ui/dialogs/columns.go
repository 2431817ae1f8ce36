package dialogs

import (
	"fmt"

	"xsection-editor/internal/edit"
	"xsection-editor/internal/section"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

var scopeLabels = []string{"This section", "All sections"}

// ColumnDialog binds a logical column of the current section to one of its
// physical columns.
type ColumnDialog struct {
	header  []string
	width   int
	mapping section.Mapping
	window  fyne.Window

	nameSelect   *widget.Select
	columnSelect *widget.Select
	scopeRadio   *widget.RadioGroup

	onSave func(edit.RemapColumnCommand)
}

// NewColumnDialog creates a column dialog for a section with the given
// header, column count and current mapping.
func NewColumnDialog(header []string, width int, m section.Mapping, window fyne.Window, onSave func(edit.RemapColumnCommand)) *ColumnDialog {
	return &ColumnDialog{
		header:  header,
		width:   width,
		mapping: m,
		window:  window,
		onSave:  onSave,
	}
}

// Show displays the dialog.
func (d *ColumnDialog) Show() {
	columns := ColumnLabels(d.header, d.width)

	d.columnSelect = widget.NewSelect(columns, nil)
	d.nameSelect = widget.NewSelect([]string{
		section.ColStation, section.ColElevation, section.ColRoughness,
		section.ColWKT, section.ColEasting, section.ColNorthing,
	}, func(name string) {
		if idx, ok := d.mapping.Index(name); ok && idx < len(columns) {
			d.columnSelect.SetSelected(columns[idx])
		} else {
			d.columnSelect.ClearSelected()
		}
	})
	d.scopeRadio = widget.NewRadioGroup(scopeLabels, nil)
	d.scopeRadio.Horizontal = true
	d.scopeRadio.SetSelected(scopeLabels[0])
	d.nameSelect.SetSelected(section.ColStation)

	form := widget.NewForm(
		widget.NewFormItem("Field", d.nameSelect),
		widget.NewFormItem("Column", d.columnSelect),
		widget.NewFormItem("Apply to", d.scopeRadio),
	)

	dlg := dialog.NewCustomConfirm("Column Mapping", "Apply", "Cancel", form, func(ok bool) {
		if !ok || d.onSave == nil {
			return
		}
		idx := d.columnSelect.SelectedIndex()
		if idx < 0 || d.nameSelect.Selected == "" {
			return
		}
		scope := edit.ScopeRecord
		if d.scopeRadio.Selected == scopeLabels[1] {
			scope = edit.ScopeGlobal
		}
		d.onSave(edit.RemapColumnCommand{Name: d.nameSelect.Selected, Index: idx, Scope: scope})
	}, d.window)
	dlg.Resize(fyne.NewSize(420, 240))
	dlg.Show()
}

// ColumnLabels names physical columns for selection, "0: x" style. Columns
// past the header are shown by index only.
func ColumnLabels(header []string, width int) []string {
	if width < len(header) {
		width = len(header)
	}
	labels := make([]string, width)
	for i := range labels {
		if i < len(header) && header[i] != "" {
			labels[i] = fmt.Sprintf("%d: %s", i, header[i])
		} else {
			labels[i] = fmt.Sprintf("%d", i)
		}
	}
	return labels
}
