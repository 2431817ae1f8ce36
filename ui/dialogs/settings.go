// Package dialogs provides application dialogs.
package dialogs

import (
	"sort"
	"strconv"
	"strings"

	"xsection-editor/internal/config"
	"xsection-editor/internal/section"
	"xsection-editor/internal/versioning"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// SettingsDialog edits the editor configuration.
type SettingsDialog struct {
	cfg    config.Config
	window fyne.Window

	// Normalization and saving
	fixVerticals *widget.Check
	startAtZero  *widget.Check
	autosave     *widget.Check
	plotOnSave   *widget.Check
	policy       *widget.Select
	trimStyle    *widget.Select

	// Plot size
	widthEntry  *widget.Entry
	heightEntry *widget.Entry

	// Columns
	unsortableEntry *widget.Entry
	columnEntries   map[string]*widget.Entry

	// Callback
	onSave func(config.Config)
}

// NewSettingsDialog creates a settings dialog showing cfg. onSave receives
// the edited copy; validation is left to the caller.
func NewSettingsDialog(cfg config.Config, window fyne.Window, onSave func(config.Config)) *SettingsDialog {
	return &SettingsDialog{
		cfg:    cfg,
		window: window,
		onSave: onSave,
	}
}

// Show displays the dialog.
func (d *SettingsDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Settings",
		"Save",
		"Cancel",
		container.NewVScroll(content),
		func(save bool) {
			if save && d.onSave != nil {
				d.onSave(d.applyChanges())
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(520, 640))
	dlg.Show()
}

func (d *SettingsDialog) createContent() fyne.CanvasObject {
	d.fixVerticals = widget.NewCheck("Fix vertical segments and order by station", nil)
	d.fixVerticals.SetChecked(d.cfg.FixVerticalsAndOrder)
	d.startAtZero = widget.NewCheck("Shift stations to start at zero", nil)
	d.startAtZero.SetChecked(d.cfg.StartAtZero)
	d.autosave = widget.NewCheck("Save automatically when leaving a section", nil)
	d.autosave.SetChecked(d.cfg.AutosaveOnChange)
	d.plotOnSave = widget.NewCheck("Write a plot image next to each save", nil)
	d.plotOnSave.SetChecked(d.cfg.PlotOnSave)

	d.policy = widget.NewSelect([]string{string(versioning.Increment), string(versioning.InPlace)}, nil)
	d.policy.SetSelected(string(d.cfg.Policy()))
	d.trimStyle = widget.NewSelect([]string{config.TrimComment, config.TrimRemove}, nil)
	d.trimStyle.SetSelected(d.cfg.TrimStyle)

	savingForm := widget.NewForm(
		widget.NewFormItem("Naming", d.policy),
		widget.NewFormItem("Trimmed rows", d.trimStyle),
	)

	d.widthEntry = widget.NewEntry()
	d.widthEntry.SetText(strconv.Itoa(d.cfg.Plot.Width))
	d.heightEntry = widget.NewEntry()
	d.heightEntry.SetText(strconv.Itoa(d.cfg.Plot.Height))

	plotForm := widget.NewForm(
		widget.NewFormItem("Width (px)", d.widthEntry),
		widget.NewFormItem("Height (px)", d.heightEntry),
	)

	d.unsortableEntry = widget.NewEntry()
	d.unsortableEntry.SetText(strings.Join(d.cfg.UnsortableColumns, ", "))

	columnsForm := widget.NewForm()
	d.columnEntries = make(map[string]*widget.Entry)
	for _, name := range columnNames(d.cfg) {
		e := widget.NewEntry()
		e.SetText(config.FormatPrefs(d.cfg.Columns[name]))
		d.columnEntries[name] = e
		columnsForm.Append(name, e)
	}
	columnsForm.Append("Unsortable stations", d.unsortableEntry)

	return container.NewVBox(
		widget.NewCard("Normalization", "", container.NewVBox(d.fixVerticals, d.startAtZero)),
		widget.NewCard("Saving", "", container.NewVBox(d.autosave, d.plotOnSave, savingForm)),
		widget.NewCard("Plot Image", "", plotForm),
		widget.NewCard("Column Preferences", "Header names or 0-based indices, first match wins", columnsForm),
	)
}

// columnNames lists the logical columns shown in the dialog: the ones the
// model understands plus any extra configured names.
func columnNames(cfg config.Config) []string {
	seen := map[string]bool{}
	names := []string{
		section.ColStation, section.ColElevation, section.ColRoughness,
		section.ColWKT, section.ColEasting, section.ColNorthing,
	}
	for _, n := range names {
		seen[n] = true
	}
	var extra []string
	for n := range cfg.Columns {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func (d *SettingsDialog) applyChanges() config.Config {
	cfg := d.cfg
	cfg.FixVerticalsAndOrder = d.fixVerticals.Checked
	cfg.StartAtZero = d.startAtZero.Checked
	cfg.AutosaveOnChange = d.autosave.Checked
	cfg.PlotOnSave = d.plotOnSave.Checked
	cfg.SaveNamingPolicy = d.policy.Selected
	cfg.TrimStyle = d.trimStyle.Selected

	if v, err := strconv.Atoi(strings.TrimSpace(d.widthEntry.Text)); err == nil {
		cfg.Plot.Width = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(d.heightEntry.Text)); err == nil {
		cfg.Plot.Height = v
	}

	cfg.UnsortableColumns = nil
	for _, u := range strings.Split(d.unsortableEntry.Text, ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.UnsortableColumns = append(cfg.UnsortableColumns, u)
		}
	}

	cfg.Columns = make(map[string][]config.ColumnPref, len(d.columnEntries))
	for name, e := range d.columnEntries {
		if refs := config.ParsePrefs(e.Text); len(refs) > 0 {
			cfg.Columns[name] = refs
		}
	}
	return cfg
}
