package panels

import (
	"fmt"
	"strconv"
	"strings"

	"xsection-editor/internal/app"
	"xsection-editor/internal/edit"
	"xsection-editor/internal/overlap"
	"xsection-editor/internal/section"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// sampleColumns are the table headings.
var sampleColumns = []string{"#", "Station", "Elevation", "Overlap"}

// SamplesPanel shows the samples of the current section as a table and
// offers the discrete edit actions for the selected row.
type SamplesPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	table *widget.Table
	rows  []section.Sample
	class map[int]overlap.Class

	stationEntry   *widget.Entry
	elevationEntry *widget.Entry
	banksLabel     *widget.Label
}

// NewSamplesPanel creates a new samples panel.
func NewSamplesPanel(state *app.State) *SamplesPanel {
	sp := &SamplesPanel{state: state}

	sp.table = widget.NewTable(
		func() (int, int) { return len(sp.rows) + 1, len(sampleColumns) },
		func() fyne.CanvasObject { return widget.NewLabel("000000.000") },
		sp.updateCell,
	)
	sp.table.SetColumnWidth(0, 48)
	sp.table.OnSelected = func(id widget.TableCellID) {
		if id.Row == 0 {
			sp.table.UnselectAll()
			return
		}
		state.SetSelected(id.Row - 1)
	}

	sp.stationEntry = widget.NewEntry()
	sp.stationEntry.SetPlaceHolder("station")
	sp.elevationEntry = widget.NewEntry()
	sp.elevationEntry.SetPlaceHolder("elevation")
	sp.banksLabel = widget.NewLabel("")

	moveBtn := widget.NewButton("Set", sp.onMove)
	trimLeftBtn := widget.NewButton("Trim left", func() { sp.onTrim(section.Left) })
	trimRightBtn := widget.NewButton("Trim right", func() { sp.onTrim(section.Right) })
	deleteBtn := widget.NewButton("Delete", sp.onDelete)

	editRow := container.NewBorder(nil, nil, nil, moveBtn,
		container.NewGridWithColumns(2, sp.stationEntry, sp.elevationEntry))
	actions := container.NewGridWithColumns(3, trimLeftBtn, trimRightBtn, deleteBtn)

	sp.container = container.NewBorder(
		nil,
		container.NewVBox(sp.banksLabel, editRow, actions),
		nil,
		nil,
		sp.table,
	)

	state.On(app.EventSectionChanged, func(interface{}) { sp.reload() })
	state.On(app.EventSamplesChanged, func(interface{}) { sp.reload() })
	state.On(app.EventSaveCompleted, func(interface{}) { sp.reload() })
	state.On(app.EventBoundaryChanged, func(interface{}) { sp.reload() })
	state.On(app.EventSelectionChanged, func(data interface{}) {
		if i, ok := data.(int); ok {
			sp.showSelection(i)
		}
	})
	return sp
}

// Container returns the panel container.
func (sp *SamplesPanel) Container() fyne.CanvasObject {
	return sp.container
}

func (sp *SamplesPanel) updateCell(id widget.TableCellID, obj fyne.CanvasObject) {
	label := obj.(*widget.Label)
	if id.Row == 0 {
		label.TextStyle = fyne.TextStyle{Bold: true}
		label.SetText(sampleColumns[id.Col])
		return
	}
	label.TextStyle = fyne.TextStyle{}
	i := id.Row - 1
	if i >= len(sp.rows) {
		label.SetText("")
		return
	}
	s := sp.rows[i]
	switch id.Col {
	case 0:
		label.SetText(strconv.Itoa(i))
	case 1:
		label.SetText(formatNumber(s.Station))
	case 2:
		label.SetText(formatNumber(s.Elevation))
	case 3:
		if c, ok := sp.class[i]; ok {
			label.SetText(c.String())
		} else {
			label.SetText("")
		}
	}
}

func (sp *SamplesPanel) reload() {
	rec, err := sp.state.Repo.Current()
	if err != nil {
		sp.rows = nil
		sp.class = nil
		sp.banksLabel.SetText("No section loaded")
		sp.table.Refresh()
		return
	}
	sp.rows = rec.Samples()
	sp.class = nil
	if ov, ok := sp.state.Session.Overlaps(); ok {
		sp.class = ov.Classes
	}
	sp.banksLabel.SetText(describeBanks(rec.Banks()))
	sp.table.Refresh()
	sp.showSelection(sp.state.SelectedIndex())
}

func (sp *SamplesPanel) showSelection(i int) {
	if i < 0 || i >= len(sp.rows) {
		sp.stationEntry.SetText("")
		sp.elevationEntry.SetText("")
		return
	}
	sp.stationEntry.SetText(formatNumber(sp.rows[i].Station))
	sp.elevationEntry.SetText(formatNumber(sp.rows[i].Elevation))
	sp.table.ScrollTo(widget.TableCellID{Row: i + 1, Col: 0})
}

func (sp *SamplesPanel) selected() (int, bool) {
	i := sp.state.SelectedIndex()
	if i < 0 {
		showError(fmt.Errorf("select a sample first"), sp.window)
		return 0, false
	}
	return i, true
}

func (sp *SamplesPanel) onMove() {
	i, ok := sp.selected()
	if !ok {
		return
	}
	st, err := strconv.ParseFloat(strings.TrimSpace(sp.stationEntry.Text), 64)
	if err != nil {
		showError(fmt.Errorf("station: %w", err), sp.window)
		return
	}
	el, err := strconv.ParseFloat(strings.TrimSpace(sp.elevationEntry.Text), 64)
	if err != nil {
		showError(fmt.Errorf("elevation: %w", err), sp.window)
		return
	}
	showError(sp.state.Session.Apply(edit.MovePointCommand{Index: i, Station: st, Elevation: el}), sp.window)
}

func (sp *SamplesPanel) onTrim(side section.Side) {
	i, ok := sp.selected()
	if !ok {
		return
	}
	showError(sp.state.Session.Apply(edit.TrimBankCommand{Side: side, Index: i}), sp.window)
}

func (sp *SamplesPanel) onDelete() {
	i, ok := sp.selected()
	if !ok {
		return
	}
	showError(sp.state.Session.Apply(edit.DeletePointCommand{Index: i}), sp.window)
}

func describeBanks(b section.Banks) string {
	left, right := "-", "-"
	if b.Left != nil {
		left = formatNumber(*b.Left)
	}
	if b.Right != nil {
		right = formatNumber(*b.Right)
	}
	return fmt.Sprintf("Banks: left %s, right %s", left, right)
}

// formatNumber shows up to three decimals without trailing zeros.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
