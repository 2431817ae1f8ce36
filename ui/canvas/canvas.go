// Package canvas provides the interactive cross-section plot: click to
// select, Ctrl/Alt-click to trim a bank, drag to move a point and
// right-click to trim at an interpolated station.
package canvas

import (
	"image"
	"sync"

	"xsection-editor/internal/plot"
	"xsection-editor/internal/section"
	"xsection-editor/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// pickRadius is how close (in pixels) a click must land to a point.
const pickRadius = 8

// Action is what a primary click does.
type Action int

const (
	ActionSelect Action = iota
	ActionTrimLeft
	ActionTrimRight
)

// ClickAction maps the modifier keys held during a click to an action.
func ClickAction(mod fyne.KeyModifier) Action {
	switch {
	case mod&fyne.KeyModifierControl != 0, mod&fyne.KeyModifierSuper != 0:
		return ActionTrimLeft
	case mod&fyne.KeyModifierAlt != 0:
		return ActionTrimRight
	}
	return ActionSelect
}

// SideAt picks the bank a secondary click trims: the left half of the plot
// trims the left bank.
func SideAt(x float64, width int) section.Side {
	if x < float64(width)/2 {
		return section.Left
	}
	return section.Right
}

// PlotCanvas displays a plot.Scene and turns mouse gestures into callbacks.
type PlotCanvas struct {
	widget.BaseWidget

	raster *fynecanvas.Raster
	opts   plot.RasterOptions

	mu     sync.Mutex
	scene  plot.Scene
	extent geometry.Rect
	vp     plot.Viewport
	pxSize image.Point // last raster size in pixels

	// Interaction state
	modifier  fyne.KeyModifier
	dragIndex int
	dragging  bool

	// Callbacks
	onSelect        func(index int)
	onTrim          func(side section.Side, index int)
	onMove          func(index int, station, elevation float64)
	onTrimAtStation func(side section.Side, station float64)
}

var (
	_ desktop.Mouseable      = (*PlotCanvas)(nil)
	_ fyne.Draggable         = (*PlotCanvas)(nil)
	_ fyne.Tappable          = (*PlotCanvas)(nil)
	_ fyne.SecondaryTappable = (*PlotCanvas)(nil)
)

// NewPlotCanvas creates an empty plot canvas.
func NewPlotCanvas() *PlotCanvas {
	pc := &PlotCanvas{
		opts:      plot.DefaultRasterOptions(),
		dragIndex: -1,
		scene:     plot.Scene{Selected: -1},
		extent:    geometry.NewRect(0, 0, 1, 1),
	}
	pc.raster = fynecanvas.NewRaster(pc.draw)
	pc.raster.ScaleMode = fynecanvas.ImageScalePixels
	pc.raster.SetMinSize(fyne.NewSize(400, 300))
	pc.ExtendBaseWidget(pc)
	return pc
}

// SetScene replaces what is drawn. The axes are refitted unless a drag is
// in progress.
func (pc *PlotCanvas) SetScene(sc plot.Scene) {
	pc.mu.Lock()
	pc.scene = sc
	if !pc.dragging {
		pc.extent = plot.Extent(sc)
	}
	pc.mu.Unlock()
	pc.Refresh()
}

// SetSelected highlights sample i, -1 for none.
func (pc *PlotCanvas) SetSelected(i int) {
	pc.mu.Lock()
	pc.scene.Selected = i
	pc.mu.Unlock()
	pc.Refresh()
}

// OnSelect sets the callback for a plain click; -1 means empty space.
func (pc *PlotCanvas) OnSelect(callback func(index int)) { pc.onSelect = callback }

// OnTrim sets the callback for a modifier click on a point.
func (pc *PlotCanvas) OnTrim(callback func(side section.Side, index int)) { pc.onTrim = callback }

// OnMove sets the callback for a finished point drag.
func (pc *PlotCanvas) OnMove(callback func(index int, station, elevation float64)) {
	pc.onMove = callback
}

// OnTrimAtStation sets the callback for a secondary click.
func (pc *PlotCanvas) OnTrimAtStation(callback func(side section.Side, station float64)) {
	pc.onTrimAtStation = callback
}

// draw is the raster drawing function.
func (pc *PlotCanvas) draw(w, h int) image.Image {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.pxSize = image.Pt(w, h)
	pc.vp = plot.NewViewport(pc.extent, w, h)
	return plot.Raster(pc.scene, pc.vp, pc.opts)
}

// toPixel converts a widget position to raster pixels. The raster is drawn
// at device resolution, so the two differ by the canvas scale.
func (pc *PlotCanvas) toPixel(pos fyne.Position) geometry.Point2D {
	size := pc.Size()
	if size.Width <= 0 || size.Height <= 0 || pc.pxSize.X == 0 {
		return geometry.Point2D{X: float64(pos.X), Y: float64(pos.Y)}
	}
	return geometry.Point2D{
		X: float64(pos.X) * float64(pc.pxSize.X) / float64(size.Width),
		Y: float64(pos.Y) * float64(pc.pxSize.Y) / float64(size.Height),
	}
}

func (pc *PlotCanvas) inside(pos fyne.Position) bool {
	// Workaround for Fyne bug: reject clicks outside widget bounds
	size := pc.Size()
	return pos.X >= 0 && pos.Y >= 0 && pos.X <= size.Width && pos.Y <= size.Height
}

// MouseDown records the modifiers for the tap that follows.
func (pc *PlotCanvas) MouseDown(ev *desktop.MouseEvent) {
	pc.mu.Lock()
	pc.modifier = ev.Modifier
	pc.mu.Unlock()
}

// MouseUp implements desktop.Mouseable.
func (pc *PlotCanvas) MouseUp(*desktop.MouseEvent) {}

// Tapped handles left-click events.
func (pc *PlotCanvas) Tapped(ev *fyne.PointEvent) {
	if !pc.inside(ev.Position) {
		return
	}
	pc.mu.Lock()
	p := pc.toPixel(ev.Position)
	idx, ok := pc.vp.Nearest(pc.scene.Samples, p, pickRadius)
	action := ClickAction(pc.modifier)
	pc.mu.Unlock()

	switch action {
	case ActionTrimLeft, ActionTrimRight:
		if !ok || pc.onTrim == nil {
			return
		}
		side := section.Left
		if action == ActionTrimRight {
			side = section.Right
		}
		pc.onTrim(side, idx)
	default:
		if !ok {
			idx = -1
		}
		if pc.onSelect != nil {
			pc.onSelect(idx)
		}
	}
}

// TappedSecondary handles right-click events.
func (pc *PlotCanvas) TappedSecondary(ev *fyne.PointEvent) {
	if !pc.inside(ev.Position) || pc.onTrimAtStation == nil {
		return
	}
	pc.mu.Lock()
	p := pc.toPixel(ev.Position)
	station := pc.vp.ToData(p).X
	side := SideAt(p.X, pc.pxSize.X)
	pc.mu.Unlock()
	pc.onTrimAtStation(side, station)
}

// Dragged moves the point under the drag start with the mouse. The record
// is only changed once the drag ends.
func (pc *PlotCanvas) Dragged(ev *fyne.DragEvent) {
	pc.mu.Lock()
	if !pc.dragging {
		start := ev.Position.Subtract(ev.Dragged)
		idx, ok := pc.vp.Nearest(pc.scene.Samples, pc.toPixel(start), pickRadius)
		if !ok {
			pc.mu.Unlock()
			return
		}
		pc.dragging = true
		pc.dragIndex = idx
		pc.scene.Samples = append([]section.Sample(nil), pc.scene.Samples...)
		pc.scene.Selected = idx
	}
	d := pc.vp.ToData(pc.toPixel(ev.Position))
	pc.scene.Samples[pc.dragIndex].Station = d.X
	pc.scene.Samples[pc.dragIndex].Elevation = d.Y
	pc.mu.Unlock()
	pc.Refresh()
}

// DragEnd commits the dragged point.
func (pc *PlotCanvas) DragEnd() {
	pc.mu.Lock()
	if !pc.dragging {
		pc.mu.Unlock()
		return
	}
	idx := pc.dragIndex
	s := pc.scene.Samples[idx]
	pc.dragging = false
	pc.dragIndex = -1
	pc.mu.Unlock()

	if pc.onMove != nil {
		pc.onMove(idx, s.Station, s.Elevation)
	}
}

// CreateRenderer implements fyne.Widget.
func (pc *PlotCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &plotCanvasRenderer{canvas: pc}
}

type plotCanvasRenderer struct {
	canvas *PlotCanvas
}

func (r *plotCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *plotCanvasRenderer) MinSize() fyne.Size {
	return r.canvas.raster.MinSize()
}

func (r *plotCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *plotCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *plotCanvasRenderer) Destroy() {}
