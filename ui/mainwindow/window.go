// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"xsection-editor/internal/app"
	"xsection-editor/internal/config"
	"xsection-editor/internal/edit"
	"xsection-editor/internal/plot"
	"xsection-editor/internal/project"
	"xsection-editor/internal/repository"
	"xsection-editor/internal/section"
	"xsection-editor/internal/version"
	"xsection-editor/ui/canvas"
	"xsection-editor/ui/dialogs"
	"xsection-editor/ui/panels"
	"xsection-editor/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// AppName is shown in the window title.
const AppName = "Cross-Section Editor"

var sectionFilter = storage.NewExtensionFileFilter([]string{".csv", ".txt"})

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	prefs     *prefs.Prefs
	canvas    *canvas.PlotCanvas
	sidePanel *panels.SidePanel
	split     *container.Split
	statusBar *widget.Label
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(AppName)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()
	mw.SetCloseIntercept(mw.onQuit)

	mw.Resize(fyne.NewSize(
		float32(p.FloatWithFallback(prefs.KeyWindowWidth, 1200)),
		float32(p.FloatWithFallback(prefs.KeyWindowHeight, 760)),
	))
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewPlotCanvas()
	mw.canvas.OnSelect(mw.state.SetSelected)
	mw.canvas.OnTrim(func(side section.Side, index int) {
		mw.apply(edit.TrimBankCommand{Side: side, Index: index})
	})
	mw.canvas.OnTrimAtStation(func(side section.Side, station float64) {
		mw.apply(edit.TrimBankAtStationCommand{Side: side, Station: station})
	})
	mw.canvas.OnMove(func(index int, station, elevation float64) {
		if !mw.apply(edit.MovePointCommand{Index: index, Station: station, Elevation: elevation}) {
			// put the dragged point back
			mw.refreshScene()
		}
	})

	mw.sidePanel = panels.NewSidePanel(mw.state)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")

	toolbar := mw.createToolbar()

	canvasArea := container.NewBorder(
		toolbar,   // top
		nil,       // bottom
		nil,       // left
		nil,       // right
		mw.canvas, // center
	)

	mw.split = container.NewHSplit(
		mw.sidePanel.Container(),
		canvasArea,
	)
	mw.split.SetOffset(mw.prefs.FloatWithFallback(prefs.KeySplitOffset, 0.3))

	content := container.NewBorder(
		nil,                               // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		mw.split,                          // center
	)

	mw.SetContent(content)
}

// createToolbar creates the navigation and save controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	return container.NewHBox(
		widget.NewButton("< Prev", mw.onPrevious),
		widget.NewButton("Next >", mw.onNext),
		widget.NewSeparator(),
		widget.NewButton("Save", mw.onSave),
		widget.NewButton("Discard", mw.onDiscard),
		widget.NewSeparator(),
		widget.NewLabel("Ctrl-click: trim left  Alt-click: trim right  Right-click: trim at station"),
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Project...", mw.onOpenProject),
		fyne.NewMenuItem("Save Project", mw.onSaveProject),
		fyne.NewMenuItem("Save Project As...", mw.onSaveProjectAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Sections...", mw.onOpenSections),
		fyne.NewMenuItem("Add Reference Versions...", mw.onAddReferences),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Load Boundary...", mw.onLoadBoundary),
		fyne.NewMenuItem("Clear Boundary", mw.state.ClearBoundary),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", mw.onSave),
		fyne.NewMenuItem("Reload From Disk", mw.onReload),
		fyne.NewMenuItem("Close Section", mw.onCloseSection),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", mw.onQuit),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Discard Changes", mw.onDiscard),
		fyne.NewMenuItem("Delete Selected Point", mw.onDeleteSelected),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Column Mapping...", mw.onColumnMapping),
		fyne.NewMenuItem("Settings...", mw.onSettings),
	)

	goMenu := fyne.NewMenu("Go",
		fyne.NewMenuItem("Previous Section", mw.onPrevious),
		fyne.NewMenuItem("Next Section", mw.onNext),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, goMenu, helpMenu))
}

// setupShortcuts binds the keyboard shortcuts.
func (mw *MainWindow) setupShortcuts() {
	c := mw.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onSave() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { mw.onOpenSections() })
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyPageDown:
			mw.onNext()
		case fyne.KeyPageUp:
			mw.onPrevious()
		case fyne.KeyDelete:
			mw.onDeleteSelected()
		}
	})
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	for _, ev := range []app.EventType{
		app.EventSectionChanged,
		app.EventSamplesChanged,
		app.EventBoundaryChanged,
		app.EventReferencesChanged,
		app.EventConfigChanged,
	} {
		mw.state.On(ev, func(interface{}) { mw.refreshScene() })
	}

	mw.state.On(app.EventSelectionChanged, func(data interface{}) {
		if i, ok := data.(int); ok {
			mw.canvas.SetSelected(i)
		}
	})

	mw.state.On(app.EventSaveCompleted, func(data interface{}) {
		d, ok := data.(app.SaveCompletedData)
		if !ok {
			return
		}
		mw.SetTitle(mw.state.Title(AppName))
		switch {
		case d.Err != nil:
			mw.updateStatus(fmt.Sprintf("Save of %s failed", d.Record.ID()))
			dialog.ShowError(d.Err, mw.Window)
		case d.Result.RenderErr != nil:
			mw.updateStatus(fmt.Sprintf("Saved %s, plot failed: %v", filepath.Base(d.Result.Path), d.Result.RenderErr))
		default:
			mw.updateStatus("Saved " + filepath.Base(d.Result.Path))
		}
	})

	mw.state.On(app.EventProjectLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.updateStatus("Project loaded: " + path)
		}
	})

	mw.state.On(app.EventExternalChange, func(data interface{}) {
		if id, ok := data.(string); ok {
			dialog.ShowInformation("File Changed",
				fmt.Sprintf("%s was changed by another program.\n"+
					"Save or discard your edits, then reload it from the File menu.", id),
				mw.Window)
		}
	})
}

// refreshScene redraws the plot from the current section.
func (mw *MainWindow) refreshScene() {
	mw.SetTitle(mw.state.Title(AppName))
	sc, err := mw.state.Session.Scene()
	if err != nil {
		mw.canvas.SetScene(plot.Scene{Selected: -1})
		return
	}
	sc.Selected = mw.state.SelectedIndex()
	mw.canvas.SetScene(sc)
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// apply runs an edit command, reporting a failure in a dialog.
func (mw *MainWindow) apply(cmd edit.Command) bool {
	if err := mw.state.Session.Apply(cmd); err != nil {
		log.Printf("Edit: %s: %v", cmd, err)
		dialog.ShowError(err, mw.Window)
		return false
	}
	mw.updateStatus(cmd.String())
	return true
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDirectory)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDirectory, filepath.Dir(filePath))
}

// pickFile shows a file open dialog and calls onPick with the chosen path.
func (mw *MainWindow) pickFile(filter storage.FileFilter, onPick func(path string)) {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		onPick(path)
	}, mw.Window)
	if filter != nil {
		fd.SetFilter(filter)
	}
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// pickFolder shows a folder dialog and calls onPick with the section files
// in it.
func (mw *MainWindow) pickFolder(onPick func(paths []string)) {
	fd := dialog.NewFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil || dir == nil {
			return
		}
		items, err := dir.List()
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		var paths []string
		for _, u := range items {
			if sectionFilter.Matches(u) {
				paths = append(paths, u.Path())
			}
		}
		mw.prefs.SetString(prefs.KeyLastDirectory, dir.Path())
		onPick(paths)
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// OpenFiles loads section files, reporting the ones that failed.
func (mw *MainWindow) OpenFiles(paths []string) {
	if len(paths) == 0 {
		return
	}
	errs := mw.state.OpenFiles(context.Background(), paths)
	for _, p := range paths {
		if _, failed := errs[p]; !failed {
			mw.prefs.AddRecent(prefs.KeyRecentSections, p)
		}
	}
	mw.showLoadErrors(errs)
}

// showLoadErrors reports files that failed to load in one dialog.
func (mw *MainWindow) showLoadErrors(errs map[string]error) {
	if len(errs) > 0 {
		var all []error
		for path, err := range errs {
			all = append(all, fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
		dialog.ShowError(errors.Join(all...), mw.Window)
	}
	mw.updateStatus(fmt.Sprintf("%d sections loaded", mw.state.Repo.Len()))
}

// Menu action handlers

func (mw *MainWindow) onOpenSections() {
	mw.pickFolder(mw.OpenFiles)
}

func (mw *MainWindow) onOpenProject() {
	filter := storage.NewExtensionFileFilter([]string{project.Extension})
	mw.pickFile(filter, func(path string) {
		errs, err := mw.state.LoadProject(context.Background(), path)
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.showLoadErrors(errs)
		if b := mw.state.BoundaryPath; b != "" {
			mw.prefs.SetString(prefs.KeyBoundaryPath, b)
		}
	})
}

func (mw *MainWindow) onSaveProject() {
	if mw.state.ProjectPath == "" {
		mw.onSaveProjectAs()
		return
	}
	if err := mw.state.SaveProject(mw.state.ProjectPath); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Project saved")
}

func (mw *MainWindow) onSaveProjectAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != project.Extension {
			path += project.Extension
		}
		mw.saveLastDir(path)
		if err := mw.state.SaveProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Project saved: " + path)
	}, mw.Window)
	fd.SetFileName("sections" + project.Extension)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onAddReferences() {
	mw.pickFolder(func(paths []string) {
		mw.state.AddReferences(paths...)
		mw.updateStatus(fmt.Sprintf("%d reference files", len(mw.state.Repo.References())))
	})
}

func (mw *MainWindow) onLoadBoundary() {
	filter := storage.NewExtensionFileFilter([]string{".wkt", ".txt", ".geojson", ".json"})
	mw.pickFile(filter, func(path string) {
		if err := mw.LoadBoundary(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	})
}

// LoadBoundary loads the overlap polygon and remembers it for next start.
func (mw *MainWindow) LoadBoundary(path string) error {
	if err := mw.state.LoadBoundary(path); err != nil {
		return err
	}
	mw.prefs.SetString(prefs.KeyBoundaryPath, path)
	mw.updateStatus("Boundary: " + filepath.Base(path))
	return nil
}

func (mw *MainWindow) onSave() {
	if mw.state.Repo.Len() == 0 {
		return
	}
	mw.updateStatus("Saving...")
	mw.state.Session.SaveAsync(context.Background(), func(_ repository.SaveResult, err error) {
		if errors.Is(err, section.ErrSaveInFlight) {
			mw.updateStatus("A save is already running")
		}
	})
	mw.SetTitle(mw.state.Title(AppName))
}

func (mw *MainWindow) onDiscard() {
	if err := mw.state.Session.Discard(); err != nil && !errors.Is(err, repository.ErrNoSection) {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Changes discarded")
}

func (mw *MainWindow) onReload() {
	id := mw.state.Repo.CurrentID()
	if id == "" {
		return
	}
	if err := mw.state.Session.Reload(context.Background(), id); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.updateStatus("Reloaded " + id)
}

func (mw *MainWindow) onCloseSection() {
	id := mw.state.Repo.CurrentID()
	if id == "" {
		return
	}
	if err := mw.state.Close(context.Background(), id); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onDeleteSelected() {
	if i := mw.state.SelectedIndex(); i >= 0 {
		mw.apply(edit.DeletePointCommand{Index: i})
	}
}

func (mw *MainWindow) onNext() {
	mw.navigate(mw.state.Session.Next)
}

func (mw *MainWindow) onPrevious() {
	mw.navigate(mw.state.Session.Previous)
}

// navigate switches sections off the UI goroutine, since leaving a dirty
// section may autosave it.
func (mw *MainWindow) navigate(move func(context.Context) (repository.Switch, error)) {
	go func() {
		if _, err := move(context.Background()); err != nil && !errors.Is(err, repository.ErrNoSection) {
			dialog.ShowError(err, mw.Window)
		}
	}()
}

func (mw *MainWindow) onColumnMapping() {
	rec, err := mw.state.Repo.Current()
	if err != nil {
		return
	}
	m := rec.Mapping()
	width := rec.ToRows(m).Width()
	dialogs.NewColumnDialog(rec.Header(), width, m, mw.Window, func(cmd edit.RemapColumnCommand) {
		if err := mw.state.RemapColumn(cmd); err != nil {
			log.Printf("Edit: %s: %v", cmd, err)
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus(cmd.String())
	}).Show()
}

func (mw *MainWindow) onSettings() {
	dialogs.NewSettingsDialog(mw.state.Settings(), mw.Window, func(cfg config.Config) {
		if err := mw.state.ApplyConfig(cfg); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.updateStatus("Settings saved")
	}).Show()
}

func (mw *MainWindow) onQuit() {
	mw.SavePreferences()
	if rec, err := mw.state.Repo.Current(); err == nil && rec.Dirty() {
		dialog.ShowConfirm("Unsaved Changes",
			fmt.Sprintf("%s has unsaved changes. Quit anyway?", rec.ID()),
			func(quit bool) {
				if quit {
					mw.app.Quit()
				}
			}, mw.Window)
		return
	}
	mw.app.Quit()
}

// SavePreferences writes the window layout and last paths.
func (mw *MainWindow) SavePreferences() {
	mw.prefs.SetFloat(prefs.KeySplitOffset, mw.split.Offset)
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
	mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	if err := mw.prefs.Save(); err != nil {
		log.Printf("Preferences: save failed: %v", err)
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+AppName,
		fmt.Sprintf("%s v%s\n\n"+
			"Edits ESTRY-TUFLOW cross-section files.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			AppName, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
