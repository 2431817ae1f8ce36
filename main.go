// Package main provides the entry point for the cross-section editor.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"xsection-editor/internal/app"
	"xsection-editor/internal/config"
	"xsection-editor/internal/project"
	"xsection-editor/internal/version"
	"xsection-editor/ui/mainwindow"
	"xsection-editor/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "com.github.xsection-editor"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", mainwindow.AppName, version.Version)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfgPath, err := config.DefaultPath()
	if err != nil {
		log.Printf("Config: %v, using defaults", err)
	}
	cfg := config.Default()
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			log.Printf("Config: %v, using defaults", err)
			cfg = config.Default()
		}
	}

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.EditorTheme{})

	appState := app.NewState(cfg, cfgPath, logger)
	appPrefs := prefs.Load()

	win := mainwindow.New(a, appState, appPrefs)

	// Handle command line arguments: a project file or section files
	var sections []string
	for _, arg := range os.Args[1:] {
		if filepath.Ext(arg) == project.Extension {
			if _, err := appState.LoadProject(context.Background(), arg); err != nil {
				log.Printf("Failed to load project %s: %v", arg, err)
			}
			continue
		}
		sections = append(sections, arg)
	}
	win.OpenFiles(sections)
	if path := appPrefs.String(prefs.KeyBoundaryPath); path != "" && appState.BoundaryPath == "" {
		if err := win.LoadBoundary(path); err != nil {
			log.Printf("Boundary: %s not restored: %v", path, err)
		}
	}

	if err := appState.StartWatching(500 * time.Millisecond); err != nil {
		log.Printf("HotReload: disabled: %v", err)
	}
	defer appState.StopWatching()

	win.ShowAndRun()
}
