// Package main provides the entry point for the Kolo Studio application.
package main

import (
	"log"
	"os"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"

	"kolo-studio/internal/app"
	"kolo-studio/ui/mainwindow"
	"kolo-studio/ui/prefs"
)

const appTitle = "Kolo Studio"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s", appTitle)

	fyneApp := fyneapp.NewWithID("io.kolo.studio")
	fyneApp.Settings().SetTheme(&app.StudioTheme{})

	state := app.NewState()
	defer state.Close()

	appPrefs := prefs.Load()

	win := mainwindow.New(fyneApp, state, appPrefs)
	win.Resize(fyne.NewSize(1280, 860))
	win.CenterOnScreen()

	// Open a project passed on the command line.
	if len(os.Args) > 1 {
		path := os.Args[1]
		if err := state.LoadProject(path); err != nil {
			log.Printf("Failed to load project %s: %v", path, err)
		}
	}

	setupHotReload()

	win.ShowAndRun()

	if err := win.SavePreferences(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// setupHotReload restarts the app automatically when the binary is
// recompiled during development.
func setupHotReload() {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}

	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected, restarting")
		if err := reloader.Restart(); err != nil {
			log.Printf("Hot reload: restart failed: %v", err)
			reloader.ResetBaseline()
			reloader.Start()
		}
	})

	reloader.Start()
}
