// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"kolo-studio/internal/app"
	"kolo-studio/internal/detect"
	"kolo-studio/internal/export"
	"kolo-studio/internal/imageio"
	"kolo-studio/internal/project"
	"kolo-studio/internal/version"
	"kolo-studio/ui/canvas"
	"kolo-studio/ui/dialogs"
	"kolo-studio/ui/panels"
	"kolo-studio/ui/prefs"
)

const (
	prefKeyLastDir = "lastDirectory"
	prefKeyZoom    = "zoom"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	prefs     *prefs.Prefs
	canvas    *canvas.AnnotationCanvas
	sidePanel *panels.SidePanel
	statusBar *widget.Label
	zoomLabel *widget.Label

	shiftDown bool
}

// New creates the main window.
func New(fyneApp fyne.App, state *app.State, appPrefs *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Kolo Studio")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  appPrefs,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.setupKeyboard()

	mw.canvas.SetZoom(appPrefs.FloatWithFallback(prefKeyZoom, 1.0))

	return mw
}

// setupUI creates the main layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(mw.state.Registry)

	mw.sidePanel = panels.NewSidePanel(mw.state, mw.canvas)
	mw.sidePanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")

	// Annotation edits dirty the project and the box list.
	mw.canvas.OnEdit(func() {
		mw.state.SetModified(true)
		mw.state.Emit(app.EventAnnotationsChanged, mw.state.CurrentImage())
	})
	mw.canvas.OnZoomChange(func(zoom float64) {
		mw.zoomLabel.SetText(fmt.Sprintf("%d%%", int(zoom*100+0.5)))
		mw.prefs.SetFloat(prefKeyZoom, zoom)
	})

	toolbar := mw.createToolbar()

	canvasArea := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		mw.canvas.Container(),
	)

	split := container.NewHSplit(
		mw.sidePanel.Container(),
		canvasArea,
	)
	split.SetOffset(0.25)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
}

// createToolbar creates the toolbar with zoom controls and image
// navigation.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.zoomLabel = widget.NewLabel("100%")

	zoomOutBtn := widget.NewButton("-", mw.canvas.ZoomStepOut)
	zoomInBtn := widget.NewButton("+", mw.canvas.ZoomStepIn)
	actualBtn := widget.NewButton("1:1", func() {
		mw.canvas.SetZoom(1.0)
	})

	prevBtn := widget.NewButton("< Prev", func() { mw.stepImage(-1) })
	nextBtn := widget.NewButton("Next >", func() { mw.stepImage(1) })

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		actualBtn,
		mw.zoomLabel,
		widget.NewSeparator(),
		prevBtn,
		nextBtn,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Project...", mw.onNewProject),
		fyne.NewMenuItem("Open Project...", mw.onOpenProject),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", mw.onSave),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export COCO...", mw.onExportCOCO),
		fyne.NewMenuItem("Export YOLO...", mw.onExportYOLO),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Delete Annotation", mw.onDeleteAnnotation),
		fyne.NewMenuItem("Deselect", mw.onDeselect),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Detection Settings...", mw.onDetectionSettings),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.canvas.ZoomStepIn),
		fyne.NewMenuItem("Zoom Out", mw.canvas.ZoomStepOut),
		fyne.NewMenuItem("Actual Size", func() { mw.canvas.SetZoom(1.0) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Next Image", func() { mw.stepImage(1) }),
		fyne.NewMenuItem("Previous Image", func() { mw.stepImage(-1) }),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Auto-annotate Image", mw.onAutoAnnotate),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, toolsMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventProjectLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle("Kolo Studio - " + filepath.Base(path))
			mw.updateStatus(fmt.Sprintf("Project loaded: %s (%d images)", path, len(mw.state.Images)))
		}
	})

	mw.state.On(app.EventProjectSaved, func(interface{}) {
		mw.SetTitle(strings.TrimSuffix(mw.Title(), " *"))
		mw.updateStatus("Project saved")
	})

	mw.state.On(app.EventImageOpened, func(data interface{}) {
		if name, ok := data.(string); ok {
			mw.updateStatus(fmt.Sprintf("%s (%d/%d)", name, mw.state.Current+1, len(mw.state.Images)))
		}
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			if title := mw.Title(); !strings.HasSuffix(title, "*") {
				mw.SetTitle(title + " *")
			}
		}
	})

	mw.state.On(app.EventExportComplete, func(data interface{}) {
		if summary, ok := data.(export.Summary); ok {
			mw.updateStatus(summary.String())
		}
	})

	mw.state.On(app.EventDetectionComplete, func(data interface{}) {
		if report, ok := data.(detect.Report); ok {
			mw.updateStatus(fmt.Sprintf("Detected %d boxes, added %d (mean conf %.2f)",
				report.Total, report.Added, report.MeanConf))
		}
	})
}

// setupKeyboard routes key events to the canvas and tracks the shift
// modifier for resize nudges.
func (mw *MainWindow) setupKeyboard() {
	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyPageDown:
			mw.stepImage(1)
		case fyne.KeyPageUp:
			mw.stepImage(-1)
		default:
			mw.canvas.TypedKey(ev.Name, mw.shiftDown)
		}
	})

	if dc, ok := mw.Canvas().(desktop.Canvas); ok {
		dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				mw.shiftDown = true
			}
		})
		dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
			if ev.Name == desktop.KeyShiftLeft || ev.Name == desktop.KeyShiftRight {
				mw.shiftDown = false
			}
		})
	}
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefKeyLastDir)
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
	mw.prefs.SetString(prefKeyLastDir, filepath.Dir(filePath))
}

// SavePreferences flushes preferences to disk, called on shutdown.
func (mw *MainWindow) SavePreferences() error {
	return mw.prefs.Save()
}

// stepImage opens the next or previous image in the project.
func (mw *MainWindow) stepImage(delta int) {
	name, ok := mw.state.Step(delta)
	if !ok {
		return
	}
	mw.sidePanel.OpenImage(name)
	mw.sidePanel.SelectImageRow(mw.state.Current)
}

// Menu action handlers

func (mw *MainWindow) onNewProject() {
	fd := dialog.NewFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil || dir == nil {
			return
		}
		imageDir := dir.Path()
		mw.saveLastDir(imageDir)
		path := filepath.Join(imageDir, filepath.Base(imageDir)+project.Ext)
		if err := mw.state.NewProject(path, imageDir); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		mw.sidePanel.RefreshAll()
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenProject() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.state.LoadProject(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{project.Ext}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onSave() {
	if err := mw.state.SaveAll(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	if err := mw.state.SaveProject(); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onExportCOCO() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".json" {
			path += ".json"
		}
		mw.saveLastDir(path)
		mw.runExport(export.Job{
			Format:   export.FormatCOCO,
			Out:      path,
			Sets:     mw.state.ExportSets(),
			Registry: mw.state.Registry,
		})
	}, mw.Window)
	fd.SetFileName("annotations.json")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExportYOLO() {
	fd := dialog.NewFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil || dir == nil {
			return
		}
		mw.saveLastDir(dir.Path())
		mw.runExport(export.Job{
			Format:   export.FormatYOLO,
			Out:      dir.Path(),
			Sets:     mw.state.ExportSets(),
			Registry: mw.state.Registry,
		})
	}, mw.Window)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// runExport hands a job to the background worker and reports the
// outcome on the status bar when it lands.
func (mw *MainWindow) runExport(job export.Job) {
	mw.updateStatus(fmt.Sprintf("Exporting %d images...", len(job.Sets)))
	results := export.Start(context.Background(), job)
	go func() {
		res := <-results
		if res.Err != nil {
			mw.updateStatus("Export failed: " + res.Err.Error())
			return
		}
		mw.state.Emit(app.EventExportComplete, res.Summary)
	}()
}

func (mw *MainWindow) onDeleteAnnotation() {
	m := mw.canvas.Machine()
	if m == nil {
		return
	}
	if err := m.Delete(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.state.SetModified(true)
	mw.state.Emit(app.EventAnnotationsChanged, mw.state.CurrentImage())
	mw.canvas.Refresh()
}

func (mw *MainWindow) onDeselect() {
	if m := mw.canvas.Machine(); m != nil {
		m.Cancel()
		mw.canvas.Refresh()
	}
}

func (mw *MainWindow) onDetectionSettings() {
	if mw.state.Project == nil {
		mw.updateStatus("No project open")
		return
	}
	dialogs.NewDetectionDialog(&mw.state.Project.Settings, mw.Window, func(*project.Settings) {
		mw.state.SetModified(true)
	}).Show()
}

// onAutoAnnotate runs the detection model on the open image and adds
// the surviving candidates as annotations.
func (mw *MainWindow) onAutoAnnotate() {
	current := mw.state.CurrentImage()
	if current == "" {
		mw.updateStatus("No image open")
		return
	}
	settings := mw.state.Project.Settings
	if settings.ModelPath == "" {
		mw.updateStatus("No detection model configured")
		return
	}

	cfg := detect.DefaultConfig(settings.ModelPath, mw.state.Registry.Names())
	cfg.ConfThresh = float32(settings.ConfThreshold)
	detector, err := detect.NewDetector(cfg)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	defer detector.Close()

	img, err := imageio.Load(mw.state.ImagePath(current))
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}

	candidates, err := detector.Detect(img)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	if settings.MergeSimilar {
		candidates = detect.Merge(candidates, detect.MergeThreshold)
	}

	store, _, err := mw.state.OpenImage(current)
	if err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	added, skipped := detect.Apply(store, mw.state.Registry, candidates)
	if added > 0 {
		mw.state.SetModified(true)
	}

	report := detect.Summarize(candidates, added, skipped)
	mw.state.Emit(app.EventDetectionComplete, report)
	mw.state.Emit(app.EventAnnotationsChanged, current)
	mw.sidePanel.RefreshBoxes()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Kolo Studio",
		fmt.Sprintf("Kolo Studio v%s\n\n"+
			"A bounding-box annotation tool for object detection datasets.\n\n"+
			"Exports COCO and YOLO label formats.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
