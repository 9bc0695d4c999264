// Package panels provides the side panel beside the annotation canvas.
package panels

import (
	"fmt"
	"image/color"
	"log"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"kolo-studio/internal/app"
	"kolo-studio/internal/category"
	"kolo-studio/internal/imageio"
	"kolo-studio/ui/canvas"
)

// SidePanel holds the category picker, the image browser, and the box
// list for the open image.
type SidePanel struct {
	state  *app.State
	canvas *canvas.AnnotationCanvas
	window fyne.Window

	tabs     *container.AppTabs
	catList  *widget.List
	imgList  *widget.List
	boxList  *widget.List
	addEntry *widget.Entry

	armedCategory int // -1 while drawing is disarmed
}

// NewSidePanel creates the side panel bound to the application state
// and the canvas.
func NewSidePanel(state *app.State, ac *canvas.AnnotationCanvas) *SidePanel {
	sp := &SidePanel{
		state:         state,
		canvas:        ac,
		armedCategory: -1,
	}

	sp.buildCategoryList()
	sp.buildImageList()
	sp.buildBoxList()

	sp.addEntry = widget.NewEntry()
	sp.addEntry.SetPlaceHolder("New category")
	sp.addEntry.OnSubmitted = func(string) { sp.submitCategory() }
	addBtn := widget.NewButton("Add", sp.submitCategory)

	categoryTab := container.NewBorder(
		nil,
		container.NewBorder(nil, nil, nil, addBtn, sp.addEntry),
		nil, nil,
		sp.catList,
	)

	sp.tabs = container.NewAppTabs(
		container.NewTabItem("Categories", categoryTab),
		container.NewTabItem("Images", sp.imgList),
		container.NewTabItem("Boxes", sp.boxList),
	)

	state.On(app.EventProjectLoaded, func(interface{}) { sp.RefreshAll() })
	state.On(app.EventCategoriesChanged, func(interface{}) { sp.catList.Refresh() })
	state.On(app.EventImageOpened, func(interface{}) { sp.boxList.Refresh() })
	state.On(app.EventAnnotationsChanged, func(interface{}) { sp.boxList.Refresh() })

	return sp
}

// SetWindow gives the panel a parent for error dialogs.
func (sp *SidePanel) SetWindow(win fyne.Window) {
	sp.window = win
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.tabs
}

// RefreshAll repaints every list after a project switch.
func (sp *SidePanel) RefreshAll() {
	sp.catList.Refresh()
	sp.imgList.Refresh()
	sp.boxList.Refresh()
}

// RefreshBoxes repaints the box list after an edit on the canvas.
func (sp *SidePanel) RefreshBoxes() {
	sp.boxList.Refresh()
}

func (sp *SidePanel) buildCategoryList() {
	sp.catList = widget.NewList(
		func() int {
			return sp.state.Registry.Len()
		},
		func() fyne.CanvasObject {
			swatch := fynecanvas.NewRectangle(color.RGBA{A: 255})
			swatch.SetMinSize(fyne.NewSize(14, 14))
			return container.NewHBox(swatch, widget.NewLabel(""))
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			row := obj.(*fyne.Container)
			name, ok := sp.state.Registry.Name(i)
			if !ok {
				return
			}
			swatch := row.Objects[0].(*fynecanvas.Rectangle)
			swatch.FillColor = category.Color(name)
			swatch.Refresh()
			row.Objects[1].(*widget.Label).SetText(name)
		},
	)
	sp.catList.OnSelected = func(i widget.ListItemID) {
		sp.armedCategory = i
		if m := sp.canvas.Machine(); m != nil {
			m.SetCategory(i)
		}
	}
	sp.catList.OnUnselected = func(widget.ListItemID) {
		sp.armedCategory = -1
		if m := sp.canvas.Machine(); m != nil {
			m.ClearCategory()
		}
	}
}

func (sp *SidePanel) buildImageList() {
	sp.imgList = widget.NewList(
		func() int {
			return len(sp.state.Images)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			if i < len(sp.state.Images) {
				obj.(*widget.Label).SetText(sp.state.Images[i])
			}
		},
	)
	sp.imgList.OnSelected = func(i widget.ListItemID) {
		if i < len(sp.state.Images) {
			sp.OpenImage(sp.state.Images[i])
		}
	}
}

func (sp *SidePanel) buildBoxList() {
	sp.boxList = widget.NewList(
		func() int {
			if m := sp.canvas.Machine(); m != nil {
				return len(m.Annotations())
			}
			return 0
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(i widget.ListItemID, obj fyne.CanvasObject) {
			m := sp.canvas.Machine()
			if m == nil {
				return
			}
			all := m.Annotations()
			if i >= len(all) {
				return
			}
			a := all[i]
			name, _ := sp.state.Registry.Name(a.CategoryID)
			obj.(*widget.Label).SetText(
				fmt.Sprintf("%s  (%.2f, %.2f)", name, a.Box.CX, a.Box.CY))
		},
	)
	sp.boxList.OnSelected = func(i widget.ListItemID) {
		m := sp.canvas.Machine()
		if m == nil {
			return
		}
		all := m.Annotations()
		if i >= len(all) {
			return
		}
		if err := m.Select(all[i].ID); err != nil {
			log.Printf("panels: select: %v", err)
			return
		}
		sp.canvas.Refresh()
	}
}

// SelectImageRow highlights an image row without reopening it, used when
// navigation happens through the keyboard instead of the list.
func (sp *SidePanel) SelectImageRow(i int) {
	if i >= 0 && i < len(sp.state.Images) {
		sp.imgList.Select(i)
	}
}

// OpenImage loads an image and its annotations into the canvas.
func (sp *SidePanel) OpenImage(name string) {
	store, skipped, err := sp.state.OpenImage(name)
	if err != nil {
		sp.showError(err)
		return
	}
	img, err := imageio.Load(sp.state.ImagePath(name))
	if err != nil {
		sp.showError(err)
		return
	}
	sp.canvas.SetImage(img, store)
	if sp.armedCategory >= 0 {
		if m := sp.canvas.Machine(); m != nil {
			m.SetCategory(sp.armedCategory)
		}
	}
	if skipped > 0 {
		log.Printf("panels: %s: skipped %d malformed annotation lines", name, skipped)
	}
	sp.boxList.Refresh()
	sp.canvas.Refresh()
}

func (sp *SidePanel) submitCategory() {
	name := sp.addEntry.Text
	if name == "" {
		return
	}
	sp.state.Registry.Register(name)
	sp.state.SetModified(true)
	sp.state.Emit(app.EventCategoriesChanged, name)
	sp.addEntry.SetText("")
	sp.catList.Refresh()
}

func (sp *SidePanel) showError(err error) {
	log.Printf("panels: %v", err)
	if sp.window != nil {
		dialog.ShowError(err, sp.window)
	}
}
