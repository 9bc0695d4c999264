// Package canvas provides the annotation canvas: the image raster with
// pan, zoom, and box editing.
package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"kolo-studio/internal/annotation"
	"kolo-studio/internal/category"
	"kolo-studio/internal/interaction"
	"kolo-studio/pkg/geometry"
)

// AnnotationCanvas displays one dataset image and forwards pointer
// events, translated to view-space, to the interaction machine.
type AnnotationCanvas struct {
	widget.BaseWidget

	img      image.Image
	imgW     float64
	imgH     float64
	machine  *interaction.Machine
	registry *category.Registry

	// Display state
	raster *fynecanvas.Raster
	zoom   float64

	// Drag gesture tracking
	dragging bool
	dragPos  geometry.Point2D

	// Container
	scroll  *zoomScroll
	content *pointerContent
	imgSize fyne.Size

	// Callbacks
	onZoomChange func(zoom float64)
	onEdit       func() // any annotation mutation via the canvas
}

// zoomScroll wraps a scroll container but intercepts the wheel for
// zooming, leaving drag on the scrollbars for panning.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *AnnotationCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *AnnotationCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Offset returns the scroll container's current offset.
func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// pointerContent wraps the raster to receive mouse events.
type pointerContent struct {
	widget.BaseWidget
	canvas *AnnotationCanvas
	raster *fynecanvas.Raster
}

func newPointerContent(ac *AnnotationCanvas, raster *fynecanvas.Raster) *pointerContent {
	pc := &pointerContent{canvas: ac, raster: raster}
	pc.ExtendBaseWidget(pc)
	return pc
}

func (pc *pointerContent) CreateRenderer() fyne.WidgetRenderer {
	return &pointerContentRenderer{content: pc}
}

func (pc *pointerContent) MinSize() fyne.Size {
	return pc.raster.MinSize()
}

// viewPoint converts a viewport-relative event position to view-space.
func (pc *pointerContent) viewPoint(pos fyne.Position) geometry.Point2D {
	offset := pc.canvas.scroll.Offset()
	return geometry.Point2D{
		X: float64(pos.X + offset.X),
		Y: float64(pos.Y + offset.Y),
	}
}

// Tapped selects (or starts nothing) at the click point. A tap is a
// press and release at the same spot, so both machine events fire.
func (pc *pointerContent) Tapped(ev *fyne.PointEvent) {
	m := pc.canvas.machine
	if m == nil {
		return
	}
	p := pc.viewPoint(ev.Position)
	m.PointerDown(p)
	m.PointerUp(p)
	pc.canvas.notifyEdit()
	pc.canvas.Refresh()
}

// TappedSecondary clears the selection or aborts the active gesture.
func (pc *pointerContent) TappedSecondary(_ *fyne.PointEvent) {
	if m := pc.canvas.machine; m != nil {
		m.Cancel()
		pc.canvas.Refresh()
	}
}

// Dragged runs draw, move, and resize gestures.
func (pc *pointerContent) Dragged(ev *fyne.DragEvent) {
	m := pc.canvas.machine
	if m == nil {
		return
	}
	pos := pc.viewPoint(ev.Position)
	if !pc.canvas.dragging {
		pc.canvas.dragging = true
		start := geometry.Point2D{
			X: pos.X - float64(ev.Dragged.DX),
			Y: pos.Y - float64(ev.Dragged.DY),
		}
		m.PointerDown(start)
	}
	pc.canvas.dragPos = pos
	m.PointerMove(pos)
	pc.canvas.Refresh()
}

func (pc *pointerContent) DragEnd() {
	m := pc.canvas.machine
	if m == nil || !pc.canvas.dragging {
		return
	}
	pc.canvas.dragging = false
	m.PointerUp(pc.canvas.dragPos)
	pc.canvas.notifyEdit()
	pc.canvas.Refresh()
}

func (pc *pointerContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		pc.canvas.ZoomIn()
	} else {
		pc.canvas.ZoomOut()
	}
}

type pointerContentRenderer struct {
	content *pointerContent
}

func (r *pointerContentRenderer) Layout(size fyne.Size) {
	r.content.raster.Resize(size)
}

func (r *pointerContentRenderer) MinSize() fyne.Size {
	return r.content.raster.MinSize()
}

func (r *pointerContentRenderer) Refresh() {
	r.content.raster.Refresh()
}

func (r *pointerContentRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.content.raster}
}

func (r *pointerContentRenderer) Destroy() {}

// NewAnnotationCanvas creates an empty canvas. SetImage must be called
// before it becomes interactive.
func NewAnnotationCanvas(registry *category.Registry) *AnnotationCanvas {
	ac := &AnnotationCanvas{
		zoom:     geometry.DefaultZoom,
		registry: registry,
		imgSize:  fyne.NewSize(400, 300),
	}

	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(ac.imgSize)

	ac.content = newPointerContent(ac, ac.raster)
	ac.scroll = newZoomScroll(ac.content, ac)

	ac.ExtendBaseWidget(ac)
	return ac
}

// Container returns the canvas container for embedding in layouts.
func (ac *AnnotationCanvas) Container() fyne.CanvasObject {
	return ac.scroll
}

// SetImage swaps in a new image and its annotation store, resetting the
// interaction machine for the new pixel dimensions.
func (ac *AnnotationCanvas) SetImage(img image.Image, store *annotation.Store) {
	ac.img = img
	if img == nil {
		ac.imgW, ac.imgH = 0, 0
		ac.machine = nil
	} else {
		b := img.Bounds()
		ac.imgW = float64(b.Dx())
		ac.imgH = float64(b.Dy())
		ac.machine = interaction.NewMachine(store, ac.imgW, ac.imgH)
		ac.machine.SetView(geometry.ViewTransform{Zoom: ac.zoom})
	}
	ac.updateContentSize()
}

// Machine exposes the interaction machine for keyboard wiring and the
// category picker.
func (ac *AnnotationCanvas) Machine() *interaction.Machine {
	return ac.machine
}

// SetZoom sets the zoom level, clamped to the supported range. The
// active gesture, if any, is cancelled by the machine.
func (ac *AnnotationCanvas) SetZoom(zoom float64) {
	ac.zoom = geometry.ClampZoom(zoom)
	if ac.machine != nil {
		ac.machine.SetView(geometry.ViewTransform{Zoom: ac.zoom})
	}
	ac.updateContentSize()

	if ac.onZoomChange != nil {
		ac.onZoomChange(ac.zoom)
	}
}

// Zoom returns the current zoom level.
func (ac *AnnotationCanvas) Zoom() float64 {
	return ac.zoom
}

// ZoomIn increases the zoom level by the wheel factor.
func (ac *AnnotationCanvas) ZoomIn() {
	ac.SetZoom(ac.zoom * geometry.WheelZoom)
}

// ZoomOut decreases the zoom level by the wheel factor.
func (ac *AnnotationCanvas) ZoomOut() {
	ac.SetZoom(ac.zoom / geometry.WheelZoom)
}

// ZoomStepIn increases the zoom by the keyboard step.
func (ac *AnnotationCanvas) ZoomStepIn() {
	ac.SetZoom(ac.zoom + geometry.ZoomStep)
}

// ZoomStepOut decreases the zoom by the keyboard step.
func (ac *AnnotationCanvas) ZoomStepOut() {
	ac.SetZoom(ac.zoom - geometry.ZoomStep)
}

// OnZoomChange sets a callback for zoom changes.
func (ac *AnnotationCanvas) OnZoomChange(callback func(zoom float64)) {
	ac.onZoomChange = callback
}

// OnEdit sets a callback fired after any canvas-driven annotation
// mutation, for the dirty flag and the side panel.
func (ac *AnnotationCanvas) OnEdit(callback func()) {
	ac.onEdit = callback
}

func (ac *AnnotationCanvas) notifyEdit() {
	if ac.onEdit != nil {
		ac.onEdit()
	}
}

// TypedKey routes keyboard events to the machine. Shift turns arrow
// keys from move into grow.
func (ac *AnnotationCanvas) TypedKey(key fyne.KeyName, shift bool) {
	m := ac.machine
	if m == nil {
		return
	}
	switch key {
	case fyne.KeyDelete, fyne.KeyBackspace:
		if err := m.Delete(); err == nil {
			ac.notifyEdit()
		}
	case fyne.KeyEscape:
		m.Cancel()
	case fyne.KeyLeft:
		m.Nudge(-1, 0, shift)
		ac.notifyEdit()
	case fyne.KeyRight:
		m.Nudge(1, 0, shift)
		ac.notifyEdit()
	case fyne.KeyUp:
		m.Nudge(0, -1, shift)
		ac.notifyEdit()
	case fyne.KeyDown:
		m.Nudge(0, 1, shift)
		ac.notifyEdit()
	default:
		return
	}
	ac.Refresh()
}

// Refresh refreshes the canvas display.
func (ac *AnnotationCanvas) Refresh() {
	ac.raster.Refresh()
}

func (ac *AnnotationCanvas) updateContentSize() {
	if ac.imgW == 0 || ac.imgH == 0 {
		ac.imgSize = fyne.NewSize(400, 300)
	} else {
		ac.imgSize = fyne.NewSize(float32(ac.imgW*ac.zoom), float32(ac.imgH*ac.zoom))
	}

	ac.raster.SetMinSize(ac.imgSize)
	ac.raster.Resize(ac.imgSize)
	if ac.content != nil {
		ac.content.Resize(ac.imgSize)
		ac.content.Refresh()
	}
	ac.raster.Refresh()
	if ac.scroll != nil {
		ac.scroll.Refresh()
	}
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &annotationCanvasRenderer{canvas: ac}
}

type annotationCanvasRenderer struct {
	canvas *AnnotationCanvas
}

func (r *annotationCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	}
}

func (r *annotationCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *annotationCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *annotationCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *annotationCanvasRenderer) Destroy() {}
