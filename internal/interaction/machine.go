package interaction

import (
	"log"

	"kolo-studio/internal/annotation"
	"kolo-studio/pkg/geometry"
)

// State is the current interaction mode.
type State int

const (
	// StateIdle means no annotation is selected and no gesture is active.
	StateIdle State = iota
	// StateDrawing means a new box is being rubber-banded from an anchor.
	StateDrawing
	// StateSelected means one annotation is selected and shows handles.
	StateSelected
	// StateMoving means the selected annotation follows the pointer.
	StateMoving
	// StateResizing means one handle of the selected annotation follows
	// the pointer while the opposite corner or edge stays fixed.
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	case StateSelected:
		return "selected"
	case StateMoving:
		return "moving"
	case StateResizing:
		return "resizing"
	default:
		return "unknown"
	}
}

const (
	// minDrawSize is the minimum view-space span, per axis, for a drawn
	// box to be committed. Smaller draws are silent non-creations.
	minDrawSize = 10.0

	// minResizeSize is the smallest view-space dimension a resize may
	// produce. A frame that would go below it is a no-op, never a
	// degenerate box.
	minResizeSize = 2.0

	// dragThreshold is the view-space distance a pressed pointer must
	// travel before a click-select becomes a move.
	dragThreshold = 3.0

	// nudgeStep is the arrow-key move and resize increment in
	// view-space pixels.
	nudgeStep = 1.0
)

// Machine consumes view-space pointer and keyboard events and mutates
// the annotation store accordingly. It runs on the UI event thread; no
// transition suspends.
type Machine struct {
	store *annotation.Store
	view  geometry.ViewTransform

	imgWidth  float64
	imgHeight float64

	state    State
	selected int64

	categoryID  int
	hasCategory bool

	// Drawing gesture.
	anchor  geometry.Point2D
	pointer geometry.Point2D

	// Press tracking for click-vs-drag and for move/resize gestures.
	pressed      bool
	pressPoint   geometry.Point2D
	pressRect    geometry.Rect // view-space rect of the selection at press
	grabOffset   geometry.Point2D
	activeHandle HandleKind
	revertBox    annotation.Box // snapshot for Escape
}

// NewMachine creates a state machine operating on the given store for
// an image of the given pixel dimensions.
func NewMachine(store *annotation.Store, imgWidth, imgHeight float64) *Machine {
	return &Machine{
		store:     store,
		view:      geometry.IdentityView(),
		imgWidth:  imgWidth,
		imgHeight: imgHeight,
		state:     StateIdle,
	}
}

// SetView updates the view transform used to interpret incoming
// view-space coordinates. Changing zoom or pan mid-gesture cancels the
// gesture first so stale press geometry cannot leak into an update.
func (m *Machine) SetView(view geometry.ViewTransform) {
	if m.state == StateDrawing || m.state == StateMoving || m.state == StateResizing {
		m.Cancel()
	}
	m.view = view
}

// View returns the current view transform.
func (m *Machine) View() geometry.ViewTransform {
	return m.view
}

// SetCategory selects the category applied to newly drawn boxes.
// Drawing is only armed while a category is selected.
func (m *Machine) SetCategory(id int) {
	m.categoryID = id
	m.hasCategory = true
}

// ClearCategory disarms drawing.
func (m *Machine) ClearCategory() {
	m.hasCategory = false
}

// State returns the current interaction state.
func (m *Machine) State() State {
	return m.state
}

// Selected returns the selected annotation id, or 0.
func (m *Machine) Selected() int64 {
	return m.selected
}

// Select programmatically selects an annotation, as when the user picks
// it from a list beside the canvas.
func (m *Machine) Select(id int64) error {
	if _, err := m.store.Get(id); err != nil {
		return err
	}
	m.state = StateSelected
	m.selected = id
	return nil
}

// Annotations returns the store contents in insertion order, for the
// paint pass.
func (m *Machine) Annotations() []annotation.Annotation {
	return m.store.All()
}

// Preview returns the live rubber-band rectangle in view-space while
// drawing. The box is not yet in the store.
func (m *Machine) Preview() (geometry.Rect, bool) {
	if m.state != StateDrawing {
		return geometry.Rect{}, false
	}
	return geometry.RectFromCorners(m.anchor, m.pointer), true
}

// PointerDown begins a gesture at a view-space point.
func (m *Machine) PointerDown(p geometry.Point2D) {
	switch m.state {
	case StateIdle, StateSelected:
	default:
		return
	}

	hit, ok := HitTest(p, m.store.All(), m.imgWidth, m.imgHeight, m.view, m.selected)
	if !ok {
		// Empty canvas: deselect, and start drawing when armed.
		m.selected = 0
		if m.hasCategory {
			m.state = StateDrawing
			m.anchor = p
			m.pointer = p
		} else {
			m.state = StateIdle
		}
		return
	}

	if hit.Handle != HandleBody && hit.ID == m.selected {
		a, err := m.store.Get(hit.ID)
		if err != nil {
			return
		}
		m.state = StateResizing
		m.activeHandle = hit.Handle
		m.revertBox = a.Box
		m.pressPoint = p
		m.pressRect = m.viewRect(a.Box)
		return
	}

	// Body press: select now, move only after the drag threshold.
	a, err := m.store.Get(hit.ID)
	if err != nil {
		return
	}
	m.state = StateSelected
	m.selected = hit.ID
	m.pressed = true
	m.pressPoint = p
	m.pressRect = m.viewRect(a.Box)
	m.grabOffset = p.Sub(m.pressRect.TopLeft())
	m.revertBox = a.Box
}

// PointerMove advances the active gesture.
func (m *Machine) PointerMove(p geometry.Point2D) {
	switch m.state {
	case StateDrawing:
		m.pointer = p

	case StateSelected:
		if m.pressed && p.Distance(m.pressPoint) > dragThreshold {
			m.state = StateMoving
			m.applyMove(p)
		}

	case StateMoving:
		m.applyMove(p)

	case StateResizing:
		m.applyResize(p)
	}
}

// PointerUp ends the active gesture.
func (m *Machine) PointerUp(p geometry.Point2D) {
	switch m.state {
	case StateDrawing:
		m.pointer = p
		m.commitDraw()

	case StateMoving, StateResizing:
		m.state = StateSelected
		m.pressed = false
		m.activeHandle = HandleNone

	case StateSelected:
		m.pressed = false
	}
}

// Delete removes the selected annotation and returns to Idle.
func (m *Machine) Delete() error {
	if m.state != StateSelected {
		return nil
	}
	if err := m.store.Delete(m.selected); err != nil {
		return err
	}
	m.selected = 0
	m.state = StateIdle
	return nil
}

// Nudge moves the selected annotation by one step in the given
// direction (each of dx, dy in {-1, 0, 1}). With resize set, the box
// grows by one step in that direction instead, with the opposite edge
// held fixed, like a handle drag done from the keyboard.
func (m *Machine) Nudge(dx, dy int, resize bool) {
	if m.state != StateSelected {
		return
	}
	a, err := m.store.Get(m.selected)
	if err != nil {
		return
	}

	r := m.viewRect(a.Box)
	sx := float64(dx) * nudgeStep
	sy := float64(dy) * nudgeStep
	if resize {
		// Growing toward a direction keeps the far edge in place, so a
		// leftward grow shifts the origin as well as the width.
		if sx < 0 {
			r.X += sx
			r.Width -= sx
		} else {
			r.Width += sx
		}
		if sy < 0 {
			r.Y += sy
			r.Height -= sy
		} else {
			r.Height += sy
		}
	} else {
		r = r.Translated(sx, sy)
	}
	m.updateFromViewRect(a.ID, r)
}

// Cancel aborts the active gesture. A draw is dropped; a move or
// resize reverts to the box captured when the gesture began; a plain
// selection is cleared.
func (m *Machine) Cancel() {
	switch m.state {
	case StateDrawing:
		m.state = StateIdle

	case StateMoving, StateResizing:
		if err := m.store.Update(m.selected, m.revertBox); err != nil {
			log.Printf("interaction: revert %d: %v", m.selected, err)
		}
		m.state = StateSelected
		m.pressed = false
		m.activeHandle = HandleNone

	case StateSelected:
		m.selected = 0
		m.pressed = false
		m.state = StateIdle
	}
}

func (m *Machine) viewRect(b annotation.Box) geometry.Rect {
	return m.view.ApplyRect(b.PixelRect(m.imgWidth, m.imgHeight))
}

func (m *Machine) updateFromViewRect(id int64, r geometry.Rect) {
	pixel := m.view.InvertRect(r)
	box := annotation.BoxFromPixelRect(pixel, m.imgWidth, m.imgHeight)
	if err := m.store.Update(id, box); err != nil {
		log.Printf("interaction: update %d: %v", id, err)
	}
}

func (m *Machine) commitDraw() {
	span := geometry.RectFromCorners(m.anchor, m.pointer)
	if span.Width < minDrawSize || span.Height < minDrawSize {
		// Too small to be a deliberate box; includes the zero-area
		// click-in-place case. Not an error.
		m.state = StateIdle
		return
	}

	pixel := m.view.InvertRect(span)
	box := annotation.BoxFromPixelRect(pixel, m.imgWidth, m.imgHeight)
	a, err := m.store.Create(box, m.categoryID)
	if err != nil {
		log.Printf("interaction: draw rejected: %v", err)
		m.state = StateIdle
		return
	}
	m.state = StateSelected
	m.selected = a.ID
}

func (m *Machine) applyMove(p geometry.Point2D) {
	tl := p.Sub(m.grabOffset)
	r := geometry.Rect{X: tl.X, Y: tl.Y, Width: m.pressRect.Width, Height: m.pressRect.Height}
	m.updateFromViewRect(m.selected, r)
}

func (m *Machine) applyResize(p geometry.Point2D) {
	r, ok := resizedRect(m.pressRect, m.activeHandle, p)
	if !ok {
		return
	}
	if r.Width < minResizeSize || r.Height < minResizeSize {
		// Degenerate frame: skip rather than store a collapsed box.
		return
	}
	m.updateFromViewRect(m.selected, r)
}

// resizedRect recomputes a view-space rectangle for a handle drag to
// the pointer position, holding the opposite corner or edge fixed.
func resizedRect(orig geometry.Rect, handle HandleKind, p geometry.Point2D) (geometry.Rect, bool) {
	switch handle {
	case HandleTopLeft:
		return geometry.RectFromCorners(orig.BottomRight(), p), true
	case HandleTopRight:
		return geometry.RectFromCorners(geometry.Point2D{X: orig.X, Y: orig.Bottom()}, p), true
	case HandleBottomRight:
		return geometry.RectFromCorners(orig.TopLeft(), p), true
	case HandleBottomLeft:
		return geometry.RectFromCorners(geometry.Point2D{X: orig.Right(), Y: orig.Y}, p), true
	case HandleTop:
		y := p.Y
		if y > orig.Bottom() {
			y = orig.Bottom()
		}
		return geometry.Rect{X: orig.X, Y: y, Width: orig.Width, Height: orig.Bottom() - y}, true
	case HandleBottom:
		return geometry.Rect{X: orig.X, Y: orig.Y, Width: orig.Width, Height: p.Y - orig.Y}, true
	case HandleLeft:
		x := p.X
		if x > orig.Right() {
			x = orig.Right()
		}
		return geometry.Rect{X: x, Y: orig.Y, Width: orig.Right() - x, Height: orig.Height}, true
	case HandleRight:
		return geometry.Rect{X: orig.X, Y: orig.Y, Width: p.X - orig.X, Height: orig.Height}, true
	default:
		return geometry.Rect{}, false
	}
}
