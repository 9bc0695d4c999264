// Package interaction turns pointer and keyboard events, already
// translated to view-space by the widget layer, into annotation store
// mutations.
package interaction

import (
	"kolo-studio/internal/annotation"
	"kolo-studio/pkg/geometry"
)

// HandleKind identifies which part of a box a point hits: the body
// (move) or one of the eight resize handles.
type HandleKind int

const (
	HandleNone HandleKind = iota
	HandleBody
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
)

// Handle hit zones are squares of this side length in view-space,
// centered on the box corners and edge midpoints.
const handleSize = 9.0

// Hit is a successful hit-test result.
type Hit struct {
	ID     int64
	Handle HandleKind
}

// handleCenters returns the view-space center of each resize handle for
// a view-space rectangle.
func handleCenters(r geometry.Rect) map[HandleKind]geometry.Point2D {
	return map[HandleKind]geometry.Point2D{
		HandleTopLeft:     {X: r.X, Y: r.Y},
		HandleTop:         {X: r.X + r.Width/2, Y: r.Y},
		HandleTopRight:    {X: r.Right(), Y: r.Y},
		HandleRight:       {X: r.Right(), Y: r.Y + r.Height/2},
		HandleBottomRight: {X: r.Right(), Y: r.Bottom()},
		HandleBottom:      {X: r.X + r.Width/2, Y: r.Bottom()},
		HandleBottomLeft:  {X: r.X, Y: r.Bottom()},
		HandleLeft:        {X: r.X, Y: r.Y + r.Height/2},
	}
}

// handleAt returns the handle whose hit zone contains the view-space
// point, or HandleNone.
func handleAt(p geometry.Point2D, viewRect geometry.Rect) HandleKind {
	half := handleSize / 2
	for kind, c := range handleCenters(viewRect) {
		if p.X >= c.X-half && p.X <= c.X+half && p.Y >= c.Y-half && p.Y <= c.Y+half {
			return kind
		}
	}
	return HandleNone
}

// HitTest finds the annotation under a view-space point.
//
// Resize handles are only live on the selected annotation, so they are
// checked first. Body hits on overlapping boxes are broken in favor of
// the selected annotation, then the smallest area, then the most
// recently created. The smallest-box rule is what makes a box nested
// inside a larger one selectable at all.
func HitTest(p geometry.Point2D, annotations []annotation.Annotation, imgWidth, imgHeight float64, view geometry.ViewTransform, selectedID int64) (Hit, bool) {
	viewRectOf := func(a annotation.Annotation) geometry.Rect {
		return view.ApplyRect(a.Box.PixelRect(imgWidth, imgHeight))
	}

	if selectedID != 0 {
		for _, a := range annotations {
			if a.ID != selectedID {
				continue
			}
			r := viewRectOf(a)
			if kind := handleAt(p, r); kind != HandleNone {
				return Hit{ID: a.ID, Handle: kind}, true
			}
			if r.Contains(p) {
				return Hit{ID: a.ID, Handle: HandleBody}, true
			}
			break
		}
	}

	best := Hit{}
	bestArea := 0.0
	found := false
	for _, a := range annotations {
		r := viewRectOf(a)
		if !r.Contains(p) {
			continue
		}
		area := a.Box.Area()
		// Later annotations win area ties: iteration is insertion order,
		// so >= keeps the most recently created candidate.
		if !found || area < bestArea || (area == bestArea && a.ID > best.ID) {
			best = Hit{ID: a.ID, Handle: HandleBody}
			bestArea = area
			found = true
		}
	}
	return best, found
}
