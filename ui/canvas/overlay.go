// Package canvas provides overlay types for the annotation canvas.
package canvas

import (
	"image/color"

	"kolo-studio/pkg/geometry"
)

// BoxOverlay is one annotation prepared for painting: its view-space
// rectangle, category color and label, and whether it carries resize
// handles.
type BoxOverlay struct {
	Rect     geometry.Rect
	Color    color.RGBA
	Label    string
	Selected bool
}

// boxOverlays builds the paint list for the current frame from the
// machine's store, in insertion order so later boxes paint on top.
func (ac *AnnotationCanvas) boxOverlays() []BoxOverlay {
	if ac.machine == nil {
		return nil
	}
	view := ac.machine.View()
	selected := ac.machine.Selected()

	var overlays []BoxOverlay
	for _, a := range ac.machine.Annotations() {
		name, _ := ac.registry.Name(a.CategoryID)
		overlays = append(overlays, BoxOverlay{
			Rect:     view.ApplyRect(a.Box.PixelRect(ac.imgW, ac.imgH)),
			Color:    colorFor(name),
			Label:    name,
			Selected: a.ID == selected,
		})
	}
	return overlays
}
