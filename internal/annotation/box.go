// Package annotation provides the bounding-box data model and the
// per-image annotation store.
package annotation

import (
	"math"

	"kolo-studio/pkg/geometry"
)

// Box is an axis-aligned bounding box in normalized image coordinates:
// center position and size, all relative to the image dimensions so that
// the full image spans [0,1] on both axes.
type Box struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// Valid reports whether the box has positive, finite dimensions and
// finite center coordinates.
func (b Box) Valid() bool {
	for _, v := range []float64{b.CX, b.CY, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.W > 0 && b.H > 0
}

// Area returns the normalized area of the box.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Clamp truncates the box to the unit square. Edges outside [0,1] are
// cut off rather than shifting the box, matching how drawn rectangles
// are intersected with the image on commit.
func (b Box) Clamp() Box {
	x1 := math.Max(0, b.CX-b.W/2)
	y1 := math.Max(0, b.CY-b.H/2)
	x2 := math.Min(1, b.CX+b.W/2)
	y2 := math.Min(1, b.CY+b.H/2)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Box{
		CX: (x1 + x2) / 2,
		CY: (y1 + y2) / 2,
		W:  x2 - x1,
		H:  y2 - y1,
	}
}

// PixelRect converts the normalized box to an absolute pixel-space
// rectangle for an image of the given dimensions. It is the exact
// inverse of BoxFromPixelRect up to floating-point rounding.
func (b Box) PixelRect(imgWidth, imgHeight float64) geometry.Rect {
	w := b.W * imgWidth
	h := b.H * imgHeight
	return geometry.Rect{
		X:      b.CX*imgWidth - w/2,
		Y:      b.CY*imgHeight - h/2,
		Width:  w,
		Height: h,
	}
}

// BoxFromPixelRect converts an absolute pixel-space rectangle to a
// normalized box for an image of the given dimensions.
func BoxFromPixelRect(r geometry.Rect, imgWidth, imgHeight float64) Box {
	return Box{
		CX: (r.X + r.Width/2) / imgWidth,
		CY: (r.Y + r.Height/2) / imgHeight,
		W:  r.Width / imgWidth,
		H:  r.Height / imgHeight,
	}
}
