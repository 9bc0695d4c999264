package geometry

// Zoom limits shared by the canvas and the interaction layer. Zoom is a
// plain scale factor relative to the image's natural pixel size.
const (
	MinZoom     = 0.3
	MaxZoom     = 2.0
	ZoomStep    = 0.1
	WheelZoom   = 1.15
	DefaultZoom = 1.0
)

// ViewTransform maps pixel-space coordinates to view-space coordinates
// under the current zoom and pan. It is process-local per open image and
// never persisted; annotations are stored in normalized space only.
type ViewTransform struct {
	Zoom float64
	PanX float64
	PanY float64
}

// IdentityView returns a transform with no zoom or pan applied.
func IdentityView() ViewTransform {
	return ViewTransform{Zoom: DefaultZoom}
}

// ClampZoom limits a zoom factor to the supported range.
func ClampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

// Apply converts a pixel-space point to view-space.
func (v ViewTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: p.X*v.Zoom + v.PanX,
		Y: p.Y*v.Zoom + v.PanY,
	}
}

// Invert converts a view-space point back to pixel-space. It is the
// exact inverse of Apply up to floating-point rounding.
func (v ViewTransform) Invert(p Point2D) Point2D {
	return Point2D{
		X: (p.X - v.PanX) / v.Zoom,
		Y: (p.Y - v.PanY) / v.Zoom,
	}
}

// ApplyRect converts a pixel-space rectangle to view-space.
func (v ViewTransform) ApplyRect(r Rect) Rect {
	tl := v.Apply(r.TopLeft())
	return Rect{X: tl.X, Y: tl.Y, Width: r.Width * v.Zoom, Height: r.Height * v.Zoom}
}

// InvertRect converts a view-space rectangle back to pixel-space.
func (v ViewTransform) InvertRect(r Rect) Rect {
	tl := v.Invert(Point2D{X: r.X, Y: r.Y})
	return Rect{X: tl.X, Y: tl.Y, Width: r.Width / v.Zoom, Height: r.Height / v.Zoom}
}
