// Package canvas provides drawing primitives for the annotation canvas.
package canvas

import (
	"image"
	"image/color"

	"kolo-studio/internal/category"
	"kolo-studio/pkg/colorutil"
	"kolo-studio/pkg/geometry"
)

// handlePixels is the painted side length of a resize handle, matching
// the hit-test zone.
const handlePixels = 9

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters A-Z and common
// symbols. Each letter is represented as 5 rows of 3 bits.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'*': {0b000, 0b101, 0b010, 0b101, 0b000},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// colorFor returns the stable display color for a category name.
func colorFor(name string) color.RGBA {
	return category.Color(name)
}

// draw is the raster drawing function: the zoomed image, every box
// overlay, and the live rubber band.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))

	// Dark gray background behind and around the image
	for i := 0; i < len(output.Pix); i += 4 {
		output.Pix[i] = 0x20
		output.Pix[i+1] = 0x20
		output.Pix[i+2] = 0x20
		output.Pix[i+3] = 0xFF
	}

	if ac.img != nil {
		ac.compositeImage(output, w, h)
	}

	for _, overlay := range ac.boxOverlays() {
		ac.drawBox(output, overlay)
	}

	if ac.machine != nil {
		if preview, ok := ac.machine.Preview(); ok {
			ac.drawRubberBand(output, preview)
		}
	}

	return output
}

// compositeImage scales the source image into the output with nearest
// neighbor sampling; annotation work needs exact pixels, not smoothing.
func (ac *AnnotationCanvas) compositeImage(output *image.RGBA, w, h int) {
	src := ac.img
	srcBounds := src.Bounds()

	for y := 0; y < h; y++ {
		srcY := int(float64(y)/ac.zoom) + srcBounds.Min.Y
		if srcY < srcBounds.Min.Y || srcY >= srcBounds.Max.Y {
			continue
		}
		for x := 0; x < w; x++ {
			srcX := int(float64(x)/ac.zoom) + srcBounds.Min.X
			if srcX < srcBounds.Min.X || srcX >= srcBounds.Max.X {
				continue
			}
			output.Set(x, y, src.At(srcX, srcY))
		}
	}
}

// drawBox paints one annotation: a double outline (category color with
// its complement just inside, so boxes stay visible on any background),
// the category label, and white handles when selected.
func (ac *AnnotationCanvas) drawBox(output *image.RGBA, overlay BoxOverlay) {
	r := geometry.RoundRect(overlay.Rect)
	x1, y1 := r.X, r.Y
	x2, y2 := r.X+r.Width, r.Y+r.Height

	ac.drawRectOutline(output, x1, y1, x2, y2, overlay.Color)
	inner := colorutil.Invert(overlay.Color)
	ac.drawRectOutline(output, x1+1, y1+1, x2-1, y2-1, inner)

	if overlay.Label != "" {
		ac.drawLabel(output, overlay.Label, x1+3, y1+3, overlay.Color)
	}

	if overlay.Selected {
		for _, c := range handleCenterPoints(overlay.Rect) {
			ac.drawHandle(output, int(c.X), int(c.Y))
		}
	}
}

// handleCenterPoints lists the eight resize handle centers of a
// view-space rectangle: corners first, then edge midpoints.
func handleCenterPoints(r geometry.Rect) []geometry.Point2D {
	midX := r.X + r.Width/2
	midY := r.Y + r.Height/2
	return []geometry.Point2D{
		{X: r.X, Y: r.Y},
		{X: r.Right(), Y: r.Y},
		{X: r.Right(), Y: r.Bottom()},
		{X: r.X, Y: r.Bottom()},
		{X: midX, Y: r.Y},
		{X: r.Right(), Y: midY},
		{X: midX, Y: r.Bottom()},
		{X: r.X, Y: midY},
	}
}

// drawHandle paints one filled white handle square with a black border.
func (ac *AnnotationCanvas) drawHandle(output *image.RGBA, cx, cy int) {
	half := handlePixels / 2
	bounds := output.Bounds()
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			if x == cx-half || x == cx+half || y == cy-half || y == cy+half {
				output.Set(x, y, colorutil.Black)
			} else {
				output.Set(x, y, colorutil.White)
			}
		}
	}
}

// drawRectOutline draws a 1px rectangle outline.
func (ac *AnnotationCanvas) drawRectOutline(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := output.Bounds()
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			if y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
				output.Set(x, y1, col)
			}
			if y2 >= bounds.Min.Y && y2 < bounds.Max.Y {
				output.Set(x, y2, col)
			}
		}
	}
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			if x1 >= bounds.Min.X && x1 < bounds.Max.X {
				output.Set(x1, y, col)
			}
			if x2 >= bounds.Min.X && x2 < bounds.Max.X {
				output.Set(x2, y, col)
			}
		}
	}
}

// drawRubberBand draws the in-progress draw rectangle with a dashed
// yellow outline (alternate pixel runs).
func (ac *AnnotationCanvas) drawRubberBand(output *image.RGBA, rect geometry.Rect) {
	col := colorutil.Yellow
	r := geometry.RoundRect(rect)
	x1, y1 := r.X, r.Y
	x2, y2 := r.X+r.Width, r.Y+r.Height
	bounds := output.Bounds()

	for x := x1; x <= x2; x++ {
		if x < bounds.Min.X || x >= bounds.Max.X {
			continue
		}
		if (x+y1)%4 < 2 && y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
			output.Set(x, y1, col)
		}
		if (x+y2)%4 < 2 && y2 >= bounds.Min.Y && y2 < bounds.Max.Y {
			output.Set(x, y2, col)
		}
	}
	for y := y1; y <= y2; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		if (x1+y)%4 < 2 && x1 >= bounds.Min.X && x1 < bounds.Max.X {
			output.Set(x1, y, col)
		}
		if (x2+y)%4 < 2 && x2 >= bounds.Min.X && x2 < bounds.Max.X {
			output.Set(x2, y, col)
		}
	}
}

// drawLabel renders text with the 3x5 bitmap font at 2x scale, with a
// dark backing strip for contrast.
func (ac *AnnotationCanvas) drawLabel(output *image.RGBA, text string, x, y int, col color.RGBA) {
	const scale = 2
	const charW, charH = 3, 5

	width := len(text)*(charW+1)*scale + 2
	height := charH*scale + 2
	bounds := output.Bounds()

	for by := y - 1; by < y+height-1; by++ {
		for bx := x - 1; bx < x+width-1; bx++ {
			if bx >= bounds.Min.X && bx < bounds.Max.X && by >= bounds.Min.Y && by < bounds.Max.Y {
				output.Set(bx, by, color.RGBA{R: 0, G: 0, B: 0, A: 255})
			}
		}
	}

	cx := x
	for _, ch := range text {
		pattern := getCharPattern(ch)
		for row := 0; row < charH; row++ {
			for bit := 0; bit < charW; bit++ {
				if pattern[row]&(1<<(charW-1-bit)) == 0 {
					continue
				}
				for sy := 0; sy < scale; sy++ {
					for sx := 0; sx < scale; sx++ {
						px := cx + bit*scale + sx
						py := y + row*scale + sy
						if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
							output.Set(px, py, col)
						}
					}
				}
			}
		}
		cx += (charW + 1) * scale
	}
}
