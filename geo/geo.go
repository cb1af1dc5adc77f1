package geo

// PointsPerMM converts millimetres to PDF points (1 pt = 1/72 inch).
const PointsPerMM = 2.83465

// Size is a width/height pair. Units depend on context (points for source
// pages, millimetres for output pages).
type Size struct {
	Width  float64
	Height float64
}

// Rect is an axis-aligned rectangle. For source-page geometry the origin is
// the bottom-left corner of the page with Y increasing upward (PDF space).
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains returns true if the point (x, y) lies within the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// FlipY maps the rectangle between PDF space (origin bottom-left) and
// viewport space (origin top-left) on a page of the given height.
func (r Rect) FlipY(pageHeight float64) Rect {
	return Rect{X: r.X, Y: pageHeight - r.Y - r.Height, Width: r.Width, Height: r.Height}
}

// Scale returns the rectangle with all components multiplied by factor.
func (r Rect) Scale(factor float64) Rect {
	return Rect{X: r.X * factor, Y: r.Y * factor, Width: r.Width * factor, Height: r.Height * factor}
}

// Quadrant is one of the 4 fixed label regions of a source page.
type Quadrant struct {
	Index  int
	Name   string
	Bounds Rect
}

// Quadrant names follow the physical print layout of the sheets.
var quadrantNames = [4]string{
	"Superior Esquerdo",
	"Superior Direito",
	"Inferior Esquerdo",
	"Inferior Direito",
}

// Quadrants partitions a page into its 4 label regions, each exactly half
// the page width and half the page height. The order is top-left, top-right,
// bottom-left, bottom-right; consumers rely on it matching the print layout.
func Quadrants(page Size) [4]Quadrant {
	hw, hh := page.Width/2, page.Height/2
	bounds := [4]Rect{
		{X: 0, Y: hh, Width: hw, Height: hh},
		{X: hw, Y: hh, Width: hw, Height: hh},
		{X: 0, Y: 0, Width: hw, Height: hh},
		{X: hw, Y: 0, Width: hw, Height: hh},
	}
	var out [4]Quadrant
	for i := range bounds {
		out[i] = Quadrant{Index: i, Name: quadrantNames[i], Bounds: bounds[i]}
	}
	return out
}

// MMToPoints converts a length in millimetres to points.
func MMToPoints(mm float64) float64 { return mm * PointsPerMM }

// FitInto scales src to fit within box preserving aspect ratio and centers
// it horizontally, anchored to the top edge of box. Coordinates are in the
// top-down space of the output page.
func FitInto(src Size, box Rect) Rect {
	if src.Width <= 0 || src.Height <= 0 {
		return Rect{X: box.X, Y: box.Y}
	}
	scale := box.Width / src.Width
	if s := box.Height / src.Height; s < scale {
		scale = s
	}
	w := src.Width * scale
	h := src.Height * scale
	return Rect{
		X:      box.X + (box.Width-w)/2,
		Y:      box.Y,
		Width:  w,
		Height: h,
	}
}
