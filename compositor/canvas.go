package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/phpdave11/gofpdf"

	"github.com/lightmkt/labelproc/geo"
)

// Color is an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

// TextOptions configures text drawing. Size is the font size in points.
type TextOptions struct {
	Size  float64
	Bold  bool
	Color Color
}

// RectOptions configures rectangle drawing.
type RectOptions struct {
	Fill        bool
	FillColor   Color
	Stroke      bool
	StrokeColor Color
	LineWidth   float64
}

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
}

// Canvas is the drawing surface the compositor emits pages onto. All
// coordinates are in millimetres with the origin at the top-left corner of
// the current page; text is positioned by its baseline.
type Canvas interface {
	AddPage(size geo.Size)
	DrawImage(img image.Image, rect geo.Rect) error
	DrawText(text string, x, y float64, opts TextOptions)
	TextWidth(text string, opts TextOptions) float64
	DrawRect(rect geo.Rect, opts RectOptions)
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions)
	Output(w io.Writer) error
}

// PDFCanvas is the gofpdf-backed Canvas.
type PDFCanvas struct {
	doc    *gofpdf.Fpdf
	images int
}

// NewPDFCanvas creates an empty output document. Pages are added with their
// own sizes; auto page breaks are disabled because the compositor owns
// pagination.
func NewPDFCanvas() *PDFCanvas {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 100, Ht: 150},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	return &PDFCanvas{doc: doc}
}

func (c *PDFCanvas) AddPage(size geo.Size) {
	c.doc.AddPageFormat("P", gofpdf.SizeType{Wd: size.Width, Ht: size.Height})
}

func (c *PDFCanvas) DrawImage(img image.Image, rect geo.Rect) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	c.images++
	name := fmt.Sprintf("label-%d", c.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	c.doc.RegisterImageOptionsReader(name, opts, &buf)
	c.doc.ImageOptions(name, rect.X, rect.Y, rect.Width, rect.Height, false, opts, 0, "")
	if c.doc.Err() {
		return c.doc.Error()
	}
	return nil
}

func (c *PDFCanvas) DrawText(text string, x, y float64, opts TextOptions) {
	c.setFont(opts)
	c.doc.SetTextColor(channel(opts.Color.R), channel(opts.Color.G), channel(opts.Color.B))
	c.doc.Text(x, y, text)
}

func (c *PDFCanvas) TextWidth(text string, opts TextOptions) float64 {
	c.setFont(opts)
	return c.doc.GetStringWidth(text)
}

func (c *PDFCanvas) DrawRect(rect geo.Rect, opts RectOptions) {
	style := ""
	if opts.Fill {
		style += "F"
		c.doc.SetFillColor(channel(opts.FillColor.R), channel(opts.FillColor.G), channel(opts.FillColor.B))
	}
	if opts.Stroke {
		style += "D"
		c.doc.SetDrawColor(channel(opts.StrokeColor.R), channel(opts.StrokeColor.G), channel(opts.StrokeColor.B))
		c.doc.SetLineWidth(opts.LineWidth)
	}
	if style == "" {
		return
	}
	c.doc.Rect(rect.X, rect.Y, rect.Width, rect.Height, style)
}

func (c *PDFCanvas) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) {
	c.doc.SetDrawColor(channel(opts.StrokeColor.R), channel(opts.StrokeColor.G), channel(opts.StrokeColor.B))
	c.doc.SetLineWidth(opts.LineWidth)
	c.doc.Line(x1, y1, x2, y2)
}

func (c *PDFCanvas) Output(w io.Writer) error {
	return c.doc.Output(w)
}

func (c *PDFCanvas) setFont(opts TextOptions) {
	style := ""
	if opts.Bold {
		style = "B"
	}
	size := opts.Size
	if size <= 0 {
		size = 8
	}
	c.doc.SetFont("Helvetica", style, size)
}

func channel(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 255
	}
	return int(v*255 + 0.5)
}
