// Package compositor renders located labels onto a new output document: one
// page per label (100×150 mm by default) with the cropped label image on
// top and the order's product table in a footer area, spilling onto an
// overflow page when the table does not fit.
package compositor

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/lightmkt/labelproc/document"
	"github.com/lightmkt/labelproc/geo"
	"github.com/lightmkt/labelproc/locator"
	"github.com/lightmkt/labelproc/observability"
	"github.com/lightmkt/labelproc/product"
	"github.com/lightmkt/labelproc/sheet"
)

// User-facing strings, kept verbatim from the product.
const (
	noDataBanner    = "SEM DADOS ASSOCIADOS"
	overflowNote    = "PRODUTOS NA PÁGINA SEGUINTE"
	overflowCaption = "Produtos do pedido"
)

// Config parameterizes output composition. All lengths are millimetres
// unless noted.
type Config struct {
	PageWidth  float64
	PageHeight float64
	// RenderScale is the upscaling factor applied when rasterizing a source
	// page before cropping, for output sharpness.
	RenderScale     float64
	MinFooterHeight float64
	MaxFooterHeight float64
	Table           TableConfig
}

// DefaultConfig returns the production label geometry: A6-ish 100×150 mm
// pages, 3× raster upscale, and the table thresholds the report invariants
// are calibrated against.
func DefaultConfig() Config {
	return Config{
		PageWidth:       100,
		PageHeight:      150,
		RenderScale:     3,
		MinFooterHeight: 12,
		MaxFooterHeight: 60,
		Table: TableConfig{
			SKUWidth:          42,
			VariationWidth:    42,
			QuantityWidth:     12,
			SKUChars:          24,
			VariationChars:    24,
			FontSize:          7,
			LineHeight:        3.5,
			RowPadding:        1.5,
			TablePadding:      2,
			OverflowLineLimit: 4,
		},
	}
}

// Result accumulates per-run composition counters.
type Result struct {
	Total              int
	WithData           int
	WithoutData        int
	MissingIdentifiers []string
}

// RenderError indicates a compositing or embedding failure. It aborts the
// whole run; no partial output document is usable behind it.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %s: %v", e.Op, e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// Compositor renders labels onto a Canvas. It owns a per-run raster cache
// keyed by source page number; build a fresh Compositor per run.
type Compositor struct {
	doc     document.Reader
	canvas  Canvas
	cfg     Config
	log     observability.Logger
	rasters map[int]image.Image
	result  Result
}

// New builds a Compositor for one run.
func New(doc document.Reader, canvas Canvas, cfg Config, log observability.Logger) *Compositor {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Compositor{
		doc:     doc,
		canvas:  canvas,
		cfg:     cfg,
		log:     log,
		rasters: make(map[int]image.Image),
	}
}

// Compose appends one output page for the label (plus an overflow page when
// the product table does not fit) and updates the accumulated Result. Pages
// are appended in call order; the caller feeds labels in (page, quadrant)
// order. A nil row means no spreadsheet data matched the label.
func (c *Compositor) Compose(ctx context.Context, label locator.Label, row *sheet.Row) error {
	img, err := c.cropLabel(ctx, label)
	if err != nil {
		return err
	}

	var details []product.Detail
	if row != nil {
		details = product.Parse(row.ProductInfo())
	}
	plan := c.cfg.Table.plan(details)
	overflow := row != nil && len(plan.rows) > 0 &&
		(plan.height > c.cfg.MaxFooterHeight || plan.maxLines >= c.cfg.Table.OverflowLineLimit)

	footer := c.cfg.MinFooterHeight
	if row != nil && !overflow && plan.height > footer {
		footer = plan.height
	}

	c.canvas.AddPage(geo.Size{Width: c.cfg.PageWidth, Height: c.cfg.PageHeight})
	if err := c.drawLabelImage(img, footer); err != nil {
		return &RenderError{Op: "label image", Err: err}
	}

	switch {
	case row == nil:
		c.drawNoDataBanner(footer)
	case overflow:
		c.drawOverflowNote(footer)
		c.canvas.AddPage(geo.Size{Width: c.cfg.PageWidth, Height: c.cfg.PageHeight})
		c.drawOverflowPage(plan)
	default:
		c.drawTable(plan, c.cfg.PageHeight-footer)
	}

	c.result.Total++
	if row != nil {
		c.result.WithData++
	} else {
		c.result.WithoutData++
		missing := label.Identifier
		if missing == "" {
			missing = fmt.Sprintf("Página %d - %s", label.Page, label.QuadrantName)
		}
		c.result.MissingIdentifiers = append(c.result.MissingIdentifiers, missing)
	}
	return nil
}

// Result returns the counters accumulated so far.
func (c *Compositor) Result() Result { return c.result }

// Finalize serializes the output document.
func (c *Compositor) Finalize(w io.Writer) error {
	if err := c.canvas.Output(w); err != nil {
		return &RenderError{Op: "serialize document", Err: err}
	}
	return nil
}

// cropLabel rasterizes the label's source page (cached per page number) and
// crops the quadrant region out of it.
func (c *Compositor) cropLabel(ctx context.Context, label locator.Label) (image.Image, error) {
	raster, ok := c.rasters[label.Page]
	if !ok {
		var err error
		raster, err = c.doc.Rasterize(ctx, label.Page, c.cfg.RenderScale)
		if err != nil {
			return nil, &RenderError{Op: fmt.Sprintf("rasterize page %d", label.Page), Err: err}
		}
		c.rasters[label.Page] = raster
		c.log.Debug("page rasterized", observability.Int("page", label.Page))
	}

	size, err := c.doc.PageSize(label.Page)
	if err != nil {
		return nil, &RenderError{Op: fmt.Sprintf("page %d size", label.Page), Err: err}
	}
	crop := label.Bounds.FlipY(size.Height).Scale(c.cfg.RenderScale)
	return imaging.Crop(raster, image.Rect(
		int(crop.X), int(crop.Y), int(crop.X+crop.Width), int(crop.Y+crop.Height))), nil
}

// drawLabelImage fits the cropped image above the footer area, preserving
// aspect ratio, centered horizontally and anchored to the top.
func (c *Compositor) drawLabelImage(img image.Image, footer float64) error {
	bounds := img.Bounds()
	src := geo.Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	area := geo.Rect{X: 0, Y: 0, Width: c.cfg.PageWidth, Height: c.cfg.PageHeight - footer}
	return c.canvas.DrawImage(img, geo.FitInto(src, area))
}

var (
	black     = Color{}
	bannerRed = Color{R: 0.86, G: 0.2, B: 0.2}
	bannerBG  = Color{R: 1, G: 0.92, B: 0.92}
)

func (c *Compositor) drawNoDataBanner(footer float64) {
	strip := geo.Rect{X: 0, Y: c.cfg.PageHeight - footer, Width: c.cfg.PageWidth, Height: footer}
	c.canvas.DrawRect(strip, RectOptions{
		Fill: true, FillColor: bannerBG,
		Stroke: true, StrokeColor: bannerRed, LineWidth: 0.35,
	})
	opts := TextOptions{Size: 10, Bold: true, Color: bannerRed}
	x := (c.cfg.PageWidth - c.canvas.TextWidth(noDataBanner, opts)) / 2
	c.canvas.DrawText(noDataBanner, x, strip.Y+footer/2+1.2, opts)
}

func (c *Compositor) drawOverflowNote(footer float64) {
	strip := geo.Rect{X: 0, Y: c.cfg.PageHeight - footer, Width: c.cfg.PageWidth, Height: footer}
	c.canvas.DrawRect(strip, RectOptions{Stroke: true, StrokeColor: black, LineWidth: 0.2})
	opts := TextOptions{Size: 8, Bold: true, Color: black}
	x := (c.cfg.PageWidth - c.canvas.TextWidth(overflowNote, opts)) / 2
	c.canvas.DrawText(overflowNote, x, strip.Y+footer/2+1, opts)
}

func (c *Compositor) drawOverflowPage(plan tablePlan) {
	caption := TextOptions{Size: 10, Bold: true, Color: black}
	c.canvas.DrawText(overflowCaption, c.tableLeft(), 8, caption)
	c.drawTableRows(plan, 12)
}

// drawTable renders the bordered grid inside the footer area beginning at
// top (mm from the page top).
func (c *Compositor) drawTable(plan tablePlan, top float64) {
	if len(plan.rows) == 0 {
		return
	}
	c.drawTableRows(plan, top+c.cfg.Table.TablePadding/2)
}

func (c *Compositor) drawTableRows(plan tablePlan, top float64) {
	t := c.cfg.Table
	left := c.tableLeft()
	y := top
	cellText := TextOptions{Size: t.FontSize, Color: black}
	border := RectOptions{Stroke: true, StrokeColor: black, LineWidth: 0.2}

	for _, row := range plan.rows {
		c.canvas.DrawRect(geo.Rect{X: left, Y: y, Width: t.totalWidth(), Height: row.height}, border)
		// Column separators.
		c.canvas.DrawLine(left+t.SKUWidth, y, left+t.SKUWidth, y+row.height, LineOptions{StrokeColor: black, LineWidth: 0.2})
		c.canvas.DrawLine(left+t.SKUWidth+t.VariationWidth, y, left+t.SKUWidth+t.VariationWidth, y+row.height, LineOptions{StrokeColor: black, LineWidth: 0.2})

		baseline := func(i int) float64 {
			return y + t.RowPadding/2 + float64(i)*t.LineHeight + t.LineHeight*0.75
		}
		for i, line := range row.sku {
			c.canvas.DrawText(line, left+1.5, baseline(i), cellText)
		}
		for i, line := range row.variation {
			c.canvas.DrawText(line, left+t.SKUWidth+1.5, baseline(i), cellText)
		}
		qx := left + t.SKUWidth + t.VariationWidth
		qw := c.canvas.TextWidth(row.quantity, cellText)
		c.canvas.DrawText(row.quantity, qx+(t.QuantityWidth-qw)/2, baseline(0), cellText)

		y += row.height
	}
}

func (c *Compositor) tableLeft() float64 {
	return (c.cfg.PageWidth - c.cfg.Table.totalWidth()) / 2
}
