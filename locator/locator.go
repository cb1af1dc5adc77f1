// Package locator partitions each page of a label sheet into its 4 quadrant
// regions and extracts the shipment identifier printed in each one by
// filtering the page's positioned text tokens.
package locator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/lightmkt/labelproc/document"
	"github.com/lightmkt/labelproc/geo"
	"github.com/lightmkt/labelproc/ident"
	"github.com/lightmkt/labelproc/observability"
	"github.com/lightmkt/labelproc/ocr"
)

// Policy selects what happens to quadrants without an identifier match.
type Policy string

const (
	// PolicyEmitAll emits a label for every quadrant; unmatched ones carry
	// an empty identifier and surface in the report as missing.
	PolicyEmitAll Policy = "emit-all"
	// PolicySuppressUnmatched drops quadrants with no identifier entirely,
	// for sheets printed with blank filler positions.
	PolicySuppressUnmatched Policy = "suppress-unmatched"
)

// Valid reports whether p names a known policy.
func (p Policy) Valid() bool { return p == PolicyEmitAll || p == PolicySuppressUnmatched }

// Label is one located label region. Immutable once produced; consumed by
// the compositor in (Page, QuadrantIndex) order.
type Label struct {
	Page          int
	QuadrantIndex int
	QuadrantName  string
	Identifier    string // empty when no match
	Bounds        geo.Rect
}

// Config parameterizes a location pass.
type Config struct {
	Scheme ident.Scheme
	Policy Policy
	// Engine enables OCR fallback for quadrants whose text layer yields no
	// identifier. Nil disables the fallback.
	Engine ocr.Engine
	// OCRScale is the raster upscaling factor for fallback recognition.
	OCRScale float64
	Logger   observability.Logger
}

func (c Config) withDefaults() Config {
	if !c.Scheme.Valid() {
		c.Scheme = ident.SchemeTracking
	}
	if !c.Policy.Valid() {
		c.Policy = PolicyEmitAll
	}
	if c.OCRScale <= 0 {
		c.OCRScale = 2
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	return c
}

// Locate scans every page of doc and returns labels in strict
// (page, quadrant) order: top-left, top-right, bottom-left, bottom-right.
// Under PolicyEmitAll it returns exactly 4 labels per page. The progress
// callback, when non-nil, receives (pagesScanned, totalPages) after each
// page. No partial result is returned on error.
func Locate(ctx context.Context, doc document.Reader, cfg Config, progress func(done, total int)) ([]Label, error) {
	cfg = cfg.withDefaults()
	total := doc.NumPages()
	labels := make([]Label, 0, total*4)

	for page := 1; page <= total; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		size, err := doc.PageSize(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		tokens, err := doc.Tokens(page)
		if err != nil {
			return nil, fmt.Errorf("page %d tokens: %w", page, err)
		}

		for _, quad := range geo.Quadrants(size) {
			text := quadrantText(tokens, quad.Bounds, size.Height)
			id, ok := cfg.Scheme.ExtractFirst(text)
			if !ok && cfg.Engine != nil {
				id = ocrFallback(ctx, doc, cfg, page, quad, size)
			}
			if id == "" && cfg.Policy == PolicySuppressUnmatched {
				continue
			}
			labels = append(labels, Label{
				Page:          page,
				QuadrantIndex: quad.Index,
				QuadrantName:  quad.Name,
				Identifier:    id,
				Bounds:        quad.Bounds,
			})
		}
		if progress != nil {
			progress(page, total)
		}
	}
	return labels, nil
}

// quadrantText joins the tokens whose anchor falls inside the quadrant,
// separated by single spaces. Token anchors are in PDF space (Y up); the
// test runs in viewport space (Y down), mirroring the print orientation.
func quadrantText(tokens []document.Token, bounds geo.Rect, pageHeight float64) string {
	view := bounds.FlipY(pageHeight)
	var parts []string
	for _, t := range tokens {
		if view.Contains(t.X, pageHeight-t.Y) {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, " ")
}

// ocrFallback rasterizes the quadrant and asks the configured engine for an
// identifier. It is best-effort: failures are logged and the quadrant stays
// unmatched.
func ocrFallback(ctx context.Context, doc document.Reader, cfg Config, page int, quad geo.Quadrant, size geo.Size) string {
	img, err := doc.Rasterize(ctx, page, cfg.OCRScale)
	if err != nil {
		cfg.Logger.Warn("ocr fallback raster failed",
			observability.Int("page", page), observability.Error("err", err))
		return ""
	}
	crop := quad.Bounds.FlipY(size.Height).Scale(cfg.OCRScale)
	region := imaging.Crop(img, image.Rect(
		int(crop.X), int(crop.Y), int(crop.X+crop.Width), int(crop.Y+crop.Height)))

	var buf bytes.Buffer
	if err := png.Encode(&buf, region); err != nil {
		cfg.Logger.Warn("ocr fallback encode failed",
			observability.Int("page", page), observability.Error("err", err))
		return ""
	}
	in := ocr.Input{
		ID:     fmt.Sprintf("page-%d-quadrant-%d", page, quad.Index),
		Image:  buf.Bytes(),
		Format: ocr.ImageFormatPNG,
	}
	ocr.WithWhitelist(cfg.Scheme.Charset())(&in)
	ocr.WithPSM("6")(&in)

	res, err := cfg.Engine.Recognize(ctx, in)
	if err != nil {
		cfg.Logger.Warn("ocr fallback recognize failed",
			observability.Int("page", page), observability.Error("err", err))
		return ""
	}
	id, _ := cfg.Scheme.ExtractFirst(res.PlainText)
	return id
}
