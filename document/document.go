// Package document defines the document capability the pipeline consumes: a
// page-based source exposing sizes, positioned text tokens and region
// rasterization. The pipeline never touches a PDF library directly; it goes
// through Reader so the rendering engine stays swappable and tests can use
// in-memory fakes.
package document

import (
	"context"
	"fmt"
	"image"

	"github.com/lightmkt/labelproc/geo"
)

// Token is one positioned text item on a page. The anchor (X, Y) is in page
// coordinates with the origin at the bottom-left corner and Y increasing
// upward; Width and Height come from the rendering engine.
type Token struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Reader is the document-loading/rendering capability. Pages are 1-based.
type Reader interface {
	NumPages() int
	PageSize(page int) (geo.Size, error)
	Tokens(page int) ([]Token, error)
	// Rasterize renders a full page at the given upscaling factor relative
	// to the page's natural size in points.
	Rasterize(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// LoadError indicates the source PDF could not be parsed or opened. Location
// never returns partial results behind it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
