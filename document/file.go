package document

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/lightmkt/labelproc/geo"
)

// File is a Reader backed by a PDF on disk. Rasterization goes through
// MuPDF; positioned text tokens come from the PDF content streams.
type File struct {
	raster  *fitz.Document
	text    *pdf.Reader
	textSrc *os.File
}

// Open loads a PDF file. It fails with *LoadError when the file cannot be
// parsed by either engine.
func Open(path string) (*File, error) {
	raster, err := fitz.New(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	src, reader, err := pdf.Open(path)
	if err != nil {
		raster.Close()
		return nil, &LoadError{Path: path, Err: err}
	}
	return &File{raster: raster, text: reader, textSrc: src}, nil
}

func (f *File) NumPages() int { return f.raster.NumPage() }

func (f *File) PageSize(page int) (geo.Size, error) {
	bounds, err := f.raster.Bound(page - 1)
	if err != nil {
		return geo.Size{}, fmt.Errorf("page %d bounds: %w", page, err)
	}
	return geo.Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}, nil
}

func (f *File) Tokens(page int) ([]Token, error) {
	p := f.text.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	content := p.Content()
	tokens := make([]Token, 0, len(content.Text))
	for _, t := range content.Text {
		tokens = append(tokens, Token{
			Text:   t.S,
			X:      t.X,
			Y:      t.Y,
			Width:  t.W,
			Height: t.FontSize,
		})
	}
	return tokens, nil
}

func (f *File) Rasterize(ctx context.Context, page int, scale float64) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// MuPDF renders by DPI; the natural page size corresponds to 72.
	img, err := f.raster.ImageDPI(page-1, 72*scale)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}
	return img, nil
}

func (f *File) Close() error {
	err := f.raster.Close()
	if cerr := f.textSrc.Close(); err == nil {
		err = cerr
	}
	return err
}
