package locator

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/lightmkt/labelproc/document"
	"github.com/lightmkt/labelproc/geo"
	"github.com/lightmkt/labelproc/ocr"
)

// fakeReader serves synthetic pages. Token positions are in PDF space
// (origin bottom-left).
type fakeReader struct {
	size   geo.Size
	tokens map[int][]document.Token
	pages  int
}

func (f *fakeReader) NumPages() int { return f.pages }

func (f *fakeReader) PageSize(int) (geo.Size, error) { return f.size, nil }

func (f *fakeReader) Tokens(page int) ([]document.Token, error) { return f.tokens[page], nil }

func (f *fakeReader) Rasterize(_ context.Context, _ int, scale float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, int(f.size.Width*scale), int(f.size.Height*scale))), nil
}

func (f *fakeReader) Close() error { return nil }

// page 595x842; quadrant anchors: top half has PDF-space Y > 421.
func newSheet(pages int) *fakeReader {
	return &fakeReader{size: geo.Size{Width: 595, Height: 842}, pages: pages, tokens: map[int][]document.Token{}}
}

func TestLocateEmitsFourPerPageInOrder(t *testing.T) {
	r := newSheet(2)
	// One code per quadrant on page 1, scattered with noise tokens.
	r.tokens[1] = []document.Token{
		{Text: "Destinatário", X: 10, Y: 800},
		{Text: "BR111111111BR", X: 50, Y: 700},  // top-left
		{Text: "BR222222222BR", X: 400, Y: 700}, // top-right
		{Text: "BR333333333BR", X: 50, Y: 100},  // bottom-left
		{Text: "BR444444444BR", X: 400, Y: 100}, // bottom-right
	}
	// Page 2 has no codes at all.

	labels, err := Locate(context.Background(), r, Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 8 {
		t.Fatalf("expected 4xN labels, got %d", len(labels))
	}
	wantIDs := []string{"BR111111111BR", "BR222222222BR", "BR333333333BR", "BR444444444BR"}
	for i, want := range wantIDs {
		l := labels[i]
		if l.Page != 1 || l.QuadrantIndex != i {
			t.Fatalf("label %d out of order: page %d quadrant %d", i, l.Page, l.QuadrantIndex)
		}
		if l.Identifier != want {
			t.Fatalf("quadrant %d: expected %s, got %q", i, want, l.Identifier)
		}
	}
	for i := 4; i < 8; i++ {
		if labels[i].Page != 2 || labels[i].Identifier != "" {
			t.Fatalf("page 2 labels must be unmatched, got %+v", labels[i])
		}
	}
}

func TestLocateQuadrantBoundsHalvePage(t *testing.T) {
	r := newSheet(1)
	labels, err := Locate(context.Background(), r, Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range labels {
		if l.Bounds.Width != 595.0/2 || l.Bounds.Height != 842.0/2 {
			t.Fatalf("quadrant %d bounds not half-page: %+v", l.QuadrantIndex, l.Bounds)
		}
	}
	if labels[0].QuadrantName != "Superior Esquerdo" {
		t.Fatalf("unexpected quadrant name %q", labels[0].QuadrantName)
	}
}

func TestLocateSuppressPolicy(t *testing.T) {
	r := newSheet(1)
	r.tokens[1] = []document.Token{
		{Text: "BR111111111BR", X: 50, Y: 700},
	}
	labels, err := Locate(context.Background(), r, Config{Policy: PolicySuppressUnmatched}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 1 || labels[0].Identifier != "BR111111111BR" {
		t.Fatalf("expected only the matched quadrant, got %+v", labels)
	}
}

func TestLocateFirstDistinctMatchWins(t *testing.T) {
	r := newSheet(1)
	r.tokens[1] = []document.Token{
		{Text: "BR999999999BR", X: 10, Y: 700},
		{Text: "br999999999br", X: 60, Y: 700},
		{Text: "BR111111111BR", X: 120, Y: 700},
	}
	labels, err := Locate(context.Background(), r, Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labels[0].Identifier != "BR999999999BR" {
		t.Fatalf("expected first distinct match, got %q", labels[0].Identifier)
	}
}

func TestLocateProgressAndCancellation(t *testing.T) {
	r := newSheet(3)
	var calls int
	_, err := Locate(context.Background(), r, Config{}, func(done, total int) {
		calls++
		if total != 3 || done != calls {
			t.Fatalf("unexpected progress %d/%d at call %d", done, total, calls)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 progress calls, got %d", calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Locate(ctx, r, Config{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeEngine struct{ text string }

func (f fakeEngine) Name() string { return "fake" }
func (f fakeEngine) Recognize(context.Context, ocr.Input) (ocr.Result, error) {
	return ocr.Result{PlainText: f.text}, nil
}

func TestLocateOCRFallback(t *testing.T) {
	r := newSheet(1)
	// No text tokens at all; the engine reads the code off the raster.
	labels, err := Locate(context.Background(), r, Config{Engine: fakeEngine{text: "BR123456789BR\n"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range labels {
		if l.Identifier != "BR123456789BR" {
			t.Fatalf("expected OCR fallback identifier, got %q", l.Identifier)
		}
	}
}
