package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"

	"github.com/lightmkt/labelproc/compositor"
	"github.com/lightmkt/labelproc/document"
	"github.com/lightmkt/labelproc/geo"
	"github.com/lightmkt/labelproc/ident"
	"github.com/lightmkt/labelproc/locator"
	"github.com/lightmkt/labelproc/sheet"
)

type fakeSource struct {
	headers []string
	records [][]string
}

func (f *fakeSource) Headers() []string            { return f.headers }
func (f *fakeSource) Records() ([][]string, error) { return f.records, nil }

type fakeReader struct {
	size   geo.Size
	pages  int
	tokens map[int][]document.Token
	closed bool
}

func (f *fakeReader) NumPages() int { return f.pages }

func (f *fakeReader) PageSize(int) (geo.Size, error) { return f.size, nil }

func (f *fakeReader) Tokens(page int) ([]document.Token, error) { return f.tokens[page], nil }

func (f *fakeReader) Rasterize(_ context.Context, _ int, scale float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, int(f.size.Width*scale), int(f.size.Height*scale))), nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type fakeCanvas struct {
	pages int
	texts []string
}

func (f *fakeCanvas) AddPage(geo.Size) { f.pages++ }

func (f *fakeCanvas) DrawImage(image.Image, geo.Rect) error { return nil }

func (f *fakeCanvas) DrawText(text string, _, _ float64, _ compositor.TextOptions) {
	f.texts = append(f.texts, text)
}

func (f *fakeCanvas) TextWidth(text string, _ compositor.TextOptions) float64 {
	return float64(len(text))
}

func (f *fakeCanvas) DrawRect(geo.Rect, compositor.RectOptions) {}

func (f *fakeCanvas) DrawLine(_, _, _, _ float64, _ compositor.LineOptions) {}

func (f *fakeCanvas) Output(w io.Writer) error {
	_, err := w.Write([]byte("%PDF-fake"))
	return err
}

func newPipeline(src sheet.Source, doc document.Reader, canvas compositor.Canvas, cfg Config) *Pipeline {
	return New(cfg,
		WithSheetOpener(func(string) (sheet.Source, error) { return src, nil }),
		WithDocumentOpener(func(string) (document.Reader, error) { return doc, nil }),
		WithCanvasFactory(func() compositor.Canvas { return canvas }),
	)
}

// Round trip: one code on one label, matched to one spreadsheet row, under
// the suppress policy so blank quadrants do not show up in the report.
func TestRunRoundTrip(t *testing.T) {
	src := &fakeSource{
		headers: []string{"tracking_number", "product_info"},
		records: [][]string{
			{"BR123456789BR", "[1] SKU Reference No.: ABC-1; Variation Name: Red; Quantity: 2"},
		},
	}
	doc := &fakeReader{
		size:  geo.Size{Width: 595, Height: 842},
		pages: 1,
		tokens: map[int][]document.Token{
			1: {{Text: "BR123456789BR", X: 50, Y: 700}},
		},
	}
	canvas := &fakeCanvas{}
	cfg := DefaultConfig()
	cfg.Policy = locator.PolicySuppressUnmatched
	p := newPipeline(src, doc, canvas, cfg)

	var out bytes.Buffer
	report, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 1 || report.WithData != 1 || report.WithoutData != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", report.Percentage)
	}
	if canvas.pages != 1 {
		t.Fatalf("expected 1 output page, got %d", canvas.pages)
	}
	all := strings.Join(canvas.texts, " ")
	for _, want := range []string{"ABC-1", "Red", "2"} {
		if !strings.Contains(all, want) {
			t.Fatalf("expected %q in rendered table, got %q", want, all)
		}
	}
	if out.Len() == 0 {
		t.Fatalf("expected serialized output document")
	}
	if !doc.closed {
		t.Fatalf("expected source document to be closed")
	}
	if got := p.State(); got != StateDone {
		t.Fatalf("expected done state, got %s", got)
	}
}

func TestRunMissingMatch(t *testing.T) {
	src := &fakeSource{
		headers: []string{"tracking_number"},
		records: [][]string{{"BR999999999BR"}},
	}
	doc := &fakeReader{
		size:  geo.Size{Width: 595, Height: 842},
		pages: 1,
		tokens: map[int][]document.Token{
			1: {{Text: "BR123456789BR", X: 50, Y: 700}},
		},
	}
	cfg := DefaultConfig()
	cfg.Policy = locator.PolicySuppressUnmatched
	p := newPipeline(src, doc, &fakeCanvas{}, cfg)

	report, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.WithoutData != 1 || report.Percentage != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.MissingIdentifiers) != 1 || report.MissingIdentifiers[0] != "BR123456789BR" {
		t.Fatalf("expected the identifier verbatim, got %v", report.MissingIdentifiers)
	}
}

func TestRunEmitAllCountsBlankQuadrants(t *testing.T) {
	src := &fakeSource{
		headers: []string{"tracking_number"},
		records: [][]string{{"BR123456789BR"}},
	}
	doc := &fakeReader{
		size:  geo.Size{Width: 595, Height: 842},
		pages: 1,
		tokens: map[int][]document.Token{
			1: {{Text: "BR123456789BR", X: 50, Y: 700}},
		},
	}
	p := newPipeline(src, doc, &fakeCanvas{}, DefaultConfig())

	report, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 4 || report.WithData != 1 || report.WithoutData != 3 {
		t.Fatalf("expected 4 quadrants under emit-all, got %+v", report)
	}
	if report.Percentage != 25 {
		t.Fatalf("expected 25%%, got %d", report.Percentage)
	}
}

func TestRunInputMissing(t *testing.T) {
	p := New(DefaultConfig())
	if _, err := p.Run(context.Background(), "", "orders.xlsx", &bytes.Buffer{}); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
}

func TestRunRejectsReentrancy(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	src := &fakeSource{headers: []string{"tracking_number"}, records: [][]string{{"BR123456789BR"}}}
	doc := &fakeReader{size: geo.Size{Width: 595, Height: 842}, pages: 1}

	p := New(DefaultConfig(),
		WithSheetOpener(func(string) (sheet.Source, error) {
			close(started)
			<-block
			return src, nil
		}),
		WithDocumentOpener(func(string) (document.Reader, error) { return doc, nil }),
		WithCanvasFactory(func() compositor.Canvas { return &fakeCanvas{} }),
	)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &bytes.Buffer{})
		done <- err
	}()
	<-started

	if _, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &bytes.Buffer{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first run: %v", err)
	}
}

func TestRunStageErrorsCarryStage(t *testing.T) {
	// Duplicate identifiers fail in the indexing stage; the pipeline ends
	// failed and nothing is written.
	src := &fakeSource{
		headers: []string{"tracking_number"},
		records: [][]string{{"BR123456789BR"}, {"BR123456789BR"}},
	}
	doc := &fakeReader{size: geo.Size{Width: 595, Height: 842}, pages: 1}
	p := newPipeline(src, doc, &fakeCanvas{}, DefaultConfig())

	var out bytes.Buffer
	_, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &out)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StateIndexing {
		t.Fatalf("expected indexing stage error, got %v", err)
	}
	var dup *sheet.DuplicateIdentifierError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIdentifierError in chain, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no partial output, got %d bytes", out.Len())
	}
	if got := p.State(); got != StateFailed {
		t.Fatalf("expected failed state, got %s", got)
	}
}

func TestRunCancellation(t *testing.T) {
	src := &fakeSource{headers: []string{"tracking_number"}, records: [][]string{{"BR123456789BR"}}}
	doc := &fakeReader{size: geo.Size{Width: 595, Height: 842}, pages: 3}
	p := newPipeline(src, doc, &fakeCanvas{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, "labels.pdf", "orders.xlsx", &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunProgressIsMonotonic(t *testing.T) {
	src := &fakeSource{headers: []string{"tracking_number"}, records: [][]string{{"BR123456789BR"}}}
	doc := &fakeReader{
		size:  geo.Size{Width: 595, Height: 842},
		pages: 2,
		tokens: map[int][]document.Token{
			1: {{Text: "BR123456789BR", X: 50, Y: 700}},
		},
	}
	p := newPipeline(src, doc, &fakeCanvas{}, DefaultConfig())

	if _, err := p.Run(context.Background(), "labels.pdf", "orders.xlsx", &bytes.Buffer{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := -1
	final := 0
	for {
		select {
		case ev := <-p.Events():
			if ev.Percent < last {
				t.Fatalf("progress went backwards: %d after %d", ev.Percent, last)
			}
			last = ev.Percent
			final = ev.Percent
			continue
		default:
		}
		break
	}
	if final != 100 {
		t.Fatalf("expected final milestone 100, got %d", final)
	}
}

func TestPercentageRounding(t *testing.T) {
	if got := percentage(1, 3); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := percentage(2, 3); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := percentage(0, 0); got != 0 {
		t.Fatalf("expected 0 for empty runs, got %d", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	p := New(Config{})
	if p.cfg.Scheme != ident.SchemeTracking {
		t.Fatalf("expected tracking default, got %s", p.cfg.Scheme)
	}
	if p.cfg.Policy != locator.PolicyEmitAll {
		t.Fatalf("expected emit-all default, got %s", p.cfg.Policy)
	}
	if p.cfg.Compositor.PageWidth != 100 || p.cfg.Compositor.PageHeight != 150 {
		t.Fatalf("expected 100x150 mm default page, got %+v", p.cfg.Compositor)
	}
}
