// Package pipeline sequences the label run: index the spreadsheet, locate
// labels in the source PDF, composite the output document and produce the
// final report. A Pipeline is an explicit object owned by the caller; one
// run at a time, run-scoped caches released on exit.
package pipeline

import (
	"context"
	"io"
	"math"
	"sync"

	"github.com/lightmkt/labelproc/compositor"
	"github.com/lightmkt/labelproc/document"
	"github.com/lightmkt/labelproc/ident"
	"github.com/lightmkt/labelproc/locator"
	"github.com/lightmkt/labelproc/observability"
	"github.com/lightmkt/labelproc/ocr"
	"github.com/lightmkt/labelproc/sheet"
)

// State names the orchestrator's position in the run.
type State string

const (
	StateIdle        State = "idle"
	StateIndexing    State = "indexing-spreadsheet"
	StateLocating    State = "locating-labels"
	StateCompositing State = "compositing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Progress is one milestone on the event stream. Percent is 0-100 across
// the whole run: indexing 0-15, locating 15-55, compositing 55-98,
// serialization 98-100.
type Progress struct {
	Stage   State
	Percent int
}

// Report is the final run summary.
type Report struct {
	Total              int      `json:"total"`
	WithData           int      `json:"withData"`
	WithoutData        int      `json:"withoutData"`
	MissingIdentifiers []string `json:"missingIdentifiers"`
	Percentage         int      `json:"percentage"`
}

// Config parameterizes a pipeline. Zero values fall back to defaults.
type Config struct {
	Scheme     ident.Scheme
	Policy     locator.Policy
	Compositor compositor.Config
	// OCREngine, when non-nil, enables identifier recovery for quadrants
	// without a text layer.
	OCREngine ocr.Engine
}

// DefaultConfig returns the production configuration: tracking-number
// scheme, emit-all policy, default label geometry, no OCR.
func DefaultConfig() Config {
	return Config{
		Scheme:     ident.SchemeTracking,
		Policy:     locator.PolicyEmitAll,
		Compositor: compositor.DefaultConfig(),
	}
}

// Option customizes a Pipeline at construction.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(log observability.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithDocumentOpener replaces how the source PDF is opened. Tests inject
// in-memory readers here.
func WithDocumentOpener(open func(path string) (document.Reader, error)) Option {
	return func(p *Pipeline) { p.openDoc = open }
}

// WithSheetOpener replaces how the spreadsheet is opened.
func WithSheetOpener(open func(path string) (sheet.Source, error)) Option {
	return func(p *Pipeline) { p.openSheet = open }
}

// WithCanvasFactory replaces the output canvas construction.
func WithCanvasFactory(factory func() compositor.Canvas) Option {
	return func(p *Pipeline) { p.newCanvas = factory }
}

// Pipeline runs the label extraction and re-composition sequence.
type Pipeline struct {
	cfg       Config
	log       observability.Logger
	openDoc   func(string) (document.Reader, error)
	openSheet func(string) (sheet.Source, error)
	newCanvas func() compositor.Canvas

	mu     sync.Mutex
	state  State
	events chan Progress
}

// New builds a Pipeline. The caller owns it; there is no process-wide
// instance.
func New(cfg Config, opts ...Option) *Pipeline {
	if !cfg.Scheme.Valid() {
		cfg.Scheme = ident.SchemeTracking
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = locator.PolicyEmitAll
	}
	if cfg.Compositor.PageWidth <= 0 {
		cfg.Compositor = compositor.DefaultConfig()
	}
	p := &Pipeline{
		cfg:    cfg,
		log:    observability.NopLogger{},
		state:  StateIdle,
		events: make(chan Progress, 64),
	}
	p.openDoc = func(path string) (document.Reader, error) { return document.Open(path) }
	p.openSheet = func(path string) (sheet.Source, error) { return sheet.OpenWorkbook(path) }
	p.newCanvas = func() compositor.Canvas { return compositor.NewPDFCanvas() }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Events exposes the progress stream. Sends never block the run: when the
// subscriber lags, milestones are dropped.
func (p *Pipeline) Events() <-chan Progress { return p.events }

// State returns the current orchestrator state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run executes one full pass: pdfPath and sheetPath are the inputs, the
// serialized output document is written to out. It fails with
// ErrAlreadyRunning while another run is in flight, and with a *StageError
// wrapping the originating stage on any fatal error. All-or-nothing: no
// partial output is written on failure.
func (p *Pipeline) Run(ctx context.Context, pdfPath, sheetPath string, out io.Writer) (*Report, error) {
	if pdfPath == "" || sheetPath == "" {
		return nil, ErrInputMissing
	}
	if err := p.begin(); err != nil {
		return nil, err
	}

	report, err := p.run(ctx, pdfPath, sheetPath, out)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	p.setState(StateDone)
	p.emit(StateDone, 100)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, pdfPath, sheetPath string, out io.Writer) (*Report, error) {
	p.setState(StateIndexing)
	p.emit(StateIndexing, 0)
	src, err := p.openSheet(sheetPath)
	if err != nil {
		return nil, &StageError{Stage: StateIndexing, Err: err}
	}
	index, err := sheet.Build(src, p.cfg.Scheme)
	if err != nil {
		return nil, &StageError{Stage: StateIndexing, Err: err}
	}
	p.log.Info("spreadsheet indexed",
		observability.Int("rows", index.Len()),
		observability.String("column", index.Column()))
	p.emit(StateIndexing, 15)

	p.setState(StateLocating)
	doc, err := p.openDoc(pdfPath)
	if err != nil {
		return nil, &StageError{Stage: StateLocating, Err: err}
	}
	defer doc.Close()

	labels, err := locator.Locate(ctx, doc, locator.Config{
		Scheme: p.cfg.Scheme,
		Policy: p.cfg.Policy,
		Engine: p.cfg.OCREngine,
		Logger: p.log,
	}, func(done, total int) {
		p.emit(StateLocating, 15+scale(done, total, 40))
	})
	if err != nil {
		return nil, &StageError{Stage: StateLocating, Err: err}
	}
	p.log.Info("labels located", observability.Int("labels", len(labels)))
	p.emit(StateLocating, 55)

	p.setState(StateCompositing)
	comp := compositor.New(doc, p.newCanvas(), p.cfg.Compositor, p.log)
	for i, label := range labels {
		select {
		case <-ctx.Done():
			return nil, &StageError{Stage: StateCompositing, Err: ctx.Err()}
		default:
		}
		var row *sheet.Row
		if label.Identifier != "" {
			if r, ok := index.Lookup(label.Identifier); ok {
				row = &r
			}
		}
		if err := comp.Compose(ctx, label, row); err != nil {
			return nil, &StageError{Stage: StateCompositing, Err: err}
		}
		p.emit(StateCompositing, 55+scale(i+1, len(labels), 43))
	}
	p.emit(StateCompositing, 98)

	if err := comp.Finalize(out); err != nil {
		return nil, &StageError{Stage: StateCompositing, Err: err}
	}

	result := comp.Result()
	report := &Report{
		Total:              result.Total,
		WithData:           result.WithData,
		WithoutData:        result.WithoutData,
		MissingIdentifiers: result.MissingIdentifiers,
		Percentage:         percentage(result.WithData, result.Total),
	}
	p.log.Info("run finished",
		observability.Int("total", report.Total),
		observability.Int("withData", report.WithData),
		observability.Int("withoutData", report.WithoutData))
	return report, nil
}

// begin transitions Idle (or a finished terminal state) into a fresh run.
// An in-flight run rejects re-entrancy rather than interleaving state.
func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateIdle, StateDone, StateFailed:
		p.state = StateIndexing
		return nil
	default:
		return ErrAlreadyRunning
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) emit(stage State, percent int) {
	select {
	case p.events <- Progress{Stage: stage, Percent: percent}:
	default:
	}
}

func scale(done, total, window int) int {
	if total <= 0 {
		return window
	}
	return int(math.Round(float64(done) / float64(total) * float64(window)))
}

func percentage(withData, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(withData) / float64(total) * 100))
}
