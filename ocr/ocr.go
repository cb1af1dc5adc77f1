// Package ocr defines a small abstraction for plugging OCR engines into the
// label pipeline. Labels are occasionally printed as pure raster with no
// text layer; when an engine is configured, the locator falls back to
// recognizing the quadrant image. The contract is transport-agnostic so
// engines can be local libraries or remote services.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Input encapsulates a single image submitted for OCR.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in Result.
	ID string
	// Image is the encoded payload in the format declared by Format.
	Image []byte
	// Format declares the image content type.
	Format ImageFormat
	// Languages is a list of language hints (e.g. "por", "eng").
	Languages []string
	// Metadata passes engine-specific knobs (e.g. Tesseract variables)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// Result captures OCR output for a single input image.
type Result struct {
	InputID   string
	PlainText string
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// InputOption mutates an OCR input before submission.
type InputOption func(*Input)

// WithLanguages sets language hints on the input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithWhitelist restricts recognition to the provided characters. Identifier
// recovery uses the scheme charset here so stray punctuation cannot corrupt
// a code.
func WithWhitelist(chars string) InputOption {
	return func(in *Input) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata["tessedit_char_whitelist"] = chars
	}
}

// WithPSM sets the page segmentation mode variable for Tesseract-compatible
// engines.
func WithPSM(mode string) InputOption {
	return func(in *Input) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata["tessedit_pageseg_mode"] = mode
	}
}

// NopEngine recognizes nothing. It stands in where OCR is disabled.
type NopEngine struct{}

func (NopEngine) Name() string { return "noop" }

func (NopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID}, nil
}
