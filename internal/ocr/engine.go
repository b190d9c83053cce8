// Package ocr defines the boundary to text-recognition engines. The
// conversion pipeline depends only on Engine; concrete providers live in
// subpackages.
package ocr

import "context"

// Input is one page image to recognize.
type Input struct {
	// ID correlates the result with its page (e.g. "page-3").
	ID        string
	Image     []byte
	PageIndex int
	Languages []string
	DPI       int
}

// Word is a recognized word with its confidence in [0, 1].
type Word struct {
	Text       string
	Confidence float64
}

// Result is the recognition output for one input.
type Result struct {
	InputID    string
	PlainText  string
	Words      []Word
	Confidence float64
}

// Engine performs OCR on page images. Implementations must honor context
// cancellation between pages.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}
