package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/docuflow/docuflow/internal/ocr"
)

// OCRStage renders the source into page images and runs text recognition
// over each page, reporting page-granular progress.
type OCRStage struct {
	engine    ocr.Engine
	languages []string
}

// NewOCRStage creates the OCR stage over the given engine.
func NewOCRStage(engine ocr.Engine, languages ...string) *OCRStage {
	return &OCRStage{engine: engine, languages: languages}
}

func (s *OCRStage) Name() string { return "ocr" }

func (s *OCRStage) Run(ctx context.Context, job *Job, report ReportFunc) error {
	pages, err := renderPages(ctx, job)
	if err != nil {
		return err
	}
	job.Pages = pages

	// Rendering accounts for the first tenth of this stage's budget;
	// recognition fills the rest page by page.
	report(0.1, fmt.Sprintf("Rendered %d pages", len(pages)), nil)

	for i := range job.Pages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page := &job.Pages[i]
		result, err := s.recognizePage(ctx, page)
		if err != nil {
			return fmt.Errorf("ocr failed on page %d: %w", page.Index+1, err)
		}

		page.Text = result.PlainText
		page.Words = len(result.Words)

		progress := 0.1 + 0.9*float64(i+1)/float64(len(job.Pages))
		report(progress, fmt.Sprintf("Recognized page %d of %d", i+1, len(job.Pages)), map[string]string{
			"page":  strconv.Itoa(page.Index + 1),
			"words": strconv.Itoa(page.Words),
		})
	}
	return nil
}

// recognizePage runs one page through the engine, retrying transient
// failures a couple of times with exponential backoff before giving up.
func (s *OCRStage) recognizePage(ctx context.Context, page *Page) (ocr.Result, error) {
	var result ocr.Result
	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := s.engine.Recognize(ctx, ocr.Input{
			ID:        fmt.Sprintf("page-%d", page.Index),
			Image:     page.Image,
			PageIndex: page.Index,
			Languages: s.languages,
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		result = r
		return nil
	})
	return result, err
}
