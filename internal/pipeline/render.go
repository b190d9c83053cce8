package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
)

// renderPages turns the uploaded document into per-page PNG images. PDF
// sources are rasterized with go-fitz; raster uploads pass through as a
// single page.
func renderPages(ctx context.Context, job *Job) ([]Page, error) {
	if !IsPDF(job.SourcePath) {
		data, err := os.ReadFile(job.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image upload: %w", err)
		}
		return []Page{{Index: 0, Image: data}}, nil
	}

	doc, err := fitz.New(job.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}
		pages = append(pages, Page{Index: i, Image: buf.Bytes()})
	}
	return pages, nil
}
