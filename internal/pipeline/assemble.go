package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AssembleStage converts recognized page text into the editable block
// document.
type AssembleStage struct{}

// NewAssembleStage creates the assemble stage.
func NewAssembleStage() *AssembleStage {
	return &AssembleStage{}
}

func (s *AssembleStage) Name() string { return "convert" }

func (s *AssembleStage) Run(ctx context.Context, job *Job, report ReportFunc) error {
	if len(job.Pages) == 0 {
		return fmt.Errorf("no recognized pages to assemble")
	}

	doc := &Document{
		JobID:      job.ID,
		SourceName: job.SourceName,
		PageCount:  len(job.Pages),
		CreatedAt:  time.Now(),
	}

	for i, page := range job.Pages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		doc.Blocks = append(doc.Blocks, blocksFromText(page.Text, page.Index)...)
		report(float64(i+1)/float64(len(job.Pages)),
			fmt.Sprintf("Assembled page %d of %d", i+1, len(job.Pages)), nil)
	}

	job.Document = doc
	return nil
}

// blocksFromText splits page text into paragraph blocks on blank lines.
// Short single lines without terminal punctuation are treated as headings.
func blocksFromText(text string, page int) []Block {
	var blocks []Block
	for _, chunk := range strings.Split(text, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		blockType := BlockParagraph
		if isHeading(chunk) {
			blockType = BlockHeading
		}
		blocks = append(blocks, Block{
			Type: blockType,
			Text: chunk,
			Page: page,
		})
	}
	return blocks
}

func isHeading(chunk string) bool {
	if strings.Contains(chunk, "\n") || len(chunk) > 80 {
		return false
	}
	return !strings.ContainsAny(chunk[len(chunk)-1:], ".!?,;:")
}
