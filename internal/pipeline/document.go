package pipeline

import "time"

// BlockType classifies one editable block of the converted document.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
)

// Block is one editable unit of the output document.
type Block struct {
	Type       BlockType `json:"type"`
	Text       string    `json:"text"`
	Page       int       `json:"page"`
	Confidence float64   `json:"confidence"`
}

// Page carries the per-page intermediate state flowing between stages.
type Page struct {
	Index int
	// Image is the rendered page, PNG-encoded, produced by the render
	// stage and consumed by the OCR stage.
	Image []byte
	Text  string
	Words int
}

// Document is the editable result of a conversion job.
type Document struct {
	JobID      string    `json:"job_id"`
	SourceName string    `json:"source_name"`
	PageCount  int       `json:"page_count"`
	Blocks     []Block   `json:"blocks"`
	CreatedAt  time.Time `json:"created_at"`
}

// Job is one queued conversion request plus its in-flight state.
type Job struct {
	ID         string
	SourcePath string
	SourceName string

	Pages    []Page
	Document *Document
}
