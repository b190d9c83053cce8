package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadSize caps accepted documents at 100MB.
const MaxUploadSize = 100 * 1024 * 1024

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var pdfMagic = []byte("%PDF-")

// ValidateSource checks that an uploaded file exists, has a supported
// extension and a plausible size, and that PDF uploads carry the PDF magic
// bytes.
func ValidateSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if info.Size() > MaxUploadSize {
		return fmt.Errorf("file exceeds maximum size of %d bytes", MaxUploadSize)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q", ext)
	}

	if ext == ".pdf" {
		header := make([]byte, len(pdfMagic))
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cannot open file %s: %w", path, err)
		}
		defer f.Close()
		if _, err := f.Read(header); err != nil || !bytes.Equal(header, pdfMagic) {
			return fmt.Errorf("file is not a valid PDF: %s", path)
		}
	}

	return nil
}

// IsPDF reports whether the path has a PDF extension.
func IsPDF(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}
