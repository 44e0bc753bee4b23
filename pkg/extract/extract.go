// Package extract pulls plain text out of the source formats the corpus
// ships in: PDF, DOCX, plain text, and markdown.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kpxlab/marketrag/engine/domain"
)

// TypeOf maps a file name to its FileType.
func TypeOf(path string) (domain.FileType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.FilePDF, nil
	case ".docx":
		return domain.FileDOCX, nil
	case ".txt":
		return domain.FileTXT, nil
	case ".md", ".markdown":
		return domain.FileMarkdown, nil
	default:
		return "", fmt.Errorf("extract: %s: %w", path, domain.ErrUnsupportedFile)
	}
}

// Text extracts the textual content of the file at path.
func Text(path string) (string, error) {
	ft, err := TypeOf(path)
	if err != nil {
		return "", err
	}
	switch ft {
	case domain.FilePDF:
		return pdfText(path)
	case domain.FileDOCX:
		return docxText(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extract: read %s: %w", path, err)
		}
		return string(data), nil
	}
}

// File builds a Document from the file at path, using its base name (minus
// extension) as the document id.
func File(path string) (domain.Document, error) {
	ft, err := TypeOf(path)
	if err != nil {
		return domain.Document{}, err
	}
	text, err := Text(path)
	if err != nil {
		return domain.Document{}, err
	}
	base := filepath.Base(path)
	return domain.Document{
		ID:         strings.TrimSuffix(base, filepath.Ext(base)),
		SourceFile: base,
		FileType:   ft,
		Text:       text,
	}, nil
}
