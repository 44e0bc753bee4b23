package domain

import (
	"strconv"
	"strings"
)

// ValidateDocument checks a document before it enters the indexing pipeline.
// Empty text is allowed: extraction failures degrade to empty text and the
// chunker turns that into zero chunks rather than aborting the batch.
func ValidateDocument(d Document) error {
	if strings.TrimSpace(d.ID) == "" {
		return NewValidationError("id", d.ID, ErrInvalidDocument)
	}
	if !ValidFileTypes[d.FileType] {
		return NewValidationError("file_type", string(d.FileType), ErrUnsupportedFile)
	}
	return nil
}

// ValidateChunking checks the chunker's size and overlap parameters.
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return NewValidationError("chunk_size", strconv.Itoa(chunkSize), ErrInvalidChunking)
	}
	if overlap < 0 || overlap >= chunkSize {
		return NewValidationError("overlap", strconv.Itoa(overlap), ErrInvalidChunking)
	}
	return nil
}
