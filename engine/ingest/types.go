package ingest

import "github.com/kpxlab/marketrag/engine/domain"

// Job is one document submitted for indexing.
type Job struct {
	Doc domain.Document `json:"doc"`
	// Replace forces re-indexing even when the document is already stored.
	Replace bool `json:"replace,omitempty"`
}

// ChunkedDoc is a document split into chunks.
type ChunkedDoc struct {
	Doc    domain.Document
	Chunks []domain.Chunk
}

// EmbeddedDoc is a chunked document with embeddings attached.
type EmbeddedDoc struct {
	ChunkedDoc
	Embedded []domain.EmbeddedChunk
}

// Stored summarizes a completed indexing run for one document.
type Stored struct {
	DocID  string
	Chunks int
}
