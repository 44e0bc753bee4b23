// Package domain defines the core data model shared across the marketrag
// pipeline: documents, chunks, search results, and generation results. It acts
// as the validation gate at pipeline entry points.
package domain

import (
	"strconv"
	"unicode/utf8"
)

// FileType identifies the source format a document was extracted from.
type FileType string

const (
	FilePDF      FileType = "pdf"
	FileDOCX     FileType = "docx"
	FileTXT      FileType = "txt"
	FileMarkdown FileType = "markdown"
)

// ValidFileTypes is the set of supported source formats.
var ValidFileTypes = map[FileType]bool{
	FilePDF: true, FileDOCX: true, FileTXT: true, FileMarkdown: true,
}

// SearchMethod selects a retrieval strategy.
type SearchMethod string

const (
	SearchSemantic SearchMethod = "semantic"
	SearchKeyword  SearchMethod = "keyword"
	SearchHybrid   SearchMethod = "hybrid"
	SearchSmart    SearchMethod = "smart"
)

// ValidSearchMethods is the set of recognised retrieval strategies.
var ValidSearchMethods = map[SearchMethod]bool{
	SearchSemantic: true, SearchKeyword: true, SearchHybrid: true, SearchSmart: true,
}

// Document is raw extracted text plus source metadata, the unit of indexing.
type Document struct {
	ID         string   `json:"id"`
	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`
	Text       string   `json:"text"`
	Category   string   `json:"category,omitempty"`
}

// Chunk is a bounded-length, possibly overlapping span of a document's text.
// Chunks are immutable once created; re-indexing a document replaces them.
//
// CharLen counts runes, not bytes. The corpus is mostly Korean and every
// character budget in the pipeline (chunk size, overlap, context limit) is a
// rune budget.
type Chunk struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Seq        int      `json:"seq"`
	CharLen    int      `json:"char_len"`
	DocID      string   `json:"doc_id"`
	SourceFile string   `json:"source_file"`
	FileType   FileType `json:"file_type"`
	Category   string   `json:"category,omitempty"`
}

// NewChunk builds a Chunk with CharLen derived from the text.
func NewChunk(doc Document, text string, seq int) Chunk {
	return Chunk{
		ID:         ChunkID(doc.ID, seq),
		Text:       text,
		Seq:        seq,
		CharLen:    utf8.RuneCountInString(text),
		DocID:      doc.ID,
		SourceFile: doc.SourceFile,
		FileType:   doc.FileType,
		Category:   doc.Category,
	}
}

// ChunkID derives the canonical chunk identifier for a document and sequence.
func ChunkID(docID string, seq int) string {
	return docID + ":" + strconv.Itoa(seq)
}

// EmbeddedChunk is a Chunk with its embedding vector. Written once into the
// vector index; re-embedding goes through delete+re-add.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
	ModelID   string    `json:"model_id"`
}

// SearchResult is one ranked retrieval hit. Transient, created per query.
//
// Similarity is in [0,1]; Distance is 1-Similarity for the cosine metric.
// Relevance depends on the retrieval method and is not comparable across
// methods.
type SearchResult struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Meta       map[string]string `json:"meta,omitempty"`
	Distance   float64           `json:"distance"`
	Similarity float64           `json:"similarity"`
	Relevance  float64           `json:"relevance_score"`
	DocID      string            `json:"doc_id"`
	SourceFile string            `json:"source_file"`
}

// GenerationResult is the synthesized answer for one query. Every query gets
// one, even on failure (confidence 0, apology answer).
type GenerationResult struct {
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Sources    []string       `json:"sources"`
	Reasoning  string         `json:"reasoning"`
	Domain     string         `json:"domain"`
	Metadata   map[string]any `json:"metadata"`
}
