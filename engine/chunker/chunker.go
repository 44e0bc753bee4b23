// Package chunker splits extracted document text into overlapping passages.
// It accumulates sentence-like units greedily up to a rune budget and seeds
// each new chunk with the tail of the previous one so that statements spanning
// a boundary stay retrievable.
package chunker

import (
	"strings"

	"github.com/kpxlab/marketrag/engine/domain"
)

const (
	// DefaultChunkSize is the chunk budget in runes.
	DefaultChunkSize = 1000
	// DefaultOverlap is how many trailing runes of a closed chunk seed the
	// next one.
	DefaultOverlap = 200
)

// Options configures a Splitter.
type Options struct {
	ChunkSize int
	Overlap   int
}

// DefaultOptions returns the corpus defaults.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Splitter chunks documents with fixed parameters.
type Splitter struct {
	opts Options
}

// New creates a Splitter. Invalid parameters are rejected up front so the
// indexing pipeline never runs with a malformed budget.
func New(opts Options) (*Splitter, error) {
	if err := domain.ValidateChunking(opts.ChunkSize, opts.Overlap); err != nil {
		return nil, err
	}
	return &Splitter{opts: opts}, nil
}

// Split chunks a document's text. Empty or whitespace-only text yields nil.
// A single sentence longer than the chunk budget is emitted as its own
// oversized chunk rather than being cut mid-sentence; regulation clauses are
// dense and a truncated clause is worse than a long chunk.
func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	units := sentenceUnits(doc.Text)
	if len(units) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	var cur []rune
	seq := 0

	close := func() string {
		text := strings.TrimSpace(string(cur))
		if text != "" {
			chunks = append(chunks, domain.NewChunk(doc, text, seq))
			seq++
		}
		return text
	}

	for _, u := range units {
		ur := []rune(u)
		switch {
		case len(cur) == 0:
			cur = ur
		case len(cur)+1+len(ur) <= s.opts.ChunkSize:
			cur = append(cur, ' ')
			cur = append(cur, ur...)
		default:
			closed := close()
			seed := tail(closed, s.opts.Overlap)
			if seed == "" {
				cur = ur
			} else {
				cur = []rune(seed + " " + u)
			}
		}
	}
	close()

	return chunks
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
