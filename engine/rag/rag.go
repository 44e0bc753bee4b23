// Package rag is the question-answering facade: retrieval, context
// assembly, synthesis, and cross-reference enrichment behind two entry
// points, Ask and IndexDocuments.
package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kpxlab/marketrag/engine/answer"
	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ingest"
)

// Searcher is the retrieval capability the service consumes.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, method domain.SearchMethod) ([]domain.SearchResult, error)
}

// Enricher surfaces provisions related to the assembled context.
type Enricher interface {
	RelatedProvisions(ctx context.Context, text string, limit int) ([]string, error)
}

// Options tune the service.
type Options struct {
	// TopK results fetched per question.
	TopK int
	// MaxContextChars bounds the assembled context, in runes.
	MaxContextChars int
	// RelatedLimit bounds the enrichment list.
	RelatedLimit int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		MaxContextChars: answer.DefaultMaxChars,
		RelatedLimit:    5,
	}
}

// Service answers questions over the indexed corpus.
type Service struct {
	search Searcher
	synth  *answer.Synthesizer
	enrich Enricher
	ingest ingest.Deps
	opts   Options
	logger *slog.Logger
}

// New builds a Service. enrich may be nil to disable cross-reference
// enrichment.
func New(search Searcher, synth *answer.Synthesizer, enrich Enricher, ingestDeps ingest.Deps, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = def.MaxContextChars
	}
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = def.RelatedLimit
	}
	return &Service{
		search: search,
		synth:  synth,
		enrich: enrich,
		ingest: ingestDeps,
		opts:   opts,
		logger: logger,
	}
}

// Ask answers one question. The only error path is retrieval failure; an
// empty corpus or an unanswerable question still yields a well-formed
// result with confidence 0.
func (s *Service) Ask(ctx context.Context, question string, method domain.SearchMethod) (*domain.GenerationResult, error) {
	results, err := s.search.Search(ctx, question, s.opts.TopK, method)
	if err != nil {
		return nil, err
	}

	assembled := answer.Build(results, s.opts.MaxContextChars)
	result := s.synth.Synthesize(question, assembled)

	if s.enrich != nil && assembled.Blocks > 0 {
		related, err := s.enrich.RelatedProvisions(ctx, assembled.Text, s.opts.RelatedLimit)
		if err != nil {
			s.logger.Warn("rag: enrichment skipped", "error", err)
		} else if len(related) > 0 {
			result.Answer += "\n\n관련 조항: " + strings.Join(related, ", ")
			result.Metadata["related_provisions"] = related
		}
	}

	s.logger.Info("rag: answered",
		"method", string(method),
		"domain", result.Domain,
		"confidence", result.Confidence,
		"blocks", assembled.Blocks,
	)
	return &result, nil
}

// IndexDocuments runs each document through the indexing pipeline and
// returns the total number of chunks indexed. One bad document does not
// abort the batch; its error is logged and the rest proceed.
func (s *Service) IndexDocuments(ctx context.Context, docs []domain.Document) (int, error) {
	var total int
	var firstErr error
	for _, doc := range docs {
		stored, err := ingest.Run(ctx, s.ingest, ingest.Job{Doc: doc})
		if err != nil {
			s.logger.Error("rag: index failed", "doc_id", doc.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += stored.Chunks
	}
	if total == 0 && firstErr != nil {
		return 0, firstErr
	}
	return total, nil
}
