// Package ingest is the indexing pipeline: validation, chunking, batch
// embedding, and storage into the vector index, the chunk catalog, and the
// cross-reference graph.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kpxlab/marketrag/engine/chunker"
	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/semantic"
	"github.com/kpxlab/marketrag/pkg/fn"
)

const (
	// EmbedBatchSize bounds chunks per embedding request.
	EmbedBatchSize = 32
)

// Embedder is the embedding capability the pipeline consumes.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
	ModelID() string
}

// VectorWriter is the write side of the vector index.
type VectorWriter interface {
	Upsert(ctx context.Context, records []semantic.Record) error
	DeleteByDoc(ctx context.Context, docID string) error
}

// ChunkWriter is the write side of the chunk catalog.
type ChunkWriter interface {
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error
	HasDocument(ctx context.Context, docID string) (bool, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// GraphWriter maintains the provision cross-reference graph.
type GraphWriter interface {
	SaveDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error
	SaveReferences(ctx context.Context, chunks []domain.Chunk) (int, error)
}

// Deps holds the pipeline's external dependencies. Graph may be nil; the
// cross-reference graph is an enrichment, not a required store.
type Deps struct {
	Splitter *chunker.Splitter
	Embedder Embedder
	Vectors  VectorWriter
	Catalog  ChunkWriter
	Graph    GraphWriter
	Logger   *slog.Logger
}

// Validate rejects documents that fail domain validation.
var Validate fn.Stage[Job, Job] = func(_ context.Context, job Job) fn.Result[Job] {
	if err := domain.ValidateDocument(job.Doc); err != nil {
		return fn.Err[Job](err)
	}
	return fn.Ok(job)
}

// NewChunk creates the chunking stage.
func NewChunk(splitter *chunker.Splitter) fn.Stage[Job, ChunkedDoc] {
	return func(_ context.Context, job Job) fn.Result[ChunkedDoc] {
		return fn.Ok(ChunkedDoc{Doc: job.Doc, Chunks: splitter.Split(job.Doc)})
	}
}

// NewEmbed creates the embedding stage. Chunks go to the embedder in fixed
// batches; every returned vector must match the declared dimension.
func NewEmbed(embedder Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		embedded := make([]domain.EmbeddedChunk, 0, len(doc.Chunks))
		for _, batch := range fn.Chunk(doc.Chunks, EmbedBatchSize) {
			texts := fn.Map(batch, func(c domain.Chunk) string { return c.Text })
			vecs, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: embed batch: %w", err))
			}
			if len(vecs) != len(batch) {
				return fn.Errf[EmbeddedDoc]("ingest: embed batch: %d vectors for %d chunks", len(vecs), len(batch))
			}
			for i, vec := range vecs {
				if len(vec) != embedder.Dims() {
					return fn.Err[EmbeddedDoc](fmt.Errorf("ingest: chunk %s: %w: got %d, want %d",
						batch[i].ID, domain.ErrDimensionMismatch, len(vec), embedder.Dims()))
				}
				embedded = append(embedded, domain.EmbeddedChunk{
					Chunk:     batch[i],
					Embedding: vec,
					ModelID:   embedder.ModelID(),
				})
			}
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embedded: embedded})
	}
}

// NewStore creates the storage stage. The catalog and vector index are
// required; graph failures are logged and skipped so the corpus stays
// searchable even when Neo4j is down.
func NewStore(vectors VectorWriter, catalog ChunkWriter, graph GraphWriter, log *slog.Logger) fn.Stage[EmbeddedDoc, Stored] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Stored] {
		if err := catalog.SaveChunks(ctx, doc.Chunks); err != nil {
			return fn.Err[Stored](fmt.Errorf("ingest: catalog save: %w", err))
		}

		records := fn.Map(doc.Embedded, semantic.RecordFromChunk)
		if err := vectors.Upsert(ctx, records); err != nil {
			return fn.Err[Stored](fmt.Errorf("ingest: vector upsert: %w", err))
		}

		if graph != nil {
			if err := graph.SaveDocument(ctx, doc.Doc, doc.Chunks); err != nil {
				log.Warn("ingest: graph save skipped", "doc_id", doc.Doc.ID, "error", err)
			} else if edges, err := graph.SaveReferences(ctx, doc.Chunks); err != nil {
				log.Warn("ingest: reference extraction incomplete", "doc_id", doc.Doc.ID, "edges", edges, "error", err)
			}
		}

		return fn.Ok(Stored{DocID: doc.Doc.ID, Chunks: len(doc.Chunks)})
	}
}

// LoggedTap logs stage entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline wires validate, chunk, embed, and store into one traced stage.
func NewPipeline(deps Deps) fn.Stage[Job, Stored] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(LoggedTap[Job]("validate", log), Validate)
	chunked := fn.Then(validated, fn.Then(LoggedTap[Job]("chunk", log), NewChunk(deps.Splitter)))
	embedded := fn.Then(chunked, fn.Then(LoggedTap[ChunkedDoc]("embed", log), NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, fn.Then(LoggedTap[EmbeddedDoc]("store", log), NewStore(deps.Vectors, deps.Catalog, deps.Graph, log)))

	return fn.TracedStage("ingest.pipeline", stored)
}

// Run indexes one job, replacing any previous version of the document when
// requested, and skipping documents that are already indexed otherwise.
func Run(ctx context.Context, deps Deps, job Job) (Stored, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	exists, err := deps.Catalog.HasDocument(ctx, job.Doc.ID)
	if err != nil {
		log.Warn("ingest: dedup check failed", "doc_id", job.Doc.ID, "error", err)
	} else if exists {
		if !job.Replace {
			log.Info("ingest: skipping duplicate", "doc_id", job.Doc.ID)
			return Stored{DocID: job.Doc.ID}, nil
		}
		if err := deps.Vectors.DeleteByDoc(ctx, job.Doc.ID); err != nil {
			return Stored{}, fmt.Errorf("ingest: delete old vectors: %w", err)
		}
		if err := deps.Catalog.DeleteDocument(ctx, job.Doc.ID); err != nil {
			return Stored{}, fmt.Errorf("ingest: delete old chunks: %w", err)
		}
	}

	result := NewPipeline(deps)(ctx, job)
	stored, err := result.Unwrap()
	if err != nil {
		return Stored{}, err
	}
	return stored, nil
}
