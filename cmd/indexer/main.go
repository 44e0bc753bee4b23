// Package main implements the corpus indexer. It walks a directory of
// regulation documents, extracts their text, and either publishes indexing
// jobs to NATS or runs the pipeline in-process with -direct.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/kpxlab/marketrag/engine/catalog"
	"github.com/kpxlab/marketrag/engine/chunker"
	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ingest"
	"github.com/kpxlab/marketrag/engine/ruleset"
	"github.com/kpxlab/marketrag/engine/semantic"
	"github.com/kpxlab/marketrag/engine/xref"
	"github.com/kpxlab/marketrag/pkg/extract"
	"github.com/kpxlab/marketrag/pkg/natsutil"
	"github.com/kpxlab/marketrag/pkg/ollama"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "documents", "directory of documents to index")
	direct := flag.Bool("direct", false, "run the pipeline in-process instead of publishing to NATS")
	replace := flag.Bool("replace", false, "re-index documents that are already stored")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*dir, *direct, *replace, logger); err != nil {
		logger.Error("indexer failed", "err", err)
		os.Exit(1)
	}
}

func run(dir string, direct, replace bool, logger *slog.Logger) error {
	docs, err := loadDocuments(dir, logger)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		logger.Warn("no documents found", "dir", dir)
		return nil
	}

	rules, err := ruleset.Load(envOr("RULESET_PATH", "config/ruleset.yaml"))
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}
	// Tag each document with its detected domain so smart search can
	// filter on it later.
	for i := range docs {
		if d, ok := rules.DetectDomain(docs[i].Text); ok {
			docs[i].Category = d.Name
		}
	}

	if direct {
		return runDirect(docs, replace, logger)
	}
	return publishJobs(docs, replace, logger)
}

func loadDocuments(dir string, logger *slog.Logger) ([]domain.Document, error) {
	var docs []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if _, err := extract.TypeOf(path); err != nil {
			logger.Debug("skipping file", "path", path)
			return nil
		}
		doc, err := extract.File(path)
		if err != nil {
			logger.Warn("extraction failed", "path", path, "err", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return docs, nil
}

func publishJobs(docs []domain.Document, replace bool, logger *slog.Logger) error {
	nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	ctx := context.Background()
	for _, doc := range docs {
		if err := natsutil.Publish(ctx, nc, ingest.Subject, ingest.Job{Doc: doc, Replace: replace}); err != nil {
			return fmt.Errorf("publish %s: %w", doc.ID, err)
		}
		logger.Info("job published", "doc_id", doc.ID)
	}
	return nc.Flush()
}

func runDirect(docs []domain.Document, replace bool, logger *slog.Logger) error {
	ctx := context.Background()

	embedder, err := ollama.New(ollama.Options{
		BaseURL: envOr("OLLAMA_URL", "http://localhost:11434"),
		Model:   envOr("EMBED_MODEL", "nomic-embed-text"),
		Dims:    envIntOr("EMBED_DIMS", 768),
	})
	if err != nil {
		return fmt.Errorf("ollama embedder: %w", err)
	}

	vectors, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"), envOr("QDRANT_COLLECTION", "marketrag"))
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx, embedder.Dims()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	cat, err := catalog.Open(envOr("CATALOG_PATH", "marketrag.db"))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	splitter, err := chunker.New(chunker.Options{
		ChunkSize: envIntOr("CHUNK_SIZE", 1000),
		Overlap:   envIntOr("CHUNK_OVERLAP", 200),
	})
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}

	deps := ingest.Deps{
		Splitter: splitter,
		Embedder: embedder,
		Vectors:  vectors,
		Catalog:  cat,
		Logger:   logger,
	}
	if url := os.Getenv("NEO4J_URL"); url != "" {
		graph, err := xref.NewGraph(url, envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), "")
		if err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		defer graph.Close(ctx)
		deps.Graph = graph
	}

	var total int
	for _, doc := range docs {
		stored, err := ingest.Run(ctx, deps, ingest.Job{Doc: doc, Replace: replace})
		if err != nil {
			logger.Error("indexing failed", "doc_id", doc.ID, "err", err)
			continue
		}
		total += stored.Chunks
		logger.Info("indexed", "doc_id", stored.DocID, "chunks", stored.Chunks)
	}
	logger.Info("indexing complete", "documents", len(docs), "chunks", total)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
