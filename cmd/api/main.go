// Package main implements the marketrag API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kpxlab/marketrag/engine/answer"
	"github.com/kpxlab/marketrag/engine/catalog"
	"github.com/kpxlab/marketrag/engine/chunker"
	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ingest"
	"github.com/kpxlab/marketrag/engine/rag"
	"github.com/kpxlab/marketrag/engine/retrieve"
	"github.com/kpxlab/marketrag/engine/ruleset"
	"github.com/kpxlab/marketrag/engine/semantic"
	"github.com/kpxlab/marketrag/engine/xref"
	"github.com/kpxlab/marketrag/pkg/metrics"
	"github.com/kpxlab/marketrag/pkg/mid"
	"github.com/kpxlab/marketrag/pkg/ollama"
	"github.com/kpxlab/marketrag/pkg/openaiembed"
	"github.com/kpxlab/marketrag/pkg/resilience"
	"github.com/nats-io/nats.go"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	Provider    string
	OpenAIKey   string
	OpenAIBase  string
	OllamaURL   string
	EmbedModel  string
	EmbedDims   int
	EmbedRPS    float64
	QdrantURL   string
	Collection  string
	CatalogPath string
	RulesetPath string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	NATSUrl     string
	CORSOrigin  string
	ChunkSize   int
	Overlap     int
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Provider:    envOr("EMBED_PROVIDER", "ollama"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:  os.Getenv("OPENAI_BASE_URL"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("EMBED_MODEL", "nomic-embed-text"),
		EmbedDims:   envIntOr("EMBED_DIMS", 768),
		EmbedRPS:    envFloatOr("EMBED_RPS", 0),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "marketrag"),
		CatalogPath: envOr("CATALOG_PATH", "marketrag.db"),
		RulesetPath: envOr("RULESET_PATH", "config/ruleset.yaml"),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		NATSUrl:     os.Getenv("NATS_URL"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		ChunkSize:   envIntOr("CHUNK_SIZE", 1000),
		Overlap:     envIntOr("CHUNK_OVERLAP", 200),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	rules, err := ruleset.Load(cfg.RulesetPath)
	if err != nil {
		return fmt.Errorf("load ruleset: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	guarded := &guardedEmbedder{
		inner:   embedder,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}

	vectors, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectors.Close()
	if err := vectors.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	var graph *xref.Graph
	if cfg.Neo4jURL != "" {
		graph, err = xref.NewGraph(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass, "")
		if err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		defer graph.Close(ctx)
	}

	splitter, err := chunker.New(chunker.Options{ChunkSize: cfg.ChunkSize, Overlap: cfg.Overlap})
	if err != nil {
		return fmt.Errorf("chunker: %w", err)
	}

	retriever := retrieve.New(guarded, vectors, cat, rules, retrieve.DefaultOptions(), logger)
	synth := answer.NewSynthesizer(rules, logger)

	ingestDeps := ingest.Deps{
		Splitter: splitter,
		Embedder: guarded,
		Vectors:  vectors,
		Catalog:  cat,
		Logger:   logger,
	}
	var enricher rag.Enricher
	if graph != nil {
		ingestDeps.Graph = graph
		enricher = graph
	}

	svc := rag.New(retriever, synth, enricher, ingestDeps, rag.DefaultOptions(), logger)

	if cfg.NATSUrl != "" {
		nc, err := nats.Connect(cfg.NATSUrl)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sub, err := ingest.StartConsumer(nc, ingestDeps)
		if err != nil {
			return fmt.Errorf("start ingest consumer: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("ingest consumer started", "subject", ingest.Subject)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(svc, reg, logger))
	mux.HandleFunc("POST /api/search", handleSearch(retriever, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("marketrag-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// embedClient is what the pipeline needs from an embedding backend.
type embedClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
	ModelID() string
}

func newEmbedder(cfg Config) (embedClient, error) {
	switch cfg.Provider {
	case "openai":
		return openaiembed.New(cfg.OpenAIKey, cfg.OpenAIBase, cfg.EmbedModel, cfg.EmbedDims)
	case "ollama":
		return ollama.New(ollama.Options{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.EmbedModel,
			Dims:    cfg.EmbedDims,
			RPS:     cfg.EmbedRPS,
		})
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.Provider)
	}
}

// guardedEmbedder runs embedding calls through a circuit breaker so a dead
// model server fails fast instead of stalling every request.
type guardedEmbedder struct {
	inner   embedClient
	breaker *resilience.Breaker
}

func (g *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (g *guardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (g *guardedEmbedder) Dims() int       { return g.inner.Dims() }
func (g *guardedEmbedder) ModelID() string { return g.inner.ModelID() }

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
	Method   string `json:"method,omitempty"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Domain     string   `json:"domain"`
}

func handleAsk(svc *rag.Service, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	asks := reg.Counter("ask_total", "Questions received.")
	failures := reg.Counter("ask_failures_total", "Questions that failed retrieval.")
	latency := reg.Histogram("ask_seconds", "Ask end-to-end latency.", nil)

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		asks.Inc()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		method := domain.SearchMethod(req.Method)
		if req.Method == "" {
			method = domain.SearchSmart
		}
		if !domain.ValidSearchMethods[method] {
			http.Error(w, `{"error":"unknown search method"}`, http.StatusBadRequest)
			return
		}

		result, err := svc.Ask(r.Context(), req.Question, method)
		if err != nil {
			failures.Inc()
			logger.Error("ask failed", "err", err)
			http.Error(w, `{"error":"retrieval unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		latency.Since(start)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{
			Answer:     result.Answer,
			Confidence: result.Confidence,
			Sources:    result.Sources,
			Domain:     result.Domain,
		})
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
	Method string `json:"method,omitempty"`
}

func handleSearch(retriever *retrieve.Retriever, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		method := domain.SearchMethod(req.Method)
		if req.Method == "" {
			method = domain.SearchHybrid
		}
		if !domain.ValidSearchMethods[method] {
			http.Error(w, `{"error":"unknown search method"}`, http.StatusBadRequest)
			return
		}

		results, err := retriever.Search(r.Context(), req.Query, req.TopK, method)
		if err != nil {
			logger.Error("search failed", "err", err)
			http.Error(w, `{"error":"retrieval unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": results, "count": len(results)})
	}
}
