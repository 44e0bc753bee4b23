// Package ollama provides an Ollama-backed embedder over its HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Embedder calls Ollama's embeddings endpoint. It is deterministic for a
// fixed model and returns a zero vector of the declared dimension for
// empty or whitespace-only input.
type Embedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	limiter *rate.Limiter
}

// Options configure the Ollama embedder.
type Options struct {
	BaseURL string
	Model   string
	// Dims is the declared embedding dimension of the model.
	Dims int
	// RPS throttles requests to the Ollama server; 0 disables throttling.
	RPS float64
	// Client overrides the HTTP client; nil uses http.DefaultClient.
	Client *http.Client
}

// New creates an Ollama embedder.
func New(opts Options) (*Embedder, error) {
	if opts.BaseURL == "" || opts.Model == "" {
		return nil, fmt.Errorf("ollama: base URL and model are required")
	}
	if opts.Dims <= 0 {
		return nil, fmt.Errorf("ollama: declared dimension must be positive, got %d", opts.Dims)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Embedder{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		dims:    opts.Dims,
		client:  client,
		limiter: limiter,
	}, nil
}

// Dims returns the declared embedding dimension.
func (e *Embedder) Dims() int { return e.dims }

// ModelID identifies the backing model.
func (e *Embedder) ModelID() string { return e.model }

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ollama: rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(embedReq{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if len(result.Embedding) != e.dims {
		return nil, fmt.Errorf("ollama: model returned %d dims, declared %d", len(result.Embedding), e.dims)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds texts sequentially, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama: batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
