// Package embedding provides text embedding providers and caching.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text. Implementations hold whatever
// resources the provider needs; Close releases them and must be called when
// the owning session ends. An Embedder is obtained explicitly via New — there
// is no lazy first-use loading.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider identifiers accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// Options configures New.
type Options struct {
	Provider   string
	URL        string
	Model      string
	Dimensions int
	CacheSize  int
}

// New creates an embedder for the configured provider, wrapped in an LRU
// cache when CacheSize is positive. Provider "none" returns a nil Embedder
// with no error; callers treat a nil embedder as "semantic search disabled".
func New(opts Options) (Embedder, error) {
	var e Embedder
	switch opts.Provider {
	case ProviderOllama, "":
		e = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    opts.URL,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
		})
	case ProviderMock:
		e = NewMockEmbedder(opts.Dimensions)
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: ollama, mock, none)", opts.Provider)
	}
	if opts.CacheSize > 0 {
		e = NewCachedEmbedder(e, opts.CacheSize)
	}
	return e, nil
}
