package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/avikara/ragchain/config"
)

// ErrAPIKeyMissing marks a missing embedding credential. It is a
// configuration error: callers fail fast instead of retrying, and it is
// reported distinctly from an empty search result.
var ErrAPIKeyMissing = errors.New("embedding provider requires OPENAI_API_KEY")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewEmbedder constructs the configured embedding provider. The credential
// check happens here, when the operation needing embeddings begins, never
// as a hidden first-use side effect.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.EmbeddingProvider,
		Model:         cfg.EmbeddingModel,
		Dimension:     cfg.EmbeddingDimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, ErrAPIKeyMissing
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}
