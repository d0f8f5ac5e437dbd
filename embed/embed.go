// Package embed provides embedding clients for the dense index and the
// retriever. Providers speak either Ollama's native embedding API or the
// OpenAI-compatible /v1/embeddings endpoint, which covers most local and
// hosted servers.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding wraps every provider failure so callers can branch on the
// failure class without knowing which provider is configured.
var ErrEmbedding = errors.New("embed: embedding failed")

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dim is the output dimension the provider is configured for.
	Dim() int
}

// Config configures an embedding provider.
type Config struct {
	Provider string `json:"provider"` // ollama, openai
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	Dim      int    `json:"dim"`
}

// New creates an embedder from configuration.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return newOllama(cfg), nil
	case "openai":
		return newOpenAI(cfg), nil
	case "":
		return nil, fmt.Errorf("embedding provider not specified")
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
