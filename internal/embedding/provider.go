// Package embedding provides text embedding backends for semantic alignment
// scoring. Backends: Ollama (local) and Google GenAI (cloud).
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/attune/internal/config"
)

// Provider names accepted by config.EmbeddingProvider.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderGenAI  = "genai"
)

// Provider generates an embedding vector for a text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// HealthChecker is implemented by providers that can verify reachability
// without embedding anything.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New creates the provider selected by cfg. It returns (nil, nil) when
// semantic scoring is disabled.
func New(cfg *config.Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.OllamaToken), nil
	case ProviderGenAI:
		return NewGenAIProvider(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'genai' or 'none')", cfg.EmbeddingProvider)
	}
}
