package orchestrator

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/twin/internal/config"
	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/rag"
)

// Providers builds the external clients for one pipeline run. It is called
// only after the settings it receives have been validated.
type Providers interface {
	Embedder(s config.EmbeddingSettings) (rag.Embedder, error)
	Index(ctx context.Context, s config.VectorSettings) (rag.VectorIndex, error)
	ChatModel(s config.ChatSettings) (narrative.ChatModel, error)
}

type defaultProviders struct{}

// DefaultProviders returns the providers backed by the OpenAI-compatible
// embedding and chat APIs and the configured vector backend.
func DefaultProviders() Providers {
	return defaultProviders{}
}

func (defaultProviders) Embedder(s config.EmbeddingSettings) (rag.Embedder, error) {
	return rag.NewOpenAIEmbedder(rag.EmbedderConfig{
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		Model:      s.Model,
		Dimensions: s.Dimensions,
	})
}

func (defaultProviders) Index(ctx context.Context, s config.VectorSettings) (rag.VectorIndex, error) {
	switch s.Backend {
	case config.BackendUpstash, "":
		return rag.NewUpstashIndex(rag.UpstashConfig{
			URL:   s.URL,
			Token: s.Token,
		})
	case config.BackendMilvus:
		cfg := rag.DefaultMilvusConfig()
		cfg.Address = s.URL
		cfg.APIKey = s.Token
		cfg.CollectionName = s.Collection
		return rag.NewMilvusStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported vector backend %q (supported: %s, %s)",
			s.Backend, config.BackendUpstash, config.BackendMilvus)
	}
}

func (defaultProviders) ChatModel(s config.ChatSettings) (narrative.ChatModel, error) {
	return narrative.NewOpenAIChatModel(llmConfig(s))
}

func llmConfig(s config.ChatSettings) narrative.LLMConfig {
	return narrative.LLMConfig{
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		APIKey:      s.APIKey,
		BaseURL:     s.BaseURL,
	}
}
