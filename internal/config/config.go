// Package config resolves the settings the answer pipeline needs.
//
// Provider settings (API keys, index location) are looked up when a request
// runs, not when the process starts, so a missing credential only fails the
// request that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names for provider settings.
const (
	EnvEmbeddingAPIKey     = "OPENAI_API_KEY"
	EnvEmbeddingBaseURL    = "EMBEDDING_BASE_URL"
	EnvEmbeddingModel      = "EMBEDDING_MODEL"
	EnvEmbeddingDimensions = "EMBEDDING_DIMENSIONS"

	EnvVectorURL        = "UPSTASH_VECTOR_REST_URL"
	EnvVectorToken      = "UPSTASH_VECTOR_REST_TOKEN"
	EnvVectorBackend    = "VECTOR_BACKEND"
	EnvMilvusCollection = "MILVUS_COLLECTION"

	EnvChatAPIKey      = "GROQ_API_KEY"
	EnvChatBaseURL     = "CHAT_BASE_URL"
	EnvChatModel       = "CHAT_MODEL"
	EnvChatTemperature = "CHAT_TEMPERATURE"
	EnvChatMaxTokens   = "CHAT_MAX_TOKENS"

	EnvTopK            = "RAG_TOP_K"
	EnvMaxContextChars = "MAX_CONTEXT_CHARS"
)

// Vector index backends.
const (
	BackendUpstash = "upstash"
	BackendMilvus  = "milvus"
)

// Defaults applied when the optional variables are unset.
const (
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultChatBaseURL      = "https://api.groq.com/openai/v1"
	DefaultChatModel        = "llama-3.3-70b-versatile"
	DefaultChatTemperature  = 0.7
	DefaultChatMaxTokens    = 1000
	DefaultMilvusCollection = "twin_profile"
	DefaultTopK             = 3
	DefaultMaxContextChars  = 6000
)

// ConfigurationError reports a required setting that is not present.
// It names the variable and never carries its value.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Name)
}

// LookupFunc returns the value of a setting and whether it was set.
// os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// EmbeddingSettings configures the embedding provider.
type EmbeddingSettings struct {
	APIKey     string
	BaseURL    string // empty means the provider default
	Model      string
	Dimensions int // 0 means the model default
}

// VectorSettings configures the vector index.
type VectorSettings struct {
	Backend    string
	URL        string
	Token      string
	Collection string // milvus only
}

// ChatSettings configures the chat-completion provider.
type ChatSettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Settings is the per-request view of provider configuration.
type Settings struct {
	Embedding       EmbeddingSettings
	Vector          VectorSettings
	Chat            ChatSettings
	TopK            int
	MaxContextChars int
}

// Load reads provider settings through lookup. It never fails: required
// values are checked by RequireRetrieval and RequireChat.
func Load(lookup LookupFunc) Settings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	getInt := func(key string, def int) int {
		if v, err := strconv.Atoi(get(key, "")); err == nil {
			return v
		}
		return def
	}
	getFloat := func(key string, def float64) float64 {
		if v, err := strconv.ParseFloat(get(key, ""), 64); err == nil {
			return v
		}
		return def
	}

	return Settings{
		Embedding: EmbeddingSettings{
			APIKey:     get(EnvEmbeddingAPIKey, ""),
			BaseURL:    get(EnvEmbeddingBaseURL, ""),
			Model:      get(EnvEmbeddingModel, DefaultEmbeddingModel),
			Dimensions: getInt(EnvEmbeddingDimensions, 0),
		},
		Vector: VectorSettings{
			Backend:    strings.ToLower(get(EnvVectorBackend, BackendUpstash)),
			URL:        strings.TrimRight(get(EnvVectorURL, ""), "/"),
			Token:      get(EnvVectorToken, ""),
			Collection: get(EnvMilvusCollection, DefaultMilvusCollection),
		},
		Chat: ChatSettings{
			APIKey:      get(EnvChatAPIKey, ""),
			BaseURL:     get(EnvChatBaseURL, DefaultChatBaseURL),
			Model:       get(EnvChatModel, DefaultChatModel),
			Temperature: getFloat(EnvChatTemperature, DefaultChatTemperature),
			MaxTokens:   getInt(EnvChatMaxTokens, DefaultChatMaxTokens),
		},
		TopK:            getInt(EnvTopK, DefaultTopK),
		MaxContextChars: getInt(EnvMaxContextChars, DefaultMaxContextChars),
	}
}

// FromEnv loads settings from the process environment.
func FromEnv() Settings {
	return Load(os.LookupEnv)
}

// RequireRetrieval checks the settings needed to embed a query and search
// the vector index.
func (s Settings) RequireRetrieval() error {
	if s.Embedding.APIKey == "" {
		return &ConfigurationError{Name: EnvEmbeddingAPIKey}
	}
	if s.Vector.URL == "" {
		return &ConfigurationError{Name: EnvVectorURL}
	}
	// Milvus deployments without auth have no token.
	if s.Vector.Token == "" && s.Vector.Backend != BackendMilvus {
		return &ConfigurationError{Name: EnvVectorToken}
	}
	return nil
}

// RequireChat checks the settings needed to call the chat provider.
func (s Settings) RequireChat() error {
	if s.Chat.APIKey == "" {
		return &ConfigurationError{Name: EnvChatAPIKey}
	}
	return nil
}

// RequireAll checks every provider setting.
func (s Settings) RequireAll() error {
	if err := s.RequireRetrieval(); err != nil {
		return err
	}
	return s.RequireChat()
}
