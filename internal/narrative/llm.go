// Package narrative turns retrieved profile context into answers. It defines
// the chat message model, a provider-agnostic chat model interface with an
// OpenAI-compatible implementation and a deterministic mock, the prompt
// builder, and the generator that drives buffered or streamed completion.
package narrative

import (
	"context"
	"errors"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// Message roles understood by chat providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Fragment is one piece of a streamed answer. A fragment with Err set is
// the last value sent on its channel.
type Fragment struct {
	Text string
	Err  error
}

// ChatModel defines the interface for interacting with chat language models.
// Implementations must be safe for concurrent use.
type ChatModel interface {
	// Complete returns the full text of the first choice.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream returns fragments in arrival order. The channel is closed when
	// the answer ends, the provider fails, or ctx is cancelled.
	Stream(ctx context.Context, messages []Message) (<-chan Fragment, error)
}

// LLMConfig holds common configuration options for chat providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "llama-3.3-70b-versatile")
	Model string

	// Temperature controls randomness (0 = provider default)
	Temperature float64

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL points the client at an OpenAI-compatible endpoint
	BaseURL string
}
