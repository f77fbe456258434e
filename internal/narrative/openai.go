package narrative

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIChatModel implements ChatModel against any OpenAI-compatible chat
// completions endpoint.
type OpenAIChatModel struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAIChatModel creates a chat model client. Retries are disabled so
// provider failures reach the caller on the first attempt.
func NewOpenAIChatModel(config LLMConfig) (*OpenAIChatModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIChatModel{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

func (o *OpenAIChatModel) params(messages []Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: toOpenAIMessages(messages),
	}

	// Set optional parameters if configured
	if o.config.Temperature > 0 {
		params.Temperature = openai.Float(o.config.Temperature)
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}

	return params
}

// Complete sends the conversation and returns the first choice's text.
func (o *OpenAIChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: messages cannot be empty", ErrInvalidConfig)
	}

	completion, err := o.client.Chat.Completions.New(ctx, o.params(messages))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}

	return completion.Choices[0].Message.Content, nil
}

// Stream sends the conversation and forwards content deltas as they arrive.
func (o *OpenAIChatModel) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: messages cannot be empty", ErrInvalidConfig)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(messages))
	out := make(chan Fragment)

	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case out <- Fragment{Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- Fragment{Err: fmt.Errorf("%w: %w", ErrLLMFailed, err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
