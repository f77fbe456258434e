package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Generator invokes a chat model on an already-built prompt.
// It must not perform retrieval or prompt construction.
type Generator struct {
	model  ChatModel
	config LLMConfig
}

// NewGenerator creates a generator with the given chat model implementation.
func NewGenerator(model ChatModel, config LLMConfig) *Generator {
	return &Generator{
		model:  model,
		config: config,
	}
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.config.Model
}

// Generate returns the complete answer for messages.
func (g *Generator) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := g.validate(messages); err != nil {
		return "", err
	}

	text, err := g.model.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: LLM invocation failed: %w", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	return text, nil
}

// Stream forwards answer fragments in arrival order. Cancelling ctx closes
// the channel without an error fragment. A provider failure mid-stream is
// delivered as one fragment wrapping ErrGenerationFailed, then the channel
// closes.
func (g *Generator) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	if err := g.validate(messages); err != nil {
		return nil, err
	}

	upstream, err := g.model.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: LLM invocation failed: %w", ErrGenerationFailed, err)
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case frag, ok := <-upstream:
				if !ok {
					return
				}
				if frag.Err != nil {
					if ctx.Err() != nil {
						return
					}
					if !errors.Is(frag.Err, ErrGenerationFailed) {
						frag.Err = fmt.Errorf("%w: %w", ErrGenerationFailed, frag.Err)
					}
					select {
					case out <- frag:
					case <-ctx.Done():
					}
					return
				}

				select {
				case out <- frag:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (g *Generator) validate(messages []Message) error {
	if g.model == nil {
		return fmt.Errorf("%w: chat model is required", ErrGenerationFailed)
	}
	if len(messages) == 0 {
		return fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}
	return nil
}

// Collect drains a fragment channel into one string, stopping at the first
// error fragment.
func Collect(fragments <-chan Fragment) (string, error) {
	var b strings.Builder
	for frag := range fragments {
		if frag.Err != nil {
			return b.String(), frag.Err
		}
		b.WriteString(frag.Text)
	}
	return b.String(), nil
}
