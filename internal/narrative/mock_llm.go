package narrative

import (
	"context"
	"strings"
)

// MockChatModel is a deterministic ChatModel implementation for testing.
type MockChatModel struct {
	// Response is the fixed text returned by Complete and streamed by Stream.
	// If empty, a default response is generated from the messages.
	Response string

	// Fragments, if set, are streamed in order instead of Response.
	Fragments []string

	// Error, if set, is returned by Complete and Stream instead of a response.
	Error error

	// StreamError, if set, is sent as the final fragment after the text.
	StreamError error

	// LastMessages stores the most recent messages passed to the model.
	LastMessages []Message

	// Calls counts invocations of Complete and Stream.
	Calls int
}

// NewMockChatModel creates a mock chat model with the given fixed response.
func NewMockChatModel(response string) *MockChatModel {
	return &MockChatModel{Response: response}
}

// NewMockChatModelWithError creates a mock chat model that always returns an error.
func NewMockChatModelWithError(err error) *MockChatModel {
	return &MockChatModel{Error: err}
}

// Complete returns the configured response or generates a deterministic one.
func (m *MockChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	m.record(messages)

	if m.Error != nil {
		return "", m.Error
	}

	return m.text(messages), nil
}

// Stream sends the configured fragments on a buffered channel.
func (m *MockChatModel) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	m.record(messages)

	if m.Error != nil {
		return nil, m.Error
	}

	parts := m.Fragments
	if len(parts) == 0 {
		parts = strings.SplitAfter(m.text(messages), " ")
	}

	out := make(chan Fragment, len(parts)+1)
	for _, p := range parts {
		out <- Fragment{Text: p}
	}
	if m.StreamError != nil {
		out <- Fragment{Err: m.StreamError}
	}
	close(out)

	return out, nil
}

func (m *MockChatModel) record(messages []Message) {
	m.Calls++
	m.LastMessages = append([]Message(nil), messages...)
}

func (m *MockChatModel) text(messages []Message) string {
	if m.Response != "" {
		return m.Response
	}
	return generateMockResponse(messages)
}

// generateMockResponse echoes the latest user message.
func generateMockResponse(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "You asked: " + messages[i].Content
		}
	}
	return "Hello from your digital twin."
}
