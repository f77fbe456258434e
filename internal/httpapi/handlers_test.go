package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Yates-Labs/twin/internal/config"
	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/orchestrator"
	"github.com/Yates-Labs/twin/internal/rag"
)

// MockPipeline is a mock implementation of Pipeline
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Answer(ctx context.Context, query string, k int) (string, error) {
	args := m.Called(ctx, query, k)
	return args.String(0), args.Error(1)
}

func (m *MockPipeline) AnswerStream(ctx context.Context, conversation []narrative.Message) (<-chan narrative.Fragment, error) {
	args := m.Called(ctx, conversation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan narrative.Fragment), args.Error(1)
}

func fragments(parts []string, err error) <-chan narrative.Fragment {
	ch := make(chan narrative.Fragment, len(parts)+1)
	for _, p := range parts {
		ch <- narrative.Fragment{Text: p}
	}
	if err != nil {
		ch <- narrative.Fragment{Err: err}
	}
	close(ch)
	return ch
}

func newTestRouter(p Pipeline, production bool) http.Handler {
	return NewRouter(RouterConfig{
		Pipeline:   p,
		Logger:     zap.NewNop(),
		Production: production,
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRPC(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp["jsonrpc"])
	return resp
}

func rpcErrorCode(t *testing.T, resp map[string]any) float64 {
	t.Helper()
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok, "expected error object, got %v", resp)
	return errObj["code"].(float64)
}

// sseEvents returns the data payloads of a UI message stream body.
func sseEvents(t *testing.T, body []byte) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func eventTypes(t *testing.T, events []string) []string {
	t.Helper()
	types := make([]string, 0, len(events))
	for _, e := range events {
		if e == "[DONE]" {
			types = append(types, e)
			continue
		}
		var ev uiEvent
		require.NoError(t, json.Unmarshal([]byte(e), &ev))
		types = append(types, ev.Type)
	}
	return types
}

func TestHandleRPC(t *testing.T) {
	t.Run("unknown method", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeRPC(t, rec)
		assert.Equal(t, float64(1), resp["id"])
		assert.Equal(t, float64(CodeMethodNotFound), rpcErrorCode(t, resp))
		p.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed JSON includes body outside production", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", `{"jsonrpc":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeRPC(t, rec)
		assert.Nil(t, resp["id"])
		assert.Equal(t, float64(CodeParseError), rpcErrorCode(t, resp))

		data := resp["error"].(map[string]any)["data"].(map[string]any)
		assert.Equal(t, `{"jsonrpc":`, data["body"])
		assert.NotEmpty(t, data["error"])
	})

	t.Run("malformed JSON omits body in production", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, true), http.MethodPost, "/api/mcp", `not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeRPC(t, rec)
		assert.Equal(t, float64(CodeParseError), rpcErrorCode(t, resp))
		_, hasData := resp["error"].(map[string]any)["data"]
		assert.False(t, hasData)
	})

	t.Run("invalid version", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", `{"jsonrpc":"1.0","id":"a","method":"chat"}`)

		resp := decodeRPC(t, rec)
		assert.Equal(t, "a", resp["id"])
		assert.Equal(t, float64(CodeInvalidRequest), rpcErrorCode(t, resp))
	})

	invalidParams := []struct {
		name string
		body string
	}{
		{"empty question", `{"jsonrpc":"2.0","id":2,"method":"chat","params":{"question":""}}`},
		{"whitespace question", `{"jsonrpc":"2.0","id":2,"method":"chat","params":{"question":"   "}}`},
		{"missing params", `{"jsonrpc":"2.0","id":2,"method":"chat"}`},
		{"wrong type", `{"jsonrpc":"2.0","id":2,"method":"chat","params":{"question":42}}`},
	}
	for _, tt := range invalidParams {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPipeline)
			rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			resp := decodeRPC(t, rec)
			assert.Equal(t, float64(CodeInvalidParams), rpcErrorCode(t, resp))
			p.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("success", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, "What is your experience with distributed systems?", 5).
			Return("Five years of backend work.", nil)

		body := `{"jsonrpc":"2.0","id":"req-1","method":"chat","params":{"question":"What is your experience with distributed systems?","topK":5}}`
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeRPC(t, rec)
		assert.Equal(t, "req-1", resp["id"])
		assert.Nil(t, resp["error"])
		assert.Equal(t, "Five years of backend work.", resp["result"].(map[string]any)["answer"])
		p.AssertExpectations(t)
	})

	t.Run("topK omitted", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, "hi", 0).Return("hello", nil)

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", `{"jsonrpc":"2.0","id":3,"method":"chat","params":{"question":"hi"}}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		pipelineErr := &orchestrator.PipelineError{
			Stage: orchestrator.StageRetrieve,
			Err:   fmt.Errorf("%w: upstream timeout", rag.ErrRetrievalFailed),
		}
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, "hi", 0).Return("", pipelineErr)

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/mcp", `{"jsonrpc":"2.0","id":4,"method":"chat","params":{"question":"hi"}}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeRPC(t, rec)
		assert.Equal(t, float64(CodeInternalError), rpcErrorCode(t, resp))
		data := resp["error"].(map[string]any)["data"].(map[string]any)
		assert.Contains(t, data["message"], "upstream timeout")
		assert.Equal(t, "retrieve", data["stage"])
		assert.NotEmpty(t, data["stack"])
	})

	t.Run("pipeline failure hides stack in production", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, "hi", 0).Return("", &orchestrator.PipelineError{
			Stage: orchestrator.StageConfig,
			Err:   &config.ConfigurationError{Name: config.EnvChatAPIKey},
		})

		rec := doRequest(t, newTestRouter(p, true), http.MethodPost, "/api/mcp", `{"jsonrpc":"2.0","id":4,"method":"chat","params":{"question":"hi"}}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeRPC(t, rec)
		data := resp["error"].(map[string]any)["data"].(map[string]any)
		assert.Contains(t, data["message"], config.EnvChatAPIKey)
		_, hasStack := data["stack"]
		assert.False(t, hasStack)
	})
}

func TestHandleInfo(t *testing.T) {
	p := new(MockPipeline)
	rec := doRequest(t, newTestRouter(p, false), http.MethodGet, "/api/mcp", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chat"`)
	p.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
	p.AssertNotCalled(t, "AnswerStream", mock.Anything, mock.Anything)
}

func TestHealthCheck(t *testing.T) {
	rec := doRequest(t, newTestRouter(new(MockPipeline), false), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleChat(t *testing.T) {
	chatBody := `{"messages":[
		{"id":"m1","role":"user","parts":[{"type":"text","text":"Hi"}]},
		{"id":"m2","role":"assistant","parts":[{"type":"text","text":"Hello!"}]},
		{"id":"m3","role":"user","parts":[{"type":"text","text":"What do you "},{"type":"text","text":"build?"}]}
	]}`

	t.Run("streams answer", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("AnswerStream", mock.Anything, mock.MatchedBy(func(conv []narrative.Message) bool {
			return len(conv) == 3 &&
				conv[1].Role == narrative.RoleAssistant &&
				conv[2].Content == "What do you build?"
		})).Return(fragments([]string{"I build ", "backends."}, nil), nil)

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", chatBody)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "v1", rec.Header().Get(uiStreamHeader))

		events := sseEvents(t, rec.Body.Bytes())
		assert.Equal(t, []string{
			"start", "start-step", "text-start",
			"text-delta", "text-delta",
			"text-end", "finish-step", "finish", "[DONE]",
		}, eventTypes(t, events))

		var delta uiEvent
		require.NoError(t, json.Unmarshal([]byte(events[3]), &delta))
		assert.Equal(t, "I build ", delta.Delta)
		assert.NotEmpty(t, delta.ID)
		p.AssertExpectations(t)
	})

	t.Run("content string accepted", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("AnswerStream", mock.Anything, mock.MatchedBy(func(conv []narrative.Message) bool {
			return len(conv) == 1 && conv[0].Content == "Hello"
		})).Return(fragments([]string{"Hi"}, nil), nil)

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"Hello"}]}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		p.AssertExpectations(t)
	})

	t.Run("mid-stream failure", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("AnswerStream", mock.Anything, mock.Anything).
			Return(fragments([]string{"Partial"}, fmt.Errorf("%w: reset", narrative.ErrGenerationFailed)), nil)

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", chatBody)

		types := eventTypes(t, sseEvents(t, rec.Body.Bytes()))
		assert.Equal(t, []string{"start", "start-step", "text-start", "text-delta", "error"}, types)
		assert.NotContains(t, types, "finish")
	})

	t.Run("malformed body", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", `{"messages":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		p.AssertNotCalled(t, "AnswerStream", mock.Anything, mock.Anything)
	})

	t.Run("invalid role", func(t *testing.T) {
		p := new(MockPipeline)
		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", `{"messages":[{"role":"tool","content":"x"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "role")
	})

	t.Run("no user message", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("AnswerStream", mock.Anything, mock.Anything).Return(nil, &orchestrator.PipelineError{
			Stage: orchestrator.StageValidate,
			Err:   orchestrator.ErrNoUserMessage,
		})

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", `{"messages":[{"role":"assistant","content":"Hi"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing chat configuration", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("AnswerStream", mock.Anything, mock.Anything).Return(nil, &orchestrator.PipelineError{
			Stage: orchestrator.StageConfig,
			Err:   &config.ConfigurationError{Name: config.EnvChatAPIKey},
		})

		rec := doRequest(t, newTestRouter(p, false), http.MethodPost, "/api/chat", chatBody)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "configuration_error", resp.Error)
		assert.Contains(t, resp.Message, config.EnvChatAPIKey)
	})
}

// failingIndex always fails to query.
type failingIndex struct{}

func (failingIndex) Query(ctx context.Context, vector []float32, topK int) ([]rag.Match, error) {
	return nil, errors.New("index unavailable")
}
func (failingIndex) Upsert(ctx context.Context, records []rag.Record) error { return nil }
func (failingIndex) Close() error                                           { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([]rag.EmbeddingRecord, error) {
	return []rag.EmbeddingRecord{{Text: texts[0], Embedding: []float32{1, 0}, Index: 0}}, nil
}
func (stubEmbedder) GetModel() string { return "stub" }

type degradedProviders struct {
	chat *narrative.MockChatModel
}

func (degradedProviders) Embedder(config.EmbeddingSettings) (rag.Embedder, error) {
	return stubEmbedder{}, nil
}
func (degradedProviders) Index(context.Context, config.VectorSettings) (rag.VectorIndex, error) {
	return failingIndex{}, nil
}
func (d degradedProviders) ChatModel(config.ChatSettings) (narrative.ChatModel, error) {
	return d.chat, nil
}

func TestHandleChat_ClientAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := make(chan narrative.Fragment)
	go func() {
		stream <- narrative.Fragment{Text: "Partial"}
		cancel()
		close(stream)
	}()

	p := new(MockPipeline)
	p.On("AnswerStream", mock.Anything, mock.Anything).Return((<-chan narrative.Fragment)(stream), nil)

	core, logs := observer.New(zapcore.InfoLevel)
	router := NewRouter(RouterConfig{Pipeline: p, Logger: zap.New(core)})

	body := `{"messages":[{"role":"user","content":"Tell me everything"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	types := eventTypes(t, sseEvents(t, rec.Body.Bytes()))
	assert.Equal(t, []string{"start", "start-step", "text-start", "text-delta"}, types)
	assert.NotContains(t, types, "text-end")
	assert.NotContains(t, types, "finish")
	assert.NotContains(t, types, "[DONE]")

	aborted := logs.FilterMessage("chat request aborted")
	require.Equal(t, 1, aborted.Len())
	assert.Equal(t, context.Canceled.Error(), aborted.All()[0].ContextMap()["error"])
	p.AssertExpectations(t)
}

func TestHandleChat_RetrievalOutageDegrades(t *testing.T) {
	env := map[string]string{
		config.EnvEmbeddingAPIKey: "k",
		config.EnvVectorURL:       "https://index.example.com",
		config.EnvVectorToken:     "t",
		config.EnvChatAPIKey:      "g",
	}
	chat := &narrative.MockChatModel{Fragments: []string{"Happy ", "to help."}}
	pipeline := orchestrator.NewPipeline(orchestrator.PipelineConfig{
		Settings: func() config.Settings {
			return config.Load(func(key string) (string, bool) {
				v, ok := env[key]
				return v, ok
			})
		},
		Providers: degradedProviders{chat: chat},
		Logger:    zap.NewNop(),
	})

	rec := doRequest(t, newTestRouter(pipeline, false), http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"Tell me about yourself"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	types := eventTypes(t, sseEvents(t, rec.Body.Bytes()))
	assert.Contains(t, types, "finish")
	assert.NotContains(t, types, "error")

	require.NotEmpty(t, chat.LastMessages)
	assert.Equal(t, narrative.RoleSystem, chat.LastMessages[0].Role)
	assert.Equal(t, narrative.DefaultPersona, chat.LastMessages[0].Content)
}
