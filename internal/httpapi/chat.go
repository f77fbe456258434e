package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/config"
	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/orchestrator"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []UIMessage `json:"messages" validate:"required,min=1,dive"`
}

// UIMessage is one conversation turn as sent by the chat client. Text comes
// from the text parts, or from Content when no parts are present.
type UIMessage struct {
	ID      string   `json:"id,omitempty"`
	Role    string   `json:"role" validate:"required,oneof=system user assistant"`
	Parts   []UIPart `json:"parts,omitempty"`
	Content string   `json:"content,omitempty"`
}

// UIPart is one part of a UIMessage. Only "text" parts are read.
type UIPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (m UIMessage) text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ChatHandler streams answers to conversational clients.
type ChatHandler struct {
	pipeline   Pipeline
	logger     *zap.Logger
	production bool
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(pipeline Pipeline, logger *zap.Logger, production bool) *ChatHandler {
	return &ChatHandler{
		pipeline:   pipeline,
		logger:     logger,
		production: production,
	}
}

// HandleChat handles POST /api/chat. Request and configuration problems are
// reported as JSON before the stream starts; once streaming, failures are
// reported as an error event.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}
	if err := validateStruct(req); err != nil {
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	conversation := make([]narrative.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		conversation = append(conversation, narrative.Message{Role: m.Role, Content: m.text()})
	}

	fragments, err := h.pipeline.AnswerStream(ctx, conversation)
	if err != nil {
		h.writeStartError(w, err)
		return
	}

	stream := newUIStream(w)
	messageID := uuid.NewString()
	textID := uuid.NewString()

	_ = stream.send(uiEvent{Type: "start", MessageID: messageID})
	_ = stream.send(uiEvent{Type: "start-step"})
	_ = stream.send(uiEvent{Type: "text-start", ID: textID})

	for frag := range fragments {
		if frag.Err != nil {
			h.logger.Error("chat stream failed", zap.Error(frag.Err))
			_ = stream.send(uiEvent{Type: "error", ErrorText: h.errorText(frag.Err)})
			return
		}
		if err := stream.send(uiEvent{Type: "text-delta", ID: textID, Delta: frag.Text}); err != nil {
			// Client went away; the request context cancels the generator.
			break
		}
	}

	if ctx.Err() != nil {
		h.logger.Info("chat request aborted", zap.Error(ctx.Err()))
		return
	}

	_ = stream.send(uiEvent{Type: "text-end", ID: textID})
	_ = stream.send(uiEvent{Type: "finish-step"})
	_ = stream.send(uiEvent{Type: "finish"})
	_ = stream.done()
}

func (h *ChatHandler) writeStartError(w http.ResponseWriter, err error) {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.Is(err, orchestrator.ErrNoUserMessage), errors.Is(err, orchestrator.ErrEmptyQuery):
		_ = writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: "conversation must end with a non-empty user message"})
	case errors.As(err, &cfgErr):
		h.logger.Error("chat misconfigured", zap.String("missing", cfgErr.Name))
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "configuration_error", Message: cfgErr.Error()})
	default:
		h.logger.Error("chat failed to start", zap.Error(err))
		_ = writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: h.errorText(err)})
	}
}

func (h *ChatHandler) errorText(err error) string {
	if h.production {
		return "An error occurred while generating the answer."
	}
	return err.Error()
}
