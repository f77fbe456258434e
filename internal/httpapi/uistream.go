package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const uiStreamHeader = "x-vercel-ai-ui-message-stream"

// uiEvent is one part of a UI message stream. Only the fields relevant to
// each event type are set.
type uiEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	ID        string `json:"id,omitempty"`
	Delta     string `json:"delta,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// uiStream writes server-sent events in the UI message stream format,
// flushing after every event.
type uiStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newUIStream(w http.ResponseWriter) *uiStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(uiStreamHeader, "v1")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	return &uiStream{w: w, flusher: flusher}
}

func (s *uiStream) send(ev uiEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.write(string(payload))
}

func (s *uiStream) done() error {
	return s.write("[DONE]")
}

func (s *uiStream) write(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
