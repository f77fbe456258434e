package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/orchestrator"
)

const jsonRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// ProtocolError is a JSON-RPC error object.
type ProtocolError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	return e.Message
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ProtocolError  `json:"error,omitempty"`
}

// ChatParams are the params of the "chat" method.
type ChatParams struct {
	Question string `json:"question" validate:"required"`
	TopK     *int   `json:"topK,omitempty"`
}

// ChatResult is the result of the "chat" method.
type ChatResult struct {
	Answer string `json:"answer"`
}

var nullID = json.RawMessage("null")

// RPCHandler serves the JSON-RPC endpoint.
type RPCHandler struct {
	pipeline   Pipeline
	logger     *zap.Logger
	production bool
}

// NewRPCHandler creates a new JSON-RPC handler.
func NewRPCHandler(pipeline Pipeline, logger *zap.Logger, production bool) *RPCHandler {
	return &RPCHandler{
		pipeline:   pipeline,
		logger:     logger,
		production: production,
	}
}

// HandleRPC handles POST /api/mcp. Every outcome is a well-formed JSON-RPC
// envelope.
func (h *RPCHandler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, nullID, &ProtocolError{Code: CodeParseError, Message: "Parse error"})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		perr := &ProtocolError{Code: CodeParseError, Message: "Parse error"}
		if !h.production {
			perr.Data = map[string]any{"body": string(body), "error": err.Error()}
		}
		h.writeError(w, http.StatusBadRequest, nullID, perr)
		return
	}

	id := req.ID
	if len(id) == 0 {
		id = nullID
	}

	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		h.writeError(w, http.StatusOK, id, &ProtocolError{Code: CodeInvalidRequest, Message: "Invalid Request"})
		return
	}

	switch req.Method {
	case "chat":
		h.handleChat(w, r, id, req.Params)
	default:
		h.writeError(w, http.StatusOK, id, &ProtocolError{Code: CodeMethodNotFound, Message: "Method not found"})
	}
}

func (h *RPCHandler) handleChat(w http.ResponseWriter, r *http.Request, id json.RawMessage, raw json.RawMessage) {
	var params ChatParams
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), nullID) {
		if err := json.Unmarshal(raw, &params); err != nil {
			h.writeError(w, http.StatusOK, id, &ProtocolError{
				Code:    CodeInvalidParams,
				Message: "Invalid params",
				Data:    map[string]any{"message": err.Error()},
			})
			return
		}
	}
	params.Question = strings.TrimSpace(params.Question)
	if err := validateStruct(params); err != nil {
		h.writeError(w, http.StatusOK, id, &ProtocolError{
			Code:    CodeInvalidParams,
			Message: "Invalid params",
			Data:    map[string]any{"message": err.Error()},
		})
		return
	}

	k := 0
	if params.TopK != nil {
		k = *params.TopK
	}

	answer, err := h.pipeline.Answer(r.Context(), params.Question, k)
	if err != nil {
		h.logger.Error("rpc chat failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, id, h.internalError(err))
		return
	}

	_ = writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Result:  ChatResult{Answer: answer},
	})
}

func (h *RPCHandler) internalError(err error) *ProtocolError {
	perr := &ProtocolError{
		Code:    CodeInternalError,
		Message: "Internal error",
		Data:    map[string]any{"message": err.Error()},
	}

	if !h.production {
		var pe *orchestrator.PipelineError
		if errors.As(err, &pe) {
			perr.Data["stage"] = string(pe.Stage)
			perr.Data["stack"] = pe.Stack()
		}
	}

	return perr
}

func (h *RPCHandler) writeError(w http.ResponseWriter, status int, id json.RawMessage, perr *ProtocolError) {
	_ = writeJSON(w, status, rpcResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   perr,
	})
}

// rpcInfo is the static usage document served on GET /api/mcp.
var rpcInfo = map[string]any{
	"name":        "twin",
	"description": "JSON-RPC 2.0 endpoint answering questions about a professional profile.",
	"usage": map[string]any{
		"method":   "POST",
		"endpoint": "/api/mcp",
		"body": map[string]any{
			"jsonrpc": jsonRPCVersion,
			"id":      1,
			"method":  "chat",
			"params":  map[string]any{"question": "What is your experience with Go?", "topK": 3},
		},
	},
	"methods": []map[string]string{
		{"name": "chat", "description": "Answer a question using retrieved profile context."},
	},
}

// HandleInfo handles GET /api/mcp.
func (h *RPCHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, rpcInfo)
}
