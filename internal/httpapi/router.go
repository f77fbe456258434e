// Package httpapi exposes the answer pipeline over HTTP: a streaming chat
// endpoint speaking the UI message stream protocol and a JSON-RPC endpoint
// for programmatic callers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/observability"
)

// Pipeline is the part of the orchestrator the handlers call.
type Pipeline interface {
	Answer(ctx context.Context, query string, k int) (string, error)
	AnswerStream(ctx context.Context, conversation []narrative.Message) (<-chan narrative.Fragment, error)
}

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Pipeline       Pipeline
	Logger         *zap.Logger
	Production     bool
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter configures all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID", uiStreamHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", HealthCheck)

	chat := NewChatHandler(cfg.Pipeline, cfg.Logger, cfg.Production)
	rpc := NewRPCHandler(cfg.Pipeline, cfg.Logger, cfg.Production)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chat.HandleChat)
		r.Post("/mcp", rpc.HandleRPC)
		r.Get("/mcp", rpc.HandleInfo)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "endpoint not found"})
	})

	return r
}

// HealthCheck reports liveness. It does not touch any provider.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
