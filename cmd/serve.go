package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/config"
	"github.com/Yates-Labs/twin/internal/httpapi"
	"github.com/Yates-Labs/twin/internal/observability"
	"github.com/Yates-Labs/twin/internal/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and JSON-RPC endpoints over HTTP",
	Long: `Start the HTTP server.

Endpoints:
  POST /api/chat   streaming chat (UI message stream over server-sent events)
  POST /api/mcp    JSON-RPC 2.0, method "chat" with {"question", "topK"}
  GET  /api/mcp    usage document
  GET  /healthz    liveness probe

Provider credentials are read on every request, so the server starts even
when they are missing; affected requests fail with a configuration error.

Server settings:
  ENVIRONMENT              production hides diagnostics (default: development)
  SERVER_HOST, PORT        listen address (default: 0.0.0.0:8080)
  REQUEST_TIMEOUT          per-request deadline (default: 30s)
  SERVER_SHUTDOWN_TIMEOUT  graceful shutdown window (default: 10s)
  LOG_LEVEL, LOG_FORMAT    zap level and json|console (default: info, json)
  CORS_ALLOWED_ORIGINS     comma-separated origins`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadServer()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pipelineCfg := orchestrator.DefaultPipelineConfig()
	pipelineCfg.Logger = logger.Named("pipeline")

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Pipeline:       orchestrator.NewPipeline(pipelineCfg),
		Logger:         logger.Named("http"),
		Production:     cfg.IsProduction(),
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
