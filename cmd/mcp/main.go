package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/club-events-assistant/internal/adapters/mcp"
	"github.com/kirillkom/club-events-assistant/internal/bootstrap"
	"github.com/kirillkom/club-events-assistant/internal/config"
	"github.com/kirillkom/club-events-assistant/internal/observability/logging"
)

// Stdout carries the MCP protocol, so every log line goes to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "mcp", "info").Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp", bootstrap.WithLogOutput(os.Stderr))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Pipeline, app.Reports, app.Logger)
	if err := server.ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err.Error())
	}
}
