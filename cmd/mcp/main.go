package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/efaktur-validator/internal/adapters/mcp"
	"github.com/kirillkom/efaktur-validator/internal/bootstrap"
	"github.com/kirillkom/efaktur-validator/internal/config"
	"github.com/kirillkom/efaktur-validator/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, "efaktur-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer("efaktur-validator", version, mcpadapter.NewTools(app.Validator, logger))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_error", "error", err.Error())
		os.Exit(1)
	}
}
