// Package app provides the shared entry point for the garmin-mcp binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/SolanceLab/garmin-mcp/internal/config"
	"github.com/SolanceLab/garmin-mcp/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, standard locations are searched.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// Transport, Addr, and LogLevel override their configuration file
	// values when non-empty.
	Transport string
	Addr      string
	LogLevel  string
}

// Run loads configuration, starts all components, serves MCP over the
// configured transport, and blocks until a shutdown signal is received or
// the transport closes.
func Run(params RunParams) error {
	cfgPath, err := config.Resolve(params.ConfigPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if params.Transport != "" {
		cfg.Server.Transport = params.Transport
	}
	if params.Addr != "" {
		cfg.Server.Addr = params.Addr
	}
	if params.LogLevel != "" {
		cfg.LogLevel = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	// stdout carries the MCP protocol on the stdio transport, so every log
	// line goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	logger.Info("starting garmin-mcp",
		"version", params.Version,
		"commit", params.Commit,
		"transport", cfg.Server.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("trace exporter shutdown failed", "error", err)
		}
	}()

	deps, err := buildDeps(cfg, params.Version, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	srv := newMCPServer(deps.tools, params.Version)

	// Warm the session so the first tool call does not pay for the login
	// round trips. Failure is not fatal; tools report unauthenticated until
	// tokens or credentials become available.
	deps.sessions.Acquire(ctx)

	return serve(ctx, cfg.Server, srv, logger)
}

// serve blocks on the selected transport until shutdown.
func serve(ctx context.Context, cfg config.ServerConfig, srv *server.MCPServer, logger *slog.Logger) error {
	switch cfg.Transport {
	case "http":
		return serveHTTP(ctx, cfg.Addr, srv, logger)
	default:
		return serveStdio(srv, logger)
	}
}

// serveStdio runs the MCP server over stdin/stdout. ServeStdio installs its
// own signal handling and reports a canceled context on SIGINT/SIGTERM,
// which counts as a clean shutdown here.
func serveStdio(srv *server.MCPServer, logger *slog.Logger) error {
	logger.Info("mcp server listening", "transport", "stdio")
	if err := server.ServeStdio(srv); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("mcp server stopped")
	return nil
}

// serveHTTP runs the streamable HTTP transport until the context is
// canceled, then shuts it down with a bounded grace period.
func serveHTTP(ctx context.Context, addr string, srv *server.MCPServer, logger *slog.Logger) error {
	httpSrv := server.NewStreamableHTTPServer(srv)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start(addr)
	}()
	logger.Info("mcp server listening", "transport", "http", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("mcp server stopped")
	return nil
}
