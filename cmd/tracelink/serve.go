package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yousuf/tracelink/internal/server"
)

const serveLongDesc string = `Run the tracelink MCP server over streamable HTTP.

Tools:
  resolve_stack    Original location of a stack trace
  map_stack        A stack trace rewritten to original locations
  open_in_editor   Resolve a stack trace and open it in the editor

Example:
  tracelink serve
  TRACELINK_SERVER_PORT=4000 tracelink serve`

const serveShortDesc string = "Run the MCP server"

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
}

func newHTTPServer(a *app) *http.Server {
	mcpServer := server.NewMcpServer(server.Options{
		Resolver: a.resolver,
		Opener:   a.editor,
		Logger:   a.logger.Named("mcp"),
		Version:  version,
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// runServe serves until ctx is done, then shuts down gracefully.
func runServe(ctx context.Context, a *app) error {
	httpServer := newHTTPServer(a)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("tracelink MCP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
