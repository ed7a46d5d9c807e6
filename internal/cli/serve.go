package cli

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

	"github.com/khanglvm/smartfix/internal/httpapi"
	"github.com/khanglvm/smartfix/internal/mcp"
	"github.com/khanglvm/smartfix/internal/version"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the smartfix MCP server using stdio transport.

This server exposes 6 tools to AI clients:
  • brain_process      - Diagnose a problem and return fix steps
  • brain_search       - List stored solutions matching a query
  • brain_related      - Find related stored problems
  • brain_feedback     - Report whether an answer worked
  • brain_add_solution - Store a new or corrected solution
  • brain_stats        - Knowledge and learning statistics

Logs go to stderr; stdout carries the protocol.`,
		Example: `  # Run directly
  smartfix serve

  # Add to an MCP client
  claude mcp add smartfix -- smartfix serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runServe)
		},
	}
}

// runServe serves MCP until stdin closes or SIGINT/SIGTERM arrives.
func runServe(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := mcp.NewServer(a.engine, version.Version, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("starting mcp server", zap.String("version", version.Version))
	return server.Run(ctx)
}

// NewHTTPCmd creates the 'http' command for running the REST API.
func NewHTTPCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the REST API server",
		Long: `Start the smartfix REST API.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/query/{text,log,image,voice}
  GET  /api/v1/brain/search?q=
  GET  /api/v1/brain/related?q=
  POST /api/v1/brain/feedback
  POST /api/v1/brain/solutions
  GET  /api/v1/brain/stats`,
		Example: `  smartfix http
  smartfix http --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if cmd.Flags().Changed("host") {
					a.cfg.HTTP.Host = host
				}
				if cmd.Flags().Changed("port") {
					a.cfg.HTTP.Port = port
				}
				return runHTTP(ctx, a)
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides http.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides http.port)")

	return cmd
}

// runHTTP serves the REST API until SIGINT/SIGTERM, then shuts down gracefully.
func runHTTP(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := httpapi.NewServer(a.engine, a.metrics, a.logger, &httpapi.Config{
		Host: a.cfg.HTTP.Host,
		Port: a.cfg.HTTP.Port,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	}
}
