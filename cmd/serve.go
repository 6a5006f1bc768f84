package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachextract/internal/config"
	"github.com/teemow/attachextract/internal/logging"
	"github.com/teemow/attachextract/internal/resources"
	"github.com/teemow/attachextract/internal/server"
	"github.com/teemow/attachextract/internal/tools/extract_tools"
)

func newServeCmd() *cobra.Command {
	var yolo bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server over stdio to provide the
attachment preview and extraction tools to AI assistants.

Safety Mode:
  By default extract_attachments always runs as a dry run and the mailbox is
  never modified. Use --yolo to let the tool create labels and insert the
  rewritten messages.

The extraction flags set the defaults of every tool call; the query is always
taken from the call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, yolo, cmd.ErrOrStderr())
		},
	}

	config.AddAuthFlags(cmd.Flags())
	config.AddExtractFlags(cmd.Flags())
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Allow extract_attachments to modify the mailbox")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, yolo bool, logOut io.Writer) error {
	if err := cfg.ValidateSettings(); err != nil {
		return err
	}
	// stdout carries the MCP protocol
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverContext, tel, err := newServerContext(shutdownCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		tel.shutdown()
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	mcpSrv, err := newMCPServer(serverContext, yolo)
	if err != nil {
		return err
	}

	if yolo {
		logger.Warn("starting server with mailbox modifications enabled (--yolo flag is set)")
	} else {
		logger.Info("starting server in safe mode (use --yolo to allow mailbox modifications)")
	}

	return runStdioServer(shutdownCtx, mcpSrv)
}

// newServerContext creates the server context and its instrumentation. The
// health endpoints of the metrics server report on the context.
func newServerContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.ServerContext, *telemetry, error) {
	tel, err := startTelemetry(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	sc := server.NewServerContext(ctx, cfg, logger,
		server.WithInstrumentation(tel.provider),
		server.WithAuditLogger(tel.audit),
	)
	if err := tel.serveMetrics(cfg.MetricsAddr, sc); err != nil {
		tel.shutdown()
		_ = sc.Shutdown()
		return nil, nil, err
	}
	return sc, tel, nil
}

func newMCPServer(sc *server.ServerContext, yolo bool) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("attachextract", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	if err := extract_tools.RegisterExtractTools(mcpSrv, sc, yolo); err != nil {
		return nil, fmt.Errorf("failed to register extraction tools: %w", err)
	}
	if err := resources.RegisterRunResources(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	return mcpSrv, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
