package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/astrule/pkg/config"
	"github.com/Sumatoshi-tech/astrule/pkg/mcp"
	"github.com/Sumatoshi-tech/astrule/pkg/observability"
)

const metricsReadHeaderTimeout = 5 * time.Second

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes structural search as tools that AI agents can discover
and invoke:
  - astrule_search: match a pattern or YAML rule against inline code
  - astrule_validate_rule: check YAML rule documents`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, configPath, metricsAddr, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default .astrule.yaml)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}

func runMCP(cmd *cobra.Command, configPath, metricsAddr string, debug bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	cfg.Logging.JSON = true
	if debug {
		cfg.Logging.Level = "debug"
	}

	providers, err := initObservability(cfg, observability.ModeMCP, cmd.ErrOrStderr(), metricsAddr != "")
	if err != nil {
		return err
	}

	defer shutdownObservability(providers)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if metricsAddr != "" {
		stop, serveErr := serveMetrics(ctx, metricsAddr, providers)
		if serveErr != nil {
			return serveErr
		}

		defer stop()
	}

	srv := mcp.NewServer(mcp.ServerDeps{Logger: providers.Logger, Metrics: red, Tracer: providers.Tracer})

	return srv.Run(ctx)
}

// serveMetrics exposes the metrics handler on addr until stop is called.
func serveMetrics(ctx context.Context, addr string, providers observability.Providers) (func(), error) {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.HTTPMiddleware(providers.Tracer, providers.MetricsHandler))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadHeaderTimeout}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			providers.Logger.Error("metrics server stopped", "error", serveErr)
		}
	}()

	providers.Logger.Info("serving metrics", "addr", listener.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadHeaderTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}, nil
}
