package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mcpproxy/mcpproxy/internal/adapter/inbound/stdio"
	mcpclient "github.com/mcpproxy/mcpproxy/internal/adapter/outbound/mcp"
	"github.com/mcpproxy/mcpproxy/internal/config"
	"github.com/mcpproxy/mcpproxy/internal/domain/cache"
	"github.com/mcpproxy/mcpproxy/internal/domain/proxy"
	"github.com/mcpproxy/mcpproxy/internal/domain/upstream"
	"github.com/mcpproxy/mcpproxy/internal/port/outbound"
	"github.com/mcpproxy/mcpproxy/internal/service"
	"github.com/mcpproxy/mcpproxy/internal/telemetry"
)

var logLevel string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy",
	Long: `Start mcpproxy: spawn every server listed in mcp.json, discover their
tools, and serve a merged MCP endpoint over stdio.

Examples:
  # Start with ./mcp.json
  mcpproxy start

  # Start with a specific config file
  mcpproxy --config /path/to/mcp.json start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning, error, critical (default: LOG_LEVEL env or info)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(logLevel)}))

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Info("config loaded", "file", config.ConfigFileUsed(), "upstreams", len(cfg.McpServers))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := telemetry.NewSink(os.Stderr, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("building telemetry sink: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sink.Shutdown(shutdownCtx)
	}()

	pool := service.NewSessionPool(defaultClientFactory(), logger, sink)

	specs := make([]*upstream.Spec, 0, len(cfg.McpServers))
	for _, name := range cfg.UpstreamNames() {
		u := cfg.McpServers[name]
		specs = append(specs, &upstream.Spec{
			Name:             name,
			Command:          u.Command,
			Args:             u.Args,
			Env:              u.Env,
			StartupTimeoutMs: u.StartupTimeoutMs,
		})
	}

	logger.Info("starting upstreams", "count", len(specs))
	readyCount := pool.StartAll(ctx, specs)
	logger.Info("upstreams started", "ready", readyCount, "configured", len(specs))

	if len(specs) > 0 && readyCount == 0 {
		fmt.Fprintln(os.Stderr, "mcpproxy: no configured upstream reached ready state")
		os.Exit(2)
	}

	cacheStore := cache.NewStore(cache.Config{
		MaxEntriesPerAgent: cfg.ProxySettings.CacheMaxEntries,
		MaxBytesPerAgent:   cache.DefaultConfig().MaxBytesPerAgent,
		MaxAgents:          cache.DefaultConfig().MaxAgents,
		TTL:                time.Duration(cfg.ProxySettings.CacheTTLSeconds) * time.Second,
	})

	interceptor := proxy.NewResponseInterceptor(proxy.InterceptorConfig{
		AutoTruncate:    cfg.ProxySettings.EnableAutoTruncation,
		MaxResponseSize: cfg.ProxySettings.MaxResponseSize,
	}, cacheStore)

	proxyTools := service.NewProxyTools(cacheStore, pool, sink)
	dispatcher := service.NewDispatcher(pool, proxyTools, interceptor, service.NewSingleClientIdentifier(), logger, sink)
	transport := stdio.NewStdioTransport(dispatcher)

	logger.Info("mcpproxy listening on stdio")
	err = transport.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool.Shutdown(shutdownCtx)

	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// defaultClientFactory builds the production ClientFactory: every upstream
// is spawned over stdio, since mcp.json only describes stdio servers.
func defaultClientFactory() service.ClientFactory {
	return func(spec *upstream.Spec) outbound.MCPClient {
		return mcpclient.NewStdioClient(spec.Command, spec.Args...).WithEnv(spec.Env)
	}
}

// parseLogLevel converts a string log level to slog.Level, falling back to
// the LOG_LEVEL environment variable when the flag is unset. Returns
// slog.LevelInfo for unrecognized values. CRITICAL has no slog constant of
// its own; it maps one level above error.
func parseLogLevel(level string) slog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}
