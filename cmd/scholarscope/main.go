// Command scholarscope runs the ScholarScope MCP server: academic-literature
// search tools backed by the OpenAlex API, served over stdio.
//
// Logs go to stderr; stdout belongs to the MCP transport.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/scholarscope/scholarscope/internal/config"
	"github.com/scholarscope/scholarscope/internal/observe"
	"github.com/scholarscope/scholarscope/internal/ops"
	"github.com/scholarscope/scholarscope/internal/requestapi"
	"github.com/scholarscope/scholarscope/internal/scholar"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional; built-in defaults plus environment overrides apply without one)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		// An empty document still picks up environment overrides.
		cfg, err = config.LoadFromReader(strings.NewReader(""))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scholarscope: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("scholarscope starting",
		"version", version,
		"config", *configPath,
		"openalex_base_url", cfg.OpenAlex.BaseURL,
		"ops_addr", cfg.Server.OpsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "scholarscope",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Servers ───────────────────────────────────────────────────────────────
	toolServer := scholar.New(cfg, observe.DefaultMetrics(), version)
	opsServer := ops.New(cfg.Server.OpsAddr, openAlexChecker(cfg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return opsServer.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("serving MCP tools on stdio")
		return toolServer.MCPServer().Run(gctx, &mcp.StdioTransport{})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// openAlexChecker probes the OpenAlex API root for the readiness endpoint.
// A single attempt without retries: readiness should report the upstream's
// current state, not mask an outage behind backoff.
func openAlexChecker(cfg *config.Config) ops.Checker {
	return ops.Checker{
		Name: "openalex",
		Check: func(ctx context.Context) error {
			client, err := requestapi.New(requestapi.Config{
				BaseURL:    cfg.OpenAlex.BaseURL,
				Timeout:    cfg.OpenAlex.Timeout.Std(),
				MaxRetries: 1,
			})
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = client.Get(ctx, "/", nil, nil)
			return err
		},
	}
}
