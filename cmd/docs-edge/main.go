package main

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

	"github.com/redpanda-data/docs-edge/api"
	"github.com/redpanda-data/docs-edge/cache"
	"github.com/redpanda-data/docs-edge/cleaner"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/docsmcp"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/render"
	"github.com/redpanda-data/docs-edge/upstream"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.RequireUpstream(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("docs-edge starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"mcpPath", cfg.MCP.Path,
		"siteDir", cfg.Server.SiteDir,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := metrics.New(nil)

	// ── 3. Upstream connection (dialled lazily on first tool call) ──
	mgr := upstream.NewManager(upstream.NewDialer(cfg.Upstream, cfg.MCP.Version), cfg.Upstream.ConnectTimeout)

	// ── 4. MCP server ───────────────────────────────────────────────
	asker := docsmcp.NewAsker(mgr, cfg.Upstream, m)
	mcpServer := docsmcp.NewServer(cfg.MCP, asker)
	streamable := docsmcp.NewStreamableServer(mcpServer, cfg.MCP)

	// ── 5. API reference cache ──────────────────────────────────────
	cc := cache.New(cfg.APIDocs.CacheItems, cfg.APIDocs.CacheTTL)
	if cfg.APIDocs.CacheTTL > 0 {
		go cc.Run(ctx, cfg.APIDocs.CacheTTL)
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, api.Deps{
		Config:     cfg,
		MCP:        streamable,
		Upstream:   mgr,
		Cleaner:    cleaner.NewCleaner(),
		Cache:      cc,
		HTTPClient: render.NewHTTPClient(cfg.APIDocs.Timeout),
		Metrics:    m,
		StartTime:  time.Now(),
	})

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if err := streamable.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP transport shutdown", "error", err)
	}

	stop()
	if err := mgr.Close(); err != nil {
		slog.Warn("upstream close", "error", err)
	}
	slog.Info("docs-edge stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
