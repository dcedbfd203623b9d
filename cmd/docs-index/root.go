package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/indexer"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/render"
)

var (
	// Global flags
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "docs-index",
	Short: "Index documentation sources into the search index",
	Long: `docs-index renders or fetches each content source, formats one search
record per item and writes the records to the Algolia index.

Sources:
  api     REST API reference pages, one record per endpoint
  blogs   blog posts listed in the sitemap, written only when changed
  videos  YouTube channel uploads
  labs    Instruqt tracks, each with a fresh invite link`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides DOCS_LOG_LEVEL)")
}

// session is what a subcommand needs to run one source.
type session struct {
	cfg    *config.Config
	runner *indexer.Runner
	close  func()
}

// newSession loads configuration and assembles a Runner. When needIndex is
// set, missing index credentials are an error.
func newSession(needIndex bool) (*session, error) {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	initLogger(cfg.Log)

	// ── 2. Search index ─────────────────────────────────────────────
	var idx indexer.Index
	if needIndex {
		a, err := indexer.NewAlgoliaIndex(cfg.Algolia)
		if err != nil {
			return nil, err
		}
		idx = a
	}

	// ── 3. Renderer: plain HTTP first, browser when the page needs it ─
	client := render.NewHTTPClient(30 * time.Second)
	browser := newLazyBrowser(cfg.Browser)
	dispatcher := render.NewDispatcher(
		[]render.Engine{render.NewHTTPEngine(client), browser},
		cfg.Browser.EscalationDelays,
		render.NewHostMemory(time.Hour),
	)

	return &session{
		cfg:    cfg,
		runner: indexer.NewRunner(cfg, dispatcher, client, idx, metrics.New(nil)),
		close:  browser.Close,
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// initLogger configures slog on stderr; stdout is reserved for printed
// records.
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
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
