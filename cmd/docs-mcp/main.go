// Command docs-mcp serves the documentation search tool over stdio for local
// MCP clients. Logs go to stderr; stdout carries the protocol.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/docsmcp"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.RequireUpstream(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	mgr := upstream.NewManager(upstream.NewDialer(cfg.Upstream, cfg.MCP.Version), cfg.Upstream.ConnectTimeout)

	asker := docsmcp.NewAsker(mgr, cfg.Upstream, metrics.New(nil))
	s := docsmcp.NewServer(cfg.MCP, asker)

	err = server.ServeStdio(s, server.WithErrorLogger(slog.NewLogLogger(handler, slog.LevelError)))
	_ = mgr.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
