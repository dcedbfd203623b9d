package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCS_CONFIG", "")
	t.Setenv("KAPA_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.MCP.Path != "/mcp" {
		t.Errorf("MCP.Path = %q, want /mcp", cfg.MCP.Path)
	}
	if cfg.Upstream.ConnectTimeout != 8*time.Second {
		t.Errorf("ConnectTimeout = %v, want 8s", cfg.Upstream.ConnectTimeout)
	}
	if cfg.Upstream.CallTimeout != 22*time.Second {
		t.Errorf("CallTimeout = %v, want 22s", cfg.Upstream.CallTimeout)
	}
	if cfg.RateLimit.Window != 15*time.Minute || cfg.RateLimit.Limit != 60 {
		t.Errorf("RateLimit = %+v, want 15m/60", cfg.RateLimit)
	}
	if err := cfg.RequireUpstream(); err == nil {
		t.Error("RequireUpstream() = nil without KAPA_API_KEY")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.yaml")
	yamlDoc := `
server:
  port: 9090
  site_dir: /srv/site
mcp:
  streaming: false
rate_limit:
  window: 1m
  limit: 5
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOCS_CONFIG", path)
	t.Setenv("DOCS_RATE_LIMIT", "7")
	t.Setenv("KAPA_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090 from file", cfg.Server.Port)
	}
	if cfg.Server.SiteDir != "/srv/site" {
		t.Errorf("SiteDir = %q, want /srv/site", cfg.Server.SiteDir)
	}
	if cfg.MCP.Streaming {
		t.Error("Streaming = true, want false from file")
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("Window = %v, want 1m from file", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Limit != 7 {
		t.Errorf("Limit = %d, want 7 from env", cfg.RateLimit.Limit)
	}
	// Untouched sections keep their defaults.
	if cfg.MCP.ServerName != "Redpanda Docs MCP" {
		t.Errorf("ServerName = %q", cfg.MCP.ServerName)
	}
	if err := cfg.RequireUpstream(); err != nil {
		t.Errorf("RequireUpstream() = %v", err)
	}
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("DOCS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil error for missing file")
	}
}

func TestRequireAlgolia(t *testing.T) {
	cfg := Defaults()
	if err := cfg.RequireAlgolia(); err != ErrMissingAlgolia {
		t.Fatalf("RequireAlgolia() = %v, want ErrMissingAlgolia", err)
	}
	cfg.Algolia = AlgoliaConfig{AppID: "app", AdminKey: "key", IndexName: "docs"}
	if err := cfg.RequireAlgolia(); err != nil {
		t.Fatalf("RequireAlgolia() = %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_SLICE", " a, b ,,c ")
	got := envSliceOr("X_SLICE", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("envSliceOr = %v", got)
	}

	t.Setenv("X_DUR", "bogus,2s")
	ds := envDurationSliceOr("X_DUR", nil)
	if len(ds) != 1 || ds[0] != 2*time.Second {
		t.Errorf("envDurationSliceOr = %v", ds)
	}

	t.Setenv("X_INT", "nope")
	if v := envIntOr("X_INT", 3); v != 3 {
		t.Errorf("envIntOr fallback = %d, want 3", v)
	}
}
