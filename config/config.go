package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MCP       MCPConfig       `yaml:"mcp"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	APIDocs   APIDocsConfig   `yaml:"api_docs"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Browser   BrowserConfig   `yaml:"browser"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Algolia   AlgoliaConfig   `yaml:"algolia"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Instruqt  InstruqtConfig  `yaml:"instruqt"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"

	// SiteDir is the root of the built documentation site served for
	// unmatched routes. Empty disables static hosting.
	SiteDir string `yaml:"site_dir"`

	// ShutdownTimeout bounds graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 5s
}

// MCPConfig controls the public MCP endpoint.
type MCPConfig struct {
	Path       string `yaml:"path"`        // default: "/mcp"
	ServerName string `yaml:"server_name"` // default: "Redpanda Docs MCP"
	Version    string `yaml:"version"`     // default: "1.1.0"

	// SetupPage is where browser navigations to the MCP path are sent.
	SetupPage string `yaml:"setup_page"` // default: "/home/mcp-setup"

	// Streaming enables GET (server push) and DELETE (session teardown).
	// When false only POST is accepted.
	Streaming bool `yaml:"streaming"` // default: true

	// Stateless skips MCP session tracking between requests.
	Stateless bool `yaml:"stateless"` // default: true
}

// UpstreamConfig describes the hosted Q&A MCP server the tool proxies to.
type UpstreamConfig struct {
	URL      string `yaml:"url"`       // default: "https://redpanda.mcp.kapa.ai"
	ToolName string `yaml:"tool_name"` // default: "search_redpanda_knowledge_sources"

	// APIKey is the bearer credential. Never logged.
	APIKey string `yaml:"-"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"` // default: 8s
	CallTimeout    time.Duration `yaml:"call_timeout"`    // default: 22s

	ClientName string `yaml:"client_name"` // default: "redpanda-docs-proxy"
}

// RateLimitConfig controls per-identity fixed-window rate limiting on the
// MCP endpoint.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"` // default: true
	Window  time.Duration `yaml:"window"`  // default: 15m
	Limit   int           `yaml:"limit"`   // default: 60

	// PlatformHeader names a header set by the hosting platform that carries
	// the verified client IP. Empty means the connection's remote address.
	PlatformHeader string `yaml:"platform_header"`

	// TrustedProxies lists CIDRs of load balancers in front of the server.
	// When PlatformHeader is empty and the remote address is one of them,
	// the client is identified from the proxy-chain headers instead.
	TrustedProxies []string `yaml:"trusted_proxies"` // default: loopback and private ranges
}

// APIDocsConfig controls the API reference reverse proxy.
type APIDocsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true

	// UpstreamBase is prefixed to the request path (minus "/api").
	UpstreamBase string `yaml:"upstream_base"` // default: "https://bump.sh/redpanda/hub/redpanda"

	// ProxySecret is sent as X-BUMP-SH-PROXY. Never logged.
	ProxySecret string `yaml:"-"`

	Timeout    time.Duration `yaml:"timeout"`     // default: 15s
	CacheTTL   time.Duration `yaml:"cache_ttl"`   // default: 5m; 0 disables caching
	CacheItems int           `yaml:"cache_items"` // default: 500
}

// MarkdownConfig controls Accept-based markdown negotiation.
type MarkdownConfig struct {
	Enabled bool `yaml:"enabled"` // default: true

	// Convert renders the HTML page to markdown when no .md twin exists.
	Convert bool `yaml:"convert"` // default: true

	MaxAge time.Duration `yaml:"max_age"` // default: 5m
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"

	// Token, when set, is required as a bearer token on the metrics path.
	Token string `yaml:"-"`
}

// BrowserConfig controls the headless browser used by the indexers.
type BrowserConfig struct {
	Headless   bool   `yaml:"headless"`    // default: true
	MaxPages   int    `yaml:"max_pages"`   // default: 4
	NoSandbox  bool   `yaml:"no_sandbox"`  // default: false
	BrowserBin string `yaml:"browser_bin"` // default: auto-download

	// Stealth injects anti-detection JS before every navigation.
	Stealth bool `yaml:"stealth"` // default: true

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 80s

	// BlockedResourceTypes lists resource types never fetched while rendering.
	BlockedResourceTypes []string `yaml:"blocked_resource_types"` // default: ["Font", "Media"]

	// EscalationDelays staggers the HTTP and browser render paths.
	EscalationDelays []time.Duration `yaml:"escalation_delays"` // default: [0s, 3s]
}

// IndexerConfig controls the offline search indexers.
type IndexerConfig struct {
	// DocsBaseURL is the origin of the API reference pages.
	DocsBaseURL string `yaml:"docs_base_url"` // default: "https://docs.redpanda.com"

	// SitemapURL lists the blog pages.
	SitemapURL string `yaml:"sitemap_url"` // default: "https://redpanda.com/sitemap.xml"

	// BlogBaseURL prefixes blog object IDs.
	BlogBaseURL string `yaml:"blog_base_url"` // default: "https://redpanda.com"

	Concurrency int     `yaml:"concurrency"` // default: 4
	RatePerSec  float64 `yaml:"rate"`        // default: 2
	Retries     int     `yaml:"retries"`     // default: 3

	RetryMinDelay time.Duration `yaml:"retry_min_delay"` // default: 1s
	RetryFactor   float64       `yaml:"retry_factor"`    // default: 2
}

// AlgoliaConfig holds the search index credentials.
type AlgoliaConfig struct {
	AppID     string `yaml:"app_id"`
	AdminKey  string `yaml:"-"`
	IndexName string `yaml:"index_name"`
}

// YouTubeConfig drives the video indexer.
type YouTubeConfig struct {
	APIKey    string `yaml:"-"`
	ChannelID string `yaml:"channel_id"` // default: "UCMrqRNX9Og3wFjuI-qMbKHw"
	APIBase   string `yaml:"api_base"`   // default: "https://www.googleapis.com/youtube/v3"
}

// InstruqtConfig drives the labs indexer.
type InstruqtConfig struct {
	APIKey       string `yaml:"-"`
	Endpoint     string `yaml:"endpoint"`     // default: "https://play.instruqt.com/graphql"
	Organization string `yaml:"organization"` // default: "redpanda"
	InviteBase   string `yaml:"invite_base"`  // default: "https://play.instruqt.com/redpanda/invite/"
	InviteTitle  string `yaml:"invite_title"` // default: "New invites from docs"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
		},
		MCP: MCPConfig{
			Path:       "/mcp",
			ServerName: "Redpanda Docs MCP",
			Version:    "1.1.0",
			SetupPage:  "/home/mcp-setup",
			Streaming:  true,
			Stateless:  true,
		},
		Upstream: UpstreamConfig{
			URL:            "https://redpanda.mcp.kapa.ai",
			ToolName:       "search_redpanda_knowledge_sources",
			ConnectTimeout: 8 * time.Second,
			CallTimeout:    22 * time.Second,
			ClientName:     "redpanda-docs-proxy",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  15 * time.Minute,
			Limit:   60,
			TrustedProxies: []string{
				"127.0.0.0/8", "::1/128",
				"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
			},
		},
		APIDocs: APIDocsConfig{
			Enabled:      true,
			UpstreamBase: "https://bump.sh/redpanda/hub/redpanda",
			Timeout:      15 * time.Second,
			CacheTTL:     5 * time.Minute,
			CacheItems:   500,
		},
		Markdown: MarkdownConfig{
			Enabled: true,
			Convert: true,
			MaxAge:  5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Browser: BrowserConfig{
			Headless:             true,
			MaxPages:             4,
			Stealth:              true,
			NavigationTimeout:    80 * time.Second,
			BlockedResourceTypes: []string{"Font", "Media"},
			EscalationDelays:     []time.Duration{0, 3 * time.Second},
		},
		Indexer: IndexerConfig{
			DocsBaseURL:   "https://docs.redpanda.com",
			SitemapURL:    "https://redpanda.com/sitemap.xml",
			BlogBaseURL:   "https://redpanda.com",
			Concurrency:   4,
			RatePerSec:    2,
			Retries:       3,
			RetryMinDelay: time.Second,
			RetryFactor:   2,
		},
		YouTube: YouTubeConfig{
			ChannelID: "UCMrqRNX9Og3wFjuI-qMbKHw",
			APIBase:   "https://www.googleapis.com/youtube/v3",
		},
		Instruqt: InstruqtConfig{
			Endpoint:     "https://play.instruqt.com/graphql",
			Organization: "redpanda",
			InviteBase:   "https://play.instruqt.com/redpanda/invite/",
			InviteTitle:  "New invites from docs",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by DOCS_CONFIG, and environment variables, in that order of precedence
// (environment wins).
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("DOCS_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("DOCS_HOST", c.Server.Host)
	c.Server.Port = envIntOr("DOCS_PORT", c.Server.Port)
	c.Server.Mode = envOr("DOCS_MODE", c.Server.Mode)
	c.Server.SiteDir = envOr("DOCS_SITE_DIR", c.Server.SiteDir)
	c.Server.ShutdownTimeout = envDurationOr("DOCS_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.MCP.Path = envOr("DOCS_MCP_PATH", c.MCP.Path)
	c.MCP.Version = envOr("DOCS_MCP_VERSION", c.MCP.Version)
	c.MCP.SetupPage = envOr("DOCS_MCP_SETUP_PAGE", c.MCP.SetupPage)
	c.MCP.Streaming = envBoolOr("DOCS_MCP_STREAMING", c.MCP.Streaming)
	c.MCP.Stateless = envBoolOr("DOCS_MCP_STATELESS", c.MCP.Stateless)

	c.Upstream.URL = envOr("DOCS_UPSTREAM_URL", c.Upstream.URL)
	c.Upstream.ToolName = envOr("DOCS_UPSTREAM_TOOL", c.Upstream.ToolName)
	c.Upstream.APIKey = envOr("KAPA_API_KEY", c.Upstream.APIKey)
	c.Upstream.ConnectTimeout = envDurationOr("DOCS_UPSTREAM_CONNECT_TIMEOUT", c.Upstream.ConnectTimeout)
	c.Upstream.CallTimeout = envDurationOr("DOCS_UPSTREAM_CALL_TIMEOUT", c.Upstream.CallTimeout)

	c.RateLimit.Enabled = envBoolOr("DOCS_RATE_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Window = envDurationOr("DOCS_RATE_WINDOW", c.RateLimit.Window)
	c.RateLimit.Limit = envIntOr("DOCS_RATE_LIMIT", c.RateLimit.Limit)
	c.RateLimit.PlatformHeader = envOr("DOCS_RATE_PLATFORM_HEADER", c.RateLimit.PlatformHeader)
	c.RateLimit.TrustedProxies = envSliceOr("DOCS_RATE_TRUSTED_PROXIES", c.RateLimit.TrustedProxies)

	c.APIDocs.Enabled = envBoolOr("DOCS_API_PROXY_ENABLED", c.APIDocs.Enabled)
	c.APIDocs.UpstreamBase = envOr("DOCS_API_PROXY_UPSTREAM", c.APIDocs.UpstreamBase)
	c.APIDocs.ProxySecret = envOr("BUMP_PROXY_SECRET", c.APIDocs.ProxySecret)
	c.APIDocs.Timeout = envDurationOr("DOCS_API_PROXY_TIMEOUT", c.APIDocs.Timeout)
	c.APIDocs.CacheTTL = envDurationOr("DOCS_API_PROXY_CACHE_TTL", c.APIDocs.CacheTTL)
	c.APIDocs.CacheItems = envIntOr("DOCS_API_PROXY_CACHE_ITEMS", c.APIDocs.CacheItems)

	c.Markdown.Enabled = envBoolOr("DOCS_MARKDOWN_ENABLED", c.Markdown.Enabled)
	c.Markdown.Convert = envBoolOr("DOCS_MARKDOWN_CONVERT", c.Markdown.Convert)
	c.Markdown.MaxAge = envDurationOr("DOCS_MARKDOWN_MAX_AGE", c.Markdown.MaxAge)

	c.Metrics.Enabled = envBoolOr("DOCS_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = envOr("DOCS_METRICS_PATH", c.Metrics.Path)
	c.Metrics.Token = envOr("DOCS_METRICS_TOKEN", c.Metrics.Token)

	c.Browser.Headless = envBoolOr("DOCS_HEADLESS", c.Browser.Headless)
	c.Browser.MaxPages = envIntOr("DOCS_MAX_PAGES", c.Browser.MaxPages)
	c.Browser.NoSandbox = envBoolOr("DOCS_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("DOCS_BROWSER_BIN", c.Browser.BrowserBin)
	c.Browser.Stealth = envBoolOr("DOCS_STEALTH", c.Browser.Stealth)
	c.Browser.NavigationTimeout = envDurationOr("DOCS_NAV_TIMEOUT", c.Browser.NavigationTimeout)
	c.Browser.BlockedResourceTypes = envSliceOr("DOCS_BLOCKED_RESOURCES", c.Browser.BlockedResourceTypes)
	c.Browser.EscalationDelays = envDurationSliceOr("DOCS_ESCALATION_DELAYS", c.Browser.EscalationDelays)

	c.Indexer.DocsBaseURL = envOr("DOCS_INDEX_DOCS_BASE", c.Indexer.DocsBaseURL)
	c.Indexer.SitemapURL = envOr("DOCS_INDEX_SITEMAP", c.Indexer.SitemapURL)
	c.Indexer.BlogBaseURL = envOr("DOCS_INDEX_BLOG_BASE", c.Indexer.BlogBaseURL)
	c.Indexer.Concurrency = envIntOr("DOCS_INDEX_CONCURRENCY", c.Indexer.Concurrency)
	c.Indexer.RatePerSec = envFloatOr("DOCS_INDEX_RATE", c.Indexer.RatePerSec)
	c.Indexer.Retries = envIntOr("DOCS_INDEX_RETRIES", c.Indexer.Retries)
	c.Indexer.RetryMinDelay = envDurationOr("DOCS_INDEX_RETRY_MIN_DELAY", c.Indexer.RetryMinDelay)
	c.Indexer.RetryFactor = envFloatOr("DOCS_INDEX_RETRY_FACTOR", c.Indexer.RetryFactor)

	c.Algolia.AppID = envOr("ALGOLIA_APP_ID", c.Algolia.AppID)
	c.Algolia.AdminKey = envOr("ALGOLIA_ADMIN_API_KEY", c.Algolia.AdminKey)
	c.Algolia.IndexName = envOr("ALGOLIA_INDEX_NAME", c.Algolia.IndexName)

	c.YouTube.APIKey = envOr("YOUTUBE_API_KEY", c.YouTube.APIKey)
	c.YouTube.ChannelID = envOr("YOUTUBE_CHANNEL_ID", c.YouTube.ChannelID)

	c.Instruqt.APIKey = envOr("INSTRUQT_API_KEY", c.Instruqt.APIKey)
	c.Instruqt.Organization = envOr("INSTRUQT_ORG", c.Instruqt.Organization)

	c.Log.Level = envOr("DOCS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("DOCS_LOG_FORMAT", c.Log.Format)
}

// ErrMissingAlgolia is returned when an indexer runs without index credentials.
var ErrMissingAlgolia = errors.New("config: algolia configuration is missing: set ALGOLIA_APP_ID, ALGOLIA_ADMIN_API_KEY and ALGOLIA_INDEX_NAME")

// RequireUpstream reports whether the MCP proxy can reach its upstream.
func (c *Config) RequireUpstream() error {
	if c.Upstream.APIKey == "" {
		return errors.New("config: missing env var: KAPA_API_KEY")
	}
	if c.Upstream.URL == "" {
		return errors.New("config: upstream URL is empty")
	}
	return nil
}

// RequireAlgolia reports whether the search index can be written.
func (c *Config) RequireAlgolia() error {
	if c.Algolia.AppID == "" || c.Algolia.AdminKey == "" || c.Algolia.IndexName == "" {
		return ErrMissingAlgolia
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
