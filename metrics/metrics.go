// Package metrics exposes Prometheus counters for the docs edge services.
//
// All Record* methods are safe to call on a nil *Collector, which records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docs_edge"

// Collector owns a registry and the metrics registered in it.
type Collector struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	toolDuration    prometheus.Histogram
	upstreamRetries prometheus.Counter
	upstreamResets  prometheus.Counter
	rateLimited     prometheus.Counter
	classified      *prometheus.CounterVec
	apiDocs         *prometheus.CounterVec
	markdown        *prometheus.CounterVec
	indexed         *prometheus.CounterVec
}

// New creates a Collector. If registry is nil a fresh one is created with
// the Go runtime and process collectors attached.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by outcome (ok or error kind).",
		}, []string{"outcome"}),
		toolDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Help:      "End-to-end tool call latency including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 22, 30, 60},
		}),
		upstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Retries issued after a transient upstream failure.",
		}),
		upstreamResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "connection_resets_total",
			Help:      "Times the shared upstream connection was discarded.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-identity limiter.",
		}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "requests_total",
			Help:      "Inbound MCP endpoint requests by classifier decision.",
		}, []string{"decision"}),
		apiDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api_docs",
			Name:      "requests_total",
			Help:      "API reference proxy requests by result.",
		}, []string{"result"}),
		markdown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "site",
			Name:      "markdown_responses_total",
			Help:      "Markdown negotiation responses by content source.",
		}, []string{"source"}),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "records_total",
			Help:      "Search records handled by indexer source and action.",
		}, []string{"source", "action"}),
	}

	registry.MustRegister(
		c.toolCalls,
		c.toolDuration,
		c.upstreamRetries,
		c.upstreamResets,
		c.rateLimited,
		c.classified,
		c.apiDocs,
		c.markdown,
		c.indexed,
	)
	return c
}

// RecordToolCall records one finished tool invocation. outcome is "ok" or
// the tool error kind.
func (c *Collector) RecordToolCall(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(outcome).Inc()
	c.toolDuration.Observe(d.Seconds())
}

// RecordRetry records a retry after a transient upstream failure.
func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.upstreamRetries.Inc()
}

// RecordReset records a discarded upstream connection.
func (c *Collector) RecordReset() {
	if c == nil {
		return
	}
	c.upstreamResets.Inc()
}

// RecordRateLimited records a 429.
func (c *Collector) RecordRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

// RecordClassification records the classifier decision for a request:
// "health", "browser", "method_not_allowed" or "protocol".
func (c *Collector) RecordClassification(decision string) {
	if c == nil {
		return
	}
	c.classified.WithLabelValues(decision).Inc()
}

// RecordAPIDocs records an API reference proxy result such as "hit",
// "miss", "passthrough" or "error".
func (c *Collector) RecordAPIDocs(result string) {
	if c == nil {
		return
	}
	c.apiDocs.WithLabelValues(result).Inc()
}

// RecordMarkdown records a markdown response by source ("markdown" or
// "converted").
func (c *Collector) RecordMarkdown(source string) {
	if c == nil {
		return
	}
	c.markdown.WithLabelValues(source).Inc()
}

// RecordIndexed adds n records for an indexer source and action ("add",
// "update", "skip", "save").
func (c *Collector) RecordIndexed(source, action string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.indexed.WithLabelValues(source, action).Add(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
