package docsmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/models"
	"github.com/redpanda-data/docs-edge/upstream"
)

const (
	msgUpstreamFailed      = "Upstream Kapa MCP request failed."
	msgUpstreamRetryFailed = "Upstream Kapa MCP request failed after retry."
	msgException           = "Unexpected error while answering the question."
)

// Asker answers questions by forwarding them to the upstream search tool.
// Ask never returns an error: every outcome, including panics, is reported
// as a single text content item.
type Asker struct {
	mgr            *upstream.Manager
	tool           string
	connectTimeout time.Duration
	callTimeout    time.Duration
	metrics        *metrics.Collector
}

// NewAsker creates an Asker over mgr. m may be nil.
func NewAsker(mgr *upstream.Manager, cfg config.UpstreamConfig, m *metrics.Collector) *Asker {
	return &Asker{
		mgr:            mgr,
		tool:           cfg.ToolName,
		connectTimeout: cfg.ConnectTimeout,
		callTimeout:    cfg.CallTimeout,
		metrics:        m,
	}
}

// Ask validates the question, calls the upstream tool and retries once
// after a reset if the first failure is transient. topK may be nil.
func (a *Asker) Ask(ctx context.Context, question string, topK *int) (res *mcp.CallToolResult) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ask panicked", "panic", r)
			outcome = models.ToolErrException
			res = errorResult(&models.ToolError{
				Kind:       models.ToolErrException,
				Message:    msgException,
				Detail:     fmt.Sprint(r),
				DurationMs: time.Since(start).Milliseconds(),
			})
		}
		a.metrics.RecordToolCall(outcome, time.Since(start))
	}()

	q, verr := models.NewToolQuery(question, topK)
	if verr != nil {
		outcome = verr.Kind
		return errorResult(verr)
	}

	out, err := a.attempt(ctx, q, "kapa_connect", "kapa_callTool")
	if err == nil {
		return normalize(out)
	}

	message := msgUpstreamFailed
	if upstream.Classify(err).Transient() {
		slog.Warn("upstream call failed, retrying", "error", err, "kind", upstream.Classify(err).String())
		a.mgr.Reset()
		a.metrics.RecordReset()
		a.metrics.RecordRetry()

		out, err = a.attempt(ctx, q, "kapa_reconnect", "kapa_callTool_retry")
		if err == nil {
			return normalize(out)
		}
		message = msgUpstreamRetryFailed
	}

	kind := models.ToolErrUpstreamError
	var pe *upstream.PanicError
	switch {
	case errors.As(err, &pe):
		kind, message = models.ToolErrException, msgException
	case upstream.Classify(err) == upstream.KindTimeout:
		kind = models.ToolErrTimeout
	}
	outcome = kind
	slog.Error("upstream call failed", "error", err, "kind", kind, "duration", time.Since(start))

	return errorResult(&models.ToolError{
		Kind:       kind,
		Message:    message,
		Detail:     err.Error(),
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// attempt runs one connect + call pass, each under its own budget.
func (a *Asker) attempt(ctx context.Context, q models.ToolQuery, connectLabel, callLabel string) (*mcp.CallToolResult, error) {
	sess, err := upstream.WithTimeout(ctx, a.connectTimeout, connectLabel, a.mgr.Ensure)
	if err != nil {
		return nil, err
	}
	return upstream.WithTimeout(ctx, a.callTimeout, callLabel, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return upstream.Search(ctx, sess, a.tool, q.Question, q.TopK)
	})
}

// Handle adapts Ask to an mcp-go tool handler.
func (a *Asker) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return a.Ask(ctx, req.GetString("question", ""), topKArg(req.GetArguments()["top_k"])), nil
}

// topKArg reads an optional integral argument. JSON decoding yields float64;
// in-process callers may pass ints. Values are clamped before conversion so
// huge inputs cannot overflow. Non-integral values are ignored and the
// default applies.
func topKArg(v any) *int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return nil
		}
		f = x
	default:
		return nil
	}
	if f != math.Trunc(f) {
		return nil
	}
	k := int(math.Max(models.MinTopK, math.Min(models.MaxTopK, f)))
	return &k
}

func errorResult(te *models.ToolError) *mcp.CallToolResult {
	b, err := json.Marshal(te)
	if err != nil {
		b = []byte(`{"error":"exception","message":"failed to encode error"}`)
	}
	return mcp.NewToolResultText(string(b))
}

// normalize reduces an upstream result to exactly one text content item.
// Multiple text items are joined; anything else is serialized as JSON.
func normalize(res *mcp.CallToolResult) *mcp.CallToolResult {
	if res.IsError {
		text := joinText(res.Content)
		return errorResult(&models.ToolError{
			Kind:    models.ToolErrUpstreamError,
			Message: msgUpstreamFailed,
			Detail:  text,
		})
	}

	if len(res.Content) == 1 {
		if tc, ok := mcp.AsTextContent(res.Content[0]); ok {
			return mcp.NewToolResultText(tc.Text)
		}
	}

	allText := len(res.Content) > 0
	for _, c := range res.Content {
		if _, ok := mcp.AsTextContent(c); !ok {
			allText = false
			break
		}
	}
	if allText {
		return mcp.NewToolResultText(joinText(res.Content))
	}

	payload := any(res.Content)
	if res.StructuredContent != nil {
		payload = res.StructuredContent
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return errorResult(&models.ToolError{
			Kind:    models.ToolErrException,
			Message: msgException,
			Detail:  err.Error(),
		})
	}
	return mcp.NewToolResultText(string(b))
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
