// Package docsmcp exposes the Redpanda documentation search tool over MCP.
package docsmcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redpanda-data/docs-edge/config"
)

// ToolName is the name clients call.
const ToolName = "ask_redpanda_question"

const toolDescription = "Search the official Redpanda documentation and return the most relevant sections from it for a user query. " +
	"Each returned section includes the url and its actual content in markdown. " +
	"Use this tool for all queries that require Redpanda knowledge. " +
	"Results are ordered by relevance, with the most relevant result returned first."

const instructions = "Use ask_redpanda_question for any question about Redpanda, " +
	"Redpanda Cloud, Redpanda Connect or Redpanda Console."

// NewTool returns the tool definition for ask_redpanda_question.
func NewTool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithTitleAnnotation("Search Redpanda Sources"),
		mcp.WithDescription(toolDescription),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to search the Redpanda documentation for."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of results to return (1-15). Defaults to 5 for optimal token usage."),
			mcp.Min(1),
			mcp.Max(15),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// NewServer builds the MCP server with the search tool registered.
func NewServer(cfg config.MCPConfig, asker *Asker) *server.MCPServer {
	s := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
		server.WithToolHandlerMiddleware(logCalls),
		server.WithRecovery(),
	)
	s.AddTool(NewTool(), asker.Handle)
	return s
}

// NewStreamableServer wraps s in the streamable HTTP transport served at
// cfg.Path.
func NewStreamableServer(s *server.MCPServer, cfg config.MCPConfig) *server.StreamableHTTPServer {
	opts := []server.StreamableHTTPOption{
		server.WithEndpointPath(cfg.Path),
		server.WithStateLess(cfg.Stateless),
	}
	if !cfg.Streaming {
		opts = append(opts, server.WithDisableStreaming(true))
	}
	return server.NewStreamableHTTPServer(s, opts...)
}

func logCalls(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		slog.Info("tool call",
			"tool", req.Params.Name,
			"duration", time.Since(start),
		)
		return res, err
	}
}
