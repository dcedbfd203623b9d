package upstream

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/redpanda-data/docs-edge/config"
)

// NewDialer returns a Dialer that opens an authenticated streamable HTTP MCP
// client to cfg.URL and runs the initialize handshake. version is reported
// as the client version.
func NewDialer(cfg config.UpstreamConfig, version string) Dialer {
	return func(ctx context.Context) (Session, error) {
		if cfg.APIKey == "" {
			return nil, &Error{Kind: KindTerminal, Op: "connect", Err: ErrMissingAPIKey}
		}

		c, err := client.NewStreamableHttpClient(cfg.URL,
			transport.WithHTTPHeaders(map[string]string{
				"Authorization": "Bearer " + cfg.APIKey,
			}),
		)
		if err != nil {
			return nil, &Error{Kind: KindTerminal, Op: "connect", Err: err}
		}

		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, wrap("start", err)
		}

		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{
			Name:    cfg.ClientName,
			Version: version,
		}
		if _, err := c.Initialize(ctx, initReq); err != nil {
			_ = c.Close()
			return nil, wrap("initialize", err)
		}

		return c, nil
	}
}

// Search invokes the upstream knowledge-source search tool.
func Search(ctx context.Context, sess Session, tool, query string, topK int) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = map[string]any{
		"query": query,
		"top_k": topK,
	}

	res, err := sess.CallTool(ctx, req)
	if err != nil {
		return nil, wrap("call_tool", err)
	}
	if res == nil {
		return nil, &Error{Kind: KindTerminal, Op: "call_tool", Err: fmt.Errorf("empty result from %s", tool)}
	}
	return res, nil
}
