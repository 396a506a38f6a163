package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	TransportStdio  = "stdio"
	TransportHTTP   = "http"
	TransportSSE    = "sse"
	TransportInproc = "inproc"
)

// Client wraps an initialized MCP client.
type Client struct{ c *client.Client }

// Dial connects over the named transport. stdio launches this executable
// with the mcp command and extra args; http and sse connect to address;
// inproc talks to srv directly.
func Dial(ctx context.Context, kind, address string, srv *server.MCPServer, args ...string) (*Client, error) {
	var (
		cli *client.Client
		err error
	)
	switch kind {
	case TransportStdio:
		self, exeErr := os.Executable()
		if exeErr != nil {
			return nil, exeErr
		}
		cli, err = client.NewStdioMCPClient(self, nil, append([]string{"mcp"}, args...)...)
	case TransportHTTP:
		cli, err = client.NewStreamableHttpClient(address)
	case TransportSSE:
		cli, err = client.NewSSEMCPClient(address)
	case TransportInproc:
		if srv == nil {
			return nil, fmt.Errorf("inproc transport needs a server")
		}
		cli, err = client.NewInProcessClient(srv)
	default:
		return nil, fmt.Errorf("unsupported transport: %s (supported: stdio, http, sse, inproc)", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}

	// ctx bounds the lifetime of sse and http streams
	if kind != TransportStdio {
		if err := cli.Start(ctx); err != nil {
			_ = cli.Close()
			return nil, fmt.Errorf("start mcp client: %w", err)
		}
	}

	ctxInit, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "repograph-cli", Version: serverVersion}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	if _, err := cli.Initialize(ctxInit, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("init mcp client: %w", err)
	}
	return &Client{c: cli}, nil
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return c.c.CallTool(ctx, mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
}

func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := c.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}
