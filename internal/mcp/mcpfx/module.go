package mcpfx

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"

	appmcp "github.com/0x5457/repograph/internal/mcp"
	"github.com/0x5457/repograph/internal/query"
)

// Params represents dependencies for MCP server
type Params struct {
	fx.In

	Service *query.Service
	Logger  *slog.Logger `optional:"true"`
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(params Params) *server.MCPServer {
	return appmcp.New(params.Service, params.Logger)
}

// Module provides MCP server components
var Module = fx.Module("mcp",
	fx.Provide(NewMCPServer),
)
