package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0x5457/repograph/internal/analysis/impact"
	"github.com/0x5457/repograph/internal/logging"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/query"
	"github.com/0x5457/repograph/internal/semantic"
)

const (
	serverName    = "repograph/mcp"
	serverVersion = "0.1.0"
)

// Server exposes the query service as MCP tools.
type Server struct {
	svc *query.Service
	log *slog.Logger
}

// New returns an MCP server with one tool per query entry point. A nil
// service still lists the tools; every call then reports an error.
func New(svc *query.Service, log *slog.Logger) *server.MCPServer {
	srv := &Server{svc: svc, log: logging.OrDiscard(log)}
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(newIndexTool(), srv.handleIndex)
	s.AddTool(newUpdateTool(), srv.handleUpdate)
	s.AddTool(newCalleesTool(), srv.handleCallees)
	s.AddTool(newCallersTool(), srv.handleCallers)
	s.AddTool(newImpactTool(), srv.handleImpact)
	s.AddTool(newCouplingTool(), srv.handleCoupling)
	s.AddTool(newTestsTool(), srv.handleTests)
	s.AddTool(newSearchTool(), srv.handleSearch)
	s.AddTool(newStaleTool(), srv.handleStale)
	s.AddTool(newDuplicatesTool(), srv.handleDuplicates)
	s.AddTool(newSymbolTool(), srv.handleSymbol)
	return s
}

// Tool definitions
func newIndexTool() mcp.Tool {
	return mcp.NewTool(
		"index",
		mcp.WithDescription("Build the repository index from scratch"),
	)
}

func newUpdateTool() mcp.Tool {
	return mcp.NewTool(
		"update",
		mcp.WithDescription("Apply an incremental update for files changed since the last build"),
	)
}

func newCalleesTool() mcp.Tool {
	return mcp.NewTool(
		"callees",
		mcp.WithDescription("List what a symbol calls and where the targets are defined"),
		mcp.WithString("symbol", mcp.Description("Qualified (file:name), dotted or short name"), mcp.Required()),
	)
}

func newCallersTool() mcp.Tool {
	return mcp.NewTool(
		"callers",
		mcp.WithDescription("List symbols calling a name; exact matches first, fuzzy matches flagged"),
		mcp.WithString("symbol", mcp.Description("Qualified (file:name), dotted or short name"), mcp.Required()),
	)
}

func newImpactTool() mcp.Tool {
	return mcp.NewTool(
		"impact",
		mcp.WithDescription("Direct and transitive callers, tests and endpoints affected by changing a file"),
		mcp.WithString("file", mcp.Description("Repository-relative file path"), mcp.Required()),
		mcp.WithNumber("depth", mcp.Description("Reverse traversal depth"), mcp.DefaultNumber(impact.DefaultDepth)),
		mcp.WithBoolean("fuzzy", mcp.Description("Also follow fuzzy name matches"), mcp.DefaultBool(false)),
	)
}

func newCouplingTool() mcp.Tool {
	return mcp.NewTool(
		"coupling",
		mcp.WithDescription("Files most coupled to a file by calls, imports, dependencies and names"),
		mcp.WithString("file", mcp.Description("Repository-relative file path"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of files")),
	)
}

func newTestsTool() mcp.Tool {
	return mcp.NewTool(
		"tests",
		mcp.WithDescription("Candidate tests for a symbol, tagged with the signals that matched"),
		mcp.WithString("symbol", mcp.Description("Qualified (file:name), dotted or short name"), mcp.Required()),
	)
}

func newSearchTool() mcp.Tool {
	return mcp.NewTool(
		"search",
		mcp.WithDescription("Semantic code search by natural language query"),
		mcp.WithString("query", mcp.Description("Natural language query"), mcp.Required()),
		mcp.WithNumber("top_k", mcp.Description("Top K results")),
		mcp.WithNumber("threshold", mcp.Description("Minimum cosine score (default 0.3)")),
	)
}

func newStaleTool() mcp.Tool {
	return mcp.NewTool(
		"stale",
		mcp.WithDescription("Whether the stored index is older than the repository"),
	)
}

func newDuplicatesTool() mcp.Tool {
	return mcp.NewTool(
		"duplicates",
		mcp.WithDescription("Clusters of structurally identical functions"),
	)
}

func newSymbolTool() mcp.Tool {
	return mcp.NewTool(
		"symbol",
		mcp.WithDescription("Exact symbol lookup by qualified, dotted or short name"),
		mcp.WithString("name", mcp.Description("Symbol name"), mcp.Required()),
	)
}

// Handlers

func (srv *Server) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		srv.log.Debug("tool failed", "tool", tool, "err", err)
		if errors.Is(err, models.ErrNotIndexed) {
			return mcp.NewToolResultError(err.Error() + ", call the index tool first"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructuredOnly(v), nil
}

var errNoService = errors.New("query service not initialized")

func (srv *Server) handleIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Build(ctx)
	return srv.result("index", res, err)
}

func (srv *Server) handleUpdate(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Update(ctx)
	return srv.result("update", res, err)
}

func (srv *Server) handleCallees(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Callees(ctx, symbol)
	return srv.result("callees", map[string]any{"symbol": symbol, "callees": res}, err)
}

func (srv *Server) handleCallers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Callers(ctx, symbol)
	return srv.result("callers", map[string]any{"symbol": symbol, "callers": res}, err)
}

func (srv *Server) handleImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Impact(ctx, file, impact.Options{
		Depth: req.GetInt("depth", 0),
		Fuzzy: req.GetBool("fuzzy", false),
	})
	return srv.result("impact", res, err)
}

func (srv *Server) handleCoupling(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Coupling(ctx, file, req.GetInt("limit", 0))
	return srv.result("coupling", map[string]any{"file": file, "coupled": res}, err)
}

func (srv *Server) handleTests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symbol, err := req.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.TestsFor(ctx, symbol)
	return srv.result("tests", map[string]any{"symbol": symbol, "tests": res}, err)
}

func (srv *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	opt := semantic.SearchOptions{TopK: req.GetInt("top_k", 0)}
	if _, ok := req.GetArguments()["threshold"]; ok {
		opt.Threshold = semantic.Threshold(req.GetFloat("threshold", 0))
	}
	hits, err := srv.svc.Search(ctx, q, opt)
	return srv.result("search", map[string]any{"query": q, "hits": hits}, err)
}

func (srv *Server) handleStale(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Stale(ctx)
	return srv.result("stale", res, err)
}

func (srv *Server) handleDuplicates(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.Duplicates(ctx)
	return srv.result("duplicates", map[string]any{"clusters": res}, err)
}

func (srv *Server) handleSymbol(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if srv.svc == nil {
		return mcp.NewToolResultError(errNoService.Error()), nil
	}
	res, err := srv.svc.FindSymbol(ctx, name)
	if err != nil {
		return srv.result("symbol", nil, fmt.Errorf("lookup %s: %w", name, err))
	}
	return srv.result("symbol", map[string]any{"symbols": res}, nil)
}
