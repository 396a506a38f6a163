package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/embeddings"
	"github.com/0x5457/repograph/internal/indexer/pipeline"
	"github.com/0x5457/repograph/internal/parser/parserfx"
	"github.com/0x5457/repograph/internal/query"
	"github.com/0x5457/repograph/internal/semantic"
	"github.com/0x5457/repograph/internal/storage/snapshot"
)

func newService(t *testing.T) *query.Service {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "from a import foo\n\n\ndef bar():\n    return foo()\n",
	}
	for rel, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(body), 0o644))
	}
	return query.New(query.Deps{
		Indexer:  pipeline.New(parserfx.NewRegistry(), pipeline.Options{ParseWorkers: 1}),
		Store:    snapshot.New(filepath.Join(root, ".repograph", "index.json")),
		Semantic: semantic.New(embeddings.NewLocal(0), nil, semantic.Options{}),
	}, query.Options{Root: root})
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolFunc func() mcp.Tool
		toolName string
		required []string
	}{
		{newIndexTool, "index", nil},
		{newUpdateTool, "update", nil},
		{newCalleesTool, "callees", []string{"symbol"}},
		{newCallersTool, "callers", []string{"symbol"}},
		{newImpactTool, "impact", []string{"file"}},
		{newCouplingTool, "coupling", []string{"file"}},
		{newTestsTool, "tests", []string{"symbol"}},
		{newSearchTool, "search", []string{"query"}},
		{newStaleTool, "stale", nil},
		{newDuplicatesTool, "duplicates", nil},
		{newSymbolTool, "symbol", []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.toolName, func(t *testing.T) {
			tool := tt.toolFunc()
			assert.Equal(t, tt.toolName, tool.Name)
			assert.NotEmpty(t, tool.Description)
			for _, p := range tt.required {
				assert.Contains(t, tool.InputSchema.Properties, p)
				assert.Contains(t, tool.InputSchema.Required, p)
			}
		})
	}
}

func TestMissingArgumentsAreToolErrors(t *testing.T) {
	ctx := context.Background()
	srv := &Server{svc: newService(t)}
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"callees": srv.handleCallees,
		"callers": srv.handleCallers,
		"impact":  srv.handleImpact,
		"tests":   srv.handleTests,
		"search":  srv.handleSearch,
		"symbol":  srv.handleSymbol,
	}
	for name, h := range handlers {
		result, err := h(ctx, call(name, map[string]any{}))
		require.NoError(t, err, name)
		assert.True(t, result.IsError, name)
		assert.NotEmpty(t, result.Content, name)
	}
}

func TestNotIndexedIsToolError(t *testing.T) {
	srv := &Server{svc: newService(t)}
	result, err := srv.handleCallers(context.Background(), call("callers", map[string]any{"symbol": "foo"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNilServiceIsToolError(t *testing.T) {
	srv := &Server{}
	result, err := srv.handleStale(context.Background(), call("stale", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestIndexThenQuery(t *testing.T) {
	ctx := context.Background()
	srv := &Server{svc: newService(t)}

	result, err := srv.handleIndex(ctx, call("index", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = srv.handleCallers(ctx, call("callers", map[string]any{"symbol": "foo"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	content := result.StructuredContent.(map[string]any)
	assert.Equal(t, "foo", content["symbol"])
	assert.NotEmpty(t, content["callers"])

	result, err = srv.handleImpact(ctx, call("impact", map[string]any{"file": "a.py", "depth": 3}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.NotNil(t, result.StructuredContent)

	result, err = srv.handleImpact(ctx, call("impact", map[string]any{"file": "missing.py"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleSymbol(ctx, call("symbol", map[string]any{"name": "bar"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}
