package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkTools(t *testing.T, cli *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tools, err := cli.ListTools(ctx)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"index", "update", "callees", "callers", "impact", "coupling",
		"tests", "search", "stale", "duplicates", "symbol",
	}, names)

	res, err := cli.Call(ctx, "stale", map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStreamableHTTPTransport(t *testing.T) {
	ts := httptest.NewServer(server.NewStreamableHTTPServer(New(nil, nil)))
	t.Cleanup(ts.Close)

	cli, err := Dial(context.Background(), TransportHTTP, ts.URL, nil)
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()
	checkTools(t, cli)
}

func TestSSETransport(t *testing.T) {
	sse := server.NewSSEServer(New(nil, nil), server.WithStaticBasePath("/mcp"))
	mux := http.NewServeMux()
	mux.Handle("/mcp/sse", sse.SSEHandler())
	mux.Handle("/mcp/message", sse.MessageHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cli, err := Dial(context.Background(), TransportSSE, ts.URL+"/mcp/sse", nil)
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()
	checkTools(t, cli)
}

func TestInProcessTransport(t *testing.T) {
	cli, err := Dial(context.Background(), TransportInproc, "", New(nil, nil))
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()
	checkTools(t, cli)
}

func TestUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), "carrier-pigeon", "", nil)
	assert.Error(t, err)
}
