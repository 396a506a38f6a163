package appfx

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	"github.com/0x5457/repograph/internal/query"
)

func quiet(out io.Writer) fx.Option {
	return fx.Provide(
		fx.Annotate(func() io.Writer { return io.Discard }, fx.ResultTags(`name:"logOutput"`)),
		fx.Annotate(func() io.Writer { return out }, fx.ResultTags(`name:"cmdOutput"`)),
	)
}

func TestAppModule(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def foo():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"),
		[]byte("from a import foo\n\n\ndef bar():\n    return foo()\n"), 0o644))

	var (
		runner *cmdsfx.CommandRunner
		out    bytes.Buffer
	)
	app := NewAppWithConfig(Settings{
		Root:     root,
		SymbolDB: filepath.Join(t.TempDir(), "symbols.db"),
	}, quiet(&out), fx.Populate(&runner))

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()
	require.NotNil(t, runner)

	require.NoError(t, runner.RunIndex(ctx))
	assert.Contains(t, out.String(), "indexed 2 files")
	assert.FileExists(t, filepath.Join(root, ".repograph", "index.json"))

	out.Reset()
	require.NoError(t, runner.RunQuery(ctx, func(ctx context.Context, s *query.Service) (any, error) {
		return s.Callers(ctx, "foo")
	}))
	assert.Contains(t, out.String(), "b.py:bar")

	out.Reset()
	require.NoError(t, runner.RunUpdate(ctx))
	assert.Contains(t, out.String(), "up to date")
}

func TestQueryBeforeIndex(t *testing.T) {
	var (
		runner *cmdsfx.CommandRunner
		out    bytes.Buffer
	)
	app := NewAppWithConfig(Settings{Root: t.TempDir(), Embedder: "none"}, quiet(&out), fx.Populate(&runner))

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	err := runner.RunQuery(ctx, func(ctx context.Context, s *query.Service) (any, error) {
		return s.Callees(ctx, "foo")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the index command first")
}

func TestUnknownEmbedder(t *testing.T) {
	app := NewAppWithConfig(Settings{Root: t.TempDir(), Embedder: "bogus"},
		quiet(io.Discard), fx.Invoke(func(*cmdsfx.CommandRunner) {}))
	assert.Error(t, app.Err())
}
