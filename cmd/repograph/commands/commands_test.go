package commands

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolArgs(t *testing.T) {
	args, err := parseToolArgs([]string{"file=src/app.py", "depth=3", "threshold=0.5", "fuzzy=true", "q=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"file":      "src/app.py",
		"depth":     3,
		"threshold": 0.5,
		"fuzzy":     true,
		"q":         "a=b",
	}, args)

	_, err = parseToolArgs([]string{"novalue"})
	assert.Error(t, err)
}

func TestEnvironmentBinding(t *testing.T) {
	t.Setenv("REPOGRAPH_ROOT", "/srv/repo")
	t.Setenv("REPOGRAPH_EMBED_URL", "http://embed:8000")
	t.Setenv("REPOGRAPH_WORKERS", "3")

	e := &env{v: viper.New()}
	cmd := newRootCommand(e)
	require.NoError(t, cmd.ParseFlags(nil))

	s := e.settings()
	assert.Equal(t, "/srv/repo", s.Root)
	assert.Equal(t, "http://embed:8000", s.EmbedURL)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, "info", s.LogLevel)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("REPOGRAPH_ROOT", "/srv/repo")

	e := &env{v: viper.New()}
	cmd := newRootCommand(e)
	require.NoError(t, cmd.ParseFlags([]string{"--root", "/work", "--exclude", "gen/**,*.pb.go"}))

	s := e.settings()
	assert.Equal(t, "/work", s.Root)
	assert.Equal(t, []string{"gen/**", "*.pb.go"}, s.Exclude)
}

func TestCommandTree(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"index", "update", "watch", "mcp", "mcp-client", "callees", "callers", "impact",
		"coupling", "tests", "search", "stale", "duplicates", "symbol", "semantic",
	} {
		assert.Contains(t, names, want)
	}
}
