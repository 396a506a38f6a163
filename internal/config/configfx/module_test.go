package configfx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/constants"
)

func TestConfigModule(t *testing.T) {
	root := t.TempDir()
	var config *Config
	app := fx.New(
		Module,
		fx.Supply(
			fx.Annotate(root, fx.ResultTags(`name:"root"`)),
			fx.Annotate("/tmp/test.json", fx.ResultTags(`name:"indexPath"`)),
			fx.Annotate("http://localhost:9000/embed", fx.ResultTags(`name:"embedURL"`)),
			fx.Annotate("/tmp/symbols.db", fx.ResultTags(`name:"symbolDB"`)),
			fx.Annotate([]string{"gen/**"}, fx.ResultTags(`name:"exclude"`)),
		),
		fx.Populate(&config),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	assert.NotNil(t, config)
	assert.Equal(t, root, config.Root)
	assert.Equal(t, "/tmp/test.json", config.IndexPath)
	assert.Equal(t, constants.EmbedderAPI, config.Embedder)
	assert.Equal(t, "http://localhost:9000/embed", config.EmbedURL)
	assert.Equal(t, []string{"gen/**"}, config.Exclude)
	assert.Equal(t, []string{"/tmp/test.json", "/tmp/symbols.db"}, config.Artifacts())
}

func TestConfigDefaults(t *testing.T) {
	var config *Config
	app := fx.New(
		Module,
		fx.Supply(fx.Annotate("", fx.ResultTags(`name:"embedURL"`))),
		fx.Populate(&config),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	assert.NotNil(t, config)
	assert.True(t, filepath.IsAbs(config.Root))
	assert.Equal(t, filepath.Join(config.Root, ".repograph", "index.json"), config.IndexPath)
	assert.Equal(t, constants.EmbedderLocal, config.Embedder)
	assert.Equal(t, constants.DefaultEmbedURL, config.EmbedURL) // Default value
	assert.Equal(t, constants.DefaultTopK, config.TopK)
	assert.InDelta(t, 0.3, config.Threshold, 1e-9)
	assert.Positive(t, config.Workers)
}
