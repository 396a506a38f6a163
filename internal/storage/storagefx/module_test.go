package storagefx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/storage"
	"github.com/0x5457/repograph/internal/storage/memory"
	"github.com/0x5457/repograph/internal/storage/sqlite"
)

func TestStorageModuleDefaults(t *testing.T) {
	var (
		index   storage.IndexStore
		symbols storage.SymbolStore
		vectors storage.VectorStore
	)
	root := t.TempDir()
	app := fx.New(
		configfx.Module,
		Module,
		fx.Supply(fx.Annotate(root, fx.ResultTags(`name:"root"`))),
		fx.Populate(&index, &symbols, &vectors),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer func() {
		require.NoError(t, app.Stop(ctx))
	}()

	assert.Equal(t, filepath.Join(root, ".repograph", "index.json"), index.Path())
	assert.Nil(t, symbols)
	assert.IsType(t, &memory.InMemoryVectorStore{}, vectors)
}

func TestStorageModuleSymbolDB(t *testing.T) {
	var symbols storage.SymbolStore
	db := filepath.Join(t.TempDir(), "nested", "symbols.db")
	app := fx.New(
		configfx.Module,
		Module,
		fx.Supply(
			fx.Annotate(t.TempDir(), fx.ResultTags(`name:"root"`)),
			fx.Annotate(db, fx.ResultTags(`name:"symbolDB"`)),
		),
		fx.Populate(&symbols),
	)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.IsType(t, &sqlite.SymbolStore{}, symbols)
	assert.FileExists(t, db)
	require.NoError(t, app.Stop(ctx))
}
