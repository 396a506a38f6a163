package storagefx

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/storage"
	"github.com/0x5457/repograph/internal/storage/memory"
	"github.com/0x5457/repograph/internal/storage/snapshot"
	"github.com/0x5457/repograph/internal/storage/sqlite"
	"github.com/0x5457/repograph/internal/storage/sqlvec"
)

// Params represents dependencies for storage components
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *configfx.Config
}

// NewIndexStore creates the snapshot store for the configured index path
func NewIndexStore(params Params) storage.IndexStore {
	return snapshot.New(params.Config.IndexPath)
}

// NewSymbolStore opens the sqlite mirror when a database path is configured.
// Without one it returns nil and the mirror is skipped.
func NewSymbolStore(params Params) (storage.SymbolStore, error) {
	if params.Config.SymbolDB == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(params.Config.SymbolDB), 0o755); err != nil {
		return nil, err
	}
	s, err := sqlite.New(params.Config.SymbolDB)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.StopHook(func(context.Context) error { return s.Close() }))
	return s, nil
}

// NewVectorStore opens the sqlite-vec store when a database path is
// configured and falls back to the in-memory store otherwise.
func NewVectorStore(params Params) (storage.VectorStore, error) {
	if params.Config.VectorDB == "" {
		return memory.NewInMemoryVectorStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(params.Config.VectorDB), 0o755); err != nil {
		return nil, err
	}
	// dimension is inferred at first insert if set to 0
	s, err := sqlvec.New(params.Config.VectorDB, params.Config.VectorDimension)
	if err != nil {
		return nil, err
	}
	params.Lifecycle.Append(fx.StopHook(func(context.Context) error { return s.Close() }))
	return s, nil
}

// Module provides storage components
var Module = fx.Module("storage",
	fx.Provide(
		NewIndexStore,
		NewSymbolStore,
		NewVectorStore,
	),
)
