package queryfx

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/indexer"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/query"
	"github.com/0x5457/repograph/internal/semantic"
	"github.com/0x5457/repograph/internal/staleness"
	"github.com/0x5457/repograph/internal/storage"
)

// Params represents dependencies for the query service
type Params struct {
	fx.In

	Config   *configfx.Config
	Registry *parser.Registry
	Indexer  indexer.Indexer
	Store    storage.IndexStore
	Symbols  storage.SymbolStore `optional:"true"`
	Semantic *semantic.Index     `optional:"true"`
	Logger   *slog.Logger        `optional:"true"`
}

// NewDetector creates the staleness detector for the configured repository
func NewDetector(params Params) *staleness.Detector {
	return staleness.New(staleness.Options{
		Artifacts: params.Config.Artifacts(),
		Exclude:   params.Config.Exclude,
		Supports:  params.Registry.Supports,
		Logger:    params.Logger,
	})
}

// NewService creates the query service
func NewService(params Params, detector *staleness.Detector) *query.Service {
	return query.New(query.Deps{
		Indexer:   params.Indexer,
		Store:     params.Store,
		Symbols:   params.Symbols,
		Semantic:  params.Semantic,
		Staleness: detector,
	}, query.Options{
		Root:          params.Config.Root,
		ImpactDepth:   params.Config.ImpactDepth,
		CouplingLimit: params.Config.CouplingLimit,
		Logger:        params.Logger,
	})
}

// Module provides the query service
var Module = fx.Module("query",
	fx.Provide(
		NewDetector,
		NewService,
	),
)
