package indexerfx

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/indexer"
	"github.com/0x5457/repograph/internal/indexer/pipeline"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
)

// Params represents dependencies for the indexer
type Params struct {
	fx.In

	Registry *parser.Registry
	Config   *configfx.Config
	Logger   *slog.Logger               `optional:"true"`
	Progress func(models.IndexProgress) `optional:"true"`
}

// NewIndexer creates the scanning pipeline
func NewIndexer(params Params) indexer.Indexer {
	return pipeline.New(params.Registry, pipeline.Options{
		ParseWorkers: params.Config.Workers,
		Exclude:      params.Config.Exclude,
		Logger:       params.Logger,
		Progress:     params.Progress,
	})
}

// Module provides indexer components
var Module = fx.Module("indexer",
	fx.Provide(NewIndexer),
)
