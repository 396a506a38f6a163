package appfx

import (
	"go.uber.org/fx"

	"github.com/0x5457/repograph/cmd/cmdsfx"
	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/embeddings/embeddingsfx"
	"github.com/0x5457/repograph/internal/indexer/indexerfx"
	"github.com/0x5457/repograph/internal/logging/loggingfx"
	"github.com/0x5457/repograph/internal/mcp/mcpfx"
	"github.com/0x5457/repograph/internal/parser/parserfx"
	"github.com/0x5457/repograph/internal/query/queryfx"
	"github.com/0x5457/repograph/internal/semantic/semanticfx"
	"github.com/0x5457/repograph/internal/storage/storagefx"
)

// Module combines all application modules
var Module = fx.Options(
	configfx.Module,
	loggingfx.Module,
	fx.WithLogger(loggingfx.EventLogger),
	parserfx.Module,
	embeddingsfx.Module,
	storagefx.Module,
	indexerfx.Module,
	semanticfx.Module,
	queryfx.Module,
	mcpfx.Module,
	cmdsfx.Module,
)

// Settings are the externally supplied configuration values. Empty fields
// take the configuration defaults.
type Settings struct {
	Root      string
	IndexPath string
	Embedder  string
	EmbedURL  string
	SymbolDB  string
	VectorDB  string
	LogLevel  string
	Workers   int
	Exclude   []string
}

// NewAppWithConfig creates an Fx app with the given configuration values
func NewAppWithConfig(s Settings, opts ...fx.Option) *fx.App {
	return fx.New(
		Module,
		fx.Supply(
			fx.Annotate(s.Root, fx.ResultTags(`name:"root"`)),
			fx.Annotate(s.IndexPath, fx.ResultTags(`name:"indexPath"`)),
			fx.Annotate(s.Embedder, fx.ResultTags(`name:"embedder"`)),
			fx.Annotate(s.EmbedURL, fx.ResultTags(`name:"embedURL"`)),
			fx.Annotate(s.SymbolDB, fx.ResultTags(`name:"symbolDB"`)),
			fx.Annotate(s.VectorDB, fx.ResultTags(`name:"vectorDB"`)),
			fx.Annotate(s.LogLevel, fx.ResultTags(`name:"logLevel"`)),
			fx.Annotate(s.Workers, fx.ResultTags(`name:"workers"`)),
			fx.Annotate(s.Exclude, fx.ResultTags(`name:"exclude"`)),
		),
		fx.Options(opts...),
	)
}

// NewApp creates an Fx app with default configuration
func NewApp() *fx.App {
	return fx.New(Module)
}
