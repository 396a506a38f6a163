package semanticfx

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/embeddings"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/semantic"
	"github.com/0x5457/repograph/internal/storage"
)

// Params represents dependencies for the semantic index
type Params struct {
	fx.In

	Config   *configfx.Config
	Embedder embeddings.Embedder        `optional:"true"`
	VecStore storage.VectorStore        `optional:"true"`
	Logger   *slog.Logger               `optional:"true"`
	Progress func(models.IndexProgress) `optional:"true"`
}

// NewSemanticIndex creates the embedding overlay
func NewSemanticIndex(params Params) *semantic.Index {
	return semantic.New(params.Embedder, params.VecStore, semantic.Options{
		BatchSize:    params.Config.EmbedBatch,
		SnippetLines: params.Config.SnippetLines,
		Threshold:    params.Config.Threshold,
		TopK:         params.Config.TopK,
		Source:       semantic.DirSource(params.Config.Root),
		Logger:       params.Logger,
		Progress:     params.Progress,
	})
}

// Module provides semantic search components
var Module = fx.Module("semantic",
	fx.Provide(NewSemanticIndex),
)
