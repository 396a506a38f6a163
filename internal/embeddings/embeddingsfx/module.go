package embeddingsfx

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/config/configfx"
	"github.com/0x5457/repograph/internal/constants"
	"github.com/0x5457/repograph/internal/embeddings"
)

// Params represents dependencies for embeddings components
type Params struct {
	fx.In

	Config *configfx.Config
	Logger *slog.Logger `optional:"true"`
}

// NewEmbedder creates the configured embedder. The none kind yields a nil
// embedder, which disables semantic search.
func NewEmbedder(params Params) (embeddings.Embedder, error) {
	switch params.Config.Embedder {
	case constants.EmbedderAPI:
		return embeddings.NewApi(params.Config.EmbedURL), nil
	case constants.EmbedderLocal:
		return embeddings.NewLocal(params.Config.VectorDimension), nil
	case constants.EmbedderNone:
		if params.Logger != nil {
			params.Logger.Info("semantic search disabled")
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedder %q (supported: %s, %s, %s)",
			params.Config.Embedder, constants.EmbedderLocal, constants.EmbedderAPI, constants.EmbedderNone)
	}
}

// Module provides embeddings components
var Module = fx.Module("embeddings",
	fx.Provide(NewEmbedder),
)
