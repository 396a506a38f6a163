package constants

import "time"

const (
	// DataDir holds every artifact the tool writes inside a repository.
	DataDir          = ".repograph"
	DefaultIndexFile = "index.json"

	DefaultEmbedURL   = "http://localhost:8000/embed"
	DefaultEmbedder   = "local"
	DefaultLogLevel   = "info"
	DefaultEmbedBatch = 32
	DefaultTopK       = 10
	DefaultThreshold  = 0.3
	DefaultImpact     = 2
	DefaultSnippet    = 20
	DefaultCoupling   = 20
	DefaultDebounce   = 500 * time.Millisecond
)

// Embedder kinds accepted by the configuration.
const (
	EmbedderLocal = "local"
	EmbedderAPI   = "api"
	EmbedderNone  = "none"
)
