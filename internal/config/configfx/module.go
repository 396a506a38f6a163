package configfx

import (
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/fx"

	"github.com/0x5457/repograph/internal/constants"
)

// Config holds the application configuration
type Config struct {
	Root      string
	IndexPath string
	// Embedder is one of local, api or none.
	Embedder        string
	EmbedURL        string
	EmbedBatch      int
	VectorDimension int
	SymbolDB        string // optional sqlite mirror of symbols and calls
	VectorDB        string // optional sqlite-vec database
	LogLevel        string
	Workers         int
	Exclude         []string
	ImpactDepth     int
	Threshold       float64
	TopK            int
	SnippetLines    int
	CouplingLimit   int
	Debounce        time.Duration
}

// Params represents the parameters needed to create configuration
type Params struct {
	fx.In

	Root      string   `name:"root"      optional:"true"`
	IndexPath string   `name:"indexPath" optional:"true"`
	Embedder  string   `name:"embedder"  optional:"true"`
	EmbedURL  string   `name:"embedURL"  optional:"true"`
	SymbolDB  string   `name:"symbolDB"  optional:"true"`
	VectorDB  string   `name:"vectorDB"  optional:"true"`
	LogLevel  string   `name:"logLevel"  optional:"true"`
	Workers   int      `name:"workers"   optional:"true"`
	Exclude   []string `name:"exclude"   optional:"true"`
}

// NewConfig creates a new configuration with defaults
func NewConfig(params Params) *Config {
	config := &Config{
		Root:          params.Root,
		IndexPath:     params.IndexPath,
		Embedder:      params.Embedder,
		EmbedURL:      params.EmbedURL,
		EmbedBatch:    constants.DefaultEmbedBatch,
		SymbolDB:      params.SymbolDB,
		VectorDB:      params.VectorDB,
		LogLevel:      params.LogLevel,
		Workers:       params.Workers,
		Exclude:       params.Exclude,
		ImpactDepth:   constants.DefaultImpact,
		Threshold:     constants.DefaultThreshold,
		TopK:          constants.DefaultTopK,
		SnippetLines:  constants.DefaultSnippet,
		CouplingLimit: constants.DefaultCoupling,
		Debounce:      constants.DefaultDebounce,
	}

	// Set defaults
	if config.Root == "" {
		config.Root = "."
	}
	if abs, err := filepath.Abs(config.Root); err == nil {
		config.Root = abs
	}
	if config.IndexPath == "" {
		config.IndexPath = DefaultIndexPath(config.Root)
	}
	if config.Embedder == "" {
		config.Embedder = constants.DefaultEmbedder
		if config.EmbedURL != "" {
			config.Embedder = constants.EmbedderAPI
		}
	}
	if config.EmbedURL == "" {
		config.EmbedURL = constants.DefaultEmbedURL
	}
	if config.LogLevel == "" {
		config.LogLevel = constants.DefaultLogLevel
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	return config
}

// DefaultIndexPath is where the snapshot of root lives unless configured.
func DefaultIndexPath(root string) string {
	return filepath.Join(root, constants.DataDir, constants.DefaultIndexFile)
}

// Artifacts lists every file this configuration writes.
func (c *Config) Artifacts() []string {
	out := []string{c.IndexPath}
	for _, p := range []string{c.SymbolDB, c.VectorDB} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
