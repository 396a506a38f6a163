package embeddings

import "context"

// Embedder turns batches of text into fixed-length vectors. Every vector
// returned by one embedder has the same dimension.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}
