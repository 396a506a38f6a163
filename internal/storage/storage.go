package storage

import (
	"context"

	"github.com/0x5457/repograph/internal/models"
)

// IndexStore persists whole index generations. Save never leaves a partial
// document behind.
type IndexStore interface {
	// Load returns models.ErrNotIndexed when nothing has been saved yet.
	Load(ctx context.Context) (*models.Index, error)
	Save(ctx context.Context, idx *models.Index) error
	Path() string
}

// SymbolStore mirrors the symbol table and call edges into a queryable
// database.
type SymbolStore interface {
	Replace(ctx context.Context, idx *models.Index) error
	FindByName(ctx context.Context, name string) ([]models.SymbolRecord, error)
	Close() error
}

type ScoredID struct {
	ID    string
	Score float64
}

// VectorStore answers nearest-neighbour queries by cosine similarity.
type VectorStore interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Delete(ctx context.Context, ids []string) error
	Reset(ctx context.Context) error
	// Query returns at most topK ids ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredID, error)
	Close() error
}
