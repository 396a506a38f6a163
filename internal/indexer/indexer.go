package indexer

import (
	"context"

	"github.com/0x5457/repograph/internal/models"
)

// Changes classifies the files seen by an incremental update.
type Changes struct {
	Added     []string `json:"added"`
	Changed   []string `json:"changed"`
	Deleted   []string `json:"deleted"`
	Unchanged int      `json:"unchanged"`
}

// Empty reports whether nothing was added, changed or deleted.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Affected lists every path whose records were replaced or removed.
func (c Changes) Affected() []string {
	out := make([]string, 0, len(c.Added)+len(c.Changed)+len(c.Deleted))
	out = append(out, c.Added...)
	out = append(out, c.Changed...)
	return append(out, c.Deleted...)
}

type Indexer interface {
	// Build scans root from scratch.
	Build(ctx context.Context, root string) (*models.Index, error)
	// Update patches idx in place so it matches a full rescan of its root.
	Update(ctx context.Context, idx *models.Index) (Changes, error)
}
