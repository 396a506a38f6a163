package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/0x5457/repograph/internal/indexer"
	"github.com/0x5457/repograph/internal/logging"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
)

const DefaultMaxFileBytes = 1 << 20

type Options struct {
	ParseWorkers int
	// Exclude holds doublestar globs matched against slash-separated
	// repository-relative paths.
	Exclude      []string
	MaxFileBytes int64
	Logger       *slog.Logger
	Progress     func(models.IndexProgress)
}

type Indexer struct {
	reg *parser.Registry
	opt Options
	log *slog.Logger
	now func() time.Time
}

var _ indexer.Indexer = (*Indexer)(nil)

func New(reg *parser.Registry, opt Options) *Indexer {
	if opt.ParseWorkers <= 0 {
		opt.ParseWorkers = runtime.NumCPU()
	}
	if opt.MaxFileBytes <= 0 {
		opt.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Indexer{reg: reg, opt: opt, log: logging.OrDiscard(opt.Logger), now: time.Now}
}

// Build scans root from scratch and returns a finalized index.
func (i *Indexer) Build(ctx context.Context, root string) (*models.Index, error) {
	start := i.now()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	tree, err := i.discover(ctx, abs)
	if err != nil {
		return nil, err
	}
	idx := models.NewIndex(abs, filepath.Base(abs))
	err = i.extract(ctx, abs, tree.paths, nil, func(r fileResult) {
		apply(idx, r.res)
	})
	if err != nil {
		return nil, err
	}
	i.finalize(idx, tree)
	i.log.Info("index built",
		"root", abs,
		"files", len(idx.Files),
		"symbols", len(idx.Symbols),
		"duration", i.now().Sub(start))
	return idx, nil
}

// Update patches idx in place. The result equals a full Build of the same
// tree apart from the generation metadata and embedding state.
func (i *Indexer) Update(ctx context.Context, idx *models.Index) (indexer.Changes, error) {
	var changes indexer.Changes
	if !idx.Compatible() {
		return changes, models.ErrIncompatibleIndex
	}
	start := i.now()
	root := idx.Metadata.Repository.Root
	tree, err := i.discover(ctx, root)
	if err != nil {
		return changes, err
	}

	prev := make(map[string]string, len(idx.Files))
	for p, f := range idx.Files {
		if f.Error == "" {
			prev[p] = f.Hash
		}
	}

	// Nothing is written to idx until every file has been read, so a
	// cancelled update leaves the previous generation intact.
	var fresh []fileResult
	err = i.extract(ctx, root, tree.paths, prev, func(r fileResult) {
		if r.unchanged {
			changes.Unchanged++
			return
		}
		fresh = append(fresh, r)
	})
	if err != nil {
		return changes, err
	}

	present := make(map[string]bool, len(tree.paths))
	for _, p := range tree.paths {
		present[p] = true
	}
	for _, p := range idx.SortedFiles() {
		if !present[p] {
			changes.Deleted = append(changes.Deleted, p)
		}
	}
	for _, p := range changes.Deleted {
		markStale(idx, remove(idx, p), nil)
	}

	sortResults(fresh)
	for _, r := range fresh {
		path := r.res.File.Path
		if _, ok := idx.Files[path]; ok {
			changes.Changed = append(changes.Changed, path)
		} else {
			changes.Added = append(changes.Added, path)
		}
		old := remove(idx, path)
		apply(idx, r.res)
		markStale(idx, old, idx.Symbols)
	}

	i.finalize(idx, tree)
	i.log.Info("index updated",
		"added", len(changes.Added),
		"changed", len(changes.Changed),
		"deleted", len(changes.Deleted),
		"unchanged", changes.Unchanged,
		"duration", i.now().Sub(start))
	return changes, nil
}

func (i *Indexer) progress(p models.IndexProgress) {
	if i.opt.Progress != nil {
		i.opt.Progress(p)
	}
}
