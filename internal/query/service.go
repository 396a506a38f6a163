// Package query answers the entry-point questions over the stored index and
// applies full and incremental builds.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0x5457/repograph/internal/analysis/coupling"
	"github.com/0x5457/repograph/internal/analysis/impact"
	"github.com/0x5457/repograph/internal/analysis/testmap"
	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/indexer"
	"github.com/0x5457/repograph/internal/logging"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/semantic"
	"github.com/0x5457/repograph/internal/staleness"
	"github.com/0x5457/repograph/internal/storage"
)

type Options struct {
	Root          string
	ImpactDepth   int
	CouplingLimit int
	Logger        *slog.Logger
}

type Deps struct {
	Indexer   indexer.Indexer
	Store     storage.IndexStore
	Symbols   storage.SymbolStore // optional
	Semantic  *semantic.Index     // optional
	Staleness *staleness.Detector
}

// BuildResult summarises a full build.
type BuildResult struct {
	Files    int             `json:"files"`
	Symbols  int             `json:"symbols"`
	Duration time.Duration   `json:"duration"`
	Semantic semantic.Status `json:"semantic"`
}

// UpdateResult summarises an incremental update.
type UpdateResult struct {
	Changes  indexer.Changes `json:"changes"`
	Saved    bool            `json:"saved"`
	Duration time.Duration   `json:"duration"`
	Semantic semantic.Status `json:"semantic"`
}

// Service owns the in-memory copy of the index. Queries share a read lock;
// Build and Update take the write lock and persist before releasing it.
type Service struct {
	opt  Options
	deps Deps
	log  *slog.Logger

	mu  sync.RWMutex
	idx *models.Index
}

func New(deps Deps, opt Options) *Service {
	if opt.ImpactDepth <= 0 {
		opt.ImpactDepth = impact.DefaultDepth
	}
	if opt.CouplingLimit <= 0 {
		opt.CouplingLimit = coupling.DefaultLimit
	}
	if deps.Staleness == nil {
		deps.Staleness = staleness.New(staleness.Options{Logger: opt.Logger})
	}
	if deps.Semantic == nil {
		deps.Semantic = semantic.New(nil, nil, semantic.Options{Logger: opt.Logger})
	}
	return &Service{opt: opt, deps: deps, log: logging.OrDiscard(opt.Logger)}
}

// Build scans the repository from scratch, embeds it and saves it.
func (s *Service) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	idx, err := s.deps.Indexer.Build(ctx, s.opt.Root)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	st := s.deps.Semantic.Build(ctx, idx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, idx); err != nil {
		return nil, err
	}
	s.idx = idx
	return &BuildResult{
		Files:    len(idx.Files),
		Symbols:  len(idx.Symbols),
		Duration: time.Since(start),
		Semantic: st,
	}, nil
}

// Update patches the stored index with the current tree. Nothing is saved
// when neither the files nor the embeddings changed.
func (s *Service) Update(ctx context.Context) (*UpdateResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	// work on a copy so a failed pass leaves the served index untouched
	work, err := clone(idx)
	if err != nil {
		return nil, err
	}
	changes, err := s.deps.Indexer.Update(ctx, work)
	if err != nil {
		return nil, fmt.Errorf("update index: %w", err)
	}
	st := s.deps.Semantic.Update(ctx, work)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &UpdateResult{Changes: changes, Semantic: st}
	if !changes.Empty() || st.Embedded > 0 || st.Pruned > 0 {
		if err := s.persist(ctx, work); err != nil {
			return nil, err
		}
		res.Saved = true
	}
	s.idx = work
	res.Duration = time.Since(start)
	return res, nil
}

func (s *Service) persist(ctx context.Context, idx *models.Index) error {
	if err := s.deps.Store.Save(ctx, idx); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if s.deps.Symbols != nil {
		if err := s.deps.Symbols.Replace(ctx, idx); err != nil {
			return fmt.Errorf("mirror symbols: %w", err)
		}
	}
	s.log.Debug("index saved", "path", s.deps.Store.Path(), "symbols", len(idx.Symbols))
	return nil
}

// Index returns the loaded index.
func (s *Service) Index(ctx context.Context) (*models.Index, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) (*models.Index, error) {
	if s.idx != nil {
		return s.idx, nil
	}
	idx, err := s.deps.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.idx = idx
	return idx, nil
}

func (s *Service) graph(ctx context.Context) (*callgraph.Graph, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	return callgraph.New(idx), nil
}

// Callees lists what a symbol calls.
func (s *Service) Callees(ctx context.Context, symbol string) ([]callgraph.Callee, error) {
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.Callees(symbol)
}

// Callers lists every entry whose call targets match symbol, exact first.
func (s *Service) Callers(ctx context.Context, symbol string) ([]callgraph.Caller, error) {
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.Callers(symbol), nil
}

func (s *Service) Impact(ctx context.Context, file string, opt impact.Options) (*impact.Report, error) {
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	if opt.Depth <= 0 {
		opt.Depth = s.opt.ImpactDepth
	}
	return impact.Analyze(g, file, opt)
}

func (s *Service) Coupling(ctx context.Context, file string, limit int) ([]coupling.Entry, error) {
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opt.CouplingLimit
	}
	return coupling.Analyze(g, file, limit)
}

func (s *Service) TestsFor(ctx context.Context, symbol string) ([]testmap.Match, error) {
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	return testmap.For(g, symbol)
}

func (s *Service) Search(ctx context.Context, text string, opt semantic.SearchOptions) ([]semantic.Hit, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps.Semantic.Search(ctx, idx, text, opt)
}

// Semantic reports whether search is currently possible.
func (s *Service) Semantic(ctx context.Context) (semantic.Status, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return semantic.Status{}, err
	}
	return s.deps.Semantic.State(idx), nil
}

func (s *Service) Stale(ctx context.Context) (*staleness.Report, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Staleness.Check(ctx, idx)
}

func (s *Service) Duplicates(ctx context.Context) ([]models.DuplicateCluster, error) {
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Summaries.Duplicates, nil
}

// FindSymbol resolves a qualified, dotted or short name. The sqlite mirror
// answers when configured.
func (s *Service) FindSymbol(ctx context.Context, name string) ([]models.SymbolRecord, error) {
	if s.deps.Symbols != nil {
		if _, err := s.Index(ctx); err != nil {
			return nil, err
		}
		syms, err := s.deps.Symbols.FindByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("find symbol: %w", err)
		}
		if len(syms) > 0 {
			return syms, nil
		}
	}
	g, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	syms := g.Lookup(name)
	if len(syms) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolNotFound, name)
	}
	return syms, nil
}

// IsNotIndexed reports whether err means no index has been built yet.
func IsNotIndexed(err error) bool {
	return errors.Is(err, models.ErrNotIndexed)
}
