// Package semantic maintains the embedding overlay of an index and answers
// nearest-neighbour queries over it.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/0x5457/repograph/internal/embeddings"
	"github.com/0x5457/repograph/internal/logging"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/storage"
	"github.com/0x5457/repograph/internal/storage/memory"
)

const (
	DefaultBatchSize = 32
	DefaultThreshold = 0.3
	DefaultTopK      = 10
)

type Options struct {
	BatchSize    int
	SnippetLines int
	Threshold    float64
	TopK         int
	// Source reads symbol text; nil reads below the index root.
	Source   Source
	Logger   *slog.Logger
	Progress func(models.IndexProgress)
}

// Status describes the outcome of an embedding pass.
type Status struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
	Embedded  int    `json:"embedded"`
	Reused    int    `json:"reused"`
	Pruned    int    `json:"pruned"`
}

type SearchOptions struct {
	TopK int

	// Threshold is the minimum score; nil selects the configured default.
	Threshold *float64
}

// Threshold returns v as a search threshold.
func Threshold(v float64) *float64 { return &v }

type Hit struct {
	Symbol models.SymbolRecord `json:"symbol"`
	Score  float64             `json:"score"`
}

// Index embeds symbols with an injected embedder and mirrors valid vectors
// into a vector store for search. A nil embedder disables the overlay.
type Index struct {
	emb   embeddings.Embedder
	store storage.VectorStore
	opt   Options
	log   *slog.Logger

	mu     sync.Mutex
	primed bool
	dim    int
	synced map[string]string
}

func New(emb embeddings.Embedder, store storage.VectorStore, opt Options) *Index {
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultBatchSize
	}
	if opt.SnippetLines <= 0 {
		opt.SnippetLines = DefaultSnippetLines
	}
	if opt.Threshold <= 0 {
		opt.Threshold = DefaultThreshold
	}
	if opt.TopK <= 0 {
		opt.TopK = DefaultTopK
	}
	if store == nil {
		store = memory.NewInMemoryVectorStore()
	}
	return &Index{
		emb:    emb,
		store:  store,
		opt:    opt,
		log:    logging.OrDiscard(opt.Logger),
		synced: map[string]string{},
	}
}

// Enabled reports whether an embedder is configured.
func (s *Index) Enabled() bool { return s.emb != nil }

// Build discards all embeddings of idx and embeds every symbol.
func (s *Index) Build(ctx context.Context, idx *models.Index) Status {
	idx.Embeddings = nil
	return s.Update(ctx, idx)
}

// Update re-embeds only symbols without a valid record, reuses the rest and
// prunes records of symbols that no longer exist. Failures are reported in
// the returned status and leave the records embedded so far in place.
func (s *Index) Update(ctx context.Context, idx *models.Index) Status {
	if s.emb == nil {
		return Status{Reason: "no embedder configured"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	model := s.emb.ModelName()
	es := idx.Embeddings
	if es == nil || es.Model != model {
		es = &models.EmbeddingStore{Model: model, Records: map[string]models.EmbeddingRecord{}}
		idx.Embeddings = es
	}
	if es.Records == nil {
		es.Records = map[string]models.EmbeddingRecord{}
	}
	st := Status{Model: model}

	for q := range es.Records {
		if _, ok := idx.Symbols[q]; !ok {
			delete(es.Records, q)
			st.Pruned++
		}
	}

	var pending []string
	for _, q := range idx.SortedSymbols() {
		rec, ok := es.Records[q]
		if ok && rec.Valid(idx.Symbols[q]) && (es.Dimension == 0 || len(rec.Vector) == es.Dimension) {
			st.Reused++
			continue
		}
		pending = append(pending, q)
	}

	src := s.opt.Source
	if src == nil {
		src = DirSource(idx.Metadata.Repository.Root)
	}
	cache := newLineCache(src)
	for i := 0; i < len(pending); i += s.opt.BatchSize {
		if err := ctx.Err(); err != nil {
			return s.fail(st, es, err)
		}
		batch := pending[i:min(i+s.opt.BatchSize, len(pending))]
		texts := make([]string, len(batch))
		for j, q := range batch {
			sym := idx.Symbols[q]
			lines, err := cache.lines(sym.File)
			if err != nil {
				s.log.Debug("symbol source unreadable", "file", sym.File, "err", err)
			}
			texts[j] = Text(sym, lines, s.opt.SnippetLines)
		}
		vecs, err := s.emb.EmbedTexts(ctx, texts)
		if err != nil {
			return s.fail(st, es, fmt.Errorf("embed batch: %w", err))
		}
		if len(vecs) != len(batch) {
			return s.fail(st, es, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(batch)))
		}
		for j, q := range batch {
			v := vecs[j]
			if es.Dimension == 0 {
				es.Dimension = len(v)
			}
			if len(v) == 0 || len(v) != es.Dimension {
				return s.fail(st, es, fmt.Errorf("embedder returned dimension %d, want %d", len(v), es.Dimension))
			}
			es.Records[q] = models.EmbeddingRecord{Vector: v, SourceHash: idx.Symbols[q].BodyHash}
			st.Embedded++
		}
		s.progress(models.IndexProgress{
			Stage:       models.IndexStageEmbed,
			TotalFiles:  len(pending),
			ParsedFiles: min(i+s.opt.BatchSize, len(pending)),
		})
	}

	if err := s.sync(ctx, idx); err != nil {
		return s.fail(st, es, fmt.Errorf("sync vector store: %w", err))
	}
	st.Available = len(es.Records) > 0
	if !st.Available {
		st.Reason = "no symbols to embed"
	}
	st.Dimension = es.Dimension
	s.log.Info("embeddings updated",
		"model", model,
		"embedded", st.Embedded,
		"reused", st.Reused,
		"pruned", st.Pruned,
		"duration", time.Since(start),
	)
	return st
}

func (s *Index) fail(st Status, es *models.EmbeddingStore, err error) Status {
	s.log.Warn("semantic index unavailable", "err", err)
	st.Available = false
	st.Reason = err.Error()
	st.Dimension = es.Dimension
	return st
}

func (s *Index) progress(p models.IndexProgress) {
	if s.opt.Progress != nil {
		s.opt.Progress(p)
	}
}

// State reports whether idx currently supports search.
func (s *Index) State(idx *models.Index) Status {
	if s.emb == nil {
		return Status{Reason: "no embedder configured"}
	}
	es := idx.Embeddings
	if es == nil || len(es.Records) == 0 {
		return Status{Reason: "no embeddings, run an index build or update"}
	}
	if es.Model != s.emb.ModelName() {
		return Status{Model: es.Model, Reason: fmt.Sprintf("embeddings were built with %s, embedder is %s", es.Model, s.emb.ModelName())}
	}
	st := Status{Model: es.Model, Dimension: es.Dimension}
	for q, rec := range es.Records {
		if sym, ok := idx.Symbols[q]; ok && rec.Valid(sym) {
			st.Available = true
			st.Reused++
		}
	}
	if !st.Available {
		st.Reason = "all embeddings are stale"
	}
	return st
}

// Search embeds query and returns valid symbols scoring at least the
// threshold, best first, ties by qualified name.
func (s *Index) Search(ctx context.Context, idx *models.Index, query string, opt SearchOptions) ([]Hit, error) {
	if opt.TopK <= 0 {
		opt.TopK = s.opt.TopK
	}
	threshold := s.opt.Threshold
	if opt.Threshold != nil {
		threshold = *opt.Threshold
	}
	if st := s.State(idx); !st.Available {
		return nil, fmt.Errorf("%w: %s", models.ErrSemanticUnavailable, st.Reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sync(ctx, idx); err != nil {
		return nil, fmt.Errorf("%w: sync vector store: %v", models.ErrSemanticUnavailable, err)
	}
	qv, err := s.emb.EmbedQuery(ctx, Enrich(query))
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", models.ErrSemanticUnavailable, err)
	}
	if len(qv) != idx.Embeddings.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			models.ErrSemanticUnavailable, len(qv), idx.Embeddings.Dimension)
	}
	scored, err := s.store.Query(ctx, qv, len(s.synced))
	if err != nil {
		return nil, fmt.Errorf("%w: query vector store: %v", models.ErrSemanticUnavailable, err)
	}

	hits := []Hit{}
	for _, sc := range scored {
		sym, ok := idx.Symbols[sc.ID]
		if !ok || sc.Score < threshold {
			continue
		}
		if rec, ok := idx.Embeddings.Records[sc.ID]; !ok || !rec.Valid(sym) {
			continue
		}
		hits = append(hits, Hit{Symbol: sym, Score: sc.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Symbol.QualifiedName < hits[j].Symbol.QualifiedName
	})
	if len(hits) > opt.TopK {
		hits = hits[:opt.TopK]
	}
	return hits, nil
}

// sync mirrors the valid records of idx into the vector store. The store is
// cleared on first use and whenever the dimension changes.
func (s *Index) sync(ctx context.Context, idx *models.Index) error {
	es := idx.Embeddings
	if es == nil {
		return nil
	}
	if !s.primed || s.dim != es.Dimension {
		if err := s.store.Reset(ctx); err != nil {
			return err
		}
		s.synced = map[string]string{}
		s.primed = true
		s.dim = es.Dimension
	}

	want := map[string]string{}
	for q, rec := range es.Records {
		if sym, ok := idx.Symbols[q]; ok && rec.Valid(sym) {
			want[q] = rec.SourceHash
		}
	}
	var gone []string
	for q := range s.synced {
		if _, ok := want[q]; !ok {
			gone = append(gone, q)
		}
	}
	sort.Strings(gone)
	if err := s.store.Delete(ctx, gone); err != nil {
		return err
	}
	for _, q := range gone {
		delete(s.synced, q)
	}

	var ids []string
	for q, h := range want {
		if s.synced[q] != h {
			ids = append(ids, q)
		}
	}
	sort.Strings(ids)
	vecs := make([][]float32, len(ids))
	for i, q := range ids {
		vecs[i] = es.Records[q].Vector
	}
	if err := s.store.Upsert(ctx, ids, vecs); err != nil {
		return err
	}
	for _, q := range ids {
		s.synced[q] = want[q]
	}
	return nil
}
