package pipeline

import (
	"sort"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
)

// apply inserts one extraction result. It is only ever called from the
// collecting goroutine.
func apply(idx *models.Index, res *parser.Result) {
	idx.Files[res.File.Path] = res.File
	for _, s := range res.Symbols {
		idx.Symbols[s.QualifiedName] = s
		idx.CallGraph[s.QualifiedName] = callgraph.EntryFor(s)
	}
}

// remove drops a file with every symbol and call entry it defined and
// returns the removed symbols.
func remove(idx *models.Index, path string) map[string]models.SymbolRecord {
	old := map[string]models.SymbolRecord{}
	if f, ok := idx.Files[path]; ok {
		for _, q := range f.Symbols {
			if s, ok := idx.Symbols[q]; ok {
				old[q] = s
			}
			delete(idx.Symbols, q)
			delete(idx.CallGraph, q)
		}
	}
	for q, s := range idx.Symbols {
		if s.File == path {
			old[q] = s
			delete(idx.Symbols, q)
		}
	}
	for q, e := range idx.CallGraph {
		if e.File == path {
			delete(idx.CallGraph, q)
		}
	}
	delete(idx.Files, path)
	return old
}

// markStale flags the embeddings of old symbols that are gone from current or
// whose body changed.
func markStale(idx *models.Index, old, current map[string]models.SymbolRecord) {
	if idx.Embeddings == nil {
		return
	}
	for q, prev := range old {
		rec, ok := idx.Embeddings.Records[q]
		if !ok {
			continue
		}
		if now, ok := current[q]; ok && now.BodyHash == prev.BodyHash {
			continue
		}
		rec.Stale = true
		idx.Embeddings.Records[q] = rec
	}
}

func sortResults(rs []fileResult) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].res.File.Path < rs[j].res.File.Path })
}
