// Package coupling ranks files by how strongly they depend on a given file.
package coupling

import (
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

const (
	WeightCalls  = 0.4
	WeightImport = 0.3
	WeightShared = 0.2
	WeightName   = 0.1

	// NameThreshold lists a file on name similarity alone.
	NameThreshold = 0.85
	DefaultLimit  = 20
)

// Components holds each score term, all in [0,1].
type Components struct {
	CallEdges int     `json:"call_edges"`
	Calls     float64 `json:"calls"`
	Import    float64 `json:"import"`
	Shared    float64 `json:"shared"`
	Name      float64 `json:"name"`
}

type Entry struct {
	File       string     `json:"file"`
	Score      float64    `json:"score"`
	Components Components `json:"components"`
}

// Analyze scores every other indexed file against file.
func Analyze(g *callgraph.Graph, file string, limit int) ([]Entry, error) {
	idx := g.Index()
	target, ok := idx.Files[file]
	if !ok {
		return nil, models.ErrFileNotIndexed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	edges := callEdges(g, file)
	targetNames := symbolNames(idx, file)
	targetStem := stem(file)

	var out []Entry
	for _, p := range idx.SortedFiles() {
		if p == file {
			continue
		}
		other := idx.Files[p]
		c := Components{CallEdges: edges[p]}
		c.Calls = float64(c.CallEdges) / float64(c.CallEdges+2)
		if slices.Contains(target.InternalImports, p) || slices.Contains(other.InternalImports, file) {
			c.Import = 1
		}
		c.Shared = jaccard(toSet(target.ExternalImports), toSet(other.ExternalImports))
		c.Name = (similarity(targetStem, stem(p)) + jaccard(targetNames, symbolNames(idx, p))) / 2

		if c.Calls == 0 && c.Import == 0 && c.Shared == 0 && c.Name < NameThreshold {
			continue
		}
		score := WeightCalls*c.Calls + WeightImport*c.Import + WeightShared*c.Shared + WeightName*c.Name
		out = append(out, Entry{File: p, Score: score, Components: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].File < out[j].File
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

// callEdges counts exact call edges between file and every other file, in
// both directions.
func callEdges(g *callgraph.Graph, file string) map[string]int {
	idx := g.Index()
	out := map[string]int{}
	for _, s := range idx.SymbolsInFile(file) {
		for _, t := range idx.CallGraph[s.QualifiedName].Calls {
			files := map[string]bool{}
			for _, def := range g.Resolve(t) {
				if f := idx.Symbols[def].File; f != file {
					files[f] = true
				}
			}
			for f := range files {
				out[f]++
			}
		}
		for _, c := range g.ExactCallers(s.ShortName()) {
			if f := idx.CallGraph[c].File; f != file {
				out[f]++
			}
		}
	}
	return out
}

func symbolNames(idx *models.Index, file string) map[string]bool {
	out := map[string]bool{}
	for _, q := range idx.Files[file].Symbols {
		if s, ok := idx.Symbols[q]; ok {
			out[strings.ToLower(s.ShortName())] = true
		}
	}
	return out
}

var stemAffixes = []string{".test", ".spec", "_test", "test_"}

func stem(p string) string {
	base := strings.ToLower(path.Base(p))
	if i := strings.IndexByte(base, '.'); i > 0 {
		if ext := base[i:]; strings.HasPrefix(ext, ".test.") || strings.HasPrefix(ext, ".spec.") {
			return base[:i]
		}
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, a := range stemAffixes {
		base = strings.TrimSuffix(strings.TrimPrefix(base, a), a)
	}
	return base
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	s, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(s)
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}
