package pipeline

import (
	"sort"

	"github.com/google/uuid"

	"github.com/0x5457/repograph/internal/analysis/testmap"
	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

// TopExternalLimit caps the most-imported external package list.
const TopExternalLimit = 20

// finalize recomputes every derived section of idx. It runs after both full
// and incremental passes so an added file can change how other files'
// imports resolve.
func (i *Indexer) finalize(idx *models.Index, tree *sourceTree) {
	i.progress(models.IndexProgress{Stage: models.IndexStageFinal, TotalFiles: len(idx.Files)})

	r := newResolver(idx, tree.modules)
	analysis := models.ImportAnalysis{Files: map[string]models.ImportSummary{}}
	packages := map[string]int{}
	for _, p := range idx.SortedFiles() {
		f := idx.Files[p]
		f.InternalImports, f.ExternalImports = r.resolve(f)
		if f.Symbols == nil {
			f.Symbols = []string{}
		}
		idx.Files[p] = f
		analysis.Files[p] = models.ImportSummary{
			Internal: len(f.InternalImports),
			External: len(f.ExternalImports),
		}
		for _, pkg := range f.ExternalImports {
			packages[pkg]++
		}
	}
	analysis.TopExternal = topPackages(packages, TopExternalLimit)

	idx.Summaries = models.Summaries{
		Imports:      analysis,
		Duplicates:   callgraph.Duplicates(idx),
		CoverageGaps: testmap.CoverageGaps(idx),
	}
	idx.Metadata.SchemaVersion = models.SchemaVersion
	idx.Metadata.GeneratedAt = i.now().UTC()
	idx.Metadata.GenerationID = uuid.NewString()

	i.progress(models.IndexProgress{
		Stage:       models.IndexStageDone,
		TotalFiles:  len(idx.Files),
		ParsedFiles: len(idx.Files),
	})
}

func topPackages(counts map[string]int, limit int) []models.PackageCount {
	out := make([]models.PackageCount, 0, len(counts))
	for pkg, n := range counts {
		out = append(out, models.PackageCount{Package: pkg, Files: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Files != out[b].Files {
			return out[a].Files > out[b].Files
		}
		return out[a].Package < out[b].Package
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
