package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser/parserfx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func newIndexer(opt Options) *Indexer {
	return New(parserfx.NewRegistry(), opt)
}

// normalize drops the parts of an index that legitimately differ between a
// rebuild and a patched generation.
func normalize(idx *models.Index) models.Index {
	c := *idx
	c.Metadata.GeneratedAt = time.Time{}
	c.Metadata.GenerationID = ""
	c.Embeddings = nil
	return c
}

func TestTwoFileScenario(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.py": "def foo():\n    return 1\n",
		"b.py": "from a import foo\n\n\ndef bar():\n    return foo()\n",
	})
	ix := newIndexer(Options{ParseWorkers: 2})
	idx, err := ix.Build(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo"}, idx.CallGraph["b.py:bar"].Calls)
	assert.Equal(t, []string{"a.py"}, idx.Files["b.py"].InternalImports)
	assert.Empty(t, idx.Files["b.py"].ExternalImports)
	assert.False(t, idx.Metadata.GeneratedAt.IsZero())
	assert.NotEmpty(t, idx.Metadata.GenerationID)

	callers := callgraph.New(idx).Callers("foo")
	require.Len(t, callers, 1)
	assert.Equal(t, "b.py:bar", callers[0].QualifiedName)

	// Deleting b.py removes every record it contributed.
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	changes, err := ix.Update(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, changes.Deleted)
	assert.Equal(t, 1, changes.Unchanged)

	for q, s := range idx.Symbols {
		assert.NotEqual(t, "b.py", s.File, q)
	}
	for q, e := range idx.CallGraph {
		assert.NotEqual(t, "b.py", e.File, q)
	}
	assert.Contains(t, idx.CallGraph, "a.py:foo")
	assert.Empty(t, callgraph.New(idx).Callers("foo"))
}

func TestDuplicateScenario(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"m.py": "def alpha(x):\n    return x + 1\n\n\ndef beta(y):\n    return y + 1\n",
	})
	idx, err := newIndexer(Options{}).Build(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, idx.Summaries.Duplicates, 1)
	assert.Equal(t, []models.DuplicateMember{
		{QualifiedName: "m.py:alpha", File: "m.py", Line: 1},
		{QualifiedName: "m.py:beta", File: "m.py", Line: 5},
	}, idx.Summaries.Duplicates[0].Members)
}

var baseRepo = map[string]string{
	"go.mod":               "module example.com/demo\n\ngo 1.22\n",
	"main.go":              "package main\n\nimport (\n\t\"fmt\"\n\n\t\"example.com/demo/pkg/util\"\n)\n\nfunc main() {\n\tfmt.Println(util.Helper())\n}\n",
	"pkg/util/util.go":     "package util\n\nfunc Helper() string { return \"x\" }\n",
	"app/service.py":       "import requests\nfrom .store import save\n\n\nclass Service:\n    def run(self):\n        save(requests.get('u'))\n",
	"app/store.py":         "def save(v):\n    return v\n",
	"app/__init__.py":      "",
	"web/src/greet.ts":     "export function greet(name: string): string {\n  return `hi ${name}`;\n}\n",
	"web/src/index.ts":     "import { greet } from './greet';\nimport React from 'react';\n\nexport function main() {\n  return greet('x');\n}\n",
	"tests/test_store.py":  "from app.store import save\n\n\ndef test_save():\n    assert save(1) == 1\n",
	"node_modules/x/x.js":  "function ignored() {}\n",
	"generated/skip_me.py": "def skipped():\n    pass\n",
}

func TestImportResolution(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, baseRepo)
	idx, err := newIndexer(Options{Exclude: []string{"generated/**"}}).Build(context.Background(), root)
	require.NoError(t, err)

	assert.NotContains(t, idx.Files, "node_modules/x/x.js")
	assert.NotContains(t, idx.Files, "generated/skip_me.py")
	assert.Equal(t, []string{"pkg/util/util.go"}, idx.Files["main.go"].InternalImports)
	assert.Equal(t, []string{"fmt"}, idx.Files["main.go"].ExternalImports)
	assert.Equal(t, []string{"app/store.py"}, idx.Files["app/service.py"].InternalImports)
	assert.Equal(t, []string{"requests"}, idx.Files["app/service.py"].ExternalImports)
	assert.Equal(t, []string{"web/src/greet.ts"}, idx.Files["web/src/index.ts"].InternalImports)
	assert.Equal(t, []string{"react"}, idx.Files["web/src/index.ts"].ExternalImports)
	assert.Equal(t, []string{"app/store.py"}, idx.Files["tests/test_store.py"].InternalImports)

	assert.Equal(t, models.ImportSummary{Internal: 1, External: 1}, idx.Summaries.Imports.Files["main.go"])
	assert.Len(t, idx.Summaries.Imports.TopExternal, 3)

	var gaps []string
	for _, g := range idx.Summaries.CoverageGaps {
		gaps = append(gaps, g.QualifiedName)
	}
	assert.NotContains(t, gaps, "app/store.py:save")
	assert.Contains(t, gaps, "pkg/util/util.go:Helper")
}

func TestIncrementalMatchesFullRescan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, baseRepo)
	ix := newIndexer(Options{ParseWorkers: 3})
	ctx := context.Background()

	idx, err := ix.Build(ctx, root)
	require.NoError(t, err)

	batches := []struct {
		write  map[string]string
		remove []string
	}{
		{
			write: map[string]string{
				"app/store.py":  "def save(v):\n    return persist(v)\n\n\ndef persist(v):\n    return v\n",
				"app/extra.py":  "from app.store import persist\n\n\ndef extra():\n    persist(2)\n",
				"web/src/io.ts": "export const load = (p: string) => fetch(p);\n",
			},
			remove: []string{"web/src/greet.ts"},
		},
		{
			write: map[string]string{
				"web/src/greet.ts": "export function greet(n: string) { return n; }\n",
				"pkg/util/more.go": "package util\n\nfunc More() string { return Helper() }\n",
				"broken.py":        "def broken(:\n    pass\n",
			},
			remove: []string{"app/extra.py", "tests/test_store.py"},
		},
		{
			write: map[string]string{"app/extra.py": "def extra():\n    return 3\n"},
		},
	}
	for i, b := range batches {
		writeFiles(t, root, b.write)
		for _, r := range b.remove {
			require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(r))))
		}
		_, err := ix.Update(ctx, idx)
		require.NoError(t, err, "batch %d", i)

		full, err := ix.Build(ctx, root)
		require.NoError(t, err, "batch %d", i)
		assert.Equal(t, normalize(full), normalize(idx), "batch %d", i)
	}
}

func TestUpdateClassifiesChanges(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "def a():\n    pass\n", "b.py": "def b():\n    pass\n"})
	ix := newIndexer(Options{})
	idx, err := ix.Build(context.Background(), root)
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"b.py": "def b():\n    return 2\n", "c.py": "def c():\n    pass\n"})
	changes, err := ix.Update(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.py"}, changes.Added)
	assert.Equal(t, []string{"b.py"}, changes.Changed)
	assert.Empty(t, changes.Deleted)
	assert.Equal(t, 1, changes.Unchanged)

	changes, err = ix.Update(context.Background(), idx)
	require.NoError(t, err)
	assert.True(t, changes.Empty())
	assert.Equal(t, 3, changes.Unchanged)
}

func TestUpdateMarksChangedEmbeddingsStale(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "def keep():\n    pass\n\n\ndef edit():\n    return 1\n", "b.py": "def gone():\n    pass\n"})
	ix := newIndexer(Options{})
	idx, err := ix.Build(context.Background(), root)
	require.NoError(t, err)

	idx.Embeddings = &models.EmbeddingStore{Model: "m", Dimension: 1, Records: map[string]models.EmbeddingRecord{}}
	for q, s := range idx.Symbols {
		idx.Embeddings.Records[q] = models.EmbeddingRecord{Vector: []float32{1}, SourceHash: s.BodyHash}
	}

	writeFiles(t, root, map[string]string{"a.py": "def keep():\n    pass\n\n\ndef edit():\n    return 2\n"})
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))
	_, err = ix.Update(context.Background(), idx)
	require.NoError(t, err)

	recs := idx.Embeddings.Records
	assert.False(t, recs["a.py:keep"].Stale)
	assert.True(t, recs["a.py:edit"].Stale)
	assert.True(t, recs["b.py:gone"].Stale)
}

func TestUpdateRejectsIncompatibleIndex(t *testing.T) {
	_, err := newIndexer(Options{}).Update(context.Background(), models.NewIndex(t.TempDir(), "x"))
	assert.ErrorIs(t, err, models.ErrIncompatibleIndex)

	idx := models.NewIndex(t.TempDir(), "x")
	idx.Metadata.GeneratedAt = time.Now()
	idx.Metadata.SchemaVersion = models.SchemaVersion + 1
	_, err = newIndexer(Options{}).Update(context.Background(), idx)
	assert.ErrorIs(t, err, models.ErrIncompatibleIndex)
}

func TestBuildHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, baseRepo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newIndexer(Options{}).Build(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLargeFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"small.py": "def s():\n    pass\n", "big.py": "def b():\n    return '" + string(make([]byte, 64)) + "'\n"})
	idx, err := newIndexer(Options{MaxFileBytes: 40}).Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"small.py"}, idx.SortedFiles())
}

func TestUnreadableFileIsRecorded(t *testing.T) {
	ix := newIndexer(Options{})
	r := ix.extractFile(t.TempDir(), "missing.py", nil)
	assert.False(t, r.unchanged)
	assert.Equal(t, "missing.py", r.res.File.Path)
	assert.Equal(t, "python", r.res.File.Language)
	assert.Equal(t, models.ParseEmpty, r.res.File.ParseMode)
	assert.NotEmpty(t, r.res.File.Error)
}

func TestProgressReportsStages(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": "def a():\n    pass\n"})
	var stages []models.IndexStage
	_, err := newIndexer(Options{Progress: func(p models.IndexProgress) { stages = append(stages, p.Stage) }}).
		Build(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []models.IndexStage{
		models.IndexStageScan, models.IndexStageParse, models.IndexStageFinal, models.IndexStageDone,
	}, stages)
}
