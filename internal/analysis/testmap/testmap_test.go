package testmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

func fixture() *models.Index {
	idx := models.NewIndex("/repo", "repo")
	add := func(f models.FileRecord, syms ...models.SymbolRecord) {
		for _, s := range syms {
			s.QualifiedName = f.Path + ":" + s.Name
			s.File = f.Path
			idx.Symbols[s.QualifiedName] = s
			f.Symbols = append(f.Symbols, s.QualifiedName)
		}
		idx.Files[f.Path] = f
	}
	add(models.FileRecord{Path: "app/parse.py", Language: "python"},
		models.SymbolRecord{Name: "parse_config", Kind: models.SymbolFunction, Line: 1},
		models.SymbolRecord{Name: "untested", Kind: models.SymbolFunction, Line: 9},
		models.SymbolRecord{Name: "Loader", Kind: models.SymbolClass, Line: 12},
		models.SymbolRecord{Name: "Loader.load", Kind: models.SymbolMethod, Class: "Loader", Line: 13},
	)
	add(models.FileRecord{
		Path:     "tests/test_parse.py",
		Language: "python",
		Imports:  []models.Import{{Module: "app.parse", Names: []string{"parse_config"}}},
	},
		models.SymbolRecord{Name: "test_parse_config_empty", Kind: models.SymbolFunction, Line: 3},
		models.SymbolRecord{Name: "test_roundtrip", Kind: models.SymbolFunction, Line: 8, Calls: []string{"parse_config"}},
		models.SymbolRecord{Name: "TestLoader", Kind: models.SymbolClass, Line: 12},
	)
	idx.CallGraph = callgraph.Build(idx.Symbols)
	return idx
}

func TestIsTestFile(t *testing.T) {
	for _, p := range []string{
		"tests/test_x.py", "pkg/x_test.go", "src/a.test.ts", "src/a.spec.js",
		"web/__tests__/a.js", "test_module.py", "mod/x_test.py",
	} {
		assert.True(t, IsTestFile(p), p)
	}
	for _, p := range []string{"src/contest.py", "pkg/x.go", "src/latest.ts", "testing/helpers.go"} {
		assert.False(t, IsTestFile(p), p)
	}
}

func TestForUnionsSignals(t *testing.T) {
	g := callgraph.New(fixture())
	got, err := For(g, "parse_config")
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{File: "tests/test_parse.py", Signals: []Signal{SignalImport}},
		{File: "tests/test_parse.py", Test: "tests/test_parse.py:test_parse_config_empty", Line: 3, Signals: []Signal{SignalNaming}},
		{File: "tests/test_parse.py", Test: "tests/test_parse.py:test_roundtrip", Line: 8, Signals: []Signal{SignalCall}},
	}, got)
}

func TestForClassNaming(t *testing.T) {
	g := callgraph.New(fixture())
	got, err := For(g, "app/parse.py:Loader")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tests/test_parse.py:TestLoader", got[0].Test)
	assert.Equal(t, []Signal{SignalNaming}, got[0].Signals)
}

func TestForUnknownSymbol(t *testing.T) {
	_, err := For(callgraph.New(fixture()), "nope")
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
}

func TestCoverageGaps(t *testing.T) {
	gaps := CoverageGaps(fixture())
	var names []string
	for _, g := range gaps {
		names = append(names, g.QualifiedName)
	}
	assert.Equal(t, []string{"app/parse.py:Loader.load", "app/parse.py:untested"}, names)
}

func TestSnake(t *testing.T) {
	assert.Equal(t, "parse_url", Snake("parseURL"))
	assert.Equal(t, "http_server", Snake("HTTPServer"))
	assert.Equal(t, "already_snake", Snake("already_snake"))
}

func TestNamingCandidatesForMethod(t *testing.T) {
	s := models.SymbolRecord{Name: "Store.getItem", Class: "Store", Kind: models.SymbolMethod}
	assert.Equal(t, []string{
		"test_getItem", "test_get_item", "testGetItem", "TestGetItem",
		"TestStore_getItem", "TestStoreGetItem", "test_store_get_item",
	}, NamingCandidates(s))
}
