package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

type file struct {
	path    string
	imports []string
	syms    []models.SymbolRecord
}

func build(files ...file) *callgraph.Graph {
	idx := models.NewIndex("/repo", "repo")
	for _, f := range files {
		rec := models.FileRecord{Path: f.path, InternalImports: f.imports}
		for _, s := range f.syms {
			s.File = f.path
			s.QualifiedName = f.path + ":" + s.Name
			idx.Symbols[s.QualifiedName] = s
			rec.Symbols = append(rec.Symbols, s.QualifiedName)
		}
		idx.Files[f.path] = rec
	}
	idx.CallGraph = callgraph.Build(idx.Symbols)
	return callgraph.New(idx)
}

func fn(name string, line int, calls ...string) models.SymbolRecord {
	return models.SymbolRecord{Name: name, Kind: models.SymbolFunction, Line: line, Calls: calls}
}

func TestTwoFileScenario(t *testing.T) {
	g := build(
		file{path: "a.py", syms: []models.SymbolRecord{fn("foo", 1)}},
		file{path: "b.py", syms: []models.SymbolRecord{fn("bar", 1, "foo")}},
	)
	rep, err := Analyze(g, "a.py", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py:foo"}, rep.Symbols)
	assert.Equal(t, []Caller{{QualifiedName: "b.py:bar", File: "b.py", Line: 1, Depth: 1, Via: "a.py:foo"}}, rep.DirectCallers)
	assert.Empty(t, rep.TransitiveCallers)
}

func TestNoCallersStillListsSymbols(t *testing.T) {
	g := build(file{path: "lonely.py", syms: []models.SymbolRecord{fn("one", 1), fn("two", 5, "one")}})
	rep, err := Analyze(g, "lonely.py", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"lonely.py:one", "lonely.py:two"}, rep.Symbols)
	assert.Empty(t, rep.DirectCallers)
	assert.Empty(t, rep.TransitiveCallers)
	assert.NotNil(t, rep.DirectCallers)
}

func TestDepthBoundAndTests(t *testing.T) {
	g := build(
		file{path: "core.py", syms: []models.SymbolRecord{fn("core", 1)}},
		file{path: "svc.py", syms: []models.SymbolRecord{fn("service", 1, "core")}},
		file{path: "api.py", syms: []models.SymbolRecord{{
			Name: "handler", Kind: models.SymbolFunction, Line: 3,
			Calls: []string{"svc.service"}, Decorators: []string{`@app.get("/items")`},
		}}},
		file{path: "top.py", syms: []models.SymbolRecord{fn("main", 1, "handler")}},
		file{path: "tests/test_svc.py", syms: []models.SymbolRecord{fn("test_service", 1, "service")}},
		file{path: "tests/test_core.py", imports: []string{"core.py"}},
	)
	rep, err := Analyze(g, "core.py", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Caller{{QualifiedName: "svc.py:service", File: "svc.py", Line: 1, Depth: 1, Via: "core.py:core"}}, rep.DirectCallers)
	require.Len(t, rep.TransitiveCallers, 2)
	assert.Equal(t, "api.py:handler", rep.TransitiveCallers[0].QualifiedName)
	assert.Equal(t, "tests/test_svc.py:test_service", rep.TransitiveCallers[1].QualifiedName)
	assert.Equal(t, []string{"tests/test_core.py", "tests/test_svc.py"}, rep.Tests)
	require.Len(t, rep.Endpoints, 1)
	assert.Equal(t, "api.py:handler", rep.Endpoints[0].QualifiedName)

	deep, err := Analyze(g, "core.py", Options{Depth: 3})
	require.NoError(t, err)
	assert.Len(t, deep.TransitiveCallers, 3)
}

func TestUnknownFile(t *testing.T) {
	_, err := Analyze(build(), "missing.py", Options{})
	assert.ErrorIs(t, err, models.ErrFileNotIndexed)
}

func TestEndpointReason(t *testing.T) {
	_, ok := EndpointReason(models.SymbolRecord{Decorators: []string{"@router.post('/x')"}})
	assert.True(t, ok)
	_, ok = EndpointReason(models.SymbolRecord{Decorators: []string{"@staticmethod"}})
	assert.False(t, ok)
	reason, ok := EndpointReason(models.SymbolRecord{Signature: models.Signature{Params: []models.Param{
		{Name: "w", Type: "http.ResponseWriter"}, {Name: "r", Type: "*http.Request"},
	}}})
	assert.True(t, ok)
	assert.Equal(t, "handler parameter http.ResponseWriter", reason)
}
