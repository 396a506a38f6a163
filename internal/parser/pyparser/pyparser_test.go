package pyparser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/parser/pyparser"
)

const sample = `import os
import numpy as np
from .utils import helper, other as o
from ..pkg.mod import *

@app.route("/items")
def list_items(limit: int = 10, *args, **kw) -> list:
    """Return items."""
    rows = db.query(limit)
    helper(rows)
    return [format(r) for r in rows]

class Store(Base):
    """A store."""

    def __init__(self, path):
        self.path = path

    def save(self, item):
        def encode(x):
            return json.dumps(x)
        self.write(encode(item))
        get_client().send(item)
`

func byName(syms []models.SymbolRecord) map[string]models.SymbolRecord {
	out := map[string]models.SymbolRecord{}
	for _, s := range syms {
		out[s.Name] = s
	}
	return out
}

func TestPrecise(t *testing.T) {
	res := parser.Extract(pyparser.New(), "pkg/app.py", []byte(sample))
	require.Equal(t, models.ParsePrecise, res.Mode)
	assert.Equal(t, "python", res.File.Language)

	syms := byName(res.Symbols)
	require.Contains(t, syms, "list_items")
	fn := syms["list_items"]
	assert.Equal(t, "pkg/app.py:list_items", fn.QualifiedName)
	assert.Equal(t, models.SymbolFunction, fn.Kind)
	assert.Equal(t, 7, fn.Line)
	assert.Equal(t, "Return items.", fn.Docstring)
	assert.Equal(t, []string{`app.route("/items")`}, fn.Decorators)
	assert.Equal(t, "list", fn.Signature.Returns)
	require.Len(t, fn.Signature.Params, 3)
	assert.Equal(t, models.Param{Name: "limit", Type: "int", Default: "10"}, fn.Signature.Params[0])
	assert.Equal(t, "*args", fn.Signature.Params[1].Name)
	assert.Equal(t, "**kw", fn.Signature.Params[2].Name)
	assert.Equal(t, []string{"db.query", "helper", "format"}, fn.Calls)

	require.Contains(t, syms, "Store")
	assert.Equal(t, models.SymbolClass, syms["Store"].Kind)

	save := syms["Store.save"]
	assert.Equal(t, models.SymbolMethod, save.Kind)
	assert.Equal(t, "Store", save.Class)
	assert.Equal(t, "pkg/app.py:Store.save", save.QualifiedName)
	assert.Equal(t, []string{"self.write", "encode", "send", "get_client"}, save.Calls)

	inner := syms["Store.save.encode"]
	assert.Equal(t, models.SymbolFunction, inner.Kind)
	assert.Equal(t, []string{"json.dumps"}, inner.Calls)

	require.Len(t, res.File.Imports, 4)
	assert.Equal(t, models.Import{Module: "os"}, res.File.Imports[0])
	assert.Equal(t, models.Import{Module: "numpy", Alias: "np"}, res.File.Imports[1])
	assert.Equal(t, models.Import{Module: "utils", Names: []string{"helper", "other"}, Relative: 1}, res.File.Imports[2])
	assert.Equal(t, models.Import{Module: "pkg.mod", Names: []string{"*"}, Relative: 2}, res.File.Imports[3])
}

func TestStructuralHashIgnoresNames(t *testing.T) {
	code := `def alpha(x):
    return x + 1

def beta(y):
    # renamed
    return y + 1

def gamma(x):
    return x + 2
`
	res := parser.Extract(pyparser.New(), "m.py", []byte(code))
	syms := byName(res.Symbols)
	assert.Equal(t, syms["alpha"].StructuralHash, syms["beta"].StructuralHash)
	assert.NotEqual(t, syms["alpha"].StructuralHash, syms["gamma"].StructuralHash)
	assert.NotEqual(t, syms["alpha"].BodyHash, syms["beta"].BodyHash)
}

func TestAttributeNamesStayLiteral(t *testing.T) {
	code := `def a(o):
    return o.read()

def b(o):
    return o.write()
`
	res := parser.Extract(pyparser.New(), "m.py", []byte(code))
	syms := byName(res.Symbols)
	assert.NotEqual(t, syms["a"].StructuralHash, syms["b"].StructuralHash)
}

func TestFallbackOnSyntaxError(t *testing.T) {
	code := `import os

@cached
def good(a, b=2):
    return compute(a) + b

def broken(:
    pass

class Thing:
    def run(self):
        self.step()
`
	res := parser.Extract(pyparser.New(), "bad.py", []byte(code))
	require.Equal(t, models.ParseFallback, res.Mode)

	syms := byName(res.Symbols)
	good := syms["good"]
	assert.Equal(t, 4, good.Line)
	assert.Equal(t, 5, good.EndLine)
	assert.Equal(t, []string{"cached"}, good.Decorators)
	assert.Equal(t, []string{"compute"}, good.Calls)
	require.Len(t, good.Signature.Params, 2)
	assert.Equal(t, "2", good.Signature.Params[1].Default)

	run := syms["Thing.run"]
	assert.Equal(t, models.SymbolMethod, run.Kind)
	assert.Equal(t, "Thing", run.Class)
	assert.Equal(t, []string{"self.step"}, run.Calls)

	assert.Equal(t, []models.Import{{Module: "os"}}, res.File.Imports)
}

func TestEmptyFile(t *testing.T) {
	res := parser.Extract(pyparser.New(), "empty.py", nil)
	assert.Empty(t, res.Symbols)
	assert.Equal(t, 0, res.File.Lines)
	assert.NotNil(t, res.File.Symbols)
}

func TestDuplicateNamesAreDisambiguated(t *testing.T) {
	code := `def f():
    pass

def f():
    pass
`
	res := parser.Extract(pyparser.New(), "dup.py", []byte(code))
	require.Len(t, res.Symbols, 2)
	assert.Equal(t, "dup.py:f", res.Symbols[0].QualifiedName)
	assert.Equal(t, "dup.py:f@4", res.Symbols[1].QualifiedName)
}
