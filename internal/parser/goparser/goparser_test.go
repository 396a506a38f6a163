package goparser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/parser/goparser"
)

const goSource = `package store

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Store keeps items.
type Store struct {
	items map[string]int
}

// Get returns one item.
func (s *Store) Get(key string) (int, error) {
	v, ok := s.items[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	log.Debug("hit")
	return v, nil
}

func Handle(w http.ResponseWriter, r *http.Request) {
	s := NewStore()
	s.Get(r.URL.Path)
	newClient().Do(r)
}

func sum(a, b int, rest ...int) int { return a + b }
`

func byName(syms []models.SymbolRecord) map[string]models.SymbolRecord {
	out := map[string]models.SymbolRecord{}
	for _, s := range syms {
		out[s.Name] = s
	}
	return out
}

func TestGoPrecise(t *testing.T) {
	res := parser.Extract(goparser.New(), "store/store.go", []byte(goSource))
	require.Equal(t, models.ParsePrecise, res.Mode)

	syms := byName(res.Symbols)
	st := syms["Store"]
	assert.Equal(t, models.SymbolClass, st.Kind)
	assert.Equal(t, "Store keeps items.", st.Docstring)

	get := syms["Store.Get"]
	assert.Equal(t, "store/store.go:Store.Get", get.QualifiedName)
	assert.Equal(t, models.SymbolMethod, get.Kind)
	assert.Equal(t, "Store", get.Class)
	assert.Equal(t, "Get returns one item.", get.Docstring)
	assert.Equal(t, "(int, error)", get.Signature.Returns)
	assert.Equal(t, []models.Param{{Name: "key", Type: "string"}}, get.Signature.Params)
	assert.Equal(t, []string{"fmt.Errorf", "log.Debug"}, get.Calls)

	handle := syms["Handle"]
	assert.Equal(t, []string{"NewStore", "s.Get", "Do", "newClient"}, handle.Calls)
	assert.Equal(t, "http.ResponseWriter", handle.Signature.Params[0].Type)

	add := syms["sum"]
	assert.Equal(t, []models.Param{
		{Name: "a", Type: "int"},
		{Name: "b", Type: "int"},
		{Name: "rest", Type: "...int"},
	}, add.Signature.Params)

	assert.Equal(t, []models.Import{
		{Module: "fmt"},
		{Module: "net/http"},
		{Module: "github.com/sirupsen/logrus", Alias: "log"},
	}, res.File.Imports)
}

func TestGoFallback(t *testing.T) {
	src := `package x

import (
	"fmt"
	"strings"
)

func (c *Cache) Put(key string, v int) {
	c.data[key] = v
	fmt.Println(key)
}

func broken( {
`
	res := parser.Extract(goparser.New(), "x/cache.go", []byte(src))
	require.Equal(t, models.ParseFallback, res.Mode)
	assert.Equal(t, []models.Import{{Module: "fmt"}, {Module: "strings"}}, res.File.Imports)

	syms := byName(res.Symbols)
	put := syms["Cache.Put"]
	assert.Equal(t, models.SymbolMethod, put.Kind)
	assert.Equal(t, "Cache", put.Class)
	assert.Equal(t, 8, put.Line)
	assert.Equal(t, 11, put.EndLine)
	assert.Equal(t, []string{"fmt.Println"}, put.Calls)
	assert.Contains(t, syms, "broken")
}

func TestGoDocCommentChangesBodyHash(t *testing.T) {
	before := parser.Extract(goparser.New(), "a.go", []byte("package a\n\n// Add sums.\nfunc Add(a, b int) int { return a + b }\n"))
	after := parser.Extract(goparser.New(), "a.go", []byte("package a\n\n// Add returns a plus b.\nfunc Add(a, b int) int { return a + b }\n"))
	require.Len(t, before.Symbols, 1)
	require.Len(t, after.Symbols, 1)
	assert.NotEqual(t, before.Symbols[0].BodyHash, after.Symbols[0].BodyHash)
	assert.Equal(t, before.Symbols[0].StructuralHash, after.Symbols[0].StructuralHash)
}
