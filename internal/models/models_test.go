package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
	assert.Equal(t, "run", SymbolRecord{Name: "Service.run"}.ShortName())
	assert.Equal(t, "main", SymbolRecord{Name: "main"}.ShortName())
}

func TestEmbeddingRecordValid(t *testing.T) {
	sym := SymbolRecord{BodyHash: "abc"}
	assert.True(t, EmbeddingRecord{Vector: []float32{1}, SourceHash: "abc"}.Valid(sym))
	assert.False(t, EmbeddingRecord{Vector: []float32{1}, SourceHash: "old"}.Valid(sym))
	assert.False(t, EmbeddingRecord{Vector: []float32{1}, SourceHash: "abc", Stale: true}.Valid(sym))
	assert.False(t, EmbeddingRecord{SourceHash: "abc"}.Valid(sym))
}

func TestSymbolsInFile(t *testing.T) {
	idx := NewIndex("/repo", "repo")
	idx.Files["a.py"] = FileRecord{Path: "a.py", Symbols: []string{"a.py:b", "a.py:a", "a.py:gone"}}
	idx.Symbols["a.py:a"] = SymbolRecord{QualifiedName: "a.py:a", Line: 1}
	idx.Symbols["a.py:b"] = SymbolRecord{QualifiedName: "a.py:b", Line: 9}

	got := idx.SymbolsInFile("a.py")
	assert.Len(t, got, 2)
	assert.Equal(t, "a.py:a", got[0].QualifiedName)
	assert.Nil(t, idx.SymbolsInFile("missing.py"))
	assert.Equal(t, []string{"a.py:a", "a.py:b"}, idx.SortedSymbols())
}

func TestCompatible(t *testing.T) {
	idx := NewIndex("/repo", "repo")
	assert.False(t, idx.Compatible(), "never generated")

	idx.Metadata.GeneratedAt = time.Now()
	assert.True(t, idx.Compatible())

	idx.Metadata.SchemaVersion = SchemaVersion + 1
	assert.False(t, idx.Compatible())

	var missing *Index
	assert.False(t, missing.Compatible())
}

func TestStringToSymbolKind(t *testing.T) {
	assert.Equal(t, SymbolMethod, StringToSymbolKind("method"))
	assert.Equal(t, SymbolClass, StringToSymbolKind("class"))
	assert.Equal(t, SymbolFunction, StringToSymbolKind("whatever"))
}
