package models

import (
	"sort"
	"strings"
	"time"
)

// SchemaVersion is bumped whenever the persisted index layout changes incompatibly.
const SchemaVersion = 1

type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
)

func StringToSymbolKind(s string) SymbolKind {
	switch s {
	case "method":
		return SymbolMethod
	case "class":
		return SymbolClass
	default:
		return SymbolFunction
	}
}

// ParseMode records which extraction strategy produced a file's records.
type ParseMode string

const (
	ParsePrecise  ParseMode = "precise"
	ParseFallback ParseMode = "fallback"
	ParseEmpty    ParseMode = "empty"
)

type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

type Signature struct {
	Params  []Param `json:"params"`
	Returns string  `json:"returns,omitempty"`
}

type Import struct {
	Module   string   `json:"module"`
	Names    []string `json:"names,omitempty"`
	Alias    string   `json:"alias,omitempty"`
	Relative int      `json:"relative,omitempty"`
}

type FileRecord struct {
	Path            string    `json:"path"`
	Language        string    `json:"language"`
	Hash            string    `json:"hash"`
	Lines           int       `json:"lines"`
	ParseMode       ParseMode `json:"parse_mode"`
	Error           string    `json:"error,omitempty"`
	Symbols         []string  `json:"symbols"`
	Imports         []Import  `json:"imports,omitempty"`
	InternalImports []string  `json:"internal_imports"`
	ExternalImports []string  `json:"external_imports"`
}

type SymbolRecord struct {
	QualifiedName  string     `json:"qualified_name"`
	Name           string     `json:"name"`
	Kind           SymbolKind `json:"kind"`
	File           string     `json:"file"`
	Line           int        `json:"line"`
	EndLine        int        `json:"end_line"`
	Signature      Signature  `json:"signature"`
	Class          string     `json:"class,omitempty"`
	Docstring      string     `json:"docstring,omitempty"`
	Decorators     []string   `json:"decorators,omitempty"`
	Calls          []string   `json:"calls"`
	BodyHash       string     `json:"body_hash"`
	StructuralHash string     `json:"structural_hash"`
}

// ShortName is the name a caller would use at a call site: the last segment
// of the dotted symbol path.
func (s SymbolRecord) ShortName() string {
	if i := strings.LastIndexByte(s.Name, '.'); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

type CallGraphEntry struct {
	File  string   `json:"file"`
	Line  int      `json:"line"`
	Calls []string `json:"calls"`
}

type Repository struct {
	Root string `json:"root"`
	Name string `json:"name"`
}

type Metadata struct {
	SchemaVersion int        `json:"schema_version"`
	GeneratedAt   time.Time  `json:"generated_at"`
	GenerationID  string     `json:"generation_id"`
	Repository    Repository `json:"repository"`
}

type EmbeddingRecord struct {
	Vector     []float32 `json:"vector"`
	SourceHash string    `json:"source_hash"`
	Stale      bool      `json:"stale,omitempty"`
}

type EmbeddingStore struct {
	Model     string                     `json:"model"`
	Dimension int                        `json:"dimension"`
	Records   map[string]EmbeddingRecord `json:"records"`
}

// Valid reports whether rec may be trusted for sym.
func (r EmbeddingRecord) Valid(sym SymbolRecord) bool {
	return !r.Stale && len(r.Vector) > 0 && r.SourceHash == sym.BodyHash
}

type DuplicateMember struct {
	QualifiedName string `json:"qualified_name"`
	File          string `json:"file"`
	Line          int    `json:"line"`
}

type DuplicateCluster struct {
	StructuralHash string            `json:"structural_hash"`
	Members        []DuplicateMember `json:"members"`
}

type ImportSummary struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

type PackageCount struct {
	Package string `json:"package"`
	Files   int    `json:"files"`
}

type ImportAnalysis struct {
	Files       map[string]ImportSummary `json:"files"`
	TopExternal []PackageCount           `json:"top_external"`
}

type CoverageGap struct {
	QualifiedName string     `json:"qualified_name"`
	File          string     `json:"file"`
	Line          int        `json:"line"`
	Kind          SymbolKind `json:"kind"`
}

type Summaries struct {
	Imports      ImportAnalysis     `json:"imports"`
	Duplicates   []DuplicateCluster `json:"duplicates"`
	CoverageGaps []CoverageGap      `json:"coverage_gaps"`
}

// Index is the root aggregate persisted as one snapshot document.
type Index struct {
	Metadata   Metadata                  `json:"metadata"`
	Files      map[string]FileRecord     `json:"files"`
	Symbols    map[string]SymbolRecord   `json:"symbols"`
	CallGraph  map[string]CallGraphEntry `json:"call_graph"`
	Embeddings *EmbeddingStore           `json:"embeddings,omitempty"`
	Summaries  Summaries                 `json:"summaries"`
}

func NewIndex(root, name string) *Index {
	return &Index{
		Metadata: Metadata{
			SchemaVersion: SchemaVersion,
			Repository:    Repository{Root: root, Name: name},
		},
		Files:     map[string]FileRecord{},
		Symbols:   map[string]SymbolRecord{},
		CallGraph: map[string]CallGraphEntry{},
	}
}

// SortedFiles returns file paths in lexical order.
func (idx *Index) SortedFiles() []string {
	out := make([]string, 0, len(idx.Files))
	for p := range idx.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SortedSymbols returns qualified names in lexical order.
func (idx *Index) SortedSymbols() []string {
	out := make([]string, 0, len(idx.Symbols))
	for q := range idx.Symbols {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// SymbolsInFile returns the records defined in path ordered by line.
func (idx *Index) SymbolsInFile(path string) []SymbolRecord {
	f, ok := idx.Files[path]
	if !ok {
		return nil
	}
	out := make([]SymbolRecord, 0, len(f.Symbols))
	for _, q := range f.Symbols {
		if s, ok := idx.Symbols[q]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// Compatible reports whether idx can be patched incrementally.
func (idx *Index) Compatible() bool {
	return idx != nil && !idx.Metadata.GeneratedAt.IsZero() &&
		idx.Metadata.SchemaVersion == SchemaVersion &&
		idx.Files != nil && idx.Symbols != nil && idx.CallGraph != nil
}

// Index progress and stages
type IndexStage string

const (
	IndexStageScan  IndexStage = "scan"
	IndexStageParse IndexStage = "parse"
	IndexStageFinal IndexStage = "finalize"
	IndexStageEmbed IndexStage = "embed"
	IndexStageDone  IndexStage = "done"
)

// IndexProgress represents streaming progress updates for indexing
type IndexProgress struct {
	Stage       IndexStage
	TotalFiles  int
	ParsedFiles int
	CurrentFile string
}
