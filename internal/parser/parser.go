package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/util"
)

// Result is the normalized output of extracting one file.
type Result struct {
	Mode    models.ParseMode
	File    models.FileRecord
	Symbols []models.SymbolRecord
}

// Extractor turns the text of one source file into symbol records.
type Extractor interface {
	Language() string
	Extensions() []string
	// Precise builds a syntax tree and walks it. It returns an error when the
	// source cannot be parsed cleanly.
	Precise(path string, code []byte) (*Result, error)
	// Fallback recognizes definitions line by line. It never fails.
	Fallback(path string, code []byte) *Result
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt    map[string]Extractor
	excludes []string
}

func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byExt: map[string]Extractor{}}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Exclude skips files whose name ends with any of the given suffixes even when
// their extension is registered (".d.ts", ".min.js").
func (r *Registry) Exclude(suffixes ...string) {
	r.excludes = append(r.excludes, suffixes...)
}

func (r *Registry) ForPath(path string) (Extractor, bool) {
	lower := strings.ToLower(path)
	for _, s := range r.excludes {
		if strings.HasSuffix(lower, s) {
			return nil, false
		}
	}
	e, ok := r.byExt[filepath.Ext(lower)]
	return e, ok
}

func (r *Registry) Supports(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Languages lists registered language names in lexical order.
func (r *Registry) Languages() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range r.byExt {
		if !seen[e.Language()] {
			seen[e.Language()] = true
			out = append(out, e.Language())
		}
	}
	sort.Strings(out)
	return out
}

// Extract runs the precise strategy and falls back to pattern matching when it
// fails. Path must be repository-relative and slash separated.
func Extract(e Extractor, path string, code []byte) *Result {
	res, err := tryPrecise(e, path, code)
	if err != nil || res == nil {
		res = tryFallback(e, path, code)
	}
	return finish(e, path, code, res)
}

func tryPrecise(e Extractor, path string, code []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("precise parse of %s panicked: %v", path, r)
		}
	}()
	res, err = e.Precise(path, code)
	if res != nil {
		res.Mode = models.ParsePrecise
	}
	return res, err
}

func tryFallback(e Extractor, path string, code []byte) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
		}
	}()
	res = e.Fallback(path, code)
	if res != nil {
		res.Mode = models.ParseFallback
	}
	return res
}

// Empty is the valid result of a file nothing could be extracted from.
func Empty() *Result {
	return &Result{Mode: models.ParseEmpty}
}

func finish(e Extractor, path string, code []byte, res *Result) *Result {
	if res == nil {
		res = Empty()
	}
	if res.Mode == models.ParseFallback && len(res.Symbols) == 0 && len(res.File.Imports) == 0 {
		res.Mode = models.ParseEmpty
	}
	res.File.Path = path
	res.File.Language = e.Language()
	res.File.Hash = util.ContentHash(code)
	res.File.Lines = CountLines(code)
	res.File.ParseMode = res.Mode

	taken := map[string]bool{}
	names := make([]string, 0, len(res.Symbols))
	for i := range res.Symbols {
		sym := &res.Symbols[i]
		sym.File = path
		q := util.QualifiedName(path, sym.Name)
		if taken[q] {
			q = util.Disambiguate(q, sym.Line)
		}
		taken[q] = true
		sym.QualifiedName = q
		sym.Calls = DedupeCalls(sym.Calls)
		if sym.Signature.Params == nil {
			sym.Signature.Params = []models.Param{}
		}
		names = append(names, q)
	}
	res.File.Symbols = names
	return res
}

// DedupeCalls drops repeated call targets keeping first-occurrence order.
func DedupeCalls(calls []string) []string {
	out := make([]string, 0, len(calls))
	seen := make(map[string]bool, len(calls))
	for _, c := range calls {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func CountLines(code []byte) int {
	if len(code) == 0 {
		return 0
	}
	n := bytes.Count(code, []byte{'\n'})
	if code[len(code)-1] != '\n' {
		n++
	}
	return n
}
