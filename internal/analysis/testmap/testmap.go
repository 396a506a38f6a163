// Package testmap maps symbols to the tests that likely exercise them.
package testmap

import (
	"path"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

type Signal string

const (
	SignalImport Signal = "import"
	SignalCall   Signal = "call"
	SignalNaming Signal = "naming"
)

// Match is one candidate test. Test is empty when the signal applies to the
// whole file.
type Match struct {
	File    string   `json:"file"`
	Test    string   `json:"test,omitempty"`
	Line    int      `json:"line,omitempty"`
	Signals []Signal `json:"signals"`
}

var testDirs = map[string]bool{"test": true, "tests": true, "__tests__": true}

// IsTestFile recognizes test files by path conventions of the supported
// languages.
func IsTestFile(p string) bool {
	p = strings.ToLower(p)
	base := path.Base(p)
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasSuffix(base, "_test.py"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."):
		return true
	}
	for _, dir := range strings.Split(path.Dir(p), "/") {
		if testDirs[dir] {
			return true
		}
	}
	return false
}

// For returns the tests associated with the symbol query by any signal.
func For(g *callgraph.Graph, query string) ([]Match, error) {
	syms := g.Lookup(query)
	if len(syms) == 0 {
		return nil, models.ErrSymbolNotFound
	}
	target := syms[0]
	name := target.ShortName()
	idx := g.Index()
	names := NamingCandidates(target)

	type key struct{ file, test string }
	found := map[key]*Match{}
	add := func(k key, line int, sig Signal) {
		m, ok := found[k]
		if !ok {
			m = &Match{File: k.file, Test: k.test, Line: line}
			found[k] = m
		}
		for _, s := range m.Signals {
			if s == sig {
				return
			}
		}
		m.Signals = append(m.Signals, sig)
	}

	for _, p := range idx.SortedFiles() {
		if !IsTestFile(p) || p == target.File {
			continue
		}
		f := idx.Files[p]
		if importsName(f, name, target.Class) {
			add(key{file: p}, 0, SignalImport)
		}
		for _, s := range idx.SymbolsInFile(p) {
			k := key{file: p, test: s.QualifiedName}
			for _, t := range idx.CallGraph[s.QualifiedName].Calls {
				if kind, ok := callgraph.Match(t, name); ok && kind == callgraph.MatchExact {
					add(k, s.Line, SignalCall)
					break
				}
			}
			if namingMatch(s.ShortName(), names) || (s.Kind == models.SymbolClass && namingMatch(s.Name, names)) {
				add(k, s.Line, SignalNaming)
			}
		}
	}

	out := make([]Match, 0, len(found))
	for _, m := range found {
		sort.Slice(m.Signals, func(i, j int) bool { return m.Signals[i] < m.Signals[j] })
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Test < out[j].Test
	})
	return out, nil
}

func importsName(f models.FileRecord, name, class string) bool {
	for _, imp := range f.Imports {
		for _, n := range imp.Names {
			if n == name || (class != "" && n == class) {
				return true
			}
		}
		mod := imp.Module
		if i := strings.LastIndexAny(mod, "./"); i >= 0 {
			mod = mod[i+1:]
		}
		if mod == name {
			return true
		}
	}
	return false
}

// NamingCandidates lists the test names conventionally written for s.
func NamingCandidates(s models.SymbolRecord) []string {
	name := s.ShortName()
	snake := Snake(name)
	upper := upperFirst(name)
	out := []string{"test_" + name, "test_" + snake, "test" + upper, "Test" + upper}
	if s.Class != "" {
		class := callgraph.LastSegment(s.Class)
		out = append(out,
			"Test"+upperFirst(class)+"_"+name,
			"Test"+upperFirst(class)+upper,
			"test_"+Snake(class)+"_"+snake,
		)
	}
	return dedupe(out)
}

// namingMatch accepts an exact candidate or a candidate followed by an
// underscore-separated suffix (test_parse_empty for parse).
func namingMatch(test string, candidates []string) bool {
	for _, c := range candidates {
		if test == c || strings.HasPrefix(test, c+"_") {
			return true
		}
	}
	return false
}

// CoverageGaps lists functions and methods outside test files that no test
// calls or names.
func CoverageGaps(idx *models.Index) []models.CoverageGap {
	called := map[string]bool{}
	named := map[string]bool{}
	for _, p := range idx.SortedFiles() {
		if !IsTestFile(p) {
			continue
		}
		for _, s := range idx.SymbolsInFile(p) {
			for _, t := range idx.CallGraph[s.QualifiedName].Calls {
				called[callgraph.LastSegment(t)] = true
			}
			for _, n := range []string{s.ShortName(), s.Name} {
				for _, prefix := range underscorePrefixes(n) {
					named[prefix] = true
				}
			}
		}
	}

	out := []models.CoverageGap{}
	for _, q := range idx.SortedSymbols() {
		s := idx.Symbols[q]
		if s.Kind == models.SymbolClass || IsTestFile(s.File) || called[s.ShortName()] {
			continue
		}
		covered := false
		for _, c := range NamingCandidates(s) {
			if named[c] {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, models.CoverageGap{QualifiedName: q, File: s.File, Line: s.Line, Kind: s.Kind})
		}
	}
	return out
}

// underscorePrefixes returns s and every prefix of s ending before an
// underscore.
func underscorePrefixes(s string) []string {
	out := []string{s}
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == '_' {
			out = append(out, s[:i])
		}
	}
	return out
}

// Snake converts camelCase and PascalCase to snake_case.
func Snake(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && rs[i-1] != '_' && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1]) ||
				(i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
