// Package callgraph builds the forward call graph of an index and answers
// reverse lookups by name matching.
package callgraph

import (
	"sort"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/util"
)

type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// Caller is a forward entry whose call list references the queried name.
type Caller struct {
	QualifiedName string    `json:"qualified_name"`
	File          string    `json:"file"`
	Line          int       `json:"line"`
	Target        string    `json:"target"`
	Match         MatchKind `json:"match"`
}

// Callee is one raw call target with the definitions its name resolves to.
type Callee struct {
	Target      string   `json:"target"`
	Definitions []string `json:"definitions"`
}

// Build derives one CallGraphEntry per symbol.
func Build(symbols map[string]models.SymbolRecord) map[string]models.CallGraphEntry {
	out := make(map[string]models.CallGraphEntry, len(symbols))
	for q, s := range symbols {
		out[q] = EntryFor(s)
	}
	return out
}

// EntryFor is the forward entry of one symbol.
func EntryFor(s models.SymbolRecord) models.CallGraphEntry {
	calls := make([]string, len(s.Calls))
	copy(calls, s.Calls)
	return models.CallGraphEntry{File: s.File, Line: s.Line, Calls: calls}
}

type edge struct {
	caller string
	target string
}

// Graph is a read-only view over an index with name lookup tables.
type Graph struct {
	idx     *models.Index
	entries []string
	byShort map[string][]string
	byName  map[string][]string
	byLast  map[string][]edge
}

func New(idx *models.Index) *Graph {
	g := &Graph{
		idx:     idx,
		byShort: map[string][]string{},
		byName:  map[string][]string{},
		byLast:  map[string][]edge{},
	}
	for _, q := range idx.SortedSymbols() {
		s := idx.Symbols[q]
		g.byShort[s.ShortName()] = append(g.byShort[s.ShortName()], q)
		g.byName[s.Name] = append(g.byName[s.Name], q)
	}
	for q := range idx.CallGraph {
		g.entries = append(g.entries, q)
	}
	sort.Strings(g.entries)
	for _, q := range g.entries {
		for _, t := range idx.CallGraph[q].Calls {
			last := LastSegment(t)
			g.byLast[last] = append(g.byLast[last], edge{caller: q, target: t})
		}
	}
	return g
}

func (g *Graph) Index() *models.Index { return g.idx }

// LastSegment returns the part of a call target after its final dot.
func LastSegment(target string) string {
	if i := strings.LastIndexByte(target, '.'); i >= 0 {
		return target[i+1:]
	}
	return target
}

// Match classifies how a call target refers to name.
func Match(target, name string) (MatchKind, bool) {
	if name == "" {
		return "", false
	}
	if target == name || strings.HasSuffix(target, "."+name) {
		return MatchExact, true
	}
	if strings.Contains(strings.ToLower(target), strings.ToLower(name)) {
		return MatchFuzzy, true
	}
	return "", false
}

// QueryName reduces a query to the name matched against call targets: the
// short name of a known symbol, otherwise the text after the last colon.
func (g *Graph) QueryName(query string) string {
	if s, ok := g.idx.Symbols[query]; ok {
		return s.ShortName()
	}
	_, name := util.SplitQualified(query)
	if qs := g.byName[name]; len(qs) > 0 {
		return g.idx.Symbols[qs[0]].ShortName()
	}
	return name
}

// Callers scans every forward entry for targets matching query. Each entry is
// reported once with its strongest match; exact matches sort first.
func (g *Graph) Callers(query string) []Caller {
	name := g.QueryName(query)
	var out []Caller
	for _, q := range g.entries {
		entry := g.idx.CallGraph[q]
		var best *Caller
		for _, t := range entry.Calls {
			kind, ok := Match(t, name)
			if !ok {
				continue
			}
			if best == nil || (kind == MatchExact && best.Match != MatchExact) {
				best = &Caller{QualifiedName: q, File: entry.File, Line: entry.Line, Target: t, Match: kind}
			}
			if kind == MatchExact {
				break
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Match != out[j].Match {
			return out[i].Match == MatchExact
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// ExactCallers returns the qualified names of entries with an exact call to
// name, sorted.
func (g *Graph) ExactCallers(name string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range g.byLast[LastSegment(name)] {
		if kind, ok := Match(e.target, name); !ok || kind != MatchExact || seen[e.caller] {
			continue
		}
		seen[e.caller] = true
		out = append(out, e.caller)
	}
	sort.Strings(out)
	return out
}

// Callees lists the targets called by the symbol query with the definitions
// each target name resolves to.
func (g *Graph) Callees(query string) ([]Callee, error) {
	syms := g.Lookup(query)
	if len(syms) == 0 {
		return nil, models.ErrSymbolNotFound
	}
	entry, ok := g.idx.CallGraph[syms[0].QualifiedName]
	if !ok {
		return []Callee{}, nil
	}
	out := make([]Callee, 0, len(entry.Calls))
	for _, t := range entry.Calls {
		out = append(out, Callee{Target: t, Definitions: g.Resolve(t)})
	}
	return out, nil
}

// Resolve returns the symbols whose short name equals the target's last
// segment.
func (g *Graph) Resolve(target string) []string {
	defs := g.byShort[LastSegment(target)]
	out := make([]string, len(defs))
	copy(out, defs)
	return out
}

// Lookup finds symbols by qualified name, dotted name or short name.
func (g *Graph) Lookup(query string) []models.SymbolRecord {
	if s, ok := g.idx.Symbols[query]; ok {
		return []models.SymbolRecord{s}
	}
	_, name := util.SplitQualified(query)
	qs := g.byName[name]
	if len(qs) == 0 {
		qs = g.byShort[name]
	}
	out := make([]models.SymbolRecord, 0, len(qs))
	for _, q := range qs {
		out = append(out, g.idx.Symbols[q])
	}
	return out
}

// Reverse derives the exact reverse graph: symbol to the entries calling it.
// Symbols without callers are omitted.
func (g *Graph) Reverse() map[string][]string {
	out := map[string][]string{}
	for _, q := range g.idx.SortedSymbols() {
		s := g.idx.Symbols[q]
		if s.Kind == models.SymbolClass {
			continue
		}
		if callers := g.ExactCallers(s.ShortName()); len(callers) > 0 {
			out[q] = callers
		}
	}
	return out
}

// Duplicates groups functions and methods by structural hash. Only groups
// with more than one member are reported.
func Duplicates(idx *models.Index) []models.DuplicateCluster {
	groups := map[string][]models.DuplicateMember{}
	for _, q := range idx.SortedSymbols() {
		s := idx.Symbols[q]
		if s.Kind == models.SymbolClass || s.StructuralHash == "" {
			continue
		}
		groups[s.StructuralHash] = append(groups[s.StructuralHash], models.DuplicateMember{
			QualifiedName: q,
			File:          s.File,
			Line:          s.Line,
		})
	}
	out := []models.DuplicateCluster{}
	for h, members := range groups {
		if len(members) > 1 {
			out = append(out, models.DuplicateCluster{StructuralHash: h, Members: members})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Members[0].QualifiedName < out[j].Members[0].QualifiedName
	})
	return out
}
