package goparser

import (
	"regexp"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/util"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

var language = tree_sitter.NewLanguage(tree_sitter_go.Language())

type GoParser struct{}

func New() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string { return "go" }

func (p *GoParser) Extensions() []string { return []string{".go"} }

func (p *GoParser) Precise(path string, code []byte) (*parser.Result, error) {
	tree, err := parser.ParseTree(language, code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{code: code}
	w.visit(tree.RootNode(), -1)
	return &parser.Result{
		File:    models.FileRecord{Imports: w.imports},
		Symbols: w.symbols,
	}, nil
}

func (p *GoParser) Fallback(path string, code []byte) *parser.Result {
	symbols, imports := parser.RunFallback(fallbackRules, code)
	return &parser.Result{
		File:    models.FileRecord{Imports: imports},
		Symbols: symbols,
	}
}

type walker struct {
	code    []byte
	symbols []models.SymbolRecord
	imports []models.Import
}

// visit walks n; owner is the index of the enclosing function symbol or -1.
func (w *walker) visit(n *tree_sitter.Node, owner int) {
	switch n.Kind() {
	case "function_declaration", "method_declaration":
		w.define(n)
		return
	case "type_spec":
		if t := n.ChildByFieldName("type"); t != nil && t.Kind() == "struct_type" {
			w.defineStruct(n, t)
		}
		return
	case "import_spec":
		imp := models.Import{Module: strings.Trim(parser.Text(n.ChildByFieldName("path"), w.code), "\"`")}
		if name := n.ChildByFieldName("name"); name != nil {
			imp.Alias = parser.Text(name, w.code)
		}
		w.imports = append(w.imports, imp)
		return
	case "call_expression":
		if owner >= 0 {
			if target := callTarget(n.ChildByFieldName("function"), w.code); target != "" {
				w.symbols[owner].Calls = append(w.symbols[owner].Calls, target)
			}
		}
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			w.visit(c, owner)
		}
	}
}

func (w *walker) define(n *tree_sitter.Node) {
	name := parser.Text(n.ChildByFieldName("name"), w.code)
	if name == "" {
		return
	}
	doc := parser.LeadingComments(n, w.code)
	sym := models.SymbolRecord{
		Name:      name,
		Kind:      models.SymbolFunction,
		Line:      parser.StartLine(n),
		EndLine:   parser.EndLine(n),
		Docstring: doc,
		BodyHash:  util.BodyHash(doc, parser.Text(n, w.code)),
	}
	if recv := receiverType(n.ChildByFieldName("receiver"), w.code); recv != "" {
		sym.Name = recv + "." + name
		sym.Kind = models.SymbolMethod
		sym.Class = recv
	}
	params := n.ChildByFieldName("parameters")
	result := n.ChildByFieldName("result")
	body := n.ChildByFieldName("body")
	sym.Signature = models.Signature{
		Params:  paramsOf(params, w.code),
		Returns: parser.Text(result, w.code),
	}
	sym.StructuralHash = util.StructuralHash(parser.CanonicalTokens(w.code, classify, params, result, body))

	w.symbols = append(w.symbols, sym)
	if body != nil {
		w.visit(body, len(w.symbols)-1)
	}
}

func (w *walker) defineStruct(spec, body *tree_sitter.Node) {
	name := parser.Text(spec.ChildByFieldName("name"), w.code)
	if name == "" {
		return
	}
	anchor := spec
	if p := spec.Parent(); p != nil && p.Kind() == "type_declaration" {
		anchor = p
	}
	doc := parser.LeadingComments(anchor, w.code)
	w.symbols = append(w.symbols, models.SymbolRecord{
		Name:           name,
		Kind:           models.SymbolClass,
		Line:           parser.StartLine(spec),
		EndLine:        parser.EndLine(spec),
		Signature:      models.Signature{Params: []models.Param{}},
		Docstring:      doc,
		BodyHash:       util.BodyHash(doc, parser.Text(spec, w.code)),
		StructuralHash: util.StructuralHash(parser.CanonicalTokens(w.code, classify, body)),
	})
}

// receiverType returns the base type name of a method receiver.
func receiverType(recv *tree_sitter.Node, code []byte) string {
	if recv == nil {
		return ""
	}
	for i := uint(0); i < recv.NamedChildCount(); i++ {
		decl := recv.NamedChild(i)
		if decl.Kind() != "parameter_declaration" {
			continue
		}
		t := parser.Text(decl.ChildByFieldName("type"), code)
		t = strings.TrimLeft(strings.TrimSpace(t), "*")
		if j := strings.IndexByte(t, '['); j >= 0 {
			t = t[:j]
		}
		return strings.TrimSpace(t)
	}
	return ""
}

func paramsOf(n *tree_sitter.Node, code []byte) []models.Param {
	out := []models.Param{}
	if n == nil {
		return out
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		decl := n.NamedChild(i)
		if decl.Kind() != "parameter_declaration" && decl.Kind() != "variadic_parameter_declaration" {
			continue
		}
		typ := decl.ChildByFieldName("type")
		typeText := parser.Text(typ, code)
		if decl.Kind() == "variadic_parameter_declaration" {
			typeText = "..." + typeText
		}
		named := false
		for j := uint(0); j < decl.NamedChildCount(); j++ {
			c := decl.NamedChild(j)
			if c.Kind() == "identifier" && !parser.SameNode(c, typ) {
				out = append(out, models.Param{Name: parser.Text(c, code), Type: typeText})
				named = true
			}
		}
		if !named {
			out = append(out, models.Param{Name: "_", Type: typeText})
		}
	}
	return out
}

func callTarget(fn *tree_sitter.Node, code []byte) string {
	if fn == nil {
		return ""
	}
	if s, ok := dotted(fn, code); ok {
		return s
	}
	if fn.Kind() == "selector_expression" {
		return parser.Text(fn.ChildByFieldName("field"), code)
	}
	return ""
}

func dotted(n *tree_sitter.Node, code []byte) (string, bool) {
	switch n.Kind() {
	case "identifier":
		return parser.Text(n, code), true
	case "selector_expression":
		operand := n.ChildByFieldName("operand")
		if operand == nil {
			return "", false
		}
		left, ok := dotted(operand, code)
		if !ok {
			return "", false
		}
		return left + "." + parser.Text(n.ChildByFieldName("field"), code), true
	}
	return "", false
}

// classify numbers local identifiers; fields, types and packages stay literal.
func classify(n *tree_sitter.Node) parser.TokenClass {
	switch n.Kind() {
	case "comment":
		return parser.TokenSkip
	case "identifier":
		return parser.TokenIdentifier
	}
	return parser.TokenLiteral
}

var (
	importLine = regexp.MustCompile(`^\s*(?:import\s+)?(?:([\w.]+)\s+)?"([^"]+)"\s*(?://.*)?$`)
	goKeywords = parser.KeywordSet(
		"break", "case", "chan", "const", "continue", "default", "defer", "else",
		"fallthrough", "for", "func", "go", "goto", "if", "import", "interface", "map",
		"package", "range", "return", "select", "struct", "switch", "type", "var",
	)
)

var fallbackRules = &parser.FallbackRules{
	LineComment:  "//",
	BlockComment: true,
	Defs: []*regexp.Regexp{
		regexp.MustCompile(`^func\s+\(\s*(?:[A-Za-z_]\w*\s+)?\*?\s*(?P<recv>[A-Za-z_]\w*)(?:\[[^\]]*\])?\s*\)\s*(?P<name>[A-Za-z_]\w*)\s*\((?P<params>[^)]*)\)?(?P<returns>[^{]*)`),
		regexp.MustCompile(`^func\s+(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*\((?P<params>[^)]*)\)?(?P<returns>[^{]*)`),
	},
	Class:    regexp.MustCompile(`^type\s+(?P<name>[A-Za-z_]\w*)(?:\[[^\]]*\])?\s+struct\b`),
	Imports:  fallbackImports,
	Param:    fallbackParam,
	Keywords: goKeywords,
}

func fallbackImports(line string) []models.Import {
	m := importLine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return []models.Import{{Module: m[2], Alias: m[1]}}
}

func fallbackParam(text string) (models.Param, bool) {
	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return models.Param{}, false
	case 1:
		return models.Param{Name: fields[0]}, true
	default:
		return models.Param{Name: fields[0], Type: strings.Join(fields[1:], " ")}, true
	}
}

var _ parser.Extractor = (*GoParser)(nil)
