package tsparser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/util"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tsjs "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tstypes "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var (
	typescript = tree_sitter.NewLanguage(tstypes.LanguageTypescript())
	tsx        = tree_sitter.NewLanguage(tstypes.LanguageTSX())
	javascript = tree_sitter.NewLanguage(tsjs.Language())
)

// TSParser extracts TypeScript or JavaScript sources. Both grammars share node
// kinds for everything the walker looks at.
type TSParser struct {
	javascript bool
}

func New() *TSParser { return &TSParser{} }

func NewJavaScript() *TSParser { return &TSParser{javascript: true} }

func (p *TSParser) Language() string {
	if p.javascript {
		return "javascript"
	}
	return "typescript"
}

func (p *TSParser) Extensions() []string {
	if p.javascript {
		return []string{".js", ".jsx", ".mjs", ".cjs"}
	}
	return []string{".ts", ".tsx"}
}

func (p *TSParser) grammar(path string) *tree_sitter.Language {
	switch {
	case p.javascript:
		return javascript
	case strings.EqualFold(filepath.Ext(path), ".tsx"):
		return tsx
	default:
		return typescript
	}
}

func (p *TSParser) Precise(path string, code []byte) (*parser.Result, error) {
	tree, err := parser.ParseTree(p.grammar(path), code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{code: code}
	w.visit(tree.RootNode(), scope{sym: -1})
	return &parser.Result{
		File:    models.FileRecord{Imports: w.imports},
		Symbols: w.symbols,
	}, nil
}

func (p *TSParser) Fallback(path string, code []byte) *parser.Result {
	symbols, imports := parser.RunFallback(fallbackRules, code)
	return &parser.Result{
		File:    models.FileRecord{Imports: imports},
		Symbols: symbols,
	}
}

type scope struct {
	path string
	kind models.SymbolKind
	sym  int
}

type walker struct {
	code    []byte
	symbols []models.SymbolRecord
	imports []models.Import
}

func (w *walker) visit(n *tree_sitter.Node, sc scope) {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration":
		w.define(n, n.ChildByFieldName("name"), n, sc, models.SymbolFunction)
		return
	case "class_declaration", "abstract_class_declaration":
		w.defineClass(n, sc)
		return
	case "method_definition":
		w.define(n, n.ChildByFieldName("name"), n, sc, models.SymbolMethod)
		return
	case "variable_declarator":
		name := n.ChildByFieldName("name")
		if value := n.ChildByFieldName("value"); isFunction(value) && name != nil && name.Kind() == "identifier" {
			w.define(n, name, value, sc, models.SymbolFunction)
			return
		}
	case "public_field_definition", "field_definition":
		name := n.ChildByFieldName("name")
		if name == nil {
			name = n.ChildByFieldName("property")
		}
		if value := n.ChildByFieldName("value"); isFunction(value) && name != nil && sc.kind == models.SymbolClass {
			w.define(n, name, value, sc, models.SymbolMethod)
			return
		}
	case "import_statement":
		w.imports = append(w.imports, w.importOf(n))
		return
	case "export_statement":
		if src := n.ChildByFieldName("source"); src != nil {
			w.imports = append(w.imports, models.Import{Module: unquote(parser.Text(src, w.code))})
		}
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Kind() == "identifier" && parser.Text(fn, w.code) == "require" {
			if mod := firstString(n.ChildByFieldName("arguments"), w.code); mod != "" {
				w.imports = append(w.imports, models.Import{Module: mod})
			}
		}
		w.call(sc, callTarget(fn, w.code))
	case "new_expression":
		w.call(sc, callTarget(n.ChildByFieldName("constructor"), w.code))
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			w.visit(c, sc)
		}
	}
}

func (w *walker) call(sc scope, target string) {
	if target == "" || sc.sym < 0 || sc.kind == models.SymbolClass {
		return
	}
	w.symbols[sc.sym].Calls = append(w.symbols[sc.sym].Calls, target)
}

// define records a function-like symbol. outer is the declaring node, fn the
// node holding parameters and body (they differ for `const f = () => {}`).
func (w *walker) define(outer, nameNode, fn *tree_sitter.Node, sc scope, kind models.SymbolKind) {
	name := parser.Text(nameNode, w.code)
	if name == "" {
		return
	}
	path, class := name, ""
	if sc.path != "" {
		path = sc.path + "." + name
	}
	if sc.kind == models.SymbolClass {
		kind, class = models.SymbolMethod, sc.path
	} else if kind == models.SymbolMethod {
		kind = models.SymbolFunction
	}

	params := fn.ChildByFieldName("parameters")
	if params == nil {
		params = fn.ChildByFieldName("parameter")
	}
	returns := fn.ChildByFieldName("return_type")
	body := fn.ChildByFieldName("body")

	sym := models.SymbolRecord{
		Name:       path,
		Kind:       kind,
		Line:       parser.StartLine(outer),
		EndLine:    parser.EndLine(outer),
		Class:      class,
		Decorators: decoratorsOf(outer, w.code),
		Signature: models.Signature{
			Params:  paramsOf(params, w.code),
			Returns: typeText(returns, w.code),
		},
		Docstring:      parser.LeadingComments(docAnchor(outer), w.code),
		StructuralHash: util.StructuralHash(parser.CanonicalTokens(w.code, classify, params, returns, body)),
	}
	sym.BodyHash = util.BodyHash(sym.Docstring, parser.Text(outer, w.code))
	w.symbols = append(w.symbols, sym)
	if body != nil {
		w.visit(body, scope{path: path, kind: kind, sym: len(w.symbols) - 1})
	}
}

func (w *walker) defineClass(n *tree_sitter.Node, sc scope) {
	name := parser.Text(n.ChildByFieldName("name"), w.code)
	if name == "" {
		return
	}
	path := name
	if sc.path != "" {
		path = sc.path + "." + name
	}
	var heritage *tree_sitter.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == "class_heritage" {
			heritage = c
		}
	}
	body := n.ChildByFieldName("body")
	doc := parser.LeadingComments(docAnchor(n), w.code)
	w.symbols = append(w.symbols, models.SymbolRecord{
		Name:           path,
		Kind:           models.SymbolClass,
		Line:           parser.StartLine(n),
		EndLine:        parser.EndLine(n),
		Decorators:     decoratorsOf(n, w.code),
		Signature:      models.Signature{Params: []models.Param{}},
		Docstring:      doc,
		BodyHash:       util.BodyHash(doc, parser.Text(n, w.code)),
		StructuralHash: util.StructuralHash(parser.CanonicalTokens(w.code, classify, heritage, body)),
	})
	if body != nil {
		w.visit(body, scope{path: path, kind: models.SymbolClass, sym: len(w.symbols) - 1})
	}
}

func (w *walker) importOf(n *tree_sitter.Node) models.Import {
	imp := models.Import{Module: unquote(parser.Text(n.ChildByFieldName("source"), w.code))}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		clause := n.NamedChild(i)
		if clause.Kind() != "import_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			c := clause.NamedChild(j)
			switch c.Kind() {
			case "identifier":
				imp.Names = append(imp.Names, parser.Text(c, w.code))
			case "namespace_import":
				for k := uint(0); k < c.NamedChildCount(); k++ {
					if id := c.NamedChild(k); id.Kind() == "identifier" {
						imp.Alias = parser.Text(id, w.code)
					}
				}
			case "named_imports":
				for k := uint(0); k < c.NamedChildCount(); k++ {
					if spec := c.NamedChild(k); spec.Kind() == "import_specifier" {
						imp.Names = append(imp.Names, parser.Text(spec.ChildByFieldName("name"), w.code))
					}
				}
			}
		}
	}
	return imp
}

func isFunction(n *tree_sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// docAnchor is the node whose preceding comments document the declaration.
func docAnchor(n *tree_sitter.Node) *tree_sitter.Node {
	anchor := n
	if n.Kind() == "variable_declarator" {
		if p := n.Parent(); p != nil {
			anchor = p
		}
	}
	if p := anchor.Parent(); p != nil && p.Kind() == "export_statement" {
		anchor = p
	}
	return anchor
}

func decoratorsOf(n *tree_sitter.Node, code []byte) []string {
	var out []string
	for p := n.PrevSibling(); p != nil && p.Kind() == "decorator"; p = p.PrevSibling() {
		out = append([]string{decoratorText(p, code)}, out...)
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == "decorator" {
			out = append(out, decoratorText(c, code))
		}
	}
	if p := n.Parent(); p != nil && p.Kind() == "export_statement" {
		for i := uint(0); i < p.ChildCount(); i++ {
			if c := p.Child(i); c != nil && c.Kind() == "decorator" {
				out = append(out, decoratorText(c, code))
			}
		}
	}
	return out
}

func decoratorText(n *tree_sitter.Node, code []byte) string {
	return strings.TrimSpace(strings.TrimPrefix(parser.Text(n, code), "@"))
}

func paramsOf(n *tree_sitter.Node, code []byte) []models.Param {
	out := []models.Param{}
	if n == nil {
		return out
	}
	if n.Kind() == "identifier" {
		return append(out, models.Param{Name: parser.Text(n, code)})
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "required_parameter", "optional_parameter":
			out = append(out, models.Param{
				Name:    parser.Text(c.ChildByFieldName("pattern"), code),
				Type:    typeText(c.ChildByFieldName("type"), code),
				Default: parser.Text(c.ChildByFieldName("value"), code),
			})
		case "assignment_pattern":
			out = append(out, models.Param{
				Name:    parser.Text(c.ChildByFieldName("left"), code),
				Default: parser.Text(c.ChildByFieldName("right"), code),
			})
		case "identifier", "rest_pattern", "object_pattern", "array_pattern":
			out = append(out, models.Param{Name: parser.Text(c, code)})
		}
	}
	return out
}

func typeText(n *tree_sitter.Node, code []byte) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parser.Text(n, code)), ":"))
}

func callTarget(fn *tree_sitter.Node, code []byte) string {
	if fn == nil {
		return ""
	}
	if s, ok := dotted(fn, code); ok {
		return s
	}
	if fn.Kind() == "member_expression" {
		return parser.Text(fn.ChildByFieldName("property"), code)
	}
	return ""
}

func dotted(n *tree_sitter.Node, code []byte) (string, bool) {
	switch n.Kind() {
	case "identifier", "this":
		return parser.Text(n, code), true
	case "member_expression":
		obj := n.ChildByFieldName("object")
		if obj == nil {
			return "", false
		}
		left, ok := dotted(obj, code)
		if !ok {
			return "", false
		}
		return left + "." + parser.Text(n.ChildByFieldName("property"), code), true
	}
	return "", false
}

func firstString(args *tree_sitter.Node, code []byte) string {
	if args == nil || args.NamedChildCount() == 0 {
		return ""
	}
	if s := args.NamedChild(0); s.Kind() == "string" || s.Kind() == "template_string" {
		return unquote(parser.Text(s, code))
	}
	return ""
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "'\"`")
}

// classify keeps member, key and type names literal and drops comments.
func classify(n *tree_sitter.Node) parser.TokenClass {
	switch n.Kind() {
	case "comment":
		return parser.TokenSkip
	case "identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern":
		return parser.TokenIdentifier
	}
	return parser.TokenLiteral
}

var (
	importPattern  = regexp.MustCompile(`^\s*(?:import|export)\s+(?:type\s+)?(?:([\w$*{}\s,]+?)\s+from\s+)?["']([^"']+)["']`)
	fromTail       = regexp.MustCompile(`^\s*\}\s*from\s+["']([^"']+)["']`)
	requirePattern = regexp.MustCompile(`\brequire\(\s*["']([^"']+)["']\s*\)`)
	modifiers      = regexp.MustCompile(`^(?:(?:public|private|protected|readonly|override)\s+)+`)
)

var fallbackRules = &parser.FallbackRules{
	LineComment:  "//",
	BlockComment: true,
	Defs: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>[A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*\((?P<params>[^)]*)\)?(?:\s*:\s*(?P<returns>[^{]+))?`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>[A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?\((?P<params>[^)]*)\)(?:\s*:\s*(?P<returns>[^=]+?))?\s*=>`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>[A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?P<params>[A-Za-z_$][\w$]*)\s*=>`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>[A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?function\b\s*\*?\s*[\w$]*\s*\((?P<params>[^)]*)\)?`),
	},
	Methods: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|async|readonly|override|abstract|get|set)\s+)*(?P<name>#?[A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*\((?P<params>[^)]*)\)(?:\s*:\s*(?P<returns>[^{]+?))?\s*\{`),
	},
	Class:     regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(?P<name>[A-Za-z_$][\w$]*)`),
	Decorator: regexp.MustCompile(`^\s*@(?P<name>[\w$.]+(?:\(.*\))?)\s*$`),
	Imports:   fallbackImports,
	Param:     fallbackParam,
	Keywords: parser.KeywordSet(
		"async", "await", "break", "case", "catch", "class", "const", "continue", "default",
		"delete", "do", "else", "export", "extends", "for", "function", "if", "import", "in",
		"instanceof", "let", "new", "of", "return", "super", "switch", "throw", "try",
		"typeof", "var", "void", "while", "with", "yield",
	),
}

func fallbackImports(line string) []models.Import {
	if m := importPattern.FindStringSubmatch(line); m != nil {
		imp := models.Import{Module: m[2]}
		clause := strings.TrimSpace(m[1])
		if strings.HasPrefix(clause, "* as ") {
			imp.Alias = strings.TrimSpace(strings.TrimPrefix(clause, "* as "))
			return []models.Import{imp}
		}
		for _, part := range strings.Split(strings.NewReplacer("{", ",", "}", ",").Replace(clause), ",") {
			fields := strings.Fields(part)
			if len(fields) > 0 && fields[0] != "type" {
				imp.Names = append(imp.Names, fields[0])
			}
		}
		return []models.Import{imp}
	}
	if m := fromTail.FindStringSubmatch(line); m != nil {
		return []models.Import{{Module: m[1]}}
	}
	var out []models.Import
	for _, m := range requirePattern.FindAllStringSubmatch(line, -1) {
		out = append(out, models.Import{Module: m[1]})
	}
	return out
}

func fallbackParam(text string) (models.Param, bool) {
	return parser.ParseAnnotatedParam(modifiers.ReplaceAllString(strings.TrimSpace(text), ""))
}

var _ parser.Extractor = (*TSParser)(nil)
