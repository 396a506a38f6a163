package parser

import (
	"errors"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrSyntax marks a tree that contains error or missing nodes.
var ErrSyntax = errors.New("syntax error")

// ParseTree parses code with lang. A tree containing syntax errors is closed
// and reported as ErrSyntax so the caller can fall back.
func ParseTree(lang *tree_sitter.Language, code []byte) (*tree_sitter.Tree, error) {
	p := tree_sitter.NewParser()
	defer p.Close()
	if err := p.SetLanguage(lang); err != nil {
		return nil, err
	}
	tree := p.Parse(code, nil)
	if tree == nil {
		return nil, ErrSyntax
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, ErrSyntax
	}
	return tree, nil
}

func Text(n *tree_sitter.Node, code []byte) string {
	if n == nil {
		return ""
	}
	return string(code[n.StartByte():n.EndByte()])
}

func StartLine(n *tree_sitter.Node) int { return int(n.StartPosition().Row) + 1 }

func EndLine(n *tree_sitter.Node) int { return int(n.EndPosition().Row) + 1 }

// SameNode compares two handles by source span and kind.
func SameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

type TokenClass int

const (
	TokenLiteral TokenClass = iota
	TokenIdentifier
	TokenSkip
)

// CanonicalTokens flattens the leaves under nodes into a token stream in which
// every identifier is replaced by its first-occurrence ordinal. classify is
// called for every node; TokenSkip on an inner node drops its whole subtree.
func CanonicalTokens(code []byte, classify func(*tree_sitter.Node) TokenClass, nodes ...*tree_sitter.Node) []string {
	var tokens []string
	ids := map[string]string{}
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		class := classify(n)
		if class == TokenSkip {
			return
		}
		if n.ChildCount() == 0 {
			text := Text(n, code)
			if class == TokenIdentifier {
				id, ok := ids[text]
				if !ok {
					id = "$" + strconv.Itoa(len(ids))
					ids[text] = id
				}
				tokens = append(tokens, id)
				return
			}
			if text == "" {
				text = n.Kind()
			}
			tokens = append(tokens, text)
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	for _, n := range nodes {
		if n != nil {
			walk(n)
		}
	}
	return tokens
}

// LeadingComments returns the text of the comment block directly above n.
func LeadingComments(n *tree_sitter.Node, code []byte) string {
	var blocks []string
	next := StartLine(n)
	for prev := n.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
		if EndLine(prev)+1 < next {
			break
		}
		blocks = append([]string{CleanComment(Text(prev, code))}, blocks...)
		next = StartLine(prev)
	}
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

// CleanComment strips comment markers from a line or block comment.
func CleanComment(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "/*"):
		s = strings.TrimSuffix(strings.TrimPrefix(s, "/*"), "*/")
		s = strings.TrimPrefix(s, "*")
	case strings.HasPrefix(s, "//"):
		s = strings.TrimPrefix(s, "//")
	case strings.HasPrefix(s, "#"):
		s = strings.TrimPrefix(s, "#")
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
