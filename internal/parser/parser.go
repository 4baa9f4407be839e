// Package parser is the syntax-tree provider for the reference core. It
// wraps the tree-sitter PHP grammar and exposes the node helpers every tree
// consumer shares: text, range, and child lookup.
package parser

import (
	"errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/standardbeagle/phpintel/internal/types"
)

// Parser parses PHP source into tree-sitter syntax trees. It is not safe
// for concurrent use; each goroutine owns its own Parser.
type Parser struct {
	inner *sitter.Parser
}

// New creates a parser configured for PHP.
func New() (*Parser, error) {
	p := sitter.NewParser()
	lang := sitter.NewLanguage(tree_sitter_php.LanguagePHP())
	if err := p.SetLanguage(lang); err != nil {
		return nil, err
	}
	return &Parser{inner: p}, nil
}

// Parse parses the content of one document. The returned tree must be
// closed by the caller.
func (p *Parser) Parse(content []byte) (*sitter.Tree, error) {
	tree := p.inner.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse produced no tree")
	}
	return tree, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.inner.Close()
}

// NodeText extracts text content from an AST node
func NodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}

	start := node.StartByte()
	end := node.EndByte()

	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}

	return string(content[start:end])
}

// NodeRange converts a node's span to a types.Range. Tree-sitter rows and
// columns are 0-based; Location carries them 1-based.
func NodeRange(node *sitter.Node) types.Range {
	if node == nil {
		return types.Range{}
	}

	start := node.StartPosition()
	end := node.EndPosition()

	return types.Range{
		Start: types.Location{
			Line:   int(start.Row) + 1,
			Column: int(start.Column) + 1,
			Offset: int(node.StartByte()),
		},
		End: types.Location{
			Line:   int(end.Row) + 1,
			Column: int(end.Column) + 1,
			Offset: int(node.EndByte()),
		},
	}
}

// FindChildByKind finds the first child node of the given kind
func FindChildByKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}

	return nil
}

// FindChildrenByKind finds all child nodes of the given kind
func FindChildrenByKind(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}

	var children []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			children = append(children, child)
		}
	}

	return children
}

// FindDescendantsByKind collects every descendant of the given kind,
// depth-first in document order.
func FindDescendantsByKind(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}

	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Kind() == kind {
			out = append(out, n)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(node)
	return out
}
