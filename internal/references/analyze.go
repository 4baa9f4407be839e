package references

import (
	"fmt"

	"github.com/standardbeagle/phpintel/internal/nameresolver"
	"github.com/standardbeagle/phpintel/internal/parser"
)

// Analyze parses a document and walks it once, producing its references.
// The query may be nil; member and call types then reduce to unknown.
func Analyze(uri string, content []byte, query SymbolQuery) (*DocumentReferences, error) {
	return AnalyzeAt(uri, content, query, -1)
}

// AnalyzeAt is Analyze with an early-exit offset. A negative offset runs
// the full traversal.
func AnalyzeAt(uri string, content []byte, query SymbolQuery, offset int) (*DocumentReferences, error) {
	p, err := parser.New()
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", uri, err)
	}
	defer p.Close()

	tree, err := p.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", uri, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	v := NewVisitor(uri, content, nameresolver.FromTree(root, content), query)
	if offset >= 0 {
		v.SetHaltOffset(offset)
	}
	return v.Walk(root), nil
}
