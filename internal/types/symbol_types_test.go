package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolKindString(t *testing.T) {
	assert.Equal(t, "class", SymbolKindClass.String())
	assert.Equal(t, "class_constant", SymbolKindClassConstant.String())
	assert.Equal(t, "unknown", SymbolKind(99).String())
}

func TestSymbolKindPredicates(t *testing.T) {
	assert.True(t, SymbolKindClass.IsClassLike())
	assert.True(t, SymbolKindTrait.IsClassLike())
	assert.False(t, SymbolKindFunction.IsClassLike())

	assert.True(t, SymbolKindMethod.IsCallable())
	assert.False(t, SymbolKindProperty.IsCallable())
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: Location{Offset: 10}, End: Location{Offset: 20}}
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(19))
	assert.False(t, r.Contains(20))
	assert.False(t, r.Contains(9))

	inner := Range{Start: Location{Offset: 12}, End: Location{Offset: 18}}
	assert.True(t, r.ContainsRange(inner))
	assert.False(t, inner.ContainsRange(r))
}

func TestSymbolTableFind(t *testing.T) {
	method := &Symbol{Kind: SymbolKindMethod, Name: "save"}
	class := &Symbol{Kind: SymbolKindClass, Name: "A", Children: []*Symbol{method}}
	root := &Symbol{Kind: SymbolKindNamespace, Children: []*Symbol{class}}
	table := &SymbolTable{URI: "a.php", Root: root}

	found := table.Find(func(s *Symbol) bool { return s.Name == "save" })
	require.Len(t, found, 1)
	assert.Same(t, method, found[0])

	assert.Empty(t, table.Find(func(s *Symbol) bool { return s.Name == "missing" }))
	assert.Nil(t, (*SymbolTable)(nil).Find(nil))
}

func TestEnclosingCallableNested(t *testing.T) {
	closure := &Symbol{Kind: SymbolKindFunction, Name: "{closure}", Range: rangeOf(40, 60)}
	method := &Symbol{Kind: SymbolKindMethod, Name: "m", Range: rangeOf(20, 80), Children: []*Symbol{closure}}
	class := &Symbol{Kind: SymbolKindClass, Name: "A", Range: rangeOf(10, 100), Children: []*Symbol{method}}
	root := &Symbol{Kind: SymbolKindNamespace, Range: rangeOf(0, 120), Children: []*Symbol{class}}
	table := &SymbolTable{Root: root}

	assert.Same(t, closure, table.EnclosingCallable(50))
	assert.Same(t, method, table.EnclosingCallable(25))
	assert.Same(t, root, table.EnclosingCallable(105))
}

func rangeOf(start, end int) Range {
	return Range{Start: Location{Offset: start}, End: Location{Offset: end}}
}
