// Package references implements the reference-resolution and flow-sensitive
// type-inference core: a single traversal of one document's syntax tree that
// produces a position-indexed collection of semantic references, each
// annotated with a resolved symbol kind, a resolved or inferred type, and a
// resolved receiver type for member accesses.
package references

import (
	"sort"

	"github.com/standardbeagle/phpintel/internal/types"
)

// Reference is one semantic use of a name or variable.
type Reference struct {
	// Kind is the resolved symbol category. SymbolKindNone marks an
	// unresolved reference.
	Kind types.SymbolKind

	// Name is the resolved identifier, namespace-qualified where the
	// source language qualifies it. Member references carry the bare
	// member name.
	Name string

	// Range is the source span of the reference token. Set at creation,
	// never mutated.
	Range types.Range

	// Type is the inferred type string, meaningful for variable references.
	Type string

	// AltName is the fallback bare name, set only when unqualified
	// function/constant resolution substituted a namespace-qualified name
	// for what appeared in source.
	AltName string

	// Scope is the receiver type string for member and static accesses.
	Scope string
}

// DocumentReferences owns the ordered reference sequence of one document.
// The sequence is sorted by start position and non-overlapping, both
// guaranteed by traversal order.
type DocumentReferences struct {
	uri  string
	refs []*Reference
}

// NewDocumentReferences wraps a completed reference sequence.
func NewDocumentReferences(uri string, refs []*Reference) *DocumentReferences {
	return &DocumentReferences{uri: uri, refs: refs}
}

// URI returns the document identity.
func (d *DocumentReferences) URI() string {
	return d.uri
}

// Len returns the number of references.
func (d *DocumentReferences) Len() int {
	return len(d.refs)
}

// All returns every reference in document order.
func (d *DocumentReferences) All() []*Reference {
	return d.refs
}

// At returns the reference whose range contains the byte offset, or nil.
// Binary search over the sorted, non-overlapping sequence.
func (d *DocumentReferences) At(offset int) *Reference {
	i := sort.Search(len(d.refs), func(i int) bool {
		return d.refs[i].Range.End.Offset > offset
	})
	if i < len(d.refs) && d.refs[i].Range.Contains(offset) {
		return d.refs[i]
	}
	return nil
}

// Filter returns all references matching the predicate, in document order.
func (d *DocumentReferences) Filter(pred func(*Reference) bool) []*Reference {
	var out []*Reference
	for _, r := range d.refs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
