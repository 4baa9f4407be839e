package types

// SymbolKind represents the kind of a PHP symbol or reference target
type SymbolKind int

const (
	SymbolKindNone SymbolKind = iota
	SymbolKindClass
	SymbolKindInterface
	SymbolKindTrait
	SymbolKindEnum
	SymbolKindFunction
	SymbolKindMethod
	SymbolKindProperty
	SymbolKindClassConstant
	SymbolKindConstant
	SymbolKindVariable
	SymbolKindParameter
	SymbolKindNamespace
)

// symbolKindStrings provides O(1) lookup for symbol kind names
var symbolKindStrings = map[SymbolKind]string{
	SymbolKindNone:          "none",
	SymbolKindClass:         "class",
	SymbolKindInterface:     "interface",
	SymbolKindTrait:         "trait",
	SymbolKindEnum:          "enum",
	SymbolKindFunction:      "function",
	SymbolKindMethod:        "method",
	SymbolKindProperty:      "property",
	SymbolKindClassConstant: "class_constant",
	SymbolKindConstant:      "constant",
	SymbolKindVariable:      "variable",
	SymbolKindParameter:     "parameter",
	SymbolKindNamespace:     "namespace",
}

// String returns a string representation of the symbol kind
func (sk SymbolKind) String() string {
	if name, ok := symbolKindStrings[sk]; ok {
		return name
	}
	return "unknown"
}

// IsClassLike reports whether the kind declares a type that can own members
func (sk SymbolKind) IsClassLike() bool {
	switch sk {
	case SymbolKindClass, SymbolKindInterface, SymbolKindTrait, SymbolKindEnum:
		return true
	}
	return false
}

// IsCallable reports whether the kind declares a body with its own variable scope
func (sk SymbolKind) IsCallable() bool {
	return sk == SymbolKindFunction || sk == SymbolKindMethod
}

// Location is a single point in a document
type Location struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // byte offset in file
}

// Range is a source span. Ordering and containment use byte offsets.
type Range struct {
	Start Location
	End   Location
}

// Contains reports whether the byte offset falls inside the range
func (r Range) Contains(offset int) bool {
	return offset >= r.Start.Offset && offset < r.End.Offset
}

// ContainsRange reports whether other lies entirely within r
func (r Range) ContainsRange(other Range) bool {
	return other.Start.Offset >= r.Start.Offset && other.End.Offset <= r.End.Offset
}

// Symbol is one declaration in a document: a class-like type, a callable, a
// member, a constant, or a variable/parameter child of a callable.
type Symbol struct {
	Kind  SymbolKind
	Name  string // namespace-qualified for top-level symbols, bare for members, "$x" for variables
	Range Range
	URI   string

	// Type holds the declared property type or function/method return type
	// as a union type string. Empty when undeclared.
	Type string

	// Associated lists the qualified names this class-like symbol inherits
	// from or mixes in: base class, implemented interfaces, used traits.
	Associated []string

	// Static marks static methods and properties.
	Static bool

	Children []*Symbol
}

// SymbolTable is the searchable declaration tree of one document.
// Root is a synthetic file-level symbol owning all top-level declarations
// and file-scope variables.
type SymbolTable struct {
	URI  string
	Root *Symbol
}

// Find returns all symbols in the table matching the predicate, in
// document order.
func (st *SymbolTable) Find(pred func(*Symbol) bool) []*Symbol {
	if st == nil || st.Root == nil {
		return nil
	}
	var out []*Symbol
	var walk func(s *Symbol)
	walk = func(s *Symbol) {
		if pred(s) {
			out = append(out, s)
		}
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(st.Root)
	return out
}

// EnclosingCallable returns the innermost function or method declaration
// whose range contains the offset, or Root when none does.
func (st *SymbolTable) EnclosingCallable(offset int) *Symbol {
	if st == nil || st.Root == nil {
		return nil
	}
	best := st.Root
	var walk func(s *Symbol)
	walk = func(s *Symbol) {
		for _, c := range s.Children {
			if c.Range.Contains(offset) {
				if c.Kind.IsCallable() {
					best = c
				}
				walk(c)
			}
		}
	}
	walk(st.Root)
	return best
}
