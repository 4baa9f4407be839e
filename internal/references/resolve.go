package references

import (
	"strings"

	"github.com/standardbeagle/phpintel/internal/types"
	"github.com/standardbeagle/phpintel/internal/typestring"
)

// SymbolQuery is the read-only symbol database surface the core consumes.
// Resolution never mutates the database.
type SymbolQuery interface {
	// Find returns declarations matching a qualified name and predicate.
	Find(name string, pred func(*types.Symbol) bool) []*types.Symbol

	// Members returns the flattened member set (own + inherited + used)
	// of a class-like type, filtered by predicate.
	Members(typeName string, pred func(*types.Symbol) bool) []*types.Symbol

	// Table returns the per-document declaration tree, or nil.
	Table(uri string) *types.SymbolTable
}

// NameResolver qualifies names written in source under the document's
// namespace and use-alias context.
type NameResolver interface {
	// Qualify returns the fully-qualified name plus the global fallback
	// name for unqualified function/constant references.
	Qualify(name string, kind types.SymbolKind) (qualified, alt string)

	// QualifyType qualifies a declared type string component-wise.
	QualifyType(t string) string

	// Prefix applies only the current-namespace prefix, used for
	// declaration names where aliases must not apply.
	Prefix(name string) string
}

// FindSymbols maps a completed reference to its candidate declarations.
// Ambiguity is preserved: every match is returned, none privileged.
func FindSymbols(ref *Reference, query SymbolQuery, uri string) []*types.Symbol {
	if ref == nil || query == nil {
		return nil
	}

	switch ref.Kind {
	case types.SymbolKindClass, types.SymbolKindInterface, types.SymbolKindTrait, types.SymbolKindEnum:
		return query.Find(ref.Name, func(s *types.Symbol) bool {
			return s.Kind.IsClassLike()
		})

	case types.SymbolKindFunction:
		return findWithFallback(ref, query, func(s *types.Symbol) bool {
			return s.Kind == types.SymbolKindFunction
		})

	case types.SymbolKindConstant:
		return findWithFallback(ref, query, func(s *types.Symbol) bool {
			return s.Kind == types.SymbolKindConstant
		})

	case types.SymbolKindMethod:
		return findMembers(ref, query, func(s *types.Symbol) bool {
			return s.Kind == types.SymbolKindMethod && strings.EqualFold(s.Name, ref.Name)
		})

	case types.SymbolKindProperty:
		want := strings.TrimPrefix(ref.Name, "$")
		return findMembers(ref, query, func(s *types.Symbol) bool {
			return s.Kind == types.SymbolKindProperty && strings.TrimPrefix(s.Name, "$") == want
		})

	case types.SymbolKindClassConstant:
		return findMembers(ref, query, func(s *types.Symbol) bool {
			return s.Kind == types.SymbolKindClassConstant && s.Name == ref.Name
		})

	case types.SymbolKindVariable, types.SymbolKindParameter:
		return findVariable(ref, query, uri)
	}

	return nil
}

func findWithFallback(ref *Reference, query SymbolQuery, pred func(*types.Symbol) bool) []*types.Symbol {
	matches := query.Find(ref.Name, pred)
	if len(matches) == 0 && ref.AltName != "" {
		matches = query.Find(ref.AltName, pred)
	}
	return matches
}

// findMembers splits the receiver type into atomic class names, aggregates
// each class's flattened members, and unions the matches with
// duplicate-declaration elimination.
func findMembers(ref *Reference, query SymbolQuery, pred func(*types.Symbol) bool) []*types.Symbol {
	seen := make(map[*types.Symbol]bool)
	var out []*types.Symbol
	for _, class := range typestring.ClassNames(ref.Scope) {
		for _, s := range query.Members(class, pred) {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// findVariable locates the innermost function/method/closure declaration
// containing the reference (file scope fallback) and matches its immediate
// parameter and variable children by exact name.
func findVariable(ref *Reference, query SymbolQuery, uri string) []*types.Symbol {
	table := query.Table(uri)
	if table == nil {
		return nil
	}
	enclosing := table.EnclosingCallable(ref.Range.Start.Offset)
	if enclosing == nil {
		return nil
	}
	var out []*types.Symbol
	for _, child := range enclosing.Children {
		if child.Kind != types.SymbolKindVariable && child.Kind != types.SymbolKindParameter {
			continue
		}
		if child.Name == ref.Name {
			out = append(out, child)
		}
	}
	return out
}

// ToTypeString maps a reference to an inferred type string: the name for
// class-like references, the merged declared types of every candidate for
// functions/methods/properties, the flow-inferred type for variables, and
// the empty string for everything else.
func ToTypeString(ref *Reference, query SymbolQuery, uri string) string {
	if ref == nil {
		return ""
	}

	switch ref.Kind {
	case types.SymbolKindClass, types.SymbolKindInterface, types.SymbolKindTrait, types.SymbolKindEnum:
		return ref.Name

	case types.SymbolKindFunction, types.SymbolKindMethod, types.SymbolKindProperty:
		merged := ""
		for _, s := range FindSymbols(ref, query, uri) {
			merged = typestring.Merge(merged, s.Type)
		}
		return merged

	case types.SymbolKindVariable, types.SymbolKindParameter:
		return ref.Type
	}

	return ""
}
