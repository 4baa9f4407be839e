// Package nameresolver turns bare and partially-qualified PHP names into
// fully-qualified names under a document's namespace and use-alias context.
package nameresolver

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/phpintel/internal/parser"
	"github.com/standardbeagle/phpintel/internal/types"
)

// Resolver holds one document's namespace context. Qualified names are kept
// canonical without a leading backslash.
type Resolver struct {
	// Namespace is the document's declared namespace, empty for global code.
	Namespace string

	classAliases    map[string]string // lowercased alias -> qualified name
	functionAliases map[string]string // lowercased alias -> qualified name
	constAliases    map[string]string // alias -> qualified name, case sensitive
}

// New creates a resolver for the given namespace with no aliases.
func New(namespace string) *Resolver {
	return &Resolver{
		Namespace:       strings.Trim(namespace, "\\"),
		classAliases:    make(map[string]string),
		functionAliases: make(map[string]string),
		constAliases:    make(map[string]string),
	}
}

// AddClassAlias registers a `use Foo\Bar` or `use Foo\Bar as Baz` import.
func (r *Resolver) AddClassAlias(alias, qualified string) {
	r.classAliases[strings.ToLower(alias)] = strings.Trim(qualified, "\\")
}

// AddFunctionAlias registers a `use function` import.
func (r *Resolver) AddFunctionAlias(alias, qualified string) {
	r.functionAliases[strings.ToLower(alias)] = strings.Trim(qualified, "\\")
}

// AddConstAlias registers a `use const` import.
func (r *Resolver) AddConstAlias(alias, qualified string) {
	r.constAliases[alias] = strings.Trim(qualified, "\\")
}

// Qualify resolves a name as written in source to its fully-qualified form
// under the current namespace and aliases. The kind hint selects the alias
// table and the fallback rule.
//
// For unqualified function and constant names declared in a namespace, PHP
// falls back to the global name when the namespaced one does not exist; the
// returned alt carries that fallback name and is empty in every other case.
func (r *Resolver) Qualify(name string, kind types.SymbolKind) (qualified, alt string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	// Fully qualified as written
	if strings.HasPrefix(name, "\\") {
		return strings.Trim(name, "\\"), ""
	}

	// Relative to current namespace: namespace\Foo
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "namespace\\") {
		rest := name[len("namespace\\"):]
		return r.prefix(rest), ""
	}

	head, rest, compound := strings.Cut(name, "\\")

	if compound {
		// The first segment of a compound name resolves through the
		// class/namespace alias table.
		if target, ok := r.classAliases[strings.ToLower(head)]; ok {
			return target + "\\" + rest, ""
		}
		return r.prefix(name), ""
	}

	switch kind {
	case types.SymbolKindFunction:
		if target, ok := r.functionAliases[lower]; ok {
			return target, ""
		}
		if r.Namespace == "" {
			return name, ""
		}
		return r.prefix(name), name
	case types.SymbolKindConstant:
		if target, ok := r.constAliases[name]; ok {
			return target, ""
		}
		if r.Namespace == "" {
			return name, ""
		}
		return r.prefix(name), name
	default:
		if target, ok := r.classAliases[lower]; ok {
			return target, ""
		}
		return r.prefix(name), ""
	}
}

// QualifyType resolves a declared type string (possibly a union, possibly
// nullable) component by component.
func (r *Resolver) QualifyType(t string) string {
	if t == "" {
		return ""
	}
	parts := strings.Split(t, "|")
	for i, p := range parts {
		p = strings.TrimSpace(strings.TrimPrefix(p, "?"))
		if p == "" || isBuiltinType(p) {
			parts[i] = strings.ToLower(p)
			continue
		}
		q, _ := r.Qualify(p, types.SymbolKindClass)
		parts[i] = q
	}
	return strings.Join(parts, "|")
}

// Prefix applies only the current-namespace prefix, bypassing aliases.
// Declaration names qualify this way.
func (r *Resolver) Prefix(name string) string {
	return r.prefix(name)
}

func (r *Resolver) prefix(name string) string {
	if r.Namespace == "" {
		return name
	}
	return r.Namespace + "\\" + name
}

var builtinTypes = map[string]bool{
	"int": true, "float": true, "string": true, "bool": true, "array": true,
	"iterable": true, "callable": true, "object": true, "mixed": true,
	"void": true, "null": true, "never": true, "true": true, "false": true,
	"self": true, "static": true, "parent": true,
}

func isBuiltinType(s string) bool {
	return builtinTypes[strings.ToLower(s)]
}

// FromTree builds a resolver from a document's namespace definition and use
// declarations.
func FromTree(root *sitter.Node, content []byte) *Resolver {
	r := New(namespaceOf(root, content))

	for _, use := range parser.FindDescendantsByKind(root, "namespace_use_declaration") {
		collectUseDeclaration(r, use, content)
	}

	return r
}

func namespaceOf(root *sitter.Node, content []byte) string {
	def := parser.FindChildByKind(root, "namespace_definition")
	if def == nil {
		return ""
	}
	return parser.NodeText(parser.FindChildByKind(def, "namespace_name"), content)
}

// collectUseDeclaration handles the use statement forms:
//
//	use A\B;  use A\B as C;  use function A\f;  use const A\C;
//	use A\{B, C as D};
func collectUseDeclaration(r *Resolver, node *sitter.Node, content []byte) {
	useKind := types.SymbolKindClass
	for i := uint(0); i < node.ChildCount(); i++ {
		switch parser.NodeText(node.Child(i), content) {
		case "function":
			useKind = types.SymbolKindFunction
		case "const":
			useKind = types.SymbolKindConstant
		}
	}

	groupPrefix := ""
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "namespace_name":
			// Grouped form: use Prefix\{...}
			groupPrefix = parser.NodeText(child, content)
		case "namespace_use_clause":
			collectUseClause(r, child, content, useKind, groupPrefix)
		case "namespace_use_group":
			for _, clause := range parser.FindChildrenByKind(child, "namespace_use_clause") {
				collectUseClause(r, clause, content, useKind, groupPrefix)
			}
		}
	}
}

func collectUseClause(r *Resolver, clause *sitter.Node, content []byte, useKind types.SymbolKind, groupPrefix string) {
	var imported string
	if qn := parser.FindChildByKind(clause, "qualified_name"); qn != nil {
		imported = parser.NodeText(qn, content)
	} else if name := parser.FindChildByKind(clause, "name"); name != nil {
		imported = parser.NodeText(name, content)
	}
	if imported == "" {
		return
	}
	if groupPrefix != "" {
		imported = groupPrefix + "\\" + imported
	}
	imported = strings.Trim(imported, "\\")

	alias := aliasOf(clause, content)
	if alias == "" {
		parts := strings.Split(imported, "\\")
		alias = parts[len(parts)-1]
	}

	switch useKind {
	case types.SymbolKindFunction:
		r.AddFunctionAlias(alias, imported)
	case types.SymbolKindConstant:
		r.AddConstAlias(alias, imported)
	default:
		r.AddClassAlias(alias, imported)
	}
}

func aliasOf(clause *sitter.Node, content []byte) string {
	if ac := parser.FindChildByKind(clause, "namespace_aliasing_clause"); ac != nil {
		return parser.NodeText(parser.FindChildByKind(ac, "name"), content)
	}
	// Older grammars surface the alias as a bare token after "as".
	for i := uint(0); i < clause.ChildCount(); i++ {
		if parser.NodeText(clause.Child(i), content) == "as" && i+1 < clause.ChildCount() {
			return parser.NodeText(clause.Child(i+1), content)
		}
	}
	return ""
}
