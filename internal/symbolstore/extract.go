// Package symbolstore maintains the workspace symbol database: per-document
// declaration tables plus a name index, queried by the reference core
// through its read-only lookup surface.
package symbolstore

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/phpintel/internal/nameresolver"
	"github.com/standardbeagle/phpintel/internal/parser"
	"github.com/standardbeagle/phpintel/internal/types"
)

// Extract builds the declaration tree of one parsed document. The root is a
// synthetic file-level symbol owning top-level declarations and file-scope
// variables.
func Extract(uri string, root *sitter.Node, content []byte) *types.SymbolTable {
	resolver := nameresolver.FromTree(root, content)
	e := &extractor{uri: uri, content: content, resolver: resolver}

	fileSym := &types.Symbol{
		Kind:  types.SymbolKindNamespace,
		Name:  resolver.Namespace,
		Range: parser.NodeRange(root),
		URI:   uri,
	}
	e.walk(root, fileSym)

	return &types.SymbolTable{URI: uri, Root: fileSym}
}

type extractor struct {
	uri      string
	content  []byte
	resolver *nameresolver.Resolver
}

var classLikeKinds = map[string]types.SymbolKind{
	"class_declaration":     types.SymbolKindClass,
	"interface_declaration": types.SymbolKindInterface,
	"trait_declaration":     types.SymbolKindTrait,
	"enum_declaration":      types.SymbolKindEnum,
}

func (e *extractor) walk(node *sitter.Node, parent *types.Symbol) {
	if node == nil {
		return
	}

	if kind, ok := classLikeKinds[node.Kind()]; ok {
		e.classLike(node, parent, kind)
		return
	}

	switch node.Kind() {
	case "function_definition":
		name := parser.NodeText(node.ChildByFieldName("name"), e.content)
		e.callable(node, parent, types.SymbolKindFunction, e.resolver.Prefix(name))
		return

	case "method_declaration":
		name := parser.NodeText(node.ChildByFieldName("name"), e.content)
		e.callable(node, parent, types.SymbolKindMethod, name)
		return

	case "anonymous_function_creation_expression", "anonymous_function", "arrow_function":
		e.callable(node, parent, types.SymbolKindFunction, "{closure}")
		return

	case "property_declaration":
		e.properties(node, parent)
		return

	case "const_declaration":
		e.constants(node, parent)
		return

	case "enum_case":
		e.enumCase(node, parent)
		return

	case "assignment_expression":
		e.assignment(node, parent)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), parent)
	}
}

// classLike records a class/interface/trait/enum declaration with its
// inheritance edges (extends, implements, trait uses) and member children.
func (e *extractor) classLike(node *sitter.Node, parent *types.Symbol, kind types.SymbolKind) {
	name := parser.NodeText(node.ChildByFieldName("name"), e.content)
	if name == "" {
		// Anonymous classes do not enter the name index; their members are
		// still reachable through the document table.
		name = "{anonymous}"
	}

	sym := &types.Symbol{
		Kind:  kind,
		Name:  e.resolver.Prefix(name),
		Range: parser.NodeRange(node),
		URI:   e.uri,
	}
	parent.Children = append(parent.Children, sym)

	for _, clause := range []string{"base_clause", "class_interface_clause"} {
		if c := parser.FindChildByKind(node, clause); c != nil {
			sym.Associated = append(sym.Associated, e.qualifiedNamesIn(c)...)
		}
	}

	body := parser.FindChildByKind(node, "declaration_list")
	if body == nil {
		body = parser.FindChildByKind(node, "enum_declaration_list")
	}
	if body == nil {
		return
	}

	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "use_declaration" {
			sym.Associated = append(sym.Associated, e.qualifiedNamesIn(child)...)
			continue
		}
		e.walk(child, sym)
	}
}

func (e *extractor) qualifiedNamesIn(node *sitter.Node) []string {
	var out []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name", "named_type":
			q, _ := e.resolver.Qualify(parser.NodeText(child, e.content), types.SymbolKindClass)
			out = append(out, q)
		}
	}
	return out
}

// callable records a function, method, or closure with its parameters and
// the local variables assigned in its body. Nested closures attach as
// children, keeping innermost-enclosing lookup exact.
func (e *extractor) callable(node *sitter.Node, parent *types.Symbol, kind types.SymbolKind, name string) {
	sym := &types.Symbol{
		Kind:   kind,
		Name:   name,
		Range:  parser.NodeRange(node),
		URI:    e.uri,
		Type:   e.resolver.QualifyType(parser.NodeText(node.ChildByFieldName("return_type"), e.content)),
		Static: hasStaticModifier(node),
	}
	parent.Children = append(parent.Children, sym)

	if params := parser.FindChildByKind(node, "formal_parameters"); params != nil {
		for i := uint(0); i < params.ChildCount(); i++ {
			p := params.Child(i)
			if p == nil {
				continue
			}
			switch p.Kind() {
			case "simple_parameter", "property_promotion_parameter", "variadic_parameter":
			default:
				continue
			}
			pname := parser.NodeText(parser.FindChildByKind(p, "variable_name"), e.content)
			if pname == "" {
				continue
			}
			sym.Children = append(sym.Children, &types.Symbol{
				Kind:  types.SymbolKindParameter,
				Name:  pname,
				Range: parser.NodeRange(p),
				URI:   e.uri,
				Type:  e.resolver.QualifyType(parser.NodeText(typeNodeOf(p), e.content)),
			})
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "formal_parameters", "name":
			continue
		}
		e.walk(child, sym)
	}
}

func typeNodeOf(p *sitter.Node) *sitter.Node {
	if t := p.ChildByFieldName("type"); t != nil {
		return t
	}
	for _, kind := range []string{"named_type", "primitive_type", "optional_type", "union_type", "intersection_type"} {
		if t := parser.FindChildByKind(p, kind); t != nil {
			return t
		}
	}
	return nil
}

func hasStaticModifier(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == "static_modifier" {
			return true
		}
	}
	return false
}

// properties records each element of a property declaration. Property names
// are stored without the $ sigil.
func (e *extractor) properties(node *sitter.Node, parent *types.Symbol) {
	typ := e.resolver.QualifyType(parser.NodeText(typeNodeOf(node), e.content))
	static := hasStaticModifier(node)

	for _, el := range parser.FindChildrenByKind(node, "property_element") {
		name := parser.NodeText(parser.FindChildByKind(el, "variable_name"), e.content)
		if name == "" {
			continue
		}
		parent.Children = append(parent.Children, &types.Symbol{
			Kind:   types.SymbolKindProperty,
			Name:   strings.TrimPrefix(name, "$"),
			Range:  parser.NodeRange(el),
			URI:    e.uri,
			Type:   typ,
			Static: static,
		})
	}
}

// constants records const elements: class constants inside class-like
// bodies, namespace-qualified global constants at the top level.
func (e *extractor) constants(node *sitter.Node, parent *types.Symbol) {
	kind := types.SymbolKindConstant
	qualify := e.resolver.Prefix
	if parent.Kind.IsClassLike() {
		kind = types.SymbolKindClassConstant
		qualify = func(name string) string { return name }
	}

	for _, el := range parser.FindChildrenByKind(node, "const_element") {
		name := parser.NodeText(parser.FindChildByKind(el, "name"), e.content)
		if name == "" {
			continue
		}
		parent.Children = append(parent.Children, &types.Symbol{
			Kind:  kind,
			Name:  qualify(name),
			Range: parser.NodeRange(el),
			URI:   e.uri,
		})
	}
}

// enumCase records a case as a class constant typed as its enum.
func (e *extractor) enumCase(node *sitter.Node, parent *types.Symbol) {
	name := parser.NodeText(node.ChildByFieldName("name"), e.content)
	if name == "" {
		name = parser.NodeText(parser.FindChildByKind(node, "name"), e.content)
	}
	if name == "" {
		return
	}
	parent.Children = append(parent.Children, &types.Symbol{
		Kind:   types.SymbolKindClassConstant,
		Name:   name,
		Range:  parser.NodeRange(node),
		URI:    e.uri,
		Type:   parent.Name,
		Static: true,
	})
}

// assignment records the left-hand variable(s) as locals of the enclosing
// callable (or file scope), first write wins, then continues into the
// right-hand side for nested closures.
func (e *extractor) assignment(node *sitter.Node, parent *types.Symbol) {
	if left := node.ChildByFieldName("left"); left != nil {
		switch left.Kind() {
		case "variable_name":
			e.addLocal(parent, left)
		case "list_literal", "array_creation_expression":
			for _, vn := range parser.FindDescendantsByKind(left, "variable_name") {
				e.addLocal(parent, vn)
			}
		}
	}
	if right := node.ChildByFieldName("right"); right != nil {
		e.walk(right, parent)
	}
}

func (e *extractor) addLocal(parent *types.Symbol, varNode *sitter.Node) {
	name := parser.NodeText(varNode, e.content)
	if name == "" || name == "$this" {
		return
	}
	for _, c := range parent.Children {
		if c.Kind == types.SymbolKindVariable && c.Name == name {
			return
		}
	}
	parent.Children = append(parent.Children, &types.Symbol{
		Kind:  types.SymbolKindVariable,
		Name:  name,
		Range: parser.NodeRange(varNode),
		URI:   e.uri,
	})
}
