package references

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/phpintel/internal/debug"
	"github.com/standardbeagle/phpintel/internal/parser"
	"github.com/standardbeagle/phpintel/internal/types"
	"github.com/standardbeagle/phpintel/internal/typestring"
)

// classContext tracks the enclosing class-like declaration so that
// self/static/parent relative-scope tokens resolve to concrete names.
type classContext struct {
	name string
	base string
}

// Visitor walks one document's syntax tree and produces its references.
// A Visitor is single-use and owns a private variable table; concurrent
// analyses of different documents never share state.
type Visitor struct {
	uri      string
	content  []byte
	resolver NameResolver
	query    SymbolQuery

	vars    *VariableTable
	classes []classContext
	refs    []*Reference

	haltOffset int
	halted     bool
}

// NewVisitor creates a visitor for one document.
func NewVisitor(uri string, content []byte, resolver NameResolver, query SymbolQuery) *Visitor {
	return &Visitor{
		uri:        uri,
		content:    content,
		resolver:   resolver,
		query:      query,
		vars:       NewVariableTable(),
		haltOffset: -1,
	}
}

// SetHaltOffset makes the traversal terminate as soon as the assignment or
// instanceof narrowing containing the offset has been reduced. References
// emitted before the halt remain valid; the result is a strict prefix of a
// full run.
func (v *Visitor) SetHaltOffset(offset int) {
	v.haltOffset = offset
}

// VariableTable exposes the variable environment, valid after Walk. With a
// halt offset this answers "what is the type of this variable right here".
func (v *Visitor) VariableTable() *VariableTable {
	return v.vars
}

// Walk traverses the tree once and returns the completed references.
func (v *Visitor) Walk(root *sitter.Node) *DocumentReferences {
	if root != nil {
		v.visit(root, "")
	}
	debug.LogTraversal("%s: %d references, halted=%v\n", v.uri, len(v.refs), v.halted)
	return NewDocumentReferences(v.uri, v.refs)
}

func (v *Visitor) emit(ref *Reference) *Reference {
	v.refs = append(v.refs, ref)
	return ref
}

func (v *Visitor) checkHalt(node *sitter.Node) {
	if v.haltOffset < 0 {
		return
	}
	if parser.NodeRange(node).Contains(v.haltOffset) {
		v.halted = true
	}
}

func (v *Visitor) visitChildren(node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if v.halted {
			return
		}
		if child := node.Child(i); child != nil {
			v.visit(child, node.Kind())
		}
	}
}

// visitChildrenSkipping visits children except the given node, used to keep
// declaration name tokens out of the reference stream.
func (v *Visitor) visitChildrenSkipping(node, skip *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		if v.halted {
			return
		}
		child := node.Child(i)
		if child == nil {
			continue
		}
		if skip != nil && child.StartByte() == skip.StartByte() && child.Kind() == skip.Kind() {
			continue
		}
		v.visit(child, node.Kind())
	}
}

// visit reduces one node. Pre-order work (scope and branch transitions, the
// assignment/instanceof/foreach/catch special cases) happens before the
// children are walked; the completed value is returned to the parent by
// copy. Nodes with no reducer return an empty value so the reduction shape
// stays consistent.
func (v *Visitor) visit(node *sitter.Node, parentKind string) value {
	if node == nil || v.halted {
		return value{}
	}

	switch node.Kind() {
	case "function_definition", "method_declaration":
		v.handleCallable(node)
		return value{}

	case "anonymous_function_creation_expression", "anonymous_function":
		v.handleAnonymousFunction(node)
		return value{kind: valType, typ: "Closure"}

	case "arrow_function":
		v.handleArrowFunction(node)
		return value{kind: valType, typ: "Closure"}

	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		v.handleClassLike(node)
		return value{}

	case "if_statement":
		v.vars.PushBranch()
		v.visitChildren(node)
		if !v.halted {
			v.vars.PopBranch()
			v.vars.PruneBranches()
		}
		return value{}

	case "else_if_clause", "else_clause":
		// Close the branch opened by the if (or the previous elseif) and
		// open this clause's own branch; the enclosing if pops it.
		v.vars.PopBranch()
		v.vars.PushBranch()
		v.visitChildren(node)
		return value{}

	case "switch_statement":
		v.visitChildren(node)
		if !v.halted {
			v.vars.PruneBranches()
		}
		return value{}

	case "case_statement", "default_statement":
		v.vars.PushBranch()
		v.visitChildren(node)
		if !v.halted {
			v.vars.PopBranch()
		}
		return value{}

	case "assignment_expression", "reference_assignment_expression":
		return v.handleAssignment(node)

	case "binary_expression":
		if isInstanceof(node) {
			return v.handleInstanceof(node)
		}
		v.visitChildren(node)
		return value{}

	case "foreach_statement":
		v.handleForeach(node)
		return value{}

	case "catch_clause":
		v.handleCatch(node)
		return value{}

	case "namespace_use_declaration":
		v.handleUseDeclaration(node)
		return value{}

	case "argument":
		// Named-argument labels (foo(limit: 5)) name a parameter, not a
		// constant; the argument value still reduces.
		v.visitChildrenSkipping(node, node.ChildByFieldName("name"))
		return value{}

	case "property_element":
		// Property declaration names are declarations, not references;
		// default-value expressions still reduce.
		v.visitChildrenSkipping(node, parser.FindChildByKind(node, "variable_name"))
		return value{}

	case "namespace_definition":
		v.visitChildrenSkipping(node, parser.FindChildByKind(node, "namespace_name"))
		return value{}

	case "variable_name":
		return v.reduceVariable(node)

	case "name", "qualified_name":
		return v.reduceName(node, hintForParent(parentKind))

	case "relative_scope":
		return v.reduceRelativeScope(node)

	case "member_access_expression", "nullsafe_member_access_expression":
		return v.handleMemberAccess(node, types.SymbolKindProperty, false)

	case "member_call_expression", "nullsafe_member_call_expression":
		return v.handleMemberAccess(node, types.SymbolKindMethod, false)

	case "scoped_call_expression":
		return v.handleMemberAccess(node, types.SymbolKindMethod, true)

	case "scoped_property_access_expression":
		return v.handleMemberAccess(node, types.SymbolKindProperty, true)

	case "class_constant_access_expression":
		return v.handleMemberAccess(node, types.SymbolKindClassConstant, true)

	case "function_call_expression":
		return v.handleCall(node)

	case "object_creation_expression":
		return v.handleObjectCreation(node)

	case "parenthesized_expression":
		return v.passthrough(node, parentKind)

	case "unary_op_expression", "clone_expression":
		return v.passthrough(node, node.Kind())

	case "integer":
		return value{kind: valType, typ: "int"}
	case "float":
		return value{kind: valType, typ: "float"}
	case "string", "nowdoc":
		return value{kind: valType, typ: "string"}
	case "encapsed_string", "heredoc":
		// Double-quoted strings interpolate variables.
		v.visitChildren(node)
		return value{kind: valType, typ: "string"}
	case "boolean":
		return value{kind: valType, typ: "bool"}
	case "null":
		return value{kind: valType, typ: "null"}
	case "array_creation_expression":
		v.visitChildren(node)
		return value{kind: valType, typ: "array"}

	default:
		v.visitChildren(node)
		return value{}
	}
}

// passthrough reduces a wrapper node to its single inner expression.
func (v *Visitor) passthrough(node *sitter.Node, parentKind string) value {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.IsNamed() {
			return v.visit(child, parentKind)
		}
	}
	return value{}
}

// hintForParent derives the symbol-kind hint of a bare or qualified name
// from the node that contains it. Type and designator positions resolve as
// classes, call positions as functions, bare expression positions as
// constant fetches.
func hintForParent(parentKind string) types.SymbolKind {
	switch parentKind {
	case "object_creation_expression", "base_clause", "class_interface_clause",
		"named_type", "type_list", "use_declaration", "attribute",
		"scoped_call_expression", "scoped_property_access_expression",
		"class_constant_access_expression", "enum_declaration_list":
		return types.SymbolKindClass
	case "function_call_expression":
		return types.SymbolKindFunction
	case "namespace_definition", "namespace_name", "const_element", "enum_case",
		"function_definition", "method_declaration", "class_declaration",
		"interface_declaration", "trait_declaration", "enum_declaration":
		// Declaration name positions: never references.
		return types.SymbolKindNone
	default:
		return types.SymbolKindConstant
	}
}

func (v *Visitor) reduceName(node *sitter.Node, hint types.SymbolKind) value {
	if hint == types.SymbolKindNone {
		return value{}
	}
	raw := parser.NodeText(node, v.content)
	if raw == "" {
		return value{}
	}
	qualified, alt := v.resolver.Qualify(raw, hint)
	ref := v.emit(&Reference{
		Kind:    hint,
		Name:    qualified,
		AltName: alt,
		Range:   parser.NodeRange(node),
	})
	val := value{kind: valName, name: qualified, ref: ref}
	if hint.IsClassLike() {
		val.typ = qualified
	}
	return val
}

func (v *Visitor) reduceVariable(node *sitter.Node) value {
	name := parser.NodeText(node, v.content)
	typ := v.vars.GetType(name)
	if name == "$this" && len(v.classes) > 0 {
		typ = v.classes[len(v.classes)-1].name
	}
	ref := v.emit(&Reference{
		Kind:  types.SymbolKindVariable,
		Name:  name,
		Range: parser.NodeRange(node),
		Type:  typ,
	})
	return value{kind: valType, name: name, typ: typ, ref: ref}
}

func (v *Visitor) reduceRelativeScope(node *sitter.Node) value {
	token := strings.ToLower(parser.NodeText(node, v.content))
	name := ""
	if len(v.classes) > 0 {
		ctx := v.classes[len(v.classes)-1]
		if token == "parent" {
			name = ctx.base
		} else {
			name = ctx.name
		}
	}
	ref := v.emit(&Reference{
		Kind:  types.SymbolKindClass,
		Name:  name,
		Range: parser.NodeRange(node),
	})
	return value{kind: valName, name: name, typ: name, ref: ref}
}

func (v *Visitor) handleCallable(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	v.vars.PushScope()
	v.bindParameters(node)
	v.visitChildrenSkipping(node, nameNode)
	v.vars.PopScope()
}

func (v *Visitor) handleAnonymousFunction(node *sitter.Node) {
	var carry []string
	if use := parser.FindChildByKind(node, "anonymous_function_use_clause"); use != nil {
		for _, vn := range parser.FindDescendantsByKind(use, "variable_name") {
			carry = append(carry, parser.NodeText(vn, v.content))
		}
	}
	v.vars.PushScope(carry...)
	v.bindParameters(node)
	v.visitChildren(node)
	v.vars.PopScope()
}

func (v *Visitor) handleArrowFunction(node *sitter.Node) {
	// Arrow functions capture the whole enclosing environment by value.
	v.vars.PushScope(v.vars.CarryableNames()...)
	v.bindParameters(node)
	v.visitChildren(node)
	v.vars.PopScope()
}

func (v *Visitor) handleClassLike(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	fqn := v.resolver.Prefix(parser.NodeText(nameNode, v.content))

	base := ""
	if bc := parser.FindChildByKind(node, "base_clause"); bc != nil {
		for i := uint(0); i < bc.ChildCount(); i++ {
			child := bc.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "name", "qualified_name", "named_type":
				base, _ = v.resolver.Qualify(parser.NodeText(child, v.content), types.SymbolKindClass)
			}
			if base != "" {
				break
			}
		}
	}

	// Class bodies do not open a variable scope of their own; only the
	// method bodies inside them do.
	v.classes = append(v.classes, classContext{name: fqn, base: base})
	v.visitChildrenSkipping(node, nameNode)
	v.classes = v.classes[:len(v.classes)-1]
}

var parameterKinds = map[string]bool{
	"simple_parameter":             true,
	"property_promotion_parameter": true,
	"variadic_parameter":           true,
}

var typeNodeKinds = map[string]bool{
	"named_type":        true,
	"primitive_type":    true,
	"optional_type":     true,
	"union_type":        true,
	"intersection_type": true,
}

// bindParameters binds each declared parameter into the freshly pushed
// scope before the parameter list is traversed, so the parameter tokens
// themselves reduce with their declared types.
func (v *Visitor) bindParameters(node *sitter.Node) {
	params := parser.FindChildByKind(node, "formal_parameters")
	if params == nil {
		return
	}
	for i := uint(0); i < params.ChildCount(); i++ {
		p := params.Child(i)
		if p == nil || !parameterKinds[p.Kind()] {
			continue
		}
		typ := v.resolver.QualifyType(parser.NodeText(parameterTypeNode(p), v.content))
		if p.Kind() == "variadic_parameter" {
			typ = typestring.ArrayOf(typ)
		}
		name := parser.NodeText(parser.FindChildByKind(p, "variable_name"), v.content)
		v.vars.SetType(name, typ)
	}
}

func parameterTypeNode(p *sitter.Node) *sitter.Node {
	if t := p.ChildByFieldName("type"); t != nil {
		return t
	}
	for i := uint(0); i < p.ChildCount(); i++ {
		if child := p.Child(i); child != nil && typeNodeKinds[child.Kind()] {
			return child
		}
	}
	return nil
}

// handleAssignment is the simple/by-reference assignment special case: the
// left-hand variable (or destructuring list) is emitted and bound from the
// reduced right-hand side; children are not generically traversed.
func (v *Visitor) handleAssignment(node *sitter.Node) value {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil {
		v.visitChildren(node)
		return value{}
	}

	switch left.Kind() {
	case "variable_name":
		name := parser.NodeText(left, v.content)
		ref := v.emit(&Reference{
			Kind:  types.SymbolKindVariable,
			Name:  name,
			Range: parser.NodeRange(left),
		})
		rv := v.visit(right, node.Kind())
		v.vars.SetType(name, rv.typ)
		ref.Type = rv.typ
		v.checkHalt(node)
		return value{kind: valType, typ: rv.typ}

	case "list_literal", "array_creation_expression":
		var names []string
		var refs []*Reference
		for _, vn := range parser.FindDescendantsByKind(left, "variable_name") {
			name := parser.NodeText(vn, v.content)
			names = append(names, name)
			refs = append(refs, v.emit(&Reference{
				Kind:  types.SymbolKindVariable,
				Name:  name,
				Range: parser.NodeRange(vn),
			}))
		}
		rv := v.visit(right, node.Kind())
		elem := typestring.ElementOf(rv.typ)
		v.vars.SetTypeMany(names, elem)
		for _, r := range refs {
			r.Type = elem
		}
		v.checkHalt(node)
		return value{kind: valType, typ: rv.typ}

	default:
		// Member/index targets carry no variable binding.
		v.visitChildren(node)
		return value{}
	}
}

func isInstanceof(node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == "instanceof" {
			return true
		}
	}
	return false
}

// handleInstanceof narrows a tested variable to the designated class type,
// mirroring the assignment special case.
func (v *Visitor) handleInstanceof(node *sitter.Node) value {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "variable_name" {
		v.visitChildren(node)
		return value{kind: valType, typ: "bool"}
	}

	name := parser.NodeText(left, v.content)
	ref := v.emit(&Reference{
		Kind:  types.SymbolKindVariable,
		Name:  name,
		Range: parser.NodeRange(left),
	})

	var dv value
	switch right.Kind() {
	case "name", "qualified_name":
		dv = v.reduceName(right, types.SymbolKindClass)
	case "relative_scope":
		dv = v.reduceRelativeScope(right)
	default:
		dv = v.visit(right, node.Kind())
	}

	// Dynamic designators ($x instanceof $y) carry no resolvable class;
	// the variable stays unknown rather than inheriting the designator text.
	v.vars.SetType(name, dv.typ)
	ref.Type = dv.typ
	v.checkHalt(node)
	return value{kind: valType, typ: "bool"}
}

// handleForeach binds the loop variables from the element type of the
// iterated collection before the loop variables and body are traversed.
func (v *Visitor) handleForeach(node *sitter.Node) {
	var collVal value
	collSeen := false
	afterAs := false
	var rest []*sitter.Node

	for i := uint(0); i < node.ChildCount(); i++ {
		if v.halted {
			return
		}
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "as" {
			afterAs = true
			continue
		}
		if !afterAs {
			if child.IsNamed() && !collSeen {
				collVal = v.visit(child, node.Kind())
				collSeen = true
			}
			continue
		}
		rest = append(rest, child)
	}

	elem := typestring.ElementOf(collVal.typ)
	for _, child := range rest {
		v.bindForeachTarget(child, elem)
	}
	for _, child := range rest {
		if v.halted {
			return
		}
		v.visit(child, node.Kind())
	}
}

func (v *Visitor) bindForeachTarget(node *sitter.Node, elem string) {
	switch node.Kind() {
	case "variable_name":
		v.vars.SetType(parser.NodeText(node, v.content), elem)
	case "by_ref":
		if vn := parser.FindChildByKind(node, "variable_name"); vn != nil {
			v.vars.SetType(parser.NodeText(vn, v.content), elem)
		}
	case "list_literal":
		var names []string
		for _, vn := range parser.FindDescendantsByKind(node, "variable_name") {
			names = append(names, parser.NodeText(vn, v.content))
		}
		v.vars.SetTypeMany(names, typestring.ElementOf(elem))
	case "pair":
		// key => value: the key's type is not recoverable from the
		// collection type string, so it is recorded untyped.
		children := namedChildren(node)
		if len(children) > 0 && children[0].Kind() == "variable_name" {
			v.vars.SetType(parser.NodeText(children[0], v.content), "")
		}
		if len(children) > 1 {
			v.bindForeachTarget(children[len(children)-1], elem)
		}
	}
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.IsNamed() {
			out = append(out, child)
		}
	}
	return out
}

// handleCatch binds the caught variable to the union of the declared
// exception types before the clause is traversed.
func (v *Visitor) handleCatch(node *sitter.Node) {
	united := ""
	if tl := parser.FindChildByKind(node, "type_list"); tl != nil {
		for i := uint(0); i < tl.ChildCount(); i++ {
			child := tl.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "name", "qualified_name", "named_type":
				q, _ := v.resolver.Qualify(parser.NodeText(child, v.content), types.SymbolKindClass)
				united = typestring.Merge(united, q)
			}
		}
	}
	if vn := parser.FindChildByKind(node, "variable_name"); vn != nil {
		v.vars.SetType(parser.NodeText(vn, v.content), united)
	}
	v.visitChildren(node)
}

// handleUseDeclaration emits references for imported names. Use paths are
// absolute: alias resolution must not apply to them.
func (v *Visitor) handleUseDeclaration(node *sitter.Node) {
	useKind := types.SymbolKindClass
	for i := uint(0); i < node.ChildCount(); i++ {
		switch parser.NodeText(node.Child(i), v.content) {
		case "function":
			useKind = types.SymbolKindFunction
		case "const":
			useKind = types.SymbolKindConstant
		}
	}

	groupPrefix := ""
	emitClause := func(clause *sitter.Node) {
		nameNode := parser.FindChildByKind(clause, "qualified_name")
		if nameNode == nil {
			nameNode = parser.FindChildByKind(clause, "name")
		}
		if nameNode == nil {
			return
		}
		full := parser.NodeText(nameNode, v.content)
		if groupPrefix != "" {
			full = groupPrefix + "\\" + full
		}
		v.emit(&Reference{
			Kind:  useKind,
			Name:  strings.Trim(full, "\\"),
			Range: parser.NodeRange(nameNode),
		})
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "namespace_name":
			groupPrefix = parser.NodeText(child, v.content)
		case "namespace_use_clause":
			emitClause(child)
		case "namespace_use_group":
			for _, clause := range parser.FindChildrenByKind(child, "namespace_use_clause") {
				emitClause(clause)
			}
		}
	}
}

// handleMemberAccess reduces ->, ?-> and :: accesses. The receiver reduces
// first and supplies the scope; the member-name token completes the
// reference, which is emitted immediately so the output stays sorted ahead
// of any argument references.
func (v *Visitor) handleMemberAccess(node *sitter.Node, kind types.SymbolKind, scoped bool) value {
	tx := newMemberTransform(v, kind)
	afterSep := false

	for i := uint(0); i < node.ChildCount(); i++ {
		if v.halted {
			break
		}
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "->", "?->", "::":
			afterSep = true
			continue
		}

		if afterSep && tx.ref == nil && isMemberNameNode(child.Kind(), scoped) {
			tx.push(value{
				kind: valMemberName,
				name: parser.NodeText(child, v.content),
				rng:  parser.NodeRange(child),
			})
			if tx.ref != nil {
				v.emit(tx.ref)
			}
			continue
		}

		tx.push(v.visit(child, node.Kind()))
	}

	return tx.result()
}

// isMemberNameNode reports whether a node after the access separator names
// the member. Static accesses additionally accept variable_name tokens
// (static properties); instance accesses treat them as dynamic members.
func isMemberNameNode(kind string, scoped bool) bool {
	if kind == "name" {
		return true
	}
	return scoped && kind == "variable_name"
}

func (v *Visitor) handleCall(node *sitter.Node) value {
	tx := newCallTransform(v)

	callee := node.ChildByFieldName("function")
	if callee != nil && !v.halted {
		switch callee.Kind() {
		case "name", "qualified_name":
			tx.push(v.reduceName(callee, types.SymbolKindFunction))
		default:
			tx.push(v.visit(callee, node.Kind()))
		}
	}

	if args := parser.FindChildByKind(node, "arguments"); args != nil && !v.halted {
		v.visitChildren(args)
	}

	return tx.result()
}

func (v *Visitor) handleObjectCreation(node *sitter.Node) value {
	tx := &designatorTransform{}

	for i := uint(0); i < node.ChildCount(); i++ {
		if v.halted {
			break
		}
		child := node.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "name", "qualified_name":
			tx.push(v.reduceName(child, types.SymbolKindClass))
		case "relative_scope":
			tx.push(v.reduceRelativeScope(child))
		case "arguments":
			v.visitChildren(child)
		default:
			// Anonymous class bodies and dynamic designators.
			tx.push(v.visit(child, node.Kind()))
		}
	}

	return tx.result()
}

// typeOf stringifies a reference's inferred type against the store.
func (v *Visitor) typeOf(ref *Reference) string {
	return ToTypeString(ref, v.query, v.uri)
}
