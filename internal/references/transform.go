package references

import (
	"github.com/standardbeagle/phpintel/internal/types"
)

// valueKind tags the values child reducers push into their parents.
type valueKind int

const (
	valNone valueKind = iota
	// valName carries a resolved class/function/constant name.
	valName
	// valMemberName carries a bare member-name token.
	valMemberName
	// valType carries an expression's inferred type string.
	valType
)

// value is a completed reducer output, passed to the parent reducer by
// copy. A reducer that never receives its required children keeps its
// default empty value: resolution is always best-effort.
type value struct {
	kind valueKind
	name string
	typ  string
	rng  types.Range
	ref  *Reference
}

// transform is the reducer contract: push is called once per direct child
// reducer in document order as the child completes; result is read when the
// transform itself completes.
type transform interface {
	push(v value)
	result() value
}

// memberTransform reduces member and static accesses: it combines a
// receiver value with a member-name value into a completed Reference whose
// Scope is the receiver type. The driver owns reference emission.
type memberTransform struct {
	visitor *Visitor
	kind    types.SymbolKind
	scope   string
	ref     *Reference
}

func newMemberTransform(v *Visitor, kind types.SymbolKind) *memberTransform {
	return &memberTransform{visitor: v, kind: kind}
}

func (t *memberTransform) push(v value) {
	switch v.kind {
	case valMemberName:
		if t.ref != nil {
			return
		}
		t.ref = &Reference{
			Kind:  t.kind,
			Name:  v.name,
			Range: v.rng,
			Scope: t.scope,
		}
	case valName:
		if t.scope == "" {
			t.scope = v.name
		}
	case valType:
		if t.scope == "" && t.ref == nil {
			t.scope = v.typ
		}
	}
}

func (t *memberTransform) result() value {
	if t.ref == nil {
		return value{}
	}
	return value{
		kind: valType,
		typ:  t.visitor.typeOf(t.ref),
		ref:  t.ref,
	}
}

// callTransform reduces a function call: its value is the union of the
// callee's declared return types.
type callTransform struct {
	visitor *Visitor
	typ     string
	done    bool
}

func newCallTransform(v *Visitor) *callTransform {
	return &callTransform{visitor: v}
}

func (t *callTransform) push(v value) {
	if t.done {
		return
	}
	switch {
	case v.ref != nil && v.ref.Kind == types.SymbolKindFunction:
		t.typ = t.visitor.typeOf(v.ref)
		t.done = true
	case v.kind == valType:
		// Dynamic callee ($fn(), ($obj->cb)()): return type unknown.
		t.done = true
	}
}

func (t *callTransform) result() value {
	return value{kind: valType, typ: t.typ}
}

// designatorTransform reduces a class-type designator for object creation
// and instanceof: the designated class name becomes the expression type.
type designatorTransform struct {
	typ  string
	done bool
}

func (t *designatorTransform) push(v value) {
	if t.done {
		return
	}
	switch v.kind {
	case valName:
		t.typ = v.name
		t.done = true
	case valType:
		// new $className: the designator value is a string naming the
		// class, not resolvable here.
		t.done = true
	}
}

func (t *designatorTransform) result() value {
	return value{kind: valType, typ: t.typ}
}
