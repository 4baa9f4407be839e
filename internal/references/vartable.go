package references

import "github.com/standardbeagle/phpintel/internal/typestring"

type setKind int

const (
	// scopeSet isolates a function/method/closure body. Lookups never
	// cross a scope boundary upward.
	scopeSet setKind = iota
	// branchSet is one provisional path of a conditional, merged into the
	// enclosing set at the control-flow join.
	branchSet
)

// variableSet is one frame of the variable table: a name-to-type mapping
// plus the child branches recorded (not necessarily popped) under it.
type variableSet struct {
	kind     setKind
	vars     map[string]string
	branches []*variableSet
}

func newVariableSet(kind setKind) *variableSet {
	return &variableSet{kind: kind, vars: make(map[string]string)}
}

// VariableTable is the flow-sensitive variable-type environment: a stack of
// scope and branch frames. The bottom frame is the file-level scope and is
// never popped.
type VariableTable struct {
	stack []*variableSet
}

// NewVariableTable creates a table holding only the file-level scope.
func NewVariableTable() *VariableTable {
	return &VariableTable{stack: []*variableSet{newVariableSet(scopeSet)}}
}

func (t *VariableTable) top() *variableSet {
	return t.stack[len(t.stack)-1]
}

// SetType binds a variable in the current top frame.
func (t *VariableTable) SetType(name, typ string) {
	if name == "" {
		return
	}
	t.top().vars[name] = typ
}

// SetTypeMany binds several variables to the same type, used for
// destructuring assignment targets.
func (t *VariableTable) SetTypeMany(names []string, typ string) {
	for _, n := range names {
		t.SetType(n, typ)
	}
}

// GetType walks the stack top-down and returns the first matching
// variable's type. The search falls through branch frames but stops at the
// first scope frame it inspects: a function never sees an outer function's
// bindings unless they were explicitly carried in.
func (t *VariableTable) GetType(name string) string {
	for i := len(t.stack) - 1; i >= 0; i-- {
		s := t.stack[i]
		if typ, ok := s.vars[name]; ok {
			return typ
		}
		if s.kind == scopeSet {
			break
		}
	}
	return ""
}

// PushScope enters an isolated scope. Carry names have their currently
// resolvable types copied in as the new scope's initial bindings: the
// capture-by-value semantics for closures importing outer variables.
func (t *VariableTable) PushScope(carry ...string) {
	s := newVariableSet(scopeSet)
	for _, name := range carry {
		if name == "" {
			continue
		}
		s.vars[name] = t.GetType(name)
	}
	t.stack = append(t.stack, s)
}

// PushBranch enters a conditional path: the branch is recorded as a child
// of the current top frame and pushed onto the lookup stack.
func (t *VariableTable) PushBranch() {
	b := newVariableSet(branchSet)
	top := t.top()
	top.branches = append(top.branches, b)
	t.stack = append(t.stack, b)
}

// PopBranch removes the branch from the lookup stack only; it stays
// recorded under its parent for the later merge.
func (t *VariableTable) PopBranch() {
	if len(t.stack) > 1 && t.top().kind == branchSet {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// PruneBranches is the control-flow join: every recorded child branch of
// the top frame is merged back into it, type-unioning names present in
// more than one branch. A variable assigned along only one reachable path
// is still retained (conservative over-approximation).
func (t *VariableTable) PruneBranches() {
	top := t.top()
	for _, b := range top.branches {
		for name, typ := range b.vars {
			top.vars[name] = typestring.Merge(top.vars[name], typ)
		}
	}
	top.branches = nil
}

// PopScope discards the current scope and any of its un-pruned branches.
// The file-level scope stays.
func (t *VariableTable) PopScope() {
	for len(t.stack) > 1 && t.top().kind == branchSet {
		t.stack = t.stack[:len(t.stack)-1]
	}
	if len(t.stack) > 1 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// CarryableNames returns every variable name currently resolvable from the
// top of the stack, used when a scope captures its whole environment
// (arrow functions).
func (t *VariableTable) CarryableNames() []string {
	seen := make(map[string]bool)
	var names []string
	for i := len(t.stack) - 1; i >= 0; i-- {
		s := t.stack[i]
		for name := range s.vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if s.kind == scopeSet {
			break
		}
	}
	return names
}
