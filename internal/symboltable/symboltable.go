// Package symboltable tracks variable declarations through Tubular's nested
// lexical scopes and hands out the process-wide unique ids that generated
// WAT locals are named after.
package symboltable

import (
	"fmt"

	"github.com/tubular/tubularc/internal/types"
)

// VarData is the flat record kept for every declared variable, independent
// of which scope introduced it.
type VarData struct {
	UID  int
	Name string
	Type types.DataType
}

// UIDGen hands out the process-wide monotonically increasing variable ids.
// A single generator is shared across every function's SymbolTable so that
// two variables anywhere in the program never collide in emitted WAT, even
// though each function gets its own fresh SymbolTable (locals don't leak
// across functions, but the numbering does not reset).
type UIDGen struct {
	next int
}

func (g *UIDGen) take() int {
	g.next++
	return g.next
}

// SymbolTable is a stack of per-scope name->uid maps plus the flat list of
// all variables declared within this function, keyed by position. uids
// themselves come from a shared UIDGen so they stay unique program-wide.
type SymbolTable struct {
	gen    *UIDGen
	scopes []map[string]int
	vars   []VarData
	byUID  map[int]int // uid -> index into vars
}

// New returns an empty table with a single (function top-level) scope,
// drawing variable ids from the given shared generator.
func New(gen *UIDGen) *SymbolTable {
	st := &SymbolTable{gen: gen, byUID: make(map[int]int)}
	st.PushScope()
	return st
}

// PushScope opens a new nested scope, e.g. on entry to a block or loop body.
func (st *SymbolTable) PushScope() {
	st.scopes = append(st.scopes, make(map[string]int))
}

// PopScope closes the innermost scope. Variables declared in it remain in
// the flat Vars list (their uid stays valid for already-generated code) but
// become unreachable by name.
func (st *SymbolTable) PopScope() {
	st.scopes = st.scopes[:len(st.scopes)-1]
}

// InsideNestedScope reports whether more than the function's top-level
// scope is currently active.
func (st *SymbolTable) InsideNestedScope() bool {
	return len(st.scopes) > 1
}

// InitVar declares name in the current (innermost) scope with the given
// type and returns its freshly assigned uid. It fails if name already
// exists in this scope.
func (st *SymbolTable) InitVar(name string, t types.DataType) (int, error) {
	current := st.scopes[len(st.scopes)-1]
	if _, exists := current[name]; exists {
		return 0, fmt.Errorf("variable '%s' is already declared in this scope", name)
	}
	uid := st.gen.take()
	current[name] = uid
	st.byUID[uid] = len(st.vars)
	st.vars = append(st.vars, VarData{UID: uid, Name: name, Type: t})
	return uid, nil
}

// Lookup walks scopes from innermost to outermost and returns the VarData
// for name, or false if no enclosing scope declares it.
func (st *SymbolTable) Lookup(name string) (VarData, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if uid, ok := st.scopes[i][name]; ok {
			return st.vars[st.byUID[uid]], true
		}
	}
	return VarData{}, false
}

// HasVarInCurrentScope reports whether name is already bound in the
// innermost scope, without walking outward.
func (st *SymbolTable) HasVarInCurrentScope(name string) bool {
	_, ok := st.scopes[len(st.scopes)-1][name]
	return ok
}

// Vars returns every variable declared in this table, in declaration order.
// Used by the code generator to emit local declarations for a function.
func (st *SymbolTable) Vars() []VarData {
	return st.vars
}
