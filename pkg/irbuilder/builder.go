// Package irbuilder lowers pkg/ast declarations into pkg/ir functions.
// It is grounded on the reference compiler's rtlgen package: rtlgen
// built RTL by threading an explicit "successor node" continuation
// backward through statement/expression translation (CompCert's
// classic RTLgen.v style: emit the tail of a sequence first, then
// prepend each earlier instruction with Succ pointing at what
// follows). This package keeps that exact construction order,
// generalized from CminorSel's small operator set to this IR's full
// opcode surface and from rtlgen's structured-only control flow to
// also support arbitrary goto/label (labels and gotos become Inop
// nodes) via a label-node prepass.
package irbuilder

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/mangle"
	"github.com/cppc-project/cppc/pkg/types"
)

// varSlot is one in-scope local's lowering state.
type varSlot struct {
	temp ir.Temp
	typ  ValueType
}

// Builder accumulates one function's IR as it walks an ast.FunctionDecl
// body, mirroring the reference compiler's CFGBuilder+RegAllocator pair folded
// into a single type since pkg/ir carries both temporaries and nodes in
// one representation.
type Builder struct {
	Reg    *types.Registry
	Strs   *intern.Table
	Scheme mangle.Scheme

	code     map[ir.Node]ir.Instruction
	nextNode ir.Node
	nextTemp ir.Temp

	scopes []map[string]varSlot

	breakTargets    []ir.Node
	continueTargets []ir.Node
	sehLeaveTargets []ir.Node

	labelNodes map[string]ir.Node

	// globals maps file-scope variable names to their type, so an Ident
	// lookup that misses every local scope falls back to a named global
	// reference (Iglobaladdr) instead of failing.
	globals map[string]ValueType

	// functionReturnTypes/functionSymbols record each declared free
	// function's return type and (once computed) its mangled symbol, so a
	// call site doesn't need to re-run overload resolution or re-mangle a
	// name it has already seen.
	functionReturnTypes map[string]ValueType
	functionSymbols     map[string]string

	// frameSlots accumulates every stack-allocated local/temporary this
	// function needs; BuildFunction copies it onto the finished
	// ir.Function.
	frameSlots []ir.FrameSlot

	// resultType is the enclosing function's return type, needed to
	// classify `return expr;` conversions.
	resultType ValueType

	diagnostics []error
}

// NewBuilder creates a Builder sharing reg/strs with the rest of the
// pipeline (template engine, constant evaluator).
func NewBuilder(reg *types.Registry, strs *intern.Table, scheme mangle.Scheme) *Builder {
	return &Builder{
		Reg:      reg,
		Strs:     strs,
		Scheme:   scheme,
		code:     make(map[ir.Node]ir.Instruction),
		nextNode: 1,
		nextTemp: 1,
	}
}

// RegisterGlobal records a file-scope variable's type so function
// bodies can reference it by name.
func (b *Builder) RegisterGlobal(name string, typ ValueType) {
	if b.globals == nil {
		b.globals = make(map[string]ValueType)
	}
	b.globals[name] = typ
}

// Diagnostics returns the non-fatal errors accumulated while lowering;
// an unresolved name or type keeps lowering its siblings rather than
// aborting the whole function.
func (b *Builder) Diagnostics() []error { return b.diagnostics }

func (b *Builder) errorf(format string, args ...any) {
	b.diagnostics = append(b.diagnostics, fmt.Errorf(format, args...))
}

func (b *Builder) freshNode() ir.Node {
	n := b.nextNode
	b.nextNode++
	return n
}

func (b *Builder) freshTemp() ir.Temp {
	t := b.nextTemp
	b.nextTemp++
	return t
}

// emit allocates a fresh node for instr and records it — the backward-
// construction primitive every lowerX method bottoms out on.
func (b *Builder) emit(instr ir.Instruction) ir.Node {
	n := b.freshNode()
	b.code[n] = instr
	return n
}

// emitAt records instr at an already-reserved node (used for label
// targets, so a forward goto can reference the node before its content
// is lowered).
func (b *Builder) emitAt(n ir.Node, instr ir.Instruction) {
	b.code[n] = instr
}

func (b *Builder) pushScope() { b.scopes = append(b.scopes, make(map[string]varSlot)) }

func (b *Builder) popScope() { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *Builder) declareVar(name string, typ ValueType) ir.Temp {
	t := b.freshTemp()
	b.scopes[len(b.scopes)-1][name] = varSlot{temp: t, typ: typ}
	b.frameSlots = append(b.frameSlots, ir.FrameSlot{Temp: t, Size: int64(typ.SizeBytes(b.Reg))})
	return t
}

// RegisterFunction records a free function's return type (and, once
// known, its mangled symbol) ahead of lowering any caller's body, so
// forward-referenced calls resolve correctly regardless of declaration
// order.
func (b *Builder) RegisterFunction(name string, ret ValueType, symbol string) {
	if b.functionReturnTypes == nil {
		b.functionReturnTypes = make(map[string]ValueType)
		b.functionSymbols = make(map[string]string)
	}
	b.functionReturnTypes[name] = ret
	if symbol != "" {
		b.functionSymbols[name] = symbol
	}
}

func (b *Builder) lookupVar(name string) (varSlot, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if v, ok := b.scopes[i][name]; ok {
			return v, true
		}
	}
	return varSlot{}, false
}

// reserveLabel returns the node id reserved for label, allocating one
// on first reference (from either the defining LabelStmt or an earlier
// forward goto).
func (b *Builder) reserveLabel(label string) ir.Node {
	if b.labelNodes == nil {
		b.labelNodes = make(map[string]ir.Node)
	}
	if n, ok := b.labelNodes[label]; ok {
		return n
	}
	n := b.freshNode()
	b.labelNodes[label] = n
	return n
}

// collectLabels prescans a statement tree for every LabelStmt so goto
// targets are always resolvable regardless of source order (forward or
// backward jumps both work, since the node id is reserved up front).
func collectLabels(s ast.Stmt, into map[string]bool) {
	switch n := s.(type) {
	case *ast.Block:
		for _, st := range n.Stmts {
			collectLabels(st, into)
		}
	case *ast.IfStmt:
		collectLabels(n.Then, into)
		if n.Else != nil {
			collectLabels(n.Else, into)
		}
	case *ast.ForStmt:
		collectLabels(n.Body, into)
	case *ast.WhileStmt:
		collectLabels(n.Body, into)
	case *ast.DoStmt:
		collectLabels(n.Body, into)
	case *ast.SwitchStmt:
		collectLabels(n.Body, into)
	case *ast.LabelStmt:
		into[n.Label] = true
		collectLabels(n.Stmt, into)
	case *ast.TryStmt:
		collectLabels(n.Body, into)
		for _, h := range n.Handlers {
			collectLabels(h.Body, into)
		}
	}
}
