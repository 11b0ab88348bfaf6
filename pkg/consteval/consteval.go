// Package consteval implements the constant evaluator: it reduces
// constant expressions over the AST to a Value plus its inferred type,
// or fails with ErrNotConstant.
package consteval

import (
	"errors"
	"fmt"
	"math"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/types"
)

// ErrNotConstant is the sentinel error returned for
// any construct whose value would require a non-constant read, a
// cycle, or an unsupported operator. Callers decide whether this is
// fatal (constinit) or acceptable (constexpr with a runtime fallback).
var ErrNotConstant = errors.New("consteval: not a constant expression")

// Value is a constant's reduced form: an integer, a float, or a bool,
// together with the inferred BaseKind so a result carries both its
// value and its type.
type Value struct {
	Kind     types.BaseKind
	Int      int64
	Float    float64
}

func intVal(i int64, kind types.BaseKind) Value   { return Value{Kind: kind, Int: i} }
func floatVal(f float64, kind types.BaseKind) Value { return Value{Kind: kind, Float: f} }
func boolVal(b bool) Value {
	if b {
		return Value{Kind: types.Bool, Int: 1}
	}
	return Value{Kind: types.Bool, Int: 0}
}

func (v Value) isFloat() bool { return v.Kind.IsFloat() }

func (v Value) asFloat() float64 {
	if v.isFloat() {
		return v.Float
	}
	return float64(v.Int)
}

func (v Value) truthy() bool {
	if v.isFloat() {
		return v.Float != 0
	}
	return v.Int != 0
}

// ConstVarLookup resolves an identifier to the initializer expression
// of a `constexpr`/`const` variable with a known constant value, and
// that variable's type, or reports it isn't one. The evaluator recurses
// into it, detecting cycles via the `visiting` set.
type ConstVarLookup func(name string) (init ast.Expr, kind types.BaseKind, ok bool)

// SizeofLookup resolves a type specifier to its size/alignment in
// bytes, as already finalized in the Type Registry.
type SizeofLookup func(spec *ast.TypeSpec) (sizeBytes, alignBytes int, ok bool)

// Evaluator reduces AST constant expressions.
type Evaluator struct {
	lookupVar ConstVarLookup
	lookupSz  SizeofLookup
	visiting  map[string]bool // cycle guard for constexpr-variable recursion
}

// New returns an Evaluator wired to the given variable/sizeof resolvers.
func New(lookupVar ConstVarLookup, lookupSz SizeofLookup) *Evaluator {
	return &Evaluator{lookupVar: lookupVar, lookupSz: lookupSz, visiting: make(map[string]bool)}
}

// Eval reduces expr to a constant Value or returns ErrNotConstant
// (wrapped with context via %w, so errors.Is(err, ErrNotConstant) still
// holds after propagating through nested sub-expressions).
func (e *Evaluator) Eval(expr ast.Expr) (Value, error) {
	switch n := expr.(type) {
	case *ast.NumericLit:
		if n.IsFloat {
			return floatVal(n.FloatVal, types.Double), nil
		}
		return intVal(n.IntVal, types.Int), nil

	case *ast.BoolLit:
		return boolVal(n.Value), nil

	case *ast.Ident:
		return e.evalIdent(n)

	case *ast.UnaryExpr:
		return e.evalUnary(n)

	case *ast.BinaryExpr:
		return e.evalBinary(n)

	case *ast.TernaryExpr:
		return e.evalTernary(n)

	case *ast.SizeofExpr:
		return e.evalSizeof(n)

	default:
		return Value{}, fmt.Errorf("consteval: %T: %w", expr, ErrNotConstant)
	}
}

func (e *Evaluator) evalIdent(n *ast.Ident) (Value, error) {
	if e.lookupVar == nil {
		return Value{}, fmt.Errorf("consteval: identifier %q: %w", n.Name, ErrNotConstant)
	}
	if e.visiting[n.Name] {
		return Value{}, fmt.Errorf("consteval: cyclic reference to %q: %w", n.Name, ErrNotConstant)
	}
	init, kind, ok := e.lookupVar(n.Name)
	if !ok {
		return Value{}, fmt.Errorf("consteval: %q is not a constant: %w", n.Name, ErrNotConstant)
	}
	e.visiting[n.Name] = true
	defer delete(e.visiting, n.Name)
	v, err := e.Eval(init)
	if err != nil {
		return Value{}, err
	}
	v.Kind = kind
	return v, nil
}

func (e *Evaluator) evalUnary(n *ast.UnaryExpr) (Value, error) {
	v, err := e.Eval(n.Operand)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case ast.UnaryNeg:
		if v.isFloat() {
			return floatVal(-v.Float, v.Kind), nil
		}
		return intVal(-v.Int, v.Kind), nil
	case ast.UnaryNot:
		return boolVal(!v.truthy()), nil
	case ast.UnaryBitNot:
		if v.isFloat() {
			return Value{}, fmt.Errorf("consteval: ~ on float: %w", ErrNotConstant)
		}
		return intVal(^v.Int, v.Kind), nil
	default:
		return Value{}, fmt.Errorf("consteval: unsupported unary operator: %w", ErrNotConstant)
	}
}

func (e *Evaluator) evalBinary(n *ast.BinaryExpr) (Value, error) {
	// Logical operators short-circuit: the right operand
	// is only evaluated when it can affect the result.
	if n.Op == ast.OpAnd {
		l, err := e.Eval(n.Left)
		if err != nil {
			return Value{}, err
		}
		if !l.truthy() {
			return boolVal(false), nil
		}
		r, err := e.Eval(n.Right)
		if err != nil {
			return Value{}, err
		}
		return boolVal(r.truthy()), nil
	}
	if n.Op == ast.OpOr {
		l, err := e.Eval(n.Left)
		if err != nil {
			return Value{}, err
		}
		if l.truthy() {
			return boolVal(true), nil
		}
		r, err := e.Eval(n.Right)
		if err != nil {
			return Value{}, err
		}
		return boolVal(r.truthy()), nil
	}

	l, err := e.Eval(n.Left)
	if err != nil {
		return Value{}, err
	}
	r, err := e.Eval(n.Right)
	if err != nil {
		return Value{}, err
	}
	return combine(n.Op, l, r)
}

// combine applies the usual-arithmetic-conversion rule: if either
// operand is floating point, both are evaluated as float; otherwise the
// wider integer kind wins, matching C++'s integral-promotion and
// usual-arithmetic-conversion rules.
func combine(op ast.BinaryOp, l, r Value) (Value, error) {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return compare(op, l, r)
	}

	if l.isFloat() || r.isFloat() {
		lf, rf := l.asFloat(), r.asFloat()
		kind := types.Double
		var out float64
		switch op {
		case ast.OpAdd:
			out = lf + rf
		case ast.OpSub:
			out = lf - rf
		case ast.OpMul:
			out = lf * rf
		case ast.OpDiv:
			out = lf / rf
		default:
			return Value{}, fmt.Errorf("consteval: operator %d not defined on floats: %w", op, ErrNotConstant)
		}
		return floatVal(out, kind), nil
	}

	kind := widerInt(l.Kind, r.Kind)
	switch op {
	case ast.OpAdd:
		return intVal(l.Int+r.Int, kind), nil
	case ast.OpSub:
		return intVal(l.Int-r.Int, kind), nil
	case ast.OpMul:
		return intVal(l.Int*r.Int, kind), nil
	case ast.OpDiv:
		if r.Int == 0 {
			return Value{}, fmt.Errorf("consteval: division by zero: %w", ErrNotConstant)
		}
		return intVal(l.Int/r.Int, kind), nil
	case ast.OpMod:
		if r.Int == 0 {
			return Value{}, fmt.Errorf("consteval: modulo by zero: %w", ErrNotConstant)
		}
		return intVal(l.Int%r.Int, kind), nil
	case ast.OpBitAnd:
		return intVal(l.Int&r.Int, kind), nil
	case ast.OpBitOr:
		return intVal(l.Int|r.Int, kind), nil
	case ast.OpBitXor:
		return intVal(l.Int^r.Int, kind), nil
	case ast.OpShl:
		return intVal(l.Int<<uint(r.Int), kind), nil
	case ast.OpShr:
		return intVal(l.Int>>uint(r.Int), kind), nil
	default:
		return Value{}, fmt.Errorf("consteval: unsupported binary operator %d: %w", op, ErrNotConstant)
	}
}

// compare evaluates comparisons with IEEE-754 semantics through Go's
// float comparison operators, not a bitwise compare: an ordered
// `<`/`<=`/`>`/`>=` against a NaN is always false, `==` is always
// false and `!=` is always true.
func compare(op ast.BinaryOp, l, r Value) (Value, error) {
	if l.isFloat() || r.isFloat() {
		lf, rf := l.asFloat(), r.asFloat()
		switch op {
		case ast.OpEq:
			return boolVal(lf == rf), nil
		case ast.OpNe:
			return boolVal(lf != rf), nil
		case ast.OpLt:
			return boolVal(lf < rf), nil
		case ast.OpLe:
			return boolVal(lf <= rf), nil
		case ast.OpGt:
			return boolVal(lf > rf), nil
		case ast.OpGe:
			return boolVal(lf >= rf), nil
		}
	}
	switch op {
	case ast.OpEq:
		return boolVal(l.Int == r.Int), nil
	case ast.OpNe:
		return boolVal(l.Int != r.Int), nil
	case ast.OpLt:
		return boolVal(l.Int < r.Int), nil
	case ast.OpLe:
		return boolVal(l.Int <= r.Int), nil
	case ast.OpGt:
		return boolVal(l.Int > r.Int), nil
	case ast.OpGe:
		return boolVal(l.Int >= r.Int), nil
	}
	return Value{}, fmt.Errorf("consteval: unreachable comparison operator: %w", ErrNotConstant)
}

func widerInt(a, b types.BaseKind) types.BaseKind {
	rank := func(k types.BaseKind) int {
		switch k {
		case types.Bool:
			return 0
		case types.Char, types.UChar:
			return 1
		case types.Short, types.UShort:
			return 2
		case types.Int, types.UInt, types.Enum:
			return 3
		case types.Long, types.ULong:
			return 4
		case types.LongLong, types.ULongLong:
			return 5
		default:
			return 3
		}
	}
	if rank(a) >= rank(b) {
		if a.IsUnsigned() || b.IsUnsigned() {
			return unsignedOf(a)
		}
		return a
	}
	if a.IsUnsigned() || b.IsUnsigned() {
		return unsignedOf(b)
	}
	return b
}

func unsignedOf(k types.BaseKind) types.BaseKind {
	switch k {
	case types.Char:
		return types.UChar
	case types.Short:
		return types.UShort
	case types.Long:
		return types.ULong
	case types.LongLong:
		return types.ULongLong
	default:
		return types.UInt
	}
}

func (e *Evaluator) evalTernary(n *ast.TernaryExpr) (Value, error) {
	c, err := e.Eval(n.Cond)
	if err != nil {
		return Value{}, err
	}
	if c.truthy() {
		return e.Eval(n.Then)
	}
	return e.Eval(n.Else)
}

func (e *Evaluator) evalSizeof(n *ast.SizeofExpr) (Value, error) {
	if n.Type == nil {
		return Value{}, fmt.Errorf("consteval: sizeof(expr) requires type deduction, not supported by the constant evaluator: %w", ErrNotConstant)
	}
	if e.lookupSz == nil {
		return Value{}, fmt.Errorf("consteval: no sizeof resolver configured: %w", ErrNotConstant)
	}
	size, _, ok := e.lookupSz(n.Type)
	if !ok {
		return Value{}, fmt.Errorf("consteval: sizeof of incomplete/dependent type %q: %w", n.Type.Name, ErrNotConstant)
	}
	return intVal(int64(size), types.ULong), nil
}

// IsNaN reports whether v is a floating-point NaN, exposed so callers
// building diagnostics can special-case it in user-facing messages
// without re-deriving it.
func IsNaN(v Value) bool { return v.isFloat() && math.IsNaN(v.Float) }
