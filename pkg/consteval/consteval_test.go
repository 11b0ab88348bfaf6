package consteval

import (
	"errors"
	"math"
	"testing"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/types"
)

func intLit(v int64) ast.Expr { return &ast.NumericLit{IntVal: v} }

// TestConstexprFoldingScenario1 grounds scenario 1:
// `constexpr int n = 2 + 3 * 4;` must fold to 14.
func TestConstexprFoldingScenario1(t *testing.T) {
	expr := &ast.BinaryExpr{
		Op:   ast.OpAdd,
		Left: intLit(2),
		Right: &ast.BinaryExpr{
			Op:    ast.OpMul,
			Left:  intLit(3),
			Right: intLit(4),
		},
	}
	e := New(nil, nil)
	v, err := e.Eval(expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Int != 14 {
		t.Fatalf("2 + 3*4 = %d, want 14", v.Int)
	}
}

func TestShortCircuitAndSkipsRHS(t *testing.T) {
	e := New(nil, nil)
	// false && <not constant> must not evaluate the RHS.
	expr := &ast.BinaryExpr{Op: ast.OpAnd, Left: &ast.BoolLit{Value: false}, Right: &ast.Ident{Name: "not_a_constant"}}
	v, err := e.Eval(expr)
	if err != nil {
		t.Fatalf("short-circuit should not propagate RHS error: %v", err)
	}
	if v.truthy() {
		t.Fatalf("false && x should be false")
	}
}

func TestNotConstantSentinel(t *testing.T) {
	e := New(nil, nil)
	_, err := e.Eval(&ast.Ident{Name: "unresolved"})
	if !errors.Is(err, ErrNotConstant) {
		t.Fatalf("expected errors.Is(err, ErrNotConstant), got %v", err)
	}
}

func TestNaNComparisonPropagatesFalse(t *testing.T) {
	e := New(nil, nil)
	nan := &ast.NumericLit{IsFloat: true, FloatVal: math.NaN()}
	one := &ast.NumericLit{IsFloat: true, FloatVal: 1}

	for _, op := range []ast.BinaryOp{ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe, ast.OpEq} {
		v, err := e.Eval(&ast.BinaryExpr{Op: op, Left: nan, Right: one})
		if err != nil {
			t.Fatalf("op %d: %v", op, err)
		}
		if v.truthy() {
			t.Fatalf("op %d against NaN should be false", op)
		}
	}
	v, err := e.Eval(&ast.BinaryExpr{Op: ast.OpNe, Left: nan, Right: one})
	if err != nil {
		t.Fatalf("!=: %v", err)
	}
	if !v.truthy() {
		t.Fatalf("NaN != 1 should be true")
	}
}

func TestConstVarLookupAndCycleDetection(t *testing.T) {
	lookup := func(name string) (ast.Expr, types.BaseKind, bool) {
		if name == "a" {
			return &ast.Ident{Name: "b"}, types.Int, true
		}
		if name == "b" {
			return &ast.Ident{Name: "a"}, types.Int, true
		}
		return nil, 0, false
	}
	e := New(lookup, nil)
	_, err := e.Eval(&ast.Ident{Name: "a"})
	if !errors.Is(err, ErrNotConstant) {
		t.Fatalf("cyclic constexpr reference should fail with ErrNotConstant, got %v", err)
	}
}

func TestSizeofResolvesThroughLookup(t *testing.T) {
	lookupSz := func(spec *ast.TypeSpec) (int, int, bool) {
		if spec.Name == "int" {
			return 4, 4, true
		}
		return 0, 0, false
	}
	e := New(nil, lookupSz)
	v, err := e.Eval(&ast.SizeofExpr{Type: &ast.TypeSpec{Name: "int"}})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Int != 4 {
		t.Fatalf("sizeof(int) = %d, want 4", v.Int)
	}
}
