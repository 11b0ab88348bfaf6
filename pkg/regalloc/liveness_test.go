package regalloc

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ir"
)

func TestRegSetOperations(t *testing.T) {
	a := NewRegSet()
	a.Add(1)
	a.Add(2)
	b := NewRegSet()
	b.Add(2)
	b.Add(3)

	union := a.Union(b)
	for _, r := range []ir.Temp{1, 2, 3} {
		if !union.Contains(r) {
			t.Errorf("union should contain %d", r)
		}
	}

	minus := a.Minus(b)
	if !minus.Contains(1) || minus.Contains(2) {
		t.Errorf("a-b should be {1}, got %v", minus.Slice())
	}

	if a.Equal(b) {
		t.Error("a and b should not be equal")
	}
	c := a.Copy()
	if !a.Equal(c) {
		t.Error("a should equal its own copy")
	}
}

func TestComputeDefUse(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OAdd, Args: []ir.Temp{10, 11}, Dest: 12, Succ: 2},
			2: ir.Ireturn{Arg: ptr(ir.Temp(12))},
		},
		Entrypoint: 1,
	}

	def, use := ComputeDefUse(fn)
	if !def[1].Contains(12) {
		t.Error("node 1 should define 12")
	}
	if !use[1].Contains(10) || !use[1].Contains(11) {
		t.Error("node 1 should use 10 and 11")
	}
	if !use[2].Contains(12) {
		t.Error("node 2 should use 12")
	}
	if len(def[2]) != 0 {
		t.Error("return should not define anything")
	}
}

func TestComputeDefUseInstructions(t *testing.T) {
	cases := []struct {
		name    string
		instr   ir.Instruction
		wantDef []ir.Temp
		wantUse []ir.Temp
	}{
		{"iload", ir.Iload{Args: []ir.Temp{1}, Dest: 2, Succ: 0}, []ir.Temp{2}, []ir.Temp{1}},
		{"istore", ir.Istore{Args: []ir.Temp{1}, Src: 2, Succ: 0}, nil, []ir.Temp{1, 2}},
		{"icall", ir.Icall{Fn: ir.FunSymbol{Name: "f"}, Args: []ir.Temp{1}, Dest: 2, Succ: 0}, []ir.Temp{2}, []ir.Temp{1}},
		{"icall indirect", ir.Icall{Fn: ir.FunReg{Reg: 3}, Args: nil, Dest: 0, Succ: 0}, nil, []ir.Temp{3}},
		{"icond", ir.Icond{Cond: ir.CEq, Args: []ir.Temp{1, 2}}, nil, []ir.Temp{1, 2}},
		{"istringlit", ir.Istringlit{Handle: 1, Dest: 5, Succ: 0}, []ir.Temp{5}, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			def, use := defUse(c.instr)
			for _, d := range c.wantDef {
				if !def.Contains(d) {
					t.Errorf("expected def to contain %d", d)
				}
			}
			for _, u := range c.wantUse {
				if !use.Contains(u) {
					t.Errorf("expected use to contain %d", u)
				}
			}
		})
	}
}

func TestAnalyzeLivenessSimple(t *testing.T) {
	// 1: x1 = int 1
	// 2: x2 = int 2
	// 3: x3 = add(x1, x2)
	// 4: return x3
	fn := &ir.Function{
		Name: "simple",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 1, Dest: 1, Succ: 2},
			2: ir.Iop{Op: ir.OIntConst, Imm: 2, Dest: 2, Succ: 3},
			3: ir.Iop{Op: ir.OAdd, Args: []ir.Temp{1, 2}, Dest: 3, Succ: 4},
			4: ir.Ireturn{Arg: ptr(ir.Temp(3))},
		},
		Entrypoint: 1,
	}

	info := AnalyzeLiveness(fn)

	if !info.LiveOut[1].Contains(1) {
		t.Error("x1 should be live-out of node 1 (used at node 3)")
	}
	if info.LiveOut[1].Contains(2) {
		t.Error("x2 is not yet defined at node 1, should not be live-out")
	}
	if !info.LiveIn[3].Contains(1) || !info.LiveIn[3].Contains(2) {
		t.Error("both x1 and x2 should be live-in to node 3")
	}
	if len(info.LiveOut[4]) != 0 {
		t.Error("nothing should be live-out of the final return")
	}
}

func TestAnalyzeLivenessWithBranch(t *testing.T) {
	// 1: x1 = int 1
	// 2: if x1 == 0 goto 3 else goto 4
	// 3: x2 = int 10; goto 5
	// 4: x2 = int 20; goto 5
	// 5: return x2
	fn := &ir.Function{
		Name: "cond",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 1, Dest: 1, Succ: 2},
			2: ir.Icond{Cond: ir.CEq, Args: []ir.Temp{1}, IfSo: 3, IfNot: 4},
			3: ir.Iop{Op: ir.OIntConst, Imm: 10, Dest: 2, Succ: 5},
			4: ir.Iop{Op: ir.OIntConst, Imm: 20, Dest: 2, Succ: 5},
			5: ir.Ireturn{Arg: ptr(ir.Temp(2))},
		},
		Entrypoint: 1,
	}

	info := AnalyzeLiveness(fn)

	if !info.LiveIn[2].Contains(1) {
		t.Error("x1 should be live-in at the branch")
	}
	if !info.LiveOut[3].Contains(2) || !info.LiveOut[4].Contains(2) {
		t.Error("x2 should be live-out of both branch arms")
	}
}

func TestAnalyzeLivenessWithLoop(t *testing.T) {
	// 1: x1 = int 10
	// 2: x2 = int 0
	// 3: if x1 == 0 goto 5 else goto 4
	// 4: x1 = sub(x1, 1); goto 3
	// 5: return x2
	fn := &ir.Function{
		Name: "loop",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 10, Dest: 1, Succ: 2},
			2: ir.Iop{Op: ir.OIntConst, Imm: 0, Dest: 2, Succ: 3},
			3: ir.Icond{Cond: ir.CEq, Args: []ir.Temp{1}, IfSo: 5, IfNot: 4},
			4: ir.Iop{Op: ir.OSub, Args: []ir.Temp{1}, Imm: 1, Dest: 1, Succ: 3},
			5: ir.Ireturn{Arg: ptr(ir.Temp(2))},
		},
		Entrypoint: 1,
	}

	info := AnalyzeLiveness(fn)

	if !info.LiveOut[3].Contains(2) || !info.LiveOut[4].Contains(2) {
		t.Error("x2 should be live across the entire loop body")
	}
	if !info.LiveIn[3].Contains(1) {
		t.Error("x1 should be live-in at the loop test")
	}
}

func TestAnalyzeLivenessAcrossCall(t *testing.T) {
	// 1: x1 = int 5 (param-like)
	// 2: x2 = call f(x1)
	// 3: x3 = add(x1, x2) <- x1 used after the call
	// 4: return x3
	fn := &ir.Function{
		Name: "acrosscall",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 5, Dest: 1, Succ: 2},
			2: ir.Icall{Fn: ir.FunSymbol{Name: "f"}, Args: []ir.Temp{1}, Dest: 2, Succ: 3},
			3: ir.Iop{Op: ir.OAdd, Args: []ir.Temp{1, 2}, Dest: 3, Succ: 4},
			4: ir.Ireturn{Arg: ptr(ir.Temp(3))},
		},
		Entrypoint: 1,
	}

	info := AnalyzeLiveness(fn)
	if !info.LiveOut[2].Contains(1) {
		t.Error("x1 should be live across the call at node 2")
	}

	g := BuildInterferenceGraph(fn, info)
	if !g.LiveAcrossCalls.Contains(1) {
		t.Error("x1 should be recorded as live across a call")
	}
}
