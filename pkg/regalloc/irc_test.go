package regalloc

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/ir"
)

func ptr[T any](v T) *T { return &v }

func TestAllocateSimpleFunction(t *testing.T) {
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

	result := AllocateFunction(fn)

	if len(result.SpilledRegs) != 0 {
		t.Errorf("expected no spills, got %d", len(result.SpilledRegs))
	}
	for _, r := range []ir.Temp{1, 2, 3} {
		if _, ok := result.RegToLoc[r]; !ok {
			t.Errorf("register %d should have a location", r)
		}
	}

	loc1, loc2 := result.RegToLoc[1], result.RegToLoc[2]
	r1, ok1 := loc1.(RegLoc)
	r2, ok2 := loc2.(RegLoc)
	if ok1 && ok2 && r1.Reg == r2.Reg {
		t.Error("x1 and x2 should have different registers (they interfere)")
	}
}

func TestAllocateFunctionWithMove(t *testing.T) {
	// 1: x1 = int 42
	// 2: x2 = move(x1)
	// 3: return x2
	fn := &ir.Function{
		Name: "move",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 42, Dest: 1, Succ: 2},
			2: ir.Iop{Op: ir.OMove, Args: []ir.Temp{1}, Dest: 2, Succ: 3},
			3: ir.Ireturn{Arg: ptr(ir.Temp(2))},
		},
		Entrypoint: 1,
	}

	result := AllocateFunction(fn)
	if len(result.SpilledRegs) != 0 {
		t.Errorf("expected no spills, got %d", len(result.SpilledRegs))
	}

	loc1, loc2 := result.RegToLoc[1], result.RegToLoc[2]
	r1, ok1 := loc1.(RegLoc)
	r2, ok2 := loc2.(RegLoc)
	if ok1 && ok2 && r1.Reg != r2.Reg {
		t.Errorf("x1 and x2 should be coalesced to same register, got %s and %s", r1.Reg, r2.Reg)
	}
}

func TestAllocateFunctionManyRegisters(t *testing.T) {
	code := make(map[ir.Node]ir.Instruction)
	numRegs := 10

	for i := 1; i <= numRegs; i++ {
		code[ir.Node(i)] = ir.Iop{Op: ir.OIntConst, Imm: int64(i), Dest: ir.Temp(i), Succ: ir.Node(i + 1)}
	}
	code[ir.Node(numRegs+1)] = ir.Ireturn{Arg: ptr(ir.Temp(numRegs))}

	fn := &ir.Function{Name: "many", Code: code, Entrypoint: 1}
	result := AllocateFunction(fn)

	if len(result.SpilledRegs) != 0 {
		t.Errorf("expected no spills, got %d", len(result.SpilledRegs))
	}
	for i := 1; i <= numRegs; i++ {
		if _, ok := result.RegToLoc[ir.Temp(i)]; !ok {
			t.Errorf("register %d should have a location", i)
		}
	}
}

func TestAllocateWithConditional(t *testing.T) {
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

	result := AllocateFunction(fn)
	if len(result.SpilledRegs) != 0 {
		t.Errorf("expected no spills, got %d", len(result.SpilledRegs))
	}
	if _, ok := result.RegToLoc[1]; !ok {
		t.Error("x1 should have a location")
	}
	if _, ok := result.RegToLoc[2]; !ok {
		t.Error("x2 should have a location")
	}
}

func TestAllocateWithLoop(t *testing.T) {
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

	result := AllocateFunction(fn)
	if len(result.SpilledRegs) != 0 {
		t.Errorf("expected no spills, got %d", len(result.SpilledRegs))
	}

	loc1, loc2 := result.RegToLoc[1], result.RegToLoc[2]
	r1, ok1 := loc1.(RegLoc)
	r2, ok2 := loc2.(RegLoc)
	if ok1 && ok2 && r1.Reg == r2.Reg {
		t.Error("x1 and x2 should have different registers (both live in loop)")
	}
}

func TestGetAllRegisters(t *testing.T) {
	fn := &ir.Function{
		Name:   "test",
		Params: []ir.Temp{1},
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OAdd, Args: []ir.Temp{1, 2}, Dest: 3, Succ: 2},
			2: ir.Iload{Chunk: ir.MInt64, Args: []ir.Temp{3}, Dest: 4, Succ: 3},
			3: ir.Istore{Chunk: ir.MInt64, Args: []ir.Temp{3}, Src: 4, Succ: 4},
			4: ir.Ireturn{Arg: ptr(ir.Temp(4))},
		},
		Entrypoint: 1,
	}

	regs := GetAllRegisters(fn)
	for _, r := range []ir.Temp{1, 2, 3, 4} {
		if !regs.Contains(r) {
			t.Errorf("should contain register %d", r)
		}
	}
}

func TestSortedRegSlice(t *testing.T) {
	s := NewRegSet()
	s.Add(5)
	s.Add(1)
	s.Add(3)

	sorted := SortedRegSlice(s)
	if len(sorted) != 3 {
		t.Errorf("sorted slice has %d elements, want 3", len(sorted))
	}
	if sorted[0] != 1 || sorted[1] != 3 || sorted[2] != 5 {
		t.Errorf("sorted = %v, want [1, 3, 5]", sorted)
	}
}

func TestLocationIsPhysicalRegister(t *testing.T) {
	fn := &ir.Function{
		Name: "test",
		Code: map[ir.Node]ir.Instruction{
			1: ir.Iop{Op: ir.OIntConst, Imm: 1, Dest: 1, Succ: 2},
			2: ir.Ireturn{Arg: ptr(ir.Temp(1))},
		},
		Entrypoint: 1,
	}

	result := AllocateFunction(fn)
	loc := result.RegToLoc[1]
	if _, ok := loc.(RegLoc); !ok {
		t.Fatal("location should be a register")
	}
}

func TestRegisterLiveAcrossCallUsesCalleeSaved(t *testing.T) {
	// factorial(n):
	// 1: if n <= 1 goto 5 else goto 2
	// 2: x2 = sub(n, 1)
	// 3: x3 = call factorial(x2)
	// 4: x4 = mul(n, x3) <- n is used here, after the call
	// 5: return 1
	// 6: return x4
	n := ir.Temp(1) // param
	fn := &ir.Function{
		Name:   "factorial",
		Params: []ir.Temp{n},
		Code: map[ir.Node]ir.Instruction{
			1: ir.Icond{Cond: ir.CLe, Args: []ir.Temp{n}, IfSo: 5, IfNot: 2},
			2: ir.Iop{Op: ir.OSub, Args: []ir.Temp{n}, Imm: 1, Dest: 2, Succ: 3},
			3: ir.Icall{Fn: ir.FunSymbol{Name: "factorial"}, Args: []ir.Temp{2}, Dest: 3, Succ: 4},
			4: ir.Iop{Op: ir.OMul, Args: []ir.Temp{n, 3}, Dest: 4, Succ: 6},
			5: ir.Ireturn{Arg: ptr(ir.Temp(1))},
			6: ir.Ireturn{Arg: ptr(ir.Temp(4))},
		},
		Entrypoint: 1,
	}

	result := AllocateFunction(fn)
	loc := result.RegToLoc[n]
	r, ok := loc.(RegLoc)
	if !ok {
		if _, isStack := loc.(StackLoc); isStack {
			t.Log("n was spilled to stack (acceptable)")
			return
		}
		t.Fatalf("n should be in a register or stack, got %T", loc)
	}
	if !IsCalleeSaved(r.Reg) {
		t.Errorf("n is live across call and should be in callee-saved register, got %s (caller-saved)", r.Reg)
	}
}
