package emitter

import (
	"sort"

	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/regalloc"
)

// scratch is the register this emitter reserves for its own shuffling
// (moving a spilled operand into a GPR before an ALU op, materializing
// an rip-relative address) — never assigned to a Temp by regalloc,
// since AllocatableIntRegs never lists it.
const scratch = regalloc.R10
const scratch2 = regalloc.R11

// funcLower holds one function's in-progress lowering state.
type funcLower struct {
	fn     *ir.Function
	alloc  *regalloc.AllocationResult
	frame  *FrameLayout
	strs   *intern.Table
	a      *asm
	labels map[ir.Node]int64 // node -> byte offset, filled as nodes are emitted
	fixups []fixup
	rodata *[]RodataEntry
	hasEH  bool
}

type fixup struct {
	at     int
	target ir.Node
}

// loc resolves a Temp to a GPR, loading it into scratch first if it was
// spilled (so every arithmetic helper above can assume its operands are
// already in registers).
func (fl *funcLower) loc(t ir.Temp, into regalloc.GPR) regalloc.GPR {
	l, ok := fl.alloc.RegToLoc[t]
	if !ok {
		return into // unallocated (e.g. Temp(0) sentinel for a void call's Dest) — caller ignores the result
	}
	switch v := l.(type) {
	case regalloc.RegLoc:
		return v.Reg
	case regalloc.StackLoc:
		ofs, ok := fl.frame.offset(t)
		if !ok {
			ofs = -(v.Ofs + 8)
		}
		fl.a.loadMem(into, regalloc.RBP, int32(ofs), ir.MInt64)
		return into
	}
	return into
}

// store writes src (already materialized in a GPR) back to t's location
// if t was spilled; a register-resident Dest needs no action since the
// arithmetic already wrote its result directly into that register.
func (fl *funcLower) store(t ir.Temp, src regalloc.GPR) {
	l, ok := fl.alloc.RegToLoc[t]
	if !ok {
		return
	}
	if sl, ok := l.(regalloc.StackLoc); ok {
		_ = sl
		ofs, _ := fl.frame.offset(t)
		fl.a.storeMem(src, regalloc.RBP, int32(ofs), ir.MInt64)
	}
}

// dest is the GPR a Dest Temp should be computed into directly: its own
// register if allocated one, otherwise the scratch register (store
// flushes it to the stack afterward).
func (fl *funcLower) dest(t ir.Temp) regalloc.GPR {
	if l, ok := fl.alloc.RegToLoc[t]; ok {
		if rl, ok := l.(regalloc.RegLoc); ok {
			return rl.Reg
		}
	}
	return scratch
}

func (fl *funcLower) addrTemp(t ir.Temp) (regalloc.GPR, int32, bool) {
	if ofs, ok := fl.frame.offset(t); ok {
		return regalloc.RBP, int32(ofs), true
	}
	return 0, 0, false
}

// lowerFunction schedules fn's CFG into a linear instruction stream and
// encodes every node, prologue, and epilogue, resolving intra-function
// branches once the whole body's layout is known.
func lowerFunction(fn *ir.Function, strs *intern.Table, rodata *[]RodataEntry) FuncCode {
	alloc := regalloc.AllocateFunction(fn)
	frame := BuildFrameLayout(fn, alloc)

	fl := &funcLower{fn: fn, alloc: alloc, frame: frame, strs: strs, a: &asm{}, labels: map[ir.Node]int64{}, rodata: rodata}

	fl.emitPrologue()
	fl.emitEntryParamMoves()

	order := scheduleNodes(fn)
	for idx, n := range order {
		fl.labels[n] = fl.a.pos()
		var next ir.Node
		if idx+1 < len(order) {
			next = order[idx+1]
		}
		fl.emitNode(n, fn.Code[n], next)
	}

	for _, fx := range fl.fixups {
		target, ok := fl.labels[fx.target]
		if !ok {
			target = fl.a.pos() // dangling branch (shouldn't happen on a well-formed CFG); fall through to function end rather than patch garbage
		}
		fl.a.patchRel32(fx.at, target)
	}

	return FuncCode{
		Name:      fn.Name,
		Code:      fl.a.code,
		Relocs:    fl.a.relocs,
		FrameSize: frame.FrameSize,
		UnwindInfo: UnwindInfo{
			FrameSize:   frame.FrameSize,
			CalleeSaved: frame.CalleeSaved,
			HasHandler:  fl.hasEH,
		},
	}
}

func (fl *funcLower) emitPrologue() {
	fl.a.push(regalloc.RBP)
	fl.a.movRegReg(regalloc.RBP, regalloc.RSP)
	for _, r := range fl.frame.CalleeSaved {
		fl.a.push(r)
	}
	if fl.frame.FrameSize > 0 {
		fl.a.subRspImm32(int32(fl.frame.FrameSize))
	}
}

func (fl *funcLower) emitEpilogue() {
	if fl.frame.FrameSize > 0 {
		fl.a.addRspImm32(int32(fl.frame.FrameSize))
	}
	for i := len(fl.frame.CalleeSaved) - 1; i >= 0; i-- {
		fl.a.pop(fl.frame.CalleeSaved[i])
	}
	fl.a.pop(regalloc.RBP)
	fl.a.ret()
}

// emitEntryParamMoves copies each incoming argument from its ABI
// register (or stack slot) into wherever the allocator placed that
// parameter's Temp, per "function prologue... moves
// incoming arguments from their ABI locations to their allocated
// Temps."
func (fl *funcLower) emitEntryParamMoves() {
	for i, p := range fl.fn.Params {
		argLoc := regalloc.ArgLocation(i, false)
		argReg, isReg := argLoc.(regalloc.RegLoc)
		if !isReg {
			continue // stack-passed arguments beyond the sixth: left in place, read directly when referenced (not modeled further here)
		}
		dstLoc, ok := fl.alloc.RegToLoc[p]
		if !ok {
			continue
		}
		switch d := dstLoc.(type) {
		case regalloc.RegLoc:
			fl.a.movRegReg(d.Reg, argReg.Reg)
		case regalloc.StackLoc:
			ofs, _ := fl.frame.offset(p)
			fl.a.storeMem(argReg.Reg, regalloc.RBP, int32(ofs), ir.MInt64)
		}
	}
}

// scheduleNodes lays out fn's CFG starting at Entrypoint, visiting an
// Icond's IfNot edge before IfSo so the common "condition false falls
// through" shape needs no explicit jump, the same layout heuristic a
// real backend's block-ordering pass uses.
func scheduleNodes(fn *ir.Function) []ir.Node {
	var order []ir.Node
	visited := map[ir.Node]bool{}
	var visit func(n ir.Node)
	visit = func(n ir.Node) {
		if n == 0 || visited[n] {
			return
		}
		visited[n] = true
		order = append(order, n)
		switch i := fn.Code[n].(type) {
		case ir.Icond:
			visit(i.IfNot)
			visit(i.IfSo)
		case ir.Ijumptable:
			for _, t := range i.Targets {
				visit(t)
			}
		case ir.Inop:
			visit(i.Succ)
		case ir.Iop:
			visit(i.Succ)
		case ir.Iload:
			visit(i.Succ)
		case ir.Istore:
			visit(i.Succ)
		case ir.Icall:
			visit(i.Succ)
		case ir.Istringlit:
			visit(i.Succ)
		case ir.Iglobaladdr:
			visit(i.Succ)
		case ir.Iexcept:
			visit(i.Succ)
		case ir.Iseh:
			visit(i.Succ)
		}
	}
	visit(fn.Entrypoint)

	// Defensive: a node unreachable from Entrypoint (shouldn't occur for
	// a builder that always threads Succ through every reserved node,
	// but regalloc's own GetAllRegisters walks fn.Code directly rather
	// than the CFG, so nothing here assumes reachability is exhaustive).
	var extra []ir.Node
	for n := range fn.Code {
		if !visited[n] {
			extra = append(extra, n)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, n := range extra {
		visit(n)
	}
	return order
}

func (fl *funcLower) branch(target, fallthroughNode ir.Node) {
	if target == fallthroughNode {
		return
	}
	at := fl.a.jmpRel32("")
	fl.fixups = append(fl.fixups, fixup{at: at, target: target})
}

func (fl *funcLower) emitNode(n ir.Node, instr ir.Instruction, next ir.Node) {
	switch i := instr.(type) {
	case ir.Inop:
		fl.branch(i.Succ, next)

	case ir.Iop:
		fl.emitOp(i)
		fl.branch(i.Succ, next)

	case ir.Iload:
		fl.emitLoad(i)
		fl.branch(i.Succ, next)

	case ir.Istore:
		fl.emitStore(i)
		fl.branch(i.Succ, next)

	case ir.Icall:
		fl.emitCall(i)
		fl.branch(i.Succ, next)

	case ir.Itailcall:
		fl.emitArgs(i.Args)
		switch fn := i.Fn.(type) {
		case ir.FunSymbol:
			fl.emitEpilogueForTail()
			fl.a.b(0xE9)
			at := fl.a.pos()
			fl.a.i32(0)
			fl.a.relocs = append(fl.a.relocs, Reloc{Offset: at, Symbol: fn.Name, Addend: -4, Kind: RelPC32})
		case ir.FunReg:
			// Resolve the callee's address into scratch2 before the
			// epilogue runs: emitEpilogueForTail restores every
			// callee-saved GPR from the stack, which would clobber
			// fn.Reg's value if it happened to live in one of them.
			r := fl.loc(fn.Reg, scratch2)
			if r != scratch2 {
				fl.a.movRegReg(scratch2, r)
			}
			fl.emitEpilogueForTail()
			l, ext := regNum(scratch2)
			if ext {
				fl.a.rex(false, false, false, true)
			}
			fl.a.b(0xFF)
			fl.a.b(modrm(3, 4, l))
		}

	case ir.Icond:
		l := fl.loc(i.Args[0], scratch)
		r := fl.loc(i.Args[1], scratch2)
		fl.a.arith(opCmp, l, r)
		at := fl.a.jccRel32(condCC(i.Cond))
		fl.fixups = append(fl.fixups, fixup{at: at, target: i.IfSo})
		fl.branch(i.IfNot, next)

	case ir.Ijumptable:
		// Unreached by the current irbuilder (switch lowers to an
		// Icond cascade instead); kept correct for completeness via the
		// same cascade shape, comparing Arg against its index in order.
		argReg := fl.loc(i.Arg, scratch)
		for idx, t := range i.Targets {
			fl.a.arithImm(argReg, 7, int32(idx)) // cmp argReg, idx
			at := fl.a.jccRel32(condCC(ir.CEq))
			fl.fixups = append(fl.fixups, fixup{at: at, target: t})
		}

	case ir.Ireturn:
		if i.Arg != nil {
			r := fl.loc(*i.Arg, regalloc.RAX)
			if r != regalloc.RAX {
				fl.a.movRegReg(regalloc.RAX, r)
			}
		}
		fl.emitEpilogue()

	case ir.Istringlit:
		label := fl.internRodata(i.Handle)
		dst := fl.dest(i.Dest)
		fl.a.leaRIP(dst, label, 0)
		fl.store(i.Dest, dst)
		fl.branch(i.Succ, next)

	case ir.Iglobaladdr:
		dst := fl.dest(i.Dest)
		fl.a.leaRIP(dst, i.Name, 0)
		fl.store(i.Dest, dst)
		fl.branch(i.Succ, next)

	case ir.Iexcept:
		fl.hasEH = true
		fl.branch(i.Succ, next)

	case ir.Iseh:
		fl.hasEH = true
		fl.branch(i.Succ, next)
	}
}

func (fl *funcLower) internRodata(handle uint32) string {
	label := rodataLabel(handle)
	if fl.strs == nil {
		return label
	}
	s := fl.strs.View(intern.Handle(handle))
	bytes := append([]byte(s), 0)
	for _, e := range *fl.rodata {
		if e.Label == label {
			return label
		}
	}
	*fl.rodata = append(*fl.rodata, RodataEntry{Label: label, Bytes: bytes})
	return label
}

func rodataLabel(handle uint32) string {
	const hexDigits = "0123456789abcdef"
	b := []byte{'.', 'L', '.', 's', 't', 'r', '.'}
	if handle == 0 {
		return string(append(b, '0'))
	}
	var digits []byte
	for handle > 0 {
		digits = append([]byte{hexDigits[handle%16]}, digits...)
		handle /= 16
	}
	return string(append(b, digits...))
}

func (fl *funcLower) emitOp(i ir.Iop) {
	switch i.Op {
	case ir.OIntConst:
		d := fl.dest(i.Dest)
		fl.a.movImm64(d, i.Imm)
		fl.store(i.Dest, d)

	case ir.ONegate:
		d := fl.dest(i.Dest)
		v := fl.loc(i.Args[0], d)
		if v != d {
			fl.a.movRegReg(d, v)
		}
		fl.a.negReg(d)
		fl.store(i.Dest, d)

	case ir.OBitwiseNot:
		d := fl.dest(i.Dest)
		v := fl.loc(i.Args[0], d)
		if v != d {
			fl.a.movRegReg(d, v)
		}
		fl.a.notReg(d)
		fl.store(i.Dest, d)

	case ir.OLogicalNot:
		v := fl.loc(i.Args[0], scratch)
		fl.a.testSelf(v)
		d := fl.dest(i.Dest)
		fl.a.setccAl(setCC(ir.CEq), d)
		fl.store(i.Dest, d)

	case ir.OMove, ir.OTruncate, ir.OFloatToFloat, ir.OFloatToInt, ir.OIntToFloat:
		d := fl.dest(i.Dest)
		v := fl.loc(i.Args[0], d)
		if v != d {
			fl.a.movRegReg(d, v)
		}
		fl.store(i.Dest, d)

	case ir.OSignExtend:
		d := fl.dest(i.Dest)
		v := fl.loc(i.Args[0], scratch)
		fl.a.movsxReg(d, v, 32)
		fl.store(i.Dest, d)

	case ir.OZeroExtend:
		// Assumed 32-bit source: a plain 32-bit mov already zero-extends
		// the upper 32 bits on x86-64, so no movzx opcode is needed (one
		// doesn't exist for the 32->64 case; only 8/16-bit sources do).
		d := fl.dest(i.Dest)
		v := fl.loc(i.Args[0], scratch)
		fl.a.regReg(false, 0x89, v, d)
		fl.store(i.Dest, d)

	case ir.OMul:
		d := fl.dest(i.Dest)
		l := fl.loc(i.Args[0], d)
		if l != d {
			fl.a.movRegReg(d, l)
		}
		if len(i.Args) == 1 {
			fl.a.imulImm(d, d, int32(i.Imm))
		} else {
			r := fl.loc(i.Args[1], scratch2)
			fl.a.imul(d, r)
		}
		fl.store(i.Dest, d)

	case ir.ODiv, ir.OMod:
		l := fl.loc(i.Args[0], regalloc.RAX)
		if l != regalloc.RAX {
			fl.a.movRegReg(regalloc.RAX, l)
		}
		r := fl.loc(i.Args[1], scratch)
		if r == regalloc.RAX || r == regalloc.RDX {
			fl.a.movRegReg(scratch2, r)
			r = scratch2
		}
		fl.a.idivSigned(r)
		d := fl.dest(i.Dest)
		if i.Op == ir.ODiv {
			if d != regalloc.RAX {
				fl.a.movRegReg(d, regalloc.RAX)
			}
		} else {
			fl.a.movRegReg(d, regalloc.RDX)
		}
		fl.store(i.Dest, d)

	case ir.OAdd, ir.OSub, ir.OAnd, ir.OOr, ir.OXor:
		d := fl.dest(i.Dest)
		l := fl.loc(i.Args[0], d)
		if l != d {
			fl.a.movRegReg(d, l)
		}
		r := fl.loc(i.Args[1], scratch2)
		fl.a.arith(arithOpcode(i.Op), d, r)
		fl.store(i.Dest, d)

	case ir.OShl, ir.OShr:
		d := fl.dest(i.Dest)
		l := fl.loc(i.Args[0], d)
		if l != d {
			fl.a.movRegReg(d, l)
		}
		r := fl.loc(i.Args[1], regalloc.RCX)
		if r != regalloc.RCX {
			fl.a.movRegReg(regalloc.RCX, r)
		}
		fl.a.shiftCL(d, i.Op == ir.OShl)
		fl.store(i.Dest, d)

	case ir.OPreIncrement, ir.OPreDecrement, ir.OPostIncrement, ir.OPostDecrement:
		addrReg := fl.loc(i.Args[0], scratch)
		d := fl.dest(i.Dest)
		fl.a.loadMem(d, addrReg, 0, ir.MInt64)
		if i.Op == ir.OPreIncrement || i.Op == ir.OPostIncrement {
			fl.a.arithImm(d, 0, int32(i.Imm))
		} else {
			fl.a.arithImm(d, 5, int32(i.Imm))
		}
		fl.store(i.Dest, d)

	case ir.OLt, ir.OLe, ir.OEq, ir.ONe, ir.OGt, ir.OGe:
		l := fl.loc(i.Args[0], scratch)
		r := fl.loc(i.Args[1], scratch2)
		fl.a.arith(opCmp, l, r)
		d := fl.dest(i.Dest)
		fl.a.setccAl(setCC(condFromOp(i.Op)), d)
		fl.store(i.Dest, d)
	}
}

func arithOpcode(op ir.Op) byte {
	switch op {
	case ir.OAdd:
		return opAdd
	case ir.OSub:
		return opSub
	case ir.OAnd:
		return opAnd
	case ir.OOr:
		return opOr
	case ir.OXor:
		return opXor
	}
	return opAdd
}

func condFromOp(op ir.Op) ir.CondKind {
	switch op {
	case ir.OLt:
		return ir.CLt
	case ir.OLe:
		return ir.CLe
	case ir.OEq:
		return ir.CEq
	case ir.ONe:
		return ir.CNe
	case ir.OGt:
		return ir.CGt
	case ir.OGe:
		return ir.CGe
	}
	return ir.CEq
}

func (fl *funcLower) emitLoad(i ir.Iload) {
	base := fl.loc(i.Args[0], scratch)
	disp := int32(i.Offset)
	if len(i.Args) > 1 {
		// Dynamic index: base += index * 1 (already pre-scaled by
		// irbuilder before reaching an Iload, so this is a plain add).
		idx := fl.loc(i.Args[1], scratch2)
		fl.a.arith(opAdd, base, idx)
	}
	d := fl.dest(i.Dest)
	if i.IsAddress {
		fl.a.lea(d, base, disp)
	} else {
		fl.a.loadMem(d, base, disp, i.Chunk)
	}
	fl.store(i.Dest, d)
}

func (fl *funcLower) emitStore(i ir.Istore) {
	base := fl.loc(i.Args[0], scratch)
	disp := int32(i.Offset)
	if len(i.Args) > 1 {
		idx := fl.loc(i.Args[1], scratch2)
		fl.a.arith(opAdd, base, idx)
	}
	src := fl.loc(i.Src, scratch2)
	fl.a.storeMem(src, base, disp, i.Chunk)
}

// sysVArgRegsLocal mirrors regalloc's unexported argument-register
// order for moving call arguments into place (duplicated rather than
// exported, since the ABI table is regalloc's concern and the order is
// part of its own ArgLocation contract, not emitter's).
var sysVArgRegsLocal = []regalloc.GPR{regalloc.RDI, regalloc.RSI, regalloc.RDX, regalloc.RCX, regalloc.R8, regalloc.R9}

func (fl *funcLower) emitArgs(args []ir.Temp) {
	for i, t := range args {
		if i >= len(sysVArgRegsLocal) {
			break // stack-passed arguments beyond the sixth: not modeled
		}
		v := fl.loc(t, sysVArgRegsLocal[i])
		if v != sysVArgRegsLocal[i] {
			fl.a.movRegReg(sysVArgRegsLocal[i], v)
		}
	}
}

func (fl *funcLower) emitCall(i ir.Icall) {
	fl.emitArgs(i.Args)
	switch fn := i.Fn.(type) {
	case ir.FunSymbol:
		fl.a.callRel32(fn.Name)
	case ir.FunReg:
		r := fl.loc(fn.Reg, scratch)
		l, ext := regNum(r)
		if ext {
			fl.a.rex(false, false, false, true)
		}
		fl.a.b(0xFF)
		fl.a.b(modrm(3, 2, l))
	}
	if i.Dest != 0 {
		d := fl.dest(i.Dest)
		if d != regalloc.RAX {
			fl.a.movRegReg(d, regalloc.RAX)
		}
		fl.store(i.Dest, d)
	}
}

func (fl *funcLower) emitEpilogueForTail() { fl.emitEpilogue0() }

// emitEpilogue0 undoes the prologue without emitting `ret` (a tail call
// replaces the return instruction with a jmp to the callee).
func (fl *funcLower) emitEpilogue0() {
	if fl.frame.FrameSize > 0 {
		fl.a.addRspImm32(int32(fl.frame.FrameSize))
	}
	for i := len(fl.frame.CalleeSaved) - 1; i >= 0; i-- {
		fl.a.pop(fl.frame.CalleeSaved[i])
	}
	fl.a.pop(regalloc.RBP)
}
