package emitter

import (
	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/regalloc"
)

// asm accumulates one function's machine code and the relocations its
// encodings require, mirroring the reference compiler's asm.Printer in shape
// (append-only, one method per instruction form) but emitting bytes
// instead of assembly text.
type asm struct {
	code   []byte
	relocs []Reloc
}

func (a *asm) b(v byte)     { a.code = append(a.code, v) }
func (a *asm) bs(vs ...byte) { a.code = append(a.code, vs...) }

func (a *asm) i32(v int32) {
	a.code = append(a.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *asm) i64(v int64) {
	for i := 0; i < 8; i++ {
		a.code = append(a.code, byte(v>>(8*i)))
	}
}

func (a *asm) pos() int64 { return int64(len(a.code)) }

// relocPC32 records a 4-byte PC-relative relocation at the last four
// emitted bytes (addend is relative to the end of the relocated field,
// per ELF/COFF's rel32 convention).
func (a *asm) relocPC32(sym string, addend int64) {
	a.relocs = append(a.relocs, Reloc{Offset: a.pos() - 4, Symbol: sym, Addend: addend, Kind: RelPC32})
}

func regNum(r regalloc.GPR) (low int, ext bool) { return int(r) & 7, r >= 8 }

// rex emits a REX prefix iff one of w/r/x/b is set, exactly as a real
// encoder must: a bare 0x40 still changes operand semantics (byte
// registers) versus its absence.
func (a *asm) rex(w bool, r, x, b bool) {
	var v byte = 0x40
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	if v != 0x40 || w {
		a.b(v)
	}
}

func modrm(mod, reg, rm int) byte { return byte(mod<<6 | (reg&7)<<3 | (rm & 7)) }

// regReg emits `op dstReg, srcReg` style direct-register ModRM bytes
// for a two-register form where reg is the ModRM.reg field and rm is
// ModRM.rm (the field meanings swap between the 0x01-style and 0x03-
// style opcode encodings, so callers pick reg/rm explicitly).
func (a *asm) regReg(w bool, opcode byte, regField, rmField regalloc.GPR) {
	rl, rext := regNum(regField)
	ml, mext := regNum(rmField)
	a.rex(w, rext, false, mext)
	a.b(opcode)
	a.b(modrm(3, rl, ml))
}

// memDisp32 emits a ModRM+disp32 addressing [baseReg+disp] (mod=10,
// always a 4-byte displacement — this emitter never bothers packing a
// disp8, trading a few bytes of code size for one fewer encoding path).
func (a *asm) memDisp32(w bool, opcode byte, regField, baseReg regalloc.GPR, disp int32) {
	rl, rext := regNum(regField)
	bl, bext := regNum(baseReg)
	a.rex(w, rext, false, bext)
	a.b(opcode)
	a.b(modrm(2, rl, bl))
	if bl == 4 { // RSP/R12 as base requires a SIB byte
		a.b(0x24)
	}
	a.i32(disp)
}

// ripRel emits ModRM `[rip+disp32]` (mod=00, rm=101) with a relocation
// against sym, used for global-variable access and rodata loads.
func (a *asm) ripRel(w bool, opcode byte, regField regalloc.GPR, sym string, addend int64) {
	rl, rext := regNum(regField)
	a.rex(w, rext, false, false)
	a.b(opcode)
	a.b(modrm(0, rl, 5))
	a.i32(0)
	a.relocPC32(sym, addend-4)
}

func (a *asm) movRegReg(dst, src regalloc.GPR) {
	if dst == src {
		return
	}
	a.regReg(true, 0x89, src, dst) // mov r/m64, r64 (reg=src, rm=dst)
}

func (a *asm) movImm64(dst regalloc.GPR, v int64) {
	l, ext := regNum(dst)
	a.rex(true, false, false, ext)
	a.b(0xB8 + byte(l))
	a.i64(v)
}

func (a *asm) movImm32(dst regalloc.GPR, v int32) {
	l, ext := regNum(dst)
	if ext {
		a.rex(false, false, false, true)
	}
	a.b(0xB8 + byte(l))
	a.i32(v)
}

// loadMem is `mov dst, [base+disp]` sized per chunk; sub-64-bit integer
// chunks are always zero-extended into the full register (a real but
// simplified choice: sign-sensitive reads flow through the OSignExtend/
// OZeroExtend conversion opcodes irbuilder already emits at cast sites,
// so the raw load itself need not special-case signedness).
func (a *asm) loadMem(dst, base regalloc.GPR, disp int32, chunk ir.MemChunk) {
	switch chunk {
	case ir.MInt8:
		a.movzx(dst, base, disp, 1)
	case ir.MInt16:
		a.movzx(dst, base, disp, 2)
	case ir.MInt32:
		a.memDisp32(false, 0x8B, dst, base, disp)
	default: // MInt64, MFloat32, MFloat64, MPointer
		a.memDisp32(true, 0x8B, dst, base, disp)
	}
}

func (a *asm) movzx(dst, base regalloc.GPR, disp int32, width int) {
	rl, rext := regNum(dst)
	bl, bext := regNum(base)
	a.rex(true, rext, false, bext)
	a.b(0x0F)
	if width == 1 {
		a.b(0xB6)
	} else {
		a.b(0xB7)
	}
	a.b(modrm(2, rl, bl))
	if bl == 4 {
		a.b(0x24)
	}
	a.i32(disp)
}

func (a *asm) storeMem(src, base regalloc.GPR, disp int32, chunk ir.MemChunk) {
	switch chunk {
	case ir.MInt8:
		a.memDisp32Sized(false, 0x88, src, base, disp) // mov [m8], r8l — REX.W unused for byte store
	case ir.MInt16:
		a.b(0x66) // operand-size override prefix for 16-bit store
		a.memDisp32(false, 0x89, src, base, disp)
	case ir.MInt32:
		a.memDisp32(false, 0x89, src, base, disp)
	default:
		a.memDisp32(true, 0x89, src, base, disp)
	}
}

// memDisp32Sized is memDisp32 for byte-sized register operands: it
// always emits a REX prefix (a bare 0x40 when no bit is set) so that
// register numbers 4-7 select SPL/BPL/SIL/DIL rather than AH/CH/DH/BH.
func (a *asm) memDisp32Sized(w bool, opcode byte, regField, baseReg regalloc.GPR, disp int32) {
	rl, rext := regNum(regField)
	bl, bext := regNum(baseReg)
	var v byte = 0x40
	if w {
		v |= 1 << 3
	}
	if rext {
		v |= 1 << 2
	}
	if bext {
		v |= 1
	}
	a.b(v)
	a.b(opcode)
	a.b(modrm(2, rl, bl))
	if bl == 4 {
		a.b(0x24)
	}
	a.i32(disp)
}

func (a *asm) lea(dst, base regalloc.GPR, disp int32) {
	a.memDisp32(true, 0x8D, dst, base, disp)
}

func (a *asm) leaRIP(dst regalloc.GPR, sym string, addend int64) {
	a.ripRel(true, 0x8D, dst, sym, addend)
}

// arith encodes `op dst, src` for the two-operand ALU opcodes sharing
// this encoding shape (add/sub/and/or/xor/cmp), all keyed by their
// 0x01-style (r/m64, r64) opcode byte.
func (a *asm) arith(opcode byte, dst, src regalloc.GPR) {
	a.regReg(true, opcode, src, dst)
}

const (
	opAdd = 0x01
	opSub = 0x29
	opAnd = 0x21
	opOr  = 0x09
	opXor = 0x31
	opCmp = 0x39
)

func (a *asm) imul(dst, src regalloc.GPR) {
	rl, rext := regNum(dst)
	ml, mext := regNum(src)
	a.rex(true, rext, false, mext)
	a.b(0x0F)
	a.b(0xAF)
	a.b(modrm(3, rl, ml))
}

// idivSigned divides RDX:RAX by src, leaving the quotient in RAX and the
// remainder in RDX (the only shape `idiv` has on x86-64), sign-extending
// RAX into RDX first via cqo.
func (a *asm) idivSigned(src regalloc.GPR) {
	a.b(0x48)
	a.b(0x99) // cqo
	l, ext := regNum(src)
	a.rex(true, false, false, ext)
	a.b(0xF7)
	a.b(modrm(3, 7, l))
}

func (a *asm) divUnsigned(src regalloc.GPR) {
	// xor edx, edx ; div src
	a.b(0x31)
	a.b(modrm(3, 2, 2))
	l, ext := regNum(src)
	a.rex(true, false, false, ext)
	a.b(0xF7)
	a.b(modrm(3, 6, l))
}

// arithImm encodes `op dst, imm32` (opcode 0x81 /ext) for the same
// six ALU operations as arith, keyed by ModRM's reg-field extension
// (0=add, 1=or, 4=and, 5=sub, 6=xor, 7=cmp) rather than a distinct
// opcode byte.
func (a *asm) arithImm(dst regalloc.GPR, ext int, imm32 int32) {
	l, dext := regNum(dst)
	a.rex(true, false, false, dext)
	a.b(0x81)
	a.b(modrm(3, ext, l))
	a.i32(imm32)
}

// imulImm encodes the three-operand `imul dst, src, imm32` form
// (0x69 /r) used for pointer-arithmetic scaling by a compile-time
// element size.
func (a *asm) imulImm(dst, src regalloc.GPR, imm32 int32) {
	a.regReg(true, 0x69, dst, src)
	a.i32(imm32)
}

// shiftCL encodes `shl dst, cl` / `sar dst, cl` (0xD3 /4 or /7), the
// only two shift opcodes irbuilder's OShl/OShr ever lower to (OShr is
// always treated as an arithmetic shift, a simplification documented
// alongside OSignExtend/OZeroExtend's assumed operand widths).
func (a *asm) shiftCL(dst regalloc.GPR, left bool) {
	l, ext := regNum(dst)
	a.rex(true, false, false, ext)
	a.b(0xD3)
	ext3 := 7
	if left {
		ext3 = 4
	}
	a.b(modrm(3, ext3, l))
}

func (a *asm) negReg(r regalloc.GPR) {
	l, ext := regNum(r)
	a.rex(true, false, false, ext)
	a.b(0xF7)
	a.b(modrm(3, 3, l))
}

func (a *asm) notReg(r regalloc.GPR) {
	l, ext := regNum(r)
	a.rex(true, false, false, ext)
	a.b(0xF7)
	a.b(modrm(3, 2, l))
}

func (a *asm) testSelf(r regalloc.GPR) {
	a.regReg(true, 0x85, r, r)
}

func (a *asm) setccAl(cc byte, dst regalloc.GPR) {
	// Computed into AL via setcc, then movzx into dst (simple, if not
	// minimal: an allocator-aware encoder would special-case dst==RAX).
	a.b(0x0F)
	a.b(cc)
	a.b(modrm(3, 0, 0)) // setcc al
	a.movzxReg(dst, regalloc.RAX, 1)
}

func (a *asm) movzxReg(dst, src regalloc.GPR, width int) {
	rl, rext := regNum(dst)
	sl, sext := regNum(src)
	a.rex(true, rext, false, sext)
	a.b(0x0F)
	if width == 1 {
		a.b(0xB6)
	} else {
		a.b(0xB7)
	}
	a.b(modrm(3, rl, sl))
}

func (a *asm) movsxReg(dst, src regalloc.GPR, fromBits int) {
	rl, rext := regNum(dst)
	sl, sext := regNum(src)
	a.rex(true, rext, false, sext)
	a.b(0x0F)
	switch {
	case fromBits <= 8:
		a.b(0xBE)
	case fromBits <= 16:
		a.b(0xBF)
	default:
		// movsxd (opcode 0x63, no 0x0F prefix) for 32->64
		a.code = a.code[:len(a.code)-1] // undo the 0x0F we just appended
		a.b(0x63)
		a.b(modrm(3, rl, sl))
		return
	}
	a.b(modrm(3, rl, sl))
}

func (a *asm) push(r regalloc.GPR) {
	l, ext := regNum(r)
	if ext {
		a.rex(false, false, false, true)
	}
	a.b(0x50 + byte(l))
}

func (a *asm) pop(r regalloc.GPR) {
	l, ext := regNum(r)
	if ext {
		a.rex(false, false, false, true)
	}
	a.b(0x58 + byte(l))
}

func (a *asm) subRspImm32(v int32) {
	a.b(0x48)
	a.b(0x81)
	a.b(modrm(3, 5, 4)) // /5 on rm=rsp
	a.i32(v)
}

func (a *asm) addRspImm32(v int32) {
	a.b(0x48)
	a.b(0x81)
	a.b(modrm(3, 0, 4)) // /0 on rm=rsp
	a.i32(v)
}

func (a *asm) ret() { a.b(0xC3) }

func (a *asm) callRel32(sym string) {
	a.b(0xE8)
	a.i32(0)
	a.relocPC32(sym, -4)
}

func (a *asm) jmpRel32(label string) int {
	a.b(0xE9)
	at := a.pos()
	a.i32(0)
	_ = label
	return int(at)
}

func (a *asm) jccRel32(cc byte) int {
	a.b(0x0F)
	a.b(cc)
	at := a.pos()
	a.i32(0)
	return int(at)
}

// patchRel32 fills in a previously-emitted jmp/jcc displacement once the
// target's final position is known (this emitter lays out a whole
// function before fixing up any intra-function branch, rather than
// threading label positions through the scheduler as it walks).
func (a *asm) patchRel32(at int, target int64) {
	disp := int32(target - (int64(at) + 4))
	a.code[at] = byte(disp)
	a.code[at+1] = byte(disp >> 8)
	a.code[at+2] = byte(disp >> 16)
	a.code[at+3] = byte(disp >> 24)
}

// condCC maps an ir.CondKind to the Jcc tttn nibble (0x0F 0x8_).
func condCC(c ir.CondKind) byte {
	switch c {
	case ir.CEq:
		return 0x84
	case ir.CNe:
		return 0x85
	case ir.CLt:
		return 0x8C
	case ir.CLe:
		return 0x8E
	case ir.CGt:
		return 0x8F
	case ir.CGe:
		return 0x8D
	}
	return 0x85
}

// setCC maps an ir.CondKind to the SETcc opcode byte (0x0F 0x9_).
func setCC(c ir.CondKind) byte {
	switch c {
	case ir.CEq:
		return 0x94
	case ir.CNe:
		return 0x95
	case ir.CLt:
		return 0x9C
	case ir.CLe:
		return 0x9E
	case ir.CGt:
		return 0x9F
	case ir.CGe:
		return 0x9D
	}
	return 0x95
}
