// Package regalloc performs register allocation over pkg/ir's typed IR
// using Iterated Register Coalescing (IRC), grounded on the reference
// compiler's pkg/regalloc (interference graph + IRC worklists),
// retargeted from AArch64's X0-X30 to the x86-64 integer registers
// (R0-R15 minus reserved, XMM0-XMM15). Only the general-purpose
// registers are modeled here; XMM allocation for floating-point
// temporaries is future work noted in DESIGN.md.
package regalloc

import "github.com/cppc-project/cppc/pkg/ir"

// GPR names one of the sixteen x86-64 general-purpose registers.
type GPR int

const (
	RAX GPR = iota
	RCX
	RDX
	RBX
	RSP // reserved: stack pointer
	RBP // reserved: frame pointer
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

func (r GPR) String() string {
	names := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if int(r) < len(names) {
		return names[r]
	}
	return "?"
}

// AllocatableIntRegs lists the GPRs the allocator may assign to a
// pseudo-register, in a fixed color order. RSP/RBP are reserved for the
// stack/frame pointers and never appear here. The caller-saved
// registers (per the System V AMD64 ABI: RAX, RCX, RDX, RSI, RDI, R8-
// R11) are colored first; the callee-saved registers (RBX, R12-R15)
// start at FirstCalleeSavedColor and are reserved for values live
// across a call, mirroring the reference compiler's X19-X28 treatment
// on AArch64.
// R10 and R11 are deliberately excluded: pkg/emitter reserves them as
// its own scratch registers for shuffling spilled operands into place,
// so the allocator must never hand them to a Temp.
var AllocatableIntRegs = []GPR{
	RAX, RCX, RDX, RSI, RDI, R8, R9, // caller-saved: colors 0-6
	RBX, R12, R13, R14, R15, // callee-saved: colors 7-11
}

// NumAllocatableIntRegs is the coloring budget K for the IRC algorithm.
var NumAllocatableIntRegs = len(AllocatableIntRegs)

// FirstCalleeSavedColor is the first color index in AllocatableIntRegs
// that names a callee-saved register.
const FirstCalleeSavedColor = 7

// sysVArgRegs is the System V AMD64 integer-argument register order:
// up to six integer arguments are passed in registers.
var sysVArgRegs = []GPR{RDI, RSI, RDX, RCX, R8, R9}

// Loc is a Temp's assigned physical location: either a GPR or a stack
// slot (spilled or stack-passed).
type Loc interface{ implLoc() }

// RegLoc is a physical-register location.
type RegLoc struct{ Reg GPR }

func (RegLoc) implLoc() {}

// SlotKind distinguishes a stack slot's purpose.
type SlotKind int

const (
	SlotSpill SlotKind = iota // a spilled pseudo-register
	SlotArg                   // an incoming argument passed on the stack
)

// StackLoc is a stack-relative location, offset in bytes from RBP.
type StackLoc struct {
	Kind SlotKind
	Ofs  int64
}

func (StackLoc) implLoc() {}

// ArgLocation returns the location integer argument index i arrives in,
// per the System V AMD64 calling convention. Float
// arguments classify to XMM registers, not modeled here; isFloat is
// accepted for API symmetry with ReturnLocation and is currently
// ignored for integer-only allocation.
func ArgLocation(index int, isFloat bool) Loc {
	if index < len(sysVArgRegs) {
		return RegLoc{Reg: sysVArgRegs[index]}
	}
	return StackLoc{Kind: SlotArg, Ofs: int64(index-len(sysVArgRegs)) * 8}
}

// IsCalleeSaved reports whether r is one of the callee-saved GPRs
// (RBX, R12-R15 per the System V AMD64 ABI).
func IsCalleeSaved(r GPR) bool {
	switch r {
	case RBX, R12, R13, R14, R15:
		return true
	default:
		return false
	}
}

// ReturnLocation returns the location a function's return value
// arrives in: RAX for integers, XMM0 for floating point (float return
// is not modeled yet; this always answers RAX).
func ReturnLocation(isFloat bool) Loc {
	return RegLoc{Reg: RAX}
}

// RegSet is a set of IR temporaries.
type RegSet map[ir.Temp]struct{}

// NewRegSet returns an empty set.
func NewRegSet() RegSet { return make(RegSet) }

func (s RegSet) Add(r ir.Temp)         { s[r] = struct{}{} }
func (s RegSet) Contains(r ir.Temp) bool { _, ok := s[r]; return ok }
func (s RegSet) Remove(r ir.Temp)      { delete(s, r) }

// Slice returns the set's members in unspecified order.
func (s RegSet) Slice() []ir.Temp {
	out := make([]ir.Temp, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}

// Copy returns a shallow copy of s.
func (s RegSet) Copy() RegSet {
	c := make(RegSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Union returns a new set containing every member of s and other.
func (s RegSet) Union(other RegSet) RegSet {
	c := s.Copy()
	for r := range other {
		c[r] = struct{}{}
	}
	return c
}

// Minus returns a new set containing s's members that are not in other.
func (s RegSet) Minus(other RegSet) RegSet {
	c := make(RegSet)
	for r := range s {
		if !other.Contains(r) {
			c[r] = struct{}{}
		}
	}
	return c
}

// Equal reports whether s and other contain exactly the same members.
func (s RegSet) Equal(other RegSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Contains(r) {
			return false
		}
	}
	return true
}
