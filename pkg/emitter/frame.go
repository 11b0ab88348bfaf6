package emitter

import (
	"sort"

	"github.com/cppc-project/cppc/pkg/ir"
	"github.com/cppc-project/cppc/pkg/regalloc"
)

// FrameLayout resolves every Temp that lives in memory (an
// ir.FrameSlot, or a spilled pseudo-register) to a concrete RBP-
// relative byte offset, and records which callee-saved GPRs the
// allocator actually used ("callee-saved registers are
// saved/restored in the prologue/epilogue").
//
// Layout, growing down from RBP:
//
//	[rbp]          saved RBP
//	[rbp-8*n]      callee-saved GPR pushes (n = len(CalleeSaved))
//	[rbp-8*n-...]  frame slots (irbuilder's stack-allocated locals, in
//	               declaration order), starting below the pushes
//	[rbp-base-...] spilled pseudo-registers (regalloc's own 0-based
//	               offsets, shifted past the frame-slot region)
type FrameLayout struct {
	SlotOffset  map[ir.Temp]int64
	CalleeSaved []regalloc.GPR
	FrameSize   int64 // bytes subtracted from RSP in the prologue, 16-aligned
}

func alignUp(n, align int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + align - 1) &^ (align - 1)
}

var calleeSavedOrder = []regalloc.GPR{regalloc.RBX, regalloc.R12, regalloc.R13, regalloc.R14, regalloc.R15}

// BuildFrameLayout computes fn's stack frame from its FrameSlots and
// the register allocator's spill decisions.
func BuildFrameLayout(fn *ir.Function, alloc *regalloc.AllocationResult) *FrameLayout {
	used := map[regalloc.GPR]bool{}
	for _, loc := range alloc.RegToLoc {
		if rl, ok := loc.(regalloc.RegLoc); ok && regalloc.IsCalleeSaved(rl.Reg) {
			used[rl.Reg] = true
		}
	}
	var saved []regalloc.GPR
	for _, g := range calleeSavedOrder {
		if used[g] {
			saved = append(saved, g)
		}
	}

	slotOffset := make(map[ir.Temp]int64)

	// Stable order: FrameSlots are appended in declaration order by
	// irbuilder, so walking them directly reproduces it without needing
	// an explicit sort. The prologue pushes the callee-saved registers
	// right below the saved RBP, so the slots start past them.
	pushed := int64(8 * len(saved))
	base := pushed
	for _, fs := range fn.FrameSlots {
		size := fs.Size
		if size <= 0 {
			size = 8
		}
		base += alignUp(size, 8)
		slotOffset[fs.Temp] = -base
	}

	var spillTemps []ir.Temp
	for t, loc := range alloc.RegToLoc {
		if sl, ok := loc.(regalloc.StackLoc); ok && sl.Kind == regalloc.SlotSpill {
			spillTemps = append(spillTemps, t)
			_ = sl
		}
	}
	sort.Slice(spillTemps, func(i, j int) bool { return spillTemps[i] < spillTemps[j] })
	for _, t := range spillTemps {
		sl := alloc.RegToLoc[t].(regalloc.StackLoc)
		slotOffset[t] = -(base + sl.Ofs + 8)
	}

	frameTotal := base + alloc.StackSize - pushed
	return &FrameLayout{
		SlotOffset:  slotOffset,
		CalleeSaved: saved,
		FrameSize:   alignUp(frameTotal, 16),
	}
}

// offset returns t's RBP-relative byte offset and true if t has a frame
// slot or spill slot, or false otherwise.
func (f *FrameLayout) offset(t ir.Temp) (int64, bool) {
	ofs, ok := f.SlotOffset[t]
	return ofs, ok
}
