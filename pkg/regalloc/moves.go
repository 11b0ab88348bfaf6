package regalloc

// ResolveParallelMoves generates a sequence of moves that correctly
// implements a parallel assignment from srcLocs to dstLocs, such as
// shuffling incoming arguments from their ABI-fixed registers into the
// locations the allocator chose for them. Grounded on the reference
// compiler's pkg/regalloc/transform.go, which performed the identical
// save-then-move strategy while lowering RTL to LTL. pkg/emitter does
// not call it: the emitter's entry shuffle is its own
// emitEntryParamMoves.
func ResolveParallelMoves(srcLocs, dstLocs []Loc) []Move {
	n := len(srcLocs)
	if n == 0 {
		return nil
	}

	var moves []Move
	for i := 0; i < n; i++ {
		if srcLocs[i] != dstLocs[i] {
			moves = append(moves, Move{Src: srcLocs[i], Dst: dstLocs[i]})
		}
	}
	if len(moves) == 0 {
		return nil
	}

	dstSet := make(map[Loc]bool)
	for _, m := range moves {
		dstSet[m.Dst] = true
	}

	// Temporary storage for sources that would otherwise be clobbered:
	// the top of the callee-saved range (R12-R15) is free before the
	// prologue has placed any value there.
	scratch := []GPR{R15, R14, R13, R12}
	scratchIdx := 0
	saved := make(map[Loc]Loc)
	var result []Move

	for _, m := range moves {
		if dstSet[m.Src] {
			if _, already := saved[m.Src]; !already && scratchIdx < len(scratch) {
				tmp := RegLoc{Reg: scratch[scratchIdx]}
				scratchIdx++
				result = append(result, Move{Src: m.Src, Dst: tmp})
				saved[m.Src] = tmp
			}
		}
	}

	for _, m := range moves {
		src := m.Src
		if s, ok := saved[m.Src]; ok {
			src = s
		}
		result = append(result, Move{Src: src, Dst: m.Dst})
	}

	return result
}

// Move is a single location-to-location copy the emitter lowers to a
// `mov` (or an ABI-appropriate load/store if either side is a stack
// slot).
type Move struct {
	Src Loc
	Dst Loc
}

// EntryParamMoves builds the moves needed at function entry to shuffle
// incoming arguments (fixed by the calling convention) into the
// locations the allocator assigned to the corresponding parameters.
func EntryParamMoves(params []Loc, allocated []Loc) []Move {
	return ResolveParallelMoves(params, allocated)
}
