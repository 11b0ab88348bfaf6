package regalloc

import (
	"sort"

	"github.com/cppc-project/cppc/pkg/ir"
)

// Allocator performs register allocation using the Iterated Register
// Coalescing algorithm, retargeted to x86-64's integer register file.
type Allocator struct {
	graph    *InterferenceGraph
	liveness *LivenessInfo
	fn       *ir.Function
	K        int // Number of allocatable registers

	colors    map[ir.Temp]int // Assigned color (machine register index)
	spillSlot map[ir.Temp]int // Spill slot offset for spilled registers

	// IRC worklists
	simplifyWorklist []ir.Temp // Low-degree non-move-related nodes
	freezeWorklist   []ir.Temp // Low-degree move-related nodes
	spillWorklist    []ir.Temp // High-degree nodes (potential spills)
	coalescedNodes   RegSet    // Nodes that have been coalesced
	coloredNodes     RegSet    // Successfully colored nodes
	spilledNodes     RegSet    // Nodes that must be spilled
	selectStack      []ir.Temp // Stack of nodes removed during simplify/spill

	// For coalescing
	alias map[ir.Temp]ir.Temp // Maps coalesced node to its representative

	// Move worklists
	coalescedMoves   [][2]ir.Temp // Successfully coalesced
	constrainedMoves [][2]ir.Temp // Moves between interfering nodes
	frozenMoves      [][2]ir.Temp // Frozen (no longer candidates for coalescing)
	worklistMoves    [][2]ir.Temp // Active move candidates
	activeMoves      [][2]ir.Temp // Moves not yet ready to coalesce

	nextSpillSlot int64 // Next available spill slot offset

	// Precolored registers for parameters (maps each parameter Temp to its fixed location)
	precoloredParams map[ir.Temp]Loc
}

// AllocationResult holds the result of register allocation
type AllocationResult struct {
	// RegToLoc maps pseudo-registers to their assigned locations
	RegToLoc map[ir.Temp]Loc
	// SpilledRegs is the set of registers that were spilled
	SpilledRegs RegSet
	// StackSize is the size of the stack frame needed for spills
	StackSize int64
}

// NewAllocator creates a new register allocator
func NewAllocator(fn *ir.Function, graph *InterferenceGraph, liveness *LivenessInfo) *Allocator {
	a := &Allocator{
		fn:               fn,
		graph:            graph,
		liveness:         liveness,
		K:                NumAllocatableIntRegs,
		colors:           make(map[ir.Temp]int),
		spillSlot:        make(map[ir.Temp]int),
		coalescedNodes:   NewRegSet(),
		coloredNodes:     NewRegSet(),
		spilledNodes:     NewRegSet(),
		alias:            make(map[ir.Temp]ir.Temp),
		precoloredParams: make(map[ir.Temp]Loc),
	}

	// Precolor parameters according to calling convention.
	// IMPORTANT: Do NOT precolor parameters that are live across calls.
	// Those parameters need to be moved to callee-saved registers.
	for i, param := range fn.Params {
		if graph.LiveAcrossCalls.Contains(param) {
			continue
		}
		a.precoloredParams[param] = ArgLocation(i, false)
	}

	return a
}

// Allocate performs register allocation and returns the result
func (a *Allocator) Allocate() *AllocationResult {
	a.buildWorklists()

	for {
		if len(a.simplifyWorklist) > 0 {
			a.simplify()
		} else if len(a.worklistMoves) > 0 {
			a.coalesce()
		} else if len(a.freezeWorklist) > 0 {
			a.freeze()
		} else if len(a.spillWorklist) > 0 {
			a.selectSpill()
		} else {
			break
		}
	}

	a.assignColors()
	return a.buildResult()
}

func (a *Allocator) buildWorklists() {
	// First, mark precolored params as already colored.
	// They should not be in any worklist and their colors are fixed.
	for param, loc := range a.precoloredParams {
		if regLoc, ok := loc.(RegLoc); ok {
			for i, mreg := range AllocatableIntRegs {
				if mreg == regLoc.Reg {
					a.colors[param] = i
					a.coloredNodes.Add(param)
					break
				}
			}
		}
		// Stack-slot params don't get colored - they'll be handled in buildResult.
	}

	// Categorize non-precolored nodes into worklists
	for r := range a.graph.Members() {
		if _, isParam := a.precoloredParams[r]; isParam {
			continue
		}
		if a.degree(r) >= a.K {
			a.spillWorklist = append(a.spillWorklist, r)
		} else if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}

	// Build initial move worklist from preferences
	for r, prefs := range a.graph.Preferences {
		for p := range prefs {
			if r < p { // Avoid duplicates
				a.worklistMoves = append(a.worklistMoves, [2]ir.Temp{r, p})
			}
		}
	}
}

func (a *Allocator) degree(r ir.Temp) int {
	deg := 0
	for neighbor := range a.graph.Edges[r] {
		if !a.coalescedNodes.Contains(neighbor) {
			deg++
		}
	}
	return deg
}

func (a *Allocator) simplify() {
	n := len(a.simplifyWorklist) - 1
	r := a.simplifyWorklist[n]
	a.simplifyWorklist = a.simplifyWorklist[:n]

	a.selectStack = append(a.selectStack, r)

	for neighbor := range a.graph.Edges[r] {
		a.decrementDegree(neighbor)
	}
}

func (a *Allocator) decrementDegree(r ir.Temp) {
	if a.coalescedNodes.Contains(r) {
		return
	}
	if a.degree(r) == a.K-1 {
		a.removeFromWorklist(r, &a.spillWorklist)
		if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}
}

func (a *Allocator) removeFromWorklist(r ir.Temp, list *[]ir.Temp) {
	for i, reg := range *list {
		if reg == r {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func (a *Allocator) coalesce() {
	n := len(a.worklistMoves) - 1
	m := a.worklistMoves[n]
	a.worklistMoves = a.worklistMoves[:n]

	x := a.getAlias(m[0])
	y := a.getAlias(m[1])

	var u, v ir.Temp
	if x < y {
		u, v = x, y
	} else {
		u, v = y, x
	}

	if u == v {
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.addToWorklist(u)
	} else if a.graph.HasEdge(u, v) {
		a.constrainedMoves = append(a.constrainedMoves, m)
		a.addToWorklist(u)
		a.addToWorklist(v)
	} else if a.conservativeCoalesce(u, v) {
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.combine(u, v)
		a.addToWorklist(u)
	} else {
		a.activeMoves = append(a.activeMoves, m)
	}
}

func (a *Allocator) getAlias(r ir.Temp) ir.Temp {
	if a.coalescedNodes.Contains(r) {
		return a.getAlias(a.alias[r])
	}
	return r
}

func (a *Allocator) conservativeCoalesce(u, v ir.Temp) bool {
	// Conservative coalescing (Briggs criterion): safe to coalesce if
	// the combined node has < K high-degree neighbors.
	highDegreeNeighbors := 0
	neighbors := NewRegSet()

	for n := range a.graph.Edges[u] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}
	for n := range a.graph.Edges[v] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}

	for n := range neighbors {
		if a.degree(n) >= a.K {
			highDegreeNeighbors++
		}
	}

	return highDegreeNeighbors < a.K
}

func (a *Allocator) combine(u, v ir.Temp) {
	a.removeFromWorklist(v, &a.freezeWorklist)
	a.removeFromWorklist(v, &a.spillWorklist)

	a.coalescedNodes.Add(v)
	a.alias[v] = u

	if a.graph.LiveAcrossCalls.Contains(v) {
		a.graph.LiveAcrossCalls.Add(u)
	}

	for n := range a.graph.Edges[v] {
		if !a.coalescedNodes.Contains(n) && n != u {
			a.graph.AddEdge(u, n)
			a.decrementDegree(n)
		}
	}

	for n := range a.graph.Preferences[v] {
		if n != u {
			a.graph.AddPreference(u, n)
		}
	}

	if a.degree(u) >= a.K {
		a.removeFromWorklist(u, &a.freezeWorklist)
		a.spillWorklist = append(a.spillWorklist, u)
	}
}

func (a *Allocator) addToWorklist(r ir.Temp) {
	if a.coalescedNodes.Contains(r) {
		return
	}
	if a.degree(r) < a.K && !a.graph.MoveRelated(r) {
		a.removeFromWorklist(r, &a.freezeWorklist)
		a.simplifyWorklist = append(a.simplifyWorklist, r)
	}
}

func (a *Allocator) freeze() {
	n := len(a.freezeWorklist) - 1
	r := a.freezeWorklist[n]
	a.freezeWorklist = a.freezeWorklist[:n]

	a.simplifyWorklist = append(a.simplifyWorklist, r)
	a.freezeMovesFor(r)
}

func (a *Allocator) freezeMovesFor(r ir.Temp) {
	var remaining [][2]ir.Temp
	for _, m := range a.activeMoves {
		if m[0] == r || m[1] == r {
			a.frozenMoves = append(a.frozenMoves, m)

			var other ir.Temp
			if m[0] == r {
				other = m[1]
			} else {
				other = m[0]
			}
			a.addToWorklist(other)
		} else {
			remaining = append(remaining, m)
		}
	}
	a.activeMoves = remaining
}

func (a *Allocator) selectSpill() {
	// Select a node to spill using a simple heuristic: highest degree.
	var maxDeg int
	var maxReg ir.Temp
	maxIdx := -1

	for i, r := range a.spillWorklist {
		d := a.degree(r)
		if d > maxDeg || maxIdx == -1 {
			maxDeg = d
			maxReg = r
			maxIdx = i
		}
	}

	if maxIdx >= 0 {
		a.spillWorklist = append(a.spillWorklist[:maxIdx], a.spillWorklist[maxIdx+1:]...)
		a.simplifyWorklist = append(a.simplifyWorklist, maxReg)
		a.freezeMovesFor(maxReg)
	}
}

func (a *Allocator) assignColors() {
	for len(a.selectStack) > 0 {
		n := len(a.selectStack) - 1
		r := a.selectStack[n]
		a.selectStack = a.selectStack[:n]

		usedColors := make(map[int]bool)
		for neighbor := range a.graph.Edges[r] {
			alias := a.getAlias(neighbor)
			if a.coloredNodes.Contains(alias) {
				usedColors[a.colors[alias]] = true
			}
		}

		// If live across a call, only use callee-saved registers
		// (colors FirstCalleeSavedColor and above).
		startColor := 0
		if a.graph.LiveAcrossCalls.Contains(r) {
			startColor = FirstCalleeSavedColor
		}

		color := -1
		for c := startColor; c < a.K; c++ {
			if !usedColors[c] {
				color = c
				break
			}
		}

		if color >= 0 {
			a.coloredNodes.Add(r)
			a.colors[r] = color
		} else {
			a.spilledNodes.Add(r)
			a.spillSlot[r] = int(a.nextSpillSlot)
			a.nextSpillSlot += 8 // 8 bytes per spill slot
		}
	}

	// Copy colors to coalesced nodes.
	for r := range a.coalescedNodes {
		alias := a.getAlias(r)
		if a.coloredNodes.Contains(alias) {
			a.colors[r] = a.colors[alias]
			a.coloredNodes.Add(r)
		} else if a.spilledNodes.Contains(alias) {
			a.spilledNodes.Add(r)
			a.spillSlot[r] = a.spillSlot[alias]
		} else if _, isParam := a.precoloredParams[alias]; isParam {
			a.precoloredParams[r] = a.precoloredParams[alias]
		}
	}
}

func (a *Allocator) buildResult() *AllocationResult {
	result := &AllocationResult{
		RegToLoc:    make(map[ir.Temp]Loc),
		SpilledRegs: a.spilledNodes.Copy(),
		StackSize:   a.nextSpillSlot,
	}

	for param, loc := range a.precoloredParams {
		result.RegToLoc[param] = loc
	}

	for r := range a.coloredNodes {
		if _, isParam := a.precoloredParams[r]; isParam {
			continue
		}
		color := a.colors[r]
		if color < len(AllocatableIntRegs) {
			result.RegToLoc[r] = RegLoc{Reg: AllocatableIntRegs[color]}
		}
	}

	for r := range a.spilledNodes {
		if _, isParam := a.precoloredParams[r]; isParam {
			continue
		}
		result.RegToLoc[r] = StackLoc{Kind: SlotSpill, Ofs: int64(a.spillSlot[r])}
	}

	return result
}

// AllocateFunction performs register allocation for a function
func AllocateFunction(fn *ir.Function) *AllocationResult {
	liveness := AnalyzeLiveness(fn)
	graph := BuildInterferenceGraph(fn, liveness)
	allocator := NewAllocator(fn, graph, liveness)
	return allocator.Allocate()
}

// GetAllRegisters returns all pseudo-registers used in the function
func GetAllRegisters(fn *ir.Function) RegSet {
	regs := NewRegSet()
	for _, param := range fn.Params {
		regs.Add(param)
	}
	for _, instr := range fn.Code {
		switch i := instr.(type) {
		case ir.Iop:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
			regs.Add(i.Dest)
		case ir.Iload:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
			regs.Add(i.Dest)
		case ir.Istore:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
			regs.Add(i.Src)
		case ir.Icall:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
			if i.Dest != 0 {
				regs.Add(i.Dest)
			}
			if fr, ok := i.Fn.(ir.FunReg); ok {
				regs.Add(fr.Reg)
			}
		case ir.Itailcall:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
			if fr, ok := i.Fn.(ir.FunReg); ok {
				regs.Add(fr.Reg)
			}
		case ir.Icond:
			for _, arg := range i.Args {
				regs.Add(arg)
			}
		case ir.Ijumptable:
			regs.Add(i.Arg)
		case ir.Ireturn:
			if i.Arg != nil {
				regs.Add(*i.Arg)
			}
		case ir.Istringlit:
			regs.Add(i.Dest)
		case ir.Iglobaladdr:
			regs.Add(i.Dest)
		case ir.Iexcept:
			if i.Value != nil {
				regs.Add(*i.Value)
			}
		case ir.Iseh:
			if i.Dest != nil {
				regs.Add(*i.Dest)
			}
		}
	}
	return regs
}

// SortedRegSlice returns a sorted slice of registers (for deterministic output)
func SortedRegSlice(s RegSet) []ir.Temp {
	result := s.Slice()
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}
