package regalloc

import "github.com/cppc-project/cppc/pkg/ir"

// LivenessInfo is the per-node result of backward liveness analysis,
// grounded on the reference compiler's dataflow-to-fixpoint liveness
// pass, generalized from rtl.Reg to ir.Temp.
type LivenessInfo struct {
	Def     map[ir.Node]RegSet
	Use     map[ir.Node]RegSet
	LiveIn  map[ir.Node]RegSet
	LiveOut map[ir.Node]RegSet
}

// ComputeDefUse computes each instruction's def and use sets.
func ComputeDefUse(fn *ir.Function) (def, use map[ir.Node]RegSet) {
	def = make(map[ir.Node]RegSet, len(fn.Code))
	use = make(map[ir.Node]RegSet, len(fn.Code))
	for n, instr := range fn.Code {
		d, u := defUse(instr)
		def[n] = d
		use[n] = u
	}
	return def, use
}

func defUse(instr ir.Instruction) (def, use RegSet) {
	def, use = NewRegSet(), NewRegSet()
	switch i := instr.(type) {
	case ir.Inop:
		// no def/use
	case ir.Iop:
		for _, a := range i.Args {
			use.Add(a)
		}
		def.Add(i.Dest)
	case ir.Iload:
		for _, a := range i.Args {
			use.Add(a)
		}
		def.Add(i.Dest)
	case ir.Istore:
		for _, a := range i.Args {
			use.Add(a)
		}
		use.Add(i.Src)
	case ir.Icall:
		for _, a := range i.Args {
			use.Add(a)
		}
		if fr, ok := i.Fn.(ir.FunReg); ok {
			use.Add(fr.Reg)
		}
		if i.Dest != 0 {
			def.Add(i.Dest)
		}
	case ir.Itailcall:
		for _, a := range i.Args {
			use.Add(a)
		}
		if fr, ok := i.Fn.(ir.FunReg); ok {
			use.Add(fr.Reg)
		}
	case ir.Icond:
		for _, a := range i.Args {
			use.Add(a)
		}
	case ir.Ijumptable:
		use.Add(i.Arg)
	case ir.Ireturn:
		if i.Arg != nil {
			use.Add(*i.Arg)
		}
	case ir.Istringlit:
		def.Add(i.Dest)
	case ir.Iglobaladdr:
		def.Add(i.Dest)
	case ir.Iexcept:
		if i.Value != nil {
			use.Add(*i.Value)
		}
	case ir.Iseh:
		if i.Dest != nil {
			def.Add(*i.Dest)
		}
	}
	return def, use
}

// successors returns the Nodes control may flow to after instr.
func successors(instr ir.Instruction) []ir.Node {
	switch i := instr.(type) {
	case ir.Inop:
		return []ir.Node{i.Succ}
	case ir.Iop:
		return []ir.Node{i.Succ}
	case ir.Iload:
		return []ir.Node{i.Succ}
	case ir.Istore:
		return []ir.Node{i.Succ}
	case ir.Icall:
		return []ir.Node{i.Succ}
	case ir.Itailcall:
		return nil
	case ir.Icond:
		return []ir.Node{i.IfSo, i.IfNot}
	case ir.Ijumptable:
		return i.Targets
	case ir.Ireturn:
		return nil
	case ir.Istringlit:
		return []ir.Node{i.Succ}
	case ir.Iglobaladdr:
		return []ir.Node{i.Succ}
	case ir.Iexcept:
		return []ir.Node{i.Succ}
	case ir.Iseh:
		return []ir.Node{i.Succ}
	}
	return nil
}

// AnalyzeLiveness runs the standard backward dataflow fixpoint:
//
//	live_out[n] = union of live_in[s] for each successor s
//	live_in[n]  = use[n] U (live_out[n] - def[n])
//
// over fn's control-flow graph, iterating until no set changes.
func AnalyzeLiveness(fn *ir.Function) *LivenessInfo {
	def, use := ComputeDefUse(fn)
	info := &LivenessInfo{
		Def:     def,
		Use:     use,
		LiveIn:  make(map[ir.Node]RegSet, len(fn.Code)),
		LiveOut: make(map[ir.Node]RegSet, len(fn.Code)),
	}
	for n := range fn.Code {
		info.LiveIn[n] = NewRegSet()
		info.LiveOut[n] = NewRegSet()
	}

	changed := true
	for changed {
		changed = false
		for n, instr := range fn.Code {
			liveOut := NewRegSet()
			for _, s := range successors(instr) {
				liveOut = liveOut.Union(info.LiveIn[s])
			}
			liveIn := info.Use[n].Union(liveOut.Minus(info.Def[n]))

			if !liveOut.Equal(info.LiveOut[n]) {
				info.LiveOut[n] = liveOut
				changed = true
			}
			if !liveIn.Equal(info.LiveIn[n]) {
				info.LiveIn[n] = liveIn
				changed = true
			}
		}
	}
	return info
}
