package emitter

import (
	"github.com/cppc-project/cppc/pkg/intern"
	"github.com/cppc-project/cppc/pkg/ir"
)

// Emit lowers every function and global in prog to machine code,
// running register allocation and frame layout per function: allocate
// registers, lay out each function's stack frame, then encode. strs
// resolves Istringlit's interned
// handles to their literal bytes for the synthesized .rodata section;
// it may be nil for a program that contains no string literals.
func Emit(prog *ir.Program, strs *intern.Table) (*Object, error) {
	obj := &Object{}
	for _, g := range prog.Globals {
		obj.Globals = append(obj.Globals, GlobalData{
			Name:     g.Name,
			Size:     g.Size,
			Init:     g.Init,
			ReadOnly: g.ReadOnly,
		})
	}
	for i := range prog.Functions {
		fn := &prog.Functions[i]
		fc := lowerFunction(fn, strs, &obj.Rodata)
		fc.Global = true
		obj.Functions = append(obj.Functions, fc)
	}
	return obj, nil
}
