// Package objwriter turns a pkg/emitter.Object into bytes a platform
// linker understands.
// pkg/objwriter/elf and pkg/objwriter/coff are the two concrete
// Writers; this package only names the shared trait between them, the
// way the reference compiler's own output stage is one interface (`asm.Printer`)
// with per-target implementations.
package objwriter

import "github.com/cppc-project/cppc/pkg/emitter"

// Writer serializes one compiled translation unit into a relocatable
// object file's bytes.
type Writer interface {
	Write(obj *emitter.Object) ([]byte, error)
}
