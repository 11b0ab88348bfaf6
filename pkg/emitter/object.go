// Package emitter lowers pkg/ir's typed IR to x86-64 machine code,
// the reference compiler's asmgen+asm+printer pipeline collapsed into
// one package: where the reference compiler built a separate AArch64
// `asm.Instruction` AST and printed it as text for an external
// assembler, this package encodes machine bytes directly, because the
// final output is an emitted ELF/COFF object file rather than assembly
// text pkg/objwriter's consumer would otherwise have to reassemble (see
// DESIGN.md "Deleted / collapsed teacher packages").
package emitter

// Reloc is one relocation the object writer must patch once section
// layout and the symbol table are final: a relocatable object file
// whose callers must link with the platform's linker.
type Reloc struct {
	Offset int64  // byte offset within the owning section
	Symbol string // target symbol name
	Addend int64
	Kind   RelocKind
}

// RelocKind distinguishes the handful of relocation shapes this
// emitter's encodings ever produce.
type RelocKind int

const (
	// RelPC32 is a 4-byte PC-relative displacement (call rel32, jmp
	// rel32, lea reg,[rip+disp32]) — ELF R_X86_64_PC32/PLT32, COFF
	// IMAGE_REL_AMD64_REL32.
	RelPC32 RelocKind = iota
	// RelAbs64 is an 8-byte absolute address — ELF R_X86_64_64, COFF
	// IMAGE_REL_AMD64_ADDR64.
	RelAbs64
)

// FuncCode is one compiled function's machine code plus the
// relocations and exception-handling records needed to place it.
type FuncCode struct {
	Name       string
	Code       []byte
	Relocs     []Reloc
	Global     bool
	FrameSize  int64
	UnwindInfo UnwindInfo
}

// GlobalData is one file-scope variable's object-file representation.
type GlobalData struct {
	Name     string
	Size     int64
	Init     []byte // nil/short means zero-initialized (.bss); len(Init)==Size otherwise
	ReadOnly bool
}

// RodataEntry is an emitter-synthesized read-only constant (interned
// string literals; float constants are moved into registers as
// immediates and never land here), collected alongside the functions that reference them so
// the object writer can place one .rodata section for the whole unit.
type RodataEntry struct {
	Label string
	Bytes []byte
}

// Object is the neutral, format-independent result of emitting a whole
// ir.Program: pkg/objwriter's elf and coff packages each turn this into
// their own section/symbol/relocation layout.
type Object struct {
	Functions []FuncCode
	Globals   []GlobalData
	Rodata    []RodataEntry
}
