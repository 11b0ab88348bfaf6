package emitter

import "github.com/cppc-project/cppc/pkg/regalloc"

// UnwindInfo is the subset of a function's frame shape pkg/objwriter
// needs to synthesize platform unwind metadata (ELF .eh_frame CIE/FDE,
// COFF .pdata/.xdata): every function this emitter generates uses the
// same push-rbp/mov-rbp,rsp/sub-rsp prologue shape, so one small struct
// fully describes how to unwind it, rather than a general-purpose CFI
// instruction stream.
type UnwindInfo struct {
	// FrameSize is the byte count subtracted from RSP after the
	// prologue's callee-saved pushes (matches FuncCode.FrameSize).
	FrameSize int64
	// CalleeSaved lists, in push order, the registers saved between
	// `push rbp` and `sub rsp,FrameSize`.
	CalleeSaved []regalloc.GPR
	// HasHandler is true when the function contains a try/catch or SEH
	// region. The object writer does not read it: every function gets
	// the bare frame-unwind-only record with no handler data, and
	// landing-pad dispatch is not modeled.
	HasHandler bool
}
