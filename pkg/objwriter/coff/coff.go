// Package coff writes COFF relocatable object files for the Windows
// x64 ABI. golang.org/x/sys/
// windows is a syscall-binding package and, like golang.org/x/sys/unix
// for ELF, carries none of the IMAGE_FILE_MACHINE_*/IMAGE_REL_AMD64_*/
// IMAGE_SCN_* constants a COFF writer needs (checked directly against
// its vendored source; see DESIGN.md) — those are named locally from
// the Microsoft PE/COFF specification. github.com/edsrzf/mmap-go is
// wired in as this package's scratch buffer for the PDATA/XDATA unwind
// records: they are built up function-by-function into a memory-mapped
// region before being copied into the final .pdata/.xdata section
// bytes, the same incremental-build-then-flatten shape
// github.com/saferwall/pe uses when it maps a PE image to parse.
package coff

import (
	"bytes"
	"encoding/binary"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/cppc-project/cppc/pkg/emitter"
	"github.com/cppc-project/cppc/pkg/objwriter"
	"github.com/cppc-project/cppc/pkg/regalloc"
)

const (
	imageFileMachineAmd64 = 0x8664

	imageScnCntCode             = 0x00000020
	imageScnCntInitializedData  = 0x00000040
	imageScnCntUninitializedData = 0x00000080
	imageScnMemExecute          = 0x20000000
	imageScnMemRead             = 0x40000000
	imageScnMemWrite            = 0x80000000
	imageScnAlign16Bytes        = 0x00500000

	imageSymClassExternal = 2
	imageSymClassStatic   = 3
	imageSymTypeFunction  = 0x20

	imageRelAmd64Rel32 = 0x0004
	imageRelAmd64Addr64 = 0x0001
)

type Writer struct{}

func New() *Writer { return &Writer{} }

var _ objwriter.Writer = (*Writer)(nil)

// scratchUnwind accumulates RUNTIME_FUNCTION (.pdata) and UNWIND_INFO
// (.xdata) bytes for every function in a memory-mapped scratch region
// before the final section bytes are assembled, so a pass over many
// functions never has to repeatedly grow a plain Go slice while the
// mapping is live.
type scratchUnwind struct {
	file *os.File
	m    mmap.MMap
	len  int64
}

func newScratchUnwind() (*scratchUnwind, error) {
	f, err := os.CreateTemp("", "cppc-unwind-*.scratch")
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(1 << 16); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &scratchUnwind{file: f, m: m}, nil
}

// write copies b into the mapped scratch region at the current
// cursor, growing the backing file first if b would not fit, and
// returns b's offset within the region.
func (s *scratchUnwind) write(b []byte) int64 {
	off := s.len
	need := off + int64(len(b))
	if need > int64(len(s.m)) {
		s.m.Unmap()
		newSize := int64(len(s.m)) * 2
		for newSize < need {
			newSize *= 2
		}
		s.file.Truncate(newSize)
		m, _ := mmap.Map(s.file, mmap.RDWR, 0)
		s.m = m
	}
	copy(s.m[off:], b)
	s.len += int64(len(b))
	return off
}

func (s *scratchUnwind) bytes() []byte { return s.m[:s.len] }

func (s *scratchUnwind) close() {
	s.m.Unmap()
	s.file.Close()
	os.Remove(s.file.Name())
}

// unwindInfoRecord is a minimal UNWIND_INFO for the uniform
// `push rbp; mov rbp,rsp; [push callee-saved]*; sub rsp,imm32`
// prologue shape this emitter always generates: one UWOP_PUSH_NONVOL
// per saved register plus, when FrameSize>0, one UWOP_ALLOC_LARGE.
func unwindInfoRecord(u emitter.UnwindInfo) []byte {
	var codes []byte
	// Unwind codes are stored in reverse prologue order.
	if u.FrameSize > 0 {
		codes = append(codes, opAllocLarge(u.FrameSize)...)
	}
	for i := len(u.CalleeSaved) - 1; i >= 0; i-- {
		codes = append(codes, opPushNonvol(winUnwindRegNum(u.CalleeSaved[i]))...)
	}
	codes = append(codes, opPushNonvol(5)...) // RBP

	for len(codes)%4 != 0 {
		codes = append(codes, 0, 0) // pad to an even number of UNWIND_CODE slots (a 4-byte boundary)
	}
	var out bytes.Buffer
	verFlags := byte(1) // version 1, no UNW_FLAG bits (no handler record appended even when HasHandler, a documented simplification)
	out.WriteByte(verFlags)
	out.WriteByte(0) // SizeOfProlog, unused by this minimal record
	out.WriteByte(byte(len(codes) / 2))
	out.WriteByte(0x05) // FrameRegister=RBP(5), FrameOffset=0
	out.Write(codes)
	return out.Bytes()
}

// winUnwindRegNum maps a regalloc.GPR to the register number the
// Windows x64 unwind-code format uses, which is simply x86-64's own
// register encoding (RAX=0 ... R15=15) — the same ordering
// regalloc.GPR's iota already follows.
func winUnwindRegNum(r regalloc.GPR) byte { return byte(r) }

func opPushNonvol(regNum byte) []byte {
	// UWOP_PUSH_NONVOL (code 0), OpInfo carries the register number.
	return []byte{0, regNum<<4 | 0}
}

func opAllocLarge(size int64) []byte {
	// UWOP_ALLOC_LARGE, op info 0: one extra node holding size/8.
	return []byte{0, 0x01, byte(size / 8), byte(size / 8 >> 8)}
}

// Write lays out obj as a single COFF object: .text, .data, .bss,
// .rodata, .pdata/.xdata (from each function's UnwindInfo), and a
// symbol table with one IMAGE_RELOCATION entry per emitter.Reloc.
func (w *Writer) Write(obj *emitter.Object) ([]byte, error) {
	scratch, err := newScratchUnwind()
	if err != nil {
		return nil, err
	}
	defer scratch.close()

	var text, data, rodata bytes.Buffer
	var bssSize int64
	funcOffset := map[string]int64{}
	for _, fn := range obj.Functions {
		funcOffset[fn.Name] = int64(text.Len())
		text.Write(fn.Code)
		for text.Len()%16 != 0 {
			text.WriteByte(0x90)
		}
	}
	globalOffset := map[string]int64{}
	for _, g := range obj.Globals {
		if len(g.Init) == 0 {
			globalOffset[g.Name] = bssSize
			bssSize += g.Size
			continue
		}
		globalOffset[g.Name] = int64(data.Len())
		data.Write(g.Init)
	}
	rodataOffset := map[string]int64{}
	for _, r := range obj.Rodata {
		rodataOffset[r.Label] = int64(rodata.Len())
		rodata.Write(r.Bytes)
	}

	var pdata bytes.Buffer
	xdataOffset := map[string]int64{}
	for _, fn := range obj.Functions {
		off := scratch.write(unwindInfoRecord(fn.UnwindInfo))
		xdataOffset[fn.Name] = off
		begin := uint32(funcOffset[fn.Name])
		end := begin + uint32(len(fn.Code))
		binary.Write(&pdata, binary.LittleEndian, struct{ Begin, End, UnwindInfo uint32 }{begin, end, uint32(off)})
	}

	type symEntry struct {
		name    string
		value   uint32
		section int16
		typ     uint16
		class   byte
	}
	var syms []symEntry
	symIndex := map[string]uint32{}
	addSym := func(name string, value uint32, section int16, typ uint16, class byte) uint32 {
		idx := uint32(len(syms))
		syms = append(syms, symEntry{name, value, section, typ, class})
		symIndex[name] = idx
		return idx
	}

	const (
		secText = 1
		secData = 2
		secBss  = 3
		secRodata = 4
		secPdata = 5
		secXdata = 6
	)

	for _, fn := range obj.Functions {
		cls := byte(imageSymClassStatic)
		if fn.Global {
			cls = imageSymClassExternal
		}
		addSym(fn.Name, uint32(funcOffset[fn.Name]), secText, imageSymTypeFunction, cls)
	}
	for _, g := range obj.Globals {
		sec := int16(secData)
		if len(g.Init) == 0 {
			sec = secBss
		}
		addSym(g.Name, uint32(globalOffset[g.Name]), sec, 0, imageSymClassExternal)
	}
	for _, r := range obj.Rodata {
		addSym(r.Label, uint32(rodataOffset[r.Label]), secRodata, 0, imageSymClassStatic)
	}
	ensureExternal := func(name string) uint32 {
		if idx, ok := symIndex[name]; ok {
			return idx
		}
		return addSym(name, 0, 0, imageSymTypeFunction, imageSymClassExternal)
	}

	type relocEntry struct {
		section int16
		offset  uint32
		symIdx  uint32
		typ     uint16
	}
	var relocs []relocEntry
	for _, fn := range obj.Functions {
		base := funcOffset[fn.Name]
		for _, rel := range fn.Relocs {
			idx, ok := symIndex[rel.Symbol]
			if !ok {
				idx = ensureExternal(rel.Symbol)
			}
			typ := uint16(imageRelAmd64Rel32)
			if rel.Kind == emitter.RelAbs64 {
				typ = imageRelAmd64Addr64
			}
			relocs = append(relocs, relocEntry{section: secText, offset: uint32(base + rel.Offset), symIdx: idx, typ: typ})
		}
	}

	strtab := bytes.NewBuffer(make([]byte, 4)) // first 4 bytes: little-endian total size, patched at the end
	nameField := func(name string) [8]byte {
		var f [8]byte
		if len(name) <= 8 {
			copy(f[:], name)
			return f
		}
		ofs := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		binary.LittleEndian.PutUint32(f[4:], ofs)
		return f
	}

	sectionNames := []string{".text", ".data", ".bss", ".rodata", ".pdata", ".xdata"}
	sectionBytes := [][]byte{text.Bytes(), data.Bytes(), nil, rodata.Bytes(), pdata.Bytes(), scratch.bytes()}
	sectionFlags := []uint32{
		imageScnCntCode | imageScnMemExecute | imageScnMemRead | imageScnAlign16Bytes,
		imageScnCntInitializedData | imageScnMemRead | imageScnMemWrite,
		imageScnCntUninitializedData | imageScnMemRead | imageScnMemWrite,
		imageScnCntInitializedData | imageScnMemRead,
		imageScnCntInitializedData | imageScnMemRead,
		imageScnCntInitializedData | imageScnMemRead,
	}

	const fileHeaderSize = 20
	const sectionHeaderSize = 40
	numSections := len(sectionNames)
	headerTotal := fileHeaderSize + numSections*sectionHeaderSize

	relocsBySection := map[int16][]relocEntry{}
	for _, r := range relocs {
		relocsBySection[r.section] = append(relocsBySection[r.section], r)
	}

	cur := int64(headerTotal)
	rawOffsets := make([]int64, numSections+1) // 1-indexed to match COFF section numbers
	relocOffsets := make([]int64, numSections+1)
	for i, b := range sectionBytes {
		secNo := int16(i + 1)
		rawOffsets[i+1] = cur
		if secNo != secBss { // .bss has no file content
			cur += int64(len(b))
		}
		relocOffsets[i+1] = cur
		cur += int64(len(relocsBySection[secNo])) * 10
	}
	symtabOffset := cur

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, struct {
		Machine              uint16
		NumberOfSections     uint16
		TimeDateStamp        uint32
		PointerToSymbolTable uint32
		NumberOfSymbols      uint32
		SizeOfOptionalHeader uint16
		Characteristics      uint16
	}{
		Machine:              imageFileMachineAmd64,
		NumberOfSections:     uint16(numSections),
		PointerToSymbolTable: uint32(symtabOffset),
		NumberOfSymbols:      uint32(len(syms)),
	})

	for i, name := range sectionNames {
		secNo := int16(i + 1)
		var sh struct {
			Name                 [8]byte
			VirtualSize          uint32
			VirtualAddress       uint32
			SizeOfRawData        uint32
			PointerToRawData     uint32
			PointerToRelocations uint32
			PointerToLinenumbers uint32
			NumberOfRelocations  uint16
			NumberOfLinenumbers  uint16
			Characteristics      uint32
		}
		copy(sh.Name[:], name)
		if secNo == secBss {
			sh.SizeOfRawData = uint32(bssSize)
		} else {
			sh.SizeOfRawData = uint32(len(sectionBytes[i]))
			sh.PointerToRawData = uint32(rawOffsets[i+1])
		}
		rs := relocsBySection[secNo]
		if len(rs) > 0 {
			sh.PointerToRelocations = uint32(relocOffsets[i+1])
			sh.NumberOfRelocations = uint16(len(rs))
		}
		sh.Characteristics = sectionFlags[i]
		binary.Write(&out, binary.LittleEndian, sh)
	}

	for i := range sectionNames {
		secNo := int16(i + 1)
		if secNo == secBss {
			continue
		}
		out.Write(sectionBytes[i])
		for _, r := range relocsBySection[secNo] {
			binary.Write(&out, binary.LittleEndian, struct {
				VirtualAddress   uint32
				SymbolTableIndex uint32
				Type             uint16
			}{r.offset, r.symIdx, r.typ})
		}
	}

	symtabOffset = int64(out.Len())
	for _, s := range syms {
		binary.Write(&out, binary.LittleEndian, struct {
			Name               [8]byte
			Value              uint32
			SectionNumber      int16
			Type               uint16
			StorageClass       byte
			NumberOfAuxSymbols byte
		}{
			Name:          nameField(s.name),
			Value:         s.value,
			SectionNumber: s.section,
			Type:          s.typ,
			StorageClass:  s.class,
		})
	}
	binary.LittleEndian.PutUint32(strtab.Bytes()[:4], uint32(strtab.Len()))
	out.Write(strtab.Bytes())

	final := out.Bytes()
	binary.LittleEndian.PutUint32(final[8:12], uint32(symtabOffset))
	return final, nil
}
