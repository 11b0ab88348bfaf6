// Package elf writes ELF64 relocatable object files for the System V
// AMD64 ABI. golang.org/x/sys/unix
// does not expose the ELF section/relocation/symbol-type constants a
// file-format writer needs (it is a syscall-binding package, not an
// object-format one) — only its e_machine enum survives into the
// header below (unix.EM_X86_64); the rest of the format's constants
// are named locally straight from the System V ABI, the same values
// stdlib debug/elf carries under different names (see DESIGN.md).
package elf

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/cppc-project/cppc/pkg/emitter"
	"github.com/cppc-project/cppc/pkg/objwriter"
)

const (
	etRel     = 2
	evCurrent = 1
	elfClass64 = 2
	elfData2LSB = 1
	elfOsabiSysV = 0

	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtNobits   = 8

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4
	shfInfoLink  = 0x40

	stbLocal  = 0
	stbGlobal = 1
	sttNotype = 0
	sttObject = 1
	sttFunc   = 2
	sttSection = 3

	rX8664PC32 = 2
	rX8664_64  = 1
)

type Writer struct{}

func New() *Writer { return &Writer{} }

var _ objwriter.Writer = (*Writer)(nil)

type sectionBuf struct {
	name string
	typ  uint32
	flags uint64
	data []byte
	link, info uint32
	entsize uint64
	align uint64
}

// Write lays out obj as a single ELF64 object: one .text covering every
// function back to back, one .data/.bss/.rodata, a combined .symtab/
// .strtab, and a .rela.text carrying every function's relocations
// retargeted at the merged .text offsets.
func (w *Writer) Write(obj *emitter.Object) ([]byte, error) {
	var text, data, rodata bytes.Buffer
	var bssSize int64

	type symInfo struct {
		name  string
		value uint64
		size  uint64
		info  byte
		shndx uint16
	}
	var syms []symInfo
	var relocs []struct {
		offset uint64
		symIdx uint32
		typ    uint32
		addend int64
	}

	funcOffset := map[string]int64{}
	for _, fn := range obj.Functions {
		funcOffset[fn.Name] = int64(text.Len())
		text.Write(fn.Code)
		for text.Len()%16 != 0 {
			text.WriteByte(0x90) // nop padding, keeps each function 16-byte aligned
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

	// section indices, fixed by the layout below
	const (
		secNull = iota
		secText
		secData
		secBss
		secRodata
		secSymtab
		secStrtab
		secRelaText
		secShstrtab
		secCount
	)

	strtab := newStrtab()
	symIndex := map[string]uint32{}
	addSym := func(name string, value uint64, size uint64, info byte, shndx uint16) uint32 {
		idx := uint32(len(syms) + 1) // symbol 0 is the reserved null entry
		syms = append(syms, symInfo{name: name, value: value, size: size, info: info, shndx: shndx})
		symIndex[name] = idx
		return idx
	}

	for _, fn := range obj.Functions {
		bind := byte(stbLocal)
		if fn.Global {
			bind = stbGlobal
		}
		addSym(fn.Name, uint64(funcOffset[fn.Name]), uint64(len(fn.Code)), bind<<4|sttFunc, secText)
	}
	for _, g := range obj.Globals {
		shndx := uint16(secData)
		if len(g.Init) == 0 {
			shndx = secBss
		}
		addSym(g.Name, uint64(globalOffset[g.Name]), uint64(g.Size), stbGlobal<<4|sttObject, shndx)
	}
	for _, r := range obj.Rodata {
		addSym(r.Label, uint64(rodataOffset[r.Label]), uint64(len(r.Bytes)), stbLocal<<4|sttObject, secRodata)
	}

	// External symbols (called functions/globals this unit does not
	// define) get an undefined (SHN_UNDEF) entry the linker resolves.
	ensureExternal := func(name string) uint32 {
		if idx, ok := symIndex[name]; ok {
			return idx
		}
		return addSym(name, 0, 0, stbGlobal<<4|sttNotype, 0)
	}

	for _, fn := range obj.Functions {
		base := funcOffset[fn.Name]
		for _, rel := range fn.Relocs {
			var idx uint32
			if _, ok := funcOffset[rel.Symbol]; ok {
				idx = symIndex[rel.Symbol]
			} else if _, ok := globalOffset[rel.Symbol]; ok {
				idx = symIndex[rel.Symbol]
			} else if _, ok := rodataOffset[rel.Symbol]; ok {
				idx = symIndex[rel.Symbol]
			} else {
				idx = ensureExternal(rel.Symbol)
			}
			typ := uint32(rX8664PC32)
			if rel.Kind == emitter.RelAbs64 {
				typ = rX8664_64
			}
			relocs = append(relocs, struct {
				offset uint64
				symIdx uint32
				typ    uint32
				addend int64
			}{offset: uint64(base + rel.Offset), symIdx: idx, typ: typ, addend: rel.Addend})
		}
	}

	for name := range symIndex {
		strtab.add(name)
	}

	var symtabBuf bytes.Buffer
	binary.Write(&symtabBuf, binary.LittleEndian, elf64Sym{}) // null symbol
	for _, s := range syms {
		binary.Write(&symtabBuf, binary.LittleEndian, elf64Sym{
			Name:  strtab.offsets[s.name],
			Info:  s.info,
			Other: 0,
			Shndx: s.shndx,
			Value: s.value,
			Size:  s.size,
		})
	}

	var relaBuf bytes.Buffer
	for _, r := range relocs {
		binary.Write(&relaBuf, binary.LittleEndian, elf64Rela{
			Offset: r.offset,
			Info:   uint64(r.symIdx)<<32 | uint64(r.typ),
			Addend: r.addend,
		})
	}

	shstrtab := newStrtab()
	sections := make([]sectionBuf, secCount)
	sections[secNull] = sectionBuf{name: ""}
	sections[secText] = sectionBuf{name: ".text", typ: shtProgbits, flags: shfAlloc | shfExecinstr, data: text.Bytes(), align: 16}
	sections[secData] = sectionBuf{name: ".data", typ: shtProgbits, flags: shfAlloc | shfWrite, data: data.Bytes(), align: 8}
	sections[secBss] = sectionBuf{name: ".bss", typ: shtNobits, flags: shfAlloc | shfWrite, data: make([]byte, bssSize), align: 8}
	sections[secRodata] = sectionBuf{name: ".rodata", typ: shtProgbits, flags: shfAlloc, data: rodata.Bytes(), align: 1}
	sections[secSymtab] = sectionBuf{name: ".symtab", typ: shtSymtab, data: symtabBuf.Bytes(), link: secStrtab, info: uint32(len(syms) + 1), entsize: 24, align: 8}
	sections[secStrtab] = sectionBuf{name: ".strtab", typ: shtStrtab, data: strtab.bytes(), align: 1}
	sections[secRelaText] = sectionBuf{name: ".rela.text", typ: shtRela, flags: shfInfoLink, data: relaBuf.Bytes(), link: secSymtab, info: secText, entsize: 24, align: 8}
	for i := range sections {
		if i != secShstrtab {
			shstrtab.add(sections[i].name)
		}
	}
	shstrtab.add(".shstrtab")
	sections[secShstrtab] = sectionBuf{name: ".shstrtab", typ: shtStrtab, data: shstrtab.bytes(), align: 1}

	var out bytes.Buffer
	headerSize := 64
	shoff := int64(headerSize)
	// Section contents start right after the section header table.
	dataStart := shoff + int64(secCount)*64
	offsets := make([]int64, secCount)
	cur := dataStart
	for i, s := range sections {
		if i == secNull {
			continue
		}
		if s.align > 1 {
			cur = alignUp(cur, int64(s.align))
		}
		offsets[i] = cur
		if s.typ != shtNobits {
			cur += int64(len(s.data))
		}
	}

	hdr := elf64Ehdr{}
	copy(hdr.Ident[:], []byte{0x7f, 'E', 'L', 'F', elfClass64, elfData2LSB, evCurrent, elfOsabiSysV})
	hdr.Type = etRel
	hdr.Machine = uint16(unix.EM_X86_64)
	hdr.Version = evCurrent
	hdr.Shoff = uint64(shoff)
	hdr.Ehsize = uint16(headerSize)
	hdr.Shentsize = 64
	hdr.Shnum = uint16(secCount)
	hdr.Shstrndx = secShstrtab

	binary.Write(&out, binary.LittleEndian, hdr)

	for i, s := range sections {
		sh := elf64Shdr{
			Name:    shstrtab.offsets[s.name],
			Type:    s.typ,
			Flags:   s.flags,
			Offset:  uint64(offsets[i]),
			Size:    uint64(len(s.data)),
			Link:    s.link,
			Info:    s.info,
			Addralign: s.align,
			Entsize: s.entsize,
		}
		if s.typ == shtNobits {
			sh.Size = uint64(bssSize)
		}
		if i == secNull {
			sh = elf64Shdr{}
		}
		binary.Write(&out, binary.LittleEndian, sh)
	}

	for i, s := range sections {
		if i == secNull || s.typ == shtNobits {
			continue
		}
		for int64(out.Len()) < offsets[i] {
			out.WriteByte(0)
		}
		out.Write(s.data)
	}

	return out.Bytes(), nil
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

type elf64Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type elf64Sym struct {
	Name  uint32
	Info  byte
	Other byte
	Shndx uint16
	Value uint64
	Size  uint64
}

type elf64Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

// strtab accumulates a null-separated string table and each string's
// byte offset within it, the same shape both .strtab and .shstrtab need.
type strtab struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStrtab() *strtab {
	t := &strtab{offsets: map[string]uint32{}}
	t.buf.WriteByte(0) // offset 0 is always the empty string
	return t
}

func (t *strtab) add(s string) uint32 {
	if s == "" {
		return 0
	}
	if ofs, ok := t.offsets[s]; ok {
		return ofs
	}
	ofs := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	t.offsets[s] = ofs
	return ofs
}

func (t *strtab) bytes() []byte { return t.buf.Bytes() }
