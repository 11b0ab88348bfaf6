// Package types implements the Type Registry: the global,
// process-wide table of type descriptors keyed by interned name, owning
// struct/enum layouts and template-instantiation placeholders.
//
// The sum-type shape (and its "one descriptor per interface value, no
// runtime polymorphism on nodes" design) is grounded on
// pkg/ctypes/types.go's Type interface in the reference compiler, generalized
// from C's flat type system to C++'s pointer/reference/CV/template
// surface.
package types

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/intern"
)

// BaseKind enumerates the fundamental shape of a type descriptor.
type BaseKind int

const (
	Void BaseKind = iota
	Bool
	Char
	Short
	Int
	Long
	LongLong
	UChar
	UShort
	UInt
	ULong
	ULongLong
	Float
	Double
	LongDouble
	Struct
	Enum
	UserDefined
	FunctionPointer
	MemberFunctionPointer
	MemberObjectPointer
	Nullptr
	Auto
)

func (k BaseKind) String() string {
	names := [...]string{
		"void", "bool", "char", "short", "int", "long", "long long",
		"unsigned char", "unsigned short", "unsigned int", "unsigned long",
		"unsigned long long", "float", "double", "long double",
		"struct", "enum", "user-defined", "function-pointer",
		"member-function-pointer", "member-object-pointer", "nullptr_t", "auto",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// IsUnsigned reports whether k is one of the unsigned integer kinds.
func (k BaseKind) IsUnsigned() bool {
	switch k {
	case UChar, UShort, UInt, ULong, ULongLong, Bool:
		return true
	default:
		return false
	}
}

// IsInteger reports whether k is any integral kind (bool included, per
// C++'s integral-promotion rules).
func (k BaseKind) IsInteger() bool {
	switch k {
	case Bool, Char, Short, Int, Long, LongLong, UChar, UShort, UInt, ULong, ULongLong, Enum:
		return true
	default:
		return false
	}
}

// IsFloat reports whether k is a floating-point kind.
func (k BaseKind) IsFloat() bool {
	switch k {
	case Float, Double, LongDouble:
		return true
	default:
		return false
	}
}

// RefQualifier distinguishes a type's reference-ness.
type RefQualifier int

const (
	NoRef RefQualifier = iota
	LValueRef
	RValueRef
)

// CVQual is a bitmask of const/volatile, attached per pointer level.
type CVQual uint8

const (
	CVNone     CVQual = 0
	CVConst    CVQual = 1 << 0
	CVVolatile CVQual = 1 << 1
)

// Index identifies a Descriptor in the Registry's dense table. Index 0
// is never valid (reserved, mirroring intern.Handle's reserved zero).
type Index int32

// TemplateArgKind tags a TemplateArgument.
type TemplateArgKind int

const (
	TypeArg TemplateArgKind = iota
	NonTypeArg
	DependentArg
	TemplateTemplateArg // original_source/Parser_Templates_Params.cpp: template<template<class> class TT>
)

// TemplateArgument is one entry of a captured instantiation-argument
// vector.
type TemplateArgument struct {
	Kind TemplateArgKind

	// TypeArg
	BaseKind     BaseKind
	TypeIndex    Index
	PointerDepth int
	Ref          RefQualifier
	CV           CVQual
	IsPack       bool

	// NonTypeArg
	IntValue int64
	ValueTy  Index

	// DependentArg / TemplateTemplateArg
	Placeholder intern.Handle
}

// key returns a value suitable for hashing/equality of a template
// argument tuple: two equal tuples produce equal mangled names.
func (a TemplateArgument) key() string {
	switch a.Kind {
	case TypeArg:
		return fmt.Sprintf("T:%d:%d:%d:%d:%d:%v", a.BaseKind, a.TypeIndex, a.PointerDepth, a.Ref, a.CV, a.IsPack)
	case NonTypeArg:
		return fmt.Sprintf("N:%d:%d", a.IntValue, a.ValueTy)
	case TemplateTemplateArg:
		return fmt.Sprintf("TT:%d", a.Placeholder)
	default:
		return fmt.Sprintf("D:%d", a.Placeholder)
	}
}

// Member is one struct/class data member.
type Member struct {
	Name            intern.Handle
	Kind            BaseKind
	TypeIndex       Index
	SizeBits        int
	AlignBits       int
	Access          Access
	DefaultInit     any // *ast expression node, type-erased: pkg/types must not import pkg/ast
	PointerDepth    int
	BitfieldWidth   int // 0 means "not a bitfield"
	IsBitfield      bool
	Ref             RefQualifier
	OffsetBits      int // filled in by Finalize
	BitfieldOffset  int // bit offset within the storage unit, filled in by Finalize
}

// Access is a member/base-class accessibility.
type Access int

const (
	Public Access = iota
	Protected
	Private
)

// BaseClassRef is one entry of a struct's ordered base-class list.
type BaseClassRef struct {
	Name      intern.Handle
	TypeIndex Index // 0 if Deferred
	Access    Access
	Virtual   bool
	Deferred  bool // base names a template parameter not yet substituted
}

// MethodInfo is one entry of a struct's member-function list.
type MethodInfo struct {
	Name     intern.Handle
	Decl     any // *ast.FunctionDecl, type-erased
	Const    bool
	Volatile bool
	Virtual  bool
	Override bool
	Final    bool
	VTableSlot int // -1 if not virtual
}

// StructLayout is the full shape of a struct/class/union.
type StructLayout struct {
	Members       []Member
	Bases         []BaseClassRef
	StaticMembers []Member
	Methods       []MethodInfo
	VTable        []MethodInfo // concatenation of inherited (overridden in place) + new virtual slots
	IsUnion       bool
	PackBytes     int // 0 means natural alignment; #pragma pack(N)

	finalized   bool
	sizeBits    int
	alignBits   int
}

// SizeBits returns the struct's total size once finalized.
func (s *StructLayout) SizeBits() int { return s.sizeBits }

// AlignBits returns the struct's alignment once finalized.
func (s *StructLayout) AlignBits() int { return s.alignBits }

// Finalized reports whether Finalize has already run.
func (s *StructLayout) Finalized() bool { return s.finalized }

// HasDeferredBases reports whether any base class is still a template
// parameter placeholder.
func (s *StructLayout) HasDeferredBases() bool {
	for _, b := range s.Bases {
		if b.Deferred {
			return true
		}
	}
	return false
}

// Finalize computes sequential member offsets with alignment padding
// (struct) or offset-zero for every member (union), honoring PackBytes.
// Once finalized, total size, alignment, and member offsets are
// immutable. Calling Finalize twice is a no-op:
// the invariant is enforced by never recomputing, not by panicking, so
// callers that finalize eagerly and again after a deferred base
// resolves can simply call it unconditionally
// once bases are concrete.
func (s *StructLayout) Finalize(sizeOf, alignOf func(Index) (int, int)) {
	if s.finalized {
		return
	}
	if s.IsUnion {
		s.finalizeUnion(sizeOf, alignOf)
	} else {
		s.finalizeStruct(sizeOf, alignOf)
	}
	s.finalized = true
}

func (s *StructLayout) finalizeStruct(sizeOf, alignOf func(Index) (int, int)) {
	offsetBits := 0
	maxAlign := 8 // bits; minimum byte alignment
	// Base subobjects are laid out before derived members, supporting
	// deep and multiple inheritance.
	for i := range s.Bases {
		b := &s.Bases[i]
		if b.Deferred {
			continue
		}
		bSize, bAlign := sizeOf(b.TypeIndex)
		bAlign = clampPack(bAlign, s.PackBytes)
		offsetBits = alignUp(offsetBits, bAlign)
		if bAlign > maxAlign {
			maxAlign = bAlign
		}
		offsetBits += bSize
	}
	for i := range s.Members {
		m := &s.Members[i]
		if m.IsBitfield {
			offsetBits = s.placeBitfield(m, offsetBits)
			continue
		}
		size, align := memberSizeAlign(m, sizeOf, alignOf)
		align = clampPack(align, s.PackBytes)
		offsetBits = alignUp(offsetBits, align)
		m.OffsetBits = offsetBits
		if align > maxAlign {
			maxAlign = align
		}
		offsetBits += size
	}
	offsetBits = alignUp(offsetBits, maxAlign)
	s.sizeBits = offsetBits
	s.alignBits = maxAlign
}

// placeBitfield packs consecutive bitfields into shared storage units
// the way a typical C++ ABI does: a bitfield starts a new storage unit
// only if it doesn't fit in the current one. Returns the new running
// offset, in bits, after placing m.
func (s *StructLayout) placeBitfield(m *Member, offsetBits int) int {
	const unitBits = 32 // storage unit width for bitfield packing
	unitStart := (offsetBits / unitBits) * unitBits
	bitInUnit := offsetBits - unitStart
	if bitInUnit+m.BitfieldWidth > unitBits {
		unitStart += unitBits
		bitInUnit = 0
	}
	m.OffsetBits = unitStart
	m.BitfieldOffset = bitInUnit
	return unitStart + bitInUnit + m.BitfieldWidth
}

func (s *StructLayout) finalizeUnion(sizeOf, alignOf func(Index) (int, int)) {
	maxSize, maxAlign := 0, 8
	for i := range s.Members {
		m := &s.Members[i]
		m.OffsetBits = 0
		if m.IsBitfield {
			if m.BitfieldWidth > maxSize {
				maxSize = m.BitfieldWidth
			}
			continue
		}
		size, align := memberSizeAlign(m, sizeOf, alignOf)
		if size > maxSize {
			maxSize = size
		}
		if align > maxAlign {
			maxAlign = align
		}
	}
	s.sizeBits = alignUp(maxSize, maxAlign)
	s.alignBits = maxAlign
}

func memberSizeAlign(m *Member, sizeOf, alignOf func(Index) (int, int)) (int, int) {
	if m.PointerDepth > 0 || m.Ref != NoRef {
		return 64, 64 // pointer/reference width on x86-64
	}
	size, _ := sizeOf(m.TypeIndex)
	_, align := alignOf(m.TypeIndex)
	return size, align
}

func alignUp(offset, align int) int {
	if align <= 0 {
		return offset
	}
	return (offset + align - 1) / align * align
}

func clampPack(align, packBytes int) int {
	if packBytes <= 0 {
		return align
	}
	packBits := packBytes * 8
	if align > packBits {
		return packBits
	}
	return align
}

// EnumConstant is one named value of an enum.
type EnumConstant struct {
	Name  intern.Handle
	Value int64
}

// EnumLayout is the underlying type and constant list of an enum.
type EnumLayout struct {
	Underlying BaseKind
	Constants  []EnumConstant
	IsScoped   bool // `enum class`
}

// InstantiationRecord marks a descriptor as a materialized template
// instantiation, carrying the base template name and the exact argument
// vector used, stored verbatim.
type InstantiationRecord struct {
	BaseTemplate intern.Handle
	Args         []TemplateArgument
}

// Descriptor is the Type Registry's per-type record (Type
// descriptor). Once returned by the registry its address never changes
//: the registry
// stores *Descriptor in a slice of pointers, never moves or frees one.
type Descriptor struct {
	Index        Index
	Name         intern.Handle
	Kind         BaseKind
	SizeBits     int
	AlignBits    int
	PointerDepth int
	PointerCV    []CVQual // len == PointerDepth; CV per indirection level
	Ref          RefQualifier
	ArrayDims    []int // outer to inner; 0 means "incomplete" ([])

	Struct *StructLayout
	Enum   *EnumLayout
	Inst   *InstantiationRecord
}

// QualifiedName returns the interned name's text.
func (d *Descriptor) QualifiedName(strs *intern.Table) string { return strs.View(d.Name) }

// Registry is the Type Registry: a dense vector of
// pinned descriptors plus a sparse name->descriptor map.
type Registry struct {
	strs    *intern.Table
	byIndex []*Descriptor // index 0 unused
	byName  map[intern.Handle]*Descriptor
	// builtins caches the singleton descriptor for each fundamental kind
	// so AddBuiltin never creates two descriptors for "int".
	builtins map[BaseKind]*Descriptor
}

// NewRegistry returns an empty registry and pre-populates the
// fundamental-type singletons (invariant: "for any two
// handles returning equal qualified names, the descriptor is unique").
func NewRegistry(strs *intern.Table) *Registry {
	r := &Registry{
		strs:     strs,
		byIndex:  make([]*Descriptor, 1, 64), // index 0 reserved
		byName:   make(map[intern.Handle]*Descriptor),
		builtins: make(map[BaseKind]*Descriptor),
	}
	for kind, bits := range builtinSizes {
		r.AddBuiltin(kind, bits, bits)
	}
	return r
}

var builtinSizes = map[BaseKind]int{
	Void: 0, Bool: 8, Char: 8, Short: 16, Int: 32, Long: 64, LongLong: 64,
	UChar: 8, UShort: 16, UInt: 32, ULong: 64, ULongLong: 64,
	Float: 32, Double: 64, LongDouble: 128, Nullptr: 64, Auto: 0,
}

// AddBuiltin returns (creating on first call) the singleton descriptor
// for a fundamental kind.
func (r *Registry) AddBuiltin(kind BaseKind, sizeBits, alignBits int) *Descriptor {
	if d, ok := r.builtins[kind]; ok {
		return d
	}
	name := r.strs.Intern(kind.String())
	d := &Descriptor{Index: Index(len(r.byIndex)), Name: name, Kind: kind, SizeBits: sizeBits, AlignBits: alignBits}
	r.byIndex = append(r.byIndex, d)
	r.builtins[kind] = d
	r.byName[name] = d
	return d
}

// Builtin returns the pinned descriptor for a fundamental kind, which
// must already have been created by NewRegistry.
func (r *Registry) Builtin(kind BaseKind) *Descriptor { return r.builtins[kind] }

// AddStruct registers a new (initially unfinalized) struct/class
// descriptor under name, or returns the existing one — a forward
// reference from ("forward references register a
// placeholder descriptor that is completed on set_struct_layout").
func (r *Registry) AddStruct(name intern.Handle) *Descriptor {
	if d, ok := r.byName[name]; ok {
		return d
	}
	d := &Descriptor{Index: Index(len(r.byIndex)), Name: name, Kind: Struct, Struct: &StructLayout{}}
	r.byIndex = append(r.byIndex, d)
	r.byName[name] = d
	return d
}

// AddEnum registers a new enum descriptor under name, or returns the
// existing one.
func (r *Registry) AddEnum(name intern.Handle) *Descriptor {
	if d, ok := r.byName[name]; ok {
		return d
	}
	d := &Descriptor{Index: Index(len(r.byIndex)), Name: name, Kind: Enum, Enum: &EnumLayout{Underlying: Int}}
	r.byIndex = append(r.byIndex, d)
	r.byName[name] = d
	return d
}

// Find looks up a descriptor by its interned qualified name.
func (r *Registry) Find(name intern.Handle) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// At returns the descriptor pinned at a given index. Index 0 or an
// out-of-range index is an internal invariant violation.
func (r *Registry) At(i Index) *Descriptor {
	if i <= 0 || int(i) >= len(r.byIndex) {
		panic(fmt.Sprintf("types: index %d out of range", i))
	}
	return r.byIndex[i]
}

// SetStructLayout finalizes the struct at index using sizeOf/alignOf
// callbacks the caller supplies to resolve member type sizes (broken out
// so pkg/types need not itself recurse through every possible member
// type; the IR builder/template engine, which already walks the type
// graph, supplies the closure).
func (r *Registry) SetStructLayout(index Index, sizeOf, alignOf func(Index) (int, int)) {
	d := r.At(index)
	if d.Struct == nil {
		panic("types: SetStructLayout on a non-struct descriptor")
	}
	d.Struct.Finalize(sizeOf, alignOf)
	d.SizeBits = d.Struct.SizeBits()
	d.AlignBits = d.Struct.AlignBits()
}

// RecordTemplateInstantiation registers (or returns the existing)
// descriptor for base<args...>, along with its mangled-ready
// instantiation name. Re-instantiating the same key returns the already
// materialized descriptor (memoization keeps repeated instantiation
// requests idempotent).
func (r *Registry) RecordTemplateInstantiation(base intern.Handle, args []TemplateArgument) (*Descriptor, string) {
	key := instantiationKey(r.strs.View(base), args)
	name := r.strs.Intern(key)
	if d, ok := r.byName[name]; ok {
		return d, key
	}
	d := &Descriptor{
		Index: Index(len(r.byIndex)), Name: name, Kind: Struct,
		Struct: &StructLayout{},
		Inst:   &InstantiationRecord{BaseTemplate: base, Args: append([]TemplateArgument(nil), args...)},
	}
	r.byIndex = append(r.byIndex, d)
	r.byName[name] = d
	return d, key
}

// instantiationKey builds the hash-stable string requires:
// "For all template instantiation keys K1, K2: mangled(K1) == mangled(K2)
// ⇔ K1 == K2". A plain deterministic join of the value keys satisfies
// this without needing a real hash function.
func instantiationKey(base string, args []TemplateArgument) string {
	s := base + "<"
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += a.key()
	}
	return s + ">"
}

// PointerTo synthesizes (without registering) a descriptor describing
// "pointer to elem" by bumping PointerDepth; callers that need a stable,
// de-duplicated pointer-type descriptor should register it themselves
// via AddStruct-style memoization keyed on the resulting qualified name.
func PointerTo(elem *Descriptor, cv CVQual) Descriptor {
	cvs := append(append([]CVQual(nil), elem.PointerCV...), cv)
	return Descriptor{
		Name: elem.Name, Kind: elem.Kind, SizeBits: 64, AlignBits: 64,
		PointerDepth: elem.PointerDepth + 1, PointerCV: cvs, Ref: NoRef,
		Struct: elem.Struct, Enum: elem.Enum, Inst: elem.Inst,
	}
}
