package types

import (
	"testing"

	"github.com/cppc-project/cppc/pkg/intern"
)

func sizeAlignFixture(reg *Registry) (func(Index) (int, int), func(Index) (int, int)) {
	sizeOf := func(i Index) (int, int) {
		d := reg.At(i)
		return d.SizeBits, d.AlignBits
	}
	alignOf := func(i Index) (int, int) {
		d := reg.At(i)
		return d.SizeBits, d.AlignBits
	}
	return sizeOf, alignOf
}

// TestStructSizeInvariant checks : sizeof(S) >= sum(sizeof(member_i))
// and sizeof(S) % alignof(S) == 0.
func TestStructSizeInvariant(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	intDesc := reg.Builtin(Int)
	charDesc := reg.Builtin(Char)

	sd := reg.AddStruct(strs.Intern("S"))
	sd.Struct.Members = []Member{
		{Name: strs.Intern("a"), TypeIndex: intDesc.Index, Kind: Int},
		{Name: strs.Intern("b"), TypeIndex: charDesc.Index, Kind: Char},
	}
	sizeOf, alignOf := sizeAlignFixture(reg)
	reg.SetStructLayout(sd.Index, sizeOf, alignOf)

	sumMembers := intDesc.SizeBits + charDesc.SizeBits
	if sd.Struct.SizeBits() < sumMembers {
		t.Fatalf("sizeof(S)=%d < sum(member sizes)=%d", sd.Struct.SizeBits(), sumMembers)
	}
	if sd.Struct.SizeBits()%sd.Struct.AlignBits() != 0 {
		t.Fatalf("sizeof(S)=%d not a multiple of alignof(S)=%d", sd.Struct.SizeBits(), sd.Struct.AlignBits())
	}
}

// TestNestedUnionOffsetZero grounds original_source's
// tests/test_nested_union_ret0.cpp: every member of a union sits at
// offset zero and the union is sized to the max of its own members; as
// a struct member it sits at the struct's current offset aligned up to
// the union's alignment.
func TestNestedUnionOffsetZero(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	intDesc := reg.Builtin(Int)
	charDesc := reg.Builtin(Char)

	union := reg.AddStruct(strs.Intern("U"))
	union.Struct.IsUnion = true
	union.Struct.Members = []Member{
		{Name: strs.Intern("i"), TypeIndex: intDesc.Index, Kind: Int},
		{Name: strs.Intern("c"), TypeIndex: charDesc.Index, Kind: Char},
	}
	sizeOf, alignOf := sizeAlignFixture(reg)
	reg.SetStructLayout(union.Index, sizeOf, alignOf)
	if union.Struct.SizeBits() != 32 {
		t.Fatalf("union size = %d, want 32 (max member)", union.Struct.SizeBits())
	}
	for _, m := range union.Struct.Members {
		if m.OffsetBits != 0 {
			t.Fatalf("union member offset = %d, want 0", m.OffsetBits)
		}
	}

	outer := reg.AddStruct(strs.Intern("Outer"))
	outer.Struct.Members = []Member{
		{Name: strs.Intern("lead"), TypeIndex: charDesc.Index, Kind: Char},
		{Name: strs.Intern("u"), TypeIndex: union.Index, Kind: Struct},
	}
	reg.SetStructLayout(outer.Index, sizeOf, alignOf)
	if outer.Struct.Members[1].OffsetBits != 32 {
		t.Fatalf("union member offset = %d, want 32 (after align padding for char->int)", outer.Struct.Members[1].OffsetBits)
	}
}

func TestTemplateInstantiationMemoized(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	base := strs.Intern("Vector")
	args := []TemplateArgument{{Kind: NonTypeArg, IntValue: 7}}

	d1, k1 := reg.RecordTemplateInstantiation(base, args)
	d2, k2 := reg.RecordTemplateInstantiation(base, args)
	if d1 != d2 {
		t.Fatalf("instantiating the same key twice produced different descriptor pointers")
	}
	if k1 != k2 {
		t.Fatalf("mangled keys differ for equal argument tuples: %q vs %q", k1, k2)
	}
}

func TestBitfieldPacking(t *testing.T) {
	strs := intern.NewTable()
	reg := NewRegistry(strs)
	sd := reg.AddStruct(strs.Intern("Flags"))
	sd.Struct.Members = []Member{
		{Name: strs.Intern("a"), IsBitfield: true, BitfieldWidth: 3},
		{Name: strs.Intern("b"), IsBitfield: true, BitfieldWidth: 3},
		{Name: strs.Intern("c"), IsBitfield: true, BitfieldWidth: 30}, // spills into next unit
	}
	sizeOf, alignOf := sizeAlignFixture(reg)
	reg.SetStructLayout(sd.Index, sizeOf, alignOf)

	if sd.Struct.Members[0].OffsetBits != 0 || sd.Struct.Members[0].BitfieldOffset != 0 {
		t.Fatalf("first bitfield misplaced: %+v", sd.Struct.Members[0])
	}
	if sd.Struct.Members[1].BitfieldOffset != 3 {
		t.Fatalf("second bitfield should share the storage unit at bit 3, got %d", sd.Struct.Members[1].BitfieldOffset)
	}
	if sd.Struct.Members[2].OffsetBits != 32 {
		t.Fatalf("third bitfield should start a new 32-bit storage unit, got offset %d", sd.Struct.Members[2].OffsetBits)
	}
}
