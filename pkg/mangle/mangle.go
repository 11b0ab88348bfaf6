// Package mangle implements the Itanium (ELF) and MSVC (COFF) name
// mangling schemes. Every function and static member receives a
// mangled name; FunctionCall and FunctionAddress instructions carry the
// pre-mangled name so the emitter need only insert relocations. Both
// schemes are pure functions from a FunctionSig to a symbol-table
// string; neither touches pkg/types' Registry directly, keeping this a
// leaf package the emitter and pkg/irbuilder can both call without an
// import cycle.
package mangle

import "github.com/cppc-project/cppc/pkg/types"

// ParamType is the mangler's view of one parameter or return type: just
// enough of a types.Descriptor to encode a mangled name, independent of
// the full Registry.
type ParamType struct {
	Kind         types.BaseKind
	Name         string // unqualified name, for Struct/Enum/UserDefined
	PointerDepth int
	CV           types.CVQual // qualifiers on the innermost (pointee) type
	PtrCV        []types.CVQual
	Ref          types.RefQualifier
}

// FunctionSig names the function the mangler encodes.
type FunctionSig struct {
	Namespaces []string
	ClassName  string // empty for a free function
	Name       string
	Params     []ParamType
	Return     ParamType
	IsConst    bool // const-qualified member function
	IsStatic   bool
}

// Scheme selects a name-mangling ABI, per "Itanium (ELF) and
// MSVC (COFF) mangling schemes are both implemented."
type Scheme int

const (
	Itanium Scheme = iota
	MSVC
)

// Mangle encodes sig under the given scheme.
func Mangle(scheme Scheme, sig FunctionSig) string {
	switch scheme {
	case MSVC:
		return mangleMSVC(sig)
	default:
		return mangleItanium(sig)
	}
}
