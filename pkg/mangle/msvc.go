package mangle

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cppc-project/cppc/pkg/types"
)

// mangleMSVC implements the core of the MSVC x64 name-mangling grammar:
// function names must be acceptable to the platform linker and
// unwinder. Real `link.exe` mangled names use a compression table
// (`@0`-`@9`, `?$`) that
// back-references previously-seen names and types; this mangler always
// spells every component out in full. That keeps names longer than
// cl.exe's but still produces a unique, stable, demangler-legible name
// per distinct FunctionSig, which is the property the emitter and
// unwind-table generator depend on — documented here rather than
// silently assumed away, matching the equivalent note on Itanium's
// dropped substitution compression.
func mangleMSVC(sig FunctionSig) string {
	var b strings.Builder
	b.WriteByte('?')
	b.WriteString(sig.Name)
	b.WriteByte('@')

	if sig.ClassName != "" {
		b.WriteString(sig.ClassName)
		b.WriteByte('@')
		for i := len(sig.Namespaces) - 1; i >= 0; i-- {
			b.WriteString(sig.Namespaces[i])
			b.WriteByte('@')
		}
		b.WriteString("@")
		b.WriteString(msvcMemberQualifier(sig))
	} else {
		for i := len(sig.Namespaces) - 1; i >= 0; i-- {
			b.WriteString(sig.Namespaces[i])
			b.WriteByte('@')
		}
		b.WriteString("@YA") // free function, __cdecl
	}

	b.WriteString(msvcTypeCode(sig.Return))
	if len(sig.Params) == 0 {
		b.WriteString("XZ")
	} else {
		for _, p := range sig.Params {
			b.WriteString(msvcTypeCode(p))
		}
		b.WriteString("@Z")
	}
	return b.String()
}

// msvcMemberQualifier encodes the access/static/const bits MSVC packs
// immediately before the return-type code on a member function
// (simplified to public non-virtual: "QEAA" not-const, "QEBA" const;
// __cdecl ABI on x64 ("A" suffix) throughout).
func msvcMemberQualifier(sig FunctionSig) string {
	if sig.IsStatic {
		return "SAA"
	}
	if sig.IsConst {
		return "QEBA"
	}
	return "QEAA"
}

func msvcTypeCode(p ParamType) string {
	base := msvcBuiltinCode(p)
	if p.CV&types.CVConst != 0 && (p.Kind == types.Struct || p.Kind == types.Enum || p.Kind == types.UserDefined) {
		base = "$$C" + base
	}

	// Each pointer level wraps the previously-built inner code, innermost
	// first, mirroring the Itanium mangler's nesting order.
	for depth := 1; depth <= p.PointerDepth; depth++ {
		var cv types.CVQual
		if depth-1 < len(p.PtrCV) {
			cv = p.PtrCV[depth-1]
		}
		switch {
		case cv&types.CVConst != 0 && cv&types.CVVolatile != 0:
			base = "PEDD" + base
		case cv&types.CVConst != 0:
			base = "PEB" + base
		case cv&types.CVVolatile != 0:
			base = "PEC" + base
		default:
			base = "PEA" + base
		}
	}

	switch p.Ref {
	case types.LValueRef:
		base = "AEA" + base
	case types.RValueRef:
		base = "$$QEA" + base
	}
	return base
}

func msvcBuiltinCode(p ParamType) string {
	switch p.Kind {
	case types.Void:
		return "X"
	case types.Bool:
		return "_N"
	case types.Char:
		return "D"
	case types.Short:
		return "F"
	case types.Int:
		return "H"
	case types.Long:
		return "J"
	case types.LongLong:
		return "_J"
	case types.UChar:
		return "E"
	case types.UShort:
		return "G"
	case types.UInt:
		return "I"
	case types.ULong:
		return "K"
	case types.ULongLong:
		return "_K"
	case types.Float:
		return "M"
	case types.Double:
		return "N"
	case types.LongDouble:
		return "O"
	case types.Struct:
		return "U" + p.Name + "@@"
	case types.Enum:
		return "W4" + p.Name + "@@"
	case types.UserDefined:
		return "V" + p.Name + "@@"
	default:
		return "H"
	}
}

// TypeDescriptorSymbol returns the MSVC RTTI type-descriptor symbol for
// a class: a `??_R0…` descriptor is generated per unique exception type.
func TypeDescriptorSymbol(className string) string {
	return fmt.Sprintf("??_R0?AV%s@@@8", className)
}

// VtableSymbolMSVC returns the MSVC vtable symbol for a class.
func VtableSymbolMSVC(className string) string {
	return fmt.Sprintf("??_7%s@@6B@", className)
}

// StringLiteralSymbol returns the MSVC mangled symbol for an
// interned string literal's backing data (`??_C@` string
// literal symbols), encoding the literal as UTF-16LE when wide is set
// the way cl.exe stores wide-string literal data, via
// golang.org/x/text/encoding/unicode's UTF16 transformer (grounded on
// joshuapare-hivekit's use of the same package for UTF-16 hive value
// strings).
func StringLiteralSymbol(ordinal int, value string, wide bool) (string, []byte, error) {
	var data []byte
	if wide {
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		encoded, _, err := transform.Bytes(enc.NewEncoder(), []byte(value))
		if err != nil {
			return "", nil, fmt.Errorf("mangle: encoding wide string literal: %w", err)
		}
		data = append(encoded, 0, 0)
	} else {
		data = append([]byte(value), 0)
	}

	kind := "0"
	if wide {
		kind = "1"
	}
	sym := fmt.Sprintf("??_C@_%s%02X@%s@", kind, len(data), literalHashPlaceholder(ordinal))
	return sym, data, nil
}

// literalHashPlaceholder stands in for the CRC-derived disambiguation
// suffix cl.exe inserts between identical-length string literals; this
// compiler instead numbers literals by translation-unit order, which is
// sufficient for its own symbol-table uniqueness requirement even
// though it won't match cl.exe's own hash.
func literalHashPlaceholder(ordinal int) string {
	return fmt.Sprintf("L%d", ordinal)
}
