package mangle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cppc-project/cppc/pkg/types"
)

// mangleItanium implements the Itanium C++ ABI's core name-mangling
// grammar for ELF/x86-64 targets: function names and static-member names
// that round-trip through a real demangler for simple programs. The
// substitution-compression table (Itanium ABI §5.1.8, the "S_"
// back-references that keep real g++ output short) is intentionally not
// implemented — every name this mangler produces is still a valid,
// round-trippable Itanium name; it is just longer than g++'s for
// repeated types. Noted here rather than silently assumed away.
func mangleItanium(sig FunctionSig) string {
	var b strings.Builder
	b.WriteString("_Z")

	qualified := len(sig.Namespaces) > 0 || sig.ClassName != ""
	if qualified {
		b.WriteByte('N')
		if sig.IsConst {
			b.WriteByte('K')
		}
		for _, ns := range sig.Namespaces {
			writeItaniumSourceName(&b, ns)
		}
		if sig.ClassName != "" {
			writeItaniumSourceName(&b, sig.ClassName)
		}
		writeItaniumSourceName(&b, sig.Name)
		b.WriteByte('E')
	} else {
		writeItaniumSourceName(&b, sig.Name)
	}

	if len(sig.Params) == 0 {
		b.WriteByte('v')
	} else {
		for _, p := range sig.Params {
			b.WriteString(itaniumParamCode(p))
		}
	}

	return b.String()
}

func writeItaniumSourceName(b *strings.Builder, name string) {
	b.WriteString(strconv.Itoa(len(name)))
	b.WriteString(name)
}

// itaniumParamCode encodes one parameter type per the Itanium
// <builtin-type>/<pointer-type>/<class-enum-type> productions.
func itaniumParamCode(p ParamType) string {
	code := itaniumBuiltinCode(p)
	if p.CV&types.CVVolatile != 0 {
		code = "V" + code
	}
	if p.CV&types.CVConst != 0 {
		code = "K" + code
	}

	// Each pointer level wraps the previously-built inner type in
	// "P<qualifiers-of-the-pointee-at-this-level>", innermost first, so
	// "const int *" mangles as "PKi" (pointer to (const int)) rather than
	// "KPi".
	for depth := 1; depth <= p.PointerDepth; depth++ {
		var cv types.CVQual
		if depth-1 < len(p.PtrCV) {
			cv = p.PtrCV[depth-1]
		}
		qual := ""
		if cv&types.CVVolatile != 0 {
			qual = "V" + qual
		}
		if cv&types.CVConst != 0 {
			qual = "K" + qual
		}
		code = "P" + qual + code
	}

	switch p.Ref {
	case types.LValueRef:
		return "R" + code
	case types.RValueRef:
		return "O" + code
	default:
		return code
	}
}

func itaniumBuiltinCode(p ParamType) string {
	switch p.Kind {
	case types.Void:
		return "v"
	case types.Bool:
		return "b"
	case types.Char:
		return "c"
	case types.Short:
		return "s"
	case types.Int:
		return "i"
	case types.Long:
		return "l"
	case types.LongLong:
		return "x"
	case types.UChar:
		return "h"
	case types.UShort:
		return "t"
	case types.UInt:
		return "j"
	case types.ULong:
		return "m"
	case types.ULongLong:
		return "y"
	case types.Float:
		return "f"
	case types.Double:
		return "d"
	case types.LongDouble:
		return "e"
	case types.Struct, types.Enum, types.UserDefined:
		var b strings.Builder
		writeItaniumSourceName(&b, p.Name)
		return b.String()
	default:
		return fmt.Sprintf("u%d%s", len(p.Name), p.Name)
	}
}

// TypeinfoSymbol returns the Itanium RTTI typeinfo symbol (`_ZTI…`) for
// a class.
func TypeinfoSymbol(className string) string {
	var b strings.Builder
	b.WriteString("_ZTI")
	writeItaniumSourceName(&b, className)
	return b.String()
}

// VtableSymbol returns the Itanium vtable symbol (`_ZTV…`) for a class.
func VtableSymbol(className string) string {
	var b strings.Builder
	b.WriteString("_ZTV")
	writeItaniumSourceName(&b, className)
	return b.String()
}
