package parser

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
)

// declFlags collects the decl-specifier keywords the unified
// declarator routine consumes before the type-specifier proper.
type declFlags struct {
	isStatic, isExtern                       bool
	isConstexpr, isConsteval, isConstinit     bool
	isInline, isVirtual, isExplicit, isFriend bool
}

func (p *Parser) parseDeclSpecifierFlags() declFlags {
	var f declFlags
	for {
		switch {
		case p.accept("static"):
			f.isStatic = true
		case p.accept("extern"):
			f.isExtern = true
		case p.accept("constexpr"):
			f.isConstexpr = true
		case p.accept("consteval"):
			f.isConsteval = true
		case p.accept("constinit"):
			f.isConstinit = true
		case p.accept("inline"):
			f.isInline = true
		case p.accept("virtual"):
			f.isVirtual = true
		case p.accept("explicit"):
			f.isExplicit = true
		case p.accept("friend"):
			f.isFriend = true
		case p.accept("mutable"):
			// block-scope irrelevant; only meaningful on members, kept
			// as a no-op flag since ast.VarDecl has no Mutable field.
		default:
			return f
		}
	}
}

// parseDeclaratorDecl is the unified declarator routine's top-level/
// namespace-scope entry point: it covers plain
// variables, free functions, out-of-line member definitions
// (`Class::method`), out-of-line constructors/destructors, and
// out-of-line operator overloads, dispatching to parseFuncTail once
// the declared name (and any `Class::` qualifier) is known.
func (p *Parser) parseDeclaratorDecl() ast.Decl {
	flags := p.parseDeclSpecifierFlags()

	// Out-of-line destructor: `Class::~Name(...)`.
	if p.isIdent() && p.peekIs(1, "::") && p.peekIs(2, "~") {
		class := p.substitutedName(p.expectIdent())
		p.next() // '::'
		p.next() // '~'
		p.expectIdent()
		return p.parseFuncTail(flags, "", class, &ast.TypeSpec{Name: "void"}, true, false)
	}

	// Out-of-line constructor: `Class::Class(...)`.
	if p.isIdent() && p.peekIs(1, "::") {
		name := p.cur().Literal
		if p.peek(2).Literal == name && p.peekIs(3, "(") {
			class := p.substitutedName(p.expectIdent())
			p.next() // '::'
			p.expectIdent()
			return p.parseFuncTail(flags, class, class, &ast.TypeSpec{Name: "void"}, false, true)
		}
	}

	// Out-of-line conversion operator: `Class::operator Type() ...`.
	if p.isIdent() && p.peekIs(1, "::") && p.peekIs(2, "operator") {
		class := p.substitutedName(p.expectIdent())
		p.next() // '::'
		return p.parseOperatorTail(flags, class)
	}

	ts := p.parseTypeSpec()

	// Free/member operator overload with an explicit return type:
	// `Complex operator+(...)`.
	if p.is("operator") {
		return p.parseOperatorTailRet(flags, "", ts)
	}

	return p.parseVarOrFuncDecl(flags, ts)
}

// parseVarOrFuncDecl parses the declarator suffix following a parsed
// base type: pointer/reference, name (possibly `Class::method`
// qualified), and then either array dims + initializer (a variable) or
// a parameter list (a function), matching 's "single
// routine... covering simple vars [and] functions".
func (p *Parser) parseVarOrFuncDecl(flags declFlags, ts *ast.TypeSpec) ast.Decl {
	mod := *ts
	for p.is("*") {
		p.next()
		mod.PointerDepth++
		c, v := p.acceptCV()
		mod.Const = append(mod.Const, c)
		mod.Volatile = append(mod.Volatile, v)
	}
	switch {
	case p.is("&&"):
		p.next()
		mod.Ref = ast.RValueRefKind
	case p.is("&"):
		p.next()
		mod.Ref = ast.LValueRefKind
	}

	// Structured binding: `auto [a, b] = expr;`.
	if p.is("[") && ts.Name == "auto" {
		return p.parseStructuredBinding(flags, &mod)
	}

	name := p.substitutedName(p.expectIdent())
	qualifier := ""
	if p.is("::") {
		qualifier = name
		p.next()
		name = p.substitutedName(p.expectIdent())
	}

	if p.is("(") && p.looksLikeParamList() {
		return p.parseFuncTail(flags, name, qualifier, &mod, false, false)
	}

	// Most-vexing-parse family: `T x(args);` with a parenthesized
	// initializer list that does not look like a parameter list is a
	// direct-initialization, not a function declaration.
	mod.ArrayDims = append(mod.ArrayDims, p.parseArrayDims()...)
	decl := &ast.VarDecl{
		Name: name, Type: &mod,
		IsStatic: flags.isStatic, IsExtern: flags.isExtern,
		IsConstexpr: flags.isConstexpr, IsConstinit: flags.isConstinit,
	}
	if p.is("(") {
		args := p.parseArgList()
		decl.Init = &ast.ConstructorCallExpr{Type: &mod, Args: args}
	} else if p.accept("=") {
		decl.Init = p.parseAssignExpr()
	} else if p.is("{") {
		p.next()
		args := p.parseArgListBody()
		p.expect("}")
		decl.Init = &ast.ConstructorCallExpr{Type: &mod, Args: args, Brace: true}
	}
	p.expect(";")
	return decl
}

// looksLikeParamList peeks past the current `(` to decide whether its
// contents are a parameter-list (typed parameters) or an argument list
// (a direct-initialization call) — disambiguation table
// item 1. An empty `()` is always a function declarator in C++.
func (p *Parser) looksLikeParamList() bool {
	if p.peekIs(1, ")") {
		return true
	}
	lit := p.peek(1).Literal
	if lit == "const" || lit == "volatile" {
		lit = p.peek(2).Literal
	}
	if isBuiltinTypeToken(lit) {
		return true
	}
	if p.peek(1).Literal == "void" && p.peekIs(2, ")") {
		return true
	}
	if p.peek(1).Kind == lexer.Identifier && p.knownTypes[p.substitutedName(p.peek(1).Literal)] {
		return true
	}
	return false
}

func (p *Parser) parseStructuredBinding(flags declFlags, ts *ast.TypeSpec) ast.Decl {
	p.expect("[")
	var names []string
	for !p.is("]") && !p.atEOF() {
		names = append(names, p.expectIdent())
		if !p.accept(",") {
			break
		}
	}
	p.expect("]")
	decl := &ast.VarDecl{
		Type: ts, StructuredBinding: names, BindingByRef: ts.Ref != ast.NoRefKind,
		IsConstexpr: flags.isConstexpr,
	}
	if p.accept("=") {
		decl.Init = p.parseAssignExpr()
	}
	p.expect(";")
	return decl
}

// parseParamList parses a function declarator's `(params...)`,
// reporting variadic `...` and rewriting any `auto` parameter into a
// synthetic type parameter ("abbreviated templates":
// "a function with an auto parameter is rewritten into a function
// template with synthetic type params _T0, _T1, ...").
func (p *Parser) parseParamList() (params []ast.Param, variadic bool, synthetic []string) {
	p.expect("(")
	if p.is("void") && p.peekIs(1, ")") {
		p.next()
		p.next()
		return nil, false, nil
	}
	for !p.is(")") && !p.atEOF() {
		if p.accept("...") {
			variadic = true
			break
		}
		ts := p.parseTypeSpec()
		if ts.Name == "auto" {
			synName := "_T" + itoa(len(synthetic))
			synthetic = append(synthetic, synName)
			ts = &ast.TypeSpec{Name: synName, PointerDepth: ts.PointerDepth, Ref: ts.Ref, Const: ts.Const, Volatile: ts.Volatile}
		}
		name := ""
		for p.is("*") {
			p.next()
			ts.PointerDepth++
			c, v := p.acceptCV()
			ts.Const = append(ts.Const, c)
			ts.Volatile = append(ts.Volatile, v)
		}
		switch {
		case p.is("&&"):
			p.next()
			ts.Ref = ast.RValueRefKind
		case p.is("&"):
			p.next()
			ts.Ref = ast.LValueRefKind
		}
		if p.isIdent() {
			name = p.substitutedName(p.expectIdent())
		}
		ts.ArrayDims = append(ts.ArrayDims, p.parseArrayDims()...)
		if p.accept("=") {
			p.parseAssignExpr() // default argument value, not modeled by ast.Param
		}
		params = append(params, ast.Param{Name: name, Type: ts})
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return params, variadic, synthetic
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// parseFuncTail parses the parameter list, trailing qualifiers, and
// body/`;` for a function whose name (and Class:: qualifier, for
// out-of-line definitions) is already known, producing a FunctionDecl
// covering plain functions, constructors (with member-init lists), and
// destructors.
func (p *Parser) parseFuncTail(flags declFlags, nameOrCtor, qualifier string, ret *ast.TypeSpec, isDtor, isCtor bool) *ast.FunctionDecl {
	params, variadic, synthetic := p.parseParamList()
	fn := &ast.FunctionDecl{
		Name: nameOrCtor, Qualifier: qualifier, ReturnType: ret,
		Params: params, Variadic: variadic,
		IsConstexpr: flags.isConstexpr, IsConsteval: flags.isConsteval,
		IsInline: flags.isInline, IsStatic: flags.isStatic,
		IsVirtual: flags.isVirtual,
		IsConstructor: isCtor, IsDestructor: isDtor,
	}
	if len(synthetic) > 0 {
		fn.IsAbbreviated = true
		fn.SyntheticTypeParams = synthetic
	}
	p.parseTrailingFuncQualifiers(fn)
	if isCtor && p.accept(":") {
		fn.MemberInits = p.parseMemberInitList()
	}
	switch {
	case p.is("{"):
		fn.Body = p.parseBlock()
	case p.accept("="):
		p.accept("default")
		if !p.is(";") {
			p.accept("delete")
		}
		p.expect(";")
	default:
		p.expect(";")
	}
	return fn
}

func (p *Parser) parseTrailingFuncQualifiers(fn *ast.FunctionDecl) {
	for {
		switch {
		case p.accept("const"):
			fn.IsConst = true
		case p.accept("volatile"):
			fn.IsVolatile = true
		case p.accept("override"):
			fn.IsOverride = true
		case p.accept("final"):
			fn.IsFinal = true
		case p.accept("noexcept"):
			if p.accept("(") {
				p.parseExpr()
				p.expect(")")
			}
		case p.is("->"):
			p.next()
			fn.ReturnType = p.parseTypeSpec()
		default:
			return
		}
	}
}

func (p *Parser) parseMemberInitList() []ast.MemberInit {
	var inits []ast.MemberInit
	for {
		name := p.expectIdent()
		var args []ast.Expr
		if p.accept("(") {
			args = p.parseArgListBody()
			p.expect(")")
		} else if p.accept("{") {
			args = p.parseArgListBody()
			p.expect("}")
		}
		inits = append(inits, ast.MemberInit{Member: name, Args: args})
		if !p.accept(",") {
			break
		}
	}
	return inits
}

// parseOperatorTail parses `operator <name-or-type> (params) ...` when
// no explicit return type preceded `operator` (a conversion operator,
// or an out-of-line qualified operator where the return type was
// already consumed before the `Class::` qualifier was recognized).
func (p *Parser) parseOperatorTail(flags declFlags, qualifier string) *ast.FunctionDecl {
	return p.parseOperatorCommon(flags, qualifier, nil)
}

func (p *Parser) parseOperatorTailRet(flags declFlags, qualifier string, ret *ast.TypeSpec) *ast.FunctionDecl {
	return p.parseOperatorCommon(flags, qualifier, ret)
}

var operatorSymbols = []string{
	"<=>", "->*", "...", "<<=", ">>=", "==", "!=", "<=", ">=", "&&", "||",
	"<<", ">>", "++", "--", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"->", "()", "[]", "+", "-", "*", "/", "%", "<", ">", "=", "!", "~",
	"&", "|", "^",
}

// parseOperatorCommon parses the operator name after the `operator`
// keyword: a symbol (`+`, `[]`, `()`, ...), `new`/`new[]`/`delete`/
// `delete[]`, a user-defined-literal suffix (`""suffix`), or (when ret
// is nil) a conversion-operator target type.
func (p *Parser) parseOperatorCommon(flags declFlags, qualifier string, ret *ast.TypeSpec) *ast.FunctionDecl {
	p.expect("operator")
	opName := ""
	switch {
	case p.cur().Kind == lexer.StringLiteral && len(p.cur().Literal) >= 2 && p.cur().Literal[:2] == "\"\"":
		// operator""suffix: the lexer folds the UDL suffix into the
		// same string-literal token (pkg/lexer/lexer.go scanString).
		opName = "\"\"" + p.cur().Literal[2:]
		p.next()
	case p.is("new"):
		p.next()
		opName = "new"
		if p.accept("[") {
			p.expect("]")
			opName = "new[]"
		}
	case p.is("delete"):
		p.next()
		opName = "delete"
		if p.accept("[") {
			p.expect("]")
			opName = "delete[]"
		}
	case p.is("(") && p.peekIs(1, ")"):
		p.next()
		p.next()
		opName = "()"
	case p.is("[") && p.peekIs(1, "]"):
		p.next()
		p.next()
		opName = "[]"
	default:
		matched := false
		for _, sym := range operatorSymbols {
			if p.is(sym) {
				p.next()
				opName = sym
				matched = true
				break
			}
		}
		if !matched && ret == nil {
			// Conversion operator: `operator Type()`.
			ret = p.parseTypeSpec()
			opName = ret.Name
		}
	}
	if ret == nil {
		ret = &ast.TypeSpec{Name: "void"}
	}
	fn := p.parseFuncTail(flags, "operator"+opName, qualifier, ret, false, false)
	fn.OperatorName = opName
	return fn
}
