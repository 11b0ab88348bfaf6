package parser

import (
	"github.com/cppc-project/cppc/pkg/ast"
)

// acceptCV consumes cv-qualifiers wherever a decl-specifier-seq allows a
// cv-qualifier; order doesn't matter to this subset's semantics.
func (p *Parser) acceptCV() (isConst, isVolatile bool) {
	for {
		switch {
		case p.accept("const"):
			isConst = true
		case p.accept("volatile"):
			isVolatile = true
		default:
			return
		}
	}
}

// substitutedName returns name rewritten per the active template
// substitution bindings (step 4 re-entrant parsing with
// "substitution active"), or name unchanged outside that context.
func (p *Parser) substitutedName(name string) string {
	if p.substBindings == nil {
		return name
	}
	if repl, ok := p.substBindings[name]; ok {
		return repl
	}
	return name
}

// parseTypeSpec parses a full type-specifier: an optional leading
// cv-qualifier, the core type (builtin sequence, elaborated
// struct/class/union/enum name, `typename T::x` dependent name, or a
// plain/template-id type name), then any pointer declarators and a
// trailing reference ("unified declarator routine" covers
// the suffix that follows the name; the prefix here is the part every
// declarator shares).
func (p *Parser) parseTypeSpec() *ast.TypeSpec {
	ts := &ast.TypeSpec{}
	baseConst, baseVolatile := p.acceptCV()

	switch {
	case p.is("typename"):
		p.next()
		qualName := p.expectIdent()
		p.expect("::")
		ts.IsTypename = true
		ts.Qualifier = &ast.TypeSpec{Name: p.substitutedName(qualName)}
		ts.Name = p.expectIdent()

	case p.is("struct"), p.is("class"), p.is("union"):
		p.next()
		ts.Name = p.substitutedName(p.expectIdent())

	case p.is("enum"):
		p.next()
		p.accept("class")
		ts.Name = p.substitutedName(p.expectIdent())

	case isBuiltinTypeToken(p.cur().Literal):
		ts.Name = p.parseBuiltinTypeName()

	default:
		name := p.substitutedName(p.expectIdent())
		for p.is("::") {
			p.next()
			name = p.substitutedName(p.expectIdent())
		}
		ts.Name = name
		if p.is("<") && p.tryParseTemplateArgs(ts) {
			// ts.TemplateArgs populated in place.
		}
	}

	more1, more2 := p.acceptCV()
	baseConst = baseConst || more1
	baseVolatile = baseVolatile || more2
	constLevels := []bool{baseConst}
	volatileLevels := []bool{baseVolatile}

	for p.is("*") {
		p.next()
		ts.PointerDepth++
		c, v := p.acceptCV()
		constLevels = append(constLevels, c)
		volatileLevels = append(volatileLevels, v)
	}
	ts.Const = constLevels
	ts.Volatile = volatileLevels

	switch {
	case p.is("&&"):
		p.next()
		ts.Ref = ast.RValueRefKind
	case p.is("&"):
		p.next()
		ts.Ref = ast.LValueRefKind
	}

	return ts
}

func isBuiltinTypeToken(lit string) bool {
	switch lit {
	case "void", "bool", "char", "short", "int", "long", "unsigned", "signed",
		"float", "double", "wchar_t", "auto":
		return true
	default:
		return false
	}
}

// parseBuiltinTypeName consumes a run of builtin type keywords
// (`unsigned long long int`, `long double`, ...) and canonicalizes it
// the way the Type Registry's BaseKind names expect.
func (p *Parser) parseBuiltinTypeName() string {
	var words []string
	for isBuiltinTypeToken(p.cur().Literal) {
		words = append(words, p.next().Literal)
	}
	return canonicalBuiltinName(words)
}

func canonicalBuiltinName(words []string) string {
	has := map[string]int{}
	order := []string{}
	for _, w := range words {
		if has[w] == 0 {
			order = append(order, w)
		}
		has[w]++
	}
	switch {
	case has["auto"] > 0:
		return "auto"
	case has["void"] > 0:
		return "void"
	case has["bool"] > 0:
		return "bool"
	case has["double"] > 0:
		if has["long"] > 0 {
			return "long double"
		}
		return "double"
	case has["float"] > 0:
		return "float"
	case has["wchar_t"] > 0:
		return "wchar_t"
	case has["char"] > 0:
		if has["unsigned"] > 0 {
			return "unsigned char"
		}
		return "char"
	case has["long"] >= 2:
		if has["unsigned"] > 0 {
			return "unsigned long long"
		}
		return "long long"
	case has["long"] == 1:
		if has["unsigned"] > 0 {
			return "unsigned long"
		}
		return "long"
	case has["short"] > 0:
		if has["unsigned"] > 0 {
			return "unsigned short"
		}
		return "short"
	case has["unsigned"] > 0:
		return "unsigned int"
	default:
		return "int"
	}
}

// tryParseTemplateArgs attempts a speculative parse of `<Args...>`
// into ts.TemplateArgs, fully restoring the stream on failure: `<` vs.
// a template-argument-list is resolved by speculative parse with full
// restore on failure. Failed attempts are not memoized: a later attempt
// at the same position parses the argument list again.
func (p *Parser) tryParseTemplateArgs(ts *ast.TypeSpec) bool {
	save := p.s.Save()
	if args, ok := p.attemptTemplateArgList(); ok {
		ts.TemplateArgs = args
		return true
	}
	p.s.Restore(save)
	return false
}

// attemptTemplateArgList parses `< arg, arg, ... >` where each arg is
// either a type-id (represented as an *ast.Ident carrying the type
// name plus its own nested TemplateArgs, or an *ast.CastExpr{Kind:
// CStyleCast} carrier when the type has pointer/ref/array modifiers an
// Ident can't hold) or a constant expression (a non-type argument, e.g.
// `Array<int, 4>`). `>>`/`>>=` are split via the stream's Stream.
// SplitShr/SplitShrAssign so a nested template-argument list's closing
// `>` never swallows the outer one (disambiguation table
// item 3).
func (p *Parser) attemptTemplateArgList() ([]ast.Expr, bool) {
	if !p.is("<") {
		return nil, false
	}
	p.next()
	var args []ast.Expr
	if p.is(">") {
		p.next()
		return args, true
	}
	for {
		arg, ok := p.attemptTemplateArg()
		if !ok {
			return nil, false
		}
		args = append(args, arg)
		if p.accept(",") {
			continue
		}
		break
	}
	p.splitClosingAngle()
	if !p.accept(">") {
		return nil, false
	}
	return args, true
}

// splitClosingAngle turns a `>>`/`>>=` token sitting at the cursor into
// `>`+`>`/`>`+`>=` so a template-argument list closes without consuming
// tokens that belong to an enclosing one.
func (p *Parser) splitClosingAngle() {
	switch p.cur().Literal {
	case ">>":
		p.s.SplitShr()
	case ">>=":
		p.s.SplitShrAssign()
	}
}

// attemptTemplateArg parses one template argument. A leading builtin
// type keyword or a known type name unambiguously starts a type
// argument; otherwise it is parsed as a constant expression (a
// non-type or template-template argument).
func (p *Parser) attemptTemplateArg() (ast.Expr, bool) {
	if isBuiltinTypeToken(p.cur().Literal) || (p.isIdent() && p.knownTypes[p.substitutedName(p.cur().Literal)]) {
		ts := p.parseTypeSpec()
		if ts.PointerDepth == 0 && ts.Ref == ast.NoRefKind && len(ts.ArrayDims) == 0 {
			return &ast.Ident{Name: ts.Name, TemplateArgs: ts.TemplateArgs}, true
		}
		return &ast.CastExpr{Kind: ast.CStyleCast, Type: ts}, true
	}
	p.noGTDepth++
	e := p.parseAssignExpr()
	p.noGTDepth--
	if e == nil {
		return nil, false
	}
	return e, true
}

// parseArrayDims parses zero or more `[Expr]`/`[]` declarator suffixes.
func (p *Parser) parseArrayDims() []ast.Expr {
	var dims []ast.Expr
	for p.is("[") {
		p.next()
		if p.is("]") {
			dims = append(dims, nil)
		} else {
			dims = append(dims, p.parseExpr())
		}
		p.expect("]")
	}
	return dims
}

// parseDeclaratorTail parses the pointer/reference/array/name suffix
// that follows a parsed base TypeSpec for a simple (non-function)
// declarator: `*name[dims]`. Used by typedef and by the unified
// declarator routine's variable branch.
func (p *Parser) parseDeclaratorTail(base *ast.TypeSpec) (name string, declType *ast.TypeSpec, params []ast.Param, variadic bool) {
	ts := *base
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
	name = p.substitutedName(p.expectIdent())
	ts.ArrayDims = append(ts.ArrayDims, p.parseArrayDims()...)
	return name, &ts, nil, false
}
