package parser

import (
	"strconv"
	"strings"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
)

// parseExpr parses a full expression, including the comma operator.
func (p *Parser) parseExpr() ast.Expr {
	e := p.parseAssignExpr()
	for p.is(",") {
		p.next()
		rhs := p.parseAssignExpr()
		e = &ast.BinaryExpr{Op: ast.OpComma, Left: e, Right: rhs}
	}
	return e
}

var assignOps = map[string]ast.BinaryOp{
	"=":   ast.OpAssign,
	"+=":  ast.OpAddAssign,
	"-=":  ast.OpSubAssign,
	"*=":  ast.OpMulAssign,
	"/=":  ast.OpDivAssign,
	"%=":  ast.OpModAssign,
	"&=":  ast.OpAndAssign,
	"|=":  ast.OpOrAssign,
	"^=":  ast.OpXorAssign,
	"<<=": ast.OpShlAssign,
	">>=": ast.OpShrAssign,
}

// parseAssignExpr parses an assignment-expression: a conditional
// expression, optionally followed by a right-associative assignment
// operator and another assignment-expression.
func (p *Parser) parseAssignExpr() ast.Expr {
	if p.noGTDepth > 0 && p.is(">>=") {
		p.s.SplitShrAssign()
	}
	lhs := p.parseTernary()
	if op, ok := assignOps[p.cur().Literal]; ok {
		if (p.cur().Literal == ">>=" || p.cur().Literal == ">=") && p.noGTDepth > 0 {
			return lhs
		}
		p.next()
		rhs := p.parseAssignExpr()
		return &ast.BinaryExpr{Op: op, Left: lhs, Right: rhs}
	}
	return lhs
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseBinary(0)
	if p.accept("?") {
		savedDepth := p.noGTDepth
		p.noGTDepth = 0
		then := p.parseExpr()
		p.noGTDepth = savedDepth
		p.expect(":")
		els := p.parseAssignExpr()
		return &ast.TernaryExpr{Cond: cond, Then: then, Else: els}
	}
	return cond
}

type binInfo struct {
	prec int
	op   ast.BinaryOp
}

var binOps = map[string]binInfo{
	"||": {1, ast.OpOr},
	"&&": {2, ast.OpAnd},
	"|":  {3, ast.OpBitOr},
	"^":  {4, ast.OpBitXor},
	"&":  {5, ast.OpBitAnd},
	"==": {6, ast.OpEq},
	"!=": {6, ast.OpNe},
	"<":  {7, ast.OpLt},
	"<=": {7, ast.OpLe},
	">":  {7, ast.OpGt},
	">=": {7, ast.OpGe},
	"<<": {8, ast.OpShl},
	">>": {8, ast.OpShr},
	"+":  {9, ast.OpAdd},
	"-":  {9, ast.OpSub},
	"*":  {10, ast.OpMul},
	"/":  {10, ast.OpDiv},
	"%":  {10, ast.OpMod},
}

// parseBinary is precedence-climbing over every binary operator at or
// above minPrec. Inside a template-argument list (p.noGTDepth > 0) a
// bare `>`/`>>` terminates the climb instead of being consumed as an
// operator; a parenthesized
// sub-expression resets that rule since it is fully bracketed.
func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		lit := p.cur().Literal
		if p.noGTDepth > 0 && (lit == ">" || lit == ">>") {
			break
		}
		info, ok := binOps[lit]
		if !ok || info.prec < minPrec {
			break
		}
		p.next()
		right := p.parseBinary(info.prec + 1)
		left = &ast.BinaryExpr{Op: info.op, Left: left, Right: right}
	}
	return left
}

var unaryOps = map[string]ast.UnaryOp{
	"-": ast.UnaryNeg, "!": ast.UnaryNot, "~": ast.UnaryBitNot,
	"+": ast.UnaryPlus,
}

// parseUnary parses prefix unary operators, named casts, sizeof, and
// pre-increment/decrement, bottoming out at parsePostfix/parsePrimary.
func (p *Parser) parseUnary() ast.Expr {
	if !p.enter() {
		return &ast.NullptrLit{}
	}
	defer p.leave()

	switch {
	case p.is("&"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryAddr, Operand: p.parseUnary()}
	case p.is("*"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryDeref, Operand: p.parseUnary()}
	case p.is("++"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryPreIncr, Operand: p.parseUnary()}
	case p.is("--"):
		p.next()
		return &ast.UnaryExpr{Op: ast.UnaryPreDecr, Operand: p.parseUnary()}
	case p.is("__builtin_addressof"):
		p.next()
		p.expect("(")
		e := p.parseExpr()
		p.expect(")")
		return &ast.UnaryExpr{Op: ast.UnaryAddressOfBuiltin, Operand: e}
	case p.is("-"), p.is("!"), p.is("~"), p.is("+"):
		op := unaryOps[p.cur().Literal]
		p.next()
		return &ast.UnaryExpr{Op: op, Operand: p.parseUnary()}
	case p.is("sizeof"):
		return p.parseSizeof()
	case p.is("static_cast"), p.is("dynamic_cast"), p.is("const_cast"), p.is("reinterpret_cast"):
		return p.parseNamedCast()
	case p.is("new"):
		return p.parseNew()
	case p.is("delete"):
		return p.parseDelete()
	case p.is("(") && p.looksLikeCStyleCast():
		p.next()
		ts := p.parseTypeSpec()
		p.expect(")")
		operand := p.parseUnary()
		return &ast.CastExpr{Kind: ast.CStyleCast, Type: ts, Operand: operand}
	}
	return p.parsePostfix(p.parsePrimary())
}

// looksLikeCStyleCast peeks past a '(' to decide whether it opens a
// type-id (a C-style cast) rather than a parenthesized expression: a
// builtin type keyword or a known type name immediately inside the
// parens, possibly cv-qualified, unambiguously means a cast — the same
// "does it look like a type" lookahead used for T(x).
func (p *Parser) looksLikeCStyleCast() bool {
	lit := p.peek(1).Literal
	if lit == "const" || lit == "volatile" {
		lit = p.peek(2).Literal
	}
	if isBuiltinTypeToken(lit) {
		return true
	}
	if p.peek(1).Kind == lexer.Identifier && p.knownTypes[p.substitutedName(p.peek(1).Literal)] {
		n := 2
		for p.peek(n).Literal == "*" || p.peek(n).Literal == "&" {
			n++
		}
		return p.peek(n).Literal == ")"
	}
	return false
}

func (p *Parser) parseSizeof() ast.Expr {
	p.next() // 'sizeof'
	if p.is("(") && p.looksLikeTypeStart(1) {
		p.next()
		ts := p.parseTypeSpec()
		p.expect(")")
		return &ast.SizeofExpr{Type: ts}
	}
	return &ast.SizeofExpr{Expr: p.parseUnary()}
}

func (p *Parser) looksLikeTypeStart(offset int) bool {
	lit := p.peek(offset).Literal
	if lit == "const" || lit == "volatile" {
		return p.looksLikeTypeStart(offset + 1)
	}
	if isBuiltinTypeToken(lit) {
		return true
	}
	if p.peek(offset).Kind == lexer.Identifier {
		return p.knownTypes[p.substitutedName(lit)]
	}
	switch lit {
	case "struct", "class", "union", "enum", "typename":
		return true
	}
	return false
}

func (p *Parser) parseNamedCast() ast.Expr {
	var kind ast.CastKind
	switch p.cur().Literal {
	case "static_cast":
		kind = ast.StaticCast
	case "dynamic_cast":
		kind = ast.DynamicCast
	case "const_cast":
		kind = ast.ConstCast
	case "reinterpret_cast":
		kind = ast.ReinterpretCast
	}
	p.next()
	p.expect("<")
	savedDepth := p.noGTDepth
	p.noGTDepth++
	ts := p.parseTypeSpec()
	p.noGTDepth = savedDepth
	p.splitClosingAngle()
	p.expect(">")
	p.expect("(")
	operand := p.parseExpr()
	p.expect(")")
	return &ast.CastExpr{Kind: kind, Type: ts, Operand: operand}
}

// parseNew approximates `new Type(args...)`/`new Type[n]` as a
// constructor-call expression: pkg/ast has no heap-allocation node, and
// a freestanding `ConstructorCallExpr` carries everything irbuilder
// needs to lower construction of the pointee (DESIGN.md documents this
// simplification).
func (p *Parser) parseNew() ast.Expr {
	p.next() // 'new'
	ts := p.parseTypeSpec()
	if p.is("[") {
		p.next()
		dim := p.parseExpr()
		p.expect("]")
		ts.ArrayDims = append(ts.ArrayDims, dim)
		return &ast.ConstructorCallExpr{Type: ts}
	}
	var args []ast.Expr
	if p.accept("(") {
		args = p.parseArgListBody()
		p.expect(")")
	}
	return &ast.ConstructorCallExpr{Type: ts, Args: args}
}

// parseDelete approximates `delete expr;`/`delete[] expr;` as a call to
// a synthetic callee, since pkg/ast has no dedicated deallocation node.
func (p *Parser) parseDelete() ast.Expr {
	p.next() // 'delete'
	name := "__delete"
	if p.accept("[") {
		p.expect("]")
		name = "__delete_array"
	}
	operand := p.parseUnary()
	return &ast.CallExpr{Callee: &ast.Ident{Name: name}, Args: []ast.Expr{operand}}
}

func (p *Parser) parseArgListBody() []ast.Expr {
	var args []ast.Expr
	if p.is(")") {
		return args
	}
	for {
		args = append(args, p.parseAssignExpr())
		if !p.accept(",") {
			break
		}
	}
	return args
}

func (p *Parser) parseArgList() []ast.Expr {
	p.expect("(")
	args := p.parseArgListBody()
	p.expect(")")
	return args
}

// parsePostfix parses the postfix chain following a primary expression:
// member access, indexing, calls, and post-increment/decrement.
func (p *Parser) parsePostfix(base ast.Expr) ast.Expr {
	for {
		switch {
		case p.is("."):
			p.next()
			name := p.expectIdent()
			if p.is("(") {
				base = &ast.MemberCallExpr{Base: base, Method: name, Args: p.parseArgList()}
			} else {
				base = &ast.MemberExpr{Base: base, Name: name}
			}
		case p.is("->"):
			p.next()
			name := p.expectIdent()
			if p.is("(") {
				base = &ast.MemberCallExpr{Base: base, Method: name, Arrow: true, Args: p.parseArgList()}
			} else {
				base = &ast.MemberExpr{Base: base, Name: name, Arrow: true}
			}
		case p.is(".*"):
			p.next()
			base = &ast.PointerToMemberExpr{Base: base, Member: p.parseUnary()}
		case p.is("->*"):
			p.next()
			base = &ast.PointerToMemberExpr{Base: base, Member: p.parseUnary(), Arrow: true}
		case p.is("["):
			p.next()
			idx := p.parseExpr()
			p.expect("]")
			base = &ast.IndexExpr{Base: base, Index: idx}
		case p.is("("):
			base = &ast.CallExpr{Callee: base, Args: p.parseArgList()}
		case p.is("++"):
			p.next()
			base = &ast.PostfixExpr{Op: ast.PostfixIncr, Operand: base}
		case p.is("--"):
			p.next()
			base = &ast.PostfixExpr{Op: ast.PostfixDecr, Operand: base}
		default:
			return base
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.cur()
	switch {
	case tok.Kind == lexer.IntLiteral, tok.Kind == lexer.FloatLiteral:
		p.next()
		return parseNumericLit(tok)
	case tok.Kind == lexer.StringLiteral:
		p.next()
		return parseStringLit(tok)
	case tok.Kind == lexer.CharLiteral:
		p.next()
		return parseCharLit(tok)
	case p.is("true"):
		p.next()
		return &ast.BoolLit{Value: true}
	case p.is("false"):
		p.next()
		return &ast.BoolLit{Value: false}
	case p.is("nullptr"):
		p.next()
		return &ast.NullptrLit{}
	case p.is("this"):
		p.next()
		return &ast.Ident{Name: "this"}
	case p.is("("):
		p.next()
		savedDepth := p.noGTDepth
		p.noGTDepth = 0
		e := p.parseExpr()
		p.noGTDepth = savedDepth
		p.expect(")")
		return e
	case p.is("["):
		return p.parseLambda()
	case p.isIdent():
		return p.parseIdentOrConstruction()
	}
	p.addError("unexpected token %q in expression", tok.Literal)
	p.next()
	return &ast.NullptrLit{}
}

// parseIdentOrConstruction parses a (possibly qualified, possibly
// template-id) identifier and, if it names a known type immediately
// followed by `(`/`{`, a functional-cast construction expression
// (disambiguation table item 1's twin: the same lookahead
// that decides T(x) is a declaration also decides T(x) used in
// expression position is a temporary construction).
func (p *Parser) parseIdentOrConstruction() ast.Expr {
	name := p.substitutedName(p.expectIdent())
	for p.is("::") {
		p.next()
		name = p.substitutedName(p.expectIdent())
	}
	var templateArgs []ast.Expr
	if p.is("<") && p.knownTypes[name] {
		save := p.s.Save()
		if args, ok := p.attemptTemplateArgList(); ok {
			templateArgs = args
		} else {
			p.s.Restore(save)
		}
	}
	if p.knownTypes[name] && (p.is("(") || p.is("{")) {
		brace := p.is("{")
		var args []ast.Expr
		if brace {
			p.next()
			args = p.parseArgListBody()
			p.expect("}")
		} else {
			args = p.parseArgList()
		}
		return &ast.ConstructorCallExpr{Type: &ast.TypeSpec{Name: name, TemplateArgs: templateArgs}, Args: args, Brace: brace}
	}
	return &ast.Ident{Name: name, TemplateArgs: templateArgs}
}

func (p *Parser) parseLambda() ast.Expr {
	p.expect("[")
	var captures []ast.LambdaCapture
	for !p.is("]") && !p.atEOF() {
		switch {
		case p.is("&") && p.peekIs(1, "]"):
			p.next()
			captures = append(captures, ast.LambdaCapture{ByRef: true, IsDefault: true})
		case p.is("=") && p.peekIs(1, "]"):
			p.next()
			captures = append(captures, ast.LambdaCapture{IsDefault: true})
		case p.is("this"):
			p.next()
			captures = append(captures, ast.LambdaCapture{IsThis: true})
		case p.is("&"):
			p.next()
			captures = append(captures, ast.LambdaCapture{Name: p.expectIdent(), ByRef: true})
		default:
			captures = append(captures, ast.LambdaCapture{Name: p.expectIdent()})
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect("]")
	var params []ast.Param
	if p.accept("(") {
		for !p.is(")") && !p.atEOF() {
			ts := p.parseTypeSpec()
			pname, ptype, _, _ := p.parseDeclaratorTail(ts)
			params = append(params, ast.Param{Name: pname, Type: ptype})
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
	}
	var ret *ast.TypeSpec
	if p.accept("->") {
		ret = p.parseTypeSpec()
	}
	body := p.parseBlock()
	return &ast.LambdaExpr{Captures: captures, Params: params, ReturnType: ret, Body: body}
}

func isIntSuffixByte(c byte) bool {
	return c == 'u' || c == 'U' || c == 'l' || c == 'L'
}

func isFloatSuffixByte(c byte) bool {
	return c == 'f' || c == 'F' || c == 'l' || c == 'L'
}

func parseNumericLit(tok lexer.Token) *ast.NumericLit {
	lit := tok.Literal
	if tok.Kind == lexer.FloatLiteral {
		end := len(lit)
		for end > 0 && isFloatSuffixByte(lit[end-1]) {
			end--
		}
		val, _ := strconv.ParseFloat(lit[:end], 64)
		return &ast.NumericLit{IsFloat: true, FloatVal: val, Suffix: lit[end:]}
	}
	end := len(lit)
	for end > 0 && isIntSuffixByte(lit[end-1]) {
		end--
	}
	base := lit[:end]
	var val int64
	switch {
	case strings.HasPrefix(base, "0x") || strings.HasPrefix(base, "0X"):
		val, _ = strconv.ParseInt(base[2:], 16, 64)
	case len(base) > 1 && base[0] == '0':
		val, _ = strconv.ParseInt(base, 8, 64)
	default:
		val, _ = strconv.ParseInt(base, 10, 64)
	}
	return &ast.NumericLit{IntVal: val, Suffix: lit[end:]}
}

// parseStringLit strips the surrounding quotes (and any
// user-defined-literal suffix the lexer folded into the same token,
// e.g. `"foo"_bar`); pkg/lexer never emits a wide/UTF string prefix as
// part of the literal token itself, so StringLit.Prefix is always
// empty here (DESIGN.md notes this as a lexer-level limitation, not a
// parser one).
func parseStringLit(tok lexer.Token) *ast.StringLit {
	lit := tok.Literal
	last := strings.LastIndexByte(lit, '"')
	if last <= 0 {
		return &ast.StringLit{Value: lit}
	}
	return &ast.StringLit{Value: lit[1:last]}
}

// parseCharLit represents a character literal as its integer ordinal
// value: pkg/ast has no dedicated char-literal node, and C++ character
// literals are themselves integer constants of type char.
func parseCharLit(tok lexer.Token) *ast.NumericLit {
	lit := tok.Literal
	last := strings.LastIndexByte(lit, '\'')
	if last <= 1 {
		return &ast.NumericLit{}
	}
	content := lit[1:last]
	var val int64
	if len(content) >= 2 && content[0] == '\\' {
		switch content[1] {
		case 'n':
			val = '\n'
		case 't':
			val = '\t'
		case 'r':
			val = '\r'
		case '0':
			val = 0
		case '\\':
			val = '\\'
		case '\'':
			val = '\''
		default:
			val = int64(content[1])
		}
	} else if len(content) > 0 {
		val = int64(content[0])
	}
	return &ast.NumericLit{IntVal: val}
}
