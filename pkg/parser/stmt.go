package parser

import (
	"github.com/cppc-project/cppc/pkg/ast"
)

// parseBlock parses a `{ stmt... }` compound statement.
func (p *Parser) parseBlock() *ast.Block {
	if !p.enter() {
		p.syncToDeclEnd()
		return &ast.Block{}
	}
	defer p.leave()
	p.expect("{")
	blk := &ast.Block{}
	for !p.is("}") && !p.atEOF() {
		before := p.s.Save()
		if st := p.parseStmt(); st != nil {
			blk.Stmts = append(blk.Stmts, st)
		}
		if p.s.Save() == before {
			p.next()
		}
	}
	p.expect("}")
	return blk
}

// parseStmt parses one statement, dispatching on the leading keyword the
// way the reference compiler's statement parser switches on curToken.Type.
func (p *Parser) parseStmt() ast.Stmt {
	if !p.enter() {
		p.syncToDeclEnd()
		return nil
	}
	defer p.leave()

	switch {
	case p.is("{"):
		return p.parseBlock()
	case p.is("if"):
		return p.parseIf()
	case p.is("for"):
		return p.parseFor()
	case p.is("while"):
		return p.parseWhile()
	case p.is("do"):
		return p.parseDo()
	case p.is("switch"):
		return p.parseSwitch()
	case p.is("case"):
		return p.parseCase()
	case p.is("default") && p.peekIs(1, ":"):
		return p.parseDefault()
	case p.is("return"):
		return p.parseReturn()
	case p.is("break"):
		p.next()
		p.expect(";")
		return &ast.BreakStmt{}
	case p.is("continue"):
		p.next()
		p.expect(";")
		return &ast.ContinueStmt{}
	case p.is("goto"):
		p.next()
		label := p.expectIdent()
		p.expect(";")
		return &ast.GotoStmt{Label: label}
	case p.is("try"):
		return p.parseTry()
	case p.is("throw"):
		return p.parseThrow()
	case p.is("__try"):
		return p.parseSehTry()
	case p.is("__leave"):
		p.next()
		p.expect(";")
		return &ast.SehLeaveStmt{}
	case p.is(";"):
		p.next()
		return nil
	case p.isIdent() && p.peekIs(1, ":") && !p.peekIs(2, ":"):
		label := p.expectIdent()
		p.next() // ':'
		return &ast.LabelStmt{Label: label, Stmt: p.parseStmt()}
	}

	if p.startsDeclaration() {
		d := p.parseDeclStmtInner()
		return &ast.DeclStmt{Decl: d}
	}

	e := p.parseExpr()
	p.expect(";")
	return &ast.ExprStmt{Expr: e}
}

// startsDeclaration reports whether the current position begins a
// block-scope declaration rather than an expression-statement: the same
// "does this look like a type" lookahead the unified declarator routine
// uses for parameter lists applies here.
func (p *Parser) startsDeclaration() bool {
	switch {
	case p.is("static"), p.is("extern"), p.is("constexpr"), p.is("consteval"),
		p.is("constinit"), p.is("using"), p.is("typedef"), p.is("struct"),
		p.is("class"), p.is("union"), p.is("enum"):
		return true
	case isBuiltinTypeToken(p.cur().Literal):
		return true
	case p.isIdent() && p.knownTypes[p.substitutedName(p.cur().Literal)]:
		// A known type name starting a statement is a declaration
		// unless it's actually a function-style cast/construction used
		// as a bare expression-statement, e.g. `Foo(x);` — both parse
		// to a defensible AST shape here (VarDecl w/ ConstructorCallExpr
		// vs. a construction expression), so the declaration path is
		// preferred since it is strictly more informative.
		return true
	}
	return false
}

func (p *Parser) parseDeclStmtInner() ast.Decl {
	switch {
	case p.is("using"):
		return p.parseUsing()
	case p.is("typedef"):
		return p.parseTypedef()
	case p.is("struct"), p.is("class"), p.is("union"):
		if d := p.tryParseStructClassUnion(); d != nil {
			return d
		}
		return p.parseDeclaratorDecl()
	case p.is("enum"):
		return p.parseEnumDecl()
	}
	return p.parseDeclaratorDecl()
}

func (p *Parser) parseIf() ast.Stmt {
	p.next()
	p.expect("(")
	cond := p.parseExpr()
	p.expect(")")
	then := p.parseStmt()
	st := &ast.IfStmt{Cond: cond, Then: then}
	if p.accept("else") {
		st.Else = p.parseStmt()
	}
	return st
}

func (p *Parser) parseFor() ast.Stmt {
	p.next()
	p.expect("(")
	var init ast.Stmt
	if !p.is(";") {
		if p.startsDeclaration() {
			init = &ast.DeclStmt{Decl: p.parseDeclStmtInner()}
		} else {
			e := p.parseExpr()
			p.expect(";")
			init = &ast.ExprStmt{Expr: e}
		}
	} else {
		p.next()
	}
	var cond ast.Expr
	if !p.is(";") {
		cond = p.parseExpr()
	}
	p.expect(";")
	var post ast.Expr
	if !p.is(")") {
		post = p.parseExpr()
	}
	p.expect(")")
	body := p.parseStmt()
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseWhile() ast.Stmt {
	p.next()
	p.expect("(")
	cond := p.parseExpr()
	p.expect(")")
	body := p.parseStmt()
	return &ast.WhileStmt{Cond: cond, Body: body}
}

func (p *Parser) parseDo() ast.Stmt {
	p.next()
	body := p.parseStmt()
	p.expect("while")
	p.expect("(")
	cond := p.parseExpr()
	p.expect(")")
	p.expect(";")
	return &ast.DoStmt{Body: body, Cond: cond}
}

func (p *Parser) parseSwitch() ast.Stmt {
	p.next()
	p.expect("(")
	tag := p.parseExpr()
	p.expect(")")
	body := p.parseStmt()
	return &ast.SwitchStmt{Tag: tag, Body: body}
}

func (p *Parser) parseCase() ast.Stmt {
	p.next()
	v := p.parseExpr()
	p.expect(":")
	return &ast.CaseStmt{Value: v}
}

func (p *Parser) parseDefault() ast.Stmt {
	p.next()
	p.expect(":")
	return &ast.CaseStmt{}
}

func (p *Parser) parseReturn() ast.Stmt {
	p.next()
	if p.accept(";") {
		return &ast.ReturnStmt{}
	}
	v := p.parseExpr()
	p.expect(";")
	return &ast.ReturnStmt{Value: v}
}

func (p *Parser) parseTry() ast.Stmt {
	p.next()
	body := p.parseBlock()
	st := &ast.TryStmt{Body: body}
	for p.accept("catch") {
		p.expect("(")
		h := ast.CatchHandler{}
		if p.accept("...") {
			h.CatchAll = true
		} else {
			h.Type = p.parseTypeSpec()
			if p.isIdent() {
				h.Name = p.expectIdent()
			}
		}
		p.expect(")")
		h.Body = p.parseBlock()
		st.Handlers = append(st.Handlers, h)
	}
	return st
}

func (p *Parser) parseThrow() ast.Stmt {
	p.next()
	if p.is(";") {
		p.next()
		return &ast.ThrowStmt{}
	}
	v := p.parseExpr()
	p.expect(";")
	return &ast.ThrowStmt{Value: v}
}

// parseSehTry parses `__try Block (__except(Filter) Block | __finally
// Block)`.
func (p *Parser) parseSehTry() ast.Stmt {
	p.next()
	body := p.parseBlock()
	st := &ast.SehTryStmt{Body: body}
	switch {
	case p.accept("__except"):
		p.expect("(")
		st.Filter = p.parseExpr()
		p.expect(")")
		st.Except = p.parseBlock()
	case p.accept("__finally"):
		st.Finally = p.parseBlock()
	default:
		p.addError("expected __except or __finally after __try")
	}
	return st
}
