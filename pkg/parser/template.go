package parser

import (
	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
	"github.com/cppc-project/cppc/pkg/templates"
)

// tryParseStructClassUnion parses `struct|class|union Name [: bases] {
// members... };`. A forward declaration `struct Foo;` yields a
// StructDecl with no body; for any other non-definition use (e.g. an
// elaborated-type-specifier inside some other declarator) it restores
// the stream and returns nil so the caller falls back to
// parseDeclaratorDecl.
func (p *Parser) tryParseStructClassUnion() ast.Decl {
	save := p.s.Save()
	isUnion := p.is("union")
	isClass := p.is("class")
	p.next()

	if !p.isIdent() {
		p.s.Restore(save)
		return nil
	}
	name := p.substitutedName(p.expectIdent())

	if p.is(";") {
		p.next()
		p.knownTypes[name] = true
		return &ast.StructDecl{Name: name, IsUnion: isUnion, IsClass: isClass}
	}

	if !p.is(":") && !p.is("{") {
		p.s.Restore(save)
		return nil
	}

	p.knownTypes[name] = true
	sd := &ast.StructDecl{Name: name, IsUnion: isUnion, IsClass: isClass, Access: map[string]ast.Access{}}
	sd.Bases = p.parseBaseSpecList()
	p.expect("{")
	defaultAccess := ast.AccessPublic
	if isClass {
		defaultAccess = ast.AccessPrivate
	}
	access := defaultAccess
	for !p.is("}") && !p.atEOF() {
		switch {
		case p.accept("public"):
			p.expect(":")
			access = ast.AccessPublic
			continue
		case p.accept("protected"):
			p.expect(":")
			access = ast.AccessProtected
			continue
		case p.accept("private"):
			p.expect(":")
			access = ast.AccessPrivate
			continue
		}
		before := p.s.Save()
		m := p.parseMemberDecl()
		if m != nil {
			sd.Members = append(sd.Members, m)
			if named, ok := memberName(m); ok {
				sd.Access[named] = access
			}
		}
		if p.s.Save() == before {
			p.next()
		}
	}
	p.expect("}")
	p.accept(";")
	return sd
}

func memberName(d ast.Decl) (string, bool) {
	switch n := d.(type) {
	case *ast.VarDecl:
		return n.Name, true
	case *ast.FunctionDecl:
		return n.Name, true
	case *ast.StructDecl:
		return n.Name, true
	case *ast.EnumDecl:
		return n.Name, true
	}
	return "", false
}

func (p *Parser) parseBaseSpecList() []ast.BaseSpec {
	var bases []ast.BaseSpec
	if !p.accept(":") {
		return bases
	}
	for {
		access := ast.AccessPrivate
		virtual := false
		for {
			switch {
			case p.accept("public"):
				access = ast.AccessPublic
			case p.accept("protected"):
				access = ast.AccessProtected
			case p.accept("private"):
				access = ast.AccessPrivate
			case p.accept("virtual"):
				virtual = true
			default:
				goto doneSpecs
			}
		}
	doneSpecs:
		name := p.parseQualifiedName()
		bases = append(bases, ast.BaseSpec{Name: name, Access: access, Virtual: virtual})
		if !p.accept(",") {
			break
		}
	}
	return bases
}

// parseMemberDecl parses one struct/class body member: a nested type,
// a constructor/destructor (bare `ClassName(...)`/`~ClassName()` with
// no preceding type), an operator overload, or a regular declarator
// member. The struct name itself is not tracked here (the AST doesn't
// need it to distinguish a constructor from a same-named return type),
// so any bare `Ident(` whose identifier is not a builtin type keyword is
// treated as a constructor, whether or not it names a known type.
func (p *Parser) parseMemberDecl() ast.Decl {
	switch {
	case p.is("namespace"), p.is("using"), p.is("typedef"), p.is("template"),
		p.is("concept"), p.is("struct"), p.is("class"), p.is("union"), p.is("enum"),
		p.is("static_assert"):
		return p.parseTopLevelDecl()
	case p.is(";"):
		p.next()
		return nil
	case p.is("~"):
		p.next()
		p.expectIdent()
		return p.parseFuncTail(declFlags{}, "", "", &ast.TypeSpec{Name: "void"}, true, false)
	case p.is("friend"):
		p.next()
		return p.parseMemberDecl()
	}

	flags := p.parseDeclSpecifierFlags()

	if p.is("operator") {
		return p.parseOperatorTail(flags, "")
	}

	// Constructor: `Name(` where Name is not a builtin type keyword
	// used as a return type (a member function
	// always has *some* return type token, even if it's the same
	// spelling as the class, but a constructor has none).
	if p.isIdent() && p.peekIs(1, "(") && !isBuiltinTypeToken(p.cur().Literal) {
		name := p.substitutedName(p.expectIdent())
		return p.parseFuncTail(flags, name, "", nil, false, true)
	}

	ts := p.parseTypeSpec()
	if p.is("operator") {
		return p.parseOperatorTailRet(flags, "", ts)
	}
	d := p.parseVarOrFuncDecl(flags, ts)
	if fd, ok := d.(*ast.FunctionDecl); ok {
		fd.IsVirtual = fd.IsVirtual || flags.isVirtual
	}
	return d
}

// parseEnumDecl parses `enum [class] Name [: Underlying] { A, B = v, ... };`.
func (p *Parser) parseEnumDecl() ast.Decl {
	p.next() // 'enum'
	scoped := p.accept("class")
	name := p.substitutedName(p.expectIdent())
	p.knownTypes[name] = true
	var underlying *ast.TypeSpec
	if p.accept(":") {
		underlying = p.parseTypeSpec()
	}
	d := &ast.EnumDecl{Name: name, IsScoped: scoped, Underlying: underlying}
	if p.accept("{") {
		for !p.is("}") && !p.atEOF() {
			cname := p.expectIdent()
			var val ast.Expr
			if p.accept("=") {
				val = p.parseAssignExpr()
			}
			d.Constants = append(d.Constants, ast.EnumConstantSpec{Name: cname, Value: val})
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
	}
	p.accept(";")
	return d
}

// parseConceptDecl parses `concept Name = Requirement;`. A concept's single type parameter is
// implicit in this subset (the concept is always checked against
// whichever template parameter's Constraint names it), so only the
// concept's own name and boolean requirement expression are recorded.
func (p *Parser) parseConceptDecl() ast.Decl {
	p.next() // 'concept'
	name := p.expectIdent()
	p.expect("=")
	req := p.parseExpr()
	p.expect(";")
	return &ast.ConceptDecl{Name: name, Requirement: req}
}

// parseTemplateDecl parses `template<Params...> [requires Req] Decl`:
// the parameter list is parsed first (so `knownTypes`/dependent-name
// scoping is right for the body), then the body is parsed eagerly as
// well. The body's token range is recorded alongside it but is not
// replayed on instantiation.
func (p *Parser) parseTemplateDecl() ast.Decl {
	p.next() // 'template'
	params := p.parseTemplateParamList()

	paramNames := map[string]bool{}
	for _, tp := range params {
		paramNames[tp.Name] = true
		p.knownTypes[tp.Name] = true
	}
	p.pushTemplateParamScope(paramNames)
	defer p.popTemplateParamScope()

	var requires ast.Expr
	if p.accept("requires") {
		requires = p.parseExpr()
	}

	from := p.s.Save()
	body := p.parseTopLevelDecl()
	to := p.s.Save()

	_, isAlias := body.(*ast.AliasDecl)
	td := &ast.TemplateDecl{Params: params, Requires: requires, Body: body, DeferredBody: from, DeferredEnd: to, IsAlias: isAlias}

	name := templateName(body)
	if name != "" {
		p.engine.Register(&templates.Record{
			Name: name, Params: params, Requires: requires, Body: body,
			DeferredFrom: from, DeferredTo: to,
		})
	}
	return td
}

func templateName(d ast.Decl) string {
	switch n := d.(type) {
	case *ast.StructDecl:
		return n.Name
	case *ast.FunctionDecl:
		return n.Name
	case *ast.VarDecl:
		return n.Name
	case *ast.AliasDecl:
		return n.Name
	}
	return ""
}

// parseTemplateParamList parses `<class T, int N, class... Ts,
// template<class> class TT, class U = Default>`.
func (p *Parser) parseTemplateParamList() []*ast.TemplateParam {
	p.expect("<")
	var params []*ast.TemplateParam
	for !p.is(">") && !p.atEOF() {
		params = append(params, p.parseTemplateParam())
		if !p.accept(",") {
			break
		}
	}
	p.splitClosingAngle()
	p.expect(">")
	return params
}

func (p *Parser) parseTemplateParam() *ast.TemplateParam {
	if p.is("template") {
		p.next()
		nested := p.parseTemplateParamList()
		p.expectTypeParamKeyword()
		name := ""
		if p.isIdent() {
			name = p.expectIdent()
		}
		return &ast.TemplateParam{Name: name, IsTypeParam: true, IsTemplateTemplate: true, TemplateParams: nested}
	}

	if p.is("class") || p.is("typename") {
		p.next()
		tp := &ast.TemplateParam{IsTypeParam: true}
		if p.accept("...") {
			tp.IsPack = true
		}
		if p.isIdent() {
			tp.Name = p.expectIdent()
		}
		if p.accept("=") {
			ts := p.parseTypeSpec()
			tp.Default = &ast.Ident{Name: ts.Name}
		}
		return tp
	}

	// A concept name directly constraining the parameter, e.g.
	// `Integral T`.
	if p.isIdent() && !isBuiltinTypeToken(p.cur().Literal) && p.peekIsIdentOrPack() {
		constraint := p.expectIdent()
		tp := &ast.TemplateParam{IsTypeParam: true, Constraint: constraint}
		if p.accept("...") {
			tp.IsPack = true
		}
		tp.Name = p.expectIdent()
		if p.accept("=") {
			ts := p.parseTypeSpec()
			tp.Default = &ast.Ident{Name: ts.Name}
		}
		return tp
	}

	// Non-type template parameter: `int N`, `bool B = true`.
	ts := p.parseTypeSpec()
	tp := &ast.TemplateParam{NonTypeType: ts}
	if p.accept("...") {
		tp.IsPack = true
	}
	tp.Name = p.expectIdent()
	if p.accept("=") {
		tp.Default = p.parseAssignExpr()
	}
	return tp
}

func (p *Parser) peekIsIdentOrPack() bool {
	return p.peek(1).Kind == lexer.Identifier || p.peekIs(1, "...")
}

func (p *Parser) expectTypeParamKeyword() {
	if p.is("class") || p.is("typename") {
		p.next()
	}
}
