// Package parser implements a hand-written, predictive recursive
// descent parser for this compiler's C++ subset: bounded
// speculative lookahead via the token stream's save/restore handles,
// a disambiguation table for the four constructs C++'s grammar cannot
// resolve with fixed lookahead (function-decl vs. direct-init,
// template-argument-list vs. less-than, `>>` splitting, `typename
// T::x`), and a single unified declarator routine threaded through
// every declaration kind.
//
// Grounded on the reference compiler's pkg/parser/parser.go: the three-token
// Parser struct, curTokenIs/peekTokenIs/expectPeek helpers, the
// typedefs identifier-to-bool membership map, and panic-mode
// sync-to-statement-end error recovery all carry over in spirit;
// the stream itself is pkg/lexer's Stream (already tokenized up
// front, unlike the reference compiler's token-at-a-time Lexer), because the
// parser's speculative parses need O(1) save/restore handles rather
// than a re-lexing cursor.
package parser

import (
	"fmt"

	"github.com/cppc-project/cppc/pkg/ast"
	"github.com/cppc-project/cppc/pkg/lexer"
	"github.com/cppc-project/cppc/pkg/templates"
)

// maxDepth bounds recursive-descent recursion against pathological input.
const maxDepth = 200

// Parser parses a C++ translation unit's token stream into pkg/ast.
type Parser struct {
	s      *lexer.Stream
	errors []string
	depth  int

	// knownTypes tracks every identifier the parser has seen declared
	// as a type (struct/class/union/enum/alias/typedef/template name),
	// the same identifier-to-bool membership idiom the reference compiler's
	// Parser.typedefs map uses, generalized to gate whether a
	// following `<` is even worth a speculative template-argument
	// parse.
	knownTypes map[string]bool

	// templateParamScopes is a stack of template-parameter-name sets
	// in scope, innermost last; a name found here is dependent.
	templateParamScopes []map[string]bool

	// substBindings holds parameter-name -> substituted-text bindings
	// while re-entrantly parsing a deferred template body for lazy
	// member instantiation; nil outside that context.
	substBindings map[string]string

	// noGTDepth is nonzero while parsing inside a template-argument
	// list: a bare `>`/`>>` must close the list rather than be
	// consumed as a relational/shift operator there, unless a
	// parenthesized sub-expression resets the rule.
	noGTDepth int

	engine *templates.Engine
}

// New returns a Parser over an already-tokenized stream.
func New(s *lexer.Stream) *Parser {
	p := &Parser{
		s:          s,
		knownTypes: make(map[string]bool),
	}
	for _, kw := range builtinTypeKeywords {
		p.knownTypes[kw] = true
	}
	p.engine = templates.NewEngine(p.reparseDeferredBody)
	return p
}

var builtinTypeKeywords = []string{
	"void", "bool", "char", "short", "int", "long", "unsigned", "signed",
	"float", "double", "wchar_t", "auto", "__builtin_va_list",
}

// Engine returns the template engine the parser registered every
// `template<...>` declaration into as it parsed.
func (p *Parser) Engine() *templates.Engine { return p.engine }

// Errors returns every parse error collected so far, formatted the way
// the reference compiler's addError does: "line %d, col %d: %s".
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	tok := p.cur()
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s", tok.Pos.Line, tok.Pos.Column, msg))
}

func (p *Parser) cur() lexer.Token       { return p.s.Peek(0) }
func (p *Parser) peek(n int) lexer.Token { return p.s.Peek(n) }
func (p *Parser) next() lexer.Token      { return p.s.Next() }

func (p *Parser) atEOF() bool { return p.cur().Kind == lexer.EOF }

// is reports whether the current token's literal spelling matches lit
// (keywords, operators, and punctuators are all compared by spelling,
// the same way the reference compiler's curTokenIs compares by TokenType since its
// lexer assigns one TokenType per keyword/punctuator spelling).
func (p *Parser) is(lit string) bool { return p.cur().Literal == lit }

func (p *Parser) peekIs(n int, lit string) bool { return p.peek(n).Literal == lit }

func (p *Parser) isIdent() bool { return p.cur().Kind == lexer.Identifier }

// accept consumes the current token if it matches lit, reporting
// whether it did.
func (p *Parser) accept(lit string) bool {
	if p.is(lit) {
		p.next()
		return true
	}
	return false
}

// expect consumes the current token if it matches lit, else records an
// error and still advances (panic-mode tolerant, like the reference compiler's
// expect/expectPeek pair, except the new grammar has no peek-based
// variant since Stream already gives arbitrary lookahead via Peek).
func (p *Parser) expect(lit string) lexer.Token {
	tok := p.cur()
	if tok.Literal != lit {
		p.addError("expected %q, got %q", lit, tok.Literal)
		return tok
	}
	return p.next()
}

func (p *Parser) expectIdent() string {
	tok := p.cur()
	if tok.Kind != lexer.Identifier {
		p.addError("expected identifier, got %q", tok.Literal)
		return tok.Literal
	}
	p.next()
	return tok.Literal
}

// syncToDeclEnd is panic-mode error recovery: skip to the next `;` or
// `}` at the current brace depth, the same role the reference compiler's
// syncToStmtEnd/syncToBlockEnd play.
func (p *Parser) syncToDeclEnd() {
	depth := 0
	for !p.atEOF() {
		switch p.cur().Literal {
		case "{":
			depth++
		case "}":
			if depth == 0 {
				return
			}
			depth--
			if depth == 0 {
				p.next()
				return
			}
		case ";":
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

func (p *Parser) enter() bool {
	p.depth++
	if p.depth > maxDepth {
		p.addError("expression or statement nesting too deep")
		return false
	}
	return true
}

func (p *Parser) leave() { p.depth-- }

func (p *Parser) pushTemplateParamScope(names map[string]bool) {
	p.templateParamScopes = append(p.templateParamScopes, names)
}

func (p *Parser) popTemplateParamScope() {
	p.templateParamScopes = p.templateParamScopes[:len(p.templateParamScopes)-1]
}

// isDependentName reports whether name is bound in an enclosing
// template's parameter list.
func (p *Parser) isDependentName(name string) bool {
	for i := len(p.templateParamScopes) - 1; i >= 0; i-- {
		if p.templateParamScopes[i][name] {
			return true
		}
	}
	return false
}

// Parse consumes the whole stream, returning the translation unit's
// Program plus the Parser (so the caller can inspect Errors() and
// Engine()).
func Parse(s *lexer.Stream) (*ast.Program, *Parser) {
	p := New(s)
	prog := &ast.Program{}
	for !p.atEOF() {
		before := p.s.Save()
		d := p.parseTopLevelDecl()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
		if p.s.Save() == before {
			// No progress: the declaration parser bailed out without
			// consuming anything. Force progress so a malformed
			// top-level construct cannot hang the loop.
			p.next()
		}
	}
	return prog, p
}

// parseTopLevelDecl dispatches on the current token to one of the
// declaration-kind parsers; it is also reused for declarations inside
// a namespace body and (restricted to member-shaped productions) inside
// a struct/class/union body.
func (p *Parser) parseTopLevelDecl() ast.Decl {
	switch {
	case p.is("namespace"):
		return p.parseNamespace()
	case p.is("using"):
		return p.parseUsing()
	case p.is("typedef"):
		return p.parseTypedef()
	case p.is("template"):
		return p.parseTemplateDecl()
	case p.is("concept"):
		return p.parseConceptDecl()
	case p.is("struct"), p.is("class"), p.is("union"):
		if d := p.tryParseStructClassUnion(); d != nil {
			return d
		}
	case p.is("enum"):
		return p.parseEnumDecl()
	case p.is("static_assert"):
		p.parseStaticAssert()
		return nil
	case p.is(";"):
		p.next()
		return nil
	}
	return p.parseDeclaratorDecl()
}

// parseNamespace parses `namespace Name { decls... }` (and anonymous
// `namespace { ... }`).
func (p *Parser) parseNamespace() ast.Decl {
	p.next() // 'namespace'
	n := &ast.NamespaceDecl{}
	if p.isIdent() {
		n.Name = p.expectIdent()
	}
	p.expect("{")
	for !p.is("}") && !p.atEOF() {
		before := p.s.Save()
		if d := p.parseTopLevelDecl(); d != nil {
			n.Decls = append(n.Decls, d)
		}
		if p.s.Save() == before {
			p.next()
		}
	}
	p.expect("}")
	return n
}

// parseUsing parses `using Name = Type;` (alias) or a using-directive/
// declaration `using NS::name;`, the latter simply discarded: this
// subset has no namespace-lookup pass for irbuilder to consult.
func (p *Parser) parseUsing() ast.Decl {
	p.next() // 'using'
	if p.is("namespace") {
		p.next()
		p.parseQualifiedName()
		p.expect(";")
		return nil
	}
	name := p.expectIdent()
	if p.accept("=") {
		ts := p.parseTypeSpec()
		p.expect(";")
		p.knownTypes[name] = true
		return &ast.AliasDecl{Name: name, Type: ts}
	}
	for p.is("::") || p.isIdent() {
		p.next()
	}
	p.expect(";")
	return nil
}

// parseTypedef parses legacy `typedef Type Name;`.
func (p *Parser) parseTypedef() ast.Decl {
	p.next() // 'typedef'
	ts := p.parseTypeSpec()
	name, declType, _, _ := p.parseDeclaratorTail(ts)
	p.expect(";")
	p.knownTypes[name] = true
	return &ast.AliasDecl{Name: name, Type: declType}
}

// parseStaticAssert parses `static_assert(expr [, "msg"]);` and
// discards it: the constant evaluator is exercised through non-type
// template arguments and constexpr folding, not a dedicated
// diagnostic surface for static_assert failures.
func (p *Parser) parseStaticAssert() {
	p.next() // 'static_assert'
	p.expect("(")
	p.parseExpr()
	for p.accept(",") {
		p.parseExpr()
	}
	p.expect(")")
	p.expect(";")
}

// parseQualifiedName consumes a possibly `::`-qualified name
// (`A::B::name`) and returns its final component.
func (p *Parser) parseQualifiedName() string {
	name := p.expectIdent()
	for p.is("::") {
		p.next()
		name = p.expectIdent()
	}
	return name
}

// reparseDeferredBody is the templates.BodyParser callback: it
// re-enters this same parser over the saved token range with the
// given parameter bindings active, for lazy member instantiation.
func (p *Parser) reparseDeferredBody(from, to lexer.SaveHandle, bindings map[string]string) (ast.Decl, error) {
	save := p.s.Save()
	prevBindings := p.substBindings
	p.s.Restore(from)
	p.substBindings = bindings
	d := p.parseTopLevelDecl()
	p.substBindings = prevBindings
	p.s.Restore(save)
	_ = to
	if d == nil {
		return nil, fmt.Errorf("parser: empty deferred template body")
	}
	return d, nil
}
