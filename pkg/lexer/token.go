// Package lexer defines the Token data model that the parser consumes
// and provides a tokenizer for this compiler's C++ subset, retargeted
// from a C token set to the C++ superset the parser needs (`<=>`,
// `::`, `...`, `->*`, user-defined-literal suffixes on string
// literals). Raw string literals are not lexed.
package lexer

// TokenKind tags a Token: a kind tag (Keyword, Identifier, Literal,
// Operator, Punctuator, EOF).
type TokenKind int

const (
	EOF TokenKind = iota
	Illegal
	Keyword
	Identifier
	IntLiteral
	FloatLiteral
	StringLiteral
	CharLiteral
	Operator
	Punctuator
)

// Pos is a token's source coordinates: file index, line, and column.
type Pos struct {
	File   int
	Line   int
	Column int
}

// Token is a lexeme plus its kind and position. Lifetimes are tied to
// the token stream that produced it.
type Token struct {
	Kind    TokenKind
	Literal string // exact source spelling, e.g. "int", "<<=", "foo"
	Pos     Pos
}

// String keywords recognized by the reference lexer. Kept as a plain
// map (no perfect-hash/trie library in the pack addresses this) the way
// the reference compiler's lexer recognizes C keywords.
var keywords = map[string]bool{
	"alignas": true, "alignof": true, "asm": true, "auto": true, "bool": true,
	"break": true, "case": true, "catch": true, "char": true, "class": true,
	"concept": true, "const": true, "consteval": true, "constexpr": true,
	"constinit": true, "continue": true, "decltype": true, "default": true,
	"delete": true, "do": true, "double": true, "dynamic_cast": true,
	"else": true, "enum": true, "explicit": true, "export": true,
	"extern": true, "false": true, "float": true, "for": true, "friend": true,
	"goto": true, "if": true, "inline": true, "int": true, "long": true,
	"mutable": true, "namespace": true, "new": true, "noexcept": true,
	"nullptr": true, "operator": true, "private": true, "protected": true,
	"public": true, "register": true, "reinterpret_cast": true,
	"requires": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "static_assert": true,
	"static_cast": true, "struct": true, "switch": true, "template": true,
	"this": true, "thread_local": true, "throw": true, "true": true,
	"try": true, "typedef": true, "typeid": true, "typename": true,
	"union": true, "unsigned": true, "using": true, "virtual": true,
	"void": true, "volatile": true, "wchar_t": true, "while": true,
	"__try": true, "__except": true, "__finally": true, "__leave": true,
	"__builtin_addressof": true, "__builtin_va_list": true,
}

// IsKeyword reports whether an identifier spelling is a C++ keyword.
func IsKeyword(s string) bool { return keywords[s] }
