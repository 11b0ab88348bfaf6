// Package ast defines the abstract syntax tree for this compiler's C++
// subset: a sum type over roughly sixty variants, each carrying its
// originating token for diagnostics. Every traversal in the core is a
// pattern match (a type switch) over this sum, never runtime
// polymorphism on nodes.
//
// Grounded on pkg/cabs/ast.go's marker-interface shape (Node/Expr/Stmt/
// Definition interfaces implemented by empty impl*() methods), expanded
// from C's ~20 node kinds to the C++ surface names: template
// declarations, lambdas, structured bindings, casts, try/catch/throw,
// and SEH.
package ast

import "github.com/cppc-project/cppc/pkg/lexer"

// Node is the base interface every AST node satisfies.
type Node interface {
	Tok() lexer.Token
	implNode()
}

// Expr is any expression node.
type Expr interface {
	Node
	implExpr()
}

// Stmt is any statement node.
type Stmt interface {
	Node
	implStmt()
}

// Decl is any declaration (including definitions) that can appear at
// namespace/block scope.
type Decl interface {
	Node
	implDecl()
}

// base is embedded by every concrete node to satisfy Node without
// boilerplate in each type.
type base struct {
	Token lexer.Token
}

func (b base) Tok() lexer.Token { return b.Token }

// ---- Type specifiers and declarators ----

// TypeSpec names a type as written in source, before the Type Registry
// resolves it to a Descriptor.
type TypeSpec struct {
	base
	Name         string // "int", "MyClass", "T" (may be a template parameter)
	PointerDepth int
	Const        []bool // per pointer level, parallel to PointerDepth+1 entries (level 0 = the pointee)
	Volatile     []bool
	Ref          RefKind
	ArrayDims    []Expr // nil dim = incomplete ([])
	TemplateArgs []Expr // non-nil when Name is itself a template-id, e.g. "vector<int>"
	IsTypename   bool   // `typename T::x` dependent type
	Qualifier    *TypeSpec // the `T::` in `typename T::x`, nil otherwise
}

func (n *TypeSpec) implNode() {}

// RefKind is a declarator's reference-ness.
type RefKind int

const (
	NoRefKind RefKind = iota
	LValueRefKind
	RValueRefKind
)

// TemplateParam is one entry of a template's parameter list.
type TemplateParam struct {
	base
	Name         string
	IsTypeParam  bool   // false => non-type parameter
	IsPack       bool   // trailing `...`
	NonTypeType  *TypeSpec // non-type parameter's type, e.g. `int N`
	Default      Expr
	Constraint   string // concept name constraining a type parameter, e.g. `Integral T`
	IsTemplateTemplate bool // `template<class> class TT`
	TemplateParams []*TemplateParam // nested params for a template-template parameter
}

func (n *TemplateParam) implNode() {}

// ---- Declarations ----

// VarDecl is a variable declaration/definition.
type VarDecl struct {
	base
	Name        string
	Type        *TypeSpec
	Init        Expr
	IsStatic    bool
	IsExtern    bool
	IsConstexpr bool
	IsConstinit bool
	StructuredBinding []string // `auto [a, b] = e;`; non-nil means Name is ignored
	BindingByRef      bool     // `auto& [a, b] = e;`
}

func (n *VarDecl) implNode() {}
func (n *VarDecl) implDecl() {}

// Param is one function parameter.
type Param struct {
	base
	Name string
	Type *TypeSpec
}

// FunctionDecl is a function declaration or definition (including
// out-of-line member definitions `Class::method`, constructors,
// destructors, and operator overloads).
type FunctionDecl struct {
	base
	Name          string
	Qualifier     string // "Class" in "Class::method", empty otherwise
	ReturnType    *TypeSpec // nil/Auto for deduced auto-return
	Params        []Param
	Variadic      bool
	Body          *Block // nil for a declaration-only prototype
	IsConstexpr   bool
	IsConsteval   bool
	IsInline      bool
	IsStatic      bool
	IsVirtual     bool
	IsOverride    bool
	IsFinal       bool
	IsConst       bool // trailing const on a member function
	IsVolatile    bool
	IsConstructor bool
	IsDestructor  bool
	MemberInits   []MemberInit // constructor member-initializer list
	OperatorName  string       // "+", "[]", "\"\"suffix", "T" (conversion), "new", "delete[]", empty if not an operator
	IsAbbreviated bool         // rewritten from an `auto`-parameter abbreviated function template
	SyntheticTypeParams []string // `_T0, _T1, ...` introduced by abbreviation
}

func (n *FunctionDecl) implNode() {}
func (n *FunctionDecl) implDecl() {}

// MemberInit is one entry of a constructor's member-initializer list.
type MemberInit struct {
	Member string
	Args   []Expr
}

// StructDecl is a struct/class/union declaration.
type StructDecl struct {
	base
	Name     string
	IsUnion  bool
	IsClass  bool // affects default access (private vs public), not layout
	Bases    []BaseSpec
	Members  []Decl // VarDecl, FunctionDecl, StructDecl (nested), EnumDecl, TemplateDecl (nested alias)
	Access   map[string]Access
	PackBytes int
}

func (n *StructDecl) implNode() {}
func (n *StructDecl) implDecl() {}

// Access mirrors types.Access for AST-level bookkeeping before the Type
// Registry resolves a member.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// BaseSpec is one entry of a struct's base-class-list, as written.
type BaseSpec struct {
	Name    string // may be a template parameter name (deferred base)
	Access  Access
	Virtual bool
}

// EnumDecl is an enum/enum class declaration.
type EnumDecl struct {
	base
	Name       string
	IsScoped   bool
	Underlying *TypeSpec
	Constants  []EnumConstantSpec
}

func (n *EnumDecl) implNode() {}
func (n *EnumDecl) implDecl() {}

// EnumConstantSpec is one `NAME = expr` entry of an enum body.
type EnumConstantSpec struct {
	Name  string
	Value Expr // nil means "one more than the previous constant"
}

// TemplateDecl wraps a class/function/variable/alias template: its
// parameter list, optional requires-clause, and the unparsed body as a
// deferred body.
type TemplateDecl struct {
	base
	Params        []*TemplateParam
	Requires      Expr // requires-clause, nil if absent
	Body          Decl // StructDecl | FunctionDecl | VarDecl | AliasDecl
	DeferredBody  lexer.SaveHandle // replay point for lazy instantiation
	DeferredEnd   lexer.SaveHandle
	IsAlias       bool
}

func (n *TemplateDecl) implNode() {}
func (n *TemplateDecl) implDecl() {}

// AliasDecl is `using Name = Type;` or legacy `typedef Type Name;`.
type AliasDecl struct {
	base
	Name string
	Type *TypeSpec
}

func (n *AliasDecl) implNode() {}
func (n *AliasDecl) implDecl() {}

// ConceptDecl registers a concept name and its requirement expression.
type ConceptDecl struct {
	base
	Name       string
	Param      string // the single template type parameter the concept constrains
	Requirement Expr
}

func (n *ConceptDecl) implNode() {}
func (n *ConceptDecl) implDecl() {}

// NamespaceDecl opens (or reopens) a namespace.
type NamespaceDecl struct {
	base
	Name  string // empty for an anonymous namespace
	Decls []Decl
}

func (n *NamespaceDecl) implNode() {}
func (n *NamespaceDecl) implDecl() {}

// Program is the root of a translation unit's AST.
type Program struct {
	Decls []Decl
}

// ---- Statements ----

// Block is a `{ ... }` compound statement.
type Block struct {
	base
	Stmts []Stmt
}

func (n *Block) implNode() {}
func (n *Block) implStmt() {}

// DeclStmt wraps a VarDecl/AliasDecl appearing at block scope.
type DeclStmt struct {
	base
	Decl Decl
}

func (n *DeclStmt) implNode() {}
func (n *DeclStmt) implStmt() {}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	base
	Expr Expr
}

func (n *ExprStmt) implNode() {}
func (n *ExprStmt) implStmt() {}

// IfStmt is `if (Cond) Then [else Else]`.
type IfStmt struct {
	base
	Cond Expr
	Then Stmt
	Else Stmt // nil if absent
}

func (n *IfStmt) implNode() {}
func (n *IfStmt) implStmt() {}

// ForStmt is `for (Init; Cond; Post) Body`.
type ForStmt struct {
	base
	Init Stmt // DeclStmt or ExprStmt, nil if absent
	Cond Expr
	Post Expr
	Body Stmt
}

func (n *ForStmt) implNode() {}
func (n *ForStmt) implStmt() {}

// WhileStmt is `while (Cond) Body`.
type WhileStmt struct {
	base
	Cond Expr
	Body Stmt
}

func (n *WhileStmt) implNode() {}
func (n *WhileStmt) implStmt() {}

// DoStmt is `do Body while (Cond);`.
type DoStmt struct {
	base
	Body Stmt
	Cond Expr
}

func (n *DoStmt) implNode() {}
func (n *DoStmt) implStmt() {}

// SwitchStmt is `switch (Tag) Body`.
type SwitchStmt struct {
	base
	Tag  Expr
	Body Stmt
}

func (n *SwitchStmt) implNode() {}
func (n *SwitchStmt) implStmt() {}

// CaseStmt is `case Value:` or `default:` (Value nil).
type CaseStmt struct {
	base
	Value Expr
}

func (n *CaseStmt) implNode() {}
func (n *CaseStmt) implStmt() {}

// ReturnStmt is `return [Value];`.
type ReturnStmt struct {
	base
	Value Expr // nil for `return;`
}

func (n *ReturnStmt) implNode() {}
func (n *ReturnStmt) implStmt() {}

// BreakStmt is `break;`.
type BreakStmt struct{ base }

func (n *BreakStmt) implNode() {}
func (n *BreakStmt) implStmt() {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{ base }

func (n *ContinueStmt) implNode() {}
func (n *ContinueStmt) implStmt() {}

// GotoStmt is `goto Label;`.
type GotoStmt struct {
	base
	Label string
}

func (n *GotoStmt) implNode() {}
func (n *GotoStmt) implStmt() {}

// LabelStmt is `Label: Stmt`.
type LabelStmt struct {
	base
	Label string
	Stmt  Stmt
}

func (n *LabelStmt) implNode() {}
func (n *LabelStmt) implStmt() {}

// TryStmt is `try Block catch (...) Handler ...`.
type TryStmt struct {
	base
	Body     *Block
	Handlers []CatchHandler
}

func (n *TryStmt) implNode() {}
func (n *TryStmt) implStmt() {}

// CatchHandler is one `catch (Type Name) Body` clause; CatchAll is true
// for `catch (...)`.
type CatchHandler struct {
	Type     *TypeSpec
	Name     string
	Body     *Block
	CatchAll bool
}

// ThrowStmt is `throw [Value];` (Value nil means rethrow `throw;`).
type ThrowStmt struct {
	base
	Value Expr
}

func (n *ThrowStmt) implNode() {}
func (n *ThrowStmt) implStmt() {}

// SehTryStmt is `__try Body (__except(Filter) Except | __finally Finally)`.
type SehTryStmt struct {
	base
	Body     *Block
	Filter   Expr // non-nil for __except
	Except   *Block
	Finally  *Block
}

func (n *SehTryStmt) implNode() {}
func (n *SehTryStmt) implStmt() {}

// SehLeaveStmt is `__leave;`.
type SehLeaveStmt struct{ base }

func (n *SehLeaveStmt) implNode() {}
func (n *SehLeaveStmt) implStmt() {}

// ---- Expressions ----

// NumericLit is an integer or floating-point literal.
type NumericLit struct {
	base
	IsFloat  bool
	IntVal   int64
	FloatVal float64
	Suffix   string // "u", "ll", "f", user-defined-literal suffix, ...
}

func (n *NumericLit) implNode() {}
func (n *NumericLit) implExpr() {}

// BoolLit is `true`/`false`.
type BoolLit struct {
	base
	Value bool
}

func (n *BoolLit) implNode() {}
func (n *BoolLit) implExpr() {}

// StringLit is a string literal, including wide/UTF prefixes.
type StringLit struct {
	base
	Value  string
	Prefix string // "", "L", "u8", "u", "U"
}

func (n *StringLit) implNode() {}
func (n *StringLit) implExpr() {}

// NullptrLit is `nullptr`.
type NullptrLit struct{ base }

func (n *NullptrLit) implNode() {}
func (n *NullptrLit) implExpr() {}

// Ident is a (possibly qualified) identifier reference.
type Ident struct {
	base
	Name         string
	TemplateArgs []Expr // non-nil for an explicit template-id `f<int>`
}

func (n *Ident) implNode() {}
func (n *Ident) implExpr() {}

// QualifiedIdent is `A::B::name`.
type QualifiedIdent struct {
	base
	Qualifiers []string
	Name       string
	IsDependentTypename bool // `typename T::x`
}

func (n *QualifiedIdent) implNode() {}
func (n *QualifiedIdent) implExpr() {}

// UnaryExpr is a prefix unary operator.
type UnaryExpr struct {
	base
	Op      UnaryOp
	Operand Expr
}

func (n *UnaryExpr) implNode() {}
func (n *UnaryExpr) implExpr() {}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
	UnaryAddr      // &x
	UnaryDeref     // *x
	UnaryPreIncr
	UnaryPreDecr
	UnaryPlus     // +x (decays, e.g. non-capturing lambda to function pointer)
	UnaryAddressOfBuiltin // __builtin_addressof, bypasses operator& overloads
)

// PostfixExpr is a postfix unary operator (`x++`, `x--`).
type PostfixExpr struct {
	base
	Op      PostfixOp
	Operand Expr
}

func (n *PostfixExpr) implNode() {}
func (n *PostfixExpr) implExpr() {}

// PostfixOp enumerates postfix operators.
type PostfixOp int

const (
	PostfixIncr PostfixOp = iota
	PostfixDecr
)

// BinaryExpr is a binary operator.
type BinaryExpr struct {
	base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) implNode() {}
func (n *BinaryExpr) implExpr() {}

// BinaryOp enumerates binary (and assignment/comma) operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpModAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
	OpShlAssign
	OpShrAssign
	OpComma
)

// TernaryExpr is `Cond ? Then : Else`.
type TernaryExpr struct {
	base
	Cond Expr
	Then Expr
	Else Expr
}

func (n *TernaryExpr) implNode() {}
func (n *TernaryExpr) implExpr() {}

// MemberExpr is `Base.Name` or `Base->Name`.
type MemberExpr struct {
	base
	Base    Expr
	Name    string
	Arrow   bool
}

func (n *MemberExpr) implNode() {}
func (n *MemberExpr) implExpr() {}

// PointerToMemberExpr is `Base.*Member` or `Base->*Member`.
type PointerToMemberExpr struct {
	base
	Base   Expr
	Member Expr
	Arrow  bool
}

func (n *PointerToMemberExpr) implNode() {}
func (n *PointerToMemberExpr) implExpr() {}

// IndexExpr is `Base[Index]`.
type IndexExpr struct {
	base
	Base  Expr
	Index Expr
}

func (n *IndexExpr) implNode() {}
func (n *IndexExpr) implExpr() {}

// CallExpr is `Callee(Args...)`, a free function call.
type CallExpr struct {
	base
	Callee Expr
	Args   []Expr
}

func (n *CallExpr) implNode() {}
func (n *CallExpr) implExpr() {}

// MemberCallExpr is `Base.Method(Args...)` or `Base->Method(Args...)`.
type MemberCallExpr struct {
	base
	Base   Expr
	Method string
	Arrow  bool
	Args   []Expr
}

func (n *MemberCallExpr) implNode() {}
func (n *MemberCallExpr) implExpr() {}

// ConstructorCallExpr is `Type(Args...)` or `Type{Args...}` used as a
// direct/aggregate initializer or temporary construction.
type ConstructorCallExpr struct {
	base
	Type  *TypeSpec
	Args  []Expr
	Brace bool // true for `{}` list-init syntax
}

func (n *ConstructorCallExpr) implNode() {}
func (n *ConstructorCallExpr) implExpr() {}

// CastKind distinguishes the four named C++ cast forms.
type CastKind int

const (
	StaticCast CastKind = iota
	DynamicCast
	ConstCast
	ReinterpretCast
	CStyleCast
)

// CastExpr is `kind_cast<Type>(Operand)` (or a C-style `(Type)Operand`).
type CastExpr struct {
	base
	Kind    CastKind
	Type    *TypeSpec
	Operand Expr
}

func (n *CastExpr) implNode() {}
func (n *CastExpr) implExpr() {}

// SizeofExpr is `sizeof(Type)` or `sizeof Expr`.
type SizeofExpr struct {
	base
	Type *TypeSpec // non-nil for sizeof(Type)
	Expr Expr       // non-nil for sizeof expr
}

func (n *SizeofExpr) implNode() {}
func (n *SizeofExpr) implExpr() {}

// LambdaCapture is one entry of a lambda's capture list.
type LambdaCapture struct {
	Name   string // empty for `=`/`&` default capture
	ByRef  bool
	IsThis bool
	IsDefault bool
}

// LambdaExpr is `[captures](params) -> ret { body }`.
type LambdaExpr struct {
	base
	Captures   []LambdaCapture
	Params     []Param
	ReturnType *TypeSpec // nil for deduced
	Body       *Block
}

func (n *LambdaExpr) implNode() {}
func (n *LambdaExpr) implExpr() {}
