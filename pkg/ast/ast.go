// Package ast defines the syntax tree for CherryScript programs.
//
// Statements and expressions are sealed interfaces: every node type lives in
// this package and carries a Span pointing back at the source line it was
// parsed from, so diagnostics can name their origin.
package ast

import "fmt"

// Span locates a node in the original source.
type Span struct {
	File string
	Line int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("line %d", s.Line)
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Node is implemented by all syntax tree nodes.
type Node interface {
	Pos() Span
}

// Stmt is the sealed statement interface.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the sealed expression interface.
type Expr interface {
	Node
	exprNode()
}

// Program is an ordered sequence of top-level statements.
type Program struct {
	Statements []Stmt
}

// ---- statements ----

// VarDecl introduces or rebinds a variable: `var x = e` or `let x = e`.
type VarDecl struct {
	Name string
	Expr Expr
	Span Span
}

// Assign rebinds an existing (or new) variable: `x = e`.
type Assign struct {
	Name string
	Expr Expr
	Span Span
}

// CompoundAssign applies a binary operator in place: `x += e` and friends.
type CompoundAssign struct {
	Name string
	Op   BinaryOp
	Expr Expr
	Span Span
}

// IfClause is one arm of an if / else if chain. A nil Cond marks a final else.
type IfClause struct {
	Cond Expr
	Body []Stmt
}

type If struct {
	Clauses []IfClause
	Span    Span
}

type While struct {
	Cond Expr
	Body []Stmt
	Span Span
}

// ForIn iterates a collection: `for item in seq { ... }`.
type ForIn struct {
	Name string
	Seq  Expr
	Body []Stmt
	Span Span
}

// ForClassic is the three-clause form: `for init; cond; post { ... }`.
// Any of the three header slots may be nil.
type ForClassic struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body []Stmt
	Span Span
}

type FnDecl struct {
	Name   string
	Params []string
	Body   []Stmt
	Span   Span
}

// Return carries an optional value; a bare `return` yields null.
type Return struct {
	Expr Expr
	Span Span
}

// Undeploy stops a deployed endpoint. Target may be any expression that
// evaluates to a controller handle or URL string; Timeout is optional.
type Undeploy struct {
	Target  Expr
	Timeout Expr
	Span    Span
}

// ExprStmt evaluates an expression for its effect and discards the result.
type ExprStmt struct {
	Expr Expr
	Span Span
}

func (s *VarDecl) Pos() Span        { return s.Span }
func (s *Assign) Pos() Span         { return s.Span }
func (s *CompoundAssign) Pos() Span { return s.Span }
func (s *If) Pos() Span             { return s.Span }
func (s *While) Pos() Span          { return s.Span }
func (s *ForIn) Pos() Span          { return s.Span }
func (s *ForClassic) Pos() Span     { return s.Span }
func (s *FnDecl) Pos() Span         { return s.Span }
func (s *Return) Pos() Span         { return s.Span }
func (s *Undeploy) Pos() Span       { return s.Span }
func (s *ExprStmt) Pos() Span       { return s.Span }

func (*VarDecl) stmtNode()        {}
func (*Assign) stmtNode()         {}
func (*CompoundAssign) stmtNode() {}
func (*If) stmtNode()             {}
func (*While) stmtNode()          {}
func (*ForIn) stmtNode()          {}
func (*ForClassic) stmtNode()     {}
func (*FnDecl) stmtNode()         {}
func (*Return) stmtNode()         {}
func (*Undeploy) stmtNode()       {}
func (*ExprStmt) stmtNode()       {}

// ---- expressions ----

type NullLit struct{ Span Span }

type BoolLit struct {
	Value bool
	Span  Span
}

type IntLit struct {
	Value int64
	Span  Span
}

type FloatLit struct {
	Value float64
	Span  Span
}

// StringLit is a plain string literal with escapes already resolved.
type StringLit struct {
	Value string
	Span  Span
}

// TemplatePart is either literal Text or an interpolated Expr, never both.
type TemplatePart struct {
	Text string
	Expr Expr
}

// TemplateLit is a backtick string with ${...} interpolation.
type TemplateLit struct {
	Parts []TemplatePart
	Span  Span
}

type ArrayLit struct {
	Elems []Expr
	Span  Span
}

// DictEntry keys are expressions; evaluation coerces them to strings.
type DictEntry struct {
	Key   Expr
	Value Expr
}

type DictLit struct {
	Entries []DictEntry
	Span    Span
}

type Ident struct {
	Name string
	Span Span
}

// Member is a dotted path rooted at an identifier: `a.b.c`.
type Member struct {
	Path []string
	Span Span
}

// Subscript indexes an array, dict, or string.
type Subscript struct {
	Base  Expr
	Index Expr
	Span  Span
}

// Call invokes a builtin, collaborator entry point, method, or user function.
// Path holds the dotted name split on dots; len(Path) == 1 for plain calls.
type Call struct {
	Path []string
	Args []Expr
	Span Span
}

type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

type Unary struct {
	Op   UnaryOp
	Expr Expr
	Span Span
}

type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv      // true division, always float
	OpFloorDiv // floor division
	OpMod
	OpPow
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpFloorDiv:
		return "//"
	case OpMod:
		return "%"
	case OpPow:
		return "**"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return "?"
}

type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Span  Span
}

// Ternary is the Python-ordered conditional: `then if cond else otherwise`.
type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
	Span Span
}

func (e *NullLit) Pos() Span     { return e.Span }
func (e *BoolLit) Pos() Span     { return e.Span }
func (e *IntLit) Pos() Span      { return e.Span }
func (e *FloatLit) Pos() Span    { return e.Span }
func (e *StringLit) Pos() Span   { return e.Span }
func (e *TemplateLit) Pos() Span { return e.Span }
func (e *ArrayLit) Pos() Span    { return e.Span }
func (e *DictLit) Pos() Span     { return e.Span }
func (e *Ident) Pos() Span       { return e.Span }
func (e *Member) Pos() Span      { return e.Span }
func (e *Subscript) Pos() Span   { return e.Span }
func (e *Call) Pos() Span        { return e.Span }
func (e *Unary) Pos() Span       { return e.Span }
func (e *Binary) Pos() Span      { return e.Span }
func (e *Ternary) Pos() Span     { return e.Span }

func (*NullLit) exprNode()     {}
func (*BoolLit) exprNode()     {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*StringLit) exprNode()   {}
func (*TemplateLit) exprNode() {}
func (*ArrayLit) exprNode()    {}
func (*DictLit) exprNode()     {}
func (*Ident) exprNode()       {}
func (*Member) exprNode()      {}
func (*Subscript) exprNode()   {}
func (*Call) exprNode()        {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Ternary) exprNode()     {}
