// Package ast defines the Ember language AST node types.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all AST nodes. The set of
// implementations is closed; consumers switch over the concrete types.
type Node interface {
	Kind() string
	NodeSpan() Span
	astNode() // sealed marker
}

// Scope is the lexical environment a function body was parsed in.
// It is implemented by *env.Env.
type Scope interface {
	ResolveFunction(name string) (*Function, bool)
}

// BinaryOp represents an arithmetic operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpMod BinaryOp = "%"
	OpPow BinaryOp = "**"
)

// CompareOp represents a comparison operator.
type CompareOp string

const (
	OpGt   CompareOp = ">"
	OpGtEq CompareOp = ">="
	OpLt   CompareOp = "<"
	OpLtEq CompareOp = "<="
	OpEqEq CompareOp = "=="
	OpNeq  CompareOp = "!="
)

// LogicalOp represents a binary logical operator.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// UnaryOp represents a sign prefix.
type UnaryOp string

const (
	OpPlus  UnaryOp = "+"
	OpMinus UnaryOp = "-"
)

// BuiltinKind names one of the variadic built-in operators.
type BuiltinKind string

const (
	BuiltinAdd BuiltinKind = "add"
	BuiltinSub BuiltinKind = "sub"
	BuiltinMul BuiltinKind = "mul"
	BuiltinDiv BuiltinKind = "div"
)

// Builtins maps the source spelling of each built-in to its kind.
var Builtins = map[string]BuiltinKind{
	"add": BuiltinAdd,
	"sub": BuiltinSub,
	"mul": BuiltinMul,
	"div": BuiltinDiv,
}

// --- Literals ---

type IntLiteral struct {
	Span  Span
	Value int64
}

func (n *IntLiteral) Kind() string   { return "IntLiteral" }
func (n *IntLiteral) NodeSpan() Span { return n.Span }
func (n *IntLiteral) astNode()       {}

type FloatLiteral struct {
	Span  Span
	Value float64
}

func (n *FloatLiteral) Kind() string   { return "FloatLiteral" }
func (n *FloatLiteral) NodeSpan() Span { return n.Span }
func (n *FloatLiteral) astNode()       {}

type BoolLiteral struct {
	Span  Span
	Value bool
}

func (n *BoolLiteral) Kind() string   { return "BoolLiteral" }
func (n *BoolLiteral) NodeSpan() Span { return n.Span }
func (n *BoolLiteral) astNode()       {}

// --- Operators ---

type BinaryExpr struct {
	Span  Span
	Op    BinaryOp
	Left  Node
	Right Node
}

func (n *BinaryExpr) Kind() string   { return "BinaryExpr" }
func (n *BinaryExpr) NodeSpan() Span { return n.Span }
func (n *BinaryExpr) astNode()       {}

type Comparison struct {
	Span  Span
	Op    CompareOp
	Left  Node
	Right Node
}

func (n *Comparison) Kind() string   { return "Comparison" }
func (n *Comparison) NodeSpan() Span { return n.Span }
func (n *Comparison) astNode()       {}

type Logical struct {
	Span  Span
	Op    LogicalOp
	Left  Node
	Right Node
}

func (n *Logical) Kind() string   { return "Logical" }
func (n *Logical) NodeSpan() Span { return n.Span }
func (n *Logical) astNode()       {}

type Not struct {
	Span    Span
	Operand Node
}

func (n *Not) Kind() string   { return "Not" }
func (n *Not) NodeSpan() Span { return n.Span }
func (n *Not) astNode()       {}

type Unary struct {
	Span    Span
	Op      UnaryOp
	Operand Node
}

func (n *Unary) Kind() string   { return "Unary" }
func (n *Unary) NodeSpan() Span { return n.Span }
func (n *Unary) astNode()       {}

// --- Names ---

type Variable struct {
	Span Span
	Name string
}

func (n *Variable) Kind() string   { return "Variable" }
func (n *Variable) NodeSpan() Span { return n.Span }
func (n *Variable) astNode()       {}

type Assign struct {
	Span  Span
	Name  string
	Value Node
}

func (n *Assign) Kind() string   { return "Assign" }
func (n *Assign) NodeSpan() Span { return n.Span }
func (n *Assign) astNode()       {}

// --- Statements ---

// Block is an ordered, non-empty statement list. A whole program is a Block.
type Block struct {
	Span       Span
	Statements []Node
}

func (n *Block) Kind() string   { return "Block" }
func (n *Block) NodeSpan() Span { return n.Span }
func (n *Block) astNode()       {}

// If is the conditional statement. A nil Else is the plain if form.
type If struct {
	Span Span
	Cond Node
	Then Node
	Else Node
}

func (n *If) Kind() string   { return "If" }
func (n *If) NodeSpan() Span { return n.Span }
func (n *If) astNode()       {}

// Function is a named function definition. Scope is the environment the
// body was parsed in; it is set once by the parser.
type Function struct {
	Span   Span
	Name   string
	Params []string
	Body   Node
	Scope  Scope
}

func (n *Function) Kind() string   { return "Function" }
func (n *Function) NodeSpan() Span { return n.Span }
func (n *Function) astNode()       {}

type Call struct {
	Span Span
	Name string
	Args []Node
}

func (n *Call) Kind() string   { return "Call" }
func (n *Call) NodeSpan() Span { return n.Span }
func (n *Call) astNode()       {}

type Return struct {
	Span  Span
	Value Node
}

func (n *Return) Kind() string   { return "Return" }
func (n *Return) NodeSpan() Span { return n.Span }
func (n *Return) astNode()       {}

type BuiltinOp struct {
	Span Span
	Op   BuiltinKind
	Args []Node
}

func (n *BuiltinOp) Kind() string   { return "BuiltinOp" }
func (n *BuiltinOp) NodeSpan() Span { return n.Span }
func (n *BuiltinOp) astNode()       {}

// --- Objects ---

// ObjectEntry is one key of an object literal. Shorthand entries carry a
// Variable of the same name as their Value.
type ObjectEntry struct {
	Span      Span
	Key       string
	Value     Node
	Shorthand bool
}

type Object struct {
	Span    Span
	Entries []ObjectEntry
}

func (n *Object) Kind() string   { return "Object" }
func (n *Object) NodeSpan() Span { return n.Span }
func (n *Object) astNode()       {}

// Get returns the value of the first entry with the given key.
func (n *Object) Get(key string) (Node, bool) {
	for _, e := range n.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
