// Package formatter implements the Ember source code formatter.
package formatter

import (
	"math"
	"strconv"
	"strings"

	"github.com/thomasrohde/ember/pkg/ast"
)

const indent = "  "

// Binding tiers, higher binds tighter. They mirror the parser's ladder.
const (
	precLogic = iota + 1
	precNot
	precCompare
	precSum
	precProduct
	precSign
	precPower
	precAtom
)

var binaryPrec = map[ast.BinaryOp]int{
	ast.OpAdd: precSum, ast.OpSub: precSum,
	ast.OpMul: precProduct, ast.OpDiv: precProduct, ast.OpMod: precProduct,
	ast.OpPow: precPower,
}

func precOf(n ast.Node) int {
	switch e := n.(type) {
	case *ast.Logical:
		return precLogic
	case *ast.Not:
		return precNot
	case *ast.Comparison:
		return precCompare
	case *ast.BinaryExpr:
		return binaryPrec[e.Op]
	case *ast.Unary:
		return precSign
	}
	return precAtom
}

// Format pretty-prints a program back to source code.
func Format(program *ast.Block) string {
	if program == nil {
		return ""
	}
	lines := make([]string, len(program.Statements))
	for i, s := range program.Statements {
		lines[i] = formatStmt(s, 0)
	}
	return strings.Join(lines, "\n") + "\n"
}

// HasComments reports whether source contains '#' comments, which Format
// does not preserve.
func HasComments(source string) bool {
	return strings.Contains(source, "#")
}

func formatStmt(s ast.Node, depth int) string {
	switch stmt := s.(type) {
	case *ast.Assign:
		return stmt.Name + " = " + formatStmt(stmt.Value, depth)
	case *ast.If:
		return formatIf(stmt, depth)
	case *ast.Function:
		head := "fn " + stmt.Name + ":"
		if len(stmt.Params) > 0 {
			head += " " + strings.Join(stmt.Params, ", ")
		}
		return head + " => " + formatBranch(stmt.Body, depth)
	case *ast.Return:
		return "return " + formatExpr(stmt.Value, precLogic)
	case *ast.Block:
		return formatBlock(stmt, depth)
	}
	return formatExpr(s, precLogic)
}

func formatIf(n *ast.If, depth int) string {
	then := n.Then
	if n.Else != nil && danglingIf(then) {
		// A trailing if without else would claim our else part.
		then = &ast.Block{Span: then.NodeSpan(), Statements: []ast.Node{then}}
	}
	out := "if " + formatExpr(n.Cond, precLogic) + " => " + formatBranch(then, depth)
	if n.Else == nil {
		return out
	}
	return out + " else " + formatBranch(n.Else, depth)
}

// danglingIf reports whether the source for n ends in an unbraced if
// statement that has no else part.
func danglingIf(n ast.Node) bool {
	switch s := n.(type) {
	case *ast.If:
		if s.Else == nil {
			return true
		}
		return danglingIf(s.Else)
	case *ast.Assign:
		return danglingIf(s.Value)
	case *ast.Function:
		return danglingIf(s.Body)
	}
	return false
}

func formatBranch(n ast.Node, depth int) string {
	if b, ok := n.(*ast.Block); ok {
		return formatBlock(b, depth)
	}
	return formatStmt(n, depth)
}

func formatBlock(b *ast.Block, depth int) string {
	inner := strings.Repeat(indent, depth+1)
	lines := make([]string, len(b.Statements))
	for i, s := range b.Statements {
		lines[i] = inner + formatStmt(s, depth+1)
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + strings.Repeat(indent, depth) + "}"
}

// formatExpr renders e, parenthesized when it binds looser than min.
func formatExpr(e ast.Node, min int) string {
	out := formatBare(e)
	if precOf(e) < min {
		return "(" + out + ")"
	}
	return out
}

func formatBare(e ast.Node) string {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		return strconv.FormatInt(expr.Value, 10)
	case *ast.FloatLiteral:
		return formatFloatLiteral(expr.Value)
	case *ast.BoolLiteral:
		if expr.Value {
			return "true"
		}
		return "false"
	case *ast.Variable:
		return expr.Name
	case *ast.Logical:
		return formatExpr(expr.Left, precLogic) + " " + string(expr.Op) + " " + formatExpr(expr.Right, precNot)
	case *ast.Not:
		return "not " + formatExpr(expr.Operand, precNot)
	case *ast.Comparison:
		return formatExpr(expr.Left, precSum) + " " + string(expr.Op) + " " + formatExpr(expr.Right, precSum)
	case *ast.BinaryExpr:
		p := binaryPrec[expr.Op]
		if expr.Op == ast.OpPow {
			// base is a factor, the exponent may carry a sign
			return formatExpr(expr.Left, precAtom) + " ** " + formatExpr(expr.Right, precSign)
		}
		return formatExpr(expr.Left, p) + " " + string(expr.Op) + " " + formatExpr(expr.Right, p+1)
	case *ast.Unary:
		return string(expr.Op) + formatExpr(expr.Operand, precSign)
	case *ast.Call:
		return expr.Name + "(" + formatArgs(expr.Args) + ")"
	case *ast.BuiltinOp:
		return string(expr.Op) + "(" + formatArgs(expr.Args) + ")"
	case *ast.Object:
		return formatObject(expr)
	}
	return ""
}

func formatArgs(args []ast.Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatExpr(a, precLogic)
	}
	return strings.Join(parts, ", ")
}

func formatObject(obj *ast.Object) string {
	if len(obj.Entries) == 0 {
		return "{}"
	}
	parts := make([]string, len(obj.Entries))
	for i, e := range obj.Entries {
		if v, ok := e.Value.(*ast.Variable); ok && e.Shorthand && v.Name == e.Key {
			parts[i] = e.Key
			continue
		}
		parts[i] = e.Key + ": " + formatExpr(e.Value, precLogic)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatFloatLiteral(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	raw := strconv.FormatFloat(value, 'g', -1, 64)
	// Check if it's in scientific notation
	if strings.ContainsAny(raw, "eE") {
		raw = strconv.FormatFloat(value, 'f', -1, 64)
	}
	if !strings.Contains(raw, ".") {
		raw += ".0"
	}
	return raw
}
