package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders node as an indented tree, one node per line.
func Dump(node Node) string {
	var b strings.Builder
	dump(&b, node, 0)
	return b.String()
}

func dump(b *strings.Builder, node Node, depth int) {
	pad := strings.Repeat("  ", depth)
	line := func(format string, args ...any) {
		b.WriteString(pad)
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}

	switch n := node.(type) {
	case nil:
		line("<nil>")
	case *IntLiteral:
		line("Int %d", n.Value)
	case *FloatLiteral:
		line("Float %s", strconv.FormatFloat(n.Value, 'f', -1, 64))
	case *BoolLiteral:
		line("Bool %t", n.Value)
	case *BinaryExpr:
		line("BinaryExpr %s", n.Op)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Comparison:
		line("Comparison %s", n.Op)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Logical:
		line("Logical %s", n.Op)
		dump(b, n.Left, depth+1)
		dump(b, n.Right, depth+1)
	case *Not:
		line("Not")
		dump(b, n.Operand, depth+1)
	case *Unary:
		line("Unary %s", n.Op)
		dump(b, n.Operand, depth+1)
	case *Variable:
		line("Variable %s", n.Name)
	case *Assign:
		line("Assign %s", n.Name)
		dump(b, n.Value, depth+1)
	case *Block:
		line("Block")
		for _, s := range n.Statements {
			dump(b, s, depth+1)
		}
	case *If:
		if n.Else == nil {
			line("If")
		} else {
			line("IfElse")
		}
		dump(b, n.Cond, depth+1)
		dump(b, n.Then, depth+1)
		if n.Else != nil {
			dump(b, n.Else, depth+1)
		}
	case *Function:
		line("Function %s(%s)", n.Name, strings.Join(n.Params, ", "))
		dump(b, n.Body, depth+1)
	case *Call:
		line("Call %s", n.Name)
		for _, a := range n.Args {
			dump(b, a, depth+1)
		}
	case *Return:
		line("Return")
		dump(b, n.Value, depth+1)
	case *BuiltinOp:
		line("BuiltinOp %s", n.Op)
		for _, a := range n.Args {
			dump(b, a, depth+1)
		}
	case *Object:
		line("Object")
		for _, e := range n.Entries {
			b.WriteString(pad)
			fmt.Fprintf(b, "  %s:\n", e.Key)
			dump(b, e.Value, depth+2)
		}
	}
}
