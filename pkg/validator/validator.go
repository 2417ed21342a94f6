// Package validator implements static checks over parsed Ember programs.
//
// The parser already rejects unknown calls and misplaced returns; the
// validator reports problems that would only surface at run time: arity
// mismatches against statically known functions, unreachable statements and
// function definitions assigned to variables.
package validator

import (
	"fmt"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/diagnostics"
)

// fixedArity lists builtins that take an exact argument count.
var fixedArity = map[ast.BuiltinKind]int{
	ast.BuiltinDiv: 2,
}

type scope struct {
	vars   map[string]bool
	fns    map[string]*ast.Function
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{
		vars:   make(map[string]bool),
		fns:    make(map[string]*ast.Function),
		parent: parent,
	}
}

func (s *scope) hasVar(name string) bool {
	if s.vars[name] {
		return true
	}
	if s.parent != nil {
		return s.parent.hasVar(name)
	}
	return false
}

func (s *scope) fn(name string) *ast.Function {
	if fn, ok := s.fns[name]; ok {
		return fn
	}
	if s.parent != nil {
		return s.parent.fn(name)
	}
	return nil
}

type validator struct {
	diags []diagnostics.Diagnostic
	known ast.Scope
}

// Validate performs static analysis on a program and returns diagnostics
// in source order.
func Validate(program *ast.Block) []diagnostics.Diagnostic {
	return ValidateWith(program, nil)
}

// ValidateWith is Validate with known supplying functions defined outside
// the program, such as those of earlier REPL lines.
func ValidateWith(program *ast.Block, known ast.Scope) []diagnostics.Diagnostic {
	v := &validator{known: known}
	if program == nil {
		return nil
	}
	root := newScope(nil)
	root.vars["null"] = true
	v.validateBlock(program, root)
	return v.diags
}

func (v *validator) lookupFn(name string, sc *scope) *ast.Function {
	if fn := sc.fn(name); fn != nil {
		return fn
	}
	if v.known != nil {
		if fn, ok := v.known.ResolveFunction(name); ok {
			return fn
		}
	}
	return nil
}

func (v *validator) addDiag(code, msg string, span ast.Span, hint string) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, hint))
}

func (v *validator) validateBlock(b *ast.Block, sc *scope) {
	for i, stmt := range b.Statements {
		v.validate(stmt, sc)
		if _, ok := stmt.(*ast.Return); ok && i < len(b.Statements)-1 {
			next := b.Statements[i+1]
			v.addDiag(diagnostics.EUnreachable, "unreachable statement after return", next.NodeSpan(),
				"remove the statements after the return or move the return to the end of the block")
			// Keep checking the dead statements for other problems.
			for _, rest := range b.Statements[i+1:] {
				v.validate(rest, sc)
			}
			return
		}
	}
}

func (v *validator) validate(node ast.Node, sc *scope) {
	switch n := node.(type) {
	case nil, *ast.IntLiteral, *ast.FloatLiteral, *ast.BoolLiteral:
		// literals are always valid

	case *ast.BinaryExpr:
		v.validate(n.Left, sc)
		v.validate(n.Right, sc)

	case *ast.Comparison:
		v.validate(n.Left, sc)
		v.validate(n.Right, sc)

	case *ast.Logical:
		v.validate(n.Left, sc)
		v.validate(n.Right, sc)

	case *ast.Not:
		v.validate(n.Operand, sc)

	case *ast.Unary:
		v.validate(n.Operand, sc)

	case *ast.Variable:
		// A bare function name is a call without arguments.
		if sc.hasVar(n.Name) {
			return
		}
		if fn := v.lookupFn(n.Name, sc); fn != nil && len(fn.Params) > 0 {
			v.arityMismatch(n.Name, len(fn.Params), 0, n.Span)
		}

	case *ast.Assign:
		if fn, ok := n.Value.(*ast.Function); ok {
			v.addDiag(diagnostics.EAssignFn,
				fmt.Sprintf("cannot assign function definition '%s' to variable '%s'", fn.Name, n.Name), n.Span,
				fmt.Sprintf("use '%s = fn: ...' or define 'fn %s: ...' on its own line", n.Name, fn.Name))
		}
		v.validate(n.Value, sc)
		sc.vars[n.Name] = true

	case *ast.Block:
		v.validateBlock(n, sc)

	case *ast.If:
		v.validate(n.Cond, sc)
		v.validate(n.Then, sc)
		v.validate(n.Else, sc)

	case *ast.Function:
		sc.fns[n.Name] = n
		body := newScope(sc)
		for _, p := range n.Params {
			body.vars[p] = true
		}
		v.validate(n.Body, body)

	case *ast.Call:
		fn := v.lookupFn(n.Name, sc)
		if fn != nil && len(fn.Params) != len(n.Args) {
			v.arityMismatch(n.Name, len(fn.Params), len(n.Args), n.Span)
		}
		for _, arg := range n.Args {
			v.validate(arg, sc)
		}

	case *ast.Return:
		v.validate(n.Value, sc)

	case *ast.BuiltinOp:
		if want, ok := fixedArity[n.Op]; ok && len(n.Args) != want {
			v.addDiag(diagnostics.EArity,
				fmt.Sprintf("`%s` accepts exactly %d arguments, got %d", n.Op, want, len(n.Args)), n.Span, "")
		}
		for _, arg := range n.Args {
			v.validate(arg, sc)
		}

	case *ast.Object:
		for _, e := range n.Entries {
			v.validate(e.Value, sc)
		}
	}
}

func (v *validator) arityMismatch(name string, want, got int, span ast.Span) {
	v.addDiag(diagnostics.EArity,
		fmt.Sprintf("'%s' expects %d %s, got %d", name, want, plural(want, "argument"), got), span, "")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
