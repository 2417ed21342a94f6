package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/env"
	"github.com/thomasrohde/ember/pkg/lexer"
	"github.com/thomasrohde/ember/pkg/parser"
)

// astOpts compares trees by shape only.
var astOpts = cmp.Options{
	cmpopts.IgnoreTypes(ast.Span{}),
	cmpopts.IgnoreFields(ast.Function{}, "Scope"),
	cmpopts.EquateEmpty(),
}

// helper: parse source against a fresh global scope and fail on error
func mustParse(t *testing.T, source string) (*ast.Block, *env.Env) {
	t.Helper()
	global := env.NewGlobal()
	block, err := parser.Parse(source, "test.em", global)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if block == nil {
		t.Fatal("expected non-nil block")
	}
	return block, global
}

// helper: parse source, expect failure and return the diagnostic
func mustFail(t *testing.T, source string, code string) diagnostics.Diagnostic {
	t.Helper()
	block, err := parser.Parse(source, "test.em", env.NewGlobal())
	if err == nil {
		t.Fatalf("expected parse of %q to fail, got:\n%s", source, ast.Dump(block))
	}
	d, ok := parser.Diagnostic(err)
	if !ok {
		t.Fatalf("error %T carries no diagnostic", err)
	}
	if d.Code != code {
		t.Errorf("got code %s (%s), want %s", d.Code, d.Message, code)
	}
	return d
}

// helper: parse a single-statement program and return the statement
func single(t *testing.T, source string) ast.Node {
	t.Helper()
	block, _ := mustParse(t, source)
	if len(block.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(block.Statements))
	}
	return block.Statements[0]
}

func intLit(v int64) *ast.IntLiteral { return &ast.IntLiteral{Value: v} }
func variable(n string) *ast.Variable { return &ast.Variable{Name: n} }
func bin(op ast.BinaryOp, l, r ast.Node) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

// ---- Literals ----

func TestLiterals(t *testing.T) {
	tests := []struct {
		source string
		want   ast.Node
	}{
		{"42", intLit(42)},
		{"3.5", &ast.FloatLiteral{Value: 3.5}},
		{"true", &ast.BoolLiteral{Value: true}},
		{"false", &ast.BoolLiteral{Value: false}},
		{"x", variable("x")},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, single(t, tt.source), astOpts); diff != "" {
				t.Errorf("AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntOutOfRange(t *testing.T) {
	mustFail(t, "99999999999999999999", diagnostics.ESyntax)
}

// ---- Precedence ----

func TestPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   ast.Node
	}{
		{"mul binds tighter", "1 + 2 * 3", bin(ast.OpAdd, intLit(1), bin(ast.OpMul, intLit(2), intLit(3)))},
		{"left assoc sub", "10 - 4 - 3", bin(ast.OpSub, bin(ast.OpSub, intLit(10), intLit(4)), intLit(3))},
		{"parens", "(1 + 2) * 3", bin(ast.OpMul, bin(ast.OpAdd, intLit(1), intLit(2)), intLit(3))},
		{"mod in term tier", "7 % 3 * 2", bin(ast.OpMul, bin(ast.OpMod, intLit(7), intLit(3)), intLit(2))},
		{"pow right assoc", "2 ** 3 ** 2", bin(ast.OpPow, intLit(2), bin(ast.OpPow, intLit(3), intLit(2)))},
		{"pow over mul", "2 * 3 ** 2", bin(ast.OpMul, intLit(2), bin(ast.OpPow, intLit(3), intLit(2)))},
		{"sign over pow", "-2 ** 2", &ast.Unary{Op: ast.OpMinus, Operand: bin(ast.OpPow, intLit(2), intLit(2))}},
		{"negative exponent", "2 ** -1", bin(ast.OpPow, intLit(2), &ast.Unary{Op: ast.OpMinus, Operand: intLit(1)})},
		{"unary plus", "+x", &ast.Unary{Op: ast.OpPlus, Operand: variable("x")}},
		{
			"comparison over arithmetic", "x + 1 >= y * 2",
			&ast.Comparison{Op: ast.OpGtEq, Left: bin(ast.OpAdd, variable("x"), intLit(1)), Right: bin(ast.OpMul, variable("y"), intLit(2))},
		},
		{
			"not binds to comparison", "not x > 1 and y",
			&ast.Logical{
				Op:    ast.OpAnd,
				Left:  &ast.Not{Operand: &ast.Comparison{Op: ast.OpGt, Left: variable("x"), Right: intLit(1)}},
				Right: variable("y"),
			},
		},
		{
			"logic left assoc", "a or b and c",
			&ast.Logical{Op: ast.OpAnd, Left: &ast.Logical{Op: ast.OpOr, Left: variable("a"), Right: variable("b")}, Right: variable("c")},
		},
		{"bang is not", "!a", &ast.Not{Operand: variable("a")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, single(t, tt.source), astOpts); diff != "" {
				t.Errorf("AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComparisonsDoNotChain(t *testing.T) {
	d := mustFail(t, "1 < 2 < 3", diagnostics.ESyntax)
	if d.Span == nil || d.Span.StartCol != 7 {
		t.Errorf("expected error at the second '<', got %+v", d.Span)
	}
}

// ---- Statements ----

func TestScenarioProgram(t *testing.T) {
	block, _ := mustParse(t, "x = 5\ny = 3\nif x > y => z = x - y\nz")
	want := &ast.Block{Statements: []ast.Node{
		&ast.Assign{Name: "x", Value: intLit(5)},
		&ast.Assign{Name: "y", Value: intLit(3)},
		&ast.If{
			Cond: &ast.Comparison{Op: ast.OpGt, Left: variable("x"), Right: variable("y")},
			Then: &ast.Assign{Name: "z", Value: bin(ast.OpSub, variable("x"), variable("y"))},
		},
		variable("z"),
	}}
	if diff := cmp.Diff(want, block, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestBlankLinesAndComments(t *testing.T) {
	block, _ := mustParse(t, "\n\n# setup\nx = 1\n\n\ny = 2 # trailing\n\n")
	if len(block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block.Statements))
	}
}

func TestStatementTerminator(t *testing.T) {
	mustFail(t, "x = 1 y = 2", diagnostics.ESyntax)
}

func TestAssignChain(t *testing.T) {
	got := single(t, "a = b = 2")
	want := &ast.Assign{Name: "a", Value: &ast.Assign{Name: "b", Value: intLit(2)}}
	if diff := cmp.Diff(want, got, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignIf(t *testing.T) {
	got := single(t, "m = if a > b => a => b")
	want := &ast.Assign{Name: "m", Value: &ast.If{
		Cond: &ast.Comparison{Op: ast.OpGt, Left: variable("a"), Right: variable("b")},
		Then: variable("a"),
		Else: variable("b"),
	}}
	if diff := cmp.Diff(want, got, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

// ---- If ----

func TestIfForms(t *testing.T) {
	cond := &ast.Comparison{Op: ast.OpLt, Left: variable("x"), Right: intLit(0)}
	neg := &ast.Unary{Op: ast.OpMinus, Operand: variable("x")}

	tests := []struct {
		name   string
		source string
		want   ast.Node
	}{
		{"single", "if x < 0 => -x", &ast.If{Cond: cond, Then: neg}},
		{"colon", "if: x < 0 => -x", &ast.If{Cond: cond, Then: neg}},
		{"arrow else", "if x < 0 => -x => x", &ast.If{Cond: cond, Then: neg, Else: variable("x")}},
		{"keyword else", "if x < 0 => -x else x", &ast.If{Cond: cond, Then: neg, Else: variable("x")}},
		{
			"block", "if x < 0 => {\n  y = -x\n  y\n}",
			&ast.If{Cond: cond, Then: &ast.Block{Statements: []ast.Node{
				&ast.Assign{Name: "y", Value: neg},
				variable("y"),
			}}},
		},
		{
			"block else on next line", "if x < 0 => {\n  -x\n}\nelse {\n  x\n}",
			&ast.If{
				Cond: cond,
				Then: &ast.Block{Statements: []ast.Node{neg}},
				Else: &ast.Block{Statements: []ast.Node{variable("x")}},
			},
		},
		{
			"block arrow else", "if x < 0 => {\n-x\n} => {\nx\n}",
			&ast.If{
				Cond: cond,
				Then: &ast.Block{Statements: []ast.Node{neg}},
				Else: &ast.Block{Statements: []ast.Node{variable("x")}},
			},
		},
		{
			"else if chain", "if x < 0 => {\n-x\n} else if x == 0 => {\n1\n} else => {\nx\n}",
			&ast.If{
				Cond: cond,
				Then: &ast.Block{Statements: []ast.Node{neg}},
				Else: &ast.If{
					Cond: &ast.Comparison{Op: ast.OpEqEq, Left: variable("x"), Right: intLit(0)},
					Then: &ast.Block{Statements: []ast.Node{intLit(1)}},
					Else: &ast.Block{Statements: []ast.Node{variable("x")}},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, single(t, tt.source), astOpts); diff != "" {
				t.Errorf("AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIfWithoutArrow(t *testing.T) {
	mustFail(t, "if x < 0 x", diagnostics.ESyntax)
}

func TestIfBlockThenStatementNotElse(t *testing.T) {
	block, _ := mustParse(t, "if x => {\n1\n}\nx")
	if len(block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block.Statements))
	}
	if ifNode := block.Statements[0].(*ast.If); ifNode.Else != nil {
		t.Error("following statement must not become the else branch")
	}
}

// ---- Functions ----

func TestFunctionDefinitionAndCall(t *testing.T) {
	block, global := mustParse(t, "fn add1: n => n + 1\nadd1(4)")
	want := &ast.Block{Statements: []ast.Node{
		&ast.Function{Name: "add1", Params: []string{"n"}, Body: bin(ast.OpAdd, variable("n"), intLit(1))},
		&ast.Call{Name: "add1", Args: []ast.Node{intLit(4)}},
	}}
	if diff := cmp.Diff(want, block, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}

	c, ok := global.LookupFunction("add1")
	if !ok {
		t.Fatal("add1 not registered in the global scope")
	}
	if c.Fn != block.Statements[0] {
		t.Error("registered binding should be the final function node")
	}
	if c.Env != global {
		t.Error("closure env should be the enclosing scope")
	}
	scope, ok := c.Fn.Scope.(*env.Env)
	if !ok || scope.Parent() != global {
		t.Error("function scope should be a child of the enclosing scope")
	}
}

func TestFunctionParams(t *testing.T) {
	tests := []struct {
		source string
		want   []string
	}{
		{"fn f: (a, b) => a", []string{"a", "b"}},
		{"fn f: a, b, c => a", []string{"a", "b", "c"}},
		{"fn f: () => 1", nil},
		{"fn f: => 1", nil},
		{"fn f: (x) => x", []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			fn, ok := single(t, tt.source).(*ast.Function)
			if !ok {
				t.Fatalf("expected *ast.Function")
			}
			if diff := cmp.Diff(tt.want, fn.Params, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDuplicateParam(t *testing.T) {
	mustFail(t, "fn f: a, a => a", diagnostics.ESyntax)
}

func TestFunctionBlockBody(t *testing.T) {
	fn := single(t, "fn clamp: (x) => {\n  if x < 0 => {\n    return 0\n  }\n  x\n}").(*ast.Function)
	body, ok := fn.Body.(*ast.Block)
	if !ok || len(body.Statements) != 2 {
		t.Fatalf("unexpected body: %s", ast.Dump(fn.Body))
	}
	inner := body.Statements[0].(*ast.If).Then.(*ast.Block)
	if _, ok := inner.Statements[0].(*ast.Return); !ok {
		t.Errorf("expected return inside nested if, got %T", inner.Statements[0])
	}
}

func TestRecursiveFunction(t *testing.T) {
	fn := single(t, "fn fact: n => if n <= 1 => 1 => n * fact(n - 1)").(*ast.Function)
	ifNode := fn.Body.(*ast.If)
	mul := ifNode.Else.(*ast.BinaryExpr)
	if call, ok := mul.Right.(*ast.Call); !ok || call.Name != "fact" {
		t.Errorf("expected recursive call, got %s", ast.Dump(mul.Right))
	}
}

func TestNestedFunctionScope(t *testing.T) {
	block, global := mustParse(t, "fn outer: x => {\n  fn inner: y => x + y\n  inner(1)\n}")
	if _, ok := global.LookupFunction("inner"); ok {
		t.Error("inner must not leak into the global scope")
	}
	outer := block.Statements[0].(*ast.Function)
	if _, ok := outer.Scope.ResolveFunction("inner"); !ok {
		t.Error("inner should resolve from outer's scope")
	}
	if _, ok := outer.Scope.ResolveFunction("outer"); !ok {
		t.Error("outer should resolve from its own body scope")
	}
}

func TestAnonymousFunctionAssignment(t *testing.T) {
	block, global := mustParse(t, "sq = fn: x => x * x\nsq(3)")
	want := &ast.Block{Statements: []ast.Node{
		&ast.Function{Name: "sq", Params: []string{"x"}, Body: bin(ast.OpMul, variable("x"), variable("x"))},
		&ast.Call{Name: "sq", Args: []ast.Node{intLit(3)}},
	}}
	if diff := cmp.Diff(want, block, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
	if _, ok := global.LookupFunction("sq"); !ok {
		t.Error("sq should be registered as a function")
	}
}

func TestNamedFunctionAssignmentStaysAssign(t *testing.T) {
	got := single(t, "x = fn f: => 1")
	a, ok := got.(*ast.Assign)
	if !ok {
		t.Fatalf("expected Assign, got %T", got)
	}
	if _, ok := a.Value.(*ast.Function); !ok {
		t.Errorf("expected Function value, got %T", a.Value)
	}
}

func TestReturnOutsideFunction(t *testing.T) {
	mustFail(t, "return 1", diagnostics.ESyntax)
	mustFail(t, "if true => return 1", diagnostics.ESyntax)
}

func TestReturnCannotBeAssigned(t *testing.T) {
	mustFail(t, "fn f: => x = return 1", diagnostics.ESyntax)
}

func TestUndefinedFunction(t *testing.T) {
	d := mustFail(t, "foo(1)", diagnostics.EUndefinedVariable)
	if d.Message != "foo" {
		t.Errorf("message = %q, want foo", d.Message)
	}
}

func TestForwardReferenceFails(t *testing.T) {
	mustFail(t, "a()\nfn a: => 1", diagnostics.EUndefinedVariable)
}

func TestFirstErrorWins(t *testing.T) {
	d := mustFail(t, "foo(1) + bar(2)", diagnostics.EUndefinedVariable)
	if d.Message != "foo" {
		t.Errorf("expected the first error to be kept, got %q", d.Message)
	}
}

func TestPlaceholderRollback(t *testing.T) {
	global := env.NewGlobal()
	if _, err := parser.Parse("fn f: x => x +", "test.em", global); err == nil {
		t.Fatal("expected parse error")
	}
	if _, ok := global.LookupFunction("f"); ok {
		t.Error("failed definition should not stay registered")
	}

	if _, err := parser.Parse("fn g: => 1", "test.em", global); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := global.LookupFunction("g")
	if _, err := parser.Parse("fn g: => )", "test.em", global); err == nil {
		t.Fatal("expected parse error")
	}
	after, ok := global.LookupFunction("g")
	if !ok || after != before {
		t.Error("failed redefinition should restore the previous binding")
	}
}

// ---- Builtins and calls ----

func TestBuiltins(t *testing.T) {
	got := single(t, "add(1, x, 2.5)")
	want := &ast.BuiltinOp{Op: ast.BuiltinAdd, Args: []ast.Node{intLit(1), variable("x"), &ast.FloatLiteral{Value: 2.5}}}
	if diff := cmp.Diff(want, got, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}

	empty := single(t, "mul()").(*ast.BuiltinOp)
	if empty.Op != ast.BuiltinMul || len(empty.Args) != 0 {
		t.Errorf("unexpected %s", ast.Dump(empty))
	}

	if _, ok := single(t, "div").(*ast.Variable); !ok {
		t.Error("bare builtin name should be a variable")
	}
}

func TestUserFunctionShadowsBuiltin(t *testing.T) {
	block, _ := mustParse(t, "fn add: a => a\nadd(1)")
	if _, ok := block.Statements[1].(*ast.Call); !ok {
		t.Errorf("expected user call, got %T", block.Statements[1])
	}
}

func TestCallArgumentsAreLogicExprs(t *testing.T) {
	block, _ := mustParse(t, "fn f: a, b => a\nf(x > 1 and y, -2)")
	call := block.Statements[1].(*ast.Call)
	if _, ok := call.Args[0].(*ast.Logical); !ok {
		t.Errorf("arg 0 = %T", call.Args[0])
	}
	if _, ok := call.Args[1].(*ast.Unary); !ok {
		t.Errorf("arg 1 = %T", call.Args[1])
	}
}

func TestBareFunctionReference(t *testing.T) {
	block, _ := mustParse(t, "fn five: => 5\nfive")
	if v, ok := block.Statements[1].(*ast.Variable); !ok || v.Name != "five" {
		t.Errorf("expected variable reference, got %s", ast.Dump(block.Statements[1]))
	}
}

// ---- Objects ----

func TestObjectLiteral(t *testing.T) {
	got := single(t, "{a: 1, b\n  c: x + 1,\n}")
	want := &ast.Object{Entries: []ast.ObjectEntry{
		{Key: "a", Value: intLit(1)},
		{Key: "b", Value: variable("b"), Shorthand: true},
		{Key: "c", Value: bin(ast.OpAdd, variable("x"), intLit(1))},
	}}
	if diff := cmp.Diff(want, got, astOpts); diff != "" {
		t.Errorf("AST mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectDuplicateKeyOverwrites(t *testing.T) {
	obj := single(t, "{a: 1, b: 2, a: 3}").(*ast.Object)
	if len(obj.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(obj.Entries))
	}
	v, _ := obj.Get("a")
	if diff := cmp.Diff(intLit(3), v, astOpts); diff != "" {
		t.Errorf("a mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyObject(t *testing.T) {
	obj := single(t, "{}").(*ast.Object)
	if len(obj.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(obj.Entries))
	}
}

// ---- Errors ----

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   string
	}{
		{"empty program", "", diagnostics.EUnknownValue},
		{"only newlines", "\n\n", diagnostics.EUnknownValue},
		{"missing right operand", "1 +", diagnostics.EUnknownValue},
		{"missing assignment value", "x =", diagnostics.EUnknownValue},
		{"unclosed paren", "(1 + 2", diagnostics.EUnknownValue},
		{"unclosed block", "fn f: => {\n1\n", diagnostics.EUnknownValue},
		{"empty block", "fn f: => {\n}", diagnostics.ESyntax},
		{"stray close paren", ")", diagnostics.ESyntax},
		{"missing fn colon", "fn f x => x", diagnostics.ESyntax},
		{"missing fn name", "fn : x => x", diagnostics.ESyntax},
		{"bad object key", "{1: 2}", diagnostics.ESyntax},
		{"lex error", "x = 1 $ 2", diagnostics.ESyntax},
		{"else alone", "else", diagnostics.ESyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustFail(t, tt.source, tt.code)
		})
	}
}

func TestErrorSpan(t *testing.T) {
	d := mustFail(t, "x = 1\ny = (2 +\n", diagnostics.ESyntax)
	if d.Span == nil || d.Span.StartLine != 2 {
		t.Errorf("expected error on line 2, got %+v", d.Span)
	}
	if d.Span.File != "test.em" {
		t.Errorf("file = %q", d.Span.File)
	}
}

// ---- Entry points ----

func TestParseProgramFromTokens(t *testing.T) {
	tokens, err := lexer.Tokenize("a = 1\na", "tokens.em")
	if err != nil {
		t.Fatal(err)
	}
	block, err := parser.ParseProgram(tokens, env.NewGlobal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(block.Statements) != 2 {
		t.Errorf("expected 2 statements, got %d", len(block.Statements))
	}
}

func TestParseProgramNilGlobal(t *testing.T) {
	tokens, _ := lexer.Tokenize("fn f: => 1\nf()", "tokens.em")
	if _, err := parser.ParseProgram(tokens, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseLine(t *testing.T) {
	global := env.NewGlobal()
	stmt, err := parser.ParseLine("fn sq: x => {\n  x * x\n}\n", "<repl>", global)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := stmt.(*ast.Function); !ok {
		t.Errorf("expected function, got %T", stmt)
	}
	if _, err := parser.ParseLine("sq(2)", "<repl>", global); err != nil {
		t.Errorf("later line should see sq: %v", err)
	}

	_, err = parser.ParseLine("x = 1\ny = 2", "<repl>", global)
	d, ok := parser.Diagnostic(err)
	if !ok || d.Code != diagnostics.ESyntax {
		t.Errorf("expected SyntaxError for two statements, got %v", err)
	}
}

func TestParseErrorRendering(t *testing.T) {
	_, err := parser.Parse("nope(1)", "test.em", env.NewGlobal())
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "Undefined variable or function: nope"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
