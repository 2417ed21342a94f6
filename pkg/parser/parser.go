// Package parser implements the Ember language parser.
//
// The parser is recursive descent with one method per precedence tier. It
// keeps a single error slot: the first failure is recorded and every
// production checks p.failed() after each subordinate call and returns
// without doing further work. Function definitions are registered into the
// environment handed to the parser as soon as their header is read, so a
// body can call itself and later statements can call earlier functions.
package parser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/env"
	"github.com/thomasrohde/ember/pkg/lexer"
)

// ParseError wraps the diagnostic of the first parse failure.
type ParseError struct {
	Diag diagnostics.Diagnostic
}

func (e *ParseError) Error() string {
	return e.Diag.String()
}

// Diagnostic extracts the diagnostic carried by a lex or parse error.
func Diagnostic(err error) (diagnostics.Diagnostic, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Diag, true
	}
	var le *lexer.LexError
	if errors.As(err, &le) {
		return le.Diag, true
	}
	return diagnostics.Diagnostic{}, false
}

type parser struct {
	stream         *lexer.Stream
	err            *diagnostics.Diagnostic
	env            *env.Env
	inFunctionBody bool
}

func newParser(tokens []lexer.Token, global *env.Env) *parser {
	if global == nil {
		global = env.NewGlobal()
	}
	return &parser{stream: lexer.NewStream(tokens), env: global}
}

// Parse tokenizes source and parses it as a program.
func Parse(source, filename string, global *env.Env) (*ast.Block, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		return nil, err
	}
	return ParseProgram(tokens, global)
}

// ParseLine tokenizes source and parses exactly one statement.
func ParseLine(source, filename string, global *env.Env) (ast.Node, error) {
	tokens, err := lexer.Tokenize(source, filename)
	if err != nil {
		return nil, err
	}
	return ParseStatement(tokens, global)
}

// ParseProgram parses the whole token sequence as one block. Functions
// declared at the top level are registered into global.
func ParseProgram(tokens []lexer.Token, global *env.Env) (*ast.Block, error) {
	p := newParser(tokens, global)
	block := p.parseBlock(lexer.TokEOF)
	if p.failed() {
		return nil, &ParseError{Diag: *p.err}
	}
	return block, nil
}

// ParseStatement parses a single statement, optionally surrounded by
// newlines, and requires the stream to end after it.
func ParseStatement(tokens []lexer.Token, global *env.Env) (ast.Node, error) {
	p := newParser(tokens, global)
	p.skipNewlines()
	stmt := p.parseStatement()
	if !p.failed() {
		p.skipNewlines()
		if tok := p.peek(); tok.Type != lexer.TokEOF {
			p.addError(diagnostics.ESyntax, fmt.Sprintf("expected newline after statement, got %s", describe(tok)), tok.Span)
		}
	}
	if p.failed() {
		return nil, &ParseError{Diag: *p.err}
	}
	return stmt, nil
}

// --- Cursor helpers ---

func (p *parser) peek() lexer.Token {
	return p.stream.Peek()
}

func (p *parser) advance() lexer.Token {
	return p.stream.Advance()
}

func (p *parser) failed() bool {
	return p.err != nil
}

// addError records the first failure only.
func (p *parser) addError(code, msg string, span ast.Span) {
	if p.err != nil {
		return
	}
	d := diagnostics.MakeDiag(code, msg, &span, "")
	p.err = &d
}

// unexpected reports tok as out of place. Running out of tokens is an
// UnknownValue error, anything else a SyntaxError.
func (p *parser) unexpected(tok lexer.Token, want string) {
	if tok.Type == lexer.TokEOF {
		msg := "unexpected end of tokens"
		if want != "" {
			msg += ", expected " + want
		}
		p.addError(diagnostics.EUnknownValue, msg, tok.Span)
		return
	}
	msg := "unexpected " + describe(tok)
	if want != "" {
		msg = fmt.Sprintf("expected %s, got %s", want, describe(tok))
	}
	p.addError(diagnostics.ESyntax, msg, tok.Span)
}

func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.peek()
	if tok.Type != typ {
		p.unexpected(tok, typ.String())
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) skipNewlines() {
	for p.peek().Type == lexer.TokNewline {
		p.advance()
	}
}

// skipNewlinesBefore consumes a run of newlines only when typ follows it.
func (p *parser) skipNewlinesBefore(typ lexer.TokenType) {
	n := 0
	for p.stream.LookAhead(n).Type == lexer.TokNewline {
		n++
	}
	if n == 0 || p.stream.LookAhead(n).Type != typ {
		return
	}
	for i := 0; i < n; i++ {
		p.advance()
	}
}

func spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokIdent, lexer.TokIntLit, lexer.TokFloatLit:
		return fmt.Sprintf("'%s'", tok.Value)
	}
	return tok.Type.String()
}

// --- Blocks and statements ---

// parseBlock parses newline separated statements up to end, which is left
// unconsumed.
func (p *parser) parseBlock(end lexer.TokenType) *ast.Block {
	p.skipNewlines()
	if tok := p.peek(); tok.Type == end {
		if end == lexer.TokEOF {
			p.unexpected(tok, "a statement")
		} else {
			p.addError(diagnostics.ESyntax, "block must contain at least one statement", tok.Span)
		}
		return nil
	}

	var stmts []ast.Node
	for {
		stmt := p.parseStatement()
		if p.failed() {
			return nil
		}
		stmts = append(stmts, stmt)

		tok := p.peek()
		if tok.Type == end {
			break
		}
		if tok.Type != lexer.TokNewline {
			if tok.Type == lexer.TokEOF {
				p.unexpected(tok, end.String())
			} else {
				p.addError(diagnostics.ESyntax, fmt.Sprintf("expected newline after statement, got %s", describe(tok)), tok.Span)
			}
			return nil
		}
		p.skipNewlines()
		if p.peek().Type == end {
			break
		}
	}

	return &ast.Block{
		Span:       spanFromTo(stmts[0].NodeSpan(), stmts[len(stmts)-1].NodeSpan()),
		Statements: stmts,
	}
}

// parseBraceBlock parses '{' block '}'.
func (p *parser) parseBraceBlock() *ast.Block {
	if _, ok := p.expect(lexer.TokLBrace); !ok {
		return nil
	}
	block := p.parseBlock(lexer.TokRBrace)
	if p.failed() {
		return nil
	}
	if _, ok := p.expect(lexer.TokRBrace); !ok {
		return nil
	}
	return block
}

// parseBranch parses the body after '=>': a brace block or one statement.
func (p *parser) parseBranch() ast.Node {
	if p.peek().Type == lexer.TokLBrace {
		block := p.parseBraceBlock()
		if p.failed() {
			return nil
		}
		return block
	}
	stmt := p.parseStatement()
	if p.failed() {
		return nil
	}
	return stmt
}

func (p *parser) parseStatement() ast.Node {
	switch p.peek().Type {
	case lexer.TokIdent:
		if p.stream.LookAhead(1).Type == lexer.TokEquals {
			return p.parseAssign()
		}
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokFn:
		fn := p.parseFunction()
		if p.failed() {
			return nil
		}
		return fn
	case lexer.TokReturn:
		return p.parseReturn()
	}
	return p.parseLogicExpr()
}

func (p *parser) parseAssign() ast.Node {
	nameTok := p.advance()
	p.advance() // consume '='

	// name = fn: params => body defines a function called name.
	if p.peek().Type == lexer.TokFn && p.stream.LookAhead(1).Type == lexer.TokColon {
		p.advance() // consume 'fn'
		fn := p.parseFunctionRest(nameTok.Span, nameTok.Value)
		if p.failed() {
			return nil
		}
		return fn
	}

	if tok := p.peek(); tok.Type == lexer.TokReturn {
		p.addError(diagnostics.ESyntax, "cannot assign a return statement", tok.Span)
		return nil
	}
	rhs := p.parseStatement()
	if p.failed() {
		return nil
	}
	return &ast.Assign{
		Span:  spanFromTo(nameTok.Span, rhs.NodeSpan()),
		Name:  nameTok.Value,
		Value: rhs,
	}
}

func (p *parser) parseReturn() ast.Node {
	start := p.advance() // consume 'return'
	if !p.inFunctionBody {
		p.addError(diagnostics.ESyntax, "return outside of a function body", start.Span)
		return nil
	}
	val := p.parseLogicExpr()
	if p.failed() {
		return nil
	}
	return &ast.Return{
		Span:  spanFromTo(start.Span, val.NodeSpan()),
		Value: val,
	}
}

// parseIf parses
//
//	if [:] cond => branch [else if ... | else [=>] branch | => branch]
func (p *parser) parseIf() ast.Node {
	start := p.advance() // consume 'if'
	if p.peek().Type == lexer.TokColon {
		p.advance()
	}

	cond := p.parseLogicExpr()
	if p.failed() {
		return nil
	}
	if _, ok := p.expect(lexer.TokArrow); !ok {
		return nil
	}
	then := p.parseBranch()
	if p.failed() {
		return nil
	}

	node := &ast.If{Cond: cond, Then: then}
	end := then.NodeSpan()

	if _, isBlock := then.(*ast.Block); isBlock {
		p.skipNewlinesBefore(lexer.TokElse)
	}
	switch p.peek().Type {
	case lexer.TokElse:
		p.advance()
		switch p.peek().Type {
		case lexer.TokIf:
			node.Else = p.parseIf()
		case lexer.TokArrow:
			p.advance()
			node.Else = p.parseBranch()
		default:
			node.Else = p.parseBranch()
		}
	case lexer.TokArrow:
		p.advance()
		node.Else = p.parseBranch()
	}
	if p.failed() {
		return nil
	}
	if node.Else != nil {
		end = node.Else.NodeSpan()
	}

	node.Span = spanFromTo(start.Span, end)
	return node
}

// --- Functions ---

func (p *parser) parseFunction() *ast.Function {
	start := p.advance() // consume 'fn'
	nameTok, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	return p.parseFunctionRest(start.Span, nameTok.Value)
}

// parseFunctionRest parses ': params => body' for a function called name.
func (p *parser) parseFunctionRest(start ast.Span, name string) *ast.Function {
	if _, ok := p.expect(lexer.TokColon); !ok {
		return nil
	}
	params := p.parseParams()
	if p.failed() {
		return nil
	}
	if _, ok := p.expect(lexer.TokArrow); !ok {
		return nil
	}

	enclosing := p.env
	prev, hadPrev := enclosing.LocalFunction(name)
	scope := enclosing.Child()

	// Placeholder so the body can refer to the function by name.
	enclosing.DefineFunction(name, &env.Closure{
		Fn:  &ast.Function{Span: start, Name: name, Params: params, Scope: scope},
		Env: enclosing,
	})

	wasInBody := p.inFunctionBody
	p.env, p.inFunctionBody = scope, true
	body := p.parseBranch()
	p.env, p.inFunctionBody = enclosing, wasInBody

	if p.failed() {
		if hadPrev {
			enclosing.DefineFunction(name, prev)
		} else {
			enclosing.DeleteFunction(name)
		}
		return nil
	}

	fn := &ast.Function{
		Span:   spanFromTo(start, body.NodeSpan()),
		Name:   name,
		Params: params,
		Body:   body,
		Scope:  scope,
	}
	enclosing.DefineFunction(name, &env.Closure{Fn: fn, Env: enclosing})
	return fn
}

// parseParams accepts '(a, b)', 'a, b' or nothing.
func (p *parser) parseParams() []string {
	var params []string
	seen := make(map[string]bool)

	add := func() bool {
		tok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return false
		}
		if seen[tok.Value] {
			p.addError(diagnostics.ESyntax, fmt.Sprintf("duplicate parameter '%s'", tok.Value), tok.Span)
			return false
		}
		seen[tok.Value] = true
		params = append(params, tok.Value)
		return true
	}

	switch p.peek().Type {
	case lexer.TokLParen:
		p.advance()
		if p.peek().Type != lexer.TokRParen {
			if !add() {
				return nil
			}
			for p.peek().Type == lexer.TokComma {
				p.advance()
				if !add() {
					return nil
				}
			}
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
	case lexer.TokIdent:
		if !add() {
			return nil
		}
		for p.peek().Type == lexer.TokComma {
			p.advance()
			if !add() {
				return nil
			}
		}
	}
	return params
}

// --- Expressions ---

func (p *parser) parseLogicExpr() ast.Node {
	left := p.parseNotExpr()
	if p.failed() {
		return nil
	}

	for {
		var op ast.LogicalOp
		switch p.peek().Type {
		case lexer.TokAnd:
			op = ast.OpAnd
		case lexer.TokOr:
			op = ast.OpOr
		default:
			return left
		}
		p.advance()
		right := p.parseNotExpr()
		if p.failed() {
			return nil
		}
		left = &ast.Logical{
			Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseNotExpr() ast.Node {
	if t := p.peek().Type; t == lexer.TokNot || t == lexer.TokBang {
		start := p.advance()
		operand := p.parseNotExpr()
		if p.failed() {
			return nil
		}
		return &ast.Not{
			Span:    spanFromTo(start.Span, operand.NodeSpan()),
			Operand: operand,
		}
	}
	return p.parseBoolExpr()
}

var compareOps = map[lexer.TokenType]ast.CompareOp{
	lexer.TokGt:     ast.OpGt,
	lexer.TokGtEq:   ast.OpGtEq,
	lexer.TokLt:     ast.OpLt,
	lexer.TokLtEq:   ast.OpLtEq,
	lexer.TokEqEq:   ast.OpEqEq,
	lexer.TokBangEq: ast.OpNeq,
}

// parseBoolExpr allows at most one comparison; comparisons do not chain.
func (p *parser) parseBoolExpr() ast.Node {
	left := p.parseExpr()
	if p.failed() {
		return nil
	}
	op, ok := compareOps[p.peek().Type]
	if !ok {
		return left
	}
	p.advance()
	right := p.parseExpr()
	if p.failed() {
		return nil
	}
	return &ast.Comparison{
		Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
		Op:    op,
		Left:  left,
		Right: right,
	}
}

func (p *parser) parseExpr() ast.Node {
	left := p.parseTerm()
	if p.failed() {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek().Type {
		case lexer.TokPlus:
			op = ast.OpAdd
		case lexer.TokMinus:
			op = ast.OpSub
		default:
			return left
		}
		p.advance()
		right := p.parseTerm()
		if p.failed() {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseTerm() ast.Node {
	left := p.parsePower()
	if p.failed() {
		return nil
	}

	for {
		var op ast.BinaryOp
		switch p.peek().Type {
		case lexer.TokStar:
			op = ast.OpMul
		case lexer.TokSlash:
			op = ast.OpDiv
		case lexer.TokPercent:
			op = ast.OpMod
		default:
			return left
		}
		p.advance()
		right := p.parsePower()
		if p.failed() {
			return nil
		}
		left = &ast.BinaryExpr{
			Span:  spanFromTo(left.NodeSpan(), right.NodeSpan()),
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

// parsePower handles sign prefixes and the right-associative '**'.
// '-2 ** 2' is -(2 ** 2).
func (p *parser) parsePower() ast.Node {
	if t := p.peek().Type; t == lexer.TokPlus || t == lexer.TokMinus {
		start := p.advance()
		operand := p.parsePower()
		if p.failed() {
			return nil
		}
		op := ast.OpPlus
		if t == lexer.TokMinus {
			op = ast.OpMinus
		}
		return &ast.Unary{
			Span:    spanFromTo(start.Span, operand.NodeSpan()),
			Op:      op,
			Operand: operand,
		}
	}

	base := p.parseFactor()
	if p.failed() {
		return nil
	}
	if p.peek().Type != lexer.TokStarStar {
		return base
	}
	p.advance()
	exp := p.parsePower()
	if p.failed() {
		return nil
	}
	return &ast.BinaryExpr{
		Span:  spanFromTo(base.NodeSpan(), exp.NodeSpan()),
		Op:    ast.OpPow,
		Left:  base,
		Right: exp,
	}
}

func (p *parser) parseFactor() ast.Node {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokIntLit:
		p.advance()
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.addError(diagnostics.ESyntax, fmt.Sprintf("integer literal %s out of range", tok.Value), tok.Span)
			return nil
		}
		return &ast.IntLiteral{Span: tok.Span, Value: val}

	case lexer.TokFloatLit:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.addError(diagnostics.ESyntax, fmt.Sprintf("invalid float literal %s", tok.Value), tok.Span)
			return nil
		}
		return &ast.FloatLiteral{Span: tok.Span, Value: val}

	case lexer.TokTrue, lexer.TokFalse:
		p.advance()
		return &ast.BoolLiteral{Span: tok.Span, Value: tok.Type == lexer.TokTrue}

	case lexer.TokLParen:
		p.advance()
		inner := p.parseLogicExpr()
		if p.failed() {
			return nil
		}
		if _, ok := p.expect(lexer.TokRParen); !ok {
			return nil
		}
		return inner

	case lexer.TokLBrace:
		obj := p.parseObject()
		if p.failed() {
			return nil
		}
		return obj

	case lexer.TokIdent:
		return p.parseIdent()
	}

	p.unexpected(tok, "")
	return nil
}

// parseIdent resolves NAME '(' to a user function call or a builtin, and a
// bare NAME to a variable reference.
func (p *parser) parseIdent() ast.Node {
	tok := p.advance()
	if p.peek().Type != lexer.TokLParen {
		return &ast.Variable{Span: tok.Span, Name: tok.Value}
	}

	_, isFn := p.env.LookupFunction(tok.Value)
	kind, isBuiltin := ast.Builtins[tok.Value]
	if !isFn && !isBuiltin {
		p.addError(diagnostics.EUndefinedVariable, tok.Value, tok.Span)
		return nil
	}

	args, end := p.parseArgs()
	if p.failed() {
		return nil
	}
	span := spanFromTo(tok.Span, end)
	if isFn {
		return &ast.Call{Span: span, Name: tok.Value, Args: args}
	}
	return &ast.BuiltinOp{Span: span, Op: kind, Args: args}
}

// parseArgs parses '(' [logic_expr {',' logic_expr}] ')' and returns the
// span of the closing parenthesis.
func (p *parser) parseArgs() ([]ast.Node, ast.Span) {
	p.advance() // consume '('
	var args []ast.Node
	if p.peek().Type != lexer.TokRParen {
		for {
			arg := p.parseLogicExpr()
			if p.failed() {
				return nil, ast.Span{}
			}
			args = append(args, arg)
			if p.peek().Type != lexer.TokComma {
				break
			}
			p.advance()
		}
	}
	closeTok, ok := p.expect(lexer.TokRParen)
	if !ok {
		return nil, ast.Span{}
	}
	return args, closeTok.Span
}

// parseObject parses '{' [entry {(',' | newline) entry}] '}' where an entry
// is 'key' or 'key: logic_expr'. A repeated key overwrites the earlier
// value in place.
func (p *parser) parseObject() *ast.Object {
	start := p.advance() // consume '{'
	obj := &ast.Object{}
	index := make(map[string]int)

	p.skipNewlines()
	for p.peek().Type != lexer.TokRBrace {
		keyTok, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		entry := ast.ObjectEntry{Span: keyTok.Span, Key: keyTok.Value}
		if p.peek().Type == lexer.TokColon {
			p.advance()
			val := p.parseLogicExpr()
			if p.failed() {
				return nil
			}
			entry.Value = val
			entry.Span = spanFromTo(keyTok.Span, val.NodeSpan())
		} else {
			entry.Value = &ast.Variable{Span: keyTok.Span, Name: keyTok.Value}
			entry.Shorthand = true
		}
		if i, dup := index[entry.Key]; dup {
			obj.Entries[i] = entry
		} else {
			index[entry.Key] = len(obj.Entries)
			obj.Entries = append(obj.Entries, entry)
		}

		switch tok := p.peek(); tok.Type {
		case lexer.TokComma:
			p.advance()
			p.skipNewlines()
		case lexer.TokNewline:
			p.skipNewlines()
		case lexer.TokRBrace:
		default:
			p.unexpected(tok, "',' or '}'")
			return nil
		}
	}

	end := p.advance() // consume '}'
	obj.Span = spanFromTo(start.Span, end.Span)
	return obj
}
