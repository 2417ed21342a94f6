// Package lexer implements the Ember language tokenizer.
package lexer

import (
	"fmt"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokIf TokenType = iota
	TokElse
	TokFn
	TokReturn
	TokAnd
	TokOr
	TokNot
	TokTrue
	TokFalse

	// Literals
	TokIntLit
	TokFloatLit

	// Identifiers
	TokIdent

	// Punctuation
	TokLBrace   // {
	TokRBrace   // }
	TokLBracket // [
	TokRBracket // ]
	TokLParen   // (
	TokRParen   // )
	TokColon    // :
	TokComma    // ,
	TokArrow    // =>
	TokEquals   // =
	TokBang     // !

	// Comparison operators
	TokGtEq   // >=
	TokLtEq   // <=
	TokEqEq   // ==
	TokBangEq // !=
	TokGt     // >
	TokLt     // <

	// Arithmetic operators
	TokPlus     // +
	TokMinus    // -
	TokStar     // *
	TokStarStar // **
	TokSlash    // /
	TokPercent  // %

	// Special
	TokNewline
	TokEOF
)

var tokenNames = map[TokenType]string{
	TokIf: "'if'", TokElse: "'else'", TokFn: "'fn'", TokReturn: "'return'",
	TokAnd: "'and'", TokOr: "'or'", TokNot: "'not'", TokTrue: "'true'", TokFalse: "'false'",
	TokIntLit: "integer", TokFloatLit: "float", TokIdent: "identifier",
	TokLBrace: "'{'", TokRBrace: "'}'", TokLBracket: "'['", TokRBracket: "']'",
	TokLParen: "'('", TokRParen: "')'", TokColon: "':'", TokComma: "','",
	TokArrow: "'=>'", TokEquals: "'='", TokBang: "'!'",
	TokGtEq: "'>='", TokLtEq: "'<='", TokEqEq: "'=='", TokBangEq: "'!='", TokGt: "'>'", TokLt: "'<'",
	TokPlus: "'+'", TokMinus: "'-'", TokStar: "'*'", TokStarStar: "'**'", TokSlash: "'/'", TokPercent: "'%'",
	TokNewline: "newline", TokEOF: "end of input",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Span  ast.Span
}

var keywords = map[string]TokenType{
	"if":     TokIf,
	"else":   TokElse,
	"fn":     TokFn,
	"return": TokReturn,
	"and":    TokAnd,
	"or":     TokOr,
	"not":    TokNot,
	"true":   TokTrue,
	"false":  TokFalse,
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

type scanner struct {
	source   string
	filename string
	pos      int
	line     int
	col      int
}

func newScanner(source, filename string) *scanner {
	return &scanner{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.source)
}

func (s *scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *scanner) peekAt(offset int) byte {
	p := s.pos + offset
	if p >= len(s.source) {
		return 0
	}
	return s.source[p]
}

func (s *scanner) advance() byte {
	ch := s.source[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

func (s *scanner) span(startLine, startCol int) ast.Span {
	return ast.Span{
		File:      s.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   s.line,
		EndCol:    s.col,
	}
}

// skipBlanks skips spaces, tabs, carriage returns and comments. Newlines
// are significant and left in place.
func (s *scanner) skipBlanks() {
	for !s.atEnd() {
		ch := s.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' {
			s.advance()
		} else if ch == '#' {
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		} else {
			break
		}
	}
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}

func (s *scanner) scanNumber() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos
	isFloat := false

	for !s.atEnd() && isDigit(s.peek()) {
		s.advance()
	}

	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		isFloat = true
		s.advance() // consume '.'
		for !s.atEnd() && isDigit(s.peek()) {
			s.advance()
		}
	}

	tokType := TokIntLit
	if isFloat {
		tokType = TokFloatLit
	}

	return Token{
		Type:  tokType,
		Value: s.source[startPos:s.pos],
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) scanIdentOrKeyword() Token {
	startLine, startCol := s.line, s.col
	startPos := s.pos

	for !s.atEnd() && isAlphaNumeric(s.peek()) {
		s.advance()
	}

	text := s.source[startPos:s.pos]
	if tokType, ok := keywords[text]; ok {
		return Token{
			Type:  tokType,
			Value: text,
			Span:  s.span(startLine, startCol),
		}
	}

	return Token{
		Type:  TokIdent,
		Value: text,
		Span:  s.span(startLine, startCol),
	}
}

func (s *scanner) lexError(line, col int, msg string) error {
	diag := diagnostics.MakeDiag(
		diagnostics.ESyntax,
		msg,
		&ast.Span{File: s.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1},
		"",
	)
	return &LexError{Diag: diag}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return e.Diag.Message
}

func (s *scanner) token(typ TokenType, text string, startLine, startCol int) Token {
	for range text {
		s.advance()
	}
	return Token{Type: typ, Value: text, Span: s.span(startLine, startCol)}
}

func (s *scanner) nextToken() (Token, error) {
	s.skipBlanks()

	if s.atEnd() {
		return Token{
			Type:  TokEOF,
			Value: "",
			Span:  s.span(s.line, s.col),
		}, nil
	}

	ch := s.peek()
	next := s.peekAt(1)
	startLine, startCol := s.line, s.col

	// Single-char tokens
	switch ch {
	case '\n':
		return s.token(TokNewline, "\n", startLine, startCol), nil
	case '{':
		return s.token(TokLBrace, "{", startLine, startCol), nil
	case '}':
		return s.token(TokRBrace, "}", startLine, startCol), nil
	case '[':
		return s.token(TokLBracket, "[", startLine, startCol), nil
	case ']':
		return s.token(TokRBracket, "]", startLine, startCol), nil
	case '(':
		return s.token(TokLParen, "(", startLine, startCol), nil
	case ')':
		return s.token(TokRParen, ")", startLine, startCol), nil
	case ':':
		return s.token(TokColon, ":", startLine, startCol), nil
	case ',':
		return s.token(TokComma, ",", startLine, startCol), nil
	case '+':
		return s.token(TokPlus, "+", startLine, startCol), nil
	case '-':
		return s.token(TokMinus, "-", startLine, startCol), nil
	case '%':
		return s.token(TokPercent, "%", startLine, startCol), nil
	case '/':
		return s.token(TokSlash, "/", startLine, startCol), nil
	}

	// Multi-char tokens
	switch ch {
	case '*':
		if next == '*' {
			return s.token(TokStarStar, "**", startLine, startCol), nil
		}
		return s.token(TokStar, "*", startLine, startCol), nil
	case '=':
		switch next {
		case '=':
			return s.token(TokEqEq, "==", startLine, startCol), nil
		case '>':
			return s.token(TokArrow, "=>", startLine, startCol), nil
		}
		return s.token(TokEquals, "=", startLine, startCol), nil
	case '!':
		if next == '=' {
			return s.token(TokBangEq, "!=", startLine, startCol), nil
		}
		return s.token(TokBang, "!", startLine, startCol), nil
	case '>':
		if next == '=' {
			return s.token(TokGtEq, ">=", startLine, startCol), nil
		}
		return s.token(TokGt, ">", startLine, startCol), nil
	case '<':
		if next == '=' {
			return s.token(TokLtEq, "<=", startLine, startCol), nil
		}
		return s.token(TokLt, "<", startLine, startCol), nil
	}

	if isDigit(ch) {
		return s.scanNumber(), nil
	}

	if isAlpha(ch) {
		return s.scanIdentOrKeyword(), nil
	}

	s.advance()
	return Token{}, s.lexError(startLine, startCol, fmt.Sprintf("unexpected character %q", rune(ch)))
}

// Tokenize breaks source code into a slice of tokens ending with TokEOF.
func Tokenize(source, filename string) ([]Token, error) {
	s := newScanner(source, filename)
	var tokens []Token

	for {
		tok, err := s.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			break
		}
	}

	return tokens, nil
}
