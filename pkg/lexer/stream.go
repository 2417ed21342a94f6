package lexer

// Stream is a cursor over a token slice. Reads past the end yield a
// synthetic TokEOF positioned at the last token.
type Stream struct {
	tokens []Token
	pos    int
}

// NewStream wraps tokens in a Stream.
func NewStream(tokens []Token) *Stream {
	return &Stream{tokens: tokens}
}

// Peek returns the current token without consuming it.
func (s *Stream) Peek() Token {
	return s.LookAhead(0)
}

// LookAhead returns the token n positions past the current one.
func (s *Stream) LookAhead(n int) Token {
	p := s.pos + n
	if p < len(s.tokens) {
		return s.tokens[p]
	}
	eof := Token{Type: TokEOF}
	if len(s.tokens) > 0 {
		eof.Span = s.tokens[len(s.tokens)-1].Span
	}
	return eof
}

// Advance consumes and returns the current token. At the end of the
// stream it keeps returning TokEOF.
func (s *Stream) Advance() Token {
	tok := s.Peek()
	if s.pos < len(s.tokens) {
		s.pos++
	}
	return tok
}

// AtEnd reports whether the current token is TokEOF.
func (s *Stream) AtEnd() bool {
	return s.Peek().Type == TokEOF
}

// Pos returns the index of the current token.
func (s *Stream) Pos() int {
	return s.pos
}
