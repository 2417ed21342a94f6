package value

import (
	"fmt"

	"github.com/thomasrohde/ember/pkg/ast"
)

// ErrorKind classifies a runtime error.
type ErrorKind string

const (
	SyntaxError         ErrorKind = "SyntaxError"
	ZeroDivisionError   ErrorKind = "ZeroDivisionError"
	ValueError          ErrorKind = "ValueError"
	UndefinedIdentifier ErrorKind = "UndefinedIdentifier"
)

var kindLabels = map[ErrorKind]string{
	SyntaxError:         "SyntaxError:",
	ZeroDivisionError:   "Zero Division Error:",
	ValueError:          "ValueError:",
	UndefinedIdentifier: "Undefined keyword:",
}

// Label returns the text printed in front of an error message.
func (k ErrorKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k) + ":"
}

// Error is a runtime error value. It also satisfies the error interface so
// hosts can return it directly.
type Error struct {
	Kind    ErrorKind
	Message string
	Span    *ast.Span
}

func (*Error) Type() Type { return TypeError }
func (e *Error) String() string {
	return e.Kind.Label() + " " + e.Message
}
func (*Error) value() {}

func (e *Error) Error() string {
	return e.String()
}

// NewError creates an error value.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error value with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At attaches a source span if the error has none yet.
func (e *Error) At(span ast.Span) *Error {
	if e.Span == nil {
		e.Span = &span
	}
	return e
}

// AsError returns v as an *Error when it is one.
func AsError(v Value) (*Error, bool) {
	e, ok := v.(*Error)
	return e, ok
}
