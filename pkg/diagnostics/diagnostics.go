// Package diagnostics defines Ember diagnostic types for parse, check and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thomasrohde/ember/pkg/ast"
)

// Parse-time diagnostic codes.
const (
	ESyntax            = "SyntaxError"
	EUndefinedVariable = "UndefinedVariable"
	EUnknownValue      = "UnknownValue"
	EZeroDivision      = "ZeroDivision" // reserved; the parser never raises it
)

// Static check codes.
const (
	EArity       = "E_ARITY"
	EUnreachable = "E_UNREACHABLE"
	EAssignFn    = "E_ASSIGN_FN"
)

// Host codes.
const (
	EIO     = "E_IO"
	EConfig = "E_CONFIG"
)

var labels = map[string]string{
	ESyntax:            "SyntaxError:",
	EUndefinedVariable: "Undefined variable or function:",
	EUnknownValue:      "UnknownValue:",
	EZeroDivision:      "Division By Zero:",
}

// Label returns the human label printed in front of a diagnostic message.
func Label(code string) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return code + ":"
}

// Diagnostic represents a parse, check, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// String renders the diagnostic as "<label> <message>".
func (d Diagnostic) String() string {
	return Label(d.Code) + " " + d.Message
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
