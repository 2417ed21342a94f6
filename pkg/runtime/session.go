package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/env"
	"github.com/thomasrohde/ember/pkg/evaluator"
	"github.com/thomasrohde/ember/pkg/value"
)

// Session evaluates successive inputs against one global environment, as
// the REPL does.
type Session struct {
	rt     *Runtime
	ev     *evaluator.Evaluator
	global *env.Env
	inputs int
}

// NewSession starts a session with a fresh global environment.
func (rt *Runtime) NewSession() *Session {
	return &Session{rt: rt, ev: rt.evaluator(), global: env.NewGlobal()}
}

// Global returns the session's global environment.
func (s *Session) Global() *env.Env {
	return s.global
}

// Eval parses and evaluates one input. The parsed program is returned even
// when evaluation fails so callers can dump it.
func (s *Session) Eval(ctx context.Context, source string) (value.Value, *ast.Block, error) {
	s.inputs++
	filename := fmt.Sprintf("<repl:%d>", s.inputs)
	program, err := s.rt.parse(source, filename, s.global)
	if err != nil {
		return nil, nil, err
	}
	v := s.ev.Eval(ctx, program, s.global)
	if verr, ok := value.AsError(v); ok {
		return v, program, verr
	}
	return v, program, nil
}

// Where reports whether name is bound in the session's global scope and
// whether the binding is a function or a variable. Nested call scopes are
// gone once a line finishes, so only global bindings are visible here.
func (s *Session) Where(name string) (string, bool) {
	owner := s.global.FindOwningScope(name)
	if owner == nil {
		return "", false
	}
	if _, ok := owner.LocalFunction(name); ok {
		return "function", true
	}
	return "variable", true
}

// Describe lists the global bindings, one per line.
func (s *Session) Describe() string {
	var b strings.Builder
	for _, bind := range s.global.Bindings() {
		if bind.Function != nil {
			b.WriteString("fn " + bind.Name + ":")
			if len(bind.Function.Params) > 0 {
				b.WriteString(" " + strings.Join(bind.Function.Params, ", "))
			}
			b.WriteByte('\n')
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", bind.Name, bind.Value)
	}
	return b.String()
}

// NeedsMore reports whether source leaves a brace block open, so the REPL
// should read a continuation line.
func NeedsMore(source string) bool {
	depth := 0
	for _, line := range strings.Split(source, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}
	return depth > 0
}
