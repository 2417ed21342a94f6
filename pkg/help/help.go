// Package help holds the reference text printed by `ember help`.
package help

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thomasrohde/ember/pkg/stdlib"
)

// Version is the language reference version.
const Version = "v0.1"

// TopicList is the display order of help topics.
var TopicList = []string{"syntax", "types", "functions", "builtins", "errors", "config", "examples"}

// QUICKREF is printed by `ember help` without a topic.
var QUICKREF = `Ember ` + Version + ` quick reference

  x = 1 + 2 * 3            assignment (numbers only)
  fn add1: n => n + 1      function definition
  add1(4)                  call
  sq = fn: x => x * x      anonymous function bound to a name
  if x > 1 => 2 else 3     conditional ('=>' also introduces else)
  { return 0 }             block, return exits the enclosing function
  add(1, 2) sub mul div    builtins, always float results
  # comment                to end of line

Commands: run, check, fmt, ast, repl, trace, help
Topics: ` + strings.Join(TopicList, ", ") + `
Run 'ember help <topic>' for details; prefixes work ('ember help fun').
`

// Topics maps topic names to their text.
var Topics = map[string]string{
	"syntax": `Syntax

Statements are separated by newlines.
  NAME = expr                   assignment
  fn NAME: p1, p2 => body       function; params may be wrapped in ( )
  NAME = fn: p => body          anonymous form, binds the function to NAME
  if cond => then               conditional; 'if:' is accepted too
  if cond => a else b           'else' or a second '=>' starts the else part
  if a => x else if b => y      chains
  return expr                   only inside a function body
  { stmt; ... }                 block, one statement per line

Operators, loosest first:
  or, and                       boolean, short-circuit free
  not, !                        boolean negation
  == != < <= > >=               comparisons do not chain
  + -
  * / %
  unary + -
  **                            right associative
`,
	"types": `Types

  int       64-bit integer           { type: int, value: 2 }
  float     64-bit float             { type: float, value: 2.500000 }
  bool      true / false             { type: bool, value: true }
  null      the global 'null'        { type: null, value: nothing }
  function  result of 'fn'           { type: function, value: nothing }

Arithmetic on two ints stays int; any float operand makes the result float.
Comparisons accept numbers only; 'and', 'or', 'not' accept booleans only.
Variables hold numbers; functions live in their own namespace.
`,
	"functions": `Functions

  fn fact: n => if n <= 1 => 1 => n * fact(n - 1)
  fact(10)

Functions capture the scope they are defined in. A call evaluates its
arguments in the caller's scope and binds them in a fresh scope whose parent
is the defining scope. A bare name that is not a variable calls the function
of that name with no arguments. 'return' stops the enclosing function, even
from inside a nested if or block. Calls must match the parameter count.
`,
	"builtins": `Builtins

  add(a, ...)    sum, add() is 0.0
  sub(a, ...)    a minus the rest
  mul(a, ...)    product, mul() is 1.0
  div(a, b)      exactly two arguments, b must not be zero

Builtins take numbers and always return a float.
Run 'ember help builtins --index' for the registry listing.
`,
	"errors": `Errors

Parse time (ember check / run, exit code 2):
  SyntaxError          malformed input
  UndefinedVariable    call to an unknown function
  UnknownValue         unexpected token where a value was expected
Static checks (ember check):
  E_ARITY              call does not match the parameter count
  E_UNREACHABLE        statement after return
  E_ASSIGN_FN          named function assigned to a variable
Run time (exit code 3), printed as '<label> <message>':
  SyntaxError:         builtin called with the wrong argument count
  Zero Division Error: division or modulo by zero
  ValueError:          wrong operand types, arity, limits
  Undefined keyword:   unknown variable

The first error stops the program. The REPL prints it and keeps going.
`,
	"config": `Config

Settings are read from .ember.yaml in the working directory, else from
~/.ember/config.yaml, else defaults. Command-line flags win.

  log_level: info        debug, info, warn or error
  pretty: false          human-readable diagnostics instead of JSON
  prompt: ">>> "         REPL prompt
  max_call_depth: 0      0 uses the default of 10000
  timeout_ms: 0          0 disables the time limit
  show_ast: false        start the REPL with :ast enabled
`,
	"examples": `Examples

  x = 5
  y = 3
  if x > y => z = x - y
  z                                  # { type: int, value: 2 }

  fn sign: n => {
    if n < 0 => {
      return -1
    }
    if n == 0 => 0 => 1
  }
  sign(-4)                           # { type: int, value: -1 }

  fn make: base => {
    fn offset: n => base + n
    offset(10)
  }
  make(5)                            # { type: int, value: 15 }
`,
}

// MatchTopic resolves a topic by exact name or unique prefix.
func MatchTopic(query string) (string, string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[query]; ok {
		return query, content, nil
	}
	var matches []string
	if query != "" {
		for _, name := range TopicList {
			if strings.HasPrefix(name, query) {
				matches = append(matches, name)
			}
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("unknown help topic: %q", query)
	case 1:
		return matches[0], Topics[matches[0]], nil
	}
	return "", "", fmt.Errorf("ambiguous help topic %q: matches %s", query, strings.Join(matches, ", "))
}

// BuiltinIndex lists the builtins registered in r.
func BuiltinIndex(r *stdlib.Registry) string {
	fns := r.All()
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Builtins\n")
	for _, name := range names {
		arity := "variadic"
		if n := fns[name].Arity; n != stdlib.Variadic {
			arity = fmt.Sprintf("%d args", n)
		}
		fmt.Fprintf(&b, "  %-6s %s\n", name, arity)
	}
	fmt.Fprintf(&b, "\nTotal: %d functions\n", len(names))
	return b.String()
}
