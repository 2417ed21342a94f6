// Package stdlib provides the Ember builtin operator registry.
package stdlib

import (
	"fmt"

	"github.com/thomasrohde/ember/pkg/value"
)

// Variadic marks a builtin that accepts any number of arguments.
const Variadic = -1

// Fn represents a builtin operator.
type Fn struct {
	Name string
	// Arity is the exact argument count, or Variadic.
	Arity   int
	Execute func(args []value.Value) (value.Value, error)
}

// CheckArity reports a SyntaxError when n arguments cannot be passed to fn.
// It runs before any argument is evaluated.
func (fn *Fn) CheckArity(n int) *value.Error {
	if fn.Arity == Variadic || n == fn.Arity {
		return nil
	}
	return value.Errorf(value.SyntaxError, "`%s` accepts exactly %s arguments.", fn.Name, countWord(fn.Arity))
}

func countWord(n int) string {
	words := []string{"zero", "one", "two", "three", "four"}
	if n >= 0 && n < len(words) {
		return words[n]
	}
	return fmt.Sprint(n)
}

// Registry holds registered builtins.
type Registry struct {
	fns map[string]*Fn
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]*Fn),
	}
}

// Default returns a registry holding add, sub, mul and div.
func Default() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// Register adds a builtin to the registry.
func (r *Registry) Register(fn Fn) {
	r.fns[fn.Name] = &fn
}

// Get retrieves a builtin by name.
func (r *Registry) Get(name string) *Fn {
	return r.fns[name]
}

// All returns all registered builtins.
func (r *Registry) All() map[string]*Fn {
	return r.fns
}
