// Package env implements the chained lexical scopes shared by the parser
// and the evaluator.
package env

import (
	"sort"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/value"
)

// Closure is a function binding: the definition plus the environment it
// was defined in. Calls parent their scope to Env.
type Closure struct {
	Fn  *ast.Function
	Env *Env
}

// Env is a scoped environment for variable and function bindings.
// It supports parent-chained lookup for lexical scoping. An Env is not safe
// for concurrent use.
type Env struct {
	variables map[string]value.Value
	functions map[string]*Closure
	parent    *Env
}

// New creates a new environment with an optional parent scope.
func New(parent *Env) *Env {
	return &Env{
		variables: make(map[string]value.Value),
		functions: make(map[string]*Closure),
		parent:    parent,
	}
}

// NewGlobal creates a root environment with the predefined bindings.
func NewGlobal() *Env {
	e := New(nil)
	e.DefineVariable("null", value.NewNone())
	return e
}

// Child creates a new child scope whose parent is this environment.
func (e *Env) Child() *Env {
	return New(e)
}

// Parent returns the enclosing scope, or nil for the root.
func (e *Env) Parent() *Env {
	return e.parent
}

// DefineVariable binds a variable in this scope, replacing any existing
// binding here. Ancestor scopes are never touched.
func (e *Env) DefineVariable(name string, v value.Value) {
	e.variables[name] = v
}

// DefineFunction binds a function in this scope.
func (e *Env) DefineFunction(name string, c *Closure) {
	e.functions[name] = c
}

// DeleteFunction removes a function binding from this scope only.
func (e *Env) DeleteFunction(name string) {
	delete(e.functions, name)
}

// LocalFunction returns the function bound in this scope only.
func (e *Env) LocalFunction(name string) (*Closure, bool) {
	c, ok := e.functions[name]
	return c, ok
}

// LookupVariable finds the nearest variable binding.
func (e *Env) LookupVariable(name string) (value.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// LookupFunction finds the nearest function binding.
func (e *Env) LookupFunction(name string) (*Closure, bool) {
	for s := e; s != nil; s = s.parent {
		if c, ok := s.functions[name]; ok {
			return c, true
		}
	}
	return nil, false
}

// ResolveFunction returns the definition bound to name, if any.
func (e *Env) ResolveFunction(name string) (*ast.Function, bool) {
	c, ok := e.LookupFunction(name)
	if !ok || c.Fn == nil {
		return nil, false
	}
	return c.Fn, true
}

// FindOwningScope returns the nearest scope that binds name as a variable
// or a function, or nil.
func (e *Env) FindOwningScope(name string) *Env {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.variables[name]; ok {
			return s
		}
		if _, ok := s.functions[name]; ok {
			return s
		}
	}
	return nil
}

// Depth returns the number of ancestors of this scope.
func (e *Env) Depth() int {
	d := 0
	for s := e.parent; s != nil; s = s.parent {
		d++
	}
	return d
}

// Binding describes one name bound in a scope.
type Binding struct {
	Name     string
	Value    value.Value // nil for functions
	Function *ast.Function
}

// Bindings lists the bindings of this scope sorted by name.
func (e *Env) Bindings() []Binding {
	out := make([]Binding, 0, len(e.variables)+len(e.functions))
	for name, v := range e.variables {
		out = append(out, Binding{Name: name, Value: v})
	}
	for name, c := range e.functions {
		out = append(out, Binding{Name: name, Function: c.Fn})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Function == nil
	})
	return out
}

// Names lists the variable and function names bound in this scope, sorted
// and without duplicates.
func (e *Env) Names() []string {
	seen := make(map[string]bool, len(e.variables)+len(e.functions))
	out := make([]string, 0, len(e.variables)+len(e.functions))
	for _, b := range e.Bindings() {
		if !seen[b.Name] {
			seen[b.Name] = true
			out = append(out, b.Name)
		}
	}
	return out
}
