// Package value defines the Ember runtime values produced by evaluation.
package value

import "fmt"

// Type names the kind of a runtime value.
type Type string

const (
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeBool     Type = "bool"
	TypeNone     Type = "null"
	TypeFunction Type = "function"
	TypeError    Type = "error"
)

// Value is the interface for all runtime values.
// The sealed marker restricts implementations to this package.
type Value interface {
	Type() Type
	String() string
	value() // sealed marker
}

// Int is a 64-bit integer value.
type Int struct {
	Value int64
}

func (Int) Type() Type { return TypeInt }
func (v Int) String() string {
	return fmt.Sprintf("{ type: int, value: %d }", v.Value)
}
func (Int) value() {}

// Float is a 64-bit floating point value.
type Float struct {
	Value float64
}

func (Float) Type() Type { return TypeFloat }
func (v Float) String() string {
	return fmt.Sprintf("{ type: float, value: %f }", v.Value)
}
func (Float) value() {}

// Bool is a boolean value.
type Bool struct {
	Value bool
}

func (Bool) Type() Type { return TypeBool }
func (v Bool) String() string {
	return fmt.Sprintf("{ type: bool, value: %t }", v.Value)
}
func (Bool) value() {}

// None is the absence of a value.
type None struct{}

func (None) Type() Type     { return TypeNone }
func (None) String() string { return "{ type: null, value: nothing }" }
func (None) value()         {}

// Function is the marker produced by evaluating a function definition.
type Function struct {
	Name string
}

func (Function) Type() Type     { return TypeFunction }
func (Function) String() string { return "{ type: function, value: nothing }" }
func (Function) value()         {}

// Return carries a value out of nested blocks after a return statement.
// It is unwrapped by the enclosing call and never reaches callers of the
// evaluator.
type Return struct {
	Value Value
}

func (r Return) Type() Type     { return r.Value.Type() }
func (r Return) String() string { return r.Value.String() }
func (Return) value()           {}

// NewInt creates an integer value.
func NewInt(i int64) Value {
	return Int{Value: i}
}

// NewFloat creates a float value.
func NewFloat(f float64) Value {
	return Float{Value: f}
}

// NewBool creates a boolean value.
func NewBool(b bool) Value {
	return Bool{Value: b}
}

// NewNone creates the none value.
func NewNone() Value {
	return None{}
}

// IsNumber reports whether v is an Int or a Float.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// ToFloat coerces a number or bool to float64.
func ToFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val.Value), true
	case Float:
		return val.Value, true
	case Bool:
		if val.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToInt coerces a number or bool to int64, truncating floats.
func ToInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return val.Value, true
	case Float:
		return int64(val.Value), true
	case Bool:
		if val.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
