package stdlib

import (
	"github.com/thomasrohde/ember/pkg/value"
)

// RegisterDefaults adds the four arithmetic builtins.
func RegisterDefaults(r *Registry) {
	r.Register(Fn{Name: "add", Arity: Variadic, Execute: builtinAdd})
	r.Register(Fn{Name: "sub", Arity: Variadic, Execute: builtinSub})
	r.Register(Fn{Name: "mul", Arity: Variadic, Execute: builtinMul})
	r.Register(Fn{Name: "div", Arity: 2, Execute: builtinDiv})
}

// floats converts every argument to float64. Only Int and Float are
// accepted.
func floats(name string, args []value.Value) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		if !value.IsNumber(a) {
			return nil, value.Errorf(value.ValueError, "`%s` expects numeric arguments, got %s", name, a.Type())
		}
		out[i], _ = value.ToFloat(a)
	}
	return out, nil
}

// add(a, b, ...) → sum as float, 0.0 when empty
func builtinAdd(args []value.Value) (value.Value, error) {
	nums, err := floats("add", args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return value.NewFloat(sum), nil
}

// sub(a, b, ...) → a minus the rest, 0.0 when empty
func builtinSub(args []value.Value) (value.Value, error) {
	nums, err := floats("sub", args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return value.NewFloat(0), nil
	}
	result := nums[0]
	for _, n := range nums[1:] {
		result -= n
	}
	return value.NewFloat(result), nil
}

// mul(a, b, ...) → product as float, 1.0 when empty
func builtinMul(args []value.Value) (value.Value, error) {
	nums, err := floats("mul", args)
	if err != nil {
		return nil, err
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return value.NewFloat(product), nil
}

// div(a, b) → a / b as float
func builtinDiv(args []value.Value) (value.Value, error) {
	nums, err := floats("div", args)
	if err != nil {
		return nil, err
	}
	if len(nums) != 2 {
		return nil, value.NewError(value.SyntaxError, "`div` accepts exactly two arguments.")
	}
	if nums[1] == 0 {
		return nil, value.NewError(value.ZeroDivisionError, "Division by zero is not allowed.")
	}
	return value.NewFloat(nums[0] / nums[1]), nil
}
