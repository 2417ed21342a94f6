// Package evaluator walks Ember syntax trees against a chained environment
// and produces runtime values.
package evaluator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/oarkflow/log"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/env"
	"github.com/thomasrohde/ember/pkg/stdlib"
	"github.com/thomasrohde/ember/pkg/value"
)

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart      TraceEventType = "run_start"
	TraceRunEnd        TraceEventType = "run_end"
	TraceFnCallStart   TraceEventType = "fn_call_start"
	TraceFnCallEnd     TraceEventType = "fn_call_end"
	TraceBuiltin       TraceEventType = "builtin"
	TraceLimitExceeded TraceEventType = "limit_exceeded"
)

// TraceEvent represents a single trace event emitted during evaluation.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	RunID     string            `json:"runId,omitempty"`
	Event     TraceEventType    `json:"event"`
	Span      *ast.Span         `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Evaluator holds the configuration shared by evaluations. Per-run state
// lives in a tracker, so one Evaluator can serve successive REPL lines.
type Evaluator struct {
	logger   *log.Logger
	limits   Limits
	builtins *stdlib.Registry
	trace    func(TraceEvent)
	runID    string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger logs calls at debug level and limit violations at warn level.
func WithLogger(logger *log.Logger) Option {
	return func(ev *Evaluator) {
		ev.logger = logger
	}
}

// WithLimits sets the call depth and timeout limits.
func WithLimits(limits Limits) Option {
	return func(ev *Evaluator) {
		ev.limits = limits
	}
}

// WithBuiltins replaces the builtin registry.
func WithBuiltins(r *stdlib.Registry) Option {
	return func(ev *Evaluator) {
		ev.builtins = r
	}
}

// WithTrace installs a trace event sink.
func WithTrace(fn func(TraceEvent), runID string) Option {
	return func(ev *Evaluator) {
		ev.trace = fn
		ev.runID = runID
	}
}

// New creates an Evaluator with the default builtins and limits.
func New(opts ...Option) *Evaluator {
	ev := &Evaluator{builtins: stdlib.Default()}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate evaluates node in e with the default configuration.
func Evaluate(node ast.Node, e *env.Env) value.Value {
	return New().Eval(context.Background(), node, e)
}

// Eval evaluates node in e. Failures are returned as *value.Error values;
// a return wrapper never escapes.
func (ev *Evaluator) Eval(ctx context.Context, node ast.Node, e *env.Env) value.Value {
	if ev.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ev.limits.Timeout)
		defer cancel()
	}
	t := &tracker{ctx: ctx, start: time.Now()}

	var span *ast.Span
	if node != nil {
		s := node.NodeSpan()
		span = &s
	}
	ev.emit(TraceRunStart, span, nil)
	result := unwrap(ev.eval(t, node, e))
	ev.emit(TraceRunEnd, span, map[string]string{"type": string(result.Type())})
	return result
}

func (ev *Evaluator) emit(event TraceEventType, span *ast.Span, data map[string]string) {
	if ev.trace == nil {
		return
	}
	ev.trace(TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     ev.runID,
		Event:     event,
		Span:      span,
		Data:      data,
	})
}

func unwrap(v value.Value) value.Value {
	if r, ok := v.(value.Return); ok {
		return r.Value
	}
	return v
}

func isError(v value.Value) bool {
	_, ok := v.(*value.Error)
	return ok
}

func (ev *Evaluator) eval(t *tracker, node ast.Node, e *env.Env) value.Value {
	switch n := node.(type) {
	case nil:
		return value.NewNone()
	case *ast.IntLiteral:
		return value.NewInt(n.Value)
	case *ast.FloatLiteral:
		return value.NewFloat(n.Value)
	case *ast.BoolLiteral:
		return value.NewBool(n.Value)
	case *ast.BinaryExpr:
		return ev.evalBinary(t, n, e)
	case *ast.Comparison:
		return ev.evalComparison(t, n, e)
	case *ast.Logical:
		return ev.evalLogical(t, n, e)
	case *ast.Not:
		return ev.evalNot(t, n, e)
	case *ast.Unary:
		return ev.evalUnary(t, n, e)
	case *ast.Variable:
		return ev.evalVariable(t, n, e)
	case *ast.Assign:
		return ev.evalAssign(t, n, e)
	case *ast.Block:
		return ev.evalBlock(t, n, e)
	case *ast.If:
		return ev.evalIf(t, n, e)
	case *ast.Function:
		e.DefineFunction(n.Name, &env.Closure{Fn: n, Env: e})
		return value.Function{Name: n.Name}
	case *ast.Call:
		return ev.evalCall(t, n.Name, n.Args, n.Span, e)
	case *ast.Return:
		v := ev.eval(t, n.Value, e)
		if isError(v) {
			return v
		}
		return value.Return{Value: unwrap(v)}
	case *ast.BuiltinOp:
		return ev.evalBuiltin(t, n, e)
	case *ast.Object:
		for _, entry := range n.Entries {
			if v := ev.eval(t, entry.Value, e); isError(v) {
				return v
			}
		}
		return value.NewNone()
	}
	return value.Errorf(value.ValueError, "cannot evaluate %s", node.Kind()).At(node.NodeSpan())
}

// evalOperands evaluates left then right; the left error wins.
func (ev *Evaluator) evalOperands(t *tracker, l, r ast.Node, e *env.Env) (value.Value, value.Value, *value.Error) {
	left := ev.eval(t, l, e)
	if err, ok := left.(*value.Error); ok {
		return nil, nil, err
	}
	right := ev.eval(t, r, e)
	if err, ok := right.(*value.Error); ok {
		return nil, nil, err
	}
	return left, right, nil
}

func (ev *Evaluator) evalBinary(t *tracker, n *ast.BinaryExpr, e *env.Env) value.Value {
	left, right, err := ev.evalOperands(t, n.Left, n.Right, e)
	if err != nil {
		return err
	}
	if !value.IsNumber(left) || !value.IsNumber(right) {
		return value.Errorf(value.ValueError, "unsupported operand types for %s", n.Op).At(n.Span)
	}

	if n.Op == ast.OpDiv || n.Op == ast.OpMod {
		if d, _ := value.ToInt(right); d == 0 {
			return value.NewError(value.ZeroDivisionError, "division by zero is not allowed.").At(n.Span)
		}
	}

	if n.Op == ast.OpMod {
		l, _ := value.ToInt(left)
		r, _ := value.ToInt(right)
		return value.NewInt(l % r)
	}

	li, lInt := left.(value.Int)
	ri, rInt := right.(value.Int)
	if lInt && rInt {
		a, b := li.Value, ri.Value
		switch n.Op {
		case ast.OpAdd:
			return value.NewInt(a + b)
		case ast.OpSub:
			return value.NewInt(a - b)
		case ast.OpMul:
			return value.NewInt(a * b)
		case ast.OpDiv:
			return value.NewInt(a / b)
		case ast.OpPow:
			return value.NewInt(int64(math.Pow(float64(a), float64(b))))
		}
	}

	a, _ := value.ToFloat(left)
	b, _ := value.ToFloat(right)
	switch n.Op {
	case ast.OpAdd:
		return value.NewFloat(a + b)
	case ast.OpSub:
		return value.NewFloat(a - b)
	case ast.OpMul:
		return value.NewFloat(a * b)
	case ast.OpDiv:
		return value.NewFloat(a / b)
	case ast.OpPow:
		return value.NewFloat(math.Pow(a, b))
	}
	return value.Errorf(value.ValueError, "unsupported operator %s", n.Op).At(n.Span)
}

func (ev *Evaluator) evalComparison(t *tracker, n *ast.Comparison, e *env.Env) value.Value {
	left, right, err := ev.evalOperands(t, n.Left, n.Right, e)
	if err != nil {
		return err
	}
	_, lBool := left.(value.Bool)
	_, rBool := right.(value.Bool)
	if !(value.IsNumber(left) && value.IsNumber(right)) && !(lBool && rBool) {
		return value.NewError(value.ValueError, "unsupported operation on operands").At(n.Span)
	}

	a, _ := value.ToFloat(left)
	b, _ := value.ToFloat(right)
	switch n.Op {
	case ast.OpGt:
		return value.NewBool(a > b)
	case ast.OpGtEq:
		return value.NewBool(a >= b)
	case ast.OpLt:
		return value.NewBool(a < b)
	case ast.OpLtEq:
		return value.NewBool(a <= b)
	case ast.OpEqEq:
		return value.NewBool(a == b)
	case ast.OpNeq:
		return value.NewBool(a != b)
	}
	return value.Errorf(value.ValueError, "unsupported comparison %s", n.Op).At(n.Span)
}

func (ev *Evaluator) evalLogical(t *tracker, n *ast.Logical, e *env.Env) value.Value {
	left, right, err := ev.evalOperands(t, n.Left, n.Right, e)
	if err != nil {
		return err
	}
	l, lok := left.(value.Bool)
	r, rok := right.(value.Bool)
	if !lok || !rok {
		return value.Errorf(value.ValueError, "'%s' requires boolean operands, got %s and %s", n.Op, left.Type(), right.Type()).At(n.Span)
	}
	if n.Op == ast.OpAnd {
		return value.NewBool(l.Value && r.Value)
	}
	return value.NewBool(l.Value || r.Value)
}

func (ev *Evaluator) evalNot(t *tracker, n *ast.Not, e *env.Env) value.Value {
	v := ev.eval(t, n.Operand, e)
	if isError(v) {
		return v
	}
	b, ok := v.(value.Bool)
	if !ok {
		return value.Errorf(value.ValueError, "'not' requires a boolean operand, got %s", v.Type()).At(n.Span)
	}
	return value.NewBool(!b.Value)
}

func (ev *Evaluator) evalUnary(t *tracker, n *ast.Unary, e *env.Env) value.Value {
	v := ev.eval(t, n.Operand, e)
	if isError(v) {
		return v
	}
	switch num := v.(type) {
	case value.Int:
		if n.Op == ast.OpMinus {
			return value.NewInt(-num.Value)
		}
		return num
	case value.Float:
		if n.Op == ast.OpMinus {
			return value.NewFloat(-num.Value)
		}
		return num
	}
	return value.Errorf(value.ValueError, "unary '%s' requires a number, got %s", n.Op, v.Type()).At(n.Span)
}

// evalVariable prefers a variable binding, then calls a function of the
// same name without arguments.
func (ev *Evaluator) evalVariable(t *tracker, n *ast.Variable, e *env.Env) value.Value {
	if v, ok := e.LookupVariable(n.Name); ok {
		return v
	}
	if _, ok := e.LookupFunction(n.Name); ok {
		return ev.evalCall(t, n.Name, nil, n.Span, e)
	}
	return value.NewError(value.UndefinedIdentifier, n.Name).At(n.Span)
}

// evalAssign binds the value of the right-hand side. A return reached
// while evaluating it still binds the value and then propagates.
func (ev *Evaluator) evalAssign(t *tracker, n *ast.Assign, e *env.Env) value.Value {
	result := ev.eval(t, n.Value, e)
	if ret, ok := result.(value.Return); ok {
		if value.IsNumber(ret.Value) {
			e.DefineVariable(n.Name, ret.Value)
		}
		return ret
	}
	v := unwrap(result)
	if isError(v) {
		return v
	}
	if !value.IsNumber(v) {
		return value.Errorf(value.ValueError, "cannot assign a non-numeric value to %s", n.Name).At(n.Span)
	}
	e.DefineVariable(n.Name, v)
	return v
}

// evalBlock stops at the first error or return wrapper and propagates it.
func (ev *Evaluator) evalBlock(t *tracker, n *ast.Block, e *env.Env) value.Value {
	var last value.Value = value.NewNone()
	for _, stmt := range n.Statements {
		if err := ev.checkDeadline(t); err != nil {
			return err.At(stmt.NodeSpan())
		}
		last = ev.eval(t, stmt, e)
		switch last.(type) {
		case *value.Error, value.Return:
			return last
		}
	}
	return last
}

func (ev *Evaluator) evalIf(t *tracker, n *ast.If, e *env.Env) value.Value {
	cond := ev.eval(t, n.Cond, e)
	if isError(cond) {
		return cond
	}
	b, ok := cond.(value.Bool)
	if !ok {
		return value.NewError(value.ValueError, "expected a boolean condition after if").At(n.Cond.NodeSpan())
	}
	if b.Value {
		return ev.eval(t, n.Then, e)
	}
	if n.Else != nil {
		return ev.eval(t, n.Else, e)
	}
	return value.NewNone()
}

// evalCall binds the arguments, evaluated in the caller's scope, into a
// fresh scope whose parent is the closure's defining environment.
func (ev *Evaluator) evalCall(t *tracker, name string, args []ast.Node, span ast.Span, e *env.Env) value.Value {
	closure, ok := e.LookupFunction(name)
	if !ok || closure.Fn == nil {
		return value.NewError(value.UndefinedIdentifier, name).At(span)
	}
	fn := closure.Fn

	switch {
	case len(args) < len(fn.Params):
		return value.NewError(value.ValueError, "missing arguments").At(span)
	case len(args) > len(fn.Params):
		return value.NewError(value.ValueError, "too many arguments provided").At(span)
	}

	if err := ev.checkDeadline(t); err != nil {
		return err.At(span)
	}

	parent := closure.Env
	if parent == nil {
		parent = e
	}
	scope := env.New(parent)
	for i, arg := range args {
		v := unwrap(ev.eval(t, arg, e))
		if isError(v) {
			return v
		}
		switch v.(type) {
		case value.Int, value.Float, value.Bool:
		default:
			return value.Errorf(value.ValueError, "argument %s of %s must be a number or a boolean, got %s", fn.Params[i], name, v.Type()).At(arg.NodeSpan())
		}
		scope.DefineVariable(fn.Params[i], v)
	}

	if err := ev.enterCall(t); err != nil {
		return err.At(span)
	}
	defer ev.leaveCall(t)

	if ev.logger != nil {
		ev.logger.Debug().Str("fn", name).Int("args", len(args)).Int("depth", t.depth).Msg("call")
	}
	ev.emit(TraceFnCallStart, &span, map[string]string{"fn": name})
	result := unwrap(ev.eval(t, fn.Body, scope))
	ev.emit(TraceFnCallEnd, &span, map[string]string{"fn": name, "type": string(result.Type())})
	return result
}

func (ev *Evaluator) evalBuiltin(t *tracker, n *ast.BuiltinOp, e *env.Env) value.Value {
	var fn *stdlib.Fn
	if ev.builtins != nil {
		fn = ev.builtins.Get(string(n.Op))
	}
	if fn == nil {
		return value.NewError(value.UndefinedIdentifier, string(n.Op)).At(n.Span)
	}
	if err := fn.CheckArity(len(n.Args)); err != nil {
		return err.At(n.Span)
	}

	args := make([]value.Value, len(n.Args))
	for i, arg := range n.Args {
		v := unwrap(ev.eval(t, arg, e))
		if isError(v) {
			return v
		}
		args[i] = v
	}

	ev.emit(TraceBuiltin, &n.Span, map[string]string{"fn": fn.Name})
	result, err := fn.Execute(args)
	if err != nil {
		var verr *value.Error
		if errors.As(err, &verr) {
			return verr.At(n.Span)
		}
		return value.Errorf(value.ValueError, "%s: %v", fn.Name, err).At(n.Span)
	}
	return result
}
