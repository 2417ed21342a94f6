// Package runtime provides the top-level Ember runtime orchestrator.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/log"

	"github.com/thomasrohde/ember/pkg/ast"
	"github.com/thomasrohde/ember/pkg/config"
	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/env"
	"github.com/thomasrohde/ember/pkg/evaluator"
	"github.com/thomasrohde/ember/pkg/formatter"
	"github.com/thomasrohde/ember/pkg/parser"
	"github.com/thomasrohde/ember/pkg/stdlib"
	"github.com/thomasrohde/ember/pkg/validator"
	"github.com/thomasrohde/ember/pkg/value"
)

// Result holds the outcome of a program execution.
type Result struct {
	Value   value.Value
	Program *ast.Block
	Elapsed time.Duration
}

// Runtime wires together all Ember components for program execution.
type Runtime struct {
	logger   *log.Logger
	limits   evaluator.Limits
	builtins *stdlib.Registry
	runID    string
	trace    func(event evaluator.TraceEvent)
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for timing and failure events.
func WithLogger(logger *log.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithLimits sets the evaluation limits.
func WithLimits(limits evaluator.Limits) Option {
	return func(rt *Runtime) {
		rt.limits = limits
	}
}

// WithConfig applies the limits of a loaded config.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		if cfg == nil {
			return
		}
		rt.limits = evaluator.Limits{MaxCallDepth: cfg.MaxCallDepth, Timeout: cfg.Timeout()}
	}
}

// WithBuiltins sets the builtin registry.
func WithBuiltins(r *stdlib.Registry) Option {
	return func(rt *Runtime) {
		rt.builtins = r
	}
}

// WithRunID sets the run ID for trace events.
func WithRunID(id string) Option {
	return func(rt *Runtime) {
		rt.runID = id
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(rt *Runtime) {
		rt.trace = fn
	}
}

// New creates a new Runtime with the given options.
// By default the builtins add, sub, mul and div are registered.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		logger:   &log.DefaultLogger,
		builtins: stdlib.Default(),
		runID:    "cli",
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = &log.DefaultLogger
	}
	return rt
}

func (rt *Runtime) evaluator() *evaluator.Evaluator {
	opts := []evaluator.Option{
		evaluator.WithLogger(rt.logger),
		evaluator.WithLimits(rt.limits),
		evaluator.WithBuiltins(rt.builtins),
	}
	if rt.trace != nil {
		opts = append(opts, evaluator.WithTrace(rt.trace, rt.runID))
	}
	return evaluator.New(opts...)
}

// parse parses source into global, converting failures to a DiagnosticError.
func (rt *Runtime) parse(source, filename string, global *env.Env) (*ast.Block, error) {
	start := time.Now()
	program, err := parser.Parse(source, filename, global)
	if err != nil {
		d, ok := parser.Diagnostic(err)
		if !ok {
			return nil, err
		}
		rt.logger.Debug().Str("file", filename).Str("code", d.Code).Msg("parse failed")
		return nil, &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{d}}
	}
	rt.logger.Debug().Str("file", filename).Int("statements", len(program.Statements)).
		Str("elapsed", time.Since(start).String()).Msg("parsed")
	return program, nil
}

// Run parses and executes an Ember program in a fresh global environment.
// Parse failures are returned as *DiagnosticError, runtime failures as
// *value.Error together with a Result holding the error value.
func (rt *Runtime) Run(ctx context.Context, source, filename string) (*Result, error) {
	global := env.NewGlobal()
	program, err := rt.parse(source, filename, global)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	v := rt.evaluator().Eval(ctx, program, global)
	res := &Result{Value: v, Program: program, Elapsed: time.Since(start)}
	if verr, ok := value.AsError(v); ok {
		rt.logger.Debug().Str("file", filename).Str("kind", string(verr.Kind)).Msg("evaluation failed")
		return res, verr
	}
	rt.logger.Debug().Str("file", filename).Str("type", string(v.Type())).
		Str("elapsed", res.Elapsed.String()).Msg("evaluated")
	return res, nil
}

// Check parses and validates an Ember program without executing it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	program, err := rt.parse(source, filename, env.NewGlobal())
	if err != nil {
		return diagnosticsOf(err)
	}
	return validator.Validate(program)
}

// Format parses and formats an Ember program.
func (rt *Runtime) Format(source, filename string) (string, error) {
	program, err := rt.parse(source, filename, env.NewGlobal())
	if err != nil {
		return "", err
	}
	return formatter.Format(program), nil
}

// Dump parses an Ember program and renders its syntax tree.
func (rt *Runtime) Dump(source, filename string) (string, error) {
	program, err := rt.parse(source, filename, env.NewGlobal())
	if err != nil {
		return "", err
	}
	return ast.Dump(program), nil
}

func diagnosticsOf(err error) []diagnostics.Diagnostic {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Diagnostics
	}
	return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.ESyntax, err.Error(), nil, "")}
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// ErrorLine renders err the way the REPL prints it: "<label> <message>".
func ErrorLine(err error) string {
	var verr *value.Error
	if errors.As(err, &verr) {
		return verr.String()
	}
	var de *DiagnosticError
	if errors.As(err, &de) && len(de.Diagnostics) > 0 {
		d := de.Diagnostics[0]
		return diagnostics.Label(d.Code) + " " + d.Message
	}
	return err.Error()
}
