// Command ember is the Ember interpreter CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/oarkflow/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/ember/pkg/config"
	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/evaluator"
	"github.com/thomasrohde/ember/pkg/formatter"
	"github.com/thomasrohde/ember/pkg/help"
	"github.com/thomasrohde/ember/pkg/runtime"
	"github.com/thomasrohde/ember/pkg/stdlib"
	"github.com/thomasrohde/ember/pkg/value"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitDiag    = 2
	exitRuntime = 3
)

// maxParallel bounds the number of files run at once.
const maxParallel = 8

func main() {
	if len(os.Args) < 2 {
		os.Exit(cmdRepl(nil))
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "fmt":
		os.Exit(cmdFmt(os.Args[2:]))
	case "ast":
		os.Exit(cmdAst(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "trace":
		os.Exit(cmdTrace(os.Args[2:]))
	case "config":
		os.Exit(cmdConfig(os.Args[2:]))
	case "help", "--help", "-h":
		os.Exit(cmdHelp(os.Args[2:]))
	default:
		if !strings.HasPrefix(cmd, "-") {
			// ember FILE is shorthand for ember run FILE.
			os.Exit(cmdRun(os.Args[1:]))
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprintln(os.Stderr, "usage: ember <command> [options]")
		fmt.Fprintln(os.Stderr, "commands: run, check, fmt, ast, repl, trace, config, help")
		os.Exit(exitUsage)
	}
}

// options holds the flags shared by the commands.
type options struct {
	files    []string
	pretty   bool
	json     bool
	verbose  bool
	write    bool
	index    bool
	trace    string
	maxDepth int
	timeout  int
	showAST  bool
}

func parseArgs(args []string) (*options, error) {
	opts := &options{maxDepth: -1, timeout: -1}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--pretty":
			opts.pretty = true
		case "--json":
			opts.json = true
		case "--verbose", "-v":
			opts.verbose = true
		case "--write", "-w":
			opts.write = true
		case "--index":
			opts.index = true
		case "--ast":
			opts.showAST = true
		case "--trace", "--max-depth", "--timeout":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", arg)
			}
			i++
			if arg == "--trace" {
				opts.trace = args[i]
				continue
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%s expects a non-negative integer, got %q", arg, args[i])
			}
			if arg == "--max-depth" {
				opts.maxDepth = n
			} else {
				opts.timeout = n
			}
		default:
			if strings.HasPrefix(arg, "-") && arg != "-" {
				return nil, fmt.Errorf("unknown flag: %s", arg)
			}
			opts.files = append(opts.files, arg)
		}
	}
	return opts, nil
}

// loadConfig reads the config files and applies flag overrides.
func loadConfig(opts *options) (*config.Config, *log.Logger, int) {
	cwd, _ := os.Getwd()
	cfg, err := config.Load(cwd)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(cerr.Diagnostic(), opts.pretty))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return nil, nil, exitUsage
	}
	if opts.pretty {
		cfg.Pretty = true
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.maxDepth >= 0 {
		cfg.MaxCallDepth = opts.maxDepth
	}
	if opts.timeout >= 0 {
		cfg.TimeoutMs = opts.timeout
	}
	if opts.showAST {
		cfg.ShowAST = true
	}

	logger := newLogger(cfg.LogLevel)
	if cfg.Source != "" {
		logger.Debug().Str("path", cfg.Source).Msg("config loaded")
	}
	return cfg, logger, exitOK
}

var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

func newLogger(level string) *log.Logger {
	logger := log.DefaultLogger
	if l, ok := logLevels[level]; ok {
		logger.Level = l
	}
	return &logger
}

func usageError(err error, usage string) int {
	fmt.Fprintln(os.Stderr, err)
	fmt.Fprintln(os.Stderr, usage)
	return exitUsage
}

// fileResult is the outcome of running one file.
type fileResult struct {
	file   string
	value  value.Value
	err    error
	stderr string
	code   int
}

func cmdRun(args []string) int {
	const usage = "usage: ember run <file>... [--json] [--pretty] [--verbose] [--trace <path>] [--max-depth N] [--timeout MS]"
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, usage)
	}
	if len(opts.files) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}
	cfg, logger, code := loadConfig(opts)
	if code != exitOK {
		return code
	}

	var traceSink func(evaluator.TraceEvent)
	if opts.trace != "" {
		f, err := os.Create(opts.trace)
		if err != nil {
			diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot write trace file: %s", opts.trace), nil, "")
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(diag, cfg.Pretty))
			return exitUsage
		}
		defer f.Close()
		traceSink = traceWriter(f)
	}

	results := make([]fileResult, len(opts.files))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxParallel)
	for i, file := range opts.files {
		g.Go(func() error {
			results[i] = runFile(ctx, file, cfg, logger, traceSink)
			return nil
		})
	}
	_ = g.Wait()

	exit := exitOK
	for _, res := range results {
		if len(results) > 1 {
			fmt.Printf("==> %s <==\n", res.file)
		}
		if res.stderr != "" {
			fmt.Fprintln(os.Stderr, res.stderr)
		}
		if res.value != nil && res.err == nil {
			printValue(res.value, opts.json)
		}
		if res.code != exitOK {
			logger.Debug().Str("file", res.file).Int("exit", res.code).Msg("run failed")
		}
		if res.code > exit {
			exit = res.code
		}
	}
	return exit
}

func runFile(ctx context.Context, file string, cfg *config.Config, logger *log.Logger, traceSink func(evaluator.TraceEvent)) fileResult {
	res := fileResult{file: file}
	source, filename, err := readSource(file)
	if err != nil {
		res.stderr = diagnostics.FormatDiagnostic(diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), cfg.Pretty)
		res.code = exitUsage
		return res
	}

	rtOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithConfig(cfg),
		runtime.WithRunID(filename),
	}
	if traceSink != nil {
		rtOpts = append(rtOpts, runtime.WithTrace(traceSink))
	}
	result, err := runtime.New(rtOpts...).Run(ctx, source, filename)
	if err == nil {
		res.value = result.Value
		return res
	}

	res.err = err
	var de *runtime.DiagnosticError
	var verr *value.Error
	switch {
	case errors.As(err, &de):
		res.stderr = diagnostics.FormatDiagnostics(de.Diagnostics, cfg.Pretty)
		res.code = exitDiag
	case errors.As(err, &verr):
		if cfg.Pretty {
			res.stderr = diagnostics.FormatDiagnostic(diagnostics.MakeDiag(string(verr.Kind), verr.Message, verr.Span, ""), true)
		} else {
			res.stderr = verr.String()
		}
		res.code = exitRuntime
	default:
		res.stderr = err.Error()
		res.code = exitRuntime
	}
	logger.Debug().Str("file", filename).Err(err).Msg("program failed")
	return res
}

func printValue(v value.Value, asJSON bool) {
	if !asJSON {
		fmt.Println(v.String())
		return
	}
	b, err := value.ToJSON(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error serializing result: %s\n", err)
		return
	}
	fmt.Println(string(b))
}

// traceWriter returns a sink writing one JSON event per line.
func traceWriter(w io.Writer) func(evaluator.TraceEvent) {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(e evaluator.TraceEvent) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(e)
	}
}

func cmdCheck(args []string) int {
	const usage = "usage: ember check <file> [--pretty]"
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, usage)
	}
	if len(opts.files) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}
	cfg, logger, code := loadConfig(opts)
	if code != exitOK {
		return code
	}

	source, filename, err := readSource(opts.files[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), cfg.Pretty))
		return exitUsage
	}

	rt := runtime.New(runtime.WithLogger(logger))
	diags := rt.Check(source, filename)
	if len(diags) > 0 {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diags, cfg.Pretty))
		return exitDiag
	}

	if cfg.Pretty {
		fmt.Println("No errors found.")
	} else {
		fmt.Println("[]")
	}
	return exitOK
}

func cmdFmt(args []string) int {
	const usage = "usage: ember fmt <file> [--write]"
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, usage)
	}
	if len(opts.files) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}
	file := opts.files[0]
	cfg, logger, code := loadConfig(opts)
	if code != exitOK {
		return code
	}

	source, filename, err := readSource(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), cfg.Pretty))
		return exitUsage
	}

	rt := runtime.New(runtime.WithLogger(logger))
	formatted, fmtErr := rt.Format(source, filename)
	if fmtErr != nil {
		var de *runtime.DiagnosticError
		if errors.As(fmtErr, &de) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(de.Diagnostics, cfg.Pretty))
		} else {
			fmt.Fprintln(os.Stderr, fmtErr.Error())
		}
		return exitDiag
	}

	if formatter.HasComments(source) {
		fmt.Fprintln(os.Stderr, "warning: comments are not preserved by the formatter")
	}

	if opts.write && file != "-" {
		if err := os.WriteFile(file, []byte(formatted), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing file: %s\n", err)
			return exitUsage
		}
		return exitOK
	}
	fmt.Print(formatted)
	return exitOK
}

func cmdAst(args []string) int {
	const usage = "usage: ember ast <file>"
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, usage)
	}
	if len(opts.files) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}
	cfg, logger, code := loadConfig(opts)
	if code != exitOK {
		return code
	}
	source, filename, err := readSource(opts.files[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(diagnostics.MakeDiag(diagnostics.EIO, err.Error(), nil, ""), cfg.Pretty))
		return exitUsage
	}
	out, err := runtime.New(runtime.WithLogger(logger)).Dump(source, filename)
	if err != nil {
		var de *runtime.DiagnosticError
		if errors.As(err, &de) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(de.Diagnostics, cfg.Pretty))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitDiag
	}
	fmt.Print(out)
	return exitOK
}

func cmdHelp(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, "usage: ember help [topic] [--index]")
	}
	topic := ""
	if len(opts.files) > 0 {
		topic = opts.files[0]
	}

	if opts.index {
		if topic == "" {
			fmt.Fprintln(os.Stderr, "error: --index requires a topic (e.g., ember help builtins --index)")
			return exitUsage
		}
		if name, _, err := help.MatchTopic(topic); err != nil || name != "builtins" {
			fmt.Fprintln(os.Stderr, "error: --index is only supported for the builtins topic")
			return exitUsage
		}
		fmt.Print(help.BuiltinIndex(stdlib.Default()))
		return exitOK
	}

	if topic == "" {
		fmt.Print(help.QUICKREF)
		return exitOK
	}

	_, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return exitUsage
	}
	fmt.Print(content)
	return exitOK
}

// cmdConfig prints the effective configuration as YAML.
func cmdConfig(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, "usage: ember config")
	}
	cfg, _, code := loadConfig(opts)
	if code != exitOK {
		return code
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if cfg.Source != "" {
		fmt.Printf("# from %s\n", cfg.Source)
	} else {
		fmt.Println("# built-in defaults")
	}
	fmt.Print(string(out))
	return exitOK
}

func readSource(file string) (string, string, error) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("cannot read stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return "", "", fmt.Errorf("cannot read file: %s", file)
	}
	return string(source), file, nil
}
