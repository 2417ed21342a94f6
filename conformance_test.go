package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thomasrohde/ember/internal/testutil"
	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/runtime"
	"github.com/thomasrohde/ember/pkg/value"
)

// outcome is what the CLI would have produced for a scenario.
type outcome struct {
	exitCode int
	stdout   string
	stdoutV  any
	stderr   string
	diags    []diagnostics.Diagnostic
}

func TestConformance(t *testing.T) {
	dirs, err := testutil.ListScenarios(testutil.ScenariosDir)
	if err != nil {
		t.Fatalf("failed to list scenarios: %v", err)
	}
	if len(dirs) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, scenarioDir := range dirs {
		t.Run(filepath.Base(scenarioDir), func(t *testing.T) {
			scenario, err := testutil.LoadScenario(scenarioDir)
			if err != nil {
				t.Fatalf("failed to load scenario: %v", err)
			}

			source, filename, err := testutil.ReadProgramFile(scenarioDir, scenario.Cmd)
			if err != nil {
				t.Fatalf("failed to read program file: %v", err)
			}

			cfg, err := testutil.ScenarioConfig(scenario)
			if err != nil {
				t.Fatalf("bad scenario config: %v", err)
			}
			pretty := false
			for _, arg := range scenario.Cmd {
				if arg == "--pretty" {
					pretty = true
				}
			}

			rt := runtime.New(runtime.WithConfig(cfg), runtime.WithRunID("test"))
			var got outcome
			switch cmd := scenario.Cmd[0]; cmd {
			case "run":
				got = runScenario(t, rt, source, filename, pretty)
			case "check":
				got = checkScenario(rt, source, filename, pretty)
			case "fmt":
				got = toolScenario(rt.Format, source, filename, pretty)
			case "ast":
				got = toolScenario(rt.Dump, source, filename, pretty)
			default:
				t.Skipf("unsupported command: %s", cmd)
			}
			checkExpectations(t, got, scenario)
		})
	}
}

func runScenario(t *testing.T, rt *runtime.Runtime, source, filename string, pretty bool) outcome {
	t.Helper()
	result, err := rt.Run(context.Background(), source, filename)
	if err != nil {
		return errorOutcome(err, pretty)
	}
	raw, jerr := value.ToJSON(result.Value)
	if jerr != nil {
		t.Fatalf("failed to serialize result: %v", jerr)
	}
	var v any
	if jerr := json.Unmarshal(raw, &v); jerr != nil {
		t.Fatalf("failed to parse result JSON: %v", jerr)
	}
	return outcome{stdout: result.Value.String(), stdoutV: v}
}

func checkScenario(rt *runtime.Runtime, source, filename string, pretty bool) outcome {
	diags := rt.Check(source, filename)
	if len(diags) > 0 {
		return outcome{exitCode: 2, stderr: diagnostics.FormatDiagnostics(diags, pretty), diags: diags}
	}
	return outcome{stdout: "[]", stdoutV: []any{}}
}

func toolScenario(fn func(source, filename string) (string, error), source, filename string, pretty bool) outcome {
	out, err := fn(source, filename)
	if err != nil {
		return errorOutcome(err, pretty)
	}
	return outcome{stdout: out}
}

func errorOutcome(err error, pretty bool) outcome {
	var de *runtime.DiagnosticError
	if errors.As(err, &de) {
		return outcome{exitCode: 2, stderr: diagnostics.FormatDiagnostics(de.Diagnostics, pretty), diags: de.Diagnostics}
	}
	var verr *value.Error
	if errors.As(err, &verr) {
		diag := diagnostics.MakeDiag(string(verr.Kind), verr.Message, verr.Span, "")
		stderr := verr.String()
		if pretty {
			stderr = diagnostics.FormatDiagnostic(diag, true)
		}
		return outcome{exitCode: 3, stderr: stderr, diags: []diagnostics.Diagnostic{diag}}
	}
	return outcome{exitCode: 3, stderr: err.Error()}
}

func checkExpectations(t *testing.T, got outcome, scenario *testutil.Scenario) {
	t.Helper()
	want := scenario.Expect

	if got.exitCode != want.ExitCode {
		t.Errorf("exit code: got %d, want %d (stderr: %s)", got.exitCode, want.ExitCode, got.stderr)
	}
	if want.StdoutText != "" && got.stdout != want.StdoutText {
		t.Errorf("stdout:\n  got:  %q\n  want: %q", got.stdout, want.StdoutText)
	}
	if want.StdoutContains != "" && !strings.Contains(got.stdout, want.StdoutContains) {
		t.Errorf("stdout should contain %q, got: %s", want.StdoutContains, got.stdout)
	}
	if want.StdoutJSON != nil {
		expected, err := testutil.NormalizeJSON(want.StdoutJSON)
		if err != nil {
			t.Fatalf("bad stdoutJson: %v", err)
		}
		if diff := cmp.Diff(expected, got.stdoutV); diff != "" {
			t.Errorf("stdout JSON mismatch (-want +got):\n%s", diff)
		}
	}
	if want.StderrText != "" && got.stderr != want.StderrText {
		t.Errorf("stderr:\n  got:  %q\n  want: %q", got.stderr, want.StderrText)
	}
	if want.StderrContains != "" && !strings.Contains(got.stderr, want.StderrContains) {
		t.Errorf("stderr should contain %q, got: %s", want.StderrContains, got.stderr)
	}
	if want.StderrJSONSubset != nil {
		checkDiagSubset(t, got.diags, want.StderrJSONSubset)
	}
}

func checkDiagSubset(t *testing.T, diags []diagnostics.Diagnostic, subset any) {
	t.Helper()
	expected, err := testutil.NormalizeJSON(subset)
	if err != nil {
		t.Fatalf("bad stderrJsonSubset: %v", err)
	}
	expectedList, ok := expected.([]any)
	if !ok {
		t.Fatalf("stderrJsonSubset must be a list, got %T", expected)
	}

	actual, err := testutil.NormalizeJSON(diags)
	if err != nil {
		t.Fatalf("failed to serialize diagnostics: %v", err)
	}
	actualList, _ := actual.([]any)

	for _, e := range expectedList {
		found := false
		for _, a := range actualList {
			if isSubset(e, a) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("stderr JSON subset not found: %v (got %v)", e, actualList)
		}
	}
}

// isSubset checks if expected is a subset of actual (for JSON comparison).
func isSubset(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range e {
			av, exists := a[k]
			if !exists {
				return false
			}
			if !isSubset(ev, av) {
				return false
			}
		}
		return true

	case []any:
		a, ok := actual.([]any)
		if !ok {
			return false
		}
		if len(e) > len(a) {
			return false
		}
		for i, ev := range e {
			if !isSubset(ev, a[i]) {
				return false
			}
		}
		return true

	default:
		return expected == actual
	}
}
