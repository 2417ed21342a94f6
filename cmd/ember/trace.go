package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/thomasrohde/ember/pkg/diagnostics"
	"github.com/thomasrohde/ember/pkg/evaluator"
)

// TraceSummary aggregates the events of an NDJSON trace written by
// `ember run --trace`.
type TraceSummary struct {
	RunIDs         []string       `json:"runIds"`
	TotalEvents    int            `json:"totalEvents"`
	Runs           int            `json:"runs"`
	FnCalls        int            `json:"fnCalls"`
	CallsByName    map[string]int `json:"callsByName"`
	BuiltinCalls   int            `json:"builtinCalls"`
	Failures       int            `json:"failures"`
	LimitsExceeded int            `json:"limitsExceeded"`
	StartTime      string         `json:"startTime,omitempty"`
	EndTime        string         `json:"endTime,omitempty"`
	DurationMs     float64        `json:"durationMs"`
}

func cmdTrace(args []string) int {
	const usage = "usage: ember trace <file.jsonl> [--json|--pretty]"
	opts, err := parseArgs(args)
	if err != nil {
		return usageError(err, usage)
	}
	if len(opts.files) != 1 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}
	file := opts.files[0]

	f, err := os.Open(file)
	if err != nil {
		diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, "")
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{diag}, false))
		return exitUsage
	}
	defer f.Close()

	summary := computeTraceSummary(f)
	if opts.pretty {
		printTraceSummaryText(summary)
		return exitOK
	}
	b, _ := json.Marshal(summary)
	fmt.Println(string(b))
	return exitOK
}

func computeTraceSummary(r io.Reader) *TraceSummary {
	summary := &TraceSummary{
		CallsByName: make(map[string]int),
	}
	seen := make(map[string]bool)
	var start, end time.Time

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event evaluator.TraceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip invalid lines
		}

		summary.TotalEvents++
		if event.RunID != "" && !seen[event.RunID] {
			seen[event.RunID] = true
			summary.RunIDs = append(summary.RunIDs, event.RunID)
		}

		switch event.Event {
		case evaluator.TraceRunStart:
			summary.Runs++
			if ts, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil && (start.IsZero() || ts.Before(start)) {
				start = ts
				summary.StartTime = event.Timestamp
			}
		case evaluator.TraceRunEnd:
			if ts, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil && ts.After(end) {
				end = ts
				summary.EndTime = event.Timestamp
			}
			if event.Data["type"] == "error" {
				summary.Failures++
			}
		case evaluator.TraceFnCallStart:
			summary.FnCalls++
			if name := event.Data["fn"]; name != "" {
				summary.CallsByName[name]++
			}
		case evaluator.TraceBuiltin:
			summary.BuiltinCalls++
		case evaluator.TraceLimitExceeded:
			summary.LimitsExceeded++
		}
	}

	if !start.IsZero() && !end.IsZero() {
		summary.DurationMs = float64(end.Sub(start).Microseconds()) / 1000
	}

	return summary
}

func printTraceSummaryText(s *TraceSummary) {
	fmt.Printf("Runs: %d (%d failed) %s\n", s.Runs, s.Failures, strings.Join(s.RunIDs, ", "))
	fmt.Printf("Events: %d\n", s.TotalEvents)
	fmt.Printf("Calls: %d\n", s.FnCalls)
	names := make([]string, 0, len(s.CallsByName))
	for name := range s.CallsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, s.CallsByName[name])
	}
	fmt.Printf("Builtins: %d\n", s.BuiltinCalls)
	if s.LimitsExceeded > 0 {
		fmt.Printf("Limits exceeded: %d\n", s.LimitsExceeded)
	}
	if s.DurationMs > 0 {
		fmt.Printf("Duration: %.3fms\n", s.DurationMs)
	}
}
