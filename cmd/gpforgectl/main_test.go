package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpforge/internal/model"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origOut, origErr := stdout, stderr
	stdout, stderr = &buf, &bytes.Buffer{}
	t.Cleanup(func() {
		stdout, stderr = origOut, origErr
	})
	return &buf
}

func TestRunCommandWritesArtifactsAndQueries(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	artifacts := filepath.Join(t.TempDir(), "runs")

	args := []string{
		"run",
		"--artifacts", artifacts,
		"--problem", "even-parity-3",
		"--pop", "12",
		"--gens", "2",
		"--seed", "11",
		"--ignore-target",
	}
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run completed run_id=even-parity-3-11-") {
		t.Fatalf("unexpected run output: %s", out.String())
	}
	if !strings.Contains(out.String(), "evaluations=36") {
		t.Fatalf("expected evaluation count in output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"runs", "--artifacts", artifacts, "--json"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	var runs []struct {
		RunID   string
		Problem string
	}
	if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs output: %v", err)
	}
	if len(runs) != 1 || runs[0].Problem != "even-parity-3" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	out.Reset()
	if err := run(ctx, []string{"fitness", "--artifacts", artifacts, "--latest"}); err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if got := strings.Count(out.String(), "best_fitness="); got != 3 {
		t.Fatalf("expected 3 fitness rows, got %d: %s", got, out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"diagnostics", "--artifacts", artifacts, "--run-id", runs[0].RunID, "--limit", "1"}); err != nil {
		t.Fatalf("diagnostics command: %v", err)
	}
	if !strings.HasPrefix(out.String(), "generation=0 evaluations=12") {
		t.Fatalf("unexpected diagnostics output: %s", out.String())
	}

	out.Reset()
	if err := run(ctx, []string{"top", "--artifacts", artifacts, "--latest", "--json"}); err != nil {
		t.Fatalf("top command: %v", err)
	}
	var top []model.TopProgramRecord
	if err := json.Unmarshal(out.Bytes(), &top); err != nil {
		t.Fatalf("decode top output: %v", err)
	}
	if len(top) == 0 || top[0].Rank != 1 {
		t.Fatalf("unexpected top programs: %+v", top)
	}

	exportDir := filepath.Join(t.TempDir(), "exports")
	out.Reset()
	if err := run(ctx, []string{"export", "--artifacts", artifacts, "--latest", "--out", exportDir}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, runs[0].RunID, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestRunCommandWithConfigFile(t *testing.T) {
	out := captureOutput(t)
	artifacts := filepath.Join(t.TempDir(), "runs")
	path := writeConfig(t, map[string]any{
		"problem":     "quartic",
		"population":  10,
		"generations": 1,
		"seed":        3,
		"operators":   map[string]any{"mutation": 1.0},
	})

	if err := run(context.Background(), []string{"run", "--artifacts", artifacts, "--config", path, "--seed", "4"}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=quartic-4-") {
		t.Fatalf("expected seed override in output: %s", out.String())
	}
}

func TestEvalAndProblemsCommands(t *testing.T) {
	ctx := context.Background()
	out := captureOutput(t)
	artifacts := filepath.Join(t.TempDir(), "runs")

	if err := run(ctx, []string{"problems", "--artifacts", artifacts}); err != nil {
		t.Fatalf("problems command: %v", err)
	}
	for _, name := range []string{"even-parity-3", "multiplexer-11", "quartic", "piecewise"} {
		if !strings.Contains(out.String(), "problem="+name+" ") {
			t.Fatalf("expected %s in problems output: %s", name, out.String())
		}
	}

	out.Reset()
	if err := run(ctx, []string{"eval", "--artifacts", artifacts, "--problem", "majority-3", "--program", "OR(AND(D0, D1), AND(D2, OR(D0, D1)))"}); err == nil {
		t.Fatal("expected unknown problem error for majority-3")
	}
	if err := run(ctx, []string{"eval", "--artifacts", artifacts, "--problem", "quartic", "--program", "ADD(x, MUL(x, ADD(x, MUL(x, ADD(x, MUL(x, x))))))"}); err != nil {
		t.Fatalf("eval command: %v", err)
	}
	if !strings.Contains(out.String(), "solved=true") || !strings.Contains(out.String(), "hits=20 cases=20") {
		t.Fatalf("unexpected eval output: %s", out.String())
	}
	if err := run(ctx, []string{"eval", "--problem", "quartic", "--program", "ADD(x"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBenchmarkCommand(t *testing.T) {
	out := captureOutput(t)
	artifacts := filepath.Join(t.TempDir(), "runs")

	args := []string{
		"benchmark",
		"--artifacts", artifacts,
		"--id", "parity-smoke",
		"--runs", "2",
		"--problem", "even-parity-3",
		"--pop", "10",
		"--gens", "1",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("benchmark command: %v", err)
	}
	if got := strings.Count(out.String(), "run_id=even-parity-3-"); got != 2 {
		t.Fatalf("expected 2 benchmark runs, got %d: %s", got, out.String())
	}
	if !strings.Contains(out.String(), "benchmark_id=parity-smoke problem=even-parity-3 runs=2") {
		t.Fatalf("unexpected benchmark summary: %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(artifacts, "benchmarks", "parity-smoke", "benchmark_series.csv")); err != nil {
		t.Fatalf("expected benchmark series: %v", err)
	}
}

func TestCommandValidation(t *testing.T) {
	ctx := context.Background()
	captureOutput(t)
	artifacts := filepath.Join(t.TempDir(), "runs")

	cases := map[string][]string{
		"missing command":  nil,
		"unknown command":  {"species"},
		"fitness no ref":   {"fitness", "--artifacts", artifacts},
		"top both refs":    {"top", "--artifacts", artifacts, "--run-id", "x", "--latest"},
		"export no runs":   {"export", "--artifacts", artifacts, "--latest"},
		"runs bad limit":   {"runs", "--artifacts", artifacts, "--limit", "0"},
		"benchmark no run": {"benchmark", "--artifacts", artifacts, "--runs", "0"},
		"eval no problem":  {"eval", "--program", "x"},
		"bad store":        {"init", "--store", "postgres"},
		"bad flag":         {"run", "--workers", "4"},
	}
	for name, args := range cases {
		if err := run(ctx, args); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestInitAndResetCommands(t *testing.T) {
	out := captureOutput(t)
	ctx := context.Background()
	if err := run(ctx, []string{"init"}); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if err := run(ctx, []string{"reset"}); err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if out.String() != "initialized store=memory\nreset store=memory\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
