package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"gpforge/internal/evo"
	"gpforge/internal/storage"
	"gpforge/pkg/gpforge"
)

const (
	defaultDBPath       = "gpforge.db"
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "problems":
		return runProblems(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind, "store backend: "+strings.Join(storage.StoreKinds(), "|")),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts", defaultArtifactsDir, "run artifacts directory"),
	}
}

func (f clientFlags) open() (*gpforge.Client, error) {
	return gpforge.New(gpforge.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   defaultExportsDir,
	})
}

type runRefFlags struct {
	runID   *string
	latest  *bool
	limit   *int
	jsonOut *bool
}

func addRunRefFlags(fs *flag.FlagSet, what string, limit int) runRefFlags {
	return runRefFlags{
		runID:   fs.String("run-id", "", "run id"),
		latest:  fs.Bool("latest", false, "show "+what+" for the most recent run from run index"),
		limit:   fs.Int("limit", limit, "max rows to print (<=0 for all)"),
		jsonOut: fs.Bool("json", false, "emit "+what+" as JSON"),
	}
}

func (f runRefFlags) ref(command string) (gpforge.RunRef, error) {
	if *f.runID != "" && *f.latest {
		return gpforge.RunRef{}, errors.New("use either --run-id or --latest, not both")
	}
	if *f.runID == "" && !*f.latest {
		return gpforge.RunRef{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	limit := *f.limit
	if limit < 0 {
		limit = 0
	}
	return gpforge.RunRef{RunID: *f.runID, Latest: *f.latest, Limit: limit}, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *cf.storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "reset store=%s\n", *cf.storeKind)
	return nil
}

func runProblems(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	cf := addClientFlags(fs)
	jsonOut := fs.Bool("json", false, "emit problems as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	problems, err := client.Problems(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(problems)
	}
	for _, p := range problems {
		best := "n/a"
		if p.BestFitness != nil {
			best = fmt.Sprintf("%.6f", *p.BestFitness)
		}
		fmt.Fprintf(stdout, "problem=%s type=%s functions=%d terminals=%d runs=%d best_fitness=%s description=%q\n",
			p.Name,
			p.ReturnType,
			len(p.Functions),
			len(p.Terminals),
			p.Runs,
			best,
			p.Description,
		)
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := addClientFlags(fs)
	configPath := fs.String("config", "", "optional run config JSON path")
	verbose := fs.Bool("verbose", false, "log every generation even when stderr is not a terminal")
	rf := addRunRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := buildRunRequest(fs, *configPath, rf)
	if err != nil {
		return err
	}
	if logger := progressLogger(*verbose); logger != nil {
		req.Progress = generationLogger(logger)
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil && summary.RunID == "" {
		return err
	}
	fmt.Fprintf(stdout, "run completed run_id=%s problem=%s pop=%d seed=%d stopped_by=%s\n",
		summary.RunID, req.Problem, req.Population, req.Seed, summary.StoppedBy)
	for i, best := range summary.BestByGeneration {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", i, best)
	}
	fmt.Fprintf(stdout, "evaluations=%s elapsed=%s\n", humanize.Comma(int64(summary.Evaluations)), time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(stdout, "final_best_fitness=%.6f solved=%t\n", summary.FinalBestFitness, summary.Solved)
	fmt.Fprintf(stdout, "best_program=%s\n", summary.BestProgram)
	fmt.Fprintf(stdout, "artifacts_dir=%s\n", summary.ArtifactsDir)
	return err
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := addClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	problemName := fs.String("problem", "", "only list runs of this problem")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, gpforge.RunsRequest{Limit: *limit, Problem: *problemName})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}

	now := time.Now()
	for _, r := range runs {
		age := r.CreatedAtUTC
		if created, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			age = humanize.RelTime(created, now, "ago", "from now")
		}
		fmt.Fprintf(stdout, "run_id=%s created=%q problem=%s seed=%d pop=%d gens=%d evaluations=%s final_best_fitness=%.6f solved=%t\n",
			r.RunID,
			age,
			r.Problem,
			r.Seed,
			r.Population,
			r.Generations,
			humanize.Comma(int64(r.Evaluations)),
			r.FinalBestFitness,
			r.Solved,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	cf := addClientFlags(fs)
	rf := addRunRefFlags(fs, "fitness history", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := rf.ref("fitness")
	if err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, ref)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	if *rf.jsonOut {
		return writeJSON(history)
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	cf := addClientFlags(fs)
	rf := addRunRefFlags(fs, "diagnostics", 50)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := rf.ref("diagnostics")
	if err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, ref)
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Fprintln(stdout, "no diagnostics")
		return nil
	}
	if *rf.jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d evaluations=%d best=%.6f mean=%.6f worst=%.6f mean_length=%.2f mean_depth=%.2f max_depth=%d diversity=%.4f\n",
			d.Generation,
			d.Evaluations,
			d.BestFitness,
			d.MeanFitness,
			d.WorstFitness,
			d.MeanLength,
			d.MeanDepth,
			d.MaxDepth,
			d.Diversity,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	cf := addClientFlags(fs)
	rf := addRunRefFlags(fs, "top programs", 5)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := rf.ref("top")
	if err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopPrograms(ctx, ref)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Fprintln(stdout, "no top programs")
		return nil
	}
	if *rf.jsonOut {
		return writeJSON(top)
	}
	for _, item := range top {
		fmt.Fprintf(stdout, "rank=%d fitness=%.6f length=%d depth=%d program=%s\n",
			item.Rank,
			item.Fitness,
			item.Length,
			item.Depth,
			item.Program,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, gpforge.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	cf := addClientFlags(fs)
	problemName := fs.String("problem", "", "problem name")
	program := fs.String("program", "", "program s-expression, e.g. AND(D0, D1)")
	jsonOut := fs.Bool("json", false, "emit evaluation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *problemName == "" {
		return errors.New("eval requires --problem")
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Eval(ctx, gpforge.EvalRequest{Problem: *problemName, Program: *program})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "problem=%s fitness=%.6f direction=%s solved=%t\n",
		summary.Problem, summary.Fitness, summary.Direction, summary.Solved)
	if hits, ok := summary.Trace["hits"]; ok {
		fmt.Fprintf(stdout, "hits=%v cases=%v\n", hits, summary.Trace["cases"])
	}
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	cf := addClientFlags(fs)
	configPath := fs.String("config", "", "optional run config JSON path")
	id := fs.String("id", "", "benchmark id (generated when empty)")
	runs := fs.Int("runs", 10, "number of runs over consecutive seeds")
	verbose := fs.Bool("verbose", false, "log every generation even when stderr is not a terminal")
	rf := addRunRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runs <= 0 {
		return errors.New("runs must be > 0")
	}

	req, err := buildRunRequest(fs, *configPath, rf)
	if err != nil {
		return err
	}
	logger := progressLogger(*verbose)
	if logger != nil {
		req.Progress = generationLogger(logger)
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Benchmark(ctx, gpforge.BenchmarkRequest{
		ID:   *id,
		Runs: *runs,
		Run:  req,
		OnRun: func(i int, r gpforge.RunSummary) {
			fmt.Fprintf(stdout, "run=%d run_id=%s evaluations=%s final_best_fitness=%.6f solved=%t\n",
				i+1, r.RunID, humanize.Comma(int64(r.Evaluations)), r.FinalBestFitness, r.Solved)
		},
	})
	if err != nil {
		return err
	}

	s := result.Summary
	fmt.Fprintf(stdout, "benchmark_id=%s problem=%s runs=%d solved=%d success_rate=%.4f\n",
		s.ID, s.Problem, s.TotalRuns, s.SuccessRuns, s.SuccessRate)
	fmt.Fprintf(stdout, "evaluations_to_solve avg=%.2f std=%.2f min=%.0f max=%.0f\n",
		s.AvgEvaluations, s.StdEvaluations, s.MinEvaluations, s.MaxEvaluations)
	fmt.Fprintf(stdout, "final_best mean=%.6f std=%.6f\n", s.MeanFinalBest, s.StdFinalBest)
	fmt.Fprintf(stdout, "benchmark_dir=%s\n", result.Directory)
	return nil
}

// progressLogger returns nil when generations should not be logged.
func progressLogger(verbose bool) *slog.Logger {
	if !verbose {
		f, ok := stderr.(*os.File)
		if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return nil
		}
	}
	return slog.New(slog.NewTextHandler(stderr, nil))
}

func generationLogger(logger *slog.Logger) func(evo.GenerationStats) {
	return func(s evo.GenerationStats) {
		logger.Info("generation",
			"generation", s.Generation,
			"evaluations", humanize.Comma(int64(s.Evaluations)),
			"best", s.BestFitness,
			"mean", s.MeanFitness,
			"mean_length", s.MeanLength,
			"diversity", s.Diversity,
		)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gpforgectl <init|reset|problems|run|runs|fitness|diagnostics|top|export|eval|benchmark> [flags]", msg)
}
