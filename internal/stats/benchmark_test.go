package stats

import (
	"math"
	"testing"
)

func TestBuildBenchmarkSummary(t *testing.T) {
	summary := BuildBenchmarkSummary("bench-1", "majority-5", "2026-01-01T00:00:00Z", []BenchmarkRun{
		{RunID: "r1", Solved: true, Evaluations: 200, FinalBest: 0},
		{RunID: "r2", Solved: false, Evaluations: 1000, FinalBest: 4},
		{RunID: "r3", Solved: true, Evaluations: 400, FinalBest: 0},
		{RunID: "r4", Solved: false, Evaluations: 1000, FinalBest: 4},
	})

	if summary.TotalRuns != 4 || summary.SuccessRuns != 2 {
		t.Fatalf("unexpected run counts: %+v", summary)
	}
	if summary.SuccessRate != 0.5 {
		t.Fatalf("unexpected success rate: %f", summary.SuccessRate)
	}
	if summary.AvgEvaluations != 300 || summary.StdEvaluations != 100 {
		t.Fatalf("unexpected evaluation stats: avg=%f std=%f", summary.AvgEvaluations, summary.StdEvaluations)
	}
	if summary.MinEvaluations != 200 || summary.MaxEvaluations != 400 {
		t.Fatalf("unexpected evaluation range: min=%f max=%f", summary.MinEvaluations, summary.MaxEvaluations)
	}
	if summary.MeanFinalBest != 2 || summary.StdFinalBest != 2 {
		t.Fatalf("unexpected final best stats: mean=%f std=%f", summary.MeanFinalBest, summary.StdFinalBest)
	}
}

func TestBuildBenchmarkSummaryWithoutSuccess(t *testing.T) {
	summary := BuildBenchmarkSummary("bench-2", "quartic", "", []BenchmarkRun{{FinalBest: 1.5}})
	if summary.SuccessRate != 0 || summary.AvgEvaluations != 0 || summary.MinEvaluations != 0 {
		t.Fatalf("expected zero evaluation stats, got %+v", summary)
	}
	empty := BuildBenchmarkSummary("bench-3", "quartic", "", nil)
	if empty.TotalRuns != 0 || math.IsNaN(empty.SuccessRate) {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestMeanSeriesHoldsLastValue(t *testing.T) {
	got := MeanSeries([][]float64{{6, 4, 2}, {8, 0}, {}})
	want := []float64{7, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("unexpected series length: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected series: got=%v want=%v", got, want)
		}
	}
	if len(MeanSeries(nil)) != 0 {
		t.Fatal("expected empty series")
	}
}

func TestWriteAndReadBenchmark(t *testing.T) {
	baseDir := t.TempDir()
	summary := BuildBenchmarkSummary("bench-1", "majority-5", "2026-01-01T00:00:00Z", []BenchmarkRun{
		{RunID: "r1", Solved: true, Evaluations: 120},
	})

	if _, err := WriteBenchmark(baseDir, summary, []float64{3, 1.5, 0}); err != nil {
		t.Fatalf("write benchmark: %v", err)
	}

	loaded, ok, err := ReadBenchmarkSummary(baseDir, "bench-1")
	if err != nil || !ok {
		t.Fatalf("read summary: ok=%t err=%v", ok, err)
	}
	if loaded.SuccessRuns != 1 || len(loaded.Runs) != 1 {
		t.Fatalf("unexpected summary: %+v", loaded)
	}

	series, ok, err := ReadBenchmarkSeries(baseDir, "bench-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[1] != 1.5 {
		t.Fatalf("unexpected series: %v", series)
	}

	if _, ok, err := ReadBenchmarkSeries(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing series, ok=%t err=%v", ok, err)
	}
	if _, err := WriteBenchmark(baseDir, BenchmarkSummary{}, nil); err == nil {
		t.Fatal("expected missing id error")
	}
}
