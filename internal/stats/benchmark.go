package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const benchmarksDir = "benchmarks"

// BenchmarkRun is the outcome of one seed of a benchmark.
type BenchmarkRun struct {
	RunID       string  `json:"run_id"`
	Seed        int64   `json:"seed"`
	Solved      bool    `json:"solved"`
	Generations int     `json:"generations"`
	Evaluations int     `json:"evaluations"`
	FinalBest   float64 `json:"final_best"`
}

// BenchmarkSummary aggregates repeated runs of one configuration. Evaluation
// statistics cover solved runs only.
type BenchmarkSummary struct {
	ID             string         `json:"id"`
	Problem        string         `json:"problem"`
	CreatedAtUTC   string         `json:"created_at_utc"`
	TotalRuns      int            `json:"total_runs"`
	SuccessRuns    int            `json:"success_runs"`
	SuccessRate    float64        `json:"success_rate"`
	AvgEvaluations float64        `json:"avg_evaluations"`
	StdEvaluations float64        `json:"std_evaluations"`
	MinEvaluations float64        `json:"min_evaluations"`
	MaxEvaluations float64        `json:"max_evaluations"`
	MeanFinalBest  float64        `json:"mean_final_best"`
	StdFinalBest   float64        `json:"std_final_best"`
	Runs           []BenchmarkRun `json:"runs"`
}

func BuildBenchmarkSummary(id, problem, createdAtUTC string, runs []BenchmarkRun) BenchmarkSummary {
	summary := BenchmarkSummary{
		ID:           id,
		Problem:      problem,
		CreatedAtUTC: createdAtUTC,
		TotalRuns:    len(runs),
		Runs:         append([]BenchmarkRun(nil), runs...),
	}

	finals := make([]float64, 0, len(runs))
	successEvaluations := make([]float64, 0, len(runs))
	for _, run := range runs {
		finals = append(finals, run.FinalBest)
		if run.Solved {
			successEvaluations = append(successEvaluations, float64(run.Evaluations))
		}
	}
	summary.SuccessRuns = len(successEvaluations)
	if summary.TotalRuns > 0 {
		summary.SuccessRate = float64(summary.SuccessRuns) / float64(summary.TotalRuns)
	}
	summary.MeanFinalBest, summary.StdFinalBest = avgStd(finals)
	if len(successEvaluations) > 0 {
		summary.AvgEvaluations, summary.StdEvaluations = avgStd(successEvaluations)
		summary.MinEvaluations = minFloat(successEvaluations)
		summary.MaxEvaluations = maxFloat(successEvaluations)
	}
	return summary
}

// MeanSeries averages best-of-generation curves. A run that stopped early
// holds its last value for the remaining generations.
func MeanSeries(series [][]float64) []float64 {
	length := 0
	for _, s := range series {
		if len(s) > length {
			length = len(s)
		}
	}
	if length == 0 {
		return []float64{}
	}

	out := make([]float64, length)
	for g := range out {
		var sum float64
		n := 0
		for _, s := range series {
			if len(s) == 0 {
				continue
			}
			sum += s[min(g, len(s)-1)]
			n++
		}
		out[g] = sum / float64(n)
	}
	return out
}

// WriteBenchmark stores the summary and its mean series under
// baseDir/benchmarks/<id>.
func WriteBenchmark(baseDir string, summary BenchmarkSummary, series []float64) (string, error) {
	if strings.TrimSpace(summary.ID) == "" {
		return "", fmt.Errorf("benchmark id is required")
	}
	dir := benchmarkPath(baseDir, summary.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "benchmark_summary.json"), summary); err != nil {
		return "", err
	}
	if err := writeBenchmarkSeries(filepath.Join(dir, "benchmark_series.csv"), series); err != nil {
		return "", err
	}
	return dir, nil
}

func ReadBenchmarkSummary(baseDir, id string) (BenchmarkSummary, bool, error) {
	var summary BenchmarkSummary
	ok, err := readJSON(filepath.Join(benchmarkPath(baseDir, id), "benchmark_summary.json"), &summary)
	if err != nil || !ok {
		return BenchmarkSummary{}, false, err
	}
	return summary, true, nil
}

func writeBenchmarkSeries(path string, meanBest []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "mean_best_fitness"}); err != nil {
		return err
	}
	for i, best := range meanBest {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadBenchmarkSeries(baseDir, id string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(benchmarkPath(baseDir, id), "benchmark_series.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("benchmark series header must have at least 2 columns")
	}

	series := make([]float64, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func benchmarkPath(baseDir, id string) string {
	return filepath.Join(baseDir, benchmarksDir, id)
}

func avgStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func maxFloat(values []float64) float64 {
	out := math.Inf(-1)
	for _, v := range values {
		out = math.Max(out, v)
	}
	return out
}

func minFloat(values []float64) float64 {
	out := math.Inf(1)
	for _, v := range values {
		out = math.Min(out, v)
	}
	return out
}
