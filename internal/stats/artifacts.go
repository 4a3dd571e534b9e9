package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gpforge/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	RunID               string                 `json:"run_id"`
	Problem             string                 `json:"problem"`
	Seed                int64                  `json:"seed"`
	PopulationSize      int                    `json:"population_size"`
	Generations         int                    `json:"generations"`
	MaxEvaluations      int                    `json:"max_evaluations,omitempty"`
	MinDepth            int                    `json:"min_depth"`
	MaxDepth            int                    `json:"max_depth"`
	InitMethod          string                 `json:"init_method"`
	Selector            string                 `json:"selector"`
	SelectorParam       int                    `json:"selector_param,omitempty"`
	Operators           []model.OperatorWeight `json:"operators"`
	Elites              int                    `json:"elites"`
	Postprocessor       string                 `json:"postprocessor"`
	TerminalProbability *float64               `json:"terminal_probability,omitempty"`
	TargetFitness       *float64               `json:"target_fitness,omitempty"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	BestProgram           string                        `json:"best_program"`
	StoppedBy             string                        `json:"stopped_by"`
	TopPrograms           []model.TopProgramRecord      `json:"top_programs"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Problem          string  `json:"problem"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Evaluations      int     `json:"evaluations"`
	Seed             int64   `json:"seed"`
	Selector         string  `json:"selector"`
	Elites           int     `json:"elites"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	Solved           bool    `json:"solved"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

var runArtifactFiles = []string{"config.json", "fitness_history.json", "top_programs.json", "generation_diagnostics.json"}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"best_by_generation": artifacts.BestByGeneration,
		"final_best_fitness": artifacts.FinalBestFitness,
		"best_program":       artifacts.BestProgram,
		"stopped_by":         artifacts.StoppedBy,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_programs.json"), artifacts.TopPrograms); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex adds entry to the index, replacing any entry with the same
// run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runArtifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	if err != nil || !ok {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadTopPrograms(baseDir, runID string) ([]model.TopProgramRecord, bool, error) {
	var top []model.TopProgramRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_programs.json"), &top)
	if err != nil || !ok {
		return nil, false, err
	}
	return top, true, nil
}

func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	var payload struct {
		BestByGeneration []float64 `json:"best_by_generation"`
	}
	ok, err := readJSON(filepath.Join(baseDir, runID, "fitness_history.json"), &payload)
	if err != nil || !ok {
		return nil, false, err
	}
	return payload.BestByGeneration, true, nil
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &diagnostics)
	if err != nil || !ok {
		return nil, false, err
	}
	return diagnostics, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
