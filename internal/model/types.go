package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type OperatorWeight struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// RunRecord is the persisted summary of one evolutionary run.
type RunRecord struct {
	VersionedRecord
	ID                  string           `json:"id"`
	Problem             string           `json:"problem"`
	Seed                int64            `json:"seed"`
	PopulationSize      int              `json:"population_size"`
	MaxDepth            int              `json:"max_depth"`
	InitMethod          string           `json:"init_method"`
	Selector            string           `json:"selector"`
	Operators           []OperatorWeight `json:"operators"`
	Elites              int              `json:"elites"`
	Postprocessor       string           `json:"postprocessor"`
	Direction           string           `json:"direction"`
	Generations         int              `json:"generations"`
	Evaluations         int              `json:"evaluations"`
	StoppedBy           string           `json:"stopped_by"`
	BestFitness         float64          `json:"best_fitness"`
	BestProgram         string           `json:"best_program"`
	Solved              bool             `json:"solved"`
	CreatedAtUTC        string           `json:"created_at_utc"`
	DurationMillis      int64            `json:"duration_ms"`
	TerminalProbability *float64         `json:"terminal_probability,omitempty"`
}

// GenerationDiagnostics holds the per-generation statistics of a run.
type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	Evaluations  int     `json:"evaluations"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	WorstFitness float64 `json:"worst_fitness"`
	MeanLength   float64 `json:"mean_length"`
	MeanDepth    float64 `json:"mean_depth"`
	MaxDepth     int     `json:"max_depth"`
	Diversity    float64 `json:"diversity"`
	BestProgram  string  `json:"best_program"`
}

// TopProgramRecord is one of the best programs of a run's final population.
type TopProgramRecord struct {
	VersionedRecord
	Rank        int     `json:"rank"`
	Program     string  `json:"program"`
	Fitness     float64 `json:"fitness"`
	Length      int     `json:"length"`
	Depth       int     `json:"depth"`
	Fingerprint string  `json:"fingerprint"`
}

type ProblemSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestFitness float64 `json:"best_fitness"`
	BestRunID   string  `json:"best_run_id"`
	Runs        int     `json:"runs"`
}
