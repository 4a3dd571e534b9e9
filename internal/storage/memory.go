package storage

import (
	"context"
	"sort"
	"sync"

	"gpforge/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	problems    map[string]model.ProblemSummary
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	topPrograms map[string][]model.TopProgramRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init clears every record; calling it again resets the store.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.problems = make(map[string]model.ProblemSummary)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.topPrograms = make(map[string][]model.TopProgramRecord)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.Operators = append([]model.OperatorWeight(nil), run.Operators...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Operators = append([]model.OperatorWeight(nil), run.Operators...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.Operators = append([]model.OperatorWeight(nil), run.Operators...)
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

// sortRuns orders newest first, then by id for equal timestamps.
func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}

func (s *MemoryStore) SaveProblemSummary(_ context.Context, summary model.ProblemSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.problems[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetProblemSummary(_ context.Context, name string) (model.ProblemSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.problems[name]
	return summary, ok, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopPrograms(_ context.Context, runID string, top []model.TopProgramRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TopProgramRecord, len(top))
	copy(copied, top)
	s.topPrograms[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopPrograms(_ context.Context, runID string) ([]model.TopProgramRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topPrograms[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TopProgramRecord, len(top))
	copy(copied, top)
	return copied, true, nil
}
