package memory

import (
	"context"
	"sort"
	"sync"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Run // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.Run),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.Run) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by created_at ASC, run_id ASC.
func (s *RunStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Run
	for _, run := range s.data {
		if run.StrategyID == strategyID {
			result = append(result, copyRun(run))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

// copyRun deep-copies the book so callers cannot mutate stored state.
func copyRun(run *domain.Run) *domain.Run {
	out := *run
	out.Book = make([]domain.BookRecord, len(run.Book))
	for i, rec := range run.Book {
		out.Book[i] = copyRecord(rec)
	}
	return &out
}

func copyRecord(rec domain.BookRecord) domain.BookRecord {
	out := rec
	out.Shares = copyMap(rec.Shares)
	out.Values = copyMap(rec.Values)
	out.Weights = copyMap(rec.Weights)
	out.TargetWeights = copyMap(rec.TargetWeights)
	return out
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ storage.RunStore = (*RunStore)(nil)
