package storage

import (
	"fmt"
	"sync"

	"call-review/pkg/models"
)

var ErrResultNotFound = fmt.Errorf("result not found")

// ResultStore persists server-confirmed score results keyed by analysis, so
// a reopened session seeds its grid from the last confirmed state.
type ResultStore interface {
	SaveResult(analysisID string, res models.ScoreResult) error
	GetResults(analysisID string) ([]models.ScoreResult, error)
	DeleteResults(analysisID string) error
	Close() error
}

type memoryStore struct {
	mu      sync.RWMutex
	results map[string]map[string]models.ScoreResult
}

func NewMemoryStore() ResultStore {
	return &memoryStore{
		results: make(map[string]map[string]models.ScoreResult),
	}
}

func resultKey(res models.ScoreResult) string {
	return res.CategoryID + "/" + res.CriterionID
}

func (s *memoryStore) SaveResult(analysisID string, res models.ScoreResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.results[analysisID]
	if !ok {
		byKey = make(map[string]models.ScoreResult)
		s.results[analysisID] = byKey
	}
	byKey[resultKey(res)] = res
	return nil
}

func (s *memoryStore) GetResults(analysisID string) ([]models.ScoreResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey := s.results[analysisID]
	out := make([]models.ScoreResult, 0, len(byKey))
	for _, res := range byKey {
		out = append(out, res)
	}
	return out, nil
}

func (s *memoryStore) DeleteResults(analysisID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, analysisID)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
