package budget

import (
	"context"
	"sync"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// MemoryStore keeps the record in process memory only.
type MemoryStore struct {
	mu  sync.Mutex
	rec *models.BudgetRecord

	// LoadErr and SaveErr, when set, are returned instead of touching the record.
	LoadErr error
	SaveErr error
	saves   int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored record or ErrNoRecord.
func (s *MemoryStore) Load(_ context.Context) (models.BudgetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return models.BudgetRecord{}, s.LoadErr
	}
	if s.rec == nil {
		return models.BudgetRecord{}, ErrNoRecord
	}
	return s.rec.Clone(), nil
}

// Save stores a copy of rec.
func (s *MemoryStore) Save(_ context.Context, rec models.BudgetRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	c := rec.Clone()
	s.rec = &c
	s.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// SetFailures changes the injected errors.
func (s *MemoryStore) SetFailures(loadErr, saveErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoadErr = loadErr
	s.SaveErr = saveErr
}
