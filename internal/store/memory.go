package store

import (
	"context"
	"sync"

	"github.com/MS-092/DS-RM-FP/internal/models"
)

// MemoryStore keeps runs in process. maxRuns > 0 drops the oldest entries beyond the cap.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []models.ExperimentRun
	maxRuns int
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(maxRuns int) *MemoryStore {
	return &MemoryStore{maxRuns: maxRuns}
}

func (m *MemoryStore) Append(_ context.Context, run models.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.runs = append(m.runs, run)
	if m.maxRuns > 0 && len(m.runs) > m.maxRuns {
		m.runs = append([]models.ExperimentRun(nil), m.runs[len(m.runs)-m.maxRuns:]...)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]models.ExperimentRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return tail(m.runs, limit), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
