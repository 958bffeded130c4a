package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/researcher/pkg/vector"
)

// MockVectorDriver is a test vector driver that returns canned results.
type MockVectorDriver struct {
	mu sync.Mutex

	Documents []vector.Document
	Results   []vector.QueryResult

	// FailAdd makes Add return an error.
	FailAdd bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAdd {
		return errors.New("mock add failure")
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Documents, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.Documents[:0]
	for _, d := range m.Documents {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	m.Documents = kept
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Documents), nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
