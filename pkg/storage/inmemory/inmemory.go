// Package inmemory provides a storage.Driver backed by maps.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/researcher/pkg/storage"
)

// Driver implements storage.Driver in memory.
type Driver struct {
	// mu guards every map below
	mu sync.RWMutex

	chunks   map[string]storage.Chunk
	queries  map[string][]float32
	settings *storage.Settings
}

// NewDriver creates a new in-memory storage driver.
func NewDriver() *Driver {
	return &Driver{
		chunks:  make(map[string]storage.Chunk),
		queries: make(map[string][]float32),
	}
}

func (s *Driver) PutChunks(_ context.Context, chunks []storage.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *Driver) GetChunks(_ context.Context, ids []string) ([]storage.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Driver) ListChunks(_ context.Context) ([]storage.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b storage.Chunk) int {
		return a.Position - b.Position
	})
	return out, nil
}

func (s *Driver) CountChunks(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Driver) GetQueryEmbedding(_ context.Context, key string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, ok := s.queries[key]
	if !ok {
		return nil, storage.ErrNotFound{ID: key}
	}
	return slices.Clone(emb), nil
}

func (s *Driver) PutQueryEmbedding(_ context.Context, key string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[key] = slices.Clone(embedding)
	return nil
}

func (s *Driver) GetSettings(_ context.Context) (*storage.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, storage.ErrNotFound{ID: "settings"}
	}
	settings := *s.settings
	return &settings, nil
}

func (s *Driver) PutSettings(_ context.Context, settings *storage.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *settings
	s.settings = &copied
	return nil
}

func (s *Driver) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]storage.Chunk)
	s.queries = make(map[string][]float32)
	s.settings = nil
	return nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
