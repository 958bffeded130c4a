// Package inmemory provides an exact, in-process vector driver.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/papercomputeco/researcher/pkg/vector"
)

// Driver keeps every embedding in memory and scores queries by dot product.
// Embeddings from OpenAI are unit length, so the dot product equals cosine
// similarity.
type Driver struct {
	mu sync.RWMutex

	// docs preserves insertion order; index maps IDs into docs.
	docs  []vector.Document
	index map[string]int
}

// NewDriver creates an empty in-memory vector driver.
func NewDriver() *Driver {
	return &Driver{index: make(map[string]int)}
}

// Add stores documents, replacing the embedding of existing IDs in place.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if len(d.docs) > 0 && len(doc.Embedding) != len(d.docs[0].Embedding) {
			return fmt.Errorf("%w: document %s has %d dimensions, store has %d",
				vector.ErrDimensions, doc.ID, len(doc.Embedding), len(d.docs[0].Embedding))
		}

		stored := vector.Document{ID: doc.ID, Embedding: slices.Clone(doc.Embedding)}
		if i, ok := d.index[doc.ID]; ok {
			d.docs[i] = stored
			continue
		}
		d.index[doc.ID] = len(d.docs)
		d.docs = append(d.docs, stored)
	}
	return nil
}

// Query scores every document and returns the topK best. Ties keep
// insertion order.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.docs) == 0 {
		return []vector.QueryResult{}, nil
	}
	if len(embedding) != len(d.docs[0].Embedding) {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			vector.ErrDimensions, len(embedding), len(d.docs[0].Embedding))
	}

	results := make([]vector.QueryResult, len(d.docs))
	for i, doc := range d.docs {
		results[i] = vector.QueryResult{Document: doc, Score: Dot(embedding, doc.Embedding)}
	}

	slices.SortStableFunc(results, func(a, b vector.QueryResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	return results[:min(topK, len(results))], nil
}

// Get returns the stored documents for ids, in the order requested.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if i, ok := d.index[id]; ok {
			docs = append(docs, d.docs[i])
		}
	}
	return docs, nil
}

// Delete removes documents and compacts the insertion order.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := d.docs[:0]
	for _, doc := range d.docs {
		if !drop[doc.ID] {
			kept = append(kept, doc)
		}
	}
	d.docs = kept

	d.index = make(map[string]int, len(d.docs))
	for i, doc := range d.docs {
		d.index[doc.ID] = i
	}
	return nil
}

func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs), nil
}

func (d *Driver) Close() error {
	return nil
}

// Dot returns the dot product of a and b over their common length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range min(len(a), len(b)) {
		sum += a[i] * b[i]
	}
	return sum
}

var _ vector.Driver = (*Driver)(nil)
