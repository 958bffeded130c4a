// Package storage persists everything the contextual vector DB needs besides
// the embeddings themselves: chunk metadata in dataset order, the query
// embedding cache and the settings a DB was built with.
package storage

import (
	"context"
)

// Driver defines the interface for a chunk metadata backend.
type Driver interface {
	// PutChunks upserts chunks by ID.
	PutChunks(ctx context.Context, chunks []Chunk) error

	// GetChunks returns the chunks for ids in the order requested. Unknown
	// IDs are skipped.
	GetChunks(ctx context.Context, ids []string) ([]Chunk, error)

	// ListChunks returns every chunk ordered by Position.
	ListChunks(ctx context.Context) ([]Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// GetQueryEmbedding returns a cached query embedding or ErrNotFound.
	GetQueryEmbedding(ctx context.Context, key string) ([]float32, error)

	// PutQueryEmbedding caches a query embedding under key.
	PutQueryEmbedding(ctx context.Context, key string, embedding []float32) error

	// GetSettings returns the persisted settings or ErrNotFound.
	GetSettings(ctx context.Context) (*Settings, error)

	// PutSettings replaces the persisted settings.
	PutSettings(ctx context.Context, settings *Settings) error

	// Reset removes all chunks, cached embeddings and settings.
	Reset(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}
