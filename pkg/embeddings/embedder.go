// Package embeddings turns text into vectors for the vector store.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 128

// ErrEmbedding is returned when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one request. The result has one
	// embedding per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Batched embeds texts in batches of size and concatenates the results in
// order. onBatch, when set, is called with the number of texts embedded so
// far after every batch.
func Batched(ctx context.Context, e Embedder, texts []string, size int, onBatch func(done int)) ([][]float32, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))

		batch, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbedding, len(batch), end-start)
		}
		out = append(out, batch...)

		if onBatch != nil {
			onBatch(end)
		}
	}
	return out, nil
}
