package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/researcher/pkg/storage"
	"github.com/papercomputeco/researcher/pkg/tracing"
)

// Search returns the k chunks most similar to query, most similar first.
// A non-positive k uses DefaultTopK.
func (db *DB) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	var results []Result
	err := tracing.Op(ctx, db.tracer, "search", tracing.RunTypeRetriever, map[string]any{
		"query": query,
		"k":     k,
	}, func(ctx context.Context, run *tracing.Run) error {
		var err error
		results, err = db.search(ctx, query, k)
		if err == nil {
			run.SetOutput("documents", retrieverOutput(results))
		}
		return err
	})
	return results, err
}

func (db *DB) search(ctx context.Context, query string, k int) ([]Result, error) {
	loaded, err := db.Loaded(ctx)
	if err != nil {
		return nil, err
	}
	if !loaded {
		return nil, ErrNoData
	}

	embedding, err := db.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := db.vectors.Query(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := db.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	byID := make(map[string]storage.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		c, ok := byID[h.ID]
		if !ok {
			db.logger.Warn("vector without chunk metadata", "id", h.ID)
			continue
		}
		results = append(results, Result{Chunk: c, Similarity: h.Score})
	}
	return results, nil
}

// queryEmbedding looks in the in-memory cache, then the persisted cache,
// then asks the embedder. Fresh embeddings are written to both caches.
func (db *DB) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := queryKey(db.Settings().EmbeddingModel, query)

	db.cacheMu.RLock()
	cached, ok := db.queryCache[key]
	db.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	persisted, err := db.store.GetQueryEmbedding(ctx, key)
	var notFound storage.ErrNotFound
	switch {
	case err == nil:
		db.remember(key, persisted)
		return persisted, nil
	case !errors.As(err, &notFound):
		db.logger.Warn("reading query cache", "error", err)
	}

	var embedding []float32
	err = tracing.Op(ctx, db.tracer, "embed_query", tracing.RunTypeEmbedding, map[string]any{
		"model": db.Settings().EmbeddingModel,
		"input": query,
	}, func(ctx context.Context, _ *tracing.Run) error {
		var err error
		embedding, err = db.embedder.Embed(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	db.remember(key, embedding)
	if err := db.store.PutQueryEmbedding(ctx, key, embedding); err != nil {
		db.logger.Warn("writing query cache", "error", err)
	}
	return embedding, nil
}

func (db *DB) remember(key string, embedding []float32) {
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()
	db.queryCache[key] = embedding
}

// retrieverOutput shapes results the way langsmith renders retriever runs.
func retrieverOutput(results []Result) []map[string]any {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{
			"page_content": r.Chunk.OriginalContent,
			"metadata": map[string]any{
				"doc_id":     r.Chunk.DocID,
				"chunk_id":   r.Chunk.ChunkID,
				"similarity": r.Similarity,
			},
		}
	}
	return out
}
