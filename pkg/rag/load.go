package rag

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/researcher/pkg/dataset"
	"github.com/papercomputeco/researcher/pkg/embeddings"
	"github.com/papercomputeco/researcher/pkg/storage"
	"github.com/papercomputeco/researcher/pkg/tracing"
	"github.com/papercomputeco/researcher/pkg/vector"
)

type pending struct {
	doc   *dataset.Document
	chunk *dataset.Chunk
}

// LoadData contextualizes, embeds and stores every chunk of docs. It does
// nothing when data is already loaded. Any failure aborts the load and
// leaves the DB empty.
func (db *DB) LoadData(ctx context.Context, docs []dataset.Document, opts LoadOptions) (*LoadSummary, error) {
	loaded, err := db.Loaded(ctx)
	if err != nil {
		return nil, err
	}
	if loaded {
		db.logger.Info("vector database is already loaded, skipping data loading")
		return &LoadSummary{Skipped: true, Tokens: db.TokenCounts()}, nil
	}

	var summary *LoadSummary
	err = tracing.Op(ctx, db.tracer, "load_data", tracing.RunTypeChain, map[string]any{
		"documents": len(docs),
		"chunks":    dataset.ChunkCount(docs),
	}, func(ctx context.Context, run *tracing.Run) error {
		var err error
		summary, err = db.load(ctx, docs, opts)
		if summary != nil {
			run.SetOutput("chunks", summary.Chunks)
			run.SetOutput("tokens", summary.Tokens)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (db *DB) load(ctx context.Context, docs []dataset.Document, opts LoadOptions) (*LoadSummary, error) {
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	var work []pending
	seen := make(map[string]string)
	for i := range docs {
		for j := range docs[i].Chunks {
			c := &docs[i].Chunks[j]
			id := chunkID(docs[i].DocID, c.OriginalIndex)
			if first, ok := seen[id]; ok {
				return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateChunk, first, c.ChunkID, id)
			}
			seen[id] = c.ChunkID
			work = append(work, pending{doc: &docs[i], chunk: c})
		}
	}

	var progressMu sync.Mutex
	report := func(p Progress) {
		if opts.OnProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		opts.OnProgress(p)
	}

	contexts := make([]string, len(work))
	var (
		doneMu sync.Mutex
		done   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, w := range work {
		g.Go(func() error {
			text, _, err := db.SituateContext(gctx, w.doc.Content, w.chunk.Content)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", w.chunk.ChunkID, err)
			}
			contexts[i] = text

			doneMu.Lock()
			defer doneMu.Unlock()
			done++
			report(Progress{Stage: StageContextualize, Done: done, Total: len(work)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	texts := make([]string, len(work))
	chunks := make([]storage.Chunk, len(work))
	for i, w := range work {
		texts[i] = w.chunk.Content + "\n\n" + contexts[i]
		chunks[i] = storage.Chunk{
			ID:                    chunkID(w.doc.DocID, w.chunk.OriginalIndex),
			Position:              i,
			DocID:                 w.doc.DocID,
			OriginalUUID:          w.doc.OriginalUUID,
			ChunkID:               w.chunk.ChunkID,
			OriginalIndex:         w.chunk.OriginalIndex,
			OriginalContent:       w.chunk.Content,
			ContextualizedContent: contexts[i],
		}
	}

	if err := db.embedAndStore(ctx, texts, chunks, report); err != nil {
		return nil, err
	}

	tokens := db.TokenCounts()
	db.logger.Info("contextual vector database loaded",
		"chunks", len(chunks),
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
		"cache_creation_tokens", tokens.CacheCreation,
		"cache_read_tokens", tokens.CacheRead,
		"cache_savings_pct", fmt.Sprintf("%.2f", tokens.SavingsPercentage()),
	)
	return &LoadSummary{Chunks: len(chunks), Tokens: tokens}, nil
}

// embedAndStore writes vectors first, then chunks, then settings. Chunks
// mark the DB as loaded, so a failure part way is rolled back.
func (db *DB) embedAndStore(ctx context.Context, texts []string, chunks []storage.Chunk, report func(Progress)) error {
	var vectors [][]float32
	err := tracing.Op(ctx, db.tracer, "embed_chunks", tracing.RunTypeEmbedding, map[string]any{
		"model": db.Settings().EmbeddingModel,
		"texts": len(texts),
	}, func(ctx context.Context, _ *tracing.Run) error {
		var err error
		vectors, err = embeddings.Batched(ctx, db.embedder, texts, db.batchSize, func(done int) {
			report(Progress{Stage: StageEmbed, Done: done, Total: len(texts)})
		})
		return err
	})
	if err != nil {
		db.logger.Error("error embedding chunks", "error", err)
		return fmt.Errorf("embedding chunks: %w", err)
	}

	docs := make([]vector.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = vector.Document{ID: c.ID, Embedding: vectors[i]}
		ids[i] = c.ID
	}
	if len(docs) > 0 {
		if err := db.vectors.Add(ctx, docs); err != nil {
			db.rollback(ctx, ids)
			return fmt.Errorf("storing vectors: %w", err)
		}
	}

	if err := db.store.PutChunks(ctx, chunks); err != nil {
		db.rollback(ctx, ids)
		return fmt.Errorf("storing chunks: %w", err)
	}
	if err := db.persistSettings(ctx); err != nil {
		db.rollback(ctx, ids)
		return err
	}
	return nil
}

// rollback removes a partial load. Errors are logged because the original
// failure is the one worth returning.
func (db *DB) rollback(ctx context.Context, ids []string) {
	if len(ids) > 0 {
		if err := db.vectors.Delete(ctx, ids); err != nil {
			db.logger.Error("rolling back vectors", "error", err)
		}
	}
	if err := db.store.Reset(ctx); err != nil {
		db.logger.Error("rolling back chunks", "error", err)
	}
}
