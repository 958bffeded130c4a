// Package rag is the contextual vector database: every chunk is situated
// within its document by an LLM before it is embedded, and searches rank
// chunks by similarity to the query embedding.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/researcher/pkg/embeddings"
	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider"
	"github.com/papercomputeco/researcher/pkg/prompts"
	"github.com/papercomputeco/researcher/pkg/storage"
	"github.com/papercomputeco/researcher/pkg/tracing"
	"github.com/papercomputeco/researcher/pkg/vector"
)

// Config wires a DB to its collaborators.
type Config struct {
	Provider provider.Provider
	Embedder embeddings.Embedder
	Vectors  vector.Driver
	Store    storage.Driver

	// Tracer may be nil.
	Tracer *tracing.Tracer
	Logger *slog.Logger

	// Prompts defaults to prompts.Default().
	Prompts *prompts.Set

	// Settings are used when the store has none persisted. Zero fields take
	// the DefaultSettings values, except Temperature.
	Settings storage.Settings

	// BatchSize is the number of texts per embedding request.
	BatchSize int
}

// DB is the contextual vector database.
type DB struct {
	provider  provider.Provider
	embedder  embeddings.Embedder
	vectors   vector.Driver
	store     storage.Driver
	tracer    *tracing.Tracer
	logger    *slog.Logger
	prompts   *prompts.Set
	batchSize int

	requested storage.Settings

	settingsMu sync.RWMutex
	settings   storage.Settings

	tokenMu sync.Mutex
	tokens  TokenCounts

	cacheMu    sync.RWMutex
	queryCache map[string][]float32
}

// New opens a DB. Settings persisted in the store take precedence over
// cfg.Settings so a reopened DB keeps the models it was built with.
func New(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Provider == nil || cfg.Embedder == nil || cfg.Vectors == nil || cfg.Store == nil {
		return nil, errors.New("rag: provider, embedder, vector driver and store are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	set := cfg.Prompts
	if set == nil {
		set = prompts.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	requested := withDefaults(cfg.Settings)
	db := &DB{
		provider:   cfg.Provider,
		embedder:   cfg.Embedder,
		vectors:    cfg.Vectors,
		store:      cfg.Store,
		tracer:     cfg.Tracer,
		logger:     logger,
		prompts:    set,
		batchSize:  batchSize,
		requested:  requested,
		settings:   requested,
		queryCache: make(map[string][]float32),
	}

	persisted, err := cfg.Store.GetSettings(ctx)
	var notFound storage.ErrNotFound
	switch {
	case errors.As(err, &notFound):
	case err != nil:
		return nil, fmt.Errorf("reading settings: %w", err)
	default:
		db.settings = withDefaults(*persisted)
		if db.settings.EmbeddingModel != requested.EmbeddingModel {
			logger.Warn("using the embedding model the database was built with",
				"built_with", db.settings.EmbeddingModel,
				"requested", requested.EmbeddingModel,
			)
		}
	}

	return db, nil
}

func withDefaults(s storage.Settings) storage.Settings {
	def := DefaultSettings()
	if s.Model == "" {
		s.Model = def.Model
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = def.EmbeddingModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
	return s
}

// Settings returns the settings in effect.
func (db *DB) Settings() storage.Settings {
	db.settingsMu.RLock()
	defer db.settingsMu.RUnlock()
	return db.settings
}

// TokenCounts returns the contextualization usage so far.
func (db *DB) TokenCounts() TokenCounts {
	db.tokenMu.Lock()
	defer db.tokenMu.Unlock()
	return db.tokens
}

// SavingsPercentage is TokenCounts().SavingsPercentage().
func (db *DB) SavingsPercentage() float64 {
	return db.TokenCounts().SavingsPercentage()
}

func (db *DB) addUsage(u *llm.Usage) {
	if u == nil {
		return
	}
	db.tokenMu.Lock()
	defer db.tokenMu.Unlock()
	db.tokens.Input += u.UncachedPromptTokens()
	db.tokens.Output += u.CompletionTokens
	db.tokens.CacheRead += u.CacheReadInputTokens
	db.tokens.CacheCreation += u.CacheCreationInputTokens
}

// SituateContext asks the model for a short context placing chunk within
// doc.
func (db *DB) SituateContext(ctx context.Context, doc, chunk string) (string, *llm.Usage, error) {
	settings := db.Settings()

	user, err := db.prompts.Situate.Render(prompts.SituateData{Document: doc, Chunk: chunk})
	if err != nil {
		return "", nil, err
	}
	req := &llm.ChatRequest{
		Model:       settings.Model,
		System:      db.prompts.Situate.System,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, user)},
		MaxTokens:   llm.IntPtr(settings.MaxTokens),
		Temperature: llm.Float64Ptr(settings.Temperature),
	}

	ctx, run := db.tracer.Start(ctx, "situate_context", tracing.RunTypeLLM, map[string]any{
		"model":    req.Model,
		"system":   req.System,
		"messages": req.Messages,
	})
	run.SetMetadata("provider", db.provider.Name())

	resp, err := db.provider.Chat(ctx, req)
	if err != nil {
		db.logger.Error("error in situate context", "error", err)
		run.End(nil, err)
		return "", nil, fmt.Errorf("situating chunk: %w", err)
	}

	db.addUsage(resp.Usage)
	text := resp.Text()
	run.End(map[string]any{"content": text, "usage": resp.Usage}, nil)
	return text, resp.Usage, nil
}

// Stats returns the chunk and vector counts and the settings in effect.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	chunks, err := db.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	vectors, err := db.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting vectors: %w", err)
	}
	return &Stats{Chunks: chunks, Vectors: vectors, Settings: db.Settings()}, nil
}

// Loaded reports whether any chunks are stored.
func (db *DB) Loaded(ctx context.Context) (bool, error) {
	n, err := db.store.CountChunks(ctx)
	if err != nil {
		return false, fmt.Errorf("counting chunks: %w", err)
	}
	return n > 0, nil
}

// Reset deletes every stored chunk, vector, cached query embedding and the
// persisted settings. Later loads use the settings the DB was opened with.
func (db *DB) Reset(ctx context.Context) error {
	chunks, err := db.store.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("listing chunks: %w", err)
	}
	if len(chunks) > 0 {
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		if err := db.vectors.Delete(ctx, ids); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
	}
	if err := db.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	db.cacheMu.Lock()
	db.queryCache = make(map[string][]float32)
	db.cacheMu.Unlock()

	db.settingsMu.Lock()
	db.settings = db.requested
	db.settingsMu.Unlock()

	db.tokenMu.Lock()
	db.tokens = TokenCounts{}
	db.tokenMu.Unlock()
	return nil
}

// Close closes the embedder and both stores.
func (db *DB) Close() error {
	return errors.Join(db.embedder.Close(), db.vectors.Close(), db.store.Close())
}

// chunkID is the vector store key of chunk index of document docID.
func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s_%d", docID, index)
}

// queryKey identifies a query embedding in the persisted cache. The
// embedding model is part of the key so switching models never reuses
// stale vectors.
func queryKey(model, query string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + query))
	return hex.EncodeToString(sum[:])
}

func (db *DB) persistSettings(ctx context.Context) error {
	settings := db.Settings()
	settings.CreatedAt = time.Now().UTC()
	if err := db.store.PutSettings(ctx, &settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
