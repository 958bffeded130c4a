package rag

import (
	"errors"
	"fmt"
	"io"

	"github.com/papercomputeco/researcher/pkg/storage"
)

// ErrNoData is returned by Search before any data has been loaded.
var ErrNoData = errors.New("no data loaded in the vector database")

// ErrDuplicateChunk is returned by LoadData when two chunks share a doc id
// and original index, which would store one over the other.
var ErrDuplicateChunk = errors.New("duplicate chunk")

// Defaults used when a DB is opened without persisted settings.
const (
	DefaultModel          = "gpt-4o"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTemperature    = 0.0
	DefaultMaxTokens      = 1000
	DefaultParallel       = 5
	DefaultTopK           = 20
	DefaultBatchSize      = 128
)

// DefaultSettings returns the settings of a fresh DB.
func DefaultSettings() storage.Settings {
	return storage.Settings{
		Model:          DefaultModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
	}
}

// Result is one search hit.
type Result struct {
	Chunk      storage.Chunk `json:"metadata"`
	Similarity float32       `json:"similarity"`
}

// TokenCounts accumulates contextualization token usage. Input counts only
// prompt tokens that were neither read from nor written to the cache.
type TokenCounts struct {
	Input         int `json:"input"`
	Output        int `json:"output"`
	CacheRead     int `json:"cache_read"`
	CacheCreation int `json:"cache_creation"`
}

// SavingsPercentage is the share of all prompt tokens that were read from
// the cache, or 0 when no prompt tokens were used.
func (c TokenCounts) SavingsPercentage() float64 {
	total := c.Input + c.CacheRead + c.CacheCreation
	if total == 0 {
		return 0
	}
	return float64(c.CacheRead) / float64(total) * 100
}

// WriteSummary prints the token usage report shown after a load.
func (c TokenCounts) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "Total input tokens without caching: %d\n", c.Input)
	fmt.Fprintf(w, "Total output tokens: %d\n", c.Output)
	fmt.Fprintf(w, "Total input tokens written to cache: %d\n", c.CacheCreation)
	fmt.Fprintf(w, "Total input tokens read from cache: %d\n", c.CacheRead)
	fmt.Fprintf(w, "Total input token savings from prompt caching: %.2f%% of all input tokens used were read from cache.\n", c.SavingsPercentage())
	fmt.Fprintln(w, "Tokens read from cache come at a 90 percent discount!")
}

// Stage names reported through Progress.
const (
	StageContextualize = "contextualize"
	StageEmbed         = "embed"
)

// Progress reports how far a load has come within a stage.
type Progress struct {
	Stage string
	Done  int
	Total int
}

// LoadOptions configures LoadData.
type LoadOptions struct {
	// Parallel caps in-flight contextualization calls. Zero uses
	// DefaultParallel.
	Parallel int

	// OnProgress is called after every contextualized chunk and embedded
	// batch. Calls are serialized.
	OnProgress func(Progress)
}

// LoadSummary describes a finished LoadData call.
type LoadSummary struct {
	// Skipped is true when data was already loaded and nothing was done.
	Skipped bool        `json:"skipped"`
	Chunks  int         `json:"chunks"`
	Tokens  TokenCounts `json:"tokens"`
}

// Stats describes a loaded DB.
type Stats struct {
	Chunks   int              `json:"chunks"`
	Vectors  int              `json:"vectors"`
	Settings storage.Settings `json:"settings"`
}
