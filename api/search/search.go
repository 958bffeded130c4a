// Package search provides shared search types and logic for retrieval over
// the contextual vector database. It is used by the REST API endpoint, the
// MCP server tool and the search command.
package search

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/researcher/pkg/rag"
)

// Searcher finds the chunks most similar to a query. *rag.DB implements it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]rag.Result, error)
}

// Input represents the input arguments for a search request.
type Input struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Result represents a single ranked chunk.
type Result struct {
	Rank          int     `json:"rank"`
	Similarity    float32 `json:"similarity"`
	DocID         string  `json:"doc_id"`
	OriginalUUID  string  `json:"original_uuid"`
	ChunkID       string  `json:"chunk_id"`
	OriginalIndex int     `json:"original_index"`
	Content       string  `json:"content"`
	Context       string  `json:"context"`
}

// Output represents the output of a search operation.
type Output struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Count   int      `json:"count"`
}

// Search runs query against searcher and shapes the ranked chunks. Errors,
// including rag.ErrNoData, are returned unwrapped so callers can map them.
func Search(ctx context.Context, searcher Searcher, query string, topK int, logger *slog.Logger) (*Output, error) {
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	logger.Debug("search request", "query", query, "top_k", topK)

	results, err := searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	out := NewOutput(query, results)
	return &out, nil
}

// NewOutput converts rag results, most similar first, into an Output.
func NewOutput(query string, results []rag.Result) Output {
	out := Output{
		Query:   query,
		Results: make([]Result, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		out.Results[i] = Result{
			Rank:          i + 1,
			Similarity:    r.Similarity,
			DocID:         r.Chunk.DocID,
			OriginalUUID:  r.Chunk.OriginalUUID,
			ChunkID:       r.Chunk.ChunkID,
			OriginalIndex: r.Chunk.OriginalIndex,
			Content:       r.Chunk.OriginalContent,
			Context:       r.Chunk.ContextualizedContent,
		}
	}
	return out
}
