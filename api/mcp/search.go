package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/pkg/rag"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the indexed documents using contextual semantic search. Returns the most relevant chunks for the query text, each with the context that situates it in its document."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text to find relevant document chunks"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 20)"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, search.Output, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	empty := search.NewOutput(input.Query, nil)

	output, err := search.Search(ctx, s.config.Searcher, input.Query, topK, s.config.Logger)
	if err != nil {
		if errors.Is(err, rag.ErrNoData) {
			return errorResult("Nothing is indexed yet, run researcher index first", err), empty, nil
		}
		s.config.Logger.Error("MCP search failed", "error", err)
		return errorResult("Failed to search", err), empty, nil
	}

	// Tools returning structured content also return it serialized in a
	// TextContent block for older clients.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return errorResult("Failed to serialize results", err), empty, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, *output, nil
}
