package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/researcher/pkg/research"
)

var (
	askToolName    = "ask"
	askDescription = "Answer a research question from the indexed documents. Retrieves the most relevant excerpts and returns a Markdown answer citing them as [n], together with the numbered sources."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the research question to answer"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"number of excerpts to retrieve (default: 20)"`
}

// AskOutput is the structured answer of the ask tool.
type AskOutput struct {
	Question string      `json:"question"`
	Answer   string      `json:"answer"`
	Model    string      `json:"model"`
	Sources  []AskSource `json:"sources"`
}

// AskSource is a cited excerpt.
type AskSource struct {
	N          int     `json:"n"`
	DocID      string  `json:"doc_id"`
	ChunkID    string  `json:"chunk_id"`
	Similarity float32 `json:"similarity"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.config.Asker.Ask(ctx, input.Question, research.AskOptions{TopK: input.TopK})
	if err != nil {
		s.config.Logger.Error("MCP ask failed", "error", err)
		return errorResult("Failed to answer", err), AskOutput{Question: input.Question, Sources: []AskSource{}}, nil
	}

	output := AskOutput{
		Question: answer.Question,
		Answer:   answer.Text,
		Model:    answer.Model,
		Sources:  make([]AskSource, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		output.Sources[i] = AskSource{
			N:          src.N,
			DocID:      src.Chunk.DocID,
			ChunkID:    src.Chunk.ChunkID,
			Similarity: src.Similarity,
		}
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return errorResult("Failed to serialize answer", err), AskOutput{Question: input.Question, Sources: []AskSource{}}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
