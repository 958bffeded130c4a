package storage

import "time"

// Chunk is one contextualized chunk of a dataset document.
type Chunk struct {
	// ID is the vector store key, "<doc_id>_<original_index>".
	ID string `json:"id"`

	// Position is the chunk's index in dataset order.
	Position int `json:"position"`

	DocID         string `json:"doc_id"`
	OriginalUUID  string `json:"original_uuid"`
	ChunkID       string `json:"chunk_id"`
	OriginalIndex int    `json:"original_index"`

	OriginalContent       string `json:"original_content"`
	ContextualizedContent string `json:"contextualized_content"`
}

// Settings records how a DB was built so reopening it reuses them.
type Settings struct {
	Model               string    `json:"model"`
	EmbeddingProvider   string    `json:"embedding_provider,omitempty"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions uint      `json:"embedding_dimensions,omitempty"`
	Temperature         float64   `json:"temperature"`
	MaxTokens           int       `json:"max_tokens"`
	CreatedAt           time.Time `json:"created_at,omitzero"`
}
