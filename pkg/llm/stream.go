package llm

import "time"

// StreamChunk represents a single chunk in a streaming response.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model"`

	// Chunk timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The content of this chunk (typically a partial message)
	Message Message `json:"message"`

	// Whether this is the final chunk
	Done bool `json:"done"`

	// Stop reason (only present on final chunk)
	StopReason string `json:"stop_reason,omitempty"`

	// Usage metrics (typically only present on final chunk)
	Usage *Usage `json:"usage,omitempty"`
}

// StreamFunc receives chunks as they arrive. Returning an error aborts the
// stream.
type StreamFunc func(chunk *StreamChunk) error

// NewTextChunk builds a partial assistant chunk holding text.
func NewTextChunk(model, text string) *StreamChunk {
	return &StreamChunk{
		Model:     model,
		CreatedAt: time.Now(),
		Message:   NewTextMessage(RoleAssistant, text),
	}
}
