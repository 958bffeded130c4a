package llm

import (
	"time"
)

// ChatResponse represents a provider-agnostic chat completion response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// Response timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The assistant's response message
	Message Message `json:"message"`

	// Stop reason (e.g., "stop", "length", "end_turn")
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage and timing metrics
	Usage *Usage `json:"usage,omitempty"`
}

// Text returns the text of the response message.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return r.Message.GetText()
}

// Usage contains token counts and timing information.
//
// PromptTokens counts every prompt token, including tokens served from or
// written to a prompt cache. The cache counters are subsets of it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Cache token counts (OpenAI cached_tokens, Anthropic prompt caching)
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`

	// Timing (provider-specific, but normalized to nanoseconds where possible)
	TotalDurationNs  int64 `json:"total_duration_ns,omitempty"`
	PromptDurationNs int64 `json:"prompt_duration_ns,omitempty"`
}

// UncachedPromptTokens returns prompt tokens billed at the full input rate.
func (u *Usage) UncachedPromptTokens() int {
	if u == nil {
		return 0
	}
	n := u.PromptTokens - u.CacheReadInputTokens - u.CacheCreationInputTokens
	if n < 0 {
		return 0
	}
	return n
}

// Add accumulates other into u.
func (u *Usage) Add(other *Usage) {
	if u == nil || other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.TotalDurationNs += other.TotalDurationNs
	u.PromptDurationNs += other.PromptDurationNs
}
