package llm

// ChatRequest represents a provider-agnostic chat completion request.
// Providers translate it into their own wire format.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o", "claude-3-5-sonnet-20241022", "llama3.1")
	Model string `json:"model"`

	// System prompt. Providers that take the system prompt as a message
	// prepend it to Messages.
	System string `json:"system,omitempty"`

	// Conversation messages, oldest first
	Messages []Message `json:"messages"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// IntPtr and Float64Ptr build optional generation parameters.
func IntPtr(v int) *int { return &v }

func Float64Ptr(v float64) *float64 { return &v }
