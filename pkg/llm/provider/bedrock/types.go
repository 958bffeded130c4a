package bedrock

// invokeRequest is the Anthropic Messages body accepted by Bedrock's
// InvokeModel. The model travels as ModelId rather than in the body.
type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	Messages         []invokeMessage `json:"messages"`
	System           string          `json:"system,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	Stop             []string        `json:"stop_sequences,omitempty"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
