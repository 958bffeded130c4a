package provider

import (
	"strings"
)

// Detect returns the provider for a model name and the model name the
// provider expects.
//
// An explicit "provider/model" prefix wins (e.g. "anthropic/claude-3-5-haiku",
// "ollama/llama3.1"). Otherwise the name is matched against known model
// families; anything unrecognized is assumed to be a local Ollama model.
func Detect(model string) (string, string) {
	if before, after, ok := strings.Cut(model, "/"); ok {
		switch strings.ToLower(before) {
		case OpenAI, Azure, Anthropic, Ollama, Bedrock:
			return strings.ToLower(before), after
		}
	}

	lower := strings.ToLower(model)
	switch {
	case lower == "":
		return OpenAI, model
	case strings.HasPrefix(lower, "gpt-"),
		strings.HasPrefix(lower, "chatgpt-"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"):
		return OpenAI, model
	case strings.HasPrefix(lower, "claude"):
		return Anthropic, model
	case strings.HasPrefix(lower, "anthropic."),
		strings.HasPrefix(lower, "us.anthropic."),
		strings.HasPrefix(lower, "eu.anthropic."):
		return Bedrock, model
	default:
		return Ollama, model
	}
}
