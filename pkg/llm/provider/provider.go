// Package provider routes chat completions to LLM providers.
//
// Every provider client implements Provider. New builds one from Options,
// Detect picks a provider from a model name, and WithRetry wraps any
// Provider with exponential backoff.
package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// ErrUnsupportedProvider is returned by New for unknown provider names.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Provider is a chat completion client for a single LLM API.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai", "ollama", "bedrock")
	Name() string

	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// ChatStream sends a request and calls fn for every chunk as it arrives.
	// The returned response aggregates the streamed text and final usage.
	ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error)
}

// Options configures New.
type Options struct {
	// Provider name. Empty means Detect from Model.
	Provider string

	// Model is the default model for requests that leave ChatRequest.Model
	// empty. A "provider/" prefix is stripped.
	Model string

	APIKey     string
	BaseURL    string
	Region     string
	APIVersion string

	HTTPClient *http.Client
}
