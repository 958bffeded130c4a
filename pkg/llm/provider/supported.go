package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/researcher/pkg/llm/provider/bedrock"
	"github.com/papercomputeco/researcher/pkg/llm/provider/ollama"
	"github.com/papercomputeco/researcher/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Azure     = "azure"
	Ollama    = "ollama"
	Bedrock   = "bedrock"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{OpenAI, Azure, Anthropic, Ollama, Bedrock}
}

// New creates a Provider from opts. When opts.Provider is empty the provider
// is detected from opts.Model.
func New(ctx context.Context, opts Options) (Provider, error) {
	name, model := Detect(opts.Model)
	if opts.Provider != "" {
		name = strings.ToLower(opts.Provider)
	}

	var p Provider
	switch name {
	case OpenAI, Azure:
		p = openai.New(openai.Config{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			Azure:      name == Azure,
			APIVersion: opts.APIVersion,
			HTTPClient: opts.HTTPClient,
		})

	case Anthropic:
		p = anthropic.New(anthropic.Config{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
		})

	case Ollama:
		p = ollama.New(ollama.Config{
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
		})

	case Bedrock:
		bp, err := bedrock.New(ctx, bedrock.Config{Region: opts.Region})
		if err != nil {
			return nil, err
		}
		p = bp

	default:
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedProvider, name, SupportedProviders())
	}

	if model == "" {
		return p, nil
	}
	return &defaultModel{Provider: p, model: model}, nil
}

// defaultModel fills in the configured model for requests that omit one.
type defaultModel struct {
	Provider
	model string
}

func (d *defaultModel) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return d.Provider.Chat(ctx, d.withModel(req))
}

func (d *defaultModel) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	return d.Provider.ChatStream(ctx, d.withModel(req), fn)
}

func (d *defaultModel) withModel(req *llm.ChatRequest) *llm.ChatRequest {
	if req.Model != "" {
		_, m := Detect(req.Model)
		if m == req.Model {
			return req
		}
		clone := *req
		clone.Model = m
		return &clone
	}
	clone := *req
	clone.Model = d.model
	return &clone
}
