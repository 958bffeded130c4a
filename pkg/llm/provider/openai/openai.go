// Package openai implements the chat provider for the OpenAI Chat
// Completions API (and Azure OpenAI deployments) on top of go-openai.
package openai

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// Config configures the OpenAI provider.
type Config struct {
	APIKey string

	// BaseURL overrides https://api.openai.com/v1. For Azure it is the
	// resource endpoint, e.g. https://my-resource.openai.azure.com.
	BaseURL string

	// Azure switches to Azure OpenAI authentication and URL layout.
	Azure      bool
	APIVersion string

	HTTPClient *http.Client
}

// Provider is a chat client for OpenAI compatible APIs.
type Provider struct {
	client *goopenai.Client
	name   string
}

// New creates an OpenAI provider.
func New(cfg Config) *Provider {
	var clientCfg goopenai.ClientConfig
	name := "openai"
	if cfg.Azure {
		name = "azure"
		clientCfg = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
	} else {
		clientCfg = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		name:   name,
	}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	creq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, p.convertError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoChoices
	}

	choice := resp.Choices[0]
	return &llm.ChatResponse{
		Model:      resp.Model,
		CreatedAt:  time.Unix(resp.Created, 0),
		Message:    llm.NewTextMessage(llm.RoleAssistant, choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage:      convertUsage(resp.Usage),
	}, nil
}

func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	creq, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	creq.Stream = true
	creq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, p.convertError(err)
	}
	defer stream.Close()

	var (
		text  strings.Builder
		final = &llm.ChatResponse{Model: req.Model, CreatedAt: time.Now()}
	)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.convertError(err)
		}

		if chunk.Model != "" {
			final.Model = chunk.Model
		}
		if chunk.Usage != nil {
			final.Usage = convertUsage(*chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			final.StopReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}

		text.WriteString(choice.Delta.Content)
		if err := fn(llm.NewTextChunk(final.Model, choice.Delta.Content)); err != nil {
			return nil, err
		}
	}

	final.Message = llm.NewTextMessage(llm.RoleAssistant, text.String())
	done := &llm.StreamChunk{
		Model:      final.Model,
		CreatedAt:  time.Now(),
		Done:       true,
		StopReason: final.StopReason,
		Usage:      final.Usage,
	}
	if err := fn(done); err != nil {
		return nil, err
	}

	return final, nil
}

func (p *Provider) buildRequest(req *llm.ChatRequest) (goopenai.ChatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return goopenai.ChatCompletionRequest{}, llm.ErrEmptyPrompt
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.GetText(),
		})
	}

	creq := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stop:     req.Stop,
	}
	if req.MaxTokens != nil {
		creq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
		// go-openai drops a zero temperature (omitempty), which the API
		// reads as the default of 1.
		if creq.Temperature == 0 {
			creq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if req.TopP != nil {
		creq.TopP = float32(*req.TopP)
	}

	return creq, nil
}

func (p *Provider) convertError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &llm.APIError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}

	return err
}

// convertUsage maps OpenAI usage; cached_tokens is already included in
// prompt_tokens.
func convertUsage(u goopenai.Usage) *llm.Usage {
	usage := &llm.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CacheReadInputTokens = u.PromptTokensDetails.CachedTokens
	}
	return usage
}
